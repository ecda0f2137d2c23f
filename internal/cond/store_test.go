package cond

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetClearFluxTransitions(t *testing.T) {
	s := New("")

	if !s.Set("service/foo/ready") {
		t.Fatal("expected first Set to report a change")
	}
	if s.Set("service/foo/ready") {
		t.Fatal("expected repeat Set to report no change")
	}
	if s.Get("service/foo/ready") != On {
		t.Fatalf("expected On, got %v", s.Get("service/foo/ready"))
	}

	if !s.Flux("service/foo/ready") {
		t.Fatal("expected Flux to report a change")
	}
	if s.Get("service/foo/ready") != Flux {
		t.Fatalf("expected Flux, got %v", s.Get("service/foo/ready"))
	}

	if !s.Clear("service/foo/ready") {
		t.Fatal("expected Clear to report a change")
	}
	if s.Get("service/foo/ready") != Off {
		t.Fatalf("expected Off, got %v", s.Get("service/foo/ready"))
	}
}

func TestUnknownKeyIsOff(t *testing.T) {
	s := New("")
	if s.Get("nope/nope") != Off {
		t.Fatal("expected unknown key to read Off")
	}
}

func TestEventsEmittedOnlyOnChange(t *testing.T) {
	s := New("")
	s.Set("a")
	<-s.Events()

	s.Set("a") // no change, should not enqueue
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event for a no-op Set: %+v", ev)
	default:
	}
}

func TestDiskMirrorRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	s.Set("service/foo/ready")
	<-s.Events()
	s.Flux("net/eth0/up")
	<-s.Events()

	if _, err := os.Stat(filepath.Join(dir, "service", "foo", "ready")); err != nil {
		t.Fatalf("expected marker file for On key: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, fluxSubdir, "net", "eth0", "up")); err != nil {
		t.Fatalf("expected flux marker file: %v", err)
	}

	reloaded := New(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Get("service/foo/ready") != On {
		t.Fatalf("expected reloaded state On, got %v", reloaded.Get("service/foo/ready"))
	}
	if reloaded.Get("net/eth0/up") != Flux {
		t.Fatalf("expected reloaded state Flux, got %v", reloaded.Get("net/eth0/up"))
	}
}

func TestExpressionEval(t *testing.T) {
	s := New("")
	s.Set("service/net/ready")

	expr := ParseExpression("service/net/ready -usr/foo")
	if !expr.Eval(s) {
		t.Fatal("expected expression to hold: net ready and usr/foo not asserted")
	}

	s.Set("usr/foo")
	<-s.Events()
	if expr.Eval(s) {
		t.Fatal("expected expression to fail once negated atom is asserted")
	}
}

func TestExpressionReloadFlag(t *testing.T) {
	expr := ParseExpression("service/foo/ready !net/eth0/up")
	if expr.SupportsReload() {
		t.Fatal("expected SupportsReload=false when any atom sets IgnoreReload")
	}
	keys := expr.Keys()
	if len(keys) != 2 || keys[0] != "service/foo/ready" || keys[1] != "net/eth0/up" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
