package loop

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gone-svc/initd/internal/registry"
)

func writeConf(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "finit.conf"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		ConfigDir: dir,
		RunDir:    t.TempDir(),
	}
}

func TestExecRunsInlineBeforeRunStarts(t *testing.T) {
	l := New(testConfig(t))

	called := false
	l.exec(func() { called = true })

	if !called {
		t.Fatal("expected exec to run fn inline before Run started")
	}
}

func TestBootstrapPopulatesRegistryFromConfigDir(t *testing.T) {
	cfg := testConfig(t)
	writeConf(t, cfg.ConfigDir, `
hostname devbox
service [2345] /bin/sh -- test service
`)

	l := New(cfg)
	if err := l.bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	svc := l.Reg.Get(registry.Key{Name: "sh"})
	if svc == nil {
		t.Fatalf("expected service registered from config, registry: %+v", l.Reg)
	}
	if l.global.Hostname != "devbox" {
		t.Fatalf("expected hostname devbox, got %q", l.global.Hostname)
	}
}

func TestExecSerializesThroughRunningLoop(t *testing.T) {
	cfg := testConfig(t)
	l := New(cfg)

	go func() {
		_ = l.Run()
	}()

	// Give Run a chance to reach its select loop.
	deadline := time.Now().Add(2 * time.Second)
	for {
		select {
		case <-l.running:
		default:
			if time.Now().After(deadline) {
				t.Fatal("Run never reached its select loop")
			}
			time.Sleep(time.Millisecond)
			continue
		}
		break
	}

	results := make(chan int, 4)
	for i := 0; i < 4; i++ {
		i := i
		go l.exec(func() { results <- i })
	}

	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		select {
		case v := <-results:
			seen[v] = true
		case <-time.After(2 * time.Second):
			t.Fatal("exec never delivered result")
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 distinct exec calls to complete, got %d", len(seen))
	}

	l.Exit()
	select {
	case <-l.exited:
	case <-time.After(2 * time.Second):
		t.Fatal("Run never exited after Exit")
	}
}

func TestReloadRemovesDroppedService(t *testing.T) {
	cfg := testConfig(t)
	writeConf(t, cfg.ConfigDir, `
service [2345] /bin/sh -- test service
`)

	l := New(cfg)
	if err := l.bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if l.Reg.Get(registry.Key{Name: "sh"}) == nil {
		t.Fatal("expected service registered on bootstrap")
	}

	writeConf(t, cfg.ConfigDir, "\n")
	removed, err := l.reloadConfig()
	if err != nil {
		t.Fatalf("reloadConfig: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 service removed, got %d", removed)
	}
}
