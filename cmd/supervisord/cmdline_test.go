package main

import "testing"

func TestParsePositionalArgsRunlevel(t *testing.T) {
	o := parsePositionalArgs([]string{"3"})
	if o.Runlevel != 3 {
		t.Fatalf("expected runlevel 3, got %d", o.Runlevel)
	}
}

func TestParsePositionalArgsRejectsRunlevelSix(t *testing.T) {
	o := parsePositionalArgs([]string{"6"})
	if o.Runlevel != 0 {
		t.Fatalf("expected runlevel 6 to be ignored, got %d", o.Runlevel)
	}
}

func TestParsePositionalArgsSingle(t *testing.T) {
	for _, tok := range []string{"single", "S"} {
		o := parsePositionalArgs([]string{tok})
		if !o.Single {
			t.Fatalf("expected %q to set Single", tok)
		}
	}
}

func TestParsePositionalArgsRescue(t *testing.T) {
	for _, tok := range []string{"rescue", "recover"} {
		o := parsePositionalArgs([]string{tok})
		if !o.Rescue {
			t.Fatalf("expected %q to set Rescue", tok)
		}
	}
}

func TestParsePositionalArgsFinitDebug(t *testing.T) {
	o := parsePositionalArgs([]string{"finit.debug"})
	if o.Debug == nil || !*o.Debug {
		t.Fatalf("expected finit.debug to set Debug=true, got %+v", o.Debug)
	}

	o = parsePositionalArgs([]string{"finit.debug=false"})
	if o.Debug == nil || *o.Debug {
		t.Fatalf("expected finit.debug=false to set Debug=false, got %+v", o.Debug)
	}
}

func TestParsePositionalArgsIgnoresGarbage(t *testing.T) {
	o := parsePositionalArgs([]string{"quiet", "splash"})
	if o.Runlevel != 0 || o.Single || o.Rescue || o.Debug != nil {
		t.Fatalf("expected unrecognized tokens to be ignored, got %+v", o)
	}
}
