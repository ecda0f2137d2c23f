package log

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetHandler(NewPlainHandler(&buf))
	defer SetHandler(NewPlainHandler(io.Discard))

	l := New("svc")
	l.SetLevel(LOG_WARNING)

	l.INFO("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}

	l.ERROR("boom", "pid", 42)
	out := buf.String()
	if !strings.Contains(out, "boom") || !strings.Contains(out, "pid=42") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestWithAppendsContext(t *testing.T) {
	var buf bytes.Buffer
	SetHandler(NewPlainHandler(&buf))
	defer SetHandler(NewPlainHandler(io.Discard))

	l := New("svc").With("name", "httpd")
	l.NOTICE("started")

	out := buf.String()
	if !strings.Contains(out, "name=httpd") {
		t.Fatalf("expected context kv in output, got %q", out)
	}
}

func TestOddKVDropped(t *testing.T) {
	var buf bytes.Buffer
	SetHandler(NewPlainHandler(&buf))
	defer SetHandler(NewPlainHandler(io.Discard))

	l := New("svc")
	l.ERROR("boom", "dangling")
	if strings.Contains(buf.String(), "dangling") {
		t.Fatalf("expected dangling key to be dropped, got %q", buf.String())
	}
}
