package sd

import (
	"net"
	"os"
	"testing"
)

func TestExportForgetRoundtrip(t *testing.T) {
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: "", Net: "unix"})
	if err != nil {
		t.Skipf("unix sockets unavailable in this sandbox: %v", err)
	}
	defer l.Close()

	if err := Export("ctrl", l); err != nil {
		t.Fatalf("Export: %v", err)
	}

	files := activeFiles()
	if len(files) != 1 || files[0].name != "ctrl" {
		t.Fatalf("expected one active file named ctrl, got %+v", files)
	}

	Reset()
	n, names, err := ListenFdsWithNames()
	if err != nil {
		t.Fatalf("ListenFdsWithNames: %v", err)
	}
	if n != 1 || names[0] != "ctrl" {
		t.Fatalf("expected reset to make 1 file named ctrl available, got %d %v", n, names)
	}

	f, ok, err := FileWith("ctrl")
	if err != nil || !ok || f == nil {
		t.Fatalf("FileWith(ctrl) = %v, %v, %v", f, ok, err)
	}
	f.Close()

	Forget("ctrl")
}

func TestFileWithMissing(t *testing.T) {
	_, ok, err := FileWith("does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for an unregistered name")
	}
}

func TestCleanupClosesAvailable(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	w.Close()

	fdState.mu.Lock()
	fdState.available = append(fdState.available, namedFile{name: "scratch", f: r})
	fdState.mu.Unlock()

	Cleanup()

	fdState.mu.Lock()
	n := len(fdState.available)
	fdState.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected Cleanup to drain available, got %d left", n)
	}
}
