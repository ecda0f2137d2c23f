package signals

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestWatchDispatchesMappedKind(t *testing.T) {
	w := Watch(Mappings{
		syscall.SIGUSR1: Halt,
	})
	defer w.Stop()

	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	if err := p.Signal(syscall.SIGUSR1); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	select {
	case ev := <-w.Events():
		if ev.Kind != Halt {
			t.Fatalf("expected Halt, got %v", ev.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal event")
	}
}

func TestStopClosesEvents(t *testing.T) {
	w := Watch(Mappings{syscall.SIGUSR2: Poweroff})
	w.Stop()

	select {
	case _, ok := <-w.Events():
		if ok {
			t.Fatal("expected events channel to be closed after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events channel to close")
	}
}
