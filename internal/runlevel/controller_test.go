package runlevel

import (
	"syscall"
	"testing"

	"github.com/gone-svc/initd/internal/cond"
	"github.com/gone-svc/initd/internal/registry"
	"github.com/gone-svc/initd/internal/sched"
	"github.com/gone-svc/initd/internal/signals"
)

type fakeSpawner struct{ nextPid int }

func (f *fakeSpawner) Spawn(svc *registry.Service) (int, error) {
	f.nextPid++
	return f.nextPid, nil
}
func (f *fakeSpawner) Signal(int, syscall.Signal) error { return nil }

func newTestController(t *testing.T) (*Controller, *registry.Registry, *sched.Scheduler) {
	t.Helper()
	reg := registry.New()
	conds := cond.New("")
	s := sched.New(reg, conds).WithSpawner(&fakeSpawner{})
	c := New(1, reg, conds, s, nil)
	return c, reg, s
}

func TestSetRunlevelStopsOutOfMaskServices(t *testing.T) {
	c, reg, s := newTestController(t)
	_ = s
	svc := reg.Put(&registry.Service{Name: "web", Runlevels: 1 << 2})
	svc.State = registry.Running
	svc.Pid = 123

	c.SetRunlevel(1)

	if svc.State != registry.Stopping {
		t.Fatalf("expected web to move to stopping when leaving its runlevel, got %v", svc.State)
	}
}

func TestSetRunlevelStartsNewlyEligibleServices(t *testing.T) {
	c, reg, _ := newTestController(t)
	svc := reg.Put(&registry.Service{Name: "web", Runlevels: 1 << 3})

	c.SetRunlevel(3)

	if svc.State == registry.Halted {
		t.Fatalf("expected web to leave halted once eligible, got %v", svc.State)
	}
}

func TestRunlevelZeroTriggersPoweroffByDefault(t *testing.T) {
	c, _, _ := newTestController(t)
	var got Mode
	c.ShutdownFunc = func(m Mode) error { got = m; return nil }

	c.SetRunlevel(0)

	if got != ModePoweroff {
		t.Fatalf("expected client-requested runlevel 0 to poweroff, got %v", got)
	}
}

func TestHalSignalRequestsPlainHalt(t *testing.T) {
	c, _, _ := newTestController(t)
	var got Mode
	c.ShutdownFunc = func(m Mode) error { got = m; return nil }

	c.HandleSignal(signals.Event{Kind: signals.Halt})

	if got != ModeHalt {
		t.Fatalf("expected SIGUSR1 to request a plain halt, got %v", got)
	}
}

func TestToggleDebugFlips(t *testing.T) {
	c, _, _ := newTestController(t)
	if !c.ToggleDebug() {
		t.Fatal("expected first toggle to enable debug")
	}
	if c.ToggleDebug() {
		t.Fatal("expected second toggle to disable debug")
	}
}

func TestWdogHelloRequiresRegisteredPid(t *testing.T) {
	c, _, _ := newTestController(t)
	if err := c.WdogHello(999); err == nil {
		t.Fatal("expected error for unregistered pid")
	}
}

func TestWdogHelloHandsOverFromPrevious(t *testing.T) {
	c, reg, _ := newTestController(t)
	first := reg.Put(&registry.Service{Name: "wdog1", Pid: 10, Protected: true})
	second := reg.Put(&registry.Service{Name: "wdog2", Pid: 20})

	if err := c.WdogHello(10); err != nil {
		t.Fatalf("first hello: %v", err)
	}
	if err := c.WdogHello(20); err != nil {
		t.Fatalf("second hello: %v", err)
	}
	if first.Protected {
		t.Fatal("expected the superseded watchdog to lose protection")
	}
	if c.wdog != second {
		t.Fatal("expected wdog to be handed over to the second process")
	}
}
