package sched

import (
	"syscall"
	"testing"
	"time"

	"github.com/gone-svc/initd/internal/cond"
	"github.com/gone-svc/initd/internal/registry"
)

type fakeSpawner struct {
	nextPid int
	signals map[int]syscall.Signal
	fail    bool
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{nextPid: 100, signals: make(map[int]syscall.Signal)}
}

func (f *fakeSpawner) Spawn(svc *registry.Service) (int, error) {
	if f.fail {
		return 0, errFakeSpawn
	}
	f.nextPid++
	return f.nextPid, nil
}

func (f *fakeSpawner) Signal(pid int, sig syscall.Signal) error {
	f.signals[pid] = sig
	return nil
}

var errFakeSpawn = fakeErr("spawn failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func daemonSvc(name string) *registry.Service {
	return &registry.Service{
		Name:      name,
		Kind:      registry.DaemonService,
		Runlevels: 1 << 2,
		Attrs:     registry.ProcessAttrs{Argv: []string{"/bin/true"}, Restart: registry.RestartOnExit},
	}
}

func TestHaltedToRunningNoPidfile(t *testing.T) {
	reg := registry.New()
	conds := cond.New("")
	svc := reg.Put(daemonSvc("web"))

	s := New(reg, conds).WithSpawner(newFakeSpawner())
	s.SetRunlevel(2)
	s.StepAll()

	if svc.State != registry.Running {
		t.Fatalf("expected Running, got %v", svc.State)
	}
	if conds.Get(svc.ReadyCondition()) != cond.On {
		t.Fatal("expected ready condition to be On once running")
	}
}

func TestWaitsOnCondition(t *testing.T) {
	reg := registry.New()
	conds := cond.New("")
	svc := reg.Put(daemonSvc("web"))
	svc.Condition = cond.ParseExpression("net/eth0/up")

	s := New(reg, conds).WithSpawner(newFakeSpawner())
	s.SetRunlevel(2)
	s.StepAll()
	if svc.State != registry.Waiting {
		t.Fatalf("expected Waiting until condition holds, got %v", svc.State)
	}

	conds.Set("net/eth0/up")
	<-conds.Events()
	s.StepAll()
	if svc.State != registry.Running {
		t.Fatalf("expected Running once condition holds, got %v", svc.State)
	}
}

func TestIneligibleRunlevelStaysHalted(t *testing.T) {
	reg := registry.New()
	conds := cond.New("")
	svc := reg.Put(daemonSvc("web"))

	s := New(reg, conds).WithSpawner(newFakeSpawner())
	s.SetRunlevel(5)
	s.StepAll()

	if svc.State != registry.Halted {
		t.Fatalf("expected Halted outside runlevel mask, got %v", svc.State)
	}
}

func TestCrashRespawnsUntilThreshold(t *testing.T) {
	reg := registry.New()
	conds := cond.New("")
	svc := reg.Put(daemonSvc("flaky"))

	s := New(reg, conds).WithSpawner(newFakeSpawner())
	s.threshold = 2
	s.SetRunlevel(2)
	s.StepAll()
	if svc.State != registry.Running {
		t.Fatalf("expected Running, got %v", svc.State)
	}

	// Simulate a crash (nonzero exit) followed by a respawn, then a
	// second crash that should push the service to Blocked once the
	// instability counter reaches the threshold.
	crashed := syscall.WaitStatus(1 << 8) // Exited() true, ExitStatus() == 1

	svc.State = registry.Running
	svc.Pid = 201
	s.reapOne(svc.Pid, crashed)
	if svc.State != registry.Crashed || svc.Unstable != 1 {
		t.Fatalf("expected Crashed with Unstable=1, got %v/%d", svc.State, svc.Unstable)
	}

	s.StepAll() // Crashed -> Ready -> Starting -> Running (fake spawner never fails)
	if svc.State != registry.Running {
		t.Fatalf("expected respawn back to Running, got %v", svc.State)
	}

	svc.Pid = 202
	s.reapOne(svc.Pid, crashed)
	if svc.Unstable != 2 {
		t.Fatalf("expected Unstable=2 after second crash, got %d", svc.Unstable)
	}

	s.StepAll()
	if svc.State != registry.Blocked {
		t.Fatalf("expected Blocked once threshold reached, got %v", svc.State)
	}
}

func TestReloadClearsBlocked(t *testing.T) {
	reg := registry.New()
	conds := cond.New("")
	svc := reg.Put(daemonSvc("blocked"))
	svc.State = registry.Blocked
	svc.Dirty = true

	s := New(reg, conds).WithSpawner(newFakeSpawner())
	s.SetRunlevel(2)
	s.StepAll()

	if svc.State == registry.Blocked {
		t.Fatal("expected dirty Blocked service to clear toward Halted/restart")
	}
}

func TestStopRequestMovesRunningToStopping(t *testing.T) {
	reg := registry.New()
	conds := cond.New("")
	svc := reg.Put(daemonSvc("web"))

	fake := newFakeSpawner()
	s := New(reg, conds).WithSpawner(fake)
	s.SetRunlevel(2)
	s.StepAll()
	if svc.State != registry.Running {
		t.Fatalf("precondition: expected Running, got %v", svc.State)
	}

	s.Stop(svc)
	if svc.State != registry.Stopping {
		t.Fatalf("expected Stopping after Stop(), got %v", svc.State)
	}
	if _, signalled := fake.signals[svc.Pid]; !signalled {
		t.Fatal("expected a signal to have been sent to the child")
	}
}

func TestTickDecaysInstability(t *testing.T) {
	reg := registry.New()
	conds := cond.New("")
	svc := reg.Put(daemonSvc("x"))
	svc.Unstable = 3

	s := New(reg, conds).WithSpawner(newFakeSpawner())
	s.SetRunlevel(0) // keep it Halted so Tick's StepAll doesn't spawn it
	s.Tick(time.Now())

	if svc.Unstable != 2 {
		t.Fatalf("expected instability to decay by 1, got %d", svc.Unstable)
	}
}
