package sched

import (
	"syscall"
	"time"

	"github.com/gone-svc/initd/internal/registry"
)

func signalOf(n int) syscall.Signal { return syscall.Signal(n) }

// step takes svc one state-machine tick closer to its target and
// reports whether it changed anything, per spec.md §4.2/§4.3. It is
// not the only writer of registry.Service.State: reapOne, beginStop,
// Stop, MarkReady and config.Reload set it too.
func (s *Scheduler) step(svc *registry.Service) bool {
	switch svc.State {
	case registry.Halted:
		return s.stepHalted(svc)
	case registry.Waiting:
		return s.stepWaiting(svc)
	case registry.Ready:
		return s.stepReady(svc)
	case registry.Starting:
		return s.stepStarting(svc)
	case registry.Running:
		return s.stepRunning(svc)
	case registry.Stopping:
		return false // only the reaper moves out of STOPPING
	case registry.Crashed:
		return s.stepCrashed(svc)
	case registry.Blocked:
		return s.stepBlocked(svc)
	case registry.Done:
		return s.stepDone(svc)
	default:
		return false
	}
}

func (s *Scheduler) stepHalted(svc *registry.Service) bool {
	if !s.eligible(svc) {
		return false
	}
	svc.State = registry.Waiting
	return true
}

func (s *Scheduler) stepWaiting(svc *registry.Service) bool {
	if !s.eligible(svc) {
		svc.State = registry.Halted
		return true
	}
	if svc.Condition.HasFlux(s.conds) {
		return false // neither clearly ready nor clearly blocked, wait it out
	}
	if !svc.Condition.Eval(s.conds) {
		return false
	}
	svc.State = registry.Ready
	return true
}

func (s *Scheduler) stepReady(svc *registry.Service) bool {
	if !s.eligible(svc) {
		svc.State = registry.Halted
		return true
	}

	pid, err := s.spawn.Spawn(svc)
	if err != nil {
		logger.ERROR("spawn failed", "service", svc.Name, "error", err)
		svc.State = registry.Crashed
		svc.Unstable++
		return true
	}

	svc.Pid = pid
	svc.StartedAt = time.Now()
	svc.State = registry.Starting
	return true
}

func (s *Scheduler) stepStarting(svc *registry.Service) bool {
	if !s.isDaemonlike(svc.Kind) {
		return false // tasks/run/sysv move to DONE only via reap
	}
	if svc.Attrs.PidFile != "" {
		return false // awaiting MarkReady from the pidfile collaborator
	}
	svc.State = registry.Running
	s.conds.Set(svc.ReadyCondition())
	return true
}

func (s *Scheduler) stepRunning(svc *registry.Service) bool {
	if !s.eligible(svc) || !svc.Condition.Eval(s.conds) {
		s.beginStop(svc)
		return true
	}
	return false
}

func (s *Scheduler) stepCrashed(svc *registry.Service) bool {
	if svc.Attrs.Restart == registry.RestartOnExit && svc.Unstable < s.threshold {
		svc.State = registry.Ready
		return true
	}
	svc.State = registry.Blocked
	return true
}

func (s *Scheduler) stepBlocked(svc *registry.Service) bool {
	if !svc.Dirty {
		return false
	}
	svc.State = registry.Halted
	svc.Dirty = false
	svc.Unstable = 0
	return true
}

// stepDone leaves svc in DONE until something marks it dirty again -
// a condition rising edge (internal/loop marks DONE services that
// reference the condition dirty when a cond.Event turns it On, see
// Registry.ReverseDeps) or a reload.
func (s *Scheduler) stepDone(svc *registry.Service) bool {
	if !svc.Dirty {
		return false
	}
	svc.State = registry.Halted
	svc.Dirty = false
	return true
}

// beginStop moves svc into STOPPING, sends its stop signal, and
// records a grace-period deadline for Tick to enforce.
func (s *Scheduler) beginStop(svc *registry.Service) {
	svc.State = registry.Stopping
	s.conds.Clear(svc.ReadyCondition())
	sig := svc.Attrs.StopSignal
	if sig == 0 {
		sig = 15 // SIGTERM
	}
	s.spawn.Signal(svc.Pid, signalOf(sig))
	s.pending[svc.Key()] = time.Now().Add(s.grace)
}

// Stop requests a manual stop of svc (client STOP_SVC command).
func (s *Scheduler) Stop(svc *registry.Service) {
	svc.StopRequested = true
	if svc.State == registry.Running || svc.State == registry.Starting {
		s.beginStop(svc)
	} else if svc.State != registry.Stopping {
		svc.State = registry.Halted
	}
}

// Start requests a manual (re)start of svc (client START_SVC
// command), clearing any prior manual stop.
func (s *Scheduler) Start(svc *registry.Service) {
	svc.StopRequested = false
	svc.Dirty = true
}

// Restart requests svc be stopped and (once halted) started again.
// Clearing StopRequested lets the next StepAll pass bring it back up.
func (s *Scheduler) Restart(svc *registry.Service) {
	s.Stop(svc)
	svc.StopRequested = false
	svc.Dirty = true
}

// MarkReady completes the STARTING→RUNNING transition for a daemon
// declaring a pidfile, called by the pidfile collaborator once the
// file appears (spec.md §4.3). If pid is nonzero, it replaces the
// forking daemon's initial child pid.
func (s *Scheduler) MarkReady(svc *registry.Service, pid int) {
	if svc.State != registry.Starting {
		return
	}
	if pid != 0 {
		svc.Pid = pid
	}
	svc.State = registry.Running
	s.conds.Set(svc.ReadyCondition())
}
