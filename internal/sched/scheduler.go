package sched

import (
	"syscall"
	"time"

	"github.com/gone-svc/initd/internal/cond"
	"github.com/gone-svc/initd/internal/log"
	"github.com/gone-svc/initd/internal/registry"
)

// Defaults per spec.md §5/§7.
const (
	DefaultGrace                = 3 * time.Second
	DefaultInstabilityThreshold = 10
)

var logger = log.New("sched")

// Scheduler owns the step/step_all state machine. It is not
// goroutine-safe by itself: every method must be called from the
// single event-loop goroutine (internal/loop), per spec.md §5.
type Scheduler struct {
	reg   *registry.Registry
	conds *cond.Store
	spawn Spawner

	runlevel int

	grace     time.Duration
	threshold int

	pending map[registry.Key]time.Time // services sent SIGTERM, awaiting grace expiry
}

// New builds a Scheduler over reg and conds using the real Spawner.
func New(reg *registry.Registry, conds *cond.Store) *Scheduler {
	return &Scheduler{
		reg:       reg,
		conds:     conds,
		spawn:     ProcSpawner{},
		grace:     DefaultGrace,
		threshold: DefaultInstabilityThreshold,
		pending:   make(map[registry.Key]time.Time),
	}
}

// WithSpawner overrides the Spawner, for tests.
func (s *Scheduler) WithSpawner(sp Spawner) *Scheduler {
	s.spawn = sp
	return s
}

// SetRunlevel changes the runlevel used for eligibility checks. The
// caller (internal/runlevel) is responsible for calling StepAll
// afterward to converge.
func (s *Scheduler) SetRunlevel(level int) {
	s.runlevel = level
}

func (s *Scheduler) Runlevel() int { return s.runlevel }

func (s *Scheduler) eligible(svc *registry.Service) bool {
	return svc.Runlevels.Has(s.runlevel) && !svc.StopRequested
}

func (s *Scheduler) isDaemonlike(k registry.Kind) bool {
	switch k {
	case registry.DaemonService, registry.TTY, registry.InetdListener:
		return true
	default:
		return false
	}
}

// StepAll iterates the registry calling step on every service until a
// full pass produces no change (spec.md §4.2).
func (s *Scheduler) StepAll() {
	for {
		changed := false
		for _, svc := range s.reg.All() {
			if s.step(svc) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// Tick runs periodic housekeeping: instability decay and grace-period
// enforcement for services stuck in STOPPING. Intended to be called
// on the loop's 60s timer (spec.md §4.1).
func (s *Scheduler) Tick(now time.Time) {
	for _, svc := range s.reg.All() {
		if svc.Unstable > 0 {
			svc.Unstable--
		}
	}
	for key, deadline := range s.pending {
		if now.Before(deadline) {
			continue
		}
		svc := s.reg.Get(key)
		if svc == nil || svc.State != registry.Stopping {
			delete(s.pending, key)
			continue
		}
		logger.WARN("grace period expired, killing", "service", svc.Name, "pid", svc.Pid)
		s.spawn.Signal(svc.Pid, syscall.SIGKILL)
		delete(s.pending, key)
	}
	s.StepAll()
}
