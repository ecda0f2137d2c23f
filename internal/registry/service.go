package registry

import (
	"time"

	"github.com/gone-svc/initd/internal/cond"
)

// Kind selects state-machine behaviour for a service (spec.md §3.1,
// §4.3). Dispatch on Kind happens in internal/sched as a switch over
// this value rather than through per-kind types, matching the design
// note that calls out a tagged-variant over a type hierarchy.
type Kind int

const (
	DaemonService Kind = iota
	OneShotTask
	BlockingRun
	SysVScript
	TTY
	InetdListener
)

func (k Kind) String() string {
	switch k {
	case DaemonService:
		return "service"
	case OneShotTask:
		return "task"
	case BlockingRun:
		return "run"
	case SysVScript:
		return "sysv"
	case TTY:
		return "tty"
	case InetdListener:
		return "inetd"
	default:
		return "unknown"
	}
}

// RestartPolicy controls what happens after a service's process
// exits unexpectedly.
type RestartPolicy int

const (
	RestartOnExit RestartPolicy = iota // respawn
	RestartNever                       // terminal: stays CRASHED/DONE
	RestartManual                      // only on explicit client command
)

// State is the service's position in the state machine (spec.md §4.3).
type State int

const (
	Halted State = iota
	Waiting
	Ready
	Starting
	Running
	Stopping
	Crashed
	Blocked
	Done
)

func (s State) String() string {
	switch s {
	case Halted:
		return "halted"
	case Waiting:
		return "waiting"
	case Ready:
		return "ready"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Crashed:
		return "crashed"
	case Blocked:
		return "blocked"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// RunlevelMask is a bitset over runlevels 0..9 (bit N set means
// eligible in runlevel N).
type RunlevelMask uint16

func (m RunlevelMask) Has(level int) bool {
	if level < 0 || level > 9 {
		return false
	}
	return m&(1<<uint(level)) != 0
}

// ProcessAttrs holds the launch-time configuration of a service's
// child process, everything that is read once per (re)spawn rather
// than mutated as the process runs.
type ProcessAttrs struct {
	Argv        []string
	Env         []string
	Dir         string
	User        string
	Group       string
	RLimits     map[string]RLimit
	Cgroup      string
	PidFile     string
	LogRedirect string
	Restart     RestartPolicy
	StopSignal  int // signal that counts as a clean stop, not a crash
}

// RLimit is one soft/hard resource limit pair, spec.md §4.5 "rlimit".
type RLimit struct {
	Soft uint64
	Hard uint64
}

// Service is one entry in the registry: identity and declared
// attributes (set by configuration parse or plugin registration) plus
// mutable runtime state (set by the scheduler).
type Service struct {
	// Identity
	Name  string
	ID    string // instance id, "" for the default instance
	JobID int    // assigned at registration, used by the numeric job-string selector form

	// Declared attributes
	Kind      Kind
	Runlevels RunlevelMask
	Condition cond.Expression
	Attrs     ProcessAttrs
	Descr     string

	// Mutable state (spec.md §3.1)
	State      State
	Pid        int
	ExitStatus int
	Restarts   int
	Unstable   int // instability counter
	StartedAt  time.Time

	Dirty         bool // needs a step_all look, or marked changed by reload
	Clean         bool // present in the most recently parsed config
	Seen          bool // re-encountered during the current reload pass
	Protected     bool // survives reload even if not re-encountered
	StopRequested bool // client asked for STOP_SVC; held HALTED until cleared
}

// Key identifies a service uniquely within the registry.
type Key struct {
	Name string
	ID   string
}

func (s *Service) Key() Key { return Key{Name: s.Name, ID: s.ID} }

// ReadyCondition is the condition key a running daemon asserts once
// it has declared readiness (spec.md §3.2 invariant).
func (s *Service) ReadyCondition() string {
	if s.ID != "" {
		return "service/" + s.Name + ":" + s.ID + "/ready"
	}
	return "service/" + s.Name + "/ready"
}
