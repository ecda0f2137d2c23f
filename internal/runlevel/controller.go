package runlevel

import (
	"fmt"

	"github.com/gone-svc/initd/internal/cond"
	"github.com/gone-svc/initd/internal/log"
	"github.com/gone-svc/initd/internal/plugin"
	"github.com/gone-svc/initd/internal/registry"
	"github.com/gone-svc/initd/internal/sched"
	"github.com/gone-svc/initd/internal/signals"
)

var logger = log.New("runlevel")

// Mode names what a transition into runlevel 0 or 6 should do once
// the stop phase has converged, spec.md §4.7.
type Mode int

const (
	ModeNone Mode = iota
	ModeHalt
	ModePoweroff
	ModeReboot
)

func (m Mode) String() string {
	switch m {
	case ModeHalt:
		return "halt"
	case ModePoweroff:
		return "poweroff"
	case ModeReboot:
		return "reboot"
	default:
		return "none"
	}
}

// Controller owns the current/previous runlevel and implements
// ctrl.Handlers, so internal/loop can hand it straight to the control
// server without a wrapper. It never touches the network or the
// scheduler's internals directly; every mutation goes through
// internal/sched and internal/cond exactly like a plugin would.
type Controller struct {
	Reg     *registry.Registry
	Conds   *cond.Store
	Sched   *sched.Scheduler
	Plugins *plugin.Dispatcher

	// ReloadFunc re-parses configuration and reconciles the registry
	// (internal/config.Reload), supplied by internal/loop so this
	// package doesn't need to own a *config.Parser.
	ReloadFunc func() (removed int, err error)

	// ShutdownFunc runs the actual halt/poweroff/reboot once the stop
	// phase has converged - spec.md §4.7 "delegated to collaborators".
	// A nil func is a no-op, useful for tests and non-pid-1 embeddings.
	ShutdownFunc func(mode Mode) error

	// CtrlAltDel is which Mode a keyboard signal maps to. Defaults to
	// ModeReboot per spec.md §4.7.
	CtrlAltDel Mode

	current, previous int
	debug             bool
	wdog              *registry.Service
}

// New returns a Controller booting at runlevel level (finit's default
// is 2, "normal multi-user").
func New(level int, reg *registry.Registry, conds *cond.Store, sc *sched.Scheduler, plugins *plugin.Dispatcher) *Controller {
	return &Controller{
		Reg:        reg,
		Conds:      conds,
		Sched:      sc,
		Plugins:    plugins,
		CtrlAltDel: ModeReboot,
		current:    level,
		previous:   level,
	}
}

// SetRunlevel moves to level: the scheduler's own eligibility check
// (Runlevels.Has(level)) is what actually realizes spec.md §4.7's two
// phases - every service outside the new mask stops as soon as
// SetRunlevel flips Scheduler.Runlevel() and StepAll runs, every
// service newly inside it starts in the same convergence pass.
//
// A client-requested runlevel 0 defaults to poweroff rather than a
// plain halt, matching api.c's INIT_CMD_RUNLVL comment ("in contrast
// to the SysV compat handling, `initctl runlevel 0` defaults to
// POWERDOWN instead of just halting"); SIGUSR1 is the one path that
// asks for a plain halt, see HandleSignal.
func (c *Controller) SetRunlevel(level int) {
	if level < 0 || level > 9 {
		logger.WARN("ignoring out-of-range runlevel request", "level", level)
		return
	}

	c.converge(level)

	switch level {
	case 0:
		c.runShutdown(ModePoweroff)
	case 6:
		c.runShutdown(ModeReboot)
	}
}

// converge flips the scheduler's runlevel and runs it to a fixed
// point, without deciding what (if anything) to do once there.
func (c *Controller) converge(level int) {
	c.previous = c.current
	c.current = level
	c.Sched.SetRunlevel(level)
	c.Sched.StepAll()
}

// Runlevel reports the current and previous runlevel.
func (c *Controller) Runlevel() (current, previous int) {
	return c.current, c.previous
}

// Reload re-parses configuration, propagates dirty services through
// the registry, fires the SvcReconf hook so collaborators like the
// pidfile plugin can reassert conditions for untouched services, and
// converges the scheduler.
func (c *Controller) Reload() (removed int, err error) {
	if c.ReloadFunc == nil {
		return 0, nil
	}
	removed, err = c.ReloadFunc()
	if err != nil {
		return removed, err
	}
	c.Reg.PropagateDirty()
	if c.Plugins != nil {
		c.Plugins.Run(plugin.SvcReconf)
	}
	c.Sched.StepAll()
	return removed, nil
}

// ToggleDebug flips the process-wide log verbosity between LOG_INFO
// and LOG_DEBUG, spec.md §4.6/api.c's INIT_CMD_DEBUG.
func (c *Controller) ToggleDebug() bool {
	c.debug = !c.debug
	if c.debug {
		log.SetLevel(log.LOG_DEBUG)
	} else {
		log.SetLevel(log.LOG_INFO)
	}
	return c.debug
}

// WdogHello hands watchdog duty to the process at pid: any
// previously-registered watchdog is stopped and unprotected, matching
// api.c's INIT_CMD_WDOG_HELLO handling.
func (c *Controller) WdogHello(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("runlevel: invalid watchdog pid %d", pid)
	}

	var svc *registry.Service
	for _, s := range c.Reg.All() {
		if s.Pid == pid {
			svc = s
			break
		}
	}
	if svc == nil {
		logger.WARN("watchdog hello from unregistered pid, handover dropped", "pid", pid)
		return fmt.Errorf("runlevel: no registered service with pid %d", pid)
	}

	if c.wdog != nil {
		logger.NOTICE("stopping previous watchdog", "service", c.wdog.Name, "pid", c.wdog.Pid)
		c.wdog.Protected = false
		c.Sched.Stop(c.wdog)
	}
	c.wdog = svc
	return nil
}

// HandleSignal reacts to a dispatched signal event (spec.md §4.7). It
// returns nothing; whether the process exits is left to the shutdown
// helper run for halt/poweroff/reboot.
func (c *Controller) HandleSignal(ev signals.Event) {
	switch ev.Kind {
	case signals.Reload:
		if _, err := c.Reload(); err != nil {
			logger.ERROR("reload failed", "error", err)
		}
	case signals.Halt:
		c.converge(0)
		c.runShutdown(ModeHalt)
	case signals.Poweroff:
		c.converge(0)
		c.runShutdown(ModePoweroff)
	case signals.Reboot:
		c.converge(6)
		c.runShutdown(ModeReboot)
	case signals.Terminate:
		c.stopCurrentRunlevel()
	case signals.CtrlAltDelete:
		if c.CtrlAltDel == ModeReboot {
			c.converge(6)
		} else {
			c.converge(0)
		}
		c.runShutdown(c.CtrlAltDel)
	}
}

// stopCurrentRunlevel implements SIGTERM's "controlled shutdown of
// the current runlevel" without actually changing the runlevel number
// - every registered service is asked to stop through Sched.Stop,
// which sets its StopRequested, while Runlevel()/previous are left
// untouched. A stopped service stays down until a START or RESTART
// command clears StopRequested; a reload or RUNLVL does not clear it.
func (c *Controller) stopCurrentRunlevel() {
	for _, svc := range c.Reg.All() {
		c.Sched.Stop(svc)
	}
	c.Sched.StepAll()
}

func (c *Controller) runShutdown(mode Mode) {
	if c.ShutdownFunc == nil {
		logger.NOTICE("no shutdown helper configured, staying up", "mode", mode)
		return
	}
	if err := c.ShutdownFunc(mode); err != nil {
		logger.ERROR("shutdown helper failed", "mode", mode, "error", err)
	}
}
