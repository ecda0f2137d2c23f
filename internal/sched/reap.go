package sched

import (
	"syscall"

	"github.com/gone-svc/initd/internal/registry"
)

// ReapAll waits for every exited child without blocking (WNOHANG) and
// applies each exit to the owning service, per spec.md §4.7's SIGCHLD
// handling. ECHILD is not an error here, it just means nothing is
// outstanding.
func (s *Scheduler) ReapAll() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		s.reapOne(pid, ws)
	}
}

func (s *Scheduler) reapOne(pid int, ws syscall.WaitStatus) {
	svc := s.findByPid(pid)
	if svc == nil {
		return // reaped an unrelated orphaned grandchild, nothing to update
	}

	svc.ExitStatus = ws.ExitStatus()
	wasStopping := svc.State == registry.Stopping
	delete(s.pending, svc.Key())

	switch {
	case wasStopping:
		svc.State = registry.Halted
		svc.Pid = 0

	case s.isDaemonlike(svc.Kind):
		s.conds.Clear(svc.ReadyCondition())
		if cleanExit(svc, ws) {
			svc.State = registry.Halted
		} else {
			svc.State = registry.Crashed
			svc.Unstable++
		}
		svc.Pid = 0

	default: // one-shot task / run / sysv script
		if ws.Exited() && ws.ExitStatus() == 0 {
			svc.State = registry.Done
		} else {
			svc.State = registry.Crashed
			svc.Unstable++
		}
		svc.Pid = 0
	}
}

func (s *Scheduler) findByPid(pid int) *registry.Service {
	for _, svc := range s.reg.All() {
		if svc.Pid == pid {
			return svc
		}
	}
	return nil
}

// cleanExit reports whether a daemon's exit should be treated as a
// deliberate stop rather than a crash: it exited zero, or it died
// from its own declared stop signal.
func cleanExit(svc *registry.Service, ws syscall.WaitStatus) bool {
	if ws.Exited() && ws.ExitStatus() == 0 {
		return true
	}
	if ws.Signaled() && svc.Attrs.StopSignal != 0 && ws.Signal() == signalOf(svc.Attrs.StopSignal) {
		return true
	}
	return false
}
