package ctrl

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/gone-svc/initd/internal/cond"
	"github.com/gone-svc/initd/internal/log"
	"github.com/gone-svc/initd/internal/registry"
	"github.com/gone-svc/initd/internal/sched"
	"github.com/gone-svc/initd/internal/sd"
)

var logger = log.New("ctrl")

// Server listens on a UNIX stream socket (mode 0600, spec.md §4.6) and
// serves the client control protocol, one goroutine per connection.
// The listener can be picked up from a systemd-style inherited fd
// (internal/sd) so a reload/reboot re-exec keeps serving the same
// clients without a gap, the same trick daemon/ctrl/ctrl.go uses for
// its own text-protocol server.
type Server struct {
	Addr           string
	ListenerFdName string

	Reg      *registry.Registry
	Conds    *cond.Store
	Sched    *sched.Scheduler
	Handlers Handlers

	// Exec runs fn on the supervisor's single mutation goroutine and
	// blocks until it returns (spec.md §5: no registry/cond/scheduler
	// access happens outside that one goroutine). internal/loop wires
	// this to a channel round-trip; left nil, fn runs inline on the
	// calling goroutine, which is what the package's own tests do.
	Exec func(fn func())

	mu sync.Mutex
	l  net.Listener
	wg sync.WaitGroup
}

func (s *Server) exec(fn func()) {
	if s.Exec != nil {
		s.Exec(fn)
		return
	}
	fn()
}

// Listen opens the control socket, preferring a file handed down via
// socket activation over binding Addr fresh.
func (s *Server) Listen() error {
	name := s.ListenerFdName
	if name == "" {
		name = "ctrl"
	}

	l, err := sd.NamedListenUnix(name, "unix", &net.UnixAddr{Name: s.Addr, Net: "unix"})
	if err != nil {
		return err
	}
	if ul, ok := l.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(true)
	}
	if s.Addr != "" {
		if err := os.Chmod(s.Addr, 0600); err != nil {
			logger.WARN("control socket chmod failed", "path", s.Addr, "error", err)
		}
	}

	s.mu.Lock()
	s.l = l
	s.mu.Unlock()
	return nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.l.Accept()
		if err != nil {
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Close stops accepting new connections and waits for in-flight ones
// to finish their current request.
func (s *Server) Close() error {
	s.mu.Lock()
	l := s.l
	s.mu.Unlock()
	if l == nil {
		return nil
	}
	err := l.Close()
	s.wg.Wait()
	return err
}

// Export hands the listening socket to internal/sd so a re-exec
// inherits it (internal/sd.StartProcess picks up every exported fd).
func (s *Server) Export(name string) error {
	if name == "" {
		name = "ctrl"
	}
	ul, ok := s.l.(*net.UnixListener)
	if !ok {
		return fmt.Errorf("ctrl: listener is not a *net.UnixListener")
	}
	return sd.Export(name, ul)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, RecordSize)
	iter := &iterState{}

	for {
		if _, err := readFull(conn, buf); err != nil {
			return
		}

		req, err := Decode(buf)
		if err != nil {
			logger.WARN("ctrl: malformed request, closing connection", "error", err)
			return
		}

		resp := s.dispatch(req, iter)

		out, err := resp.Encode()
		if err != nil {
			return
		}
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// dispatch runs the request on the single mutation goroutine (via
// Exec) so that SVC_ITER, START_SVC/STOP_SVC, EMIT and friends never
// touch the registry/condition store/scheduler concurrently with the
// loop's own signal- and condition-driven step_all passes.
func (s *Server) dispatch(req Record, iter *iterState) Record {
	var resp Record
	s.exec(func() {
		resp = s.dispatchLocked(req, iter)
	})
	return resp
}

func (s *Server) dispatchLocked(req Record, iter *iterState) Record {
	switch req.Cmd {
	case CmdRunlvl:
		s.Handlers.SetRunlevel(int(req.Runlevel))
		return Reply(true, nil)

	case CmdDebug:
		on := s.Handlers.ToggleDebug()
		return Reply(true, []byte(fmt.Sprintf("%v", on)))

	case CmdReload:
		_, err := s.Handlers.Reload()
		return Reply(err == nil, nil)

	case CmdStartSvc:
		return s.actOnSelectors(req, func(svc *registry.Service) { s.Sched.Start(svc) })

	case CmdStopSvc:
		return s.actOnSelectors(req, func(svc *registry.Service) { s.Sched.Stop(svc) })

	case CmdRestartSvc:
		return s.actOnSelectors(req, func(svc *registry.Service) { s.Sched.Restart(svc) })

	case CmdEmit:
		s.emit(string(req.Payload()))
		return Reply(true, nil)

	case CmdGetRunlevel:
		cur, prev := s.Handlers.Runlevel()
		return Reply(true, []byte{byte(cur), byte(prev)})

	case CmdSvcIter:
		return s.iterNext(iter)

	case CmdSvcQuery:
		sels := ParseJobString(string(req.Payload()))
		_, unmatched := Resolve(s.Reg, sels)
		return Reply(len(unmatched) == 0, []byte(formatUnmatched(unmatched)))

	case CmdSvcFind:
		sels := ParseJobString(string(req.Payload()))
		matched, _ := Resolve(s.Reg, sels)
		if len(matched) == 0 {
			return Reply(false, encodeServiceRecord(nil))
		}
		return Reply(true, encodeServiceRecord(matched[0]))

	case CmdWdogHello:
		err := s.Handlers.WdogHello(int(req.SleepUsec))
		return Reply(err == nil, nil)

	default:
		return Reply(false, nil)
	}
}

func (s *Server) actOnSelectors(req Record, action func(*registry.Service)) Record {
	sels := ParseJobString(string(req.Payload()))
	matched, unmatched := Resolve(s.Reg, sels)
	for _, svc := range matched {
		action(svc)
	}
	s.Sched.StepAll()
	return Reply(len(unmatched) == 0, nil)
}

// emit implements the EMIT command's token grammar: "+k" sets
// condition k, "-k" clears it, and a bare token also sets it. Reserved
// words get no special handling: they are set as conditions like any
// other bare token, and no plugin hook is run for them.
func (s *Server) emit(body string) {
	for _, tok := range strings.Fields(body) {
		switch {
		case strings.HasPrefix(tok, "+"):
			s.Conds.Set(tok[1:])
		case strings.HasPrefix(tok, "-"):
			s.Conds.Clear(tok[1:])
		default:
			s.Conds.Set(tok)
		}
	}
	s.Sched.StepAll()
}

// formatUnmatched matches original_source/src/api.c's missing() callback,
// which appends "%s:%s " per unmatched job - every entry, including the
// last, carries a trailing space.
func formatUnmatched(sels []Selector) string {
	var b strings.Builder
	for _, sel := range sels {
		b.WriteString(sel.raw)
		b.WriteByte(' ')
	}
	return b.String()
}
