package ctrl

import (
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/gone-svc/initd/internal/cond"
	"github.com/gone-svc/initd/internal/registry"
	"github.com/gone-svc/initd/internal/sched"
)

type fakeHandlers struct {
	runlevel, previous int
	reloaded           bool
	debug              bool
}

func (f *fakeHandlers) SetRunlevel(level int)   { f.previous, f.runlevel = f.runlevel, level }
func (f *fakeHandlers) Runlevel() (int, int)    { return f.runlevel, f.previous }
func (f *fakeHandlers) Reload() (int, error)    { f.reloaded = true; return 0, nil }
func (f *fakeHandlers) ToggleDebug() bool       { f.debug = !f.debug; return f.debug }
func (f *fakeHandlers) WdogHello(pid int) error { return nil }

func newTestServer(t *testing.T) (*Server, net.Conn) {
	t.Helper()
	reg := registry.New()
	conds := cond.New("")
	reg.Put(&registry.Service{Name: "web", Runlevels: 1 << 2})

	s := &Server{
		Reg:      reg,
		Conds:    conds,
		Sched:    sched.New(reg, conds).WithSpawner(noopSpawner{}),
		Handlers: &fakeHandlers{},
	}

	client, server := net.Pipe()
	go s.handleConn(server)
	return s, client
}

type noopSpawner struct{}

func (noopSpawner) Spawn(*registry.Service) (int, error) { return 1, nil }
func (noopSpawner) Signal(int, syscall.Signal) error     { return nil }

func roundTrip(t *testing.T, conn net.Conn, req Record) Record {
	t.Helper()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	b, err := req.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := conn.Write(b); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := make([]byte, RecordSize)
	total := 0
	for total < len(out) {
		n, err := conn.Read(out[total:])
		total += n
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	resp, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return resp
}

func TestServerGetRunlevel(t *testing.T) {
	_, conn := newTestServer(t)
	defer conn.Close()

	resp := roundTrip(t, conn, NewRequest(CmdGetRunlevel, 0, nil))
	if resp.Cmd != CmdACK {
		t.Fatalf("expected ACK, got %v", resp.Cmd)
	}
}

func TestServerSvcIterWalksThenSentinel(t *testing.T) {
	_, conn := newTestServer(t)
	defer conn.Close()

	first := roundTrip(t, conn, NewRequest(CmdSvcIter, 0, nil))
	if first.Cmd != CmdACK {
		t.Fatalf("expected ACK for first iter, got %v", first.Cmd)
	}

	second := roundTrip(t, conn, NewRequest(CmdSvcIter, 0, nil))
	if second.Cmd != CmdACK {
		t.Fatalf("expected ACK (sentinel) for second iter, got %v", second.Cmd)
	}
}

func TestServerSvcQueryReportsUnmatched(t *testing.T) {
	_, conn := newTestServer(t)
	defer conn.Close()

	resp := roundTrip(t, conn, NewRequest(CmdSvcQuery, 0, []byte("web,ghost")))
	if resp.Cmd != CmdNACK {
		t.Fatalf("expected NACK because 'ghost' is unmatched, got %v", resp.Cmd)
	}
}
