package plugin

import (
	"testing"

	"github.com/gone-svc/initd/internal/cond"
	"github.com/gone-svc/initd/internal/registry"
	"github.com/gone-svc/initd/internal/sched"
)

func newTestDispatcher() *Dispatcher {
	reg := registry.New()
	conds := cond.New("")
	s := sched.New(reg, conds)
	return New(&Context{Reg: reg, Conds: conds, Sched: s})
}

func TestRunOrdersByDepends(t *testing.T) {
	d := newTestDispatcher()
	var seen []string

	record := func(name string) Callback {
		return func(ctx *Context) error {
			seen = append(seen, name)
			return nil
		}
	}

	if err := d.Register(&Plugin{Name: "b", Depends: []string{"a"}, Hooks: map[Hook]Callback{BasefsUp: record("b")}}); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if err := d.Register(&Plugin{Name: "a", Hooks: map[Hook]Callback{BasefsUp: record("a")}}); err != nil {
		t.Fatalf("register a: %v", err)
	}

	d.Run(BasefsUp)

	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("expected [a b], got %v", seen)
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	d := newTestDispatcher()
	if err := d.Register(&Plugin{Name: "x"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := d.Register(&Plugin{Name: "x"}); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
}

func TestRegisterRejectsDependencyCycle(t *testing.T) {
	d := newTestDispatcher()
	if err := d.Register(&Plugin{Name: "a", Depends: []string{"b"}}); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := d.Register(&Plugin{Name: "b", Depends: []string{"a"}}); err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestUnregisteredDependencyIsIgnored(t *testing.T) {
	d := newTestDispatcher()
	if err := d.Register(&Plugin{Name: "dbusdep", Depends: []string{"bootmisc"}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(d.order) != 1 || d.order[0] != "dbusdep" {
		t.Fatalf("expected dbusdep alone in order, got %v", d.order)
	}
}

func TestManifestDisablesAndReorders(t *testing.T) {
	m := Manifest{Plugins: []ManifestEntry{
		{Name: "tty", Disabled: true},
		{Name: "pidfile", Depends: []string{"dbusdep"}},
	}}
	builtins := []*Plugin{
		{Name: "tty"},
		{Name: "pidfile"},
		{Name: "dbusdep"},
	}

	out := m.Apply(builtins)
	if len(out) != 2 {
		t.Fatalf("expected tty to be dropped, got %d plugins", len(out))
	}
	for _, p := range out {
		if p.Name == "pidfile" && (len(p.Depends) != 1 || p.Depends[0] != "dbusdep") {
			t.Fatalf("expected pidfile depends overridden, got %v", p.Depends)
		}
	}
}
