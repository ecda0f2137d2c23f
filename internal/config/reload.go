package config

import (
	"fmt"
	"strconv"

	"github.com/gone-svc/initd/internal/registry"
)

// Reload runs the mark-and-sweep algorithm of spec.md §4.5 against
// reg using everything accumulated in p: mark every dynamic service
// dirty=0/clean=0/seen=0, re-register/update each parsed service,
// slate unseen non-protected services for removal, propagate dirty to
// reverse dependencies, and return the services now queued for
// STOPPING so the caller's scheduler can step them toward removal.
func (p *Parser) Reload(reg *registry.Registry) (removed []*registry.Service, err error) {
	reg.BeginSweep()

	rlimits := p.RLimits()
	seen := make(map[string]int)

	lines, kinds, files := p.Services()
	for i, sl := range lines {
		name, id := serviceIdentity(sl, files[i], seen)
		key := registry.Key{Name: name, ID: id}

		existing := reg.Get(key)
		if existing == nil {
			svc := newService(name, id, kinds[i], sl)
			svc.Attrs.RLimits = rlimits
			reg.Put(svc)
			reg.MarkSeen(svc, true)
			continue
		}

		changed := attrsChanged(existing, kinds[i], sl) || !rlimitsEqual(existing.Attrs.RLimits, rlimits)
		applyServiceLine(existing, kinds[i], sl)
		existing.Attrs.RLimits = rlimits
		reg.MarkSeen(existing, changed)
	}

	removed = reg.Unseen()
	for _, svc := range removed {
		svc.State = registry.Stopping
		svc.Dirty = true
	}

	reg.PropagateDirty()
	return removed, nil
}

// serviceIdentity derives (name, id) for a parsed line: name is the
// command basename (or the source file, for a commandless line), and
// id distinguishes multiple entries that share a name (spec.md §3.1),
// e.g. several `tty` lines each starting a getty on a different
// device. The first declaration of a name keeps the empty id, so a
// config with only one instance of a name behaves exactly as before;
// every later declaration of the same name within this parse is
// numbered in declaration order, which is stable across reloads as
// long as the declaring files and their order don't change.
func serviceIdentity(sl ServiceLine, file string, seen map[string]int) (name, id string) {
	name = serviceBaseName(sl, file)
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name, ""
	}
	return name, strconv.Itoa(n + 1)
}

func serviceBaseName(sl ServiceLine, file string) string {
	if len(sl.Argv) == 0 {
		return file
	}
	base := sl.Argv[0]
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			return base[i+1:]
		}
	}
	return base
}

func newService(name, id string, kind registry.Kind, sl ServiceLine) *registry.Service {
	svc := &registry.Service{
		Name:      name,
		ID:        id,
		Kind:      kind,
		Clean:     true,
		Seen:      true,
	}
	applyServiceLine(svc, kind, sl)
	return svc
}

func applyServiceLine(svc *registry.Service, kind registry.Kind, sl ServiceLine) {
	svc.Kind = kind
	svc.Runlevels = sl.Runlevels
	svc.Condition = sl.Condition
	svc.Descr = sl.Descr
	svc.Attrs.Argv = sl.Argv
	svc.Attrs.User = sl.User
	svc.Attrs.Group = sl.Group
	svc.Attrs.Cgroup = sl.Cgroup
}

// attrsChanged reports whether re-registering an existing service
// with sl would actually change anything observable, so an unchanged
// re-parse doesn't spuriously mark it dirty (spec.md §4.5 step 2).
func attrsChanged(existing *registry.Service, kind registry.Kind, sl ServiceLine) bool {
	if existing.Kind != kind || existing.Runlevels != sl.Runlevels || existing.Descr != sl.Descr {
		return true
	}
	if existing.Attrs.User != sl.User || existing.Attrs.Group != sl.Group || existing.Attrs.Cgroup != sl.Cgroup {
		return true
	}
	if len(existing.Attrs.Argv) != len(sl.Argv) {
		return true
	}
	for i := range sl.Argv {
		if existing.Attrs.Argv[i] != sl.Argv[i] {
			return true
		}
	}
	if fmt.Sprint(existing.Condition) != fmt.Sprint(sl.Condition) {
		return true
	}
	return false
}

// rlimitsEqual compares two resource-limit tables for attrsChanged's
// dirty check; rlimits change process-wide, together, on any `rlimit`
// directive edit, so a shallow map compare is enough.
func rlimitsEqual(a, b map[string]registry.RLimit) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
