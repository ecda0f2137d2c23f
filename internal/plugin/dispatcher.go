package plugin

import (
	"fmt"
	"sort"

	"github.com/gone-svc/initd/internal/log"
)

var logger = log.New("plugin")

// Dispatcher holds the registered plugin set and runs hooks across it
// in dependency order (spec.md §4.8). Not goroutine-safe; Register
// happens at startup before the event loop begins, Run is called only
// from the loop goroutine.
type Dispatcher struct {
	byName map[string]*Plugin
	order  []string // topological order, recomputed on Register
	ctx    *Context
}

// New returns an empty Dispatcher driving callbacks against ctx.
func New(ctx *Context) *Dispatcher {
	return &Dispatcher{byName: make(map[string]*Plugin), ctx: ctx}
}

// Context returns the Context every hook and io watch runs against,
// for a caller that needs to apply an IOWatch-reported event (e.g.
// ApplyTTYEvent/ApplyPidfileEvent) from the same mutation goroutine.
func (d *Dispatcher) Context() *Context { return d.ctx }

// Register adds p to the dispatcher and recomputes the run order. It
// is an error to register the same name twice or to close a
// dependency cycle; a dependency on a name that is not registered is
// ignored.
func (d *Dispatcher) Register(p *Plugin) error {
	if _, ok := d.byName[p.Name]; ok {
		return fmt.Errorf("plugin: %s already registered", p.Name)
	}
	d.byName[p.Name] = p
	order, err := topoSort(d.byName)
	if err != nil {
		delete(d.byName, p.Name)
		return err
	}
	d.order = order
	return nil
}

// Unregister removes a plugin by name, closing its io watch if any.
func (d *Dispatcher) Unregister(name string) {
	if p, ok := d.byName[name]; ok && p.IO != nil && p.IO.Close != nil {
		p.IO.Close()
	}
	delete(d.byName, name)
	if order, err := topoSort(d.byName); err == nil {
		d.order = order
	}
}

// Run invokes every registered plugin's callback for h, in topological
// order; it does not start IO watches (StartIO does). Errors are
// collected, not fatal —
// one misbehaving plugin must not stall the bootstrap sequence.
func (d *Dispatcher) Run(h Hook) []error {
	var errs []error
	for _, name := range d.order {
		p := d.byName[name]
		cb, ok := p.Hooks[h]
		if !ok {
			continue
		}
		if err := cb(d.ctx); err != nil {
			logger.ERROR("plugin hook failed", "plugin", p.Name, "hook", h.String(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %s: %w", p.Name, h, err))
		}
	}
	return errs
}

// StartIO starts every registered plugin's io watch, if it has one.
// Called once after BasefsUp, when /var/run-style paths are expected
// to exist.
func (d *Dispatcher) StartIO() []error {
	var errs []error
	for _, name := range d.order {
		p := d.byName[name]
		if p.IO == nil || p.IO.Start == nil {
			continue
		}
		if err := p.IO.Start(d.ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: io: %w", p.Name, err))
		}
	}
	return errs
}

// Close stops every plugin's io watch, in reverse dependency order.
func (d *Dispatcher) Close() {
	for i := len(d.order) - 1; i >= 0; i-- {
		p := d.byName[d.order[i]]
		if p.IO != nil && p.IO.Close != nil {
			p.IO.Close()
		}
	}
}

// topoSort orders plugins so that every name in a plugin's Depends
// list precedes it. A dependency on an unregistered name is silently
// treated as already satisfied (the real finit plugins depend on
// bootmisc/netlink, collaborators this supervisor doesn't itself
// register); a cycle is reported as an error.
func topoSort(byName map[string]*Plugin) ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(byName))
	var order []string

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("plugin: dependency cycle at %s", name)
		}
		color[name] = gray
		p := byName[name]
		deps := append([]string{}, p.Depends...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := byName[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
