package plugin

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gone-svc/initd/internal/registry"
)

// TTYEvent reports a device node appearing or disappearing under the
// watched directory. It carries no registry/scheduler access itself:
// the owning loop applies it via ApplyTTYEvent from its own single
// mutation goroutine (spec.md §5), never from the fsnotify goroutine
// that produced it.
type TTYEvent struct {
	Node    string
	Created bool
}

// NewTTY builds the built-in tty plugin: it watches devDir (normally
// /dev) for device nodes appearing or disappearing and reports each
// change as a TTYEvent on events, the same USB-hotplug pattern as
// plugins/tty.c's watcher() but decoupled from registry/scheduler
// mutation, which the caller must apply on its own mutation goroutine
// (see ApplyTTYEvent). It does not implement getty's own line
// discipline or login prompt; spec.md scopes that out as an external
// collaborator.
func NewTTY(devDir string, events chan<- TTYEvent) *Plugin {
	t := &ttyWatcher{devDir: devDir, events: events}
	return &Plugin{
		Name: "tty",
		IO: &IOWatch{
			Start: t.start,
			Close: t.close,
		},
	}
}

type ttyWatcher struct {
	devDir string
	events chan<- TTYEvent
	fsw    *fsnotify.Watcher
	done   chan struct{}
}

func (t *ttyWatcher) start(ctx *Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(t.devDir); err != nil {
		fsw.Close()
		return err
	}
	t.fsw = fsw
	t.done = make(chan struct{})
	go t.run()
	return nil
}

// run only ever touches fsnotify and t.events; it never reaches into
// a Context, so it carries no registry/scheduler mutation across
// goroutines (spec.md §E).
func (t *ttyWatcher) run() {
	for {
		select {
		case ev, ok := <-t.fsw.Events:
			if !ok {
				return
			}
			t.handle(ev)
		case _, ok := <-t.fsw.Errors:
			if !ok {
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *ttyWatcher) handle(ev fsnotify.Event) {
	node := filepath.Join(t.devDir, filepath.Base(ev.Name))
	switch {
	case ev.Op&fsnotify.Create != 0:
		t.send(TTYEvent{Node: node, Created: true})
	case ev.Op&fsnotify.Remove != 0:
		t.send(TTYEvent{Node: node, Created: false})
	}
}

func (t *ttyWatcher) send(ev TTYEvent) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

// ApplyTTYEvent matches ev against every TTY-kind service's
// Attrs.Argv[0] and marks a matching service dirty (node appeared) or
// stops it (node removed). The caller must run this only from its
// single mutation goroutine.
func ApplyTTYEvent(ctx *Context, ev TTYEvent) {
	for _, svc := range ctx.Reg.All() {
		if svc.Kind != registry.TTY || len(svc.Attrs.Argv) == 0 || svc.Attrs.Argv[0] != ev.Node {
			continue
		}
		if ev.Created {
			svc.Dirty = true
		} else {
			ctx.Sched.Stop(svc)
		}
	}
	ctx.Sched.StepAll()
}

func (t *ttyWatcher) close() error {
	if t.done != nil {
		close(t.done)
	}
	if t.fsw != nil {
		return t.fsw.Close()
	}
	return nil
}
