package plugin

import (
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/gone-svc/initd/internal/registry"
)

// PidfileEvent reports a pidfile's creation/write (Ready, with the pid
// read from it) or removal (not Ready). Like TTYEvent, it carries no
// registry/scheduler access itself - the owning loop applies it via
// ApplyPidfileEvent from its own single mutation goroutine.
type PidfileEvent struct {
	Path  string
	Ready bool
	Pid   int
}

// NewPidfile builds the built-in pidfile plugin: it watches runDir
// (normally /var/run) for pidfile creation and deletion and reports
// each change as a PidfileEvent on events, the same
// inotify-on-IN_CREATE/IN_MODIFY/IN_DELETE pattern as
// plugins/pidfile.c's pidfile_callback() but decoupled from
// registry/scheduler mutation (see ApplyPidfileEvent). It attaches at
// BasefsUp because /var/run must already be mounted and writable,
// matching the original's "depends bootmisc" comment.
func NewPidfile(runDir string, events chan<- PidfileEvent) *Plugin {
	w := &pidfileWatcher{runDir: runDir, events: events}
	return &Plugin{
		Name:    "pidfile",
		Depends: nil,
		Hooks: map[Hook]Callback{
			BasefsUp:  w.setup,
			SvcReconf: w.reconf,
		},
		IO: &IOWatch{
			Start: w.start,
			Close: w.close,
		},
	}
}

type pidfileWatcher struct {
	runDir string
	events chan<- PidfileEvent
	fsw    *fsnotify.Watcher
	done   chan struct{}
}

// setup runs at BasefsUp and only creates runDir; the actual watch
// starts in StartIO so every built-in plugin's io watch begins at the
// same point in the bootstrap sequence.
func (w *pidfileWatcher) setup(ctx *Context) error {
	return os.MkdirAll(w.runDir, 0755)
}

func (w *pidfileWatcher) start(ctx *Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.runDir); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw
	w.done = make(chan struct{})
	go w.run()
	return nil
}

// run only ever touches fsnotify, the filesystem and w.events; it
// never reaches into a Context (spec.md §E).
func (w *pidfileWatcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *pidfileWatcher) handle(ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, ".pid") {
		return
	}
	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.send(PidfileEvent{Path: ev.Name, Ready: true, Pid: readPid(ev.Name)})
	case ev.Op&fsnotify.Remove != 0:
		w.send(PidfileEvent{Path: ev.Name, Ready: false})
	}
}

func (w *pidfileWatcher) send(ev PidfileEvent) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

// ApplyPidfileEvent looks up the service declaring ev.Path as its
// pidfile and marks it ready with the read pid, or clears its ready
// condition on removal. The caller must run this only from its single
// mutation goroutine.
func ApplyPidfileEvent(ctx *Context, ev PidfileEvent) {
	svc := FindByPidFile(ctx.Reg, ev.Path)
	if svc == nil {
		return
	}
	if ev.Ready {
		ctx.Sched.MarkReady(svc, ev.Pid)
	} else {
		ctx.Conds.Clear(svc.ReadyCondition())
	}
	ctx.Sched.StepAll()
}

// reconf reasserts the ready condition for every RUNNING service that
// declares a pidfile but wasn't touched by the reload, so dependents
// gated on that condition don't spuriously drop after `initctl
// reload` - plugins/pidfile.c's pidfile_reconf().
func (w *pidfileWatcher) reconf(ctx *Context) error {
	for _, svc := range ctx.Reg.All() {
		if svc.State != registry.Running || svc.Attrs.PidFile == "" {
			continue
		}
		if svc.Dirty {
			continue
		}
		ctx.Conds.Set(svc.ReadyCondition())
	}
	ctx.Sched.StepAll()
	return nil
}

func (w *pidfileWatcher) close() error {
	if w.done != nil {
		close(w.done)
	}
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// FindByPidFile returns the service declaring path as its pidfile, if
// any.
func FindByPidFile(reg *registry.Registry, path string) *registry.Service {
	for _, svc := range reg.All() {
		if svc.Attrs.PidFile == path {
			return svc
		}
	}
	return nil
}

func readPid(path string) int {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return pid
}
