package plugin

import (
	"fmt"

	"github.com/gone-svc/initd/internal/cond"
	"github.com/gone-svc/initd/internal/registry"
	"github.com/gone-svc/initd/internal/sched"
)

// Hook identifies one of the named points in the bootstrap/shutdown
// sequence a plugin may attach to (spec.md §4.8).
type Hook int

const (
	Banner Hook = iota
	RootfsUp
	BasefsUp
	NetworkUp
	SvcUp
	SystemUp
	SvcReconf // fired after a RELOAD, not one of the bootstrap duals
	RootfsDown
	BasefsDown
	NetworkDown
	SvcDown
	SystemDown
)

func (h Hook) String() string {
	switch h {
	case Banner:
		return "banner"
	case RootfsUp:
		return "rootfs-up"
	case BasefsUp:
		return "basefs-up"
	case NetworkUp:
		return "network-up"
	case SvcUp:
		return "svc-up"
	case SystemUp:
		return "system-up"
	case SvcReconf:
		return "svc-reconf"
	case RootfsDown:
		return "rootfs-down"
	case BasefsDown:
		return "basefs-down"
	case NetworkDown:
		return "network-down"
	case SvcDown:
		return "svc-down"
	case SystemDown:
		return "system-down"
	default:
		return "unknown"
	}
}

// Context is what every hook callback gets to mutate: the registry and
// condition store exactly like configuration, plus the scheduler for
// plugins that need to drive a state transition directly (the pidfile
// collaborator's MarkReady call).
type Context struct {
	Reg   *registry.Registry
	Conds *cond.Store
	Sched *sched.Scheduler
}

// Callback is one plugin's behavior at a single hook point.
type Callback func(ctx *Context) error

// IOWatch lets a plugin register an fd-with-callback alongside its
// hook callbacks (spec.md §4.8 "optional fd-with-callback"). Close
// stops the watch; it is called during Dispatcher shutdown.
type IOWatch struct {
	Start func(ctx *Context) error
	Close func() error
}

// Plugin is one built-in module: a name, a dependency list (other
// plugin names that must run first at any shared hook), a callback
// per hook it cares about, and an optional io watch.
type Plugin struct {
	Name    string
	Depends []string
	Hooks   map[Hook]Callback
	IO      *IOWatch
}

func (p *Plugin) String() string { return fmt.Sprintf("plugin(%s)", p.Name) }
