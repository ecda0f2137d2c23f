package loop

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gone-svc/initd/internal/cgroup"
	"github.com/gone-svc/initd/internal/cond"
	"github.com/gone-svc/initd/internal/config"
	"github.com/gone-svc/initd/internal/ctrl"
	"github.com/gone-svc/initd/internal/log"
	"github.com/gone-svc/initd/internal/plugin"
	"github.com/gone-svc/initd/internal/registry"
	"github.com/gone-svc/initd/internal/runlevel"
	"github.com/gone-svc/initd/internal/sched"
	"github.com/gone-svc/initd/internal/sd"
	"github.com/gone-svc/initd/internal/signals"
)

var logger = log.New("loop")

const tickInterval = 60 * time.Second

// Config is everything Run needs to know before the first line of
// configuration is parsed.
type Config struct {
	ConfigDir          string // directory scanned for *.conf, spec.md §4.5
	RunDir             string // /var/run equivalent: condition mirror + pidfiles
	CtrlSockPath       string // UNIX socket path for the client control server
	CtrlSockName       string // systemd socket-activation name for the same
	PluginManifestPath string // optional YAML override of built-in plugin ordering
	CgroupRoot         string // cgroup v2 mount point reconciled against `cgroup NAME:` directives, defaults to /sys/fs/cgroup/initd
	Overrides          CmdlineOverrides
}

// CmdlineOverrides mirrors original_source/src/conf.c's parse_arg: a
// handful of argv/kernel-cmdline tokens that take priority over
// whatever the configuration directory says, because the operator
// typed them for this one boot.
type CmdlineOverrides struct {
	Runlevel int  // 1-9 excluding 6, 0 means "not set"
	Single   bool // "single" or "S": force runlevel 1
	Rescue   bool // "rescue" or "recover"
	Debug    *bool
}

func (l *Loop) applyOverrides() {
	o := l.cfg.Overrides
	if o.Debug != nil {
		l.global.Debug = *o.Debug
	}
	if o.Rescue {
		l.global.Rescue = true
	}
	if o.Single {
		l.global.SingleUser = true
		l.global.DefaultRunlevel = 1
	} else if o.Runlevel != 0 {
		l.global.DefaultRunlevel = o.Runlevel
	}
}

// Loop wires cond/registry/sched/config/ctrl/plugin/runlevel/signals
// together into the single goroutine spec.md §5 demands. Every
// exported method except Run is safe to call from any goroutine: they
// hand their work to the loop goroutine via Exec and block for the
// result, the same way the control server's per-connection goroutines
// do.
type Loop struct {
	cfg Config

	Reg      *registry.Registry
	Conds    *cond.Store
	Sched    *sched.Scheduler
	Plugins  *plugin.Dispatcher
	Runlevel *runlevel.Controller
	Ctrl     *ctrl.Server
	Cgroups  *cgroup.Reconciler

	global config.GlobalConfig

	ttyEvents     chan plugin.TTYEvent
	pidfileEvents chan plugin.PidfileEvent

	execCh  chan execRequest
	stop    chan struct{}
	running chan struct{} // closed once Run's select loop is ready to receive on execCh
	exited  chan struct{}
}

type execRequest struct {
	fn   func()
	done chan struct{}
}

// New builds a Loop ready for Run. Nothing is parsed or started yet.
func New(cfg Config) *Loop {
	reg := registry.New()
	conds := cond.New(filepath.Join(cfg.RunDir, "cond"))
	sc := sched.New(reg, conds)
	plugins := plugin.New(&plugin.Context{Reg: reg, Conds: conds, Sched: sc})

	cgroupRoot := cfg.CgroupRoot
	if cgroupRoot == "" {
		cgroupRoot = "/sys/fs/cgroup/initd"
	}

	l := &Loop{
		cfg:           cfg,
		Reg:           reg,
		Conds:         conds,
		Sched:         sc,
		Plugins:       plugins,
		Cgroups:       cgroup.New(cgroupRoot),
		global:        config.DefaultGlobalConfig(),
		ttyEvents:     make(chan plugin.TTYEvent, 16),
		pidfileEvents: make(chan plugin.PidfileEvent, 16),
		execCh:        make(chan execRequest),
		stop:          make(chan struct{}, 1),
		running:       make(chan struct{}),
		exited:        make(chan struct{}),
	}

	rl := runlevel.New(l.global.DefaultRunlevel, reg, conds, sc, plugins)
	rl.ReloadFunc = l.reloadConfig
	rl.ShutdownFunc = l.runShutdownHelper
	l.Runlevel = rl

	l.Ctrl = &ctrl.Server{
		Addr:           cfg.CtrlSockPath,
		ListenerFdName: cfg.CtrlSockName,
		Reg:            reg,
		Conds:          conds,
		Sched:          sc,
		Handlers:       rl,
		Exec:           l.exec,
	}

	l.registerBuiltinPlugins()
	return l
}

func (l *Loop) registerBuiltinPlugins() {
	builtins := []*plugin.Plugin{
		plugin.NewPidfile(l.cfg.RunDir, l.pidfileEvents),
		plugin.NewTTY("/dev", l.ttyEvents),
		plugin.NewDbusDep(),
	}

	if l.cfg.PluginManifestPath != "" {
		if m, err := plugin.LoadManifest(l.cfg.PluginManifestPath); err != nil {
			logger.WARN("plugin manifest not applied", "path", l.cfg.PluginManifestPath, "error", err)
		} else {
			builtins = m.Apply(builtins)
		}
	}

	for _, p := range builtins {
		if err := l.Plugins.Register(p); err != nil {
			logger.ERROR("plugin registration failed", "plugin", p.Name, "error", err)
		}
	}
}

// exec runs fn on the loop goroutine and blocks until it completes.
// Safe to call from any goroutine. Before Run's select loop is up, or
// after it has torn down, fn just runs inline: there is no competing
// mutator to serialize against either side of Run's lifetime.
func (l *Loop) exec(fn func()) {
	select {
	case <-l.running:
	default:
		fn()
		return
	}
	select {
	case <-l.exited:
		fn()
		return
	default:
	}
	done := make(chan struct{})
	select {
	case l.execCh <- execRequest{fn: fn, done: done}:
		<-done
	case <-l.exited:
		fn()
	}
}

// reloadConfig fully re-parses cfg.ConfigDir and reconciles it into
// Reg via the mark-and-sweep algorithm (spec.md §4.5). It is used both
// for the initial load and every later RELOAD/SIGHUP, matching
// original_source/src/conf.c's "always re-read everything" model;
// Bootstrap gates the directives that only apply before the first
// runlevel change (hostname, network, runparts, the initial runlevel
// directive itself).
func (l *Loop) reloadConfig() (removed int, err error) {
	p := config.NewParser()
	p.Bootstrap = l.Sched.Runlevel() == 0

	files, err := config.ScanDirectory(l.cfg.ConfigDir)
	if err != nil {
		return 0, fmt.Errorf("loop: scan %s: %w", l.cfg.ConfigDir, err)
	}
	for _, f := range files {
		if err := p.ParseFile(f); err != nil {
			logger.WARN("config parse error", "file", f, "error", err)
		}
	}
	for _, inc := range p.Includes() {
		if err := p.ParseFile(inc); err != nil {
			logger.WARN("include parse error", "file", inc, "error", err)
		}
	}

	gc, err := p.Global(config.DefaultGlobalConfig())
	if err != nil {
		return 0, fmt.Errorf("loop: decode global config: %w", err)
	}
	l.global = gc

	if env, err := config.LoadEnvFiles(filepath.Join(l.cfg.ConfigDir, "env.d")); err != nil {
		logger.WARN("env file load failed", "error", err)
	} else {
		applyEnv(env)
	}

	out, err := p.Reload(l.Reg)
	if err != nil {
		return 0, fmt.Errorf("loop: reconcile registry: %w", err)
	}

	created, removedGroups, err := l.Cgroups.Reconcile(p.Cgroups())
	if err != nil {
		logger.WARN("cgroup reconciliation failed", "error", err)
	} else if len(created) > 0 || len(removedGroups) > 0 {
		logger.INFO("cgroup tree reconciled", "created", created, "removed", removedGroups)
	}

	return len(out), nil
}

// bootstrap performs the one-time startup sequence: load the
// condition store's disk mirror, parse configuration for the first
// time, and apply the hostname directive - everything that precedes
// the first runlevel change.
func (l *Loop) bootstrap() error {
	if err := l.Conds.Load(); err != nil {
		logger.WARN("condition store disk load failed", "error", err)
	}
	if _, err := l.reloadConfig(); err != nil {
		return err
	}
	l.applyOverrides()
	if l.global.Hostname != "" {
		if err := syscall.Sethostname([]byte(l.global.Hostname)); err != nil {
			logger.WARN("sethostname failed", "hostname", l.global.Hostname, "error", err)
		}
	}
	if l.global.Debug {
		l.Runlevel.ToggleDebug()
	}
	return nil
}

// bootSequence runs the named hook points in order (spec.md §4.8),
// with the network/runparts helpers spliced in at the point finit
// itself calls them from its own bootstrap (network_init() between
// HOOK_NETWORK_UP's producers and service startup, run-parts just
// before declaring HOOK_SYSTEM_UP).
func (l *Loop) bootSequence() {
	l.Plugins.Run(plugin.Banner)
	l.Plugins.Run(plugin.RootfsUp)
	l.Plugins.Run(plugin.BasefsUp)
	for _, err := range l.Plugins.StartIO() {
		logger.WARN("plugin io watch failed to start", "error", err)
	}

	l.runHelper("network helper", l.global.NetworkHelper)
	l.Plugins.Run(plugin.NetworkUp)

	l.Runlevel.SetRunlevel(l.global.DefaultRunlevel)
	l.Plugins.Run(plugin.SvcUp)
	l.Sched.StepAll()

	l.runHelper("runparts helper", l.global.RunpartsHelper)
	l.Plugins.Run(plugin.SystemUp)
}

func (l *Loop) runHelper(label, path string) {
	if path == "" {
		return
	}
	if err := exec.Command(path).Run(); err != nil {
		logger.WARN(label+" failed", "path", path, "error", err)
	}
}

// runShutdownHelper delegates the actual halt/poweroff/reboot to an
// external collaborator, spec.md §4.7's "delegated to collaborators".
func (l *Loop) runShutdownHelper(mode runlevel.Mode) error {
	if l.global.ShutdownHelper == "" {
		logger.NOTICE("no shutdown helper configured, staying up", "mode", mode)
		return nil
	}
	return exec.Command(l.global.ShutdownHelper, mode.String()).Run()
}

// Run blocks, serving the control socket and driving the event loop
// until Exit is called. It is an error to call Run more than once on
// the same Loop.
func (l *Loop) Run() error {
	if err := l.bootstrap(); err != nil {
		return fmt.Errorf("loop: bootstrap: %w", err)
	}

	if l.Ctrl.Addr != "" || l.Ctrl.ListenerFdName != "" {
		if err := l.Ctrl.Listen(); err != nil {
			return fmt.Errorf("loop: control socket: %w", err)
		}
		go func() {
			if err := l.Ctrl.Serve(); err != nil {
				logger.NOTICE("control server stopped", "error", err)
			}
		}()
	}

	sigW := signals.Watch(signals.Mappings{
		syscall.SIGHUP:  signals.Reload,
		syscall.SIGUSR1: signals.Halt,
		syscall.SIGUSR2: signals.Poweroff,
		syscall.SIGINT:  signals.Reboot,
		syscall.SIGCHLD: signals.ChildExited,
		syscall.SIGTERM: signals.Terminate,
	})
	defer sigW.Stop()

	var cfgChanged <-chan string
	var cfgErrs <-chan error
	cfgWatcher, err := config.NewWatcher(l.cfg.ConfigDir)
	if err != nil {
		logger.WARN("configuration directory watch disabled", "error", err)
	} else {
		cfgChanged, cfgErrs = cfgWatcher.Changed, cfgWatcher.Errors
		defer cfgWatcher.Close()
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	l.bootSequence()
	close(l.running)

	for {
		select {
		case req := <-l.execCh:
			req.fn()
			close(req.done)

		case ev, ok := <-sigW.Events():
			if !ok {
				continue
			}
			if ev.Kind == signals.ChildExited {
				l.Sched.ReapAll()
				l.Sched.StepAll()
				continue
			}
			l.Runlevel.HandleSignal(ev)

		case ev, ok := <-l.Conds.Events():
			if !ok {
				continue
			}
			l.Reg.PropagateDirty()
			if ev.State == cond.On {
				for _, svc := range l.Reg.ReverseDeps()[ev.Key] {
					if svc.State == registry.Done {
						svc.Dirty = true
					}
				}
			}
			l.Sched.StepAll()
			logger.DEBUG("condition changed", "key", ev.Key, "state", ev.State)

		case path, ok := <-cfgChanged:
			if !ok {
				cfgChanged = nil
				continue
			}
			logger.INFO("configuration changed, reloading", "path", path)
			if _, err := l.Runlevel.Reload(); err != nil {
				logger.ERROR("reload failed", "error", err)
			}

		case err, ok := <-cfgErrs:
			if !ok {
				cfgErrs = nil
				continue
			}
			logger.WARN("config watch error", "error", err)

		case now := <-ticker.C:
			l.Sched.Tick(now)

		case ev := <-l.ttyEvents:
			plugin.ApplyTTYEvent(l.Plugins.Context(), ev)

		case ev := <-l.pidfileEvents:
			plugin.ApplyPidfileEvent(l.Plugins.Context(), ev)

		case <-l.stop:
			l.Plugins.Close()
			if err := l.Ctrl.Close(); err != nil {
				logger.WARN("control server close error", "error", err)
			}
			close(l.exited)
			return nil
		}
	}
}

// Reload re-parses configuration from outside the loop goroutine and
// waits for the result.
func (l *Loop) Reload() (removed int, err error) {
	l.exec(func() {
		removed, err = l.Runlevel.Reload()
	})
	return removed, err
}

// Exit asks Run to return. Safe to call multiple times; only the
// first call before Run observes it has any effect.
func (l *Loop) Exit() {
	select {
	case l.stop <- struct{}{}:
	default:
	}
}

// Wait blocks until Run has returned.
func (l *Loop) Wait() { <-l.exited }

// ReplaceProcess re-execs the current binary, handing the control
// socket's listening fd down via internal/sd so a reload/upgrade never
// drops an in-flight client connection - spec.md §4.6/§9, grounded on
// daemon.ReplaceProcess/sd.ReplaceProcess.
func (l *Loop) ReplaceProcess(sig syscall.Signal) (int, error) {
	name := l.cfg.CtrlSockName
	if name == "" {
		name = "ctrl"
	}
	if err := l.Ctrl.Export(name); err != nil {
		return 0, fmt.Errorf("loop: export control socket: %w", err)
	}
	return sd.ReplaceProcess(sig)
}

func applyEnv(pairs []string) {
	for _, kv := range pairs {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			logger.WARN("setenv failed", "key", key, "error", err)
		}
	}
}
