package sched

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/gone-svc/initd/internal/registry"
)

// defaultEnv matches spec.md §6's fixed environment at service exec.
var defaultEnv = []string{
	"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
	"SHELL=/bin/sh",
	"LOGNAME=root",
	"USER=root",
}

// Spawner forks and signals service child processes. The production
// implementation shells out to os/exec and syscall; tests supply a
// fake to exercise the state machine without touching real processes.
type Spawner interface {
	Spawn(svc *registry.Service) (pid int, err error)
	Signal(pid int, sig syscall.Signal) error
}

// ProcSpawner is the real Spawner, one fork/exec per call.
type ProcSpawner struct{}

func (ProcSpawner) Spawn(svc *registry.Service) (int, error) {
	if len(svc.Attrs.Argv) == 0 {
		return 0, fmt.Errorf("sched: service %s has no argv", svc.Name)
	}

	path, err := exec.LookPath(svc.Attrs.Argv[0])
	if err != nil {
		return 0, err
	}

	dir := svc.Attrs.Dir
	env := append(append([]string{}, defaultEnv...), svc.Attrs.Env...)

	attr := &os.ProcAttr{
		Dir:   dir,
		Env:   env,
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}

	if svc.Attrs.User != "" {
		uid, gid, err := lookupUserGroup(svc.Attrs.User, svc.Attrs.Group)
		if err != nil {
			return 0, err
		}
		attr.Sys.Credential = &syscall.Credential{Uid: uid, Gid: gid}
	}

	proc, err := os.StartProcess(path, svc.Attrs.Argv, attr)
	if err != nil {
		return 0, err
	}

	for resource, lim := range svc.Attrs.RLimits {
		if err := setRlimit(proc.Pid, resource, lim); err != nil {
			logger.WARN("rlimit not applied", "service", svc.Name, "resource", resource, "error", err)
		}
	}

	return proc.Pid, nil
}

// rlimitResources maps the directive's resource keywords
// (internal/config's closed set) onto the matching RLIMIT_* constant.
// Go's os/exec has no pre-exec hook to set a child's limits before it
// runs, so this is applied via syscall.Prlimit against the already
// running child - a ceiling from here on, not a guarantee against a
// resource already consumed during its first instructions.
var rlimitResources = map[string]int{
	"cpu":        syscall.RLIMIT_CPU,
	"fsize":      syscall.RLIMIT_FSIZE,
	"data":       syscall.RLIMIT_DATA,
	"stack":      syscall.RLIMIT_STACK,
	"core":       syscall.RLIMIT_CORE,
	"rss":        syscall.RLIMIT_RSS,
	"nproc":      syscall.RLIMIT_NPROC,
	"nofile":     syscall.RLIMIT_NOFILE,
	"memlock":    syscall.RLIMIT_MEMLOCK,
	"as":         syscall.RLIMIT_AS,
	"locks":      syscall.RLIMIT_LOCKS,
	"sigpending": syscall.RLIMIT_SIGPENDING,
	"msgqueue":   syscall.RLIMIT_MSGQUEUE,
	"nice":       syscall.RLIMIT_NICE,
	"rtprio":     syscall.RLIMIT_RTPRIO,
	"rttime":     syscall.RLIMIT_RTTIME,
}

func setRlimit(pid int, resource string, lim registry.RLimit) error {
	code, ok := rlimitResources[resource]
	if !ok {
		return fmt.Errorf("sched: unknown rlimit resource %q", resource)
	}
	rl := syscall.Rlimit{Cur: lim.Soft, Max: lim.Hard}
	return syscall.Prlimit(pid, code, &rl, nil)
}

func (ProcSpawner) Signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	return syscall.Kill(pid, sig)
}

func lookupUserGroup(username, groupname string) (uid, gid uint32, err error) {
	u, err := user.Lookup(username)
	if err != nil {
		return 0, 0, err
	}
	uidN, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, err
	}
	gidN, err := strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, err
	}
	if groupname != "" {
		g, err := user.LookupGroup(groupname)
		if err != nil {
			return 0, 0, err
		}
		if gidN, err = strconv.Atoi(g.Gid); err != nil {
			return 0, 0, err
		}
	}
	return uint32(uidN), uint32(gidN), nil
}
