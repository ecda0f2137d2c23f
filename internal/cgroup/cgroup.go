// Package cgroup reconciles the tree declared by `cgroup NAME props`
// directives (spec.md §4.5 reload step 4, "reconcile cgroup tree (create
// new, remove unused)") against the cgroup v2 unified hierarchy.
package cgroup

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gone-svc/initd/internal/log"
)

var logger = log.New("cgroup")

// Reconciler manages one directory's worth of named cgroups under
// Root, normally a subdirectory of /sys/fs/cgroup.
type Reconciler struct {
	Root string
}

// New returns a Reconciler rooted at root.
func New(root string) *Reconciler {
	return &Reconciler{Root: root}
}

// Reconcile creates a directory (and writes its declared controller
// properties) for every name in groups, and removes any directory
// under Root that is no longer declared. groups maps a cgroup name to
// its comma-joined "controller.prop=value" property list, the shape
// Parser.Cgroups returns. The full desired set is supplied every call,
// the same mark-and-sweep-by-diff shape internal/config.Reload uses
// for services.
func (r *Reconciler) Reconcile(groups map[string]string) (created, removed []string, err error) {
	if err := os.MkdirAll(r.Root, 0755); err != nil {
		return nil, nil, err
	}

	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return nil, nil, err
	}

	for name, props := range groups {
		dir := filepath.Join(r.Root, name)
		existed := dirExists(entries, name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.WARN("cgroup create failed", "name", name, "error", err)
			continue
		}
		if !existed {
			created = append(created, name)
		}
		applyProps(dir, name, props)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, want := groups[e.Name()]; want {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.Root, e.Name())); err != nil {
			logger.WARN("cgroup removal failed", "name", e.Name(), "error", err)
			continue
		}
		removed = append(removed, e.Name())
	}

	return created, removed, nil
}

func dirExists(entries []os.DirEntry, name string) bool {
	for _, e := range entries {
		if e.IsDir() && e.Name() == name {
			return true
		}
	}
	return false
}

// applyProps writes each "controller.prop:value" (or
// "controller.prop=value") pair as a file write to dir/controller.prop,
// the cgroup v2 convention (e.g. "memory.max:256M" -> write "256M" to
// <dir>/memory.max).
func applyProps(dir, name, props string) {
	if props == "" {
		return
	}
	for _, pair := range strings.Split(props, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			kv = strings.SplitN(pair, ":", 2)
		}
		if len(kv) != 2 {
			logger.WARN("cgroup property skipped, not key=value", "group", name, "prop", pair)
			continue
		}
		path := filepath.Join(dir, kv[0])
		if err := os.WriteFile(path, []byte(kv[1]), 0644); err != nil {
			logger.WARN("cgroup property write failed", "group", name, "file", path, "error", err)
		}
	}
}
