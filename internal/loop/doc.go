// Package loop is the single event loop of spec.md §4.1/§5: it owns
// the one goroutine allowed to mutate internal/registry,
// internal/cond and internal/sched, and turns every other goroutine
// (signals, fsnotify, the control socket's accept loop) into producers
// of typed events it selects over.
package loop
