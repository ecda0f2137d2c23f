// Package cond implements the tri-state condition store: a dotted-key
// namespace (service/foo/ready, net/eth0/up, usr/<name>, ...) whose
// values gate service state transitions. The in-memory map is
// authoritative; a parallel filesystem layout (empty marker files
// under a private root, FLUX tracked by a shadow subtree) exists only
// so an external observer - or a restarted supervisor inspecting its
// own prior state - can read condition state without talking to the
// control socket. No finit source file covers this; the layout and
// operations below follow the condition engine design directly.
package cond
