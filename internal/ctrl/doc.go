// Package ctrl implements the UNIX-socket client control protocol
// server (spec.md §4.6): a fixed-size wire record, a closed set of
// commands, and the job-string selector grammar used by
// START_SVC/STOP_SVC/RESTART_SVC/SVC_QUERY/SVC_FIND. The persistent,
// socket-activation-aware connection handling follows
// daemon/ctrl/ctrl.go's shape; the wire layout and command semantics
// follow original_source/src/api.c and spec.md §6.
package ctrl
