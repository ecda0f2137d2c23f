// Package sd provides socket-activation-style file descriptor
// passthrough across the supervisor's self re-exec (spec.md §9's
// ReplaceProcess) and an optional systemd-style notify socket for an
// external watchdog collaborator (spec.md treats the watchdog as an
// external producer; this package only speaks the wire protocol of
// handing it sockets and status lines).
//
// It is a trimmed adaptation of gone/sd: the flock-protected unix
// socket unlink policy, the FDSTORE-over-notify-socket fd passing and
// the pre-Go-1.11 nonblocking-accept workarounds are dropped - none
// of them are exercised by a single control socket with a handful of
// short local connections.
package sd
