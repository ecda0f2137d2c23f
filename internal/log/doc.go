// Package log is a small leveled, structured logger for the supervisor
// and its internal packages. It is not a general purpose logging
// library: it exists so that every component logs through the same
// syslog-numbered level scale and the same key/value event shape,
// with one swappable sink.
package log
