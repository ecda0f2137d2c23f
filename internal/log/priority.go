package log

// Priority is a syslog severity level, source-compatible in ordering
// with log/syslog's Priority scale, reproduced here so this package
// has no dependency on syslog's Unix-socket transport.
type Priority int

// Severity levels, from /usr/include/sys/syslog.h. Same ordering on
// Linux, BSD and macOS.
const (
	LOG_EMERG Priority = iota
	LOG_ALERT
	LOG_CRIT
	LOG_ERR
	LOG_WARNING
	LOG_NOTICE
	LOG_INFO
	LOG_DEBUG
)

var names = [...]string{
	LOG_EMERG:   "emerg",
	LOG_ALERT:   "alert",
	LOG_CRIT:    "crit",
	LOG_ERR:     "error",
	LOG_WARNING: "warning",
	LOG_NOTICE:  "notice",
	LOG_INFO:    "info",
	LOG_DEBUG:   "debug",
}

func (p Priority) String() string {
	if p < LOG_EMERG || p > LOG_DEBUG {
		return "unknown"
	}
	return names[p]
}
