package sd

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envNotifySocket = "NOTIFY_SOCKET"
	envWatchdogUsec = "WATCHDOG_USEC"
	envWatchdogPid  = "WATCHDOG_PID"
)

var (
	notifySocket     string
	watchdogEnabled  bool
	watchdogDuration time.Duration
)

func init() {
	if durStr := os.Getenv(envWatchdogUsec); durStr != "" {
		if usec, err := strconv.Atoi(durStr); err == nil {
			watchdogDuration = time.Duration(usec) * time.Microsecond
		}
	}
	if pidStr := os.Getenv(envWatchdogPid); pidStr != "" && watchdogDuration != 0 {
		if pid, err := strconv.Atoi(pidStr); err == nil && pid == os.Getpid() {
			watchdogEnabled = true
		}
	}
	if notifySocket = os.Getenv(envNotifySocket); strings.HasPrefix(notifySocket, "@") {
		notifySocket = "\x00" + notifySocket[1:] // abstract socket namespace
	}
}

// WatchdogEnabled reports whether the collaborator asked us to ping
// it periodically, and how often.
func WatchdogEnabled() (enabled bool, interval time.Duration) {
	return watchdogEnabled, watchdogDuration
}

// Notify sends newline-joined status lines (e.g. "READY=1",
// "STATUS=...", "WATCHDOG=1") to the notify socket. Returns
// ErrSdNotifyNoSocket if there is no collaborator listening - callers
// should log and continue, never treat it as fatal.
func Notify(lines ...string) error {
	if notifySocket == "" {
		return ErrSdNotifyNoSocket
	}

	dst := &net.UnixAddr{Name: notifySocket, Net: "unixgram"}
	src := &net.UnixAddr{Name: "", Net: "unixgram"}

	conn, err := net.DialUnix("unixgram", src, dst)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write([]byte(strings.Join(lines, "\n")))
	return err
}

// NotifyReady tells the collaborator the supervisor has finished
// bringing up its initial service set.
func NotifyReady() error { return Notify("READY=1") }

// NotifyStopping tells the collaborator a controlled shutdown began.
func NotifyStopping() error { return Notify("STOPPING=1") }

// NotifyWatchdog pings the watchdog keepalive, to be called on the
// schedule WatchdogEnabled reports.
func NotifyWatchdog() error { return Notify("WATCHDOG=1") }
