package sd

import "errors"

// ErrNoSuchFdName is returned when a caller asks for a named socket
// that was neither inherited nor given a fallback bind address.
var ErrNoSuchFdName = errors.New("sd: no inherited file by that name and no fallback address")

// ErrSdNotifyNoSocket reports that NOTIFY_SOCKET was not set: there is
// no external watchdog collaborator to talk to. Callers should treat
// this as "nothing to do", not as a fatal error.
var ErrSdNotifyNoSocket = errors.New("sd: no NOTIFY_SOCKET in environment")
