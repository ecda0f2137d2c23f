package sd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

const (
	envListenFds     = "LISTEN_FDS"
	envListenPid     = "LISTEN_PID"
	envListenFdNames = "LISTEN_FDNAMES"
	sdListenFdStart  = 3
)

// filer is satisfied by anything that can hand over a dup'd *os.File,
// e.g. *net.UnixConn, *net.UnixListener.
type filer interface {
	File() (*os.File, error)
}

type namedFile struct {
	name string
	f    *os.File
}

type state struct {
	mu sync.Mutex

	available []namedFile
	active    map[string]*os.File

	inheritOnce sync.Once
}

var fdState = &state{active: make(map[string]*os.File)}

func init() {
	fdState.inherit()
}

// inherit reads LISTEN_FDS/LISTEN_PID/LISTEN_FDNAMES once, at most
// once per process, the same way systemd's sd_listen_fds(3) does.
func (s *state) inherit() {
	s.inheritOnce.Do(func() {
		defer os.Unsetenv(envListenPid)
		defer os.Unsetenv(envListenFds)
		defer os.Unsetenv(envListenFdNames)

		countStr := os.Getenv(envListenFds)
		if countStr == "" {
			return
		}

		if pidStr := os.Getenv(envListenPid); pidStr != "" {
			pid, err := strconv.Atoi(pidStr)
			if err != nil || (pid != 0 && pid != os.Getpid()) {
				return
			}
		}

		count, err := strconv.Atoi(countStr)
		if err != nil || count <= 0 {
			return
		}

		var names []string
		if namesStr := os.Getenv(envListenFdNames); namesStr != "" {
			names = strings.Split(namesStr, ":")
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for i := 0; i < count; i++ {
			fd := uintptr(sdListenFdStart + i)
			name := ""
			if i < len(names) {
				name = names[i]
			}
			f := os.NewFile(fd, name)
			if f == nil {
				continue
			}
			s.available = append(s.available, namedFile{name: name, f: f})
		}
	})
}

// ListenFdsWithNames reports how many file descriptors were inherited
// and under which names, without handing out the files themselves.
func ListenFdsWithNames() (int, []string, error) {
	fdState.mu.Lock()
	defer fdState.mu.Unlock()

	names := make([]string, len(fdState.available))
	for i, nf := range fdState.available {
		names[i] = nf.name
	}
	return len(fdState.available), names, nil
}

// FileWith claims the first inherited file descriptor registered
// under name, moving it from "available" to "active" so it survives
// Cleanup(). ok is false if no such descriptor was inherited.
func FileWith(name string) (f *os.File, ok bool, err error) {
	fdState.mu.Lock()
	defer fdState.mu.Unlock()

	for i, nf := range fdState.available {
		if nf.name == name {
			fdState.available = append(fdState.available[:i], fdState.available[i+1:]...)
			fdState.active[name] = nf.f
			return nf.f, true, nil
		}
	}
	return nil, false, nil
}

// Export registers f as the current active descriptor for name so a
// subsequent StartProcess call passes it on to the replacement
// process. f is typically a *net.UnixListener or *net.UnixConn.
func Export(name string, f filer) error {
	file, err := f.File()
	if err != nil {
		return fmt.Errorf("sd: export %s: %w", name, err)
	}

	fdState.mu.Lock()
	fdState.active[name] = file
	fdState.mu.Unlock()
	return nil
}

// Forget drops name from the active set, e.g. when a connection it
// was tracking for reload-survival has closed on its own.
func Forget(name string) {
	fdState.mu.Lock()
	if f, ok := fdState.active[name]; ok {
		f.Close()
		delete(fdState.active, name)
	}
	fdState.mu.Unlock()
}

// Cleanup closes every inherited descriptor nothing has claimed with
// FileWith yet. Call once the first generation of servers has
// finished binding its listeners.
func Cleanup() {
	fdState.mu.Lock()
	defer fdState.mu.Unlock()

	for _, nf := range fdState.available {
		nf.f.Close()
	}
	fdState.available = nil
}

// Reset moves the current active set back into "available" (as if
// freshly inherited) and clears "active", so the next reload
// generation can re-claim the same descriptors by name.
func Reset() {
	fdState.mu.Lock()
	defer fdState.mu.Unlock()

	for name, f := range fdState.active {
		fdState.available = append(fdState.available, namedFile{name: name, f: f})
	}
	fdState.active = make(map[string]*os.File)
}

func activeFiles() []namedFile {
	fdState.mu.Lock()
	defer fdState.mu.Unlock()

	out := make([]namedFile, 0, len(fdState.active))
	for name, f := range fdState.active {
		out = append(out, namedFile{name: name, f: f})
	}
	return out
}
