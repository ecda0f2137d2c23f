package sd

import (
	"net"
	"os"
)

// NamedListenUnix returns the unix listener inherited under name, if
// any, otherwise binds a fresh one at addr - removing a stale socket
// file first, the same tradeoff gone/sd calls
// UnixSocketUnlinkPolicySocket: only unlink a path that is actually a
// socket, never a regular file or directory that happens to be there.
func NamedListenUnix(name, network string, addr *net.UnixAddr) (net.Listener, error) {
	if name != "" {
		if f, ok, err := FileWith(name); err != nil {
			return nil, err
		} else if ok {
			l, err := net.FileListener(f)
			if err != nil {
				f.Close()
				return nil, err
			}
			return l, nil
		}
	}

	if addr == nil {
		return nil, ErrNoSuchFdName
	}

	if st, err := os.Lstat(addr.Name); err == nil && st.Mode()&os.ModeSocket != 0 {
		os.Remove(addr.Name)
	}

	return net.ListenUnix(network, addr)
}
