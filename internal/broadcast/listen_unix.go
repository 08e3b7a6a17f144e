//go:build !windows

package broadcast

import (
	"net"
	"os"
)

// listen opens the broadcast socket on POSIX as a Unix domain socket, mode
// 0600. Stale sockets from a prior, uncleanly-stopped daemon are removed
// first, same as the teacher's own socket-path handling.
func listen(path string) (net.Listener, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, err
	}
	return ln, nil
}
