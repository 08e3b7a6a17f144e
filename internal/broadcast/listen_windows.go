//go:build windows

package broadcast

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// listen opens the broadcast socket on Windows as a named pipe, same
// mechanism the teacher's grpc_pipe_windows.go uses for its gRPC transport.
func listen(path string) (net.Listener, error) {
	return winio.ListenPipe(path, nil)
}
