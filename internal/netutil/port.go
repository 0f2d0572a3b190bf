// Package netutil contains small networking helpers shared by the spawner.
package netutil

import (
	"fmt"
	"net"
)

// UnusedPort asks the kernel for a currently unused TCP port. The listener is
// closed before returning, so the port is only probabilistically free; the
// child is expected to bind it immediately.
func UnusedPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("allocate port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
