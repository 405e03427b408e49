//go:build !linux

package daemon

import (
	"fmt"
	"net"
	"os/user"
)

// peerPrincipal falls back to the daemon's own user on platforms without
// SO_PEERCRED. The socket's 0600 mode restricts connections to that user
// anyway.
func peerPrincipal(conn net.Conn) (string, error) {
	if _, ok := conn.(*net.UnixConn); !ok {
		return "", fmt.Errorf("connection is %T, not a unix socket", conn)
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("current user: %w", err)
	}
	return u.Username, nil
}
