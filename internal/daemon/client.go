package daemon

import (
	"net"
	"sync"

	"github.com/sigmaris/remctl/internal/protocol"
)

// localPeerAddr is reported as the peer address for unix-socket clients,
// which have no network address. It also reaches user commands through
// REMOTE_ADDR.
const localPeerAddr = "127.0.0.1"

// client adapts one accepted connection to the engine's protocol.Client
// interface, encoding each message as a length-prefixed frame.
type client struct {
	mu        sync.Mutex
	conn      net.Conn
	user      string
	ipaddress string
	proto     int
}

// User returns the principal established from the socket peer
// credentials.
func (c *client) User() string { return c.user }

// IPAddress returns the peer address.
func (c *client) IPAddress() string { return c.ipaddress }

// Hostname returns the peer DNS name, which local connections lack.
func (c *client) Hostname() string { return "" }

// Protocol returns the protocol version the client spoke in its command
// message.
func (c *client) Protocol() int { return c.proto }

// SendOutput sends one tagged output message.
func (c *client) SendOutput(stream int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteMessage(c.conn, protocol.EncodeOutput(stream, data))
}

// SendStatus sends the terminating status message.
func (c *client) SendStatus(status int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteMessage(c.conn, protocol.EncodeStatus(status))
}

// SendOutputV1 sends the combined protocol v1 output and status
// response. Output beyond the v1 cap is truncated: the cap is a protocol
// limit, not a suggestion.
func (c *client) SendOutputV1(data []byte, status int) error {
	if len(data) > protocol.MaxOutputV1 {
		data = data[:protocol.MaxOutputV1]
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteMessage(c.conn, protocol.EncodeOutputV1(data, status))
}

// SendError sends an error message.
func (c *client) SendError(code protocol.ErrorCode, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteMessage(c.conn, protocol.EncodeError(code, message))
}
