// Package daemon provides the unix-socket front end for remctld. It
// accepts connections, reads framed command messages, and hands each
// command to the execution engine with a client backed by the
// connection. Authentication uses the peer's socket credentials; the
// GSS-API session layer of the network-facing deployment is a separate
// concern and is not part of this listener.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/sigmaris/remctl/internal/audit"
	"github.com/sigmaris/remctl/internal/clog"
	"github.com/sigmaris/remctl/internal/config"
	"github.com/sigmaris/remctl/internal/protocol"
	"github.com/sigmaris/remctl/internal/server"
)

// DefaultSocketPath is the default path for the remctld unix socket.
var DefaultSocketPath = filepath.Join("/var", "run", "remctl", "remctld.sock")

// Server listens on a unix socket and dispatches commands through the
// execution engine. Each connection gets its own engine instance, so
// concurrent connections stay independent.
type Server struct {
	socketPath string
	cfg        *config.Config
	auditLog   *audit.Logger

	listener net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}
	mu       sync.Mutex // protects listener and shutdown state
}

// Option configures a Server.
type Option func(*Server)

// WithSocketPath sets a custom socket path.
func WithSocketPath(path string) Option {
	return func(s *Server) {
		s.socketPath = path
	}
}

// WithAuditLogger sets the audit logger recording dispatched commands.
func WithAuditLogger(l *audit.Logger) Option {
	return func(s *Server) {
		s.auditLog = l
	}
}

// NewServer creates a server over a loaded rule table.
func NewServer(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		socketPath: DefaultSocketPath,
		cfg:        cfg,
		shutdown:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins listening on the unix socket. It creates the parent
// directory if needed and restricts the socket to the owning user.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("restrict socket permissions: %w", err)
	}

	s.listener = listener
	s.wg.Add(1)
	go s.acceptLoop(listener)

	clog.Info("daemon: listening on %s", s.socketPath)
	return nil
}

// Stop shuts down the server: it stops accepting connections and waits
// for in-flight commands to complete.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.shutdown)
	err := s.listener.Close()
	s.listener = nil
	s.mu.Unlock()

	s.wg.Wait()
	os.Remove(s.socketPath)
	return err
}

// SocketPath returns the path of the listening socket.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// acceptLoop accepts connections until shutdown.
func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				clog.Warn("daemon: accept failed: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// handleConn serves one client connection: authenticate via socket peer
// credentials, then dispatch command messages until the client stops
// asking for keep-alive, sends MESSAGE_QUIT, or goes away.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	principal, err := peerPrincipal(conn)
	if err != nil {
		clog.Warn("daemon: cannot identify peer: %v", err)
		return
	}
	clog.Debug("daemon: connection from %s", principal)

	engine := server.New(s.cfg, s.auditLog)
	for {
		payload, err := protocol.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				clog.Warn("daemon: reading message from %s: %v", principal, err)
			}
			return
		}
		if len(payload) < 2 {
			clog.Warn("daemon: short message from %s", principal)
			return
		}
		if payload[1] == protocol.MessageQuit {
			return
		}

		client := &client{
			conn:      conn,
			user:      principal,
			ipaddress: localPeerAddr,
			proto:     int(payload[0]),
		}
		cmd, err := protocol.DecodeCommand(payload)
		if err != nil {
			clog.Info("daemon: malformed command from %s: %v", principal, err)
			_ = client.SendError(protocol.ErrBadCommand, protocol.ErrBadCommand.Message())
			return
		}

		engine.Run(client, uuid.NewString(), cmd.Args)
		if !cmd.KeepAlive {
			return
		}
	}
}
