// Package tcp carries session and effect protocol payloads between peers
// over length-prefixed TCP frames.
package tcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
	"gitlab.com/effect-network.net/internal/tcp/connectionmanager"
	"gitlab.com/effect-network.net/internal/tcp/defs"
)

var _ secondary.Transport = (*TCPServer)(nil)

// TCPServer accepts and dials peer connections
type TCPServer struct {
	address       string
	localID       string
	logger        primary.Logger
	listener      net.Listener
	connectionMgr *connectionmanager.ConnectionManager
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	hooksMu      sync.RWMutex
	onFrame      secondary.FrameHandler
	onConnect    secondary.ConnHook
	onDisconnect secondary.ConnHook
}

// TCPServerOption configures a TCPServer
type TCPServerOption func(*TCPServer)

// WithAddress sets the server address
func WithAddress(address string) TCPServerOption {
	return func(s *TCPServer) {
		s.address = address
	}
}

// NewTCPServer creates a transport identified by localID
func NewTCPServer(localID string, logger primary.Logger, options ...TCPServerOption) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	server := &TCPServer{
		address:       ":9000", // Default address
		localID:       localID,
		logger:        logger,
		connectionMgr: connectionmanager.NewConnectionManager(logger),
		stopCh:        make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}

	// Apply options
	for _, option := range options {
		option(server)
	}

	return server
}

// Bind sets the callbacks inbound frames and connection changes are
// delivered to. Frames of one peer are delivered serially, in arrival order.
func (s *TCPServer) Bind(onFrame secondary.FrameHandler, onConnect, onDisconnect secondary.ConnHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onFrame, s.onConnect, s.onDisconnect = onFrame, onConnect, onDisconnect
}

func (s *TCPServer) hooks() (secondary.FrameHandler, secondary.ConnHook, secondary.ConnHook) {
	s.hooksMu.RLock()
	defer s.hooksMu.RUnlock()
	return s.onFrame, s.onConnect, s.onDisconnect
}

func (s *TCPServer) LocalID() string {
	return s.localID
}

// Addr returns the listening address once Start succeeded
func (s *TCPServer) Addr() string {
	if s.listener == nil {
		return s.address
	}
	return s.listener.Addr().String()
}

// Start starts the TCP server
func (s *TCPServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.logger.Info("TCP server listening", "address", s.Addr(), "peer", s.localID)

	// Accept connections in a goroutine
	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Stop closes the listener and every peer connection and waits for the
// read loops to exit
func (s *TCPServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.cancel()
	})

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Error("Failed to close listener", "error", err)
		}
	}

	s.connectionMgr.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TCPServer) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// acceptConnections accepts incoming connections
func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Failed to accept connection", "error", err)
			time.Sleep(defs.ConnectionRetryDelay) // Avoid tight loop on error
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			peerID, err := s.exchangeHello(conn)
			if err != nil {
				s.logger.Warn("Rejected inbound connection", "remote", conn.RemoteAddr().String(), "error", err)
				_ = conn.Close()
				return
			}
			pc := connectionmanager.NewPeerConn(conn, peerID, false)
			s.attach(pc)
			s.readLoop(pc)
		}()
	}
}

// Dial connects to addr and returns the remote peer ID once hellos were
// exchanged
func (s *TCPServer) Dial(ctx context.Context, addr string) (string, error) {
	dialer := net.Dialer{Timeout: defs.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}

	peerID, err := s.exchangeHello(conn)
	if err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("hello with %s: %w", addr, err)
	}

	pc := connectionmanager.NewPeerConn(conn, peerID, true)
	s.attach(pc)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.readLoop(pc)
	}()
	return peerID, nil
}

// exchangeHello writes the local hello and reads the peer's
func (s *TCPServer) exchangeHello(conn net.Conn) (string, error) {
	_ = conn.SetDeadline(time.Now().Add(defs.HelloTimeout))
	defer conn.SetDeadline(time.Time{})

	hello, err := json.Marshal(defs.HelloData{PeerID: s.localID, Version: protocol.Version})
	if err != nil {
		return "", err
	}
	if err := connectionmanager.SendMessage(conn, defs.FrameHello, hello); err != nil {
		return "", err
	}

	frameType, payload, err := connectionmanager.ReadMessage(conn)
	if err != nil {
		return "", err
	}
	if frameType == defs.FrameError {
		var e defs.ErrorData
		_ = json.Unmarshal(payload, &e)
		return "", fmt.Errorf("peer refused connection: %d %s", e.Code, e.Message)
	}
	if frameType != defs.FrameHello {
		connectionmanager.SendErrorMessage(conn, defs.ErrCodeBadHello, "Expected hello")
		return "", fmt.Errorf("expected hello, got frame %#x: %w", frameType, errs.ErrMalformedMessage)
	}

	var peer defs.HelloData
	if err := json.Unmarshal(payload, &peer); err != nil || peer.PeerID == "" || peer.PeerID == s.localID {
		connectionmanager.SendErrorMessage(conn, defs.ErrCodeBadHello, "Invalid hello")
		return "", fmt.Errorf("invalid hello: %w", errs.ErrMalformedMessage)
	}
	if peer.Version != protocol.Version {
		connectionmanager.SendErrorMessage(conn, defs.ErrCodeVersionMismatch, "Unsupported protocol version "+peer.Version)
		return "", fmt.Errorf("peer %s speaks version %q: %w", peer.PeerID, peer.Version, errs.ErrMalformedMessage)
	}
	return peer.PeerID, nil
}

// attach registers pc and starts the connect hook
func (s *TCPServer) attach(pc *connectionmanager.PeerConn) {
	if old := s.connectionMgr.Register(pc); old != nil {
		s.logger.Info("Replacing connection", "peer", pc.PeerID)
		_ = old.Close()
	}
	s.logger.Info("Peer connected", "peer", pc.PeerID, "outbound", pc.Outbound, "remote", pc.RemoteAddr().String())

	if _, onConnect, _ := s.hooks(); onConnect != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			onConnect(s.ctx, pc.PeerID, pc.Outbound)
		}()
	}
}

// readLoop delivers the frames of pc until its connection closes
func (s *TCPServer) readLoop(pc *connectionmanager.PeerConn) {
	onFrame, _, _ := s.hooks()
	defer func() {
		_ = pc.Close()
		if s.connectionMgr.Remove(pc) {
			s.logger.Info("Peer disconnected", "peer", pc.PeerID)
			if _, _, onDisconnect := s.hooks(); onDisconnect != nil {
				onDisconnect(s.ctx, pc.PeerID, pc.Outbound)
			}
		}
	}()

	for {
		frameType, payload, err := connectionmanager.ReadMessage(pc)
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) && !s.stopping() {
				s.logger.Error("Failed to read frame", "peer", pc.PeerID, "error", err)
			}
			return
		}

		switch frameType {
		case defs.FrameHello:
			s.logger.Debug("Ignoring repeated hello", "peer", pc.PeerID)
			continue
		case defs.FrameError:
			var e defs.ErrorData
			_ = json.Unmarshal(payload, &e)
			s.logger.Warn("Peer reported error", "peer", pc.PeerID, "code", e.Code, "message", e.Message)
			continue
		}

		proto, ok := defs.ProtocolOf(frameType)
		if !ok {
			s.logger.Error("Unknown frame type", "peer", pc.PeerID, "type", frameType)
			connectionmanager.SendErrorMessage(pc.Conn, defs.ErrCodeUnknownFrame, fmt.Sprintf("Unknown frame type: %d", frameType))
			continue
		}
		if onFrame != nil {
			onFrame(s.ctx, pc.PeerID, proto, payload)
		}
	}
}

// Send writes payload to peerID on the stream of proto
func (s *TCPServer) Send(ctx context.Context, peerID string, proto string, payload []byte) error {
	frameType, ok := defs.FrameOf(proto)
	if !ok {
		return fmt.Errorf("unsupported protocol %q", proto)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, exists := s.connectionMgr.GetConnection(peerID)
	if !exists {
		return fmt.Errorf("send to %s: %w", peerID, errs.ErrPeerNotConnected)
	}
	if err := conn.WriteFrame(frameType, payload); err != nil {
		return fmt.Errorf("send to %s: %w", peerID, err)
	}
	return nil
}

// Disconnect closes the connection of peerID. The disconnect hook runs
// once its read loop exits.
func (s *TCPServer) Disconnect(peerID string) error {
	conn, exists := s.connectionMgr.GetConnection(peerID)
	if !exists {
		return fmt.Errorf("disconnect %s: %w", peerID, errs.ErrPeerNotConnected)
	}
	return conn.Close()
}

func (s *TCPServer) Peers() []string {
	return s.connectionMgr.Peers()
}
