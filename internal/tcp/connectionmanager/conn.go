package connectionmanager

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/tcp/defs"
)

// PeerConn is a peer connection whose frame writes are serialized
type PeerConn struct {
	net.Conn
	PeerID   string
	Outbound bool
	writeMu  sync.Mutex
}

func NewPeerConn(conn net.Conn, peerID string, outbound bool) *PeerConn {
	return &PeerConn{Conn: conn, PeerID: peerID, Outbound: outbound}
}

// WriteFrame writes one frame. Concurrent callers never interleave.
func (c *PeerConn) WriteFrame(frameType byte, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return SendMessage(c.Conn, frameType, payload)
}

// ConnectionManager tracks the live connection of each peer
type ConnectionManager struct {
	connections map[string]*PeerConn
	connMutex   sync.RWMutex
	Logger      primary.Logger
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger primary.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*PeerConn),
		Logger:      logger,
	}
}

// Register stores conn as the connection of its peer and returns the
// connection it replaced, if any
func (cm *ConnectionManager) Register(conn *PeerConn) *PeerConn {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()
	old := cm.connections[conn.PeerID]
	cm.connections[conn.PeerID] = conn
	return old
}

// Remove drops conn if it is still the registered connection of its peer
func (cm *ConnectionManager) Remove(conn *PeerConn) bool {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()
	if cur, ok := cm.connections[conn.PeerID]; ok && cur == conn {
		delete(cm.connections, conn.PeerID)
		return true
	}
	return false
}

// GetConnection returns the connection for a specific peer
func (cm *ConnectionManager) GetConnection(peerID string) (*PeerConn, bool) {
	cm.connMutex.RLock()
	defer cm.connMutex.RUnlock()

	conn, exists := cm.connections[peerID]
	return conn, exists
}

// Peers lists the connected peer IDs
func (cm *ConnectionManager) Peers() []string {
	cm.connMutex.RLock()
	defer cm.connMutex.RUnlock()
	ids := make([]string, 0, len(cm.connections))
	for id := range cm.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll closes every registered connection
func (cm *ConnectionManager) CloseAll() {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()

	for peerID, conn := range cm.connections {
		if err := conn.Close(); err != nil {
			cm.Logger.Error("Failed to close connection", "peer", peerID, "error", err)
		}
	}
}

// SendErrorMessage sends an error frame to a peer
func SendErrorMessage(conn net.Conn, code int, message string) {
	errorBytes, err := json.Marshal(defs.ErrorData{Code: code, Message: message})
	if err != nil {
		return
	}

	// Ignore errors here as the connection might be closing
	_ = SendMessage(conn, defs.FrameError, errorBytes)
}

// SendMessage writes a header and payload to conn
func SendMessage(conn net.Conn, frameType byte, payload []byte) error {
	if len(payload) > defs.MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit of %d", len(payload), defs.MaxFrameSize)
	}

	// Header and payload go out in one write
	frame := make([]byte, defs.HeaderSize+len(payload))
	binary.BigEndian.PutUint16(frame[0:2], defs.MagicNumber)
	frame[2] = frameType
	frame[3] = 0 // Reserved
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[defs.HeaderSize:], payload)

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadMessage reads one frame from r
func ReadMessage(r io.Reader) (byte, []byte, error) {
	header := make([]byte, defs.HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	magic := binary.BigEndian.Uint16(header[0:2])
	frameType := header[2]
	payloadLen := binary.BigEndian.Uint32(header[4:8])

	if magic != defs.MagicNumber {
		return 0, nil, fmt.Errorf("invalid magic number: %x", magic)
	}
	if payloadLen > defs.MaxFrameSize {
		return 0, nil, fmt.Errorf("frame of %d bytes exceeds limit of %d", payloadLen, defs.MaxFrameSize)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}

	return frameType, payload, nil
}
