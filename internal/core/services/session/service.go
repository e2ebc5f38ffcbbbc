package session

import (
	"context"

	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
)

// LocalSession builds the session data announced to peerID
type LocalSession func(ctx context.Context, peerID string) (protocol.SessionMessage, error)

// FrameSender writes one payload on a protocol stream to a peer
type FrameSender interface {
	Send(ctx context.Context, peerID string, proto string, payload []byte) error
}

// ISessionService exchanges role data with connected peers
type ISessionService interface {
	// Handshake announces the local session to peerID and waits for the
	// peer's own session data
	Handshake(ctx context.Context, peerID string) (domain.SessionData, error)

	// HandleSessionFrame records the session data a peer sent
	HandleSessionFrame(ctx context.Context, peerID string, payload []byte) error

	Get(peerID string) (domain.SessionData, bool)
	Peers(role domain.Role) []string
	Forget(peerID string)
}
