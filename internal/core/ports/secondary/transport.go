package secondary

import "context"

// FrameHandler receives one inbound payload for a protocol from a peer
type FrameHandler func(ctx context.Context, peerID string, proto string, payload []byte)

// ConnHook is called when a peer connects or disconnects. outbound is true
// when the local side dialed.
type ConnHook func(ctx context.Context, peerID string, outbound bool)

// Transport carries protocol payloads between peers
type Transport interface {
	LocalID() string
	Dial(ctx context.Context, addr string) (string, error)
	Send(ctx context.Context, peerID string, proto string, payload []byte) error
	Disconnect(peerID string) error
	Peers() []string
}
