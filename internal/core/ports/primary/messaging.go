package primary

import (
	"context"

	"gitlab.com/effect-network.net/internal/protocol"
)

// MessageHandler handles one decoded effect protocol message from a peer
type MessageHandler interface {
	HandleMessage(ctx context.Context, peerID string, msg protocol.Message) error
}

// MessageHandlerFunc adapts a function to MessageHandler
type MessageHandlerFunc func(ctx context.Context, peerID string, msg protocol.Message) error

func (f MessageHandlerFunc) HandleMessage(ctx context.Context, peerID string, msg protocol.Message) error {
	return f(ctx, peerID, msg)
}

// MessageSender writes one encoded message to a connected peer
type MessageSender interface {
	SendMessage(ctx context.Context, peerID string, msg protocol.Message) error
}
