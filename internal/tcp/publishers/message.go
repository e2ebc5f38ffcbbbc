package publishers

import (
	"context"
	"fmt"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/protocol"
)

var _ primary.MessageSender = (*MessagePublisher)(nil)

// MessagePublisher encodes effect protocol messages and writes them on the
// effect stream of a peer. Sends are not retried.
type MessagePublisher struct {
	Transport secondary.Transport
	Logger    primary.Logger
}

func NewMessagePublisher(transport secondary.Transport, logger primary.Logger) *MessagePublisher {
	return &MessagePublisher{
		Transport: transport,
		Logger:    logger,
	}
}

func (p *MessagePublisher) SendMessage(ctx context.Context, peerID string, msg protocol.Message) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %T: %w", msg, err)
	}

	if err := p.Transport.Send(ctx, peerID, protocol.EffectProtocol, payload); err != nil {
		p.Logger.Error("Failed to send message", "peer", peerID, "kind", msg.Kind(), "error", err)
		return err
	}
	p.Logger.Debug("Message sent", "peer", peerID, "kind", msg.Kind())
	return nil
}
