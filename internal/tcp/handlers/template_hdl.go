package handlers

import (
	"context"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/services/template"
	"gitlab.com/effect-network.net/internal/protocol"
)

var _ primary.MessageHandler = (*TemplateHandler)(nil)

// TemplateHandler answers template requests and caches template responses
type TemplateHandler struct {
	Templates template.ITemplateService
	Logger    primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *TemplateHandler) HandleMessage(ctx context.Context, peerID string, msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.TemplateRequest:
		return h.Templates.HandleTemplateRequest(ctx, peerID, m)
	case protocol.TemplateResponse:
		return h.Templates.HandleTemplateResponse(ctx, peerID, m)
	}
	return unexpected(msg)
}
