package template

import (
	"context"

	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
)

// ITemplateService keeps the templates tasks are rendered with. Managers
// serve them, workers cache what they fetched.
type ITemplateService interface {
	CreateTemplate(ctx context.Context, id, data string) (domain.Template, error)
	GetTemplate(ctx context.Context, id string) (domain.Template, error)
	ListTemplates(ctx context.Context) ([]domain.Template, error)

	// RequestTemplate asks a manager for a template the worker does not hold
	RequestTemplate(ctx context.Context, managerID, id string) error

	HandleTemplateRequest(ctx context.Context, peerID string, msg protocol.TemplateRequest) error
	HandleTemplateResponse(ctx context.Context, peerID string, msg protocol.TemplateResponse) error
}
