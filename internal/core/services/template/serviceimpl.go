package template

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/core/services/eventstore"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
)

var _ ITemplateService = &Service{}

const Namespace = "templates"

type Service struct {
	store  *eventstore.Store[domain.Template]
	sender primary.MessageSender
	logger primary.Logger
	now    func() time.Time
}

func NewService(ds secondary.Datastore, sender primary.MessageSender, logger primary.Logger) *Service {
	return &Service{
		store:  eventstore.New[domain.Template](ds, Namespace, nil),
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) CreateTemplate(ctx context.Context, id, data string) (domain.Template, error) {
	if id == "" {
		id = uuid.NewString()
	}
	tpl := domain.Template{ID: id, Data: data, CreatedAt: s.now()}
	if err := s.store.Create(ctx, id, tpl); err != nil {
		return domain.Template{}, err
	}
	s.logger.Info("Template created", "template", id)
	return tpl, nil
}

func (s *Service) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	items, err := s.store.Query(ctx, eventstore.Query[domain.Template]{})
	if err != nil {
		return nil, err
	}
	tpls := make([]domain.Template, len(items))
	for i, it := range items {
		tpls[i] = it.Record
	}
	return tpls, nil
}

func (s *Service) RequestTemplate(ctx context.Context, managerID, id string) error {
	return s.sender.SendMessage(ctx, managerID, protocol.TemplateRequest{TemplateID: id})
}

func (s *Service) HandleTemplateRequest(ctx context.Context, peerID string, msg protocol.TemplateRequest) error {
	tpl, err := s.store.Get(ctx, msg.TemplateID)
	if errors.Is(err, errs.ErrNotFound) {
		return s.sender.SendMessage(ctx, peerID, protocol.Error{
			Code:    http.StatusNotFound,
			Message: fmt.Sprintf("template %s not found", msg.TemplateID),
		})
	}
	if err != nil {
		return err
	}
	return s.sender.SendMessage(ctx, peerID, protocol.TemplateResponse{TemplateID: tpl.ID, Data: tpl.Data})
}

func (s *Service) HandleTemplateResponse(ctx context.Context, peerID string, msg protocol.TemplateResponse) error {
	if msg.TemplateID == "" {
		return fmt.Errorf("template response from %s without id: %w", peerID, errs.ErrMalformedMessage)
	}
	tpl := domain.Template{ID: msg.TemplateID, Data: msg.Data, CreatedAt: s.now()}
	if err := s.store.Put(ctx, tpl.ID, tpl); err != nil {
		return err
	}
	s.logger.Debug("Template cached", "template", tpl.ID, "manager", peerID)
	return nil
}
