package template

import (
	"context"
	"errors"
	"testing"

	"gitlab.com/effect-network.net/internal/adapter/datastore/memory"
	"gitlab.com/effect-network.net/internal/adapter/logging"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
)

type recorder struct {
	sent []protocol.Message
}

func (r *recorder) SendMessage(_ context.Context, _ string, msg protocol.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func TestTemplateRequest(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	svc := NewService(memory.New(), rec, logging.NewNopLogger())

	if _, err := svc.CreateTemplate(ctx, "tpl1", "<p>{{.text}}</p>"); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if _, err := svc.CreateTemplate(ctx, "tpl1", "other"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("duplicate CreateTemplate: err = %v", err)
	}

	if err := svc.HandleTemplateRequest(ctx, "W", protocol.TemplateRequest{TemplateID: "tpl1"}); err != nil {
		t.Fatalf("HandleTemplateRequest: %v", err)
	}
	resp, ok := rec.sent[0].(protocol.TemplateResponse)
	if !ok || resp.Data != "<p>{{.text}}</p>" {
		t.Fatalf("reply = %#v", rec.sent[0])
	}

	if err := svc.HandleTemplateRequest(ctx, "W", protocol.TemplateRequest{TemplateID: "missing"}); err != nil {
		t.Fatalf("HandleTemplateRequest(missing): %v", err)
	}
	if e, ok := rec.sent[1].(protocol.Error); !ok || e.Code != 404 {
		t.Fatalf("reply = %#v", rec.sent[1])
	}
}

func TestTemplateResponseIsCached(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), &recorder{}, logging.NewNopLogger())

	if err := svc.HandleTemplateResponse(ctx, "M", protocol.TemplateResponse{TemplateID: "tpl2", Data: "x"}); err != nil {
		t.Fatalf("HandleTemplateResponse: %v", err)
	}
	tpl, err := svc.GetTemplate(ctx, "tpl2")
	if err != nil || tpl.Data != "x" {
		t.Fatalf("GetTemplate = %+v, %v", tpl, err)
	}
	if err := svc.HandleTemplateResponse(ctx, "M", protocol.TemplateResponse{}); !errors.Is(err, errs.ErrMalformedMessage) {
		t.Fatalf("err = %v", err)
	}
	all, _ := svc.ListTemplates(ctx)
	if len(all) != 1 {
		t.Fatalf("ListTemplates = %v", all)
	}
}
