package entity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gitlab.com/effect-network.net/internal/adapter/logging"
	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
)

type sentFrame struct {
	peer    string
	proto   string
	payload []byte
}

type fakeTransport struct {
	mu           sync.Mutex
	sent         []sentFrame
	disconnected []string
}

func (f *fakeTransport) LocalID() string { return "self" }

func (f *fakeTransport) Dial(context.Context, string) (string, error) { return "remote", nil }

func (f *fakeTransport) Send(_ context.Context, peerID string, proto string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentFrame{peer: peerID, proto: proto, payload: payload})
	return nil
}

func (f *fakeTransport) Disconnect(peerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, peerID)
	return nil
}

func (f *fakeTransport) Peers() []string { return nil }

type fakeSessions struct {
	data      domain.SessionData
	err       error
	frames    [][]byte
	forgotten []string
}

func (f *fakeSessions) Handshake(context.Context, string) (domain.SessionData, error) {
	return f.data, f.err
}

func (f *fakeSessions) HandleSessionFrame(_ context.Context, _ string, payload []byte) error {
	f.frames = append(f.frames, payload)
	return nil
}

func (f *fakeSessions) Get(string) (domain.SessionData, bool) { return f.data, f.err == nil }
func (f *fakeSessions) Peers(domain.Role) []string            { return nil }
func (f *fakeSessions) Forget(peerID string)                  { f.forgotten = append(f.forgotten, peerID) }

func newTestEntity() (*Entity, *fakeTransport, *fakeSessions) {
	tr := &fakeTransport{}
	sess := &fakeSessions{}
	return New(domain.RoleManager, tr, sess, nil, logging.NewNopLogger()), tr, sess
}

type received struct {
	peer string
	msg  protocol.Message
}

func recordInto(out *[]received) primary.MessageHandler {
	return primary.MessageHandlerFunc(func(_ context.Context, peerID string, msg protocol.Message) error {
		*out = append(*out, received{peer: peerID, msg: msg})
		return nil
	})
}

func TestOnMessageRejectsSecondHandler(t *testing.T) {
	ent, _, _ := newTestEntity()
	var got []received
	if err := ent.OnMessage(protocol.KindAck, recordInto(&got)); err != nil {
		t.Fatalf("OnMessage: %v", err)
	}
	if err := ent.OnMessage(protocol.KindAck, recordInto(&got)); !errors.Is(err, errs.ErrDuplicateHandler) {
		t.Fatalf("err = %v, want ErrDuplicateHandler", err)
	}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	ent, _, sess := newTestEntity()
	var acks, replies []received
	_ = ent.OnMessage(protocol.KindAck, recordInto(&acks))
	_ = ent.OnMessage(protocol.KindError, recordInto(&replies))

	payload, _ := protocol.Encode(protocol.Ack{Ref: "5"})
	ent.HandleFrame(ctx, "P", protocol.EffectProtocol, payload)
	ent.HandleFrame(ctx, "P", protocol.EffectProtocol, []byte(`{"ack":{"ref":"6"},"error":{"code":1}}`))
	ent.HandleFrame(ctx, "P", protocol.EffectProtocol, []byte(`{}`))

	unhandled, _ := protocol.Encode(protocol.RequestToWork{})
	ent.HandleFrame(ctx, "P", protocol.EffectProtocol, unhandled)

	if len(acks) != 1 || acks[0].peer != "P" || acks[0].msg.(protocol.Ack).Ref != "5" {
		t.Fatalf("acks = %+v", acks)
	}
	if len(replies) != 0 {
		t.Fatalf("malformed message reached a handler: %+v", replies)
	}

	ent.HandleFrame(ctx, "P", protocol.SessionProtocol, []byte(`{"worker":{"id":"P"}}`))
	if len(sess.frames) != 1 {
		t.Fatalf("session frames = %d", len(sess.frames))
	}
}

func TestSendMessage(t *testing.T) {
	ent, tr, _ := newTestEntity()
	if err := ent.SendMessage(context.Background(), "P", protocol.PayoutRequest{PeerID: "self"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(tr.sent) != 1 || tr.sent[0].proto != protocol.EffectProtocol {
		t.Fatalf("sent = %+v", tr.sent)
	}
	msg, err := protocol.Decode(tr.sent[0].payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if req, ok := msg.(protocol.PayoutRequest); !ok || req.PeerID != "self" {
		t.Fatalf("decoded %#v", msg)
	}
	if err := ent.SendMessage(context.Background(), "P", nil); err == nil {
		t.Fatal("nil message sent")
	}
}

func TestHandleConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("handshake failure drops peer", func(t *testing.T) {
		ent, tr, sess := newTestEntity()
		sess.err = errs.ErrHandshakeTimeout
		ready := false
		ent.OnPeer(func(context.Context, string, domain.SessionData) error { ready = true; return nil }, nil)

		ent.HandleConnect(ctx, "P", false)
		if ready {
			t.Fatal("ready hook ran after failed handshake")
		}
		if len(tr.disconnected) != 1 || tr.disconnected[0] != "P" {
			t.Fatalf("disconnected = %v", tr.disconnected)
		}
	})

	t.Run("ready hook failure drops peer", func(t *testing.T) {
		ent, tr, sess := newTestEntity()
		sess.data = domain.SessionData{Role: domain.RoleManager}
		ent.OnPeer(func(context.Context, string, domain.SessionData) error { return errs.ErrUnknownPeer }, nil)

		ent.HandleConnect(ctx, "P", true)
		if len(tr.disconnected) != 1 {
			t.Fatalf("disconnected = %v", tr.disconnected)
		}
	})

	t.Run("success", func(t *testing.T) {
		ent, tr, sess := newTestEntity()
		sess.data = domain.SessionData{Role: domain.RoleWorker, ID: "P"}
		var got domain.SessionData
		gone := ""
		ent.OnPeer(
			func(_ context.Context, _ string, d domain.SessionData) error { got = d; return nil },
			func(_ context.Context, peerID string) { gone = peerID },
		)

		ent.HandleConnect(ctx, "P", false)
		if got.ID != "P" || len(tr.disconnected) != 0 {
			t.Fatalf("ready got %+v, disconnected %v", got, tr.disconnected)
		}
		ent.HandleDisconnect(ctx, "P", false)
		if gone != "P" || len(sess.forgotten) != 1 {
			t.Fatalf("gone = %q, forgotten = %v", gone, sess.forgotten)
		}
	})
}
