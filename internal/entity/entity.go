// Package entity binds a peer transport, the session handshake and a
// message dispatch table to a manager or worker role.
package entity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/core/services/session"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
	"gitlab.com/effect-network.net/internal/tcp/publishers"
)

var _ primary.MessageSender = (*Entity)(nil)

// PeerHook runs once a peer completed the handshake. A returned error drops
// the peer.
type PeerHook func(ctx context.Context, peerID string, data domain.SessionData) error

// Entity is one protocol participant. Each instance owns its handlers and
// session state.
type Entity struct {
	role      domain.Role
	transport secondary.Transport
	sessions  session.ISessionService
	publisher *publishers.MessagePublisher
	metrics   secondary.Metrics
	logger    primary.Logger

	mu       sync.RWMutex
	handlers map[protocol.Kind]primary.MessageHandler
	onReady  PeerHook
	onGone   func(ctx context.Context, peerID string)
}

func New(
	role domain.Role,
	transport secondary.Transport,
	sessions session.ISessionService,
	metrics secondary.Metrics,
	logger primary.Logger,
) *Entity {
	if metrics == nil {
		metrics = secondary.NopMetrics{}
	}
	return &Entity{
		role:      role,
		transport: transport,
		sessions:  sessions,
		publisher: publishers.NewMessagePublisher(transport, logger),
		metrics:   metrics,
		logger:    logger,
		handlers:  make(map[protocol.Kind]primary.MessageHandler),
	}
}

func (e *Entity) Role() domain.Role {
	return e.role
}

func (e *Entity) PeerID() string {
	return e.transport.LocalID()
}

func (e *Entity) Sessions() session.ISessionService {
	return e.sessions
}

// OnMessage registers the handler of one message kind. A kind takes exactly
// one handler.
func (e *Entity) OnMessage(kind protocol.Kind, h primary.MessageHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.handlers[kind]; exists {
		return fmt.Errorf("handler for %s: %w", kind, errs.ErrDuplicateHandler)
	}
	e.handlers[kind] = h
	return nil
}

// OnPeer sets the hooks run after a successful handshake and after a peer
// disconnected
func (e *Entity) OnPeer(ready PeerHook, gone func(ctx context.Context, peerID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onReady, e.onGone = ready, gone
}

func (e *Entity) handler(kind protocol.Kind) (primary.MessageHandler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handlers[kind]
	return h, ok
}

// SendMessage encodes msg and writes it to peerID. Failed sends are not
// retried.
func (e *Entity) SendMessage(ctx context.Context, peerID string, msg protocol.Message) error {
	kind := "nil"
	if msg != nil {
		kind = string(msg.Kind())
	}
	if err := e.publisher.SendMessage(ctx, peerID, msg); err != nil {
		e.metrics.ObserveMessage("out", kind, "failed")
		return err
	}
	e.metrics.ObserveMessage("out", kind, "ok")
	return nil
}

// Connect dials addr. The handshake runs from the connect hook.
func (e *Entity) Connect(ctx context.Context, addr string) (string, error) {
	return e.transport.Dial(ctx, addr)
}

// HandleFrame is the transport frame callback
func (e *Entity) HandleFrame(ctx context.Context, peerID string, proto string, payload []byte) {
	switch proto {
	case protocol.SessionProtocol:
		if err := e.sessions.HandleSessionFrame(ctx, peerID, payload); err != nil {
			e.logger.Warn("Dropping session frame", "peer", peerID, "error", err)
		}
	case protocol.EffectProtocol:
		e.dispatch(ctx, peerID, payload)
	default:
		e.logger.Warn("Dropping frame for unknown protocol", "peer", peerID, "protocol", proto)
	}
}

func (e *Entity) dispatch(ctx context.Context, peerID string, payload []byte) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		e.metrics.ObserveMessage("in", "unknown", "malformed")
		e.logger.Warn("Dropping malformed message", "peer", peerID, "error", err)
		return
	}

	kind := msg.Kind()
	h, ok := e.handler(kind)
	if !ok {
		e.metrics.ObserveMessage("in", string(kind), "unhandled")
		e.logger.Warn("Dropping message", "peer", peerID, "kind", kind, "error", errs.ErrNoHandler)
		return
	}

	if err := h.HandleMessage(ctx, peerID, msg); err != nil {
		e.metrics.ObserveMessage("in", string(kind), outcome(err))
		e.logger.Error("Failed to handle message", "peer", peerID, "kind", kind, "error", err)
		return
	}
	e.metrics.ObserveMessage("in", string(kind), "ok")
}

func outcome(err error) string {
	switch {
	case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrWrongAssignee):
		return "invalid_transition"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, errs.ErrMalformedMessage):
		return "malformed"
	default:
		return "error"
	}
}

// HandleConnect is the transport connect callback. It runs the handshake and
// the ready hook, and drops the peer if either fails.
func (e *Entity) HandleConnect(ctx context.Context, peerID string, _ bool) {
	data, err := e.sessions.Handshake(ctx, peerID)
	if err != nil {
		e.logger.Error("Handshake failed", "peer", peerID, "error", err)
		e.drop(peerID)
		return
	}
	e.logger.Info("Session established", "peer", peerID, "role", data.Role)
	e.reportPeers()

	e.mu.RLock()
	ready := e.onReady
	e.mu.RUnlock()
	if ready == nil {
		return
	}
	if err := ready(ctx, peerID, data); err != nil {
		e.logger.Error("Dropping peer", "peer", peerID, "role", data.Role, "error", err)
		e.drop(peerID)
	}
}

// HandleDisconnect is the transport disconnect callback
func (e *Entity) HandleDisconnect(ctx context.Context, peerID string, _ bool) {
	e.sessions.Forget(peerID)
	e.reportPeers()

	e.mu.RLock()
	gone := e.onGone
	e.mu.RUnlock()
	if gone != nil {
		gone(ctx, peerID)
	}
}

func (e *Entity) drop(peerID string) {
	e.sessions.Forget(peerID)
	if err := e.transport.Disconnect(peerID); err != nil && !errors.Is(err, errs.ErrPeerNotConnected) {
		e.logger.Error("Failed to disconnect peer", "peer", peerID, "error", err)
	}
}

func (e *Entity) reportPeers() {
	for _, role := range []domain.Role{domain.RoleManager, domain.RoleWorker} {
		e.metrics.SetPeers(string(role), len(e.sessions.Peers(role)))
	}
}
