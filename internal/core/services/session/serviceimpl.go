package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gitlab.com/effect-network.net/internal/config"
	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
)

var _ ISessionService = &Service{}

// pending tracks the session data expected from one peer. ready is closed
// once data or err is set. consumed marks data a handshake already returned.
type pending struct {
	ready    chan struct{}
	data     domain.SessionData
	err      error
	done     bool
	consumed bool
}

type Service struct {
	local   LocalSession
	sender  FrameSender
	logger  primary.Logger
	timeout time.Duration

	mu    sync.Mutex
	peers map[string]*pending
}

func NewService(local LocalSession, sender FrameSender, logger primary.Logger, cfg *config.SessionSvcCfg) *Service {
	if cfg == nil {
		cfg = &config.SessionSvcCfg{HandshakeTimeout: 10 * time.Second}
	}
	return &Service{
		local:   local,
		sender:  sender,
		logger:  logger,
		timeout: cfg.HandshakeTimeout,
		peers:   make(map[string]*pending),
	}
}

func (s *Service) entry(peerID string) *pending {
	p, ok := s.peers[peerID]
	if !ok {
		p = &pending{ready: make(chan struct{})}
		s.peers[peerID] = p
	}
	return p
}

func (s *Service) resolve(peerID string, data domain.SessionData, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.entry(peerID)
	if p.done {
		if err == nil {
			p.data, p.err, p.consumed = data, nil, false
		}
		return
	}
	p.data, p.err, p.done = data, err, true
	close(p.ready)
}

func (s *Service) Handshake(ctx context.Context, peerID string) (domain.SessionData, error) {
	msg, err := s.local(ctx, peerID)
	if err != nil {
		return domain.SessionData{}, fmt.Errorf("build session for %s: %w", peerID, err)
	}
	payload, err := protocol.EncodeSession(msg)
	if err != nil {
		return domain.SessionData{}, err
	}

	s.mu.Lock()
	p := s.entry(peerID)
	if p.done && p.consumed {
		// a new connection replaced one whose session was already used
		p = &pending{ready: make(chan struct{})}
		s.peers[peerID] = p
	}
	s.mu.Unlock()

	if err := s.sender.Send(ctx, peerID, protocol.SessionProtocol, payload); err != nil {
		return domain.SessionData{}, fmt.Errorf("send session to %s: %w", peerID, err)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-p.ready:
		s.mu.Lock()
		data, err := p.data, p.err
		p.consumed = true
		s.mu.Unlock()
		if err != nil {
			return domain.SessionData{}, err
		}
		s.logger.Debug("Handshake complete", "peer", peerID, "role", data.Role)
		return data, nil
	case <-timer.C:
		return domain.SessionData{}, fmt.Errorf("session from %s after %s: %w", peerID, s.timeout, errs.ErrHandshakeTimeout)
	case <-ctx.Done():
		return domain.SessionData{}, ctx.Err()
	}
}

func (s *Service) HandleSessionFrame(_ context.Context, peerID string, payload []byte) error {
	msg, err := protocol.DecodeSession(payload)
	if err != nil {
		s.logger.Warn("Malformed session data", "peer", peerID, "error", err)
		s.resolve(peerID, domain.SessionData{}, fmt.Errorf("session from %s: %w", peerID, err))
		return err
	}

	data := protocol.SessionData(msg)
	if data.Role == domain.RoleManager && (data.PublicKey == nil || data.PublicKey.IsZero()) {
		err := fmt.Errorf("manager session from %s without public key: %w", peerID, errs.ErrMalformedMessage)
		s.resolve(peerID, domain.SessionData{}, err)
		return err
	}
	if data.Role == domain.RoleWorker && data.ID == "" {
		data.ID = peerID
	}

	s.resolve(peerID, data, nil)
	return nil
}

// Get returns the session data of a peer whose handshake succeeded
func (s *Service) Get(peerID string) (domain.SessionData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[peerID]
	if !ok || !p.done || p.err != nil {
		return domain.SessionData{}, false
	}
	return p.data, true
}

// Peers lists the peers with an established session of the given role
func (s *Service) Peers(role domain.Role) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, p := range s.peers {
		if p.done && p.err == nil && p.data.Role == role {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) Forget(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, peerID)
}
