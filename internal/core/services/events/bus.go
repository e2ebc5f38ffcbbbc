// Package events is the in-process domain event bus.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/domain"
)

var _ secondary.EventPublisher = (*Bus)(nil)

// AllEvents subscribes to every event type
const AllEvents domain.EventType = "*"

type Handler func(ctx context.Context, ev domain.Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events synchronously, in publish order, to every subscriber
// of the event type and to wildcard subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[domain.EventType][]subscription
	logger primary.Logger
	now    func() time.Time
}

func NewBus(logger primary.Logger) *Bus {
	return &Bus{
		subs:   make(map[domain.EventType][]subscription),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers h for topic and returns a function removing it
func (b *Bus) Subscribe(topic domain.EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Publish(ctx context.Context, ev domain.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs[ev.Type])+len(b.subs[AllEvents]))
	for _, s := range b.subs[ev.Type] {
		targets = append(targets, s.handler)
	}
	for _, s := range b.subs[AllEvents] {
		targets = append(targets, s.handler)
	}
	b.mu.RUnlock()

	b.logger.Debug("Publishing event", "type", ev.Type, "task", ev.TaskID, "peer", ev.PeerID)
	for _, h := range targets {
		b.deliver(ctx, h, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event subscriber panicked", "type", ev.Type, "panic", r)
		}
	}()
	h(ctx, ev)
}
