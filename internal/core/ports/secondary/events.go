package secondary

import (
	"context"

	"gitlab.com/effect-network.net/internal/domain"
)

// EventPublisher fans domain events out to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event)
}
