package events

import (
	"context"
	"testing"

	"gitlab.com/effect-network.net/internal/adapter/logging"
	"gitlab.com/effect-network.net/internal/domain"
)

func TestBusDeliversToTopicAndWildcard(t *testing.T) {
	bus := NewBus(logging.NewNopLogger())
	var topic, all []domain.Event
	unsubscribe := bus.Subscribe(domain.EventTaskCompleted, func(_ context.Context, ev domain.Event) { topic = append(topic, ev) })
	bus.Subscribe(AllEvents, func(_ context.Context, ev domain.Event) { all = append(all, ev) })

	ctx := context.Background()
	bus.Publish(ctx, domain.Event{Type: domain.EventTaskCompleted, TaskID: "t1"})
	bus.Publish(ctx, domain.Event{Type: domain.EventTaskCreated, TaskID: "t2"})

	if len(topic) != 1 || topic[0].TaskID != "t1" {
		t.Fatalf("topic subscriber got %v", topic)
	}
	if len(all) != 2 {
		t.Fatalf("wildcard subscriber got %d events, want 2", len(all))
	}
	if topic[0].ID == "" || topic[0].Timestamp.IsZero() {
		t.Fatalf("event ID and timestamp must be filled in")
	}

	unsubscribe()
	bus.Publish(ctx, domain.Event{Type: domain.EventTaskCompleted})
	if len(topic) != 1 {
		t.Fatalf("unsubscribed handler still called")
	}
}

func TestBusRecoversSubscriberPanic(t *testing.T) {
	bus := NewBus(logging.NewNopLogger())
	called := false
	bus.Subscribe(AllEvents, func(context.Context, domain.Event) { panic("boom") })
	bus.Subscribe(AllEvents, func(context.Context, domain.Event) { called = true })

	bus.Publish(context.Background(), domain.Event{Type: domain.EventPaymentCreated})
	if !called {
		t.Fatalf("second subscriber not called after first panicked")
	}
}
