package amqp

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/streadway/amqp"

	"gitlab.com/effect-network.net/internal/adapter/logging"
	"gitlab.com/effect-network.net/internal/domain"
)

func TestPublisherRoutesByEventType(t *testing.T) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		t.Skip("AMQP_URL not set")
	}
	exchange := "effect.events.test"

	p, err := NewPublisher(url, exchange, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer p.Close()

	conn, err := amqp.Dial(url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		t.Fatalf("QueueDeclare: %v", err)
	}
	if err := ch.QueueBind(q.Name, "payment:*", exchange, false, nil); err != nil {
		t.Fatalf("QueueBind: %v", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	ctx := context.Background()
	p.Handle(ctx, domain.Event{ID: "e1", Type: domain.EventTaskCreated, TaskID: "t1"})
	p.Handle(ctx, domain.Event{ID: "e2", Type: domain.EventPaymentCreated, PeerID: "w1"})

	select {
	case d := <-deliveries:
		if d.RoutingKey != string(domain.EventPaymentCreated) {
			t.Fatalf("routing key = %q", d.RoutingKey)
		}
		var ev domain.Event
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if ev.ID != "e2" || ev.PeerID != "w1" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery")
	}
}
