// Package amqp forwards domain events to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/domain"
)

// Publisher routes every event with its type as routing key
type Publisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	conn     *amqp.Connection
	ch       *amqp.Channel
	logger   primary.Logger
}

func NewPublisher(url, exchange string, logger primary.Logger) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return fmt.Errorf("dial amqp: %w", err)
		}
		p.conn = conn
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.ch = ch
	return nil
}

// Handle is a bus handler. A failed publish is retried once on a fresh
// channel, then dropped.
func (p *Publisher) Handle(_ context.Context, ev domain.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("Failed to marshal event", "type", ev.Type, "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.publish(string(ev.Type), body); err == nil {
		return
	}
	if err := p.connect(); err != nil {
		p.logger.Error("Failed to reconnect to amqp", "error", err)
		return
	}
	if err := p.publish(string(ev.Type), body); err != nil {
		p.logger.Error("Failed to publish event", "type", ev.Type, "id", ev.ID, "error", err)
	}
}

func (p *Publisher) publish(key string, body []byte) error {
	if p.ch == nil {
		return amqp.ErrClosed
	}
	return p.ch.Publish(p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}
