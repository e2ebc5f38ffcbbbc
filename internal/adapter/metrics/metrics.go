// Package metrics exports entity counters to Prometheus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/domain"
)

const namespace = "effect"

var _ secondary.Metrics = (*Collector)(nil)

type Collector struct {
	messages *prometheus.CounterVec
	peers    *prometheus.GaugeVec
	events   *prometheus.CounterVec
	reg      prometheus.Registerer
	logger   primary.Logger
}

// NewCollector registers the entity collectors on reg
func NewCollector(reg prometheus.Registerer, logger primary.Logger) (*Collector, error) {
	c := &Collector{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Effect protocol messages by direction, kind and outcome.",
		}, []string{"direction", "kind", "outcome"}),
		peers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers",
			Help:      "Peers holding a session, by role.",
		}, []string{"role"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Domain events published on the bus.",
		}, []string{"type"}),
		reg:    reg,
		logger: logger,
	}

	for _, col := range []prometheus.Collector{c.messages, c.peers, c.events} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ObserveMessage(direction, kind, outcome string) {
	c.messages.WithLabelValues(direction, kind, outcome).Inc()
}

func (c *Collector) SetPeers(role string, n int) {
	c.peers.WithLabelValues(role).Set(float64(n))
}

// CountEvent is a bus handler counting domain events by type
func (c *Collector) CountEvent(_ context.Context, ev domain.Event) {
	c.events.WithLabelValues(string(ev.Type)).Inc()
}

// WatchQueue exports the worker queue length, sampled on every scrape
func (c *Collector) WatchQueue(queue secondary.WorkerQueue) error {
	return c.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_queue_length",
		Help:      "Workers waiting for an assignment.",
	}, func() float64 {
		n, err := queue.Len(context.Background())
		if err != nil {
			c.logger.Warn("Failed to sample worker queue", "error", err)
			return 0
		}
		return float64(n)
	}))
}
