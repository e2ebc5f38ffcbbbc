package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"gitlab.com/effect-network.net/internal/adapter/logging"
	"gitlab.com/effect-network.net/internal/adapter/workerqueue"
	"gitlab.com/effect-network.net/internal/domain"
)

// gathered returns the value of the sample of family name carrying label=value
func gathered(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetGauge().GetValue() + m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetGauge().GetValue() + m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("no sample %s{%s=%q}", name, label, value)
	return 0
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.ObserveMessage("in", "task", "ok")
	c.ObserveMessage("in", "task", "ok")
	c.ObserveMessage("out", "payment", "send_failed")
	c.SetPeers("worker", 3)
	c.CountEvent(context.Background(), domain.Event{Type: domain.EventTaskCreated})

	if v := gathered(t, reg, "effect_messages_total", "outcome", "send_failed"); v != 1 {
		t.Fatalf("send_failed = %v", v)
	}
	if v := gathered(t, reg, "effect_messages_total", "kind", "task"); v != 2 {
		t.Fatalf("task messages = %v", v)
	}
	if v := gathered(t, reg, "effect_peers", "role", "worker"); v != 3 {
		t.Fatalf("peers = %v", v)
	}
	if v := gathered(t, reg, "effect_domain_events_total", "type", "task:created"); v != 1 {
		t.Fatalf("events = %v", v)
	}
}

func TestWatchQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	q := workerqueue.New()
	if err := c.WatchQueue(q); err != nil {
		t.Fatalf("WatchQueue: %v", err)
	}

	ctx := context.Background()
	_ = q.Add(ctx, "w1")
	_ = q.Add(ctx, "w2")
	if v := gathered(t, reg, "effect_worker_queue_length", "", ""); v != 2 {
		t.Fatalf("queue length = %v", v)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewCollector(reg, logging.NewNopLogger()); err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	if _, err := NewCollector(reg, logging.NewNopLogger()); err == nil {
		t.Fatal("second collector registered on the same registry")
	}
}
