package secondary

// Metrics records runtime counters of an entity
type Metrics interface {
	// ObserveMessage counts one effect protocol message. direction is "in"
	// or "out"; outcome is "ok" or a short failure reason.
	ObserveMessage(direction, kind, outcome string)
	// SetPeers reports how many peers of a role hold a session
	SetPeers(role string, n int)
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) ObserveMessage(string, string, string) {}
func (NopMetrics) SetPeers(string, int)                  {}
