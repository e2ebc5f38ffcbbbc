package domain

import "time"

// EventType names a domain event published to subscribers
type EventType string

const (
	EventTaskCreated    EventType = "task:created"
	EventTaskAssigned   EventType = "task:assigned"
	EventTaskAccepted   EventType = "task:accepted"
	EventTaskRejected   EventType = "task:rejected"
	EventTaskRequeued   EventType = "task:requeued"
	EventTaskCompleted  EventType = "task:completed"
	EventTaskReceived   EventType = "task:received"
	EventTaskPaid       EventType = "task:paid"
	EventPaymentCreated EventType = "payment:created"
	EventProofCreated   EventType = "proof:created"
	EventProofBulk      EventType = "proof:bulk"
)

// Event is a notification about a persisted state change
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TaskID    string      `json:"taskId,omitempty"`
	PeerID    string      `json:"peerId,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}
