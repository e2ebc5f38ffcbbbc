package domain

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/effect-network.net/internal/static/errs"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusAssigned  TaskStatus = "ASSIGNED"
	TaskStatusAccepted  TaskStatus = "ACCEPTED"
	TaskStatusRejected  TaskStatus = "REJECTED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

// TaskEventType is the type of an entry in a task's event log
type TaskEventType string

const (
	TaskEventCreate   TaskEventType = "create"
	TaskEventAssign   TaskEventType = "assign"
	TaskEventAccept   TaskEventType = "accept"
	TaskEventReject   TaskEventType = "reject"
	TaskEventRequeue  TaskEventType = "requeue"
	TaskEventComplete TaskEventType = "complete"
	TaskEventPayout   TaskEventType = "payout"
)

// Task is a unit of work created by a manager and performed by a worker.
// Reward is a fixed-point token amount.
type Task struct {
	ID               string `json:"id" yaml:"id"`
	Title            string `json:"title" yaml:"title"`
	Reward           uint64 `json:"reward" yaml:"-"`
	TimeLimitSeconds uint32 `json:"timeLimitSeconds" yaml:"timeLimitSeconds"`
	TemplateID       string `json:"templateId" yaml:"templateId"`
	TemplateData     string `json:"templateData" yaml:"templateData"`
	Capability       string `json:"capability,omitempty" yaml:"capability"`
}

// TaskEvent is one append-only entry of a task record
type TaskEvent struct {
	Type      TaskEventType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Worker    string        `json:"worker,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Result    string        `json:"result,omitempty"`
	Nonce     uint64        `json:"nonce,omitempty"`
}

// TaskState is the materialized state of a task record
type TaskState struct {
	Task
	Status      TaskStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	Worker      string     `json:"worker,omitempty"`
	Manager     string     `json:"manager,omitempty"`
	Rejections  int        `json:"rejections,omitempty"`
	PaidNonce   uint64     `json:"paidNonce,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	QueuedAt    time.Time  `json:"queuedAt"`
	AssignedAt  *time.Time `json:"assignedAt,omitempty"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// TaskRecord is the event-sourced representation of a task
type TaskRecord struct {
	Events []TaskEvent `json:"events"`
	State  TaskState   `json:"state"`
}

// IsPaid reports whether a payout event has been recorded for the task
func (s TaskState) IsPaid() bool {
	return s.PaidNonce != 0
}

// NewTaskRecord creates a record holding a single create event
func NewTaskRecord(task Task, at time.Time) TaskRecord {
	rec := TaskRecord{}
	rec.State.Task = task
	// create on an empty record never fails
	_ = rec.Apply(TaskEvent{Type: TaskEventCreate, Timestamp: at})
	return rec
}

// TransitionError is returned when an action is attempted from the wrong state
type TransitionError struct {
	ID       string
	Action   TaskEventType
	Required []TaskStatus
	Actual   TaskStatus
}

func (e *TransitionError) Error() string {
	required := make([]string, 0, len(e.Required))
	for _, s := range e.Required {
		required = append(required, string(s))
	}
	return fmt.Sprintf("task %s: cannot %s from %s, requires %s",
		e.ID, e.Action, e.Actual, strings.Join(required, " or "))
}

func (e *TransitionError) Unwrap() error {
	return errs.ErrInvalidTransition
}

// requiredStatus lists the status each event may be applied from
var requiredStatus = map[TaskEventType]TaskStatus{
	TaskEventAssign:   TaskStatusPending,
	TaskEventAccept:   TaskStatusAssigned,
	TaskEventReject:   TaskStatusAssigned,
	TaskEventRequeue:  TaskStatusRejected,
	TaskEventComplete: TaskStatusAccepted,
	TaskEventPayout:   TaskStatusCompleted,
}

// Apply validates ev against the current state, appends it and updates the
// materialized state. The record is left untouched when an error is returned.
func (r *TaskRecord) Apply(ev TaskEvent) error {
	st := r.State
	at := ev.Timestamp

	if ev.Type == TaskEventCreate {
		if len(r.Events) > 0 {
			return &TransitionError{ID: st.ID, Action: ev.Type, Actual: st.Status}
		}
		st.Status = TaskStatusPending
		st.CreatedAt = at
		st.QueuedAt = at
		r.State = st
		r.Events = append(r.Events, ev)
		return nil
	}

	required, ok := requiredStatus[ev.Type]
	if !ok {
		return fmt.Errorf("task %s: unknown event type %q: %w", st.ID, ev.Type, errs.ErrInvalidTransition)
	}
	if st.Status != required || (ev.Type == TaskEventPayout && st.IsPaid()) {
		return &TransitionError{ID: st.ID, Action: ev.Type, Required: []TaskStatus{required}, Actual: st.Status}
	}

	switch ev.Type {
	case TaskEventAssign:
		st.Status = TaskStatusAssigned
		st.Worker = ev.Worker
		st.AssignedAt = &at
		st.AcceptedAt, st.RejectedAt, st.CompletedAt = nil, nil, nil
	case TaskEventAccept:
		st.Status = TaskStatusAccepted
		st.AcceptedAt = &at
	case TaskEventReject:
		st.Status = TaskStatusRejected
		st.RejectedAt = &at
		st.Rejections++
	case TaskEventRequeue:
		st.Status = TaskStatusPending
		st.Worker = ""
		st.QueuedAt = at
	case TaskEventComplete:
		st.Status = TaskStatusCompleted
		st.Result = ev.Result
		st.CompletedAt = &at
	case TaskEventPayout:
		st.PaidNonce = ev.Nonce
	}

	r.State = st
	r.Events = append(r.Events, ev)
	return nil
}

// ReplayTask rebuilds a record from its event log. The task body is taken
// from base since events carry only transition data.
func ReplayTask(base Task, events []TaskEvent) (TaskRecord, error) {
	rec := TaskRecord{State: TaskState{Task: base}}
	for _, ev := range events {
		if err := rec.Apply(ev); err != nil {
			return TaskRecord{}, err
		}
	}
	return rec, nil
}
