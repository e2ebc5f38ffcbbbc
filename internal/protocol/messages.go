// Package protocol defines the logical wire messages exchanged between
// managers and workers. Each message family is a closed sum type: a value
// holds exactly one variant, so multi-field states cannot be constructed.
package protocol

import "gitlab.com/effect-network.net/internal/domain"

// Version is the protocol schema version announced during identify
const Version = "1.0.0"

// Kind is the discriminant of an effect protocol message
type Kind string

const (
	KindTask                  Kind = "task"
	KindTaskAccepted          Kind = "taskAccepted"
	KindTaskRejected          Kind = "taskRejected"
	KindTaskCompleted         Kind = "taskCompleted"
	KindPayment               Kind = "payment"
	KindPayoutRequest         Kind = "payoutRequest"
	KindProofRequest          Kind = "proofRequest"
	KindProofResponse         Kind = "proofResponse"
	KindTemplateRequest       Kind = "templateRequest"
	KindTemplateResponse      Kind = "templateResponse"
	KindError                 Kind = "error"
	KindAck                   Kind = "ack"
	KindRequestToWork         Kind = "requestToWork"
	KindRequestToWorkResponse Kind = "requestToWorkResponse"
	KindIdentifyRequest       Kind = "identifyRequest"
	KindIdentifyResponse      Kind = "identifyResponse"
	KindBulkProofRequest      Kind = "bulkProofRequest"
)

// Message is one variant of the effect protocol message union
type Message interface {
	Kind() Kind
	isMessage()
}

type (
	Task struct {
		domain.Task
	}

	TaskAccepted struct {
		TaskID    string `json:"taskId"`
		Worker    string `json:"worker"`
		Timestamp int64  `json:"timestamp"`
	}

	TaskRejected struct {
		TaskID    string `json:"taskId"`
		Worker    string `json:"worker"`
		Reason    string `json:"reason"`
		Timestamp int64  `json:"timestamp"`
	}

	TaskCompleted struct {
		TaskID string `json:"taskId"`
		Worker string `json:"worker"`
		Result string `json:"result"`
	}

	Payment struct {
		domain.Payment
	}

	PayoutRequest struct {
		PeerID string `json:"peerId"`
	}

	ProofRequest struct {
		domain.ProofRequest
	}

	ProofResponse struct {
		domain.ProofResponse
	}

	TemplateRequest struct {
		TemplateID string `json:"templateId"`
	}

	TemplateResponse struct {
		TemplateID string `json:"templateId"`
		Data       string `json:"data"`
	}

	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	Ack struct {
		Ref string `json:"ref"`
	}

	RequestToWork struct{}

	RequestToWorkResponse struct {
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason,omitempty"`
	}

	IdentifyRequest struct{}

	IdentifyResponse struct {
		PeerID    string            `json:"peerId"`
		Role      domain.Role       `json:"role"`
		PublicKey *domain.PublicKey `json:"publicKey,omitempty"`
		Version   string            `json:"version"`
	}

	BulkProofRequest struct {
		domain.BulkProofRequest
	}
)

func (Task) Kind() Kind                  { return KindTask }
func (TaskAccepted) Kind() Kind          { return KindTaskAccepted }
func (TaskRejected) Kind() Kind          { return KindTaskRejected }
func (TaskCompleted) Kind() Kind         { return KindTaskCompleted }
func (Payment) Kind() Kind               { return KindPayment }
func (PayoutRequest) Kind() Kind         { return KindPayoutRequest }
func (ProofRequest) Kind() Kind          { return KindProofRequest }
func (ProofResponse) Kind() Kind         { return KindProofResponse }
func (TemplateRequest) Kind() Kind       { return KindTemplateRequest }
func (TemplateResponse) Kind() Kind      { return KindTemplateResponse }
func (Error) Kind() Kind                 { return KindError }
func (Ack) Kind() Kind                   { return KindAck }
func (RequestToWork) Kind() Kind         { return KindRequestToWork }
func (RequestToWorkResponse) Kind() Kind { return KindRequestToWorkResponse }
func (IdentifyRequest) Kind() Kind       { return KindIdentifyRequest }
func (IdentifyResponse) Kind() Kind      { return KindIdentifyResponse }
func (BulkProofRequest) Kind() Kind      { return KindBulkProofRequest }

func (Task) isMessage()                  {}
func (TaskAccepted) isMessage()          {}
func (TaskRejected) isMessage()          {}
func (TaskCompleted) isMessage()         {}
func (Payment) isMessage()               {}
func (PayoutRequest) isMessage()         {}
func (ProofRequest) isMessage()          {}
func (ProofResponse) isMessage()         {}
func (TemplateRequest) isMessage()       {}
func (TemplateResponse) isMessage()      {}
func (Error) isMessage()                 {}
func (Ack) isMessage()                   {}
func (RequestToWork) isMessage()         {}
func (RequestToWorkResponse) isMessage() {}
func (IdentifyRequest) isMessage()       {}
func (IdentifyResponse) isMessage()      {}
func (BulkProofRequest) isMessage()      {}

// SessionMessage is the union exchanged on the session protocol
type SessionMessage interface {
	Role() domain.Role
	isSession()
}

type (
	WorkerSession struct {
		ID        string `json:"id"`
		Nonce     uint64 `json:"nonce"`
		Recipient string `json:"recipient"`
	}

	ManagerSession struct {
		PubX []byte `json:"pubX"`
		PubY []byte `json:"pubY"`
	}
)

func (WorkerSession) Role() domain.Role  { return domain.RoleWorker }
func (ManagerSession) Role() domain.Role { return domain.RoleManager }
func (WorkerSession) isSession()         {}
func (ManagerSession) isSession()        {}

// SessionData converts a session message into its domain form
func SessionData(msg SessionMessage) domain.SessionData {
	switch m := msg.(type) {
	case WorkerSession:
		return domain.SessionData{Role: domain.RoleWorker, ID: m.ID, Nonce: m.Nonce, Recipient: m.Recipient}
	case ManagerSession:
		return domain.SessionData{Role: domain.RoleManager, PublicKey: &domain.PublicKey{X: m.PubX, Y: m.PubY}}
	}
	return domain.SessionData{}
}
