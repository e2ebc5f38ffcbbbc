package domain

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Point is an elliptic-curve point in affine coordinates
type Point struct {
	R8_1 []byte `json:"R8_1"`
	R8_2 []byte `json:"R8_2"`
}

// Signature is a Schnorr-style signature carrying the full nonce point
type Signature struct {
	R8 Point  `json:"R8"`
	S  []byte `json:"S"`
}

// PublicKey holds the affine coordinates of a signer's public key
type PublicKey struct {
	X []byte `json:"x"`
	Y []byte `json:"y"`
}

// Equal reports whether both keys have the same coordinates
func (k PublicKey) Equal(other PublicKey) bool {
	return bytes.Equal(k.X, other.X) && bytes.Equal(k.Y, other.Y)
}

// IsZero reports whether the key is unset
func (k PublicKey) IsZero() bool {
	return len(k.X) == 0 && len(k.Y) == 0
}

// Payment is a signed promise of Amount tokens to Recipient
type Payment struct {
	ID             string    `json:"id,omitempty"`
	Amount         uint64    `json:"amount"`
	Recipient      string    `json:"recipient"`
	PaymentAccount string    `json:"paymentAccount"`
	Nonce          uint64    `json:"nonce"`
	PublicKey      PublicKey `json:"publicKey"`
	Signature      Signature `json:"signature"`
	Label          string    `json:"label,omitempty"`
}

// SigningPayload returns the canonical bytes covered by the signature:
// amount and nonce as big-endian uint64 followed by the length-prefixed
// recipient and payment account.
func (p Payment) SigningPayload() []byte {
	var buf bytes.Buffer
	var num [8]byte

	binary.BigEndian.PutUint64(num[:], p.Amount)
	buf.Write(num[:])
	binary.BigEndian.PutUint64(num[:], p.Nonce)
	buf.Write(num[:])
	for _, s := range []string{p.Recipient, p.PaymentAccount} {
		binary.BigEndian.PutUint32(num[:4], uint32(len(s)))
		buf.Write(num[:4])
		buf.WriteString(s)
	}
	return buf.Bytes()
}

type PaymentEventType string

const PaymentEventCreate PaymentEventType = "create"

type PaymentEvent struct {
	Type      PaymentEventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
}

// PaymentRecord is the event-sourced representation of a payment
type PaymentRecord struct {
	Events []PaymentEvent `json:"events"`
	State  Payment        `json:"state"`
	// Tasks lists the task IDs the payment settles
	Tasks []string `json:"tasks,omitempty"`
}

// PaymentProof is the per-payment input of a proof request
type PaymentProof struct {
	Signature Signature `json:"signature"`
	Amount    uint64    `json:"amount"`
	Nonce     uint64    `json:"nonce"`
	Recipient string    `json:"recipient,omitempty"`
}

// ProofRequest asks for a validity proof over a batch of payments
type ProofRequest struct {
	Recipient      string         `json:"recipient"`
	PaymentAccount string         `json:"paymentAccount"`
	PublicKey      PublicKey      `json:"publicKey"`
	Payments       []PaymentProof `json:"payments"`
}

// BatchSize returns the number of payments in the request
func (r ProofRequest) BatchSize() int {
	return len(r.Payments)
}

// ToPayments expands the request into full payments for verification
func (r ProofRequest) ToPayments() []Payment {
	payments := make([]Payment, 0, len(r.Payments))
	for _, pp := range r.Payments {
		recipient := pp.Recipient
		if recipient == "" {
			recipient = r.Recipient
		}
		payments = append(payments, Payment{
			Amount:         pp.Amount,
			Recipient:      recipient,
			PaymentAccount: r.PaymentAccount,
			Nonce:          pp.Nonce,
			PublicKey:      r.PublicKey,
			Signature:      pp.Signature,
		})
	}
	return payments
}

// ProofResponse is a succinct validity proof over a payment batch
type ProofResponse struct {
	PiA      []string   `json:"pi_a"`
	PiB      [][]string `json:"pi_b"`
	PiC      []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
	Curve    string     `json:"curve"`
	Signals  []string   `json:"publicSignals"`
}

// BulkProofRequest aggregates proofs for a single settlement submission
type BulkProofRequest struct {
	Recipient      string          `json:"recipient"`
	PaymentAccount string          `json:"paymentAccount"`
	Proofs         []ProofResponse `json:"proofs"`
}

// ProofRecord is a proof kept by a worker until it is settled
type ProofRecord struct {
	Manager   string        `json:"manager"`
	MinNonce  uint64        `json:"minNonce"`
	MaxNonce  uint64        `json:"maxNonce"`
	Amount    uint64        `json:"amount"`
	Proof     ProofResponse `json:"proof"`
	CreatedAt time.Time     `json:"createdAt"`
}
