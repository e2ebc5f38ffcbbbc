package domain

// Role identifies which side of the protocol a peer plays
type Role string

const (
	RoleManager Role = "manager"
	RoleWorker  Role = "worker"
)

// SessionData is the role data a peer announces right after connecting.
// Worker sessions carry ID, Nonce and Recipient; manager sessions carry
// PublicKey.
type SessionData struct {
	Role      Role       `json:"role"`
	ID        string     `json:"id,omitempty"`
	Nonce     uint64     `json:"nonce,omitempty"`
	Recipient string     `json:"recipient,omitempty"`
	PublicKey *PublicKey `json:"publicKey,omitempty"`
}
