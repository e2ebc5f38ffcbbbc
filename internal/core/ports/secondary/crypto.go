package secondary

import (
	"context"

	"gitlab.com/effect-network.net/internal/domain"
)

// Signer signs payment payloads with the manager key
type Signer interface {
	PublicKey() domain.PublicKey
	Sign(payload []byte) (domain.Signature, error)
}

// ProvingBackend turns a batch of signed payments into a succinct proof
type ProvingBackend interface {
	Prove(ctx context.Context, req domain.ProofRequest) (domain.ProofResponse, error)
	Verify(sig domain.Signature, payload []byte, pub domain.PublicKey) bool
}
