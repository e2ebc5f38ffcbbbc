// Package prover holds proving backends for payment batches.
package prover

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"golang.org/x/crypto/sha3"

	"gitlab.com/effect-network.net/internal/adapter/crypto"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/static/errs"
)

var _ secondary.ProvingBackend = (*DigestBackend)(nil)

const (
	Protocol = "groth16"
	Curve    = "bn128"
)

// bn128 scalar field modulus
var fieldModulus, _ = new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// DigestBackend binds a batch to a deterministic attestation shaped like a
// groth16 proof. The public signals are the total amount, the nonce range,
// the recipient and the signer key, in that order.
type DigestBackend struct{}

func NewDigestBackend() *DigestBackend {
	return &DigestBackend{}
}

func (b *DigestBackend) Verify(sig domain.Signature, payload []byte, pub domain.PublicKey) bool {
	return crypto.Verify(sig, payload, pub)
}

func (b *DigestBackend) Prove(ctx context.Context, req domain.ProofRequest) (domain.ProofResponse, error) {
	if req.BatchSize() == 0 {
		return domain.ProofResponse{}, errs.ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return domain.ProofResponse{}, err
	}

	signals, err := PublicSignals(req)
	if err != nil {
		return domain.ProofResponse{}, err
	}

	transcript := transcript(req)
	fe := func(label string) string {
		h := sha3.Sum256(append(transcript, label...))
		return new(big.Int).Mod(new(big.Int).SetBytes(h[:]), fieldModulus).String()
	}

	return domain.ProofResponse{
		PiA:      []string{fe("a.x"), fe("a.y"), "1"},
		PiB:      [][]string{{fe("b.x0"), fe("b.x1")}, {fe("b.y0"), fe("b.y1")}, {"1", "0"}},
		PiC:      []string{fe("c.x"), fe("c.y"), "1"},
		Protocol: Protocol,
		Curve:    Curve,
		Signals:  signals,
	}, nil
}

// Check reports whether resp is the attestation Prove returns for req
func (b *DigestBackend) Check(ctx context.Context, req domain.ProofRequest, resp domain.ProofResponse) bool {
	want, err := b.Prove(ctx, req)
	if err != nil || len(want.Signals) != len(resp.Signals) {
		return false
	}
	for i := range want.Signals {
		if want.Signals[i] != resp.Signals[i] {
			return false
		}
	}
	return want.PiA[0] == resp.PiA[0] && want.PiC[0] == resp.PiC[0]
}

// PublicSignals computes the public inputs of a batch
func PublicSignals(req domain.ProofRequest) ([]string, error) {
	var total uint64
	minNonce, maxNonce := uint64(math.MaxUint64), uint64(0)
	for _, p := range req.Payments {
		if total > math.MaxUint64-p.Amount {
			return nil, errs.ErrAmountOverflow
		}
		total += p.Amount
		if p.Nonce < minNonce {
			minNonce = p.Nonce
		}
		if p.Nonce > maxNonce {
			maxNonce = p.Nonce
		}
	}

	recipient := sha3.Sum256([]byte(req.Recipient))
	return []string{
		strconv.FormatUint(total, 10),
		strconv.FormatUint(minNonce, 10),
		strconv.FormatUint(maxNonce, 10),
		new(big.Int).Mod(new(big.Int).SetBytes(recipient[:]), fieldModulus).String(),
		new(big.Int).SetBytes(req.PublicKey.X).String(),
		new(big.Int).SetBytes(req.PublicKey.Y).String(),
	}, nil
}

func transcript(req domain.ProofRequest) []byte {
	h := sha3.New256()
	fmt.Fprintf(h, "%s|%s|", req.Recipient, req.PaymentAccount)
	h.Write(req.PublicKey.X)
	h.Write(req.PublicKey.Y)
	for _, p := range req.ToPayments() {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(p.SigningPayload())))
		h.Write(n[:])
		h.Write(p.SigningPayload())
		h.Write(p.Signature.R8.R8_1)
		h.Write(p.Signature.R8.R8_2)
		h.Write(p.Signature.S)
	}
	return h.Sum(nil)
}
