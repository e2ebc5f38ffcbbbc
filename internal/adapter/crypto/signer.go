package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/sha3"

	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/domain"
)

var _ secondary.Signer = (*Signer)(nil)

// peerIDVersion is the base58check version byte of peer IDs
const peerIDVersion = 0x3c

var ErrInvalidKey = errors.New("invalid private key")

// Signer produces Schnorr signatures over secp256k1. Signatures carry the
// full nonce point R and the scalar S = k + e*x with
// e = H(Rx || Ry || Px || Py || H(payload)).
type Signer struct {
	priv *btcec.PrivateKey
	pub  domain.PublicKey
}

// NewSigner loads a hex encoded 32 byte private key
func NewSigner(privHex string) (*Signer, error) {
	raw, err := hex.DecodeString(privHex)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidKey
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, ErrInvalidKey
	}
	return newSigner(priv), nil
}

// GenerateSigner creates a signer with a fresh random key
func GenerateSigner() (*Signer, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return newSigner(priv), nil
}

func newSigner(priv *btcec.PrivateKey) *Signer {
	return &Signer{priv: priv, pub: PublicKeyOf(priv.PubKey())}
}

// PublicKeyOf returns the affine coordinates of pub
func PublicKeyOf(pub *btcec.PublicKey) domain.PublicKey {
	raw := pub.SerializeUncompressed()
	return domain.PublicKey{X: raw[1:33], Y: raw[33:65]}
}

func (s *Signer) PublicKey() domain.PublicKey {
	return s.pub
}

// PrivateKeyHex returns the key in the form accepted by NewSigner
func (s *Signer) PrivateKeyHex() string {
	b := s.priv.Key.Bytes()
	return hex.EncodeToString(b[:])
}

// PeerID returns the peer ID derived from the signer's public key
func (s *Signer) PeerID() string {
	return PeerIDFromPublicKey(s.priv.PubKey())
}

// PeerIDFromPublicKey is base58check(hash160(compressed key))
func PeerIDFromPublicKey(pub *btcec.PublicKey) string {
	return base58.CheckEncode(btcutil.Hash160(pub.SerializeCompressed()), peerIDVersion)
}

func (s *Signer) Sign(payload []byte) (domain.Signature, error) {
	h := sha3.Sum256(payload)
	privBytes := s.priv.Key.Bytes()

	var k btcec.ModNScalar
	kb := sha3.Sum256(append(privBytes[:], h[:]...))
	k.SetBytes(&kb)
	if k.IsZero() {
		return domain.Signature{}, fmt.Errorf("derived zero nonce")
	}

	var r btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&k, &r)
	r.ToAffine()
	rx, ry := r.X.Bytes(), r.Y.Bytes()

	e := challenge(rx[:], ry[:], s.pub, h)
	var sc btcec.ModNScalar
	sc.Mul2(&e, &s.priv.Key).Add(&k)
	sb := sc.Bytes()

	return domain.Signature{
		R8: domain.Point{R8_1: append([]byte(nil), rx[:]...), R8_2: append([]byte(nil), ry[:]...)},
		S:  sb[:],
	}, nil
}

func challenge(rx, ry []byte, pub domain.PublicKey, h [32]byte) btcec.ModNScalar {
	hasher := sha3.New256()
	for _, part := range [][]byte{rx, ry, pub.X, pub.Y, h[:]} {
		hasher.Write(part)
	}
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))

	var e btcec.ModNScalar
	e.SetBytes(&digest)
	return e
}

func parsePoint(x, y []byte) (*btcec.PublicKey, error) {
	if len(x) != 32 || len(y) != 32 {
		return nil, fmt.Errorf("point coordinates must be 32 bytes")
	}
	raw := make([]byte, 0, 65)
	raw = append(raw, 0x04)
	raw = append(raw, x...)
	raw = append(raw, y...)
	return btcec.ParsePubKey(raw)
}

// ParsePublicKey validates that key is a point on the curve
func ParsePublicKey(key domain.PublicKey) (*btcec.PublicKey, error) {
	return parsePoint(key.X, key.Y)
}

// Verify checks S*G == R + e*P for a signature produced by Sign
func Verify(sig domain.Signature, payload []byte, key domain.PublicKey) bool {
	pub, err := ParsePublicKey(key)
	if err != nil {
		return false
	}
	rPoint, err := parsePoint(sig.R8.R8_1, sig.R8.R8_2)
	if err != nil {
		return false
	}
	if len(sig.S) != 32 {
		return false
	}
	var s btcec.ModNScalar
	if overflow := s.SetByteSlice(sig.S); overflow || s.IsZero() {
		return false
	}

	h := sha3.Sum256(payload)
	e := challenge(sig.R8.R8_1, sig.R8.R8_2, key, h)

	var lhs, p, r, eP, rhs btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&s, &lhs)
	pub.AsJacobian(&p)
	rPoint.AsJacobian(&r)
	btcec.ScalarMultNonConst(&e, &p, &eP)
	btcec.AddNonConst(&r, &eP, &rhs)

	lhs.ToAffine()
	rhs.ToAffine()
	return lhs.X.Equals(&rhs.X) && lhs.Y.Equals(&rhs.Y)
}
