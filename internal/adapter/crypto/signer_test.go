package crypto

import (
	"testing"

	"gitlab.com/effect-network.net/internal/domain"
)

func testPayment() domain.Payment {
	return domain.Payment{Amount: 1_000_000, Recipient: "recipient-1", PaymentAccount: "acct-7", Nonce: 3}
}

func TestSignVerify(t *testing.T) {
	signer, err := GenerateSigner()
	if err != nil {
		t.Fatalf("GenerateSigner: %v", err)
	}
	p := testPayment()
	sig, err := signer.Sign(p.SigningPayload())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(sig, p.SigningPayload(), signer.PublicKey()) {
		t.Fatalf("Verify rejected a valid signature")
	}

	tampered := p
	tampered.Amount++
	if Verify(sig, tampered.SigningPayload(), signer.PublicKey()) {
		t.Fatalf("Verify accepted a signature over a different amount")
	}

	other, _ := GenerateSigner()
	if Verify(sig, p.SigningPayload(), other.PublicKey()) {
		t.Fatalf("Verify accepted a signature under another key")
	}

	bad := sig
	bad.S = append([]byte(nil), sig.S...)
	bad.S[31] ^= 0x01
	if Verify(bad, p.SigningPayload(), signer.PublicKey()) {
		t.Fatalf("Verify accepted a modified S")
	}
}

func TestSignerDeterministic(t *testing.T) {
	signer, _ := GenerateSigner()
	reloaded, err := NewSigner(signer.PrivateKeyHex())
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if !reloaded.PublicKey().Equal(signer.PublicKey()) {
		t.Fatalf("reloaded signer has a different public key")
	}
	if reloaded.PeerID() != signer.PeerID() {
		t.Fatalf("peer IDs differ")
	}

	payload := testPayment().SigningPayload()
	a, _ := signer.Sign(payload)
	b, _ := reloaded.Sign(payload)
	if string(a.S) != string(b.S) || string(a.R8.R8_1) != string(b.R8.R8_1) {
		t.Fatalf("signatures over the same payload differ")
	}
}

func TestNewSignerRejectsBadKeys(t *testing.T) {
	for _, in := range []string{"", "zz", "0102", "0000000000000000000000000000000000000000000000000000000000000000"} {
		if _, err := NewSigner(in); err == nil {
			t.Errorf("NewSigner(%q) succeeded", in)
		}
	}
}
