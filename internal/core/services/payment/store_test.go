package payment

import (
	"context"
	"errors"
	"testing"

	"gitlab.com/effect-network.net/internal/adapter/datastore/memory"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/static/errs"
)

func TestHighestNonceOutOfOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New(), ManagerNamespace)

	if n, err := store.GetHighestNonce(ctx, "P"); err != nil || n != 0 {
		t.Fatalf("GetHighestNonce on empty = %d, %v", n, err)
	}
	for _, nonce := range []uint64{3, 7, 2} {
		if _, err := store.CreatePayment(ctx, "P", domain.Payment{Amount: nonce * 10, Nonce: nonce}); err != nil {
			t.Fatalf("CreatePayment(%d): %v", nonce, err)
		}
	}
	_, _ = store.CreatePayment(ctx, "P1", domain.Payment{Nonce: 1000})

	n, err := store.GetHighestNonce(ctx, "P")
	if err != nil || n != 7 {
		t.Fatalf("GetHighestNonce = %d, %v; want 7", n, err)
	}
}

func TestHighestNonceNumericOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New(), ManagerNamespace)
	for _, nonce := range []uint64{9, 10, 100, 11} {
		_, _ = store.CreatePayment(ctx, "P", domain.Payment{Nonce: nonce})
	}
	if n, _ := store.GetHighestNonce(ctx, "P"); n != 100 {
		t.Fatalf("GetHighestNonce = %d, want 100", n)
	}
}

func TestCreatePaymentCollision(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New(), ManagerNamespace)
	if _, err := store.CreatePayment(ctx, "P", domain.Payment{Nonce: 1, Amount: 5}); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if _, err := store.CreatePayment(ctx, "P", domain.Payment{Nonce: 1, Amount: 6}); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("duplicate nonce: got %v, want ErrAlreadyExists", err)
	}
	all, _ := store.List(ctx, "P")
	if len(all) != 1 || all[0].Amount != 5 {
		t.Fatalf("stored payments = %+v", all)
	}
}

func TestGetFromAndExactRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New(), WalletNamespace)
	sig := domain.Signature{
		R8: domain.Point{R8_1: []byte{0x00, 0xff, 0x10}, R8_2: []byte{0x7f}},
		S:  []byte{0xde, 0xad, 0xbe, 0xef},
	}
	for nonce := uint64(1); nonce <= 4; nonce++ {
		_, _ = store.CreatePayment(ctx, "M", domain.Payment{Nonce: nonce, Amount: 18446744073709551615 - nonce, Signature: sig})
	}

	got, err := store.GetFrom(ctx, "M", 3)
	if err != nil {
		t.Fatalf("GetFrom: %v", err)
	}
	if len(got) != 2 || got[0].Nonce != 3 || got[1].Nonce != 4 {
		t.Fatalf("GetFrom = %+v", got)
	}
	if got[0].Amount != 18446744073709551612 {
		t.Fatalf("amount drifted: %d", got[0].Amount)
	}
	if string(got[0].Signature.R8.R8_1) != string(sig.R8.R8_1) || string(got[0].Signature.S) != string(sig.S) {
		t.Fatalf("signature bytes changed: %+v", got[0].Signature)
	}
}
