package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gitlab.com/effect-network.net/internal/adapter/crypto"
	"gitlab.com/effect-network.net/internal/adapter/datastore/memory"
	"gitlab.com/effect-network.net/internal/adapter/logging"
	"gitlab.com/effect-network.net/internal/adapter/prover"
	"gitlab.com/effect-network.net/internal/core/services/events"
	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/protocol"
	"gitlab.com/effect-network.net/internal/static/errs"
)

type sentMessage struct {
	peer string
	msg  protocol.Message
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSender) SendMessage(_ context.Context, peerID string, msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{peer: peerID, msg: msg})
	return nil
}

func (f *fakeSender) last() protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1].msg
}

type sessionMap map[string]domain.SessionData

func (s sessionMap) Get(peerID string) (domain.SessionData, bool) {
	d, ok := s[peerID]
	return d, ok
}

type fakeTasks struct {
	unpaid   map[string][]domain.TaskRecord
	paid     map[string]uint64
	failMark error
}

func (f *fakeTasks) ListUnpaid(_ context.Context, worker string) ([]domain.TaskRecord, error) {
	var out []domain.TaskRecord
	for _, rec := range f.unpaid[worker] {
		if _, ok := f.paid[rec.State.ID]; !ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeTasks) MarkPaid(_ context.Context, id string, nonce uint64) error {
	if f.failMark != nil {
		return f.failMark
	}
	f.paid[id] = nonce
	return nil
}

func completed(id string, reward uint64) domain.TaskRecord {
	rec := domain.TaskRecord{}
	rec.State.ID = id
	rec.State.Reward = reward
	rec.State.Status = domain.TaskStatusCompleted
	return rec
}

type managerFixture struct {
	mgr    *Manager
	signer *crypto.Signer
	tasks  *fakeTasks
	sender *fakeSender
	events []domain.Event
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	signer, err := crypto.GenerateSigner()
	if err != nil {
		t.Fatalf("GenerateSigner: %v", err)
	}
	f := &managerFixture{
		signer: signer,
		tasks:  &fakeTasks{unpaid: map[string][]domain.TaskRecord{}, paid: map[string]uint64{}},
		sender: &fakeSender{},
	}
	bus := events.NewBus(logging.NewNopLogger())
	bus.Subscribe(events.AllEvents, func(_ context.Context, ev domain.Event) { f.events = append(f.events, ev) })

	sessions := sessionMap{"W": {Role: domain.RoleWorker, ID: "W", Recipient: "0xrecipient"}}
	f.mgr = NewManager(NewStore(memory.New(), ManagerNamespace), f.tasks, sessions, signer,
		prover.NewDigestBackend(), f.sender, bus, logging.NewNopLogger(), "0xaccount")
	return f
}

func (f *managerFixture) proofRequest(t *testing.T, payments ...domain.Payment) domain.ProofRequest {
	t.Helper()
	req := domain.ProofRequest{Recipient: "0xrecipient", PaymentAccount: "0xaccount", PublicKey: f.signer.PublicKey()}
	for _, p := range payments {
		req.Payments = append(req.Payments, domain.PaymentProof{Signature: p.Signature, Amount: p.Amount, Nonce: p.Nonce})
	}
	return req
}

func TestGeneratePayout(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.tasks.unpaid["W"] = []domain.TaskRecord{completed("t1", 5), completed("t2", 7)}

	p, err := f.mgr.GeneratePayout(ctx, "W")
	if err != nil || p == nil {
		t.Fatalf("GeneratePayout = %v, %v", p, err)
	}
	if p.Amount != 12 || p.Nonce != 1 || p.Recipient != "0xrecipient" {
		t.Fatalf("unexpected payment %+v", p)
	}
	if !crypto.Verify(p.Signature, p.SigningPayload(), f.signer.PublicKey()) {
		t.Fatal("payment signature does not verify")
	}
	if f.tasks.paid["t1"] != 1 || f.tasks.paid["t2"] != 1 {
		t.Fatalf("tasks not marked paid: %v", f.tasks.paid)
	}

	f.tasks.unpaid["W"] = append(f.tasks.unpaid["W"], completed("t3", 1))
	p, err = f.mgr.GeneratePayout(ctx, "W")
	if err != nil || p == nil || p.Nonce != 2 || p.Amount != 1 {
		t.Fatalf("second payout = %+v, %v", p, err)
	}
}

func TestGeneratePayoutDoesNotPayTwiceWhenMarkPaidFails(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.tasks.unpaid["W"] = []domain.TaskRecord{completed("t1", 100)}
	f.tasks.failMark = errors.New("task store unavailable")

	p, err := f.mgr.GeneratePayout(ctx, "W")
	if err != nil || p == nil || p.Amount != 100 {
		t.Fatalf("first payout = %+v, %v", p, err)
	}
	p, err = f.mgr.GeneratePayout(ctx, "W")
	if err != nil || p != nil {
		t.Fatalf("second payout = %+v, %v; want nothing owed", p, err)
	}

	f.tasks.failMark = nil
	f.tasks.unpaid["W"] = append(f.tasks.unpaid["W"], completed("t2", 7))
	p, err = f.mgr.GeneratePayout(ctx, "W")
	if err != nil || p == nil || p.Amount != 7 || p.Nonce != 2 {
		t.Fatalf("third payout = %+v, %v", p, err)
	}
	if f.tasks.paid["t1"] != 1 || f.tasks.paid["t2"] != 2 {
		t.Fatalf("paid = %v", f.tasks.paid)
	}
	all, _ := f.mgr.ListPayments(ctx, "W")
	if len(all) != 2 {
		t.Fatalf("stored payments = %+v", all)
	}
}

func TestGeneratePayoutNothingOwed(t *testing.T) {
	f := newManagerFixture(t)
	p, err := f.mgr.GeneratePayout(context.Background(), "W")
	if err != nil || p != nil {
		t.Fatalf("GeneratePayout = %v, %v; want nil, nil", p, err)
	}
	if len(f.events) != 0 {
		t.Fatalf("unexpected events %v", f.events)
	}
}

func TestGeneratePayoutUnknownPeer(t *testing.T) {
	f := newManagerFixture(t)
	if _, err := f.mgr.GeneratePayout(context.Background(), "X"); !errors.Is(err, errs.ErrUnknownPeer) {
		t.Fatalf("err = %v, want ErrUnknownPeer", err)
	}
}

func TestGeneratePaymentProof(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.tasks.unpaid["W"] = []domain.TaskRecord{completed("t1", 5)}
	p1, _ := f.mgr.GeneratePayout(ctx, "W")
	f.tasks.unpaid["W"] = append(f.tasks.unpaid["W"], completed("t2", 3))
	p2, _ := f.mgr.GeneratePayout(ctx, "W")

	resp, err := f.mgr.GeneratePaymentProof(ctx, "W", f.proofRequest(t, *p1, *p2))
	if err != nil {
		t.Fatalf("GeneratePaymentProof: %v", err)
	}
	if resp.Protocol != "groth16" || len(resp.Signals) < 3 {
		t.Fatalf("unexpected proof %+v", resp)
	}
	if resp.Signals[0] != "8" || resp.Signals[1] != "1" || resp.Signals[2] != "2" {
		t.Fatalf("public signals = %v", resp.Signals[:3])
	}
}

func TestProofRequestWithBadSignatureIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.tasks.unpaid["W"] = []domain.TaskRecord{completed("t1", 5)}
	p1, _ := f.mgr.GeneratePayout(ctx, "W")
	f.tasks.unpaid["W"] = append(f.tasks.unpaid["W"], completed("t2", 3))
	p2, _ := f.mgr.GeneratePayout(ctx, "W")

	forged := *p2
	forged.Amount = 300
	req := f.proofRequest(t, *p1, forged)

	err := f.mgr.HandleProofRequest(ctx, "W", protocol.ProofRequest{ProofRequest: req})
	if !errors.Is(err, errs.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	reply, ok := f.sender.last().(protocol.Error)
	if !ok {
		t.Fatalf("last message = %#v, want an error reply", f.sender.last())
	}
	if reply.Code != 401 {
		t.Fatalf("error code = %d", reply.Code)
	}
	for _, s := range f.sender.sent {
		if _, ok := s.msg.(protocol.ProofResponse); ok {
			t.Fatal("proof sent for a batch with an invalid payment")
		}
	}
}

func TestProofRequestWithRepeatedNonceIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.tasks.unpaid["W"] = []domain.TaskRecord{completed("t1", 100)}
	p, _ := f.mgr.GeneratePayout(ctx, "W")
	f.tasks.unpaid["W"] = append(f.tasks.unpaid["W"], completed("t2", 3))
	p2, _ := f.mgr.GeneratePayout(ctx, "W")

	cases := map[string]domain.ProofRequest{
		"repeated":   f.proofRequest(t, *p, *p, *p),
		"descending": f.proofRequest(t, *p2, *p),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.mgr.GeneratePaymentProof(ctx, "W", req)
			if !errors.Is(err, errs.ErrStaleNonce) {
				t.Fatalf("err = %v, want ErrStaleNonce", err)
			}
		})
	}

	n := len(f.sender.sent)
	_ = f.mgr.HandleProofRequest(ctx, "W", protocol.ProofRequest{ProofRequest: cases["repeated"]})
	if reply, ok := f.sender.last().(protocol.Error); !ok || reply.Code != 400 || len(f.sender.sent) != n+1 {
		t.Fatalf("last message = %#v", f.sender.last())
	}
}

func TestProofRequestForUnissuedPaymentIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)

	// correctly signed by this manager but never stored
	p := domain.Payment{Amount: 50, Nonce: 1, Recipient: "0xrecipient", PaymentAccount: "0xaccount", PublicKey: f.signer.PublicKey()}
	p.Signature, _ = f.signer.Sign(p.SigningPayload())
	if _, err := f.mgr.GeneratePaymentProof(ctx, "W", f.proofRequest(t, p)); !errors.Is(err, errs.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestProofRequestForAnotherRecipientIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.tasks.unpaid["W"] = []domain.TaskRecord{completed("t1", 5)}
	p, _ := f.mgr.GeneratePayout(ctx, "W")

	req := f.proofRequest(t, *p)
	req.Recipient = "0xother"
	if _, err := f.mgr.GeneratePaymentProof(ctx, "W", req); !errors.Is(err, errs.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	if _, err := f.mgr.GeneratePaymentProof(ctx, "X", f.proofRequest(t, *p)); !errors.Is(err, errs.ErrUnknownPeer) {
		t.Fatalf("err = %v, want ErrUnknownPeer", err)
	}
}

func TestProofRequestForeignKey(t *testing.T) {
	f := newManagerFixture(t)
	other, _ := crypto.GenerateSigner()
	p := domain.Payment{Amount: 1, Nonce: 1, Recipient: "0xrecipient", PaymentAccount: "0xaccount", PublicKey: other.PublicKey()}
	p.Signature, _ = other.Sign(p.SigningPayload())

	req := f.proofRequest(t, p)
	req.PublicKey = other.PublicKey()
	if _, err := f.mgr.GeneratePaymentProof(context.Background(), "W", req); !errors.Is(err, errs.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestProofRequestEmpty(t *testing.T) {
	f := newManagerFixture(t)
	if _, err := f.mgr.GeneratePaymentProof(context.Background(), "W", f.proofRequest(t)); !errors.Is(err, errs.ErrEmptyBatch) {
		t.Fatalf("err = %v, want ErrEmptyBatch", err)
	}
}

func TestHandlePayoutRequest(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	f.tasks.unpaid["W"] = []domain.TaskRecord{completed("t1", 4)}

	if err := f.mgr.HandlePayoutRequest(ctx, "W", protocol.PayoutRequest{PeerID: "W"}); err != nil {
		t.Fatalf("HandlePayoutRequest: %v", err)
	}
	msg, ok := f.sender.last().(protocol.Payment)
	if !ok || msg.Amount != 4 {
		t.Fatalf("last message = %#v", f.sender.last())
	}

	n := len(f.sender.sent)
	if err := f.mgr.HandlePayoutRequest(ctx, "W", protocol.PayoutRequest{PeerID: "W"}); err != nil {
		t.Fatalf("HandlePayoutRequest with nothing owed: %v", err)
	}
	if len(f.sender.sent) != n {
		t.Fatal("message sent with nothing owed")
	}

	if err := f.mgr.HandlePayoutRequest(ctx, "W", protocol.PayoutRequest{PeerID: "Z"}); err == nil {
		t.Fatal("payout for another peer accepted")
	}
	if reply, ok := f.sender.last().(protocol.Error); !ok || reply.Code != 403 {
		t.Fatalf("last message = %#v", f.sender.last())
	}
}

func TestResupply(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)
	for i, id := range []string{"t1", "t2", "t3"} {
		f.tasks.unpaid["W"] = append(f.tasks.unpaid["W"], completed(id, uint64(i+1)))
		if _, err := f.mgr.GeneratePayout(ctx, "W"); err != nil {
			t.Fatalf("GeneratePayout: %v", err)
		}
	}

	n, err := f.mgr.Resupply(ctx, "W", 1)
	if err != nil || n != 2 {
		t.Fatalf("Resupply = %d, %v; want 2", n, err)
	}
	first := f.sender.sent[0].msg.(protocol.Payment)
	if first.Nonce != 2 {
		t.Fatalf("first resupplied nonce = %d", first.Nonce)
	}

	if n, _ := f.mgr.Resupply(ctx, "W", 3); n != 0 {
		t.Fatalf("Resupply up to date = %d", n)
	}
}
