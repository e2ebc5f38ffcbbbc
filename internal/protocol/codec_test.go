package protocol

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/static/errs"
)

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode(%s): %v", msg.Kind(), err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(%s): %v", data, err)
	}
	return got
}

func TestRoundTrip(t *testing.T) {
	sig := domain.Signature{
		R8: domain.Point{R8_1: []byte{0x00, 0xff, 0x10}, R8_2: []byte{0x7f, 0x80}},
		S:  []byte{0x01, 0x00, 0x00, 0xfe},
	}
	msgs := []Message{
		Task{domain.Task{ID: "t1", Title: "label", Reward: math.MaxUint64, TimeLimitSeconds: math.MaxUint32, TemplateID: "tpl", TemplateData: `{"a":1}`}},
		Payment{domain.Payment{
			ID:             "p1",
			Amount:         math.MaxUint64 - 1,
			Recipient:      "0xrecipient",
			PaymentAccount: "0xaccount",
			Nonce:          1 << 60,
			PublicKey:      domain.PublicKey{X: []byte{1, 2, 3}, Y: []byte{4, 5, 6}},
			Signature:      sig,
		}},
		ProofResponse{domain.ProofResponse{
			PiA:      []string{"1", "2", "1"},
			PiB:      [][]string{{"3", "4"}, {"5", "6"}, {"1", "0"}},
			PiC:      []string{"7", "8", "1"},
			Protocol: "groth16",
			Curve:    "bn128",
			Signals:  []string{"18446744073709551615", "1", "2"},
		}},
		TaskRejected{TaskID: "t2", Worker: "W", Reason: "busy", Timestamp: 1700000000000},
		RequestToWork{},
		IdentifyResponse{PeerID: "M", Role: domain.RoleManager, PublicKey: &domain.PublicKey{X: []byte{9}, Y: []byte{8}}, Version: Version},
	}

	for _, msg := range msgs {
		got := roundTrip(t, msg)
		if !reflect.DeepEqual(got, msg) {
			t.Errorf("%s: got %#v, want %#v", msg.Kind(), got, msg)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty object":   `{}`,
		"two fields":     `{"task":{"id":"t1"},"ack":{"ref":"1"}}`,
		"unknown field":  `{"bogus":{}}`,
		"null only":      `{"task":null}`,
		"not an object":  `[1,2]`,
		"bad variant":    `{"payment":{"amount":"lots"}}`,
		"negative value": `{"task":{"reward":-1}}`,
	}
	for name, data := range cases {
		if _, err := Decode([]byte(data)); !errors.Is(err, errs.ErrMalformedMessage) {
			t.Errorf("%s: err = %v, want ErrMalformedMessage", name, err)
		}
	}
}

func TestDecodeIgnoresNullFields(t *testing.T) {
	msg, err := Decode([]byte(`{"task":null,"ack":{"ref":"3"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ack, ok := msg.(Ack); !ok || ack.Ref != "3" {
		t.Fatalf("got %#v", msg)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	for _, msg := range []SessionMessage{
		WorkerSession{ID: "W", Nonce: 42, Recipient: "0xabc"},
		ManagerSession{PubX: []byte{1, 2}, PubY: []byte{3}},
	} {
		data, err := EncodeSession(msg)
		if err != nil {
			t.Fatalf("EncodeSession: %v", err)
		}
		got, err := DecodeSession(data)
		if err != nil {
			t.Fatalf("DecodeSession(%s): %v", data, err)
		}
		if !reflect.DeepEqual(got, msg) {
			t.Errorf("got %#v, want %#v", got, msg)
		}
	}

	if _, err := DecodeSession([]byte(`{"worker":{},"manager":{}}`)); !errors.Is(err, errs.ErrMalformedMessage) {
		t.Fatalf("err = %v", err)
	}

	data := SessionData(ManagerSession{PubX: []byte{1}, PubY: []byte{2}})
	if data.Role != domain.RoleManager || data.PublicKey == nil {
		t.Fatalf("SessionData = %+v", data)
	}
}

func TestEncodeNil(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, errs.ErrMalformedMessage) {
		t.Fatalf("err = %v", err)
	}
}
