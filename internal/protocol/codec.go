package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gitlab.com/effect-network.net/internal/domain"
	"gitlab.com/effect-network.net/internal/static/errs"
)

type decodeFunc[T any] func(json.RawMessage) (T, error)

func decodeAs[V any, T any](wrap func(V) T) decodeFunc[T] {
	return func(raw json.RawMessage) (T, error) {
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			var zero T
			return zero, err
		}
		return wrap(v), nil
	}
}

func asMessage[V Message](v V) Message               { return v }
func asSession[V SessionMessage](v V) SessionMessage { return v }

var messageDecoders = map[Kind]decodeFunc[Message]{
	KindTask:                  decodeAs(asMessage[Task]),
	KindTaskAccepted:          decodeAs(asMessage[TaskAccepted]),
	KindTaskRejected:          decodeAs(asMessage[TaskRejected]),
	KindTaskCompleted:         decodeAs(asMessage[TaskCompleted]),
	KindPayment:               decodeAs(asMessage[Payment]),
	KindPayoutRequest:         decodeAs(asMessage[PayoutRequest]),
	KindProofRequest:          decodeAs(asMessage[ProofRequest]),
	KindProofResponse:         decodeAs(asMessage[ProofResponse]),
	KindTemplateRequest:       decodeAs(asMessage[TemplateRequest]),
	KindTemplateResponse:      decodeAs(asMessage[TemplateResponse]),
	KindError:                 decodeAs(asMessage[Error]),
	KindAck:                   decodeAs(asMessage[Ack]),
	KindRequestToWork:         decodeAs(asMessage[RequestToWork]),
	KindRequestToWorkResponse: decodeAs(asMessage[RequestToWorkResponse]),
	KindIdentifyRequest:       decodeAs(asMessage[IdentifyRequest]),
	KindIdentifyResponse:      decodeAs(asMessage[IdentifyResponse]),
	KindBulkProofRequest:      decodeAs(asMessage[BulkProofRequest]),
}

var sessionDecoders = map[domain.Role]decodeFunc[SessionMessage]{
	domain.RoleWorker:  decodeAs(asSession[WorkerSession]),
	domain.RoleManager: decodeAs(asSession[ManagerSession]),
}

// Encode writes msg as a JSON object with exactly one field named after its kind
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode nil message: %w", errs.ErrMalformedMessage)
	}
	return json.Marshal(map[Kind]Message{msg.Kind(): msg})
}

// Decode parses an encoded message. Payloads with zero or several populated
// fields, or an unknown field, are rejected with ErrMalformedMessage.
func Decode(data []byte) (Message, error) {
	return decodeOneOf(data, messageDecoders)
}

// EncodeSession writes a session message keyed by its role
func EncodeSession(msg SessionMessage) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode nil session: %w", errs.ErrMalformedMessage)
	}
	return json.Marshal(map[domain.Role]SessionMessage{msg.Role(): msg})
}

// DecodeSession parses an encoded session message
func DecodeSession(data []byte) (SessionMessage, error) {
	return decodeOneOf(data, sessionDecoders)
}

func decodeOneOf[K ~string, T any](data []byte, decoders map[K]decodeFunc[T]) (T, error) {
	var zero T
	var fields map[K]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return zero, fmt.Errorf("%w: %v", errs.ErrMalformedMessage, err)
	}

	populated := make([]K, 0, 1)
	for k, raw := range fields {
		if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		populated = append(populated, k)
	}
	if len(populated) != 1 {
		return zero, fmt.Errorf("%w: expected exactly one populated field, got %d", errs.ErrMalformedMessage, len(populated))
	}

	key := populated[0]
	decode, ok := decoders[key]
	if !ok {
		return zero, fmt.Errorf("%w: unknown field %q", errs.ErrMalformedMessage, key)
	}
	msg, err := decode(fields[key])
	if err != nil {
		return zero, fmt.Errorf("%w: %s: %v", errs.ErrMalformedMessage, key, err)
	}
	return msg, nil
}
