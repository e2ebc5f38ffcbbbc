package eventstore

import (
	"encoding/json"
	"fmt"

	"gitlab.com/effect-network.net/internal/static/errs"
)

// Codec serializes one record type
type Codec[R any] interface {
	Encode(rec R) ([]byte, error)
	Decode(data []byte) (R, error)
}

// JSONCodec stores records as JSON. Integer fields decode into their
// declared Go types and byte slices as raw bytes, so amounts and signature
// points survive a round trip exactly.
type JSONCodec[R any] struct{}

func (JSONCodec[R]) Encode(rec R) ([]byte, error) {
	return json.Marshal(rec)
}

func (JSONCodec[R]) Decode(data []byte) (R, error) {
	var rec R
	if err := json.Unmarshal(data, &rec); err != nil {
		var zero R
		return zero, fmt.Errorf("%w: %v", errs.ErrCorruptRecord, err)
	}
	return rec, nil
}
