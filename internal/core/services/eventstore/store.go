// Package eventstore keeps event-sourced records in a namespaced region of
// an ordered key-value datastore.
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/static/errs"
	"gitlab.com/effect-network.net/internal/utils/keylock"
)

// Item is a decoded record together with its entity ID
type Item[R any] struct {
	ID     string
	Record R
}

// Query selects records whose ID starts with Prefix
type Query[R any] struct {
	Prefix string
	Order  secondary.Order
	Limit  int
	Filter func(id string, rec R) bool
}

// Store persists records of type R under "/<namespace>/<id>". Mutations of
// one ID through Create and Update are serialized.
type Store[R any] struct {
	ds    secondary.Datastore
	ns    string
	codec Codec[R]
	locks *keylock.Map
}

func New[R any](ds secondary.Datastore, namespace string, codec Codec[R]) *Store[R] {
	if codec == nil {
		codec = JSONCodec[R]{}
	}
	return &Store[R]{
		ds:    ds,
		ns:    "/" + strings.Trim(namespace, "/") + "/",
		codec: codec,
		locks: keylock.New(),
	}
}

func (s *Store[R]) key(id string) string {
	return s.ns + id
}

// Lock takes the entity lock for id. Callers holding it must use Get and
// Put, not Create or Update.
func (s *Store[R]) Lock(id string) func() {
	return s.locks.Lock(id)
}

func (s *Store[R]) Get(ctx context.Context, id string) (R, error) {
	var zero R
	data, err := s.ds.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return zero, fmt.Errorf("%s%s: %w", s.ns, id, errs.ErrNotFound)
		}
		return zero, err
	}
	rec, err := s.codec.Decode(data)
	if err != nil {
		return zero, fmt.Errorf("%s%s: %w", s.ns, id, err)
	}
	return rec, nil
}

func (s *Store[R]) Put(ctx context.Context, id string, rec R) error {
	data, err := s.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode %s%s: %w", s.ns, id, err)
	}
	return s.ds.Put(ctx, s.key(id), data)
}

func (s *Store[R]) Has(ctx context.Context, id string) (bool, error) {
	return s.ds.Has(ctx, s.key(id))
}

// Create stores rec only if id is not taken yet
func (s *Store[R]) Create(ctx context.Context, id string, rec R) error {
	unlock := s.Lock(id)
	defer unlock()

	exists, err := s.Has(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s%s: %w", s.ns, id, errs.ErrAlreadyExists)
	}
	return s.Put(ctx, id, rec)
}

// Update runs fn on the current record under the entity lock and stores
// its result. exists is false when no record was stored yet. Nothing is
// written when fn fails.
func (s *Store[R]) Update(ctx context.Context, id string, fn func(rec R, exists bool) (R, error)) (R, error) {
	unlock := s.Lock(id)
	defer unlock()

	var zero R
	rec, err := s.Get(ctx, id)
	exists := true
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			return zero, err
		}
		exists = false
	}

	next, err := fn(rec, exists)
	if err != nil {
		return zero, err
	}
	if err := s.Put(ctx, id, next); err != nil {
		return zero, err
	}
	return next, nil
}

// Query decodes the selected records. An unreadable record fails the whole
// query.
func (s *Store[R]) Query(ctx context.Context, q Query[R]) ([]Item[R], error) {
	dq := secondary.Query{Prefix: s.ns + q.Prefix, Order: q.Order}
	if q.Filter == nil {
		dq.Limit = q.Limit
	}

	entries, err := s.ds.Query(ctx, dq)
	if err != nil {
		return nil, err
	}

	items := make([]Item[R], 0, len(entries))
	for _, e := range entries {
		id := strings.TrimPrefix(e.Key, s.ns)
		rec, err := s.codec.Decode(e.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Key, err)
		}
		if q.Filter != nil && !q.Filter(id, rec) {
			continue
		}
		items = append(items, Item[R]{ID: id, Record: rec})
		if q.Limit > 0 && len(items) == q.Limit {
			break
		}
	}
	return items, nil
}

// QueryIDs lists entity IDs under prefix without decoding the records
func (s *Store[R]) QueryIDs(ctx context.Context, prefix string, order secondary.Order, limit int) ([]string, error) {
	keys, err := s.ds.QueryKeys(ctx, secondary.Query{Prefix: s.ns + prefix, Order: order, Limit: limit})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, s.ns)
	}
	return ids, nil
}
