// Package memory is an in-process ordered key-value datastore.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"gitlab.com/effect-network.net/internal/adapter/datastore"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/static/errs"
)

var _ secondary.Datastore = (*Datastore)(nil)

type Datastore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func New() *Datastore {
	return &Datastore{data: make(map[string][]byte)}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func (d *Datastore) Get(_ context.Context, key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.data[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return clone(v), nil
}

func (d *Datastore) Put(_ context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[key] = clone(value)
	return nil
}

func (d *Datastore) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.data, key)
	return nil
}

func (d *Datastore) Has(_ context.Context, key string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.data[key]
	return ok, nil
}

func (d *Datastore) Query(ctx context.Context, q secondary.Query) ([]secondary.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	entries := make([]secondary.Entry, 0)
	for k, v := range d.data {
		if strings.HasPrefix(k, q.Prefix) {
			entries = append(entries, secondary.Entry{Key: k, Value: clone(v)})
		}
	}
	d.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if q.Order == secondary.OrderDesc {
			return entries[i].Key > entries[j].Key
		}
		return entries[i].Key < entries[j].Key
	})
	return datastore.Collect(q, entries), nil
}

func (d *Datastore) QueryKeys(ctx context.Context, q secondary.Query) ([]string, error) {
	entries, err := d.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return datastore.Keys(entries), nil
}

func (d *Datastore) Close() error {
	return nil
}
