package secondary

import "context"

type Order int

const (
	OrderAsc Order = iota
	OrderDesc
)

// Entry is one key/value pair returned by a query
type Entry struct {
	Key   string
	Value []byte
}

// Filter drops entries it returns false for. Filters run after the prefix
// match and before Limit is applied.
type Filter func(Entry) bool

// Query selects entries whose key starts with Prefix, ordered by key
type Query struct {
	Prefix  string
	Order   Order
	Limit   int
	Filters []Filter
}

// Match reports whether e passes every filter of q
func (q Query) Match(e Entry) bool {
	for _, f := range q.Filters {
		if !f(e) {
			return false
		}
	}
	return true
}

// Datastore is an ordered key-value store with prefix range iteration.
// Get returns errs.ErrNotFound for a missing key.
type Datastore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Query(ctx context.Context, q Query) ([]Entry, error)
	QueryKeys(ctx context.Context, q Query) ([]string, error)
	Close() error
}
