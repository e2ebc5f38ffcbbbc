// Package datastore holds helpers shared by the ordered key-value adapters.
package datastore

import "gitlab.com/effect-network.net/internal/core/ports/secondary"

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or "" when no such key exists.
func PrefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

// Collect applies the query filters and limit to entries already in key order
func Collect(q secondary.Query, entries []secondary.Entry) []secondary.Entry {
	if len(q.Filters) == 0 && (q.Limit <= 0 || len(entries) <= q.Limit) {
		return entries
	}
	out := make([]secondary.Entry, 0, len(entries))
	for _, e := range entries {
		if !q.Match(e) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// Keys returns the keys of entries
func Keys(entries []secondary.Entry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}
