package sqlstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"gitlab.com/effect-network.net/internal/adapter/logging"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/static/errs"
)

func openSQLite(t *testing.T) *Datastore {
	t.Helper()
	ds, err := Open(context.Background(), SQLite, ":memory:", logging.NewNopLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func exerciseDatastore(t *testing.T, ds secondary.Datastore) {
	t.Helper()
	ctx := context.Background()

	if _, err := ds.Get(ctx, "/payments/p1/00000000000000000001"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Get missing: got %v, want ErrNotFound", err)
	}

	keys := []string{
		"/payments/p1/00000000000000000003",
		"/payments/p1/00000000000000000007",
		"/payments/p1/00000000000000000002",
		"/payments/p10/00000000000000000009",
		"/tasks/t1",
	}
	for _, k := range keys {
		if err := ds.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}
	if err := ds.Put(ctx, keys[0], []byte("overwritten")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	v, err := ds.Get(ctx, keys[0])
	if err != nil || string(v) != "overwritten" {
		t.Fatalf("Get after overwrite = %q, %v", v, err)
	}

	top, err := ds.QueryKeys(ctx, secondary.Query{Prefix: "/payments/p1/", Order: secondary.OrderDesc, Limit: 1})
	if err != nil {
		t.Fatalf("QueryKeys: %v", err)
	}
	if len(top) != 1 || top[0] != keys[1] {
		t.Fatalf("highest key = %v, want %s", top, keys[1])
	}

	all, err := ds.Query(ctx, secondary.Query{Prefix: "/payments/p1/"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Query returned %d entries, want 3 (p10 must not match p1/)", len(all))
	}

	filtered, err := ds.Query(ctx, secondary.Query{
		Prefix:  "/payments/",
		Limit:   1,
		Filters: []secondary.Filter{func(e secondary.Entry) bool { return string(e.Value) == keys[3] }},
	})
	if err != nil || len(filtered) != 1 || filtered[0].Key != keys[3] {
		t.Fatalf("filtered Query = %v, %v", filtered, err)
	}

	if err := ds.Delete(ctx, "/tasks/t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, err := ds.Has(ctx, "/tasks/t1"); err != nil || ok {
		t.Fatalf("Has after Delete = %v, %v", ok, err)
	}
}

func TestSQLiteDatastore(t *testing.T) {
	exerciseDatastore(t, openSQLite(t))
}

func TestPostgresDatastore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ds, err := Open(context.Background(), PostgresPgx, dsn, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ds.Close()

	ctx := context.Background()
	keys, _ := ds.QueryKeys(ctx, secondary.Query{Prefix: "/payments/"})
	for _, k := range keys {
		_ = ds.Delete(ctx, k)
	}
	_ = ds.Delete(ctx, "/tasks/t1")
	exerciseDatastore(t, ds)
}
