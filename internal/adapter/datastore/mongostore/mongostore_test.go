package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"gitlab.com/effect-network.net/internal/adapter/logging"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/static/errs"
)

func TestRangeFilter(t *testing.T) {
	f := rangeFilter("/payments/p1/")
	bounds, ok := f["_id"].(bson.M)
	if !ok {
		t.Fatalf("rangeFilter = %#v", f)
	}
	if bounds["$gte"] != "/payments/p1/" || bounds["$lt"] != "/payments/p10" {
		t.Fatalf("bounds = %#v", bounds)
	}
	if len(rangeFilter("")) != 0 {
		t.Fatalf("empty prefix must not filter")
	}
}

func TestMongoDatastore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	ds, err := Connect(ctx, uri, "effect_test", logging.NewNopLogger())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ds.Close()
	_ = ds.coll.Drop(ctx)

	if _, err := ds.Get(ctx, "/missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
	for _, k := range []string{"/p/1", "/p/3", "/p/2", "/q/1"} {
		if err := ds.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	keys, err := ds.QueryKeys(ctx, secondary.Query{Prefix: "/p/", Order: secondary.OrderDesc, Limit: 2})
	if err != nil {
		t.Fatalf("QueryKeys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "/p/3" || keys[1] != "/p/2" {
		t.Fatalf("QueryKeys = %v", keys)
	}
}
