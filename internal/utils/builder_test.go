package querybuilder

import "testing"

func TestBuildSelect(t *testing.T) {
	query, args := NewQueryBuilder("public").
		Select("key", "value").
		From("kv").
		Where("key >= ?", "/a/").
		And("key < ?", "/a0").
		OrderBy("key", false).
		Limit(5).
		Build()

	want := "SELECT key, value FROM public.kv WHERE key >= ? AND key < ? ORDER BY key DESC LIMIT 5"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if len(args) != 2 || args[0] != "/a/" || args[1] != "/a0" {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildUpsert(t *testing.T) {
	query, args := NewQueryBuilder("").
		Insert("key", "value").
		Into("kv").
		Values("/k", []byte("v")).
		OnConflict("key").
		SetExclude("value").
		Build()

	want := "INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if len(args) != 2 {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildDelete(t *testing.T) {
	query, args := NewQueryBuilder("main").Delete("kv").Where("key = ?", "/k").Build()
	if query != "DELETE FROM main.kv WHERE key = ?" || len(args) != 1 {
		t.Fatalf("query = %q args = %v", query, args)
	}
}

func TestBuildInsertColumnMismatch(t *testing.T) {
	query, _ := NewQueryBuilder("").Insert("key", "value").Into("kv").Values("/k").Build()
	if query != "" {
		t.Fatalf("query = %q, want empty for mismatched row", query)
	}
}
