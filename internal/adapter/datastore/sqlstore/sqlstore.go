// Package sqlstore is an ordered key-value datastore on a single SQL table.
// It runs on PostgreSQL (lib/pq or pgx) and on SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"gitlab.com/effect-network.net/internal/adapter/datastore"
	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/static/errs"
	querybuilder "gitlab.com/effect-network.net/internal/utils"
)

var _ secondary.Datastore = (*Datastore)(nil)

const (
	tableName = "kv_entries"
	colKey    = "entry_key"
	colValue  = "entry_value"
)

// Dialect holds what differs between the supported databases
type Dialect struct {
	Driver string
	Schema string
	DDL    string
}

var (
	Postgres = Dialect{
		Driver: "postgres",
		Schema: "public",
		DDL: `CREATE TABLE IF NOT EXISTS public.kv_entries (
			entry_key   TEXT COLLATE "C" PRIMARY KEY,
			entry_value BYTEA NOT NULL
		)`,
	}
	PostgresPgx = Dialect{
		Driver: "pgx",
		Schema: Postgres.Schema,
		DDL:    Postgres.DDL,
	}
	SQLite = Dialect{
		Driver: "sqlite",
		Schema: "main",
		DDL: `CREATE TABLE IF NOT EXISTS main.kv_entries (
			entry_key   TEXT PRIMARY KEY,
			entry_value BLOB NOT NULL
		)`,
	}
)

type kvRow struct {
	Key   string `db:"entry_key"`
	Value []byte `db:"entry_value"`
}

type Datastore struct {
	db      *sqlx.DB
	dialect Dialect
	logger  primary.Logger
}

// Open connects with dsn and creates the table if needed
func Open(ctx context.Context, dialect Dialect, dsn string, logger primary.Logger) (*Datastore, error) {
	db, err := sqlx.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Driver, err)
	}
	if dialect.Driver == SQLite.Driver {
		// every sqlite connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Driver, err)
	}
	return New(ctx, db, dialect, logger)
}

// New wraps an existing connection and creates the table if needed
func New(ctx context.Context, db *sqlx.DB, dialect Dialect, logger primary.Logger) (*Datastore, error) {
	if _, err := db.ExecContext(ctx, dialect.DDL); err != nil {
		return nil, fmt.Errorf("create %s: %w", tableName, err)
	}
	return &Datastore{db: db, dialect: dialect, logger: logger}, nil
}

func (d *Datastore) qb() querybuilder.QueryBuilder {
	return querybuilder.NewQueryBuilder(d.dialect.Schema)
}

func (d *Datastore) Get(ctx context.Context, key string) ([]byte, error) {
	query, args := d.qb().Select(colValue).From(tableName).Where(colKey+" = ?", key).Build()

	var value []byte
	if err := d.db.GetContext(ctx, &value, d.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		d.logger.Error("Failed to get entry", "key", key, "error", err)
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (d *Datastore) Put(ctx context.Context, key string, value []byte) error {
	query, args := d.qb().
		Insert(colKey, colValue).
		Into(tableName).
		Values(key, value).
		OnConflict(colKey).
		SetExclude(colValue).
		Build()

	if _, err := d.db.ExecContext(ctx, d.db.Rebind(query), args...); err != nil {
		d.logger.Error("Failed to put entry", "key", key, "error", err)
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (d *Datastore) Delete(ctx context.Context, key string) error {
	query, args := d.qb().Delete(tableName).Where(colKey+" = ?", key).Build()
	if _, err := d.db.ExecContext(ctx, d.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (d *Datastore) Has(ctx context.Context, key string) (bool, error) {
	query, args := d.qb().Select("COUNT(1)").From(tableName).Where(colKey+" = ?", key).Build()

	var n int
	if err := d.db.GetContext(ctx, &n, d.db.Rebind(query), args...); err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return n > 0, nil
}

func (d *Datastore) rangeQuery(q secondary.Query, cols ...string) (string, []interface{}) {
	qb := d.qb().Select(cols...).From(tableName)
	if q.Prefix != "" {
		qb = qb.Where(colKey+" >= ?", q.Prefix)
		if end := datastore.PrefixEnd(q.Prefix); end != "" {
			qb = qb.And(colKey+" < ?", end)
		}
	}
	qb = qb.OrderBy(colKey, q.Order != secondary.OrderDesc)
	if len(q.Filters) == 0 && q.Limit > 0 {
		qb = qb.Limit(q.Limit)
	}
	return qb.Build()
}

func (d *Datastore) Query(ctx context.Context, q secondary.Query) ([]secondary.Entry, error) {
	query, args := d.rangeQuery(q, colKey, colValue)

	var rows []kvRow
	if err := d.db.SelectContext(ctx, &rows, d.db.Rebind(query), args...); err != nil {
		d.logger.Error("Failed to query entries", "prefix", q.Prefix, "error", err)
		return nil, fmt.Errorf("query %s: %w", q.Prefix, err)
	}

	entries := make([]secondary.Entry, len(rows))
	for i, r := range rows {
		entries[i] = secondary.Entry{Key: r.Key, Value: r.Value}
	}
	return datastore.Collect(q, entries), nil
}

func (d *Datastore) QueryKeys(ctx context.Context, q secondary.Query) ([]string, error) {
	if len(q.Filters) > 0 {
		entries, err := d.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return datastore.Keys(entries), nil
	}

	query, args := d.rangeQuery(q, colKey)
	var keys []string
	if err := d.db.SelectContext(ctx, &keys, d.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query keys %s: %w", q.Prefix, err)
	}
	return keys, nil
}

func (d *Datastore) Close() error {
	return d.db.Close()
}
