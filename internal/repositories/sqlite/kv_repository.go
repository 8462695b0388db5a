package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

const schema = `
CREATE TABLE IF NOT EXISTS storefront_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

type kvRow struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	UpdatedAt string `db:"updated_at"`
}

// KeyValueRepository persists documents in a single SQLite table.
type KeyValueRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ repositories.KeyValueRepository = (*KeyValueRepository)(nil)

// Option customises the repository.
type Option func(*KeyValueRepository)

// WithClock overrides the clock used for updated_at.
func WithClock(clock func() time.Time) Option {
	return func(r *KeyValueRepository) {
		if clock != nil {
			r.now = clock
		}
	}
}

// Open connects to the SQLite file at path and ensures the schema exists.
func Open(ctx context.Context, path string, opts ...Option) (*KeyValueRepository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite kv: path is required")
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("sqlite kv: open %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite kv: migrate: %w", err)
	}

	repo := &KeyValueRepository{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// Get returns the stored value for key.
func (r *KeyValueRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var row kvRow
	err := r.db.GetContext(ctx, &row, `SELECT key, value, updated_at FROM storefront_kv WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewStoreError("sqlite.get", repositories.ErrorKindNotFound, repositories.ErrKeyNotFound)
		}
		return nil, wrap("sqlite.get", err)
	}
	return []byte(row.Value), nil
}

// Put upserts value under key.
func (r *KeyValueRepository) Put(ctx context.Context, key string, value []byte) error {
	row := kvRow{
		Key:       key,
		Value:     string(value),
		UpdatedAt: r.now().UTC().Format(time.RFC3339Nano),
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO storefront_kv (key, value, updated_at) VALUES (:key, :value, :updated_at)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, row)
	return wrap("sqlite.put", err)
}

// Delete removes key. Missing keys are ignored.
func (r *KeyValueRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM storefront_kv WHERE key = ?`, key)
	return wrap("sqlite.delete", err)
}

// Keys lists keys with the given prefix.
func (r *KeyValueRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	err := r.db.SelectContext(ctx, &keys, `SELECT key FROM storefront_kv WHERE key LIKE ? ESCAPE '\' ORDER BY key`, escaped+"%")
	if err != nil {
		return nil, wrap("sqlite.keys", err)
	}
	return keys, nil
}

// Ping verifies the database handle.
func (r *KeyValueRepository) Ping(ctx context.Context) error {
	return wrap("sqlite.ping", r.db.PingContext(ctx))
}

// Close releases the database handle.
func (r *KeyValueRepository) Close() error {
	return r.db.Close()
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	kind := repositories.ErrorKindUnknown
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy") {
		kind = repositories.ErrorKindUnavailable
	}
	return repositories.NewStoreError(op, kind, err)
}
