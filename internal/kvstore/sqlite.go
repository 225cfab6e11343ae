package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/xreply/internal/domain"
)

// SQLiteStore persists both tiers in a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	subs   *subscribers
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA journal_mode=WAL;
		CREATE TABLE IF NOT EXISTS kv (
			tier TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (tier, key)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	logger.Info("key/value store opened", "path", path)
	return &SQLiteStore{
		db:     db,
		logger: logger,
		subs:   newSubscribers(logger),
	}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, tier Tier, key string) (json.RawMessage, error) {
	if err := checkTier(tier); err != nil {
		return nil, err
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE tier = ? AND key = ?`, string(tier), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", tier, key, err)
	}
	return json.RawMessage(value), nil
}

// GetAll implements Store.
func (s *SQLiteStore) GetAll(ctx context.Context, tier Tier) (map[string]json.RawMessage, error) {
	if err := checkTier(tier); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE tier = ?`, string(tier))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", tier, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", tier, err)
		}
		out[key] = json.RawMessage(value)
	}
	return out, rows.Err()
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, tier Tier, values map[string]json.RawMessage) error {
	if err := checkTier(tier); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	changes := make([]Change, 0, len(values))
	for k, v := range values {
		if !json.Valid(v) {
			return fmt.Errorf("set %s/%s: value is not valid JSON", tier, k)
		}
		var old string
		err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE tier = ? AND key = ?`, string(tier), k).Scan(&old)
		if err == nil && old == string(v) {
			continue
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read %s/%s: %w", tier, k, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO kv (tier, key, value, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(tier, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, string(tier), k, string(v), now)
		if err != nil {
			return fmt.Errorf("set %s/%s: %w", tier, k, err)
		}
		changes = append(changes, Change{Tier: tier, Key: k, Value: clone(v)})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.subs.notify(changes...)
	return nil
}

// Remove implements Store.
func (s *SQLiteStore) Remove(ctx context.Context, tier Tier, keys ...string) error {
	if err := checkTier(tier); err != nil {
		return err
	}
	var changes []Change
	for _, k := range keys {
		res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE tier = ? AND key = ?`, string(tier), k)
		if err != nil {
			return fmt.Errorf("remove %s/%s: %w", tier, k, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			changes = append(changes, Change{Tier: tier, Key: k, Removed: true})
		}
	}
	s.subs.notify(changes...)
	return nil
}

// Subscribe implements Store.
func (s *SQLiteStore) Subscribe() (uint64, <-chan Change) {
	return s.subs.Subscribe()
}

// Unsubscribe implements Store.
func (s *SQLiteStore) Unsubscribe(id uint64) {
	s.subs.Unsubscribe(id)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.subs.closeAll()
	return s.db.Close()
}
