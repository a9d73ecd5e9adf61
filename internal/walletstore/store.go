// Package walletstore is the durable SQLite-backed state layer (§4.5):
// watermarks, UTXOs, expected UTXOs, raw-hash keys, tip, and pending
// transactions. Grounded on klingdex's internal/storage/storage.go for the
// database/sql + mattn/go-sqlite3 setup convention (single connection, WAL,
// migrate-on-open) and on wallet_state_table.rs / mod.rs for the schema and
// per-block transaction shape.
package walletstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"neptunewallet/internal/wtypes"
)

const expectedUtxoTTL = 2 * time.Hour

// Store is the wallet's single SQLite connection. database/sql serializes
// all access through one *sql.DB with SetMaxOpenConns(1): SQLite does not
// tolerate concurrent writers, and the ingest loop is already
// single-threaded per §5.
type Store struct {
	db *sql.DB
}

// Open creates (if absent) and migrates the wallet database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open wallet database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS keys (
			id TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS utxos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hash TEXT NOT NULL UNIQUE,
			recovery_data BLOB NOT NULL,
			confirmed_in_block TEXT,
			spent_in_block TEXT,
			confirm_height INTEGER NOT NULL,
			spent_height INTEGER,
			confirmed_txid TEXT,
			spent_txid TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_utxos_confirm_height ON utxos (confirm_height)`,
		`CREATE INDEX IF NOT EXISTS idx_utxos_spent_height ON utxos (spent_height)`,
		`CREATE TABLE IF NOT EXISTS expected_utxos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			txid TEXT NOT NULL,
			data BLOB NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS raw_hash_keys (
			key TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS pending (
			id TEXT PRIMARY KEY,
			details BLOB NOT NULL,
			finished INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS pending_ids (
			id TEXT PRIMARY KEY,
			txid TEXT NOT NULL,
			utxo_id INTEGER NOT NULL,
			finished INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_ids_utxo ON pending_ids (utxo_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_ids_txid ON pending_ids (txid)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- keys table: watermarks and tip -----------------------------------

const (
	keyWatermarkGeneration = "watermark_generation"
	keyWatermarkSymmetric  = "watermark_symmetric"
	keyTipHeight           = "tip_height"
	keyTipDigest           = "tip_digest"
)

func (s *Store) getUint64(ctx context.Context, q queryer, id string) (uint64, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM keys WHERE id = ?`, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read key %s: %w", id, err)
	}
	var v uint64
	if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
		return 0, false, fmt.Errorf("parse key %s: %w", id, err)
	}
	return v, true, nil
}

// Watermark returns the current scan watermark for a key family, 0 if
// never set.
func (s *Store) Watermark(ctx context.Context, family int) (uint64, error) {
	id := watermarkKeyID(family)
	v, _, err := s.getUint64(ctx, s.db, id)
	return v, err
}

func watermarkKeyID(family int) string {
	if family == 0 {
		return keyWatermarkGeneration
	}
	return keyWatermarkSymmetric
}

// Tip returns the current tip (height, digest), ok=false if never set.
func (s *Store) Tip(ctx context.Context) (height uint64, digest wtypes.Digest, ok bool, err error) {
	h, ok1, err := s.getUint64(ctx, s.db, keyTipHeight)
	if err != nil || !ok1 {
		return 0, wtypes.Digest{}, false, err
	}
	var hexDigest string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM keys WHERE id = ?`, keyTipDigest).Scan(&hexDigest)
	if err != nil {
		return 0, wtypes.Digest{}, false, fmt.Errorf("read tip digest: %w", err)
	}
	d, err := wtypes.DigestFromString(hexDigest)
	if err != nil {
		return 0, wtypes.Digest{}, false, fmt.Errorf("parse tip digest: %w", err)
	}
	return h, d, true, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}
