package walletstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"time"

	"neptunewallet/internal/wtypes"
)

// ExpectedUtxo is an off-chain notification the wallet recorded before the
// corresponding transaction confirmed: a sender handed it the UTXO's
// addressed data out of band, ahead of seeing it on chain.
type ExpectedUtxo struct {
	ID        int64
	Txid      string
	Data      wtypes.UtxoRecoveryData
	Timestamp time.Time
}

// AddExpectedUtxo records an off-chain notification for later matching
// against incoming addition records.
func (s *Store) AddExpectedUtxo(ctx context.Context, txid string, data wtypes.UtxoRecoveryData) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("encode expected utxo data: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO expected_utxos (txid, data, timestamp) VALUES (?, ?, ?)`,
		txid, buf.Bytes(), time.Now().Unix()); err != nil {
		return fmt.Errorf("insert expected utxo: %w", err)
	}
	return nil
}

func listExpectedUtxos(ctx context.Context, tx *sql.Tx) ([]ExpectedUtxo, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, txid, data, timestamp FROM expected_utxos`)
	if err != nil {
		return nil, fmt.Errorf("query expected utxos: %w", err)
	}
	defer rows.Close()
	var out []ExpectedUtxo
	for rows.Next() {
		var e ExpectedUtxo
		var blob []byte
		var ts int64
		if err := rows.Scan(&e.ID, &e.Txid, &blob, &ts); err != nil {
			return nil, fmt.Errorf("scan expected utxo: %w", err)
		}
		var data wtypes.UtxoRecoveryData
		if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&data); err != nil {
			return nil, fmt.Errorf("decode expected utxo data: %w", err)
		}
		e.Data = data
		e.Timestamp = time.Unix(ts, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

func deleteExpectedUtxo(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM expected_utxos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete expected utxo %d: %w", id, err)
	}
	return nil
}

// CleanOldExpectedUtxos garbage-collects notifications older than the
// matching TTL. Run opportunistically after each block commit, outside the
// commit's own transaction (§4.5).
func (s *Store) CleanOldExpectedUtxos(ctx context.Context) error {
	cutoff := time.Now().Add(-expectedUtxoTTL).Unix()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM expected_utxos WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("clean expected utxos: %w", err)
	}
	return nil
}

// --- raw hash keys -----------------------------------------------------

func insertRawHashKey(ctx context.Context, tx *sql.Tx, preimage wtypes.Digest) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO raw_hash_keys (key) VALUES (?) ON CONFLICT(key) DO NOTHING`,
		preimage.String()); err != nil {
		return fmt.Errorf("insert raw hash key: %w", err)
	}
	return nil
}

// RawHashKeys returns every guesser-fee receiver-preimage the wallet has
// ever claimed, used to recognise guesser-fee UTXOs on rescan.
func (s *Store) RawHashKeys(ctx context.Context) ([]wtypes.Digest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM raw_hash_keys`)
	if err != nil {
		return nil, fmt.Errorf("query raw hash keys: %w", err)
	}
	defer rows.Close()
	var out []wtypes.Digest
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, fmt.Errorf("scan raw hash key: %w", err)
		}
		d, err := wtypes.DigestFromString(hex)
		if err != nil {
			return nil, fmt.Errorf("parse raw hash key: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
