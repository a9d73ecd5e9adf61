package walletstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"

	"neptunewallet/internal/wtypes"
)

// UtxoRow is one row of the utxos table, decoded.
type UtxoRow struct {
	ID               int64
	Hash             wtypes.Digest
	Recovery         wtypes.UtxoRecoveryData
	ConfirmedInBlock wtypes.Digest
	SpentInBlock     *wtypes.Digest
	ConfirmHeight    uint64
	SpentHeight      *uint64
	ConfirmedTxid    *string
	SpentTxid        *string
}

func encodeRecovery(r wtypes.UtxoRecoveryData) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, fmt.Errorf("encode recovery data: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecovery(raw []byte) (wtypes.UtxoRecoveryData, error) {
	var r wtypes.UtxoRecoveryData
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&r); err != nil {
		return r, fmt.Errorf("decode recovery data: %w", err)
	}
	return r, nil
}

// appendUtxos inserts newly discovered incoming UTXOs within tx, confirmed
// at confirmHeight/confirmedInBlock. Returns the assigned row ids in the
// same order as recoveries, so callers can attach expected-utxo matches and
// guesser raw-hash-key bookkeeping to the right row.
func appendUtxos(ctx context.Context, tx *sql.Tx, confirmHeight uint64, confirmedInBlock wtypes.Digest, recoveries []wtypes.UtxoRecoveryData) ([]int64, error) {
	ids := make([]int64, 0, len(recoveries))
	for _, r := range recoveries {
		hash := wtypes.HashUtxo(r.UtxoVal)
		blob, err := encodeRecovery(r)
		if err != nil {
			return nil, err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO utxos (hash, recovery_data, confirmed_in_block, confirm_height)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(hash) DO NOTHING`,
			hash.String(), blob, confirmedInBlock.String(), confirmHeight)
		if err != nil {
			return nil, fmt.Errorf("insert utxo: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("read inserted utxo id: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("read inserted utxo count: %w", err)
		}
		if inserted == 0 {
			// Already present (duplicate scan of the same height); look it
			// up so the caller's id list stays aligned with recoveries.
			if err := tx.QueryRowContext(ctx, `SELECT id FROM utxos WHERE hash = ?`, hash.String()).Scan(&id); err != nil {
				return nil, fmt.Errorf("resolve existing utxo id: %w", err)
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// unspentForScan returns every currently-unspent UTXO's recovery data, used
// by the outgoing scan to compute absolute index sets and compare against
// the block's removal records.
func unspentForScan(ctx context.Context, tx *sql.Tx) ([]UtxoRow, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, hash, recovery_data, confirmed_in_block, confirm_height
		 FROM utxos WHERE spent_height IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("query unspent utxos: %w", err)
	}
	defer rows.Close()

	var out []UtxoRow
	for rows.Next() {
		var row UtxoRow
		var hashStr, confirmedStr string
		var blob []byte
		if err := rows.Scan(&row.ID, &hashStr, &blob, &confirmedStr, &row.ConfirmHeight); err != nil {
			return nil, fmt.Errorf("scan unspent utxo: %w", err)
		}
		hash, err := wtypes.DigestFromString(hashStr)
		if err != nil {
			return nil, fmt.Errorf("parse utxo hash: %w", err)
		}
		row.Hash = hash
		recovery, err := decodeRecovery(blob)
		if err != nil {
			return nil, err
		}
		row.Recovery = recovery
		out = append(out, row)
	}
	return out, rows.Err()
}

// markSpent flags a UTXO as spent at spentHeight in spentInBlock.
func markSpent(ctx context.Context, tx *sql.Tx, id int64, spentHeight uint64, spentInBlock wtypes.Digest) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE utxos SET spent_height = ?, spent_in_block = ? WHERE id = ?`,
		spentHeight, spentInBlock.String(), id); err != nil {
		return fmt.Errorf("mark utxo %d spent: %w", id, err)
	}
	return nil
}

// setConfirmedTxid copies a matched expected-utxo's txid onto a freshly
// inserted UTXO row.
func setConfirmedTxid(ctx context.Context, tx *sql.Tx, id int64, txid string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE utxos SET confirmed_txid = ? WHERE id = ?`, txid, id); err != nil {
		return fmt.Errorf("set confirmed txid on utxo %d: %w", id, err)
	}
	return nil
}

// setSpentTxid copies the observed spending txid onto a newly-spent UTXO
// row, used by pending reconciliation.
func setSpentTxid(ctx context.Context, tx *sql.Tx, id int64, txid string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE utxos SET spent_txid = ? WHERE id = ?`, txid, id); err != nil {
		return fmt.Errorf("set spent txid on utxo %d: %w", id, err)
	}
	return nil
}

// GetUtxos returns every UTXO row regardless of spent state, for history
// views.
func (s *Store) GetUtxos(ctx context.Context) ([]UtxoRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hash, recovery_data, confirmed_in_block, confirm_height, spent_height, spent_in_block, confirmed_txid, spent_txid
		 FROM utxos ORDER BY confirm_height`)
	if err != nil {
		return nil, fmt.Errorf("query utxos: %w", err)
	}
	defer rows.Close()
	return scanUtxoRows(rows)
}

// GetUnspentUtxos returns unspent UTXOs ordered by confirm_height ascending
// (the "Oldest" input-selection default's natural iteration order).
func (s *Store) GetUnspentUtxos(ctx context.Context) ([]UtxoRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hash, recovery_data, confirmed_in_block, confirm_height, spent_height, spent_in_block, confirmed_txid, spent_txid
		 FROM utxos WHERE spent_height IS NULL ORDER BY confirm_height`)
	if err != nil {
		return nil, fmt.Errorf("query unspent utxos: %w", err)
	}
	defer rows.Close()
	return scanUtxoRows(rows)
}

func scanUtxoRows(rows *sql.Rows) ([]UtxoRow, error) {
	var out []UtxoRow
	for rows.Next() {
		var row UtxoRow
		var hashStr, confirmedStr string
		var blob []byte
		var spentInBlock, confirmedTxid, spentTxid sql.NullString
		var spentHeight sql.NullInt64
		if err := rows.Scan(&row.ID, &hashStr, &blob, &confirmedStr, &row.ConfirmHeight, &spentHeight, &spentInBlock, &confirmedTxid, &spentTxid); err != nil {
			return nil, fmt.Errorf("scan utxo row: %w", err)
		}
		hash, err := wtypes.DigestFromString(hashStr)
		if err != nil {
			return nil, fmt.Errorf("parse utxo hash: %w", err)
		}
		row.Hash = hash
		confirmed, err := wtypes.DigestFromString(confirmedStr)
		if err != nil {
			return nil, fmt.Errorf("parse confirmed_in_block: %w", err)
		}
		row.ConfirmedInBlock = confirmed
		recovery, err := decodeRecovery(blob)
		if err != nil {
			return nil, err
		}
		row.Recovery = recovery
		if spentHeight.Valid {
			h := uint64(spentHeight.Int64)
			row.SpentHeight = &h
		}
		if spentInBlock.Valid {
			d, err := wtypes.DigestFromString(spentInBlock.String)
			if err != nil {
				return nil, fmt.Errorf("parse spent_in_block: %w", err)
			}
			row.SpentInBlock = &d
		}
		if confirmedTxid.Valid {
			row.ConfirmedTxid = &confirmedTxid.String
		}
		if spentTxid.Valid {
			row.SpentTxid = &spentTxid.String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
