package walletstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PendingTransaction is one in-flight, not-yet-confirmed transaction the
// wallet is tracking for re-proving and broadcast retry. ID is the
// broadcast txid itself (the same canonical digest spend.computeTxid
// produces), so the confirmation and reorg paths can reach this row
// directly instead of joining through a separate reservation table.
// Details is an opaque blob owned by the spend package (its
// TransactionDetails, gob encoded); WalletStore never interprets it.
type PendingTransaction struct {
	ID       string
	Details  []byte
	Finished bool
}

// PendingInput links a pending transaction's txid to one UTXO id it
// reserves as an input, so a reorg or a confirming block can find and
// reconcile them. ID is pending_ids' own surrogate key: unlike the parent
// pending row, a single reservation has no canonical digest of its own to
// key by, so it gets a uuid instead.
type PendingInput struct {
	ID       string
	Txid     string
	UtxoID   int64
	Finished bool
}

// InsertPending records a new pending transaction keyed by its txid and
// the UTXO ids it reserves as inputs (original_source's add_transaction).
func (s *Store) InsertPending(ctx context.Context, txid string, details []byte, utxoIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert pending: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pending (id, details, finished) VALUES (?, ?, 0)`, txid, details); err != nil {
		return fmt.Errorf("insert pending: %w", err)
	}
	for _, utxoID := range utxoIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pending_ids (id, txid, utxo_id, finished) VALUES (?, ?, ?, 0)`,
			uuid.NewString(), txid, utxoID); err != nil {
			return fmt.Errorf("insert pending_ids: %w", err)
		}
	}
	return tx.Commit()
}

// ReservedUtxoIDs returns the ids of UTXOs currently reserved as inputs by
// an unfinished pending transaction, so CreateInput can exclude them from
// the candidate pool.
func (s *Store) ReservedUtxoIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT utxo_id FROM pending_ids WHERE finished = 0`)
	if err != nil {
		return nil, fmt.Errorf("query reserved utxo ids: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reserved utxo id: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// ListActivePending returns every pending row not yet finished, for the
// re-proving loop.
func (s *Store) ListActivePending(ctx context.Context) ([]PendingTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, details, finished FROM pending WHERE finished = 0`)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()
	var out []PendingTransaction
	for rows.Next() {
		var p PendingTransaction
		var finished int
		if err := rows.Scan(&p.ID, &p.Details, &finished); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		p.Finished = finished != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePendingDetails overwrites a pending row's details blob, used at the
// end of each re-proving pass so the next retry starts from the
// just-proven state (§4.5 step 8).
func (s *Store) UpdatePendingDetails(ctx context.Context, txid string, details []byte) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE pending SET details = ? WHERE id = ?`, details, txid); err != nil {
		return fmt.Errorf("update pending %s details: %w", txid, err)
	}
	return nil
}

// ForgetPending hard-deletes a pending row and its input reservations
// without a confirming spend — used when the caller abandons a
// transaction outright (the forget_tx RPC, original_source's
// delete_transaction).
func (s *Store) ForgetPending(ctx context.Context, txid string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin forget pending: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending WHERE id = ?`, txid); err != nil {
		return fmt.Errorf("delete pending %s: %w", txid, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_ids WHERE txid = ?`, txid); err != nil {
		return fmt.Errorf("delete pending_ids for %s: %w", txid, err)
	}
	return tx.Commit()
}

// pendingInputsForUtxo returns the not-yet-finished pending_ids rows that
// reserve utxoID, used both by reorg cleanup and by the spent-UTXO
// reconciliation step.
func pendingInputsForUtxo(ctx context.Context, tx *sql.Tx, utxoID int64) ([]PendingInput, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, txid, utxo_id, finished FROM pending_ids WHERE utxo_id = ? AND finished = 0`, utxoID)
	if err != nil {
		return nil, fmt.Errorf("query pending_ids for utxo %d: %w", utxoID, err)
	}
	defer rows.Close()
	var out []PendingInput
	for rows.Next() {
		var p PendingInput
		var finished int
		if err := rows.Scan(&p.ID, &p.Txid, &p.UtxoID, &finished); err != nil {
			return nil, fmt.Errorf("scan pending_ids row: %w", err)
		}
		p.Finished = finished != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// tryRemovePendingByUtxoID cleans up a pending transaction whose reserved
// input has disappeared from under it (a reorg rolled the UTXO back past
// existence): marks the pending_ids rows and their parent pending row
// finished, without a confirming spend, so the re-proving loop stops
// touching it (original_source's try_remove_pending_by_utxo_id).
func tryRemovePendingByUtxoID(ctx context.Context, tx *sql.Tx, utxoID int64) error {
	inputs, err := pendingInputsForUtxo(ctx, tx, utxoID)
	if err != nil {
		return err
	}
	for _, in := range inputs {
		if _, err := tx.ExecContext(ctx, `UPDATE pending SET finished = 1 WHERE id = ?`, in.Txid); err != nil {
			return fmt.Errorf("finish pending %s: %w", in.Txid, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE pending_ids SET finished = 1 WHERE txid = ?`, in.Txid); err != nil {
			return fmt.Errorf("finish pending_ids for %s: %w", in.Txid, err)
		}
	}
	return nil
}

// tryCleanPendingByUtxo hard-deletes the pending transaction that
// reserved utxoID and copies spendTxid onto the UTXO row, the
// confirmation-side counterpart of tryRemovePendingByUtxoID (§4.5 step 7;
// original_source's try_clean_pending_by_utxo, which deletes outright
// since a confirmed spend needs no further re-proving retries).
func tryCleanPendingByUtxo(ctx context.Context, tx *sql.Tx, utxoID int64, spendTxid string) error {
	inputs, err := pendingInputsForUtxo(ctx, tx, utxoID)
	if err != nil {
		return err
	}
	for _, in := range inputs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending WHERE id = ?`, in.Txid); err != nil {
			return fmt.Errorf("delete pending %s: %w", in.Txid, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_ids WHERE txid = ?`, in.Txid); err != nil {
			return fmt.Errorf("delete pending_ids for %s: %w", in.Txid, err)
		}
	}
	return setSpentTxid(ctx, tx, utxoID, spendTxid)
}
