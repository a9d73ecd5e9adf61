package walletstore

import (
	"context"
	"fmt"

	"neptunewallet/internal/wtypes"
)

// ReorganizeToHeight implements the reorg-handling transaction (§4.5): roll
// back every UTXO confirmed after the fork point, resurrect every UTXO
// spent after it, and move the tip back to the fork point itself. The
// caller (SyncEngine) is responsible for locating forkHeight/forkDigest via
// the remote is_canonical walk and for resetting its mutator-set
// accumulator afterward.
func (s *Store) ReorganizeToHeight(ctx context.Context, forkHeight uint64, forkDigest wtypes.Digest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorganize: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM utxos WHERE confirm_height > ?`, forkHeight)
	if err != nil {
		return fmt.Errorf("query orphaned utxos: %w", err)
	}
	var orphaned []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan orphaned utxo id: %w", err)
		}
		orphaned = append(orphaned, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate orphaned utxos: %w", err)
	}

	for _, id := range orphaned {
		if err := tryRemovePendingByUtxoID(ctx, tx, id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM utxos WHERE confirm_height > ?`, forkHeight); err != nil {
		return fmt.Errorf("delete orphaned utxos: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE utxos SET spent_height = NULL, spent_in_block = NULL, spent_txid = NULL WHERE spent_height > ?`,
		forkHeight); err != nil {
		return fmt.Errorf("resurrect rolled-back spends: %w", err)
	}

	if err := setUint64Tx(ctx, tx, keyTipHeight, forkHeight); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO keys (id, value) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET value = excluded.value`,
		keyTipDigest, forkDigest.String()); err != nil {
		return fmt.Errorf("write fork-point tip digest: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorganize: %w", err)
	}
	return nil
}
