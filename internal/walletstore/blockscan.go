package walletstore

import (
	"context"
	"database/sql"
	"fmt"

	"neptunewallet/internal/wtypes"
)

// BlockApplyInput is everything the ingest loop has already computed for a
// block before handing it to WalletStore: incoming UTXOs with their AOCL
// leaf index already assigned (computed by walking the block's additions
// in canonical order against the in-memory mutator-set accumulator), and
// whether this wallet guessed the block.
type BlockApplyInput struct {
	Height           uint64
	BlockDigest      wtypes.Digest
	Incoming         []wtypes.UtxoRecoveryData
	BlockRemovals    []wtypes.AbsoluteIndexSet
	GuesserPreimage  *wtypes.Digest
	WatermarkGen     *uint64 // non-nil to raise the generation-key watermark in the same transaction
	WatermarkSym     *uint64
}

// BlockApplyResult reports what changed, for event emission and logging.
type BlockApplyResult struct {
	InsertedUtxoIDs []int64
	SpentUtxoIDs    []int64
}

// ApplyBlock performs the single-block scan-and-commit sequence (§4.5):
// insert incoming UTXOs, detect and mark outgoing spends, match expected
// UTXOs, record a guesser raw-hash key, advance watermarks, and move the
// tip — all inside one SQL transaction. Expected-UTXO GC runs afterward,
// outside the transaction.
func (s *Store) ApplyBlock(ctx context.Context, in BlockApplyInput) (*BlockApplyResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin apply block: %w", err)
	}
	defer tx.Rollback()

	insertedIDs, err := appendUtxos(ctx, tx, in.Height, in.BlockDigest, in.Incoming)
	if err != nil {
		return nil, err
	}

	spentIDs, err := scanAndMarkSpent(ctx, tx, in.Height, in.BlockDigest, in.BlockRemovals)
	if err != nil {
		return nil, err
	}

	if err := matchExpectedUtxos(ctx, tx, insertedIDs, in.Incoming); err != nil {
		return nil, err
	}

	if in.GuesserPreimage != nil {
		if err := insertRawHashKey(ctx, tx, *in.GuesserPreimage); err != nil {
			return nil, err
		}
	}

	if in.WatermarkGen != nil {
		if err := s.raiseWatermark(ctx, tx, 0, *in.WatermarkGen); err != nil {
			return nil, err
		}
	}
	if in.WatermarkSym != nil {
		if err := s.raiseWatermark(ctx, tx, 1, *in.WatermarkSym); err != nil {
			return nil, err
		}
	}

	if err := setUint64Tx(ctx, tx, keyTipHeight, in.Height); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO keys (id, value) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET value = excluded.value`,
		keyTipDigest, in.BlockDigest.String()); err != nil {
		return nil, fmt.Errorf("write tip digest: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit apply block: %w", err)
	}

	if err := s.CleanOldExpectedUtxos(ctx); err != nil {
		return nil, fmt.Errorf("clean expected utxos after commit: %w", err)
	}

	return &BlockApplyResult{InsertedUtxoIDs: insertedIDs, SpentUtxoIDs: spentIDs}, nil
}

func setUint64Tx(ctx context.Context, tx *sql.Tx, id string, value uint64) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO keys (id, value) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET value = excluded.value`,
		id, fmt.Sprintf("%d", value)); err != nil {
		return fmt.Errorf("write key %s: %w", id, err)
	}
	return nil
}

// raiseWatermark enforces invariant 4 (§4.5): watermark is non-decreasing,
// and is written in the same transaction as the UTXOs it unlocked.
func (s *Store) raiseWatermark(ctx context.Context, tx *sql.Tx, family int, candidate uint64) error {
	id := watermarkKeyID(family)
	current, _, err := s.getUint64(ctx, tx, id)
	if err != nil {
		return err
	}
	if candidate <= current {
		return nil
	}
	return setUint64Tx(ctx, tx, id, candidate)
}

func scanAndMarkSpent(ctx context.Context, tx *sql.Tx, height uint64, blockDigest wtypes.Digest, removals []wtypes.AbsoluteIndexSet) ([]int64, error) {
	if len(removals) == 0 {
		return nil, nil
	}
	removalSet := make(map[wtypes.AbsoluteIndexSet]struct{}, len(removals))
	for _, r := range removals {
		removalSet[r] = struct{}{}
	}

	unspent, err := unspentForScan(ctx, tx)
	if err != nil {
		return nil, err
	}

	var spentIDs []int64
	for _, row := range unspent {
		if _, matched := removalSet[row.Recovery.AbsI()]; !matched {
			continue
		}
		if err := markSpent(ctx, tx, row.ID, height, blockDigest); err != nil {
			return nil, err
		}
		inputs, err := pendingInputsForUtxo(ctx, tx, row.ID)
		if err != nil {
			return nil, err
		}
		if len(inputs) > 0 {
			if err := tryCleanPendingByUtxo(ctx, tx, row.ID, inputs[0].Txid); err != nil {
				return nil, err
			}
		}
		spentIDs = append(spentIDs, row.ID)
	}
	return spentIDs, nil
}

func matchExpectedUtxos(ctx context.Context, tx *sql.Tx, insertedIDs []int64, incoming []wtypes.UtxoRecoveryData) error {
	if len(incoming) == 0 {
		return nil
	}
	expected, err := listExpectedUtxos(ctx, tx)
	if err != nil {
		return err
	}
	if len(expected) == 0 {
		return nil
	}
	byCommitment := make(map[wtypes.AdditionRecord]ExpectedUtxo, len(expected))
	for _, e := range expected {
		byCommitment[additionRecordOfRecovery(e.Data)] = e
	}
	for i, id := range insertedIDs {
		commitment := additionRecordOfRecovery(incoming[i])
		e, ok := byCommitment[commitment]
		if !ok {
			continue
		}
		if err := setConfirmedTxid(ctx, tx, id, e.Txid); err != nil {
			return err
		}
		if err := deleteExpectedUtxo(ctx, tx, e.ID); err != nil {
			return err
		}
	}
	return nil
}

func additionRecordOfRecovery(r wtypes.UtxoRecoveryData) wtypes.AdditionRecord {
	return wtypes.AdditionRecordOf(wtypes.HashUtxo(r.UtxoVal), r.SenderRandomness, r.ReceiverPreimage)
}
