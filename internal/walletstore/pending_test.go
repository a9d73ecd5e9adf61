package walletstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"neptunewallet/internal/wtypes"
)

func TestInsertPendingKeysRowByTxid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var blockDigest wtypes.Digest
	blockDigest[0] = 1
	result, err := s.ApplyBlock(ctx, BlockApplyInput{
		Height:      1,
		BlockDigest: blockDigest,
		Incoming:    []wtypes.UtxoRecoveryData{{UtxoVal: wtypes.Utxo{Amount: 1000}}},
	})
	require.NoError(t, err)
	require.Len(t, result.InsertedUtxoIDs, 1)
	utxoID := result.InsertedUtxoIDs[0]

	const txid = "deadbeef"
	require.NoError(t, s.InsertPending(ctx, txid, []byte("details"), []int64{utxoID}))

	pending, err := s.ListActivePending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, txid, pending[0].ID)
	require.False(t, pending[0].Finished)

	reserved, err := s.ReservedUtxoIDs(ctx)
	require.NoError(t, err)
	require.Contains(t, reserved, utxoID)
}

func TestApplyBlockConfirmationDeletesPendingRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	recovery := wtypes.UtxoRecoveryData{UtxoVal: wtypes.Utxo{Amount: 500}}
	var firstBlock wtypes.Digest
	firstBlock[0] = 1
	result, err := s.ApplyBlock(ctx, BlockApplyInput{
		Height:      1,
		BlockDigest: firstBlock,
		Incoming:    []wtypes.UtxoRecoveryData{recovery},
	})
	require.NoError(t, err)
	utxoID := result.InsertedUtxoIDs[0]

	const txid = "confirmed-tx"
	require.NoError(t, s.InsertPending(ctx, txid, []byte("details"), []int64{utxoID}))

	var secondBlock wtypes.Digest
	secondBlock[0] = 2
	_, err = s.ApplyBlock(ctx, BlockApplyInput{
		Height:        2,
		BlockDigest:   secondBlock,
		BlockRemovals: []wtypes.AbsoluteIndexSet{recovery.AbsI()},
	})
	require.NoError(t, err)

	pending, err := s.ListActivePending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending, "confirming the spend must finish and drop the parent pending row, not just pending_ids")
}

func TestReorgFinishesPendingWithoutDeleting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	recovery := wtypes.UtxoRecoveryData{UtxoVal: wtypes.Utxo{Amount: 500}}
	var firstBlock wtypes.Digest
	firstBlock[0] = 1
	result, err := s.ApplyBlock(ctx, BlockApplyInput{
		Height:      1,
		BlockDigest: firstBlock,
		Incoming:    []wtypes.UtxoRecoveryData{recovery},
	})
	require.NoError(t, err)
	utxoID := result.InsertedUtxoIDs[0]

	const txid = "orphaned-tx"
	require.NoError(t, s.InsertPending(ctx, txid, []byte("details"), []int64{utxoID}))

	require.NoError(t, s.ReorganizeToHeight(ctx, 0, wtypes.Digest{}))

	var pending PendingTransaction
	row := s.db.QueryRowContext(ctx, `SELECT id, finished FROM pending WHERE id = ?`, txid)
	var finished int
	require.NoError(t, row.Scan(&pending.ID, &finished))
	require.Equal(t, 1, finished, "a reorg must mark the parent pending row finished, not just pending_ids")
}

func TestForgetPendingDeletesBothTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const txid = "abandoned-tx"
	require.NoError(t, s.InsertPending(ctx, txid, []byte("details"), []int64{1}))
	require.NoError(t, s.ForgetPending(ctx, txid))

	pending, err := s.ListActivePending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	reserved, err := s.ReservedUtxoIDs(ctx)
	require.NoError(t, err)
	require.NotContains(t, reserved, int64(1))
}
