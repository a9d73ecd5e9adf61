package walletstore

import (
	"context"
	"testing"

	"neptunewallet/internal/testutil"
	"neptunewallet/internal/wtypes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })

	s, err := Open(sb.Path("wallet.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApplyBlockInsertsUtxoAndRaisesWatermark(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var blockDigest wtypes.Digest
	blockDigest[0] = 1
	gen := uint64(5)

	result, err := s.ApplyBlock(ctx, BlockApplyInput{
		Height:      1,
		BlockDigest: blockDigest,
		Incoming: []wtypes.UtxoRecoveryData{
			{UtxoVal: wtypes.Utxo{Amount: 1000}},
		},
		WatermarkGen: &gen,
	})
	if err != nil {
		t.Fatalf("ApplyBlock failed: %v", err)
	}
	if len(result.InsertedUtxoIDs) != 1 {
		t.Fatalf("expected 1 inserted utxo, got %d", len(result.InsertedUtxoIDs))
	}

	watermark, err := s.Watermark(ctx, 0)
	if err != nil {
		t.Fatalf("Watermark failed: %v", err)
	}
	if watermark != gen {
		t.Fatalf("expected watermark %d, got %d", gen, watermark)
	}

	height, digest, ok, err := s.Tip(ctx)
	if err != nil {
		t.Fatalf("Tip failed: %v", err)
	}
	if !ok || height != 1 || digest != blockDigest {
		t.Fatalf("unexpected tip after ApplyBlock: height=%d ok=%v", height, ok)
	}

	rows, err := s.GetUnspentUtxos(ctx)
	if err != nil {
		t.Fatalf("GetUnspentUtxos failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Recovery.UtxoVal.Amount != 1000 {
		t.Fatalf("unexpected unspent utxo set: %+v", rows)
	}
}

func TestApplyBlockMarksRemovalsSpent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	recovery := wtypes.UtxoRecoveryData{UtxoVal: wtypes.Utxo{Amount: 500}}
	var firstBlock wtypes.Digest
	firstBlock[0] = 1
	if _, err := s.ApplyBlock(ctx, BlockApplyInput{
		Height:      1,
		BlockDigest: firstBlock,
		Incoming:    []wtypes.UtxoRecoveryData{recovery},
	}); err != nil {
		t.Fatalf("first ApplyBlock failed: %v", err)
	}

	absIndex := recovery.AbsI()
	var secondBlock wtypes.Digest
	secondBlock[0] = 2
	result, err := s.ApplyBlock(ctx, BlockApplyInput{
		Height:        2,
		BlockDigest:   secondBlock,
		BlockRemovals: []wtypes.AbsoluteIndexSet{absIndex},
	})
	if err != nil {
		t.Fatalf("second ApplyBlock failed: %v", err)
	}
	if len(result.SpentUtxoIDs) != 1 {
		t.Fatalf("expected 1 spent utxo, got %d", len(result.SpentUtxoIDs))
	}

	unspent, err := s.GetUnspentUtxos(ctx)
	if err != nil {
		t.Fatalf("GetUnspentUtxos failed: %v", err)
	}
	if len(unspent) != 0 {
		t.Fatalf("expected no unspent utxos after spend, got %d", len(unspent))
	}
}
