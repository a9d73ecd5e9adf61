package spend

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"neptunewallet/internal/nodeclient"
	"neptunewallet/internal/wtypes"
)

// NearTipWindow is the "chain is near-real-time" heuristic (§4.5 "Pending-
// transaction updater"): only re-prove when the latest block landed within
// this window, to avoid wasting prover cycles while still catching up.
const NearTipWindow = 26 * time.Minute

// ShouldUpdate reports whether blockTimestamp is recent enough to justify
// re-proving pending transactions against it.
func ShouldUpdate(blockTimestamp wtypes.Timestamp, now time.Time) bool {
	age := now.Sub(time.UnixMilli(blockTimestamp.Millis()))
	return age < NearTipWindow
}

// ReProvePending re-resolves every active pending transaction's inputs
// against the current tip and re-proves it, so a transaction built several
// blocks ago still spends UTXOs whose membership proofs are current. Busy
// responses and any other broadcast error leave the row untouched for the
// next block's retry (§4.5 steps 7-8).
func (w *Wallet) ReProvePending(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending, err := w.store.ListActivePending(ctx)
	if err != nil {
		return fmt.Errorf("reprove pending: list: %w", err)
	}

	for _, p := range pending {
		var details TransactionDetails
		if err := gob.NewDecoder(bytes.NewReader(p.Details)).Decode(&details); err != nil {
			continue // not one of our serialized details blobs; skip
		}

		indexSets := make([]wtypes.AbsoluteIndexSet, len(details.Inputs))
		for i, in := range details.Inputs {
			indexSets[i] = in.AbsI()
		}
		msmp, err := w.node.RestoreMsmps(ctx, indexSets)
		if err != nil {
			if nodeclient.IsBusy(err) {
				continue
			}
			continue
		}

		for i := range details.Outputs {
			details.Outputs[i].SenderRandomness = deriveSenderRandomness(w.keys, msmp.TipHeight, details.Outputs[i].LockScriptHash)
		}
		details.UnlockedProof = msmp.AoclLeafIndices
		details.TipHeight = msmp.TipHeight
		details.Timestamp = wtypes.Timestamp(time.Now().UnixMilli())

		proof, err := w.prover.Prove(ctx, details)
		if err != nil {
			continue
		}

		txid := computeTxid(details)
		if _, err := w.node.BroadcastTransaction(ctx, txid, proof); err != nil {
			continue
		}

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(details); err != nil {
			continue
		}
		if err := w.store.UpdatePendingDetails(ctx, p.ID, buf.Bytes()); err != nil {
			return fmt.Errorf("reprove pending: save updated details: %w", err)
		}
	}
	return nil
}
