// Package spend implements the outgoing-transaction pipeline (§4.6 "Spend
// pipeline"): input selection, output construction, proof invocation and
// broadcast. Grounded on input.rs (create_input / find_spending_key_for_utxo
// / unlock_utxos) and mod.rs's send_to_address flow.
package spend

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"neptunewallet/internal/keys"
	"neptunewallet/internal/nodeclient"
	"neptunewallet/internal/prover"
	"neptunewallet/internal/walletstore"
	"neptunewallet/internal/wtypes"
)

// NotificationMethod controls how an output's addressed data reaches its
// receiver: embedded on-chain as a PublicAnnouncement, or delivered
// off-chain and recorded locally as an expected_utxos row.
type NotificationMethod int

const (
	OnChain NotificationMethod = iota
	OffChain
)

// OutputSpec is one requested payment: a recipient UTXO shape plus how its
// addressed data should be delivered.
type OutputSpec struct {
	Utxo   wtypes.Utxo
	Method NotificationMethod
	// Owned is true when this output pays back into the sending wallet
	// (e.g. an explicit self-payment), distinct from the synthesized change
	// output.
	Owned bool
}

// BuiltOutput is an OutputSpec after sender-randomness and receiver
// material have been derived.
type BuiltOutput struct {
	Spec             OutputSpec
	SenderRandomness wtypes.Digest
	ReceiverPreimage wtypes.Digest
	LockScriptHash   wtypes.Digest
}

// TransactionDetails is the concrete, in-process shape handed to the
// Prover. It satisfies prover.TransactionDetails (an empty interface) by
// construction.
type TransactionDetails struct {
	Inputs        []wtypes.UtxoRecoveryData
	UnlockedProof []uint64 // AOCL leaf indices returned by RestoreMsmps, parallel to Inputs
	Outputs       []BuiltOutput
	Fee           wtypes.NativeCurrencyAmount
	Timestamp     wtypes.Timestamp
	TipHeight     uint64
	Network       wtypes.Network
}

// Wallet bundles the collaborators send_to_address needs: the durable
// store, the key hierarchy, the remote node and a proof machine. It owns
// the spend lock (§5): ingest and spends are mutually exclusive.
type Wallet struct {
	store   *walletstore.Store
	keys    *keys.WalletEntropy
	node    *nodeclient.Client
	prover  prover.Prover
	network wtypes.Network

	mu sync.Mutex // the spend lock
}

func NewWallet(store *walletstore.Store, entropy *keys.WalletEntropy, node *nodeclient.Client, p prover.Prover, network wtypes.Network) *Wallet {
	return &Wallet{store: store, keys: entropy, node: node, prover: p, network: network}
}

// Lock exposes the spend lock to the sync engine, which must hold it while
// applying a block so a concurrent spend never reads stale UTXO state.
func (w *Wallet) Lock()   { w.mu.Lock() }
func (w *Wallet) Unlock() { w.mu.Unlock() }

// CreateInput selects unspent, unreserved, non-timelocked UTXOs sufficient
// to cover target, applying rule to the candidate pool beyond any
// mustInclude rows (which are always selected regardless of rule).
func CreateInput(ctx context.Context, store *walletstore.Store, target wtypes.NativeCurrencyAmount, rule InputSelectionRule, mustIncludeIDs []int64, now time.Time) ([]walletstore.UtxoRow, error) {
	unspent, err := store.GetUnspentUtxos(ctx)
	if err != nil {
		return nil, fmt.Errorf("create input: %w", err)
	}
	reserved, err := store.ReservedUtxoIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("create input: %w", err)
	}
	mustInclude := make(map[int64]struct{}, len(mustIncludeIDs))
	for _, id := range mustIncludeIDs {
		mustInclude[id] = struct{}{}
	}

	var selected []walletstore.UtxoRow
	var remainder []walletstore.UtxoRow
	var total int64

	for _, row := range unspent {
		if _, must := mustInclude[row.ID]; must {
			selected = append(selected, row)
			total += int64(row.Recovery.UtxoVal.Amount)
			continue
		}
		if _, busy := reserved[row.ID]; busy {
			continue
		}
		if row.Recovery.UtxoVal.ReleaseDate != nil && row.Recovery.UtxoVal.ReleaseDate.Millis() > now.UnixMilli() {
			continue
		}
		remainder = append(remainder, row)
	}

	rule.apply(remainder)

	needed := int64(target)
	for total < needed && len(remainder) > 0 {
		next := remainder[0]
		remainder = remainder[1:]
		selected = append(selected, next)
		total += int64(next.Recovery.UtxoVal.Amount)
	}

	if total < needed {
		return nil, &ErrInsufficientFunds{Needed: needed, Available: total}
	}
	return selected, nil
}

// SendToAddressParams are send_to_address's inputs (§4.6).
type SendToAddressParams struct {
	Outputs        []OutputSpec
	Fee            wtypes.NativeCurrencyAmount
	Rule           InputSelectionRule
	MustIncludeIDs []int64
}

// SendToAddress runs the full spend pipeline under the spend lock: select
// inputs, request membership proofs, build outputs (with change if
// overfunded), prove, broadcast, and record pending/expected-utxo
// bookkeeping.
func (w *Wallet) SendToAddress(ctx context.Context, params SendToAddressParams) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var outputTotal int64
	for _, o := range params.Outputs {
		outputTotal += int64(o.Utxo.Amount)
	}
	target := wtypes.NativeCurrencyAmount(outputTotal + int64(params.Fee))

	selected, err := CreateInput(ctx, w.store, target, params.Rule, params.MustIncludeIDs, time.Now())
	if err != nil {
		return "", fmt.Errorf("send to address: %w", err)
	}

	indexSets := make([]wtypes.AbsoluteIndexSet, len(selected))
	recoveries := make([]wtypes.UtxoRecoveryData, len(selected))
	for i, row := range selected {
		recoveries[i] = row.Recovery
		indexSets[i] = row.Recovery.AbsI()
	}
	msmp, err := w.node.RestoreMsmps(ctx, indexSets)
	if err != nil {
		return "", fmt.Errorf("restore membership proofs: %w", err)
	}

	var inputTotal int64
	for _, row := range selected {
		inputTotal += int64(row.Recovery.UtxoVal.Amount)
	}

	tipHeight := msmp.TipHeight
	outputs := make([]BuiltOutput, 0, len(params.Outputs)+1)
	for _, spec := range params.Outputs {
		outputs = append(outputs, w.buildOutput(spec, tipHeight))
	}

	change := inputTotal - outputTotal - int64(params.Fee)
	if change > 0 {
		changeKey := w.keys.NthSymmetricKey(0)
		changeSpec := OutputSpec{
			Utxo:   wtypes.Utxo{LockScriptHash: changeKey.LockScriptHash(), Amount: wtypes.NativeCurrencyAmount(change)},
			Method: OffChain,
			Owned:  true,
		}
		outputs = append(outputs, w.buildOutput(changeSpec, tipHeight))
	}

	details := TransactionDetails{
		Inputs:        recoveries,
		UnlockedProof: msmp.AoclLeafIndices,
		Outputs:       outputs,
		Fee:           params.Fee,
		Timestamp:     wtypes.Timestamp(time.Now().UnixMilli()),
		TipHeight:     tipHeight,
		Network:       w.network,
	}

	proof, err := w.prover.Prove(ctx, details)
	if err != nil {
		return "", fmt.Errorf("prove transaction: %w", err)
	}

	txid := computeTxid(details)
	confirmedTxid, err := w.node.BroadcastTransaction(ctx, txid, proof)
	if err != nil {
		return "", fmt.Errorf("broadcast transaction: %w", err)
	}

	for _, out := range outputs {
		if out.Spec.Method != OffChain || !out.Spec.Owned {
			continue
		}
		recovery := wtypes.UtxoRecoveryData{
			UtxoVal:          out.Spec.Utxo,
			SenderRandomness: out.SenderRandomness,
			ReceiverPreimage: out.ReceiverPreimage,
		}
		if err := w.store.AddExpectedUtxo(ctx, confirmedTxid, recovery); err != nil {
			return "", fmt.Errorf("record expected utxo: %w", err)
		}
	}

	utxoIDs := make([]int64, len(selected))
	for i, row := range selected {
		utxoIDs[i] = row.ID
	}
	var detailsBuf bytes.Buffer
	if err := gob.NewEncoder(&detailsBuf).Encode(details); err != nil {
		return "", fmt.Errorf("encode pending transaction details: %w", err)
	}
	if err := w.store.InsertPending(ctx, confirmedTxid, detailsBuf.Bytes(), utxoIDs); err != nil {
		return "", fmt.Errorf("record pending transaction: %w", err)
	}

	return confirmedTxid, nil
}

func (w *Wallet) buildOutput(spec OutputSpec, tipHeight uint64) BuiltOutput {
	senderRandomness := deriveSenderRandomness(w.keys, tipHeight, spec.Utxo.LockScriptHash)
	return BuiltOutput{
		Spec:             spec,
		SenderRandomness: senderRandomness,
		ReceiverPreimage: spec.Utxo.LockScriptHash,
		LockScriptHash:   spec.Utxo.LockScriptHash,
	}
}

// computeTxid derives a local transaction id from the kernel shape before
// broadcast, the way the original's client computes a digest client-side
// and lets the server merely acknowledge it.
func computeTxid(details TransactionDetails) string {
	buf := make([]byte, 0, 32*(len(details.Inputs)+len(details.Outputs))+8)
	for _, in := range details.Inputs {
		h := wtypes.HashUtxo(in.UtxoVal)
		buf = append(buf, h[:]...)
	}
	for _, out := range details.Outputs {
		buf = append(buf, out.LockScriptHash[:]...)
	}
	var tsBuf [8]byte
	for i := 0; i < 8; i++ {
		tsBuf[i] = byte(details.Timestamp >> (8 * i))
	}
	buf = append(buf, tsBuf[:]...)
	return wtypes.HashBytes(buf).String()
}

// deriveSenderRandomness derives per-output randomness from master entropy,
// tip height and the receiver's lock-script digest, so the same output
// shape never produces the same addressed data twice (§4.6 step 4).
func deriveSenderRandomness(entropy *keys.WalletEntropy, tipHeight uint64, receiver wtypes.Digest) wtypes.Digest {
	return entropy.DeriveSenderRandomness(tipHeight, receiver)
}
