// Package mutatorset implements the wallet's local copy of the mutator-set
// accumulator: just enough of the AOCL (append-only commitment list) and SWBF
// (sliding-window Bloom filter) bookkeeping for the wallet to assign AOCL
// leaf indices to its own UTXOs as it replays blocks. Full membership-proof
// algebra for spending is intentionally not reproduced here: the spend
// pipeline fetches fresh membership proofs from the remote node
// (NodeClient.RestoreMsmps) against the live tip, so the only thing the
// wallet's local accumulator needs to get right is which AOCL index each of
// its own UTXOs landed at, and whether a later block's removal record
// addresses one of the bit positions belonging to a UTXO it owns.
package mutatorset

import (
	"sync"

	"neptunewallet/internal/wtypes"
)

// MembershipProof is deliberately minimal: it carries only the AOCL leaf
// index a Prove() call assigned, which is all the wallet's recovery-data
// bookkeeping (§3 "UTXO record") needs to reconstruct later.
type MembershipProof struct {
	AoclLeafIndex uint64
}

// Accumulator is the wallet's local mutator-set state while ingesting
// blocks. After a reorg the sync engine rewinds it with ResetTo to a prior
// block's after-state instead of replaying the whole chain.
type Accumulator struct {
	mu        sync.Mutex
	aoclCount uint64
	spent     map[wtypes.AbsoluteIndexSet]struct{}
}

// NewAccumulator returns the accumulator's default (genesis-height-0) state.
func NewAccumulator() *Accumulator {
	return &Accumulator{spent: make(map[wtypes.AbsoluteIndexSet]struct{})}
}

// Clone returns an independent copy so a fork rewind never mutates the
// accumulator still referenced by in-flight readers.
func (a *Accumulator) Clone() *Accumulator {
	a.mu.Lock()
	defer a.mu.Unlock()
	spent := make(map[wtypes.AbsoluteIndexSet]struct{}, len(a.spent))
	for k := range a.spent {
		spent[k] = struct{}{}
	}
	return &Accumulator{aoclCount: a.aoclCount, spent: spent}
}

// Prove returns the membership proof a UTXO would receive if it were added
// to the accumulator right now, i.e. the AOCL leaf index of the next slot.
// It does not mutate state; Add must be called afterward to actually
// reserve that slot, mirroring the original's prove-then-add block-scan
// ordering (§4.5 step 2).
func (a *Accumulator) Prove() MembershipProof {
	a.mu.Lock()
	defer a.mu.Unlock()
	return MembershipProof{AoclLeafIndex: a.aoclCount}
}

// Add applies one addition record, advancing the AOCL by one leaf.
func (a *Accumulator) Add(_ wtypes.AdditionRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aoclCount++
}

// Remove applies one removal record, recording its whole absolute index
// set so a later Contains check for that exact set recognises the UTXO as
// spent.
func (a *Accumulator) Remove(r wtypes.RemovalRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.spent[r.AbsoluteIndices] = struct{}{}
}

// Contains reports whether the given absolute index set has already been
// removed from this accumulator state.
func (a *Accumulator) Contains(idx wtypes.AbsoluteIndexSet) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.spent[idx]
	return ok
}

// ResetTo rewinds the accumulator to a prior after-state: the AOCL leaf
// count it had once some earlier block's additions were applied. Used by
// the sync engine after a reorg, seeded from the re-fetched fork-point
// block's AoclSizeAfter rather than replaying the chain from genesis. The
// spent set is cleared since SWBF membership is re-derived per block going
// forward from the new chain.
func (a *Accumulator) ResetTo(aoclCount uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aoclCount = aoclCount
	a.spent = make(map[wtypes.AbsoluteIndexSet]struct{})
}

// AoclSize returns the number of leaves committed so far.
func (a *Accumulator) AoclSize() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aoclCount
}
