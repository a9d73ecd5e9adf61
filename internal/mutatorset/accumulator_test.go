package mutatorset

import (
	"testing"

	"neptunewallet/internal/wtypes"
)

func TestProveThenAddAdvancesAoclIndex(t *testing.T) {
	acc := NewAccumulator()

	first := acc.Prove()
	if first.AoclLeafIndex != 0 {
		t.Fatalf("expected first leaf index 0, got %d", first.AoclLeafIndex)
	}
	acc.Add(wtypes.AdditionRecord{})

	second := acc.Prove()
	if second.AoclLeafIndex != 1 {
		t.Fatalf("expected second leaf index 1, got %d", second.AoclLeafIndex)
	}
	if acc.AoclSize() != 1 {
		t.Fatalf("expected AoclSize 1, got %d", acc.AoclSize())
	}
}

func TestRemoveMarksIndexSetSpent(t *testing.T) {
	acc := NewAccumulator()
	var idx wtypes.AbsoluteIndexSet
	idx.Indices[0] = 42

	if acc.Contains(idx) {
		t.Fatalf("fresh accumulator should not contain any index set")
	}
	acc.Remove(wtypes.RemovalRecord{AbsoluteIndices: idx})
	if !acc.Contains(idx) {
		t.Fatalf("expected index set to be marked spent after Remove")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(wtypes.AdditionRecord{})

	clone := acc.Clone()
	clone.Add(wtypes.AdditionRecord{})

	if acc.AoclSize() != 1 {
		t.Fatalf("original accumulator mutated by clone: AoclSize=%d", acc.AoclSize())
	}
	if clone.AoclSize() != 2 {
		t.Fatalf("expected clone AoclSize 2, got %d", clone.AoclSize())
	}
}

func TestResetToClearsSpentSet(t *testing.T) {
	acc := NewAccumulator()
	var idx wtypes.AbsoluteIndexSet
	idx.Indices[0] = 7
	acc.Remove(wtypes.RemovalRecord{AbsoluteIndices: idx})
	acc.Add(wtypes.AdditionRecord{})
	acc.Add(wtypes.AdditionRecord{})

	acc.ResetTo(1)

	if acc.AoclSize() != 1 {
		t.Fatalf("expected AoclSize 1 after ResetTo, got %d", acc.AoclSize())
	}
	if acc.Contains(idx) {
		t.Fatalf("expected spent set to be cleared after ResetTo")
	}
}
