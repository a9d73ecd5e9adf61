package spend

import (
	"testing"

	"neptunewallet/internal/walletstore"
	"neptunewallet/internal/wtypes"
)

func rowWith(amount int64, height uint64) walletstore.UtxoRow {
	return walletstore.UtxoRow{
		Recovery:      wtypes.UtxoRecoveryData{UtxoVal: wtypes.Utxo{Amount: wtypes.NativeCurrencyAmount(amount)}},
		ConfirmHeight: height,
	}
}

func TestParseInputSelectionRuleFallsBackToOldest(t *testing.T) {
	if ParseInputSelectionRule("bogus") != RuleOldest {
		t.Fatalf("expected unrecognised rule name to fall back to RuleOldest")
	}
	if ParseInputSelectionRule("minimum") != RuleMinimum {
		t.Fatalf("expected 'minimum' to parse as RuleMinimum")
	}
}

func TestApplyOldestSortsByConfirmHeightAscending(t *testing.T) {
	rows := []walletstore.UtxoRow{rowWith(10, 3), rowWith(20, 1), rowWith(30, 2)}
	RuleOldest.apply(rows)
	if rows[0].ConfirmHeight != 1 || rows[1].ConfirmHeight != 2 || rows[2].ConfirmHeight != 3 {
		t.Fatalf("unexpected order after RuleOldest.apply: %+v", rows)
	}
}

func TestApplyMaximumSortsByAmountDescending(t *testing.T) {
	rows := []walletstore.UtxoRow{rowWith(10, 1), rowWith(30, 2), rowWith(20, 3)}
	RuleMaximum.apply(rows)
	if rows[0].Recovery.UtxoVal.Amount != 30 || rows[1].Recovery.UtxoVal.Amount != 20 || rows[2].Recovery.UtxoVal.Amount != 10 {
		t.Fatalf("unexpected order after RuleMaximum.apply: %+v", rows)
	}
}
