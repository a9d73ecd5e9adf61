package spend

import (
	"fmt"
	"math/rand"
	"sort"

	"neptunewallet/internal/walletstore"
)

// InputSelectionRule orders the candidate UTXO pool before the greedy
// append-until-funded pass. Grounded on input.rs's InputSelectionRule enum;
// default is Oldest.
type InputSelectionRule int

const (
	RuleOldest InputSelectionRule = iota
	RuleMinimum
	RuleMaximum
	RuleNewest
	RuleRandom
)

func (r InputSelectionRule) String() string {
	switch r {
	case RuleMinimum:
		return "minimum"
	case RuleMaximum:
		return "maximum"
	case RuleNewest:
		return "newest"
	case RuleRandom:
		return "random"
	default:
		return "oldest"
	}
}

// ParseInputSelectionRule parses the rule names accepted by the RPC layer;
// unrecognised input defaults to Oldest, matching from_str's fallback.
func ParseInputSelectionRule(s string) InputSelectionRule {
	switch s {
	case "minimum":
		return RuleMinimum
	case "maximum":
		return RuleMaximum
	case "newest":
		return RuleNewest
	case "random":
		return RuleRandom
	default:
		return RuleOldest
	}
}

// apply orders rows in place per the rule. Oldest/Newest sort by
// confirm_height; Minimum/Maximum by amount; Random shuffles.
func (r InputSelectionRule) apply(rows []walletstore.UtxoRow) {
	switch r {
	case RuleMinimum:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Recovery.UtxoVal.Amount < rows[j].Recovery.UtxoVal.Amount
		})
	case RuleMaximum:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Recovery.UtxoVal.Amount > rows[j].Recovery.UtxoVal.Amount
		})
	case RuleNewest:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].ConfirmHeight > rows[j].ConfirmHeight
		})
	case RuleRandom:
		rand.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	default: // RuleOldest
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].ConfirmHeight < rows[j].ConfirmHeight
		})
	}
}

// ErrInsufficientFunds is returned by CreateInput when the candidate pool
// cannot cover outputs+fee even after exhausting every eligible UTXO.
type ErrInsufficientFunds struct {
	Needed    int64
	Available int64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: need %d, have %d", e.Needed, e.Available)
}
