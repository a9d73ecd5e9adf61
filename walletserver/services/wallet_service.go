// Package services wraps the wallet's domain packages (syncengine,
// walletstore, spend, keys) behind the shapes the HTTP controllers need,
// mirroring the teacher's controller/service/routes layering.
package services

import (
	"context"

	"neptunewallet/internal/keys"
	"neptunewallet/internal/spend"
	"neptunewallet/internal/syncengine"
	"neptunewallet/internal/walletstore"
	"neptunewallet/internal/wtypes"
)

// WalletService is the RPC-facing façade over one running wallet instance.
type WalletService struct {
	store   *walletstore.Store
	entropy *keys.WalletEntropy
	wallet  *spend.Wallet
	engine  *syncengine.Engine
	network wtypes.Network
}

func NewService(store *walletstore.Store, entropy *keys.WalletEntropy, wallet *spend.Wallet, engine *syncengine.Engine, network wtypes.Network) *WalletService {
	return &WalletService{store: store, entropy: entropy, wallet: wallet, engine: engine, network: network}
}

// SyncStatus reports the sync engine's lifecycle stage and cursor height.
func (ws *WalletService) SyncStatus() syncengine.Status {
	return ws.engine.Status()
}

// TipHeight is a thin convenience accessor over SyncStatus for the
// /rpc/tip_height endpoint.
func (ws *WalletService) TipHeight() uint64 {
	return ws.engine.Status().Height
}

// Balance sums every unspent UTXO's amount.
func (ws *WalletService) Balance(ctx context.Context) (wtypes.NativeCurrencyAmount, error) {
	rows, err := ws.store.GetUnspentUtxos(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, r := range rows {
		total += int64(r.Recovery.UtxoVal.Amount)
	}
	return wtypes.NativeCurrencyAmount(total), nil
}

// ReceivingAddress derives the generation-key address at the current
// generation watermark, the highest index this wallet has seen receive
// funds (0 for a fresh wallet). Repeated calls return the same address
// until the watermark rises, including after that address has received
// funds.
func (ws *WalletService) ReceivingAddress(ctx context.Context) (string, error) {
	watermark, err := ws.store.Watermark(ctx, 0)
	if err != nil {
		return "", err
	}
	key := ws.entropy.NthGenerationSpendingKey(watermark)
	return key.ToAddress(ws.network)
}

// History returns every UTXO this wallet has ever owned, confirmed or not,
// spent or not, oldest first.
func (ws *WalletService) History(ctx context.Context) ([]walletstore.UtxoRow, error) {
	return ws.store.GetUtxos(ctx)
}

// AvailableUtxos returns the currently spendable set.
func (ws *WalletService) AvailableUtxos(ctx context.Context) ([]walletstore.UtxoRow, error) {
	return ws.store.GetUnspentUtxos(ctx)
}

// PendingTransactions returns every unconfirmed transaction this wallet
// broadcast and is still tracking.
func (ws *WalletService) PendingTransactions(ctx context.Context) ([]walletstore.PendingTransaction, error) {
	return ws.store.ListActivePending(ctx)
}

// ForgetTransaction drops a pending transaction the caller no longer wants
// tracked (e.g. it will never confirm).
func (ws *WalletService) ForgetTransaction(ctx context.Context, txid string) error {
	return ws.store.ForgetPending(ctx, txid)
}

// SendRequest is the wire shape of a send_to_address RPC call.
type SendRequest struct {
	Outputs []SendOutput `json:"outputs"`
	Fee     int64        `json:"fee"`
	Rule    string       `json:"rule"`
}

// SendOutput is one requested payment leg.
type SendOutput struct {
	LockScriptHash string `json:"lock_script_hash"`
	Amount         int64  `json:"amount"`
	OffChain       bool   `json:"off_chain"`
}

// SendToAddress validates and forwards a send request to the spend
// pipeline, returning the broadcast transaction id.
func (ws *WalletService) SendToAddress(ctx context.Context, req SendRequest) (string, error) {
	outputs := make([]spend.OutputSpec, len(req.Outputs))
	for i, o := range req.Outputs {
		hash, err := wtypes.DigestFromString(o.LockScriptHash)
		if err != nil {
			return "", err
		}
		method := spend.OnChain
		if o.OffChain {
			method = spend.OffChain
		}
		outputs[i] = spend.OutputSpec{
			Utxo:   wtypes.Utxo{LockScriptHash: hash, Amount: wtypes.NativeCurrencyAmount(o.Amount)},
			Method: method,
		}
	}
	params := spend.SendToAddressParams{
		Outputs: outputs,
		Fee:     wtypes.NativeCurrencyAmount(req.Fee),
		Rule:    spend.ParseInputSelectionRule(req.Rule),
	}
	return ws.wallet.SendToAddress(ctx, params)
}

// ResetToHeight drives a manual rescan/recovery operation.
func (ws *WalletService) ResetToHeight(ctx context.Context, height uint64, digest string) error {
	d, err := wtypes.DigestFromString(digest)
	if err != nil {
		return err
	}
	return ws.engine.ResetToHeight(ctx, height, d)
}

// CancelSync stops the background ingest loop.
func (ws *WalletService) CancelSync() error {
	return ws.engine.CancelSync()
}
