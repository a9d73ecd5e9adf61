// Package routes wires the wallet's internal RPC surface (§6) onto a chi
// router: sync status, balance/address/history queries, pending-transaction
// management and the send_to_address/reset_to_height/cancel_sync mutators.
package routes

import (
	"github.com/go-chi/chi/v5"

	"neptunewallet/walletserver/controllers"
	"neptunewallet/walletserver/middleware"
)

func Register(r chi.Router, wc *controllers.WalletController) {
	r.Use(middleware.Logger)

	r.Route("/rpc", func(r chi.Router) {
		r.Get("/sync_state", wc.SyncState)
		r.Get("/tip_height", wc.TipHeight)
		r.Get("/wallet_balance", wc.Balance)
		r.Get("/wallet_address", wc.Address)
		r.Get("/history", wc.History)
		r.Get("/available_utxos", wc.AvailableUtxos)
		r.Get("/pending_transactions", wc.PendingTransactions)
		r.Delete("/pending_transactions/{id}", wc.ForgetTransaction)
		r.Post("/send_to_address", wc.SendToAddress)
		r.Post("/reset_to_height", wc.ResetToHeight)
		r.Post("/cancel_sync", wc.CancelSync)
	})
}
