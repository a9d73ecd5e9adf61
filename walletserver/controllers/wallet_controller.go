// Package controllers holds the HTTP handlers for the wallet's internal
// RPC surface (§6): JSON in, JSON out, one handler per operation.
package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"neptunewallet/walletserver/services"
)

// WalletController provides HTTP handlers for wallet operations.
type WalletController struct {
	svc *services.WalletService
}

func NewWalletController(svc *services.WalletService) *WalletController {
	return &WalletController{svc: svc}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error, status int) {
	http.Error(w, err.Error(), status)
}

func (wc *WalletController) SyncState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, wc.svc.SyncStatus())
}

func (wc *WalletController) TipHeight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]uint64{"height": wc.svc.TipHeight()})
}

func (wc *WalletController) Balance(w http.ResponseWriter, r *http.Request) {
	bal, err := wc.svc.Balance(r.Context())
	if err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"balance_nau": strconv.FormatInt(bal.ToNau(), 10)})
}

func (wc *WalletController) Address(w http.ResponseWriter, r *http.Request) {
	addr, err := wc.svc.ReceivingAddress(r.Context())
	if err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"address": addr})
}

func (wc *WalletController) History(w http.ResponseWriter, r *http.Request) {
	rows, err := wc.svc.History(r.Context())
	if err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (wc *WalletController) AvailableUtxos(w http.ResponseWriter, r *http.Request) {
	rows, err := wc.svc.AvailableUtxos(r.Context())
	if err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (wc *WalletController) PendingTransactions(w http.ResponseWriter, r *http.Request) {
	rows, err := wc.svc.PendingTransactions(r.Context())
	if err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (wc *WalletController) ForgetTransaction(w http.ResponseWriter, r *http.Request) {
	txid := chi.URLParam(r, "id")
	if err := wc.svc.ForgetTransaction(r.Context(), txid); err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (wc *WalletController) SendToAddress(w http.ResponseWriter, r *http.Request) {
	var req services.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return
	}
	txid, err := wc.svc.SendToAddress(r.Context(), req)
	if err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"txid": txid})
}

func (wc *WalletController) ResetToHeight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Height uint64 `json:"height"`
		Digest string `json:"digest"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return
	}
	if err := wc.svc.ResetToHeight(r.Context(), req.Height, req.Digest); err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (wc *WalletController) CancelSync(w http.ResponseWriter, r *http.Request) {
	if err := wc.svc.CancelSync(); err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
