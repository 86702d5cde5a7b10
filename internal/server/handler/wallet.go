package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// WalletControl is the mock wallet widget.
type WalletControl interface {
	Info() domain.WalletInfo
	Connect() domain.WalletInfo
	Disconnect() domain.WalletInfo
	CopyAddress(ctx context.Context) error
}

// WalletHandler serves the wallet widget endpoints.
type WalletHandler struct {
	wallet WalletControl
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(wallet WalletControl, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallet: wallet, logger: logHandler(logger, "wallet")}
}

// GetWallet returns the wallet widget state.
// GET /api/wallet
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wallet.Info())
}

// Connect marks the wallet connected.
// POST /api/wallet/connect
func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wallet.Connect())
}

// Disconnect marks the wallet disconnected.
// POST /api/wallet/disconnect
func (h *WalletHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wallet.Disconnect())
}

// CopyAddress hands the full address to the clipboard.
// POST /api/wallet/copy
func (h *WalletHandler) CopyAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.wallet.CopyAddress(r.Context()); err != nil {
		writeDomainError(w, r, h.logger, "copy address", err)
		return
	}
	info := h.wallet.Info()
	writeJSON(w, http.StatusOK, map[string]string{"copied": info.Address})
}
