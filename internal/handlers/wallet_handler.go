package handlers

import (
	"context"
	"net/http"

	"github.com/ridebroker/backend/internal/models"
	"github.com/ridebroker/backend/internal/services"
)

type WalletService interface {
	OpenWallet(ctx context.Context, driverID string) (*models.WalletAccount, error)
	Balance(ctx context.Context, walletID string) (*models.WalletBalance, error)
	Movements(ctx context.Context, walletID string, limit int) ([]models.LedgerMovement, error)
}

type WalletHandler struct {
	wallets WalletService
}

func NewWalletHandler(wallets WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// GetWallet returns the caller's balance, opening the wallet on first use
// @Summary Wallet balance
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.WalletBalance
// @Failure 401 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /api/v1/wallet [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.driverWallet(w, r)
	if !ok {
		return
	}

	balance, err := h.wallets.Balance(r.Context(), wallet.ID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, balance)
}

// ListMovements returns the caller's ledger movements, newest first
// @Summary Wallet movements
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 500)"
// @Success 200 {object} object{movements=[]models.LedgerMovement}
// @Failure 401 {object} services.ErrorResponse
// @Router /api/v1/wallet/movements [get]
func (h *WalletHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt64(r, "limit", 0)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	wallet, ok := h.driverWallet(w, r)
	if !ok {
		return
	}

	movements, err := h.wallets.Movements(r.Context(), wallet.ID, int(limit))
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, map[string]any{"wallet_id": wallet.ID, "movements": movements})
}

func (h *WalletHandler) driverWallet(w http.ResponseWriter, r *http.Request) (*models.WalletAccount, bool) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return nil, false
	}
	wallet, err := h.wallets.OpenWallet(r.Context(), driverID)
	if err != nil {
		services.SendAppError(w, err)
		return nil, false
	}
	return wallet, true
}
