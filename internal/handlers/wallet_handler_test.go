package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
)

func walletRouter(driverID string, wallets *MockWallets) *chi.Mux {
	h := NewWalletHandler(wallets)
	return newDriverRouter(driverID, func(r chi.Router) {
		r.Get("/wallet", h.GetWallet)
		r.Get("/wallet/movements", h.ListMovements)
	})
}

func TestWalletHandler(t *testing.T) {
	wallets := new(MockWallets)
	router := walletRouter("driver-b", wallets)
	wallets.On("OpenWallet", mock.Anything, "driver-b").Return(&models.WalletAccount{ID: "wallet-b", DriverID: "driver-b"}, nil)

	wallets.On("Balance", mock.Anything, "wallet-b").Return(&models.WalletBalance{WalletID: "wallet-b", Available: 800, Locked: 200}, nil).Once()
	rec := doRequest(t, router, http.MethodGet, "/wallet", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"wallet_id":"wallet-b","available":800,"locked":200}`, rec.Body.String())

	wallets.On("Movements", mock.Anything, "wallet-b", 10).Return([]models.LedgerMovement{
		{ID: "mv-2", WalletID: "wallet-b", Kind: models.MovementLock, Amount: 200, Reference: "offer-1", CreatedAt: time.Unix(0, 0).UTC()},
	}, nil).Once()
	rec = doRequest(t, router, http.MethodGet, "/wallet/movements?limit=10", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		WalletID  string                  `json:"wallet_id"`
		Movements []models.LedgerMovement `json:"movements"`
	}
	decodeBody(t, rec, &page)
	assert.Equal(t, "wallet-b", page.WalletID)
	assert.Equal(t, models.MovementLock, page.Movements[0].Kind)

	wallets.On("Balance", mock.Anything, "wallet-b").Return(nil, apperrors.New(apperrors.CodeTransient, "balance")).Once()
	rec = doRequest(t, router, http.MethodGet, "/wallet", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	wallets.AssertExpectations(t)
}
