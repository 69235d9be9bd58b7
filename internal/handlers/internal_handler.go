package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
	"github.com/ridebroker/backend/internal/services"
)

type PaymentWebhook interface {
	Handle(ctx context.Context, body []byte, signature string) (*models.Message, bool, error)
}

type RideLifecycle interface {
	StartRide(ctx context.Context, offerID string) (*models.RideOffer, error)
	CompleteRide(ctx context.Context, offerID string) (*models.RideOffer, error)
	CancelRide(ctx context.Context, offerID string, by models.CancelActor, requesterID string) (*models.RideOffer, error)
}

type WalletFunding interface {
	OpenWallet(ctx context.Context, driverID string) (*models.WalletAccount, error)
	Credit(ctx context.Context, walletID string, amount int64, reference string) error
	Debit(ctx context.Context, walletID string, amount int64, reference string) error
	Balance(ctx context.Context, walletID string) (*models.WalletBalance, error)
}

// InternalHandler serves the collaborator API: payment confirmations, trip
// lifecycle events and wallet funding.
type InternalHandler struct {
	webhook   PaymentWebhook
	lifecycle RideLifecycle
	wallets   WalletFunding
	validator *services.ValidationHelper
	log       zerolog.Logger
}

func NewInternalHandler(webhook PaymentWebhook, lifecycle RideLifecycle, wallets WalletFunding, log zerolog.Logger) *InternalHandler {
	return &InternalHandler{
		webhook:   webhook,
		lifecycle: lifecycle,
		wallets:   wallets,
		validator: services.NewValidationHelper(),
		log:       log,
	}
}

type cancelRideRequest struct {
	By models.CancelActor `json:"by" validate:"omitempty,oneof=driver system"`
}

type fundingRequest struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"required,max=128"`
}

// PaymentWebhook records a confirmed payment in the negotiation channel
// @Summary Payment confirmation webhook
// @Description Body is signed with HMAC-SHA256 in X-Signature. Repeated external_ref values are acknowledged without effect.
// @Tags Internal
// @Accept json
// @Produce json
// @Param X-Signature header string true "hex HMAC-SHA256 of the body"
// @Param request body services.PaymentCompleteRequest true "Payment confirmation"
// @Success 200 {object} object{duplicate=bool,message=models.Message}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Security InternalKey
// @Router /internal/v1/payments/webhook [post]
func (h *InternalHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		services.SendAppError(w, apperrors.Wrap(apperrors.CodeValidation, err, "unreadable body"))
		return
	}

	msg, duplicate, err := h.webhook.Handle(r.Context(), body, r.Header.Get("X-Signature"))
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, map[string]any{"duplicate": duplicate, "message": msg})
}

// RideStarted marks an accepted ride in progress
// @Summary Ride started
// @Tags Internal
// @Produce json
// @Param offerId path string true "Offer ID"
// @Success 200 {object} models.RideOffer
// @Failure 422 {object} services.ErrorResponse
// @Security InternalKey
// @Router /internal/v1/rides/{offerId}/started [post]
func (h *InternalHandler) RideStarted(w http.ResponseWriter, r *http.Request) {
	offer, err := h.lifecycle.StartRide(r.Context(), chi.URLParam(r, "offerId"))
	h.writeOffer(w, offer, err)
}

// RideCompleted completes a ride and applies settlement
// @Summary Ride completed
// @Tags Internal
// @Produce json
// @Param offerId path string true "Offer ID"
// @Success 200 {object} models.RideOffer
// @Failure 422 {object} services.ErrorResponse
// @Security InternalKey
// @Router /internal/v1/rides/{offerId}/completed [post]
func (h *InternalHandler) RideCompleted(w http.ResponseWriter, r *http.Request) {
	offer, err := h.lifecycle.CompleteRide(r.Context(), chi.URLParam(r, "offerId"))
	h.writeOffer(w, offer, err)
}

// RideCancelled cancels a ride and releases its escrow
// @Summary Ride cancelled
// @Tags Internal
// @Accept json
// @Produce json
// @Param offerId path string true "Offer ID"
// @Param request body object{by=string} false "driver or system (default system)"
// @Success 200 {object} models.RideOffer
// @Failure 422 {object} services.ErrorResponse
// @Security InternalKey
// @Router /internal/v1/rides/{offerId}/cancelled [post]
func (h *InternalHandler) RideCancelled(w http.ResponseWriter, r *http.Request) {
	req := cancelRideRequest{By: models.CancelBySystem}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			services.SendAppError(w, err)
			return
		}
		if err := h.validator.ValidateStruct(&req); err != nil {
			services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
			return
		}
		if req.By == "" {
			req.By = models.CancelBySystem
		}
	}

	offer, err := h.lifecycle.CancelRide(r.Context(), chi.URLParam(r, "offerId"), req.By, "")
	h.writeOffer(w, offer, err)
}

// CreditWallet records a confirmed top-up
// @Summary Credit a wallet
// @Description Idempotent by reference.
// @Tags Internal
// @Accept json
// @Produce json
// @Param driverId path string true "Driver ID"
// @Param request body object{amount=int64,reference=string} true "Top-up"
// @Success 200 {object} models.WalletBalance
// @Failure 400 {object} services.ErrorResponse
// @Security InternalKey
// @Router /internal/v1/wallets/{driverId}/credit [post]
func (h *InternalHandler) CreditWallet(w http.ResponseWriter, r *http.Request) {
	h.fund(w, r, models.MovementCredit)
}

// DebitWallet records a withdrawal of available funds
// @Summary Debit a wallet
// @Description Idempotent by reference. Locked funds cannot be withdrawn.
// @Tags Internal
// @Accept json
// @Produce json
// @Param driverId path string true "Driver ID"
// @Param request body object{amount=int64,reference=string} true "Withdrawal"
// @Success 200 {object} models.WalletBalance
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Security InternalKey
// @Router /internal/v1/wallets/{driverId}/debit [post]
func (h *InternalHandler) DebitWallet(w http.ResponseWriter, r *http.Request) {
	h.fund(w, r, models.MovementDebit)
}

func (h *InternalHandler) fund(w http.ResponseWriter, r *http.Request, kind models.MovementKind) {
	var req fundingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	wallet, err := h.wallets.OpenWallet(ctx, chi.URLParam(r, "driverId"))
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	if kind == models.MovementDebit {
		err = h.wallets.Debit(ctx, wallet.ID, req.Amount, req.Reference)
	} else {
		err = h.wallets.Credit(ctx, wallet.ID, req.Amount, req.Reference)
	}
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	h.log.Info().
		Str("wallet_id", wallet.ID).
		Str("kind", string(kind)).
		Int64("amount", req.Amount).
		Str("reference", req.Reference).
		Msg("wallet funding applied")

	balance, err := h.wallets.Balance(ctx, wallet.ID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, balance)
}

func (h *InternalHandler) writeOffer(w http.ResponseWriter, offer *models.RideOffer, err error) {
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, offer)
}
