package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
	"github.com/ridebroker/backend/internal/services"
)

type OfferService interface {
	CreateOffer(ctx context.Context, in services.CreateOfferInput) (*models.RideOffer, error)
	GetOffer(ctx context.Context, offerID string) (*models.RideOffer, error)
	ListOpenOffers(ctx context.Context, viewerID string, limit int) ([]models.RideOffer, error)
	CancelRide(ctx context.Context, offerID string, by models.CancelActor, requesterID string) (*models.RideOffer, error)
}

type OfferAcceptor interface {
	Accept(ctx context.Context, offerID, driverID string) (*services.AcceptResult, error)
}

type ConversationLocator interface {
	ConversationForOffer(ctx context.Context, offerID, viewerID string) (*models.Conversation, error)
}

type OfferHandler struct {
	offers        OfferService
	acceptor      OfferAcceptor
	conversations ConversationLocator
	validator     *services.ValidationHelper
}

func NewOfferHandler(offers OfferService, acceptor OfferAcceptor, conversations ConversationLocator) *OfferHandler {
	return &OfferHandler{
		offers:        offers,
		acceptor:      acceptor,
		conversations: conversations,
		validator:     services.NewValidationHelper(),
	}
}

// CreateOffer posts a ride for other drivers to take
// @Summary Post a ride offer
// @Description Create an open ride offer. The acceptor must lock total_amount × lock_fraction.
// @Tags Offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreateOfferInput true "Offer details"
// @Success 201 {object} models.RideOffer
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /api/v1/offers [post]
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	var req services.CreateOfferInput
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	req.PosterDriverID = driverID
	req.TTL = time.Duration(req.TTLSeconds) * time.Second

	offer, err := h.offers.CreateOffer(r.Context(), req)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusCreated, offer)
}

// ListOffers lists open offers the caller can accept
// @Summary List open offers
// @Tags Offers
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 200)"
// @Success 200 {object} object{offers=[]models.RideOffer}
// @Failure 401 {object} services.ErrorResponse
// @Router /api/v1/offers [get]
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	limit, err := queryInt64(r, "limit", 0)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	offers, err := h.offers.ListOpenOffers(r.Context(), driverID, int(limit))
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

// GetOffer returns one offer
// @Summary Get an offer
// @Tags Offers
// @Produce json
// @Security BearerAuth
// @Param offerId path string true "Offer ID"
// @Success 200 {object} models.RideOffer
// @Failure 404 {object} services.ErrorResponse
// @Failure 410 {object} services.ErrorResponse
// @Router /api/v1/offers/{offerId} [get]
func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.offers.GetOffer(r.Context(), chi.URLParam(r, "offerId"))
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, offer)
}

// AcceptOffer locks the escrow and takes the ride
// @Summary Accept an offer
// @Description Exactly one concurrent caller wins. Losers receive ALREADY_TAKEN.
// @Tags Offers
// @Produce json
// @Security BearerAuth
// @Param offerId path string true "Offer ID"
// @Success 200 {object} services.AcceptResult
// @Failure 402 {object} services.ErrorResponse "INSUFFICIENT_FUNDS with required/available/shortfall"
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse "ALREADY_TAKEN"
// @Failure 410 {object} services.ErrorResponse "OFFER_EXPIRED"
// @Failure 503 {object} services.ErrorResponse "TRANSIENT_STORAGE_FAILURE, retry"
// @Router /api/v1/offers/{offerId}/accept [post]
func (h *OfferHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	result, err := h.acceptor.Accept(r.Context(), chi.URLParam(r, "offerId"), driverID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, result)
}

// CancelOffer cancels the caller's ride
// @Summary Cancel a ride
// @Description The poster or acceptor cancels. An accepted ride's escrow is released first.
// @Tags Offers
// @Produce json
// @Security BearerAuth
// @Param offerId path string true "Offer ID"
// @Success 200 {object} models.RideOffer
// @Failure 403 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /api/v1/offers/{offerId}/cancel [post]
func (h *OfferHandler) CancelOffer(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	offer, err := h.offers.CancelRide(r.Context(), chi.URLParam(r, "offerId"), models.CancelByDriver, driverID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, offer)
}

// OfferConversation finds the negotiation thread of an accepted offer
// @Summary Get an offer's conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param offerId path string true "Offer ID"
// @Success 200 {object} models.Conversation
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /api/v1/offers/{offerId}/conversation [get]
func (h *OfferHandler) OfferConversation(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	if h.conversations == nil {
		services.SendAppError(w, apperrors.New(apperrors.CodeInternal, "conversations unavailable"))
		return
	}

	conv, err := h.conversations.ConversationForOffer(r.Context(), chi.URLParam(r, "offerId"), driverID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, conv)
}
