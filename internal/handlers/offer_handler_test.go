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
	"github.com/ridebroker/backend/internal/services"
)

func offerRouter(driverID string, offers *MockOfferService, acceptor *MockAcceptor, channel *MockChannel) *chi.Mux {
	h := NewOfferHandler(offers, acceptor, channel)
	return newDriverRouter(driverID, func(r chi.Router) {
		r.Post("/offers", h.CreateOffer)
		r.Get("/offers", h.ListOffers)
		r.Get("/offers/{offerId}", h.GetOffer)
		r.Post("/offers/{offerId}/accept", h.AcceptOffer)
		r.Post("/offers/{offerId}/cancel", h.CancelOffer)
		r.Get("/offers/{offerId}/conversation", h.OfferConversation)
	})
}

func TestOfferHandler_CreateOffer(t *testing.T) {
	offers := new(MockOfferService)
	router := offerRouter("poster", offers, nil, nil)

	offers.On("CreateOffer", mock.Anything, mock.MatchedBy(func(in services.CreateOfferInput) bool {
		return in.PosterDriverID == "poster" && in.TTL == 10*time.Minute && in.TotalAmount == 5000
	})).Return(&models.RideOffer{ID: "offer-1", State: models.OfferOpen, TotalAmount: 5000}, nil).Once()

	rec := doRequest(t, router, http.MethodPost, "/offers",
		`{"total_amount":5000,"ttl_seconds":600,"pickup":"Airport","dropoff":"Central Station"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var offer models.RideOffer
	decodeBody(t, rec, &offer)
	assert.Equal(t, "offer-1", offer.ID)
	offers.AssertExpectations(t)
}

func TestOfferHandler_CreateOfferRejectsBadInput(t *testing.T) {
	offers := new(MockOfferService)
	router := offerRouter("poster", offers, nil, nil)

	for name, body := range map[string]string{
		"missing fields": `{"total_amount":5000}`,
		"unknown field":  `{"total_amount":5000,"ttl_seconds":600,"pickup":"a","dropoff":"b","tip":1}`,
		"two objects":    `{"total_amount":5000,"ttl_seconds":600,"pickup":"a","dropoff":"b"}{}`,
		"not json":       `total=5000`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/offers", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp services.ErrorResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, string(apperrors.CodeValidation), resp.Code)
		})
	}
	offers.AssertNotCalled(t, "CreateOffer", mock.Anything, mock.Anything)
}

func TestOfferHandler_AcceptOutcomes(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		status     int
		code       apperrors.Code
		retryAfter string
	}{
		{"already taken", apperrors.New(apperrors.CodeAlreadyTaken, "offer offer-1 is locked_pending_accept"), http.StatusConflict, apperrors.CodeAlreadyTaken, ""},
		{"expired", apperrors.New(apperrors.CodeExpired, "offer expired"), http.StatusGone, apperrors.CodeExpired, ""},
		{"insufficient funds", apperrors.InsufficientFunds(1000, 400), http.StatusPaymentRequired, apperrors.CodeInsufficientFund, ""},
		{"own offer", apperrors.New(apperrors.CodeForbidden, "cannot accept your own offer"), http.StatusForbidden, apperrors.CodeForbidden, ""},
		{"storage down", apperrors.New(apperrors.CodeTransient, "lock escrow"), http.StatusServiceUnavailable, apperrors.CodeTransient, "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acceptor := new(MockAcceptor)
			acceptor.On("Accept", mock.Anything, "offer-1", "driver-b").Return(nil, tc.err).Once()
			router := offerRouter("driver-b", new(MockOfferService), acceptor, nil)

			rec := doRequest(t, router, http.MethodPost, "/offers/offer-1/accept", "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.retryAfter, rec.Header().Get("Retry-After"))

			var resp struct {
				Error   string                                `json:"error"`
				Code    string                                `json:"code"`
				Details *apperrors.InsufficientFundsDetails `json:"details"`
			}
			decodeBody(t, rec, &resp)
			assert.Equal(t, string(tc.code), resp.Code)
			if tc.code == apperrors.CodeInsufficientFund {
				assert.Equal(t, &apperrors.InsufficientFundsDetails{Required: 1000, Available: 400, Shortfall: 600}, resp.Details)
			}
		})
	}

	t.Run("accepted", func(t *testing.T) {
		acceptor := new(MockAcceptor)
		acceptor.On("Accept", mock.Anything, "offer-1", "driver-b").Return(&services.AcceptResult{
			OfferID: "offer-1", ConversationID: "conv-1", LockedAmount: 1000, WalletID: "wallet-b",
		}, nil).Once()
		router := offerRouter("driver-b", new(MockOfferService), acceptor, nil)

		rec := doRequest(t, router, http.MethodPost, "/offers/offer-1/accept", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		var result services.AcceptResult
		decodeBody(t, rec, &result)
		assert.Equal(t, "conv-1", result.ConversationID)
		assert.Equal(t, int64(1000), result.LockedAmount)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		acceptor := new(MockAcceptor)
		router := offerRouter("", new(MockOfferService), acceptor, nil)
		rec := doRequest(t, router, http.MethodPost, "/offers/offer-1/accept", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		acceptor.AssertNotCalled(t, "Accept", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOfferHandler_ListGetCancel(t *testing.T) {
	offers := new(MockOfferService)
	channel := new(MockChannel)
	router := offerRouter("driver-b", offers, new(MockAcceptor), channel)

	offers.On("ListOpenOffers", mock.Anything, "driver-b", 20).Return([]models.RideOffer{{ID: "offer-1"}, {ID: "offer-2"}}, nil).Once()
	rec := doRequest(t, router, http.MethodGet, "/offers?limit=20", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Offers []models.RideOffer `json:"offers"`
	}
	decodeBody(t, rec, &list)
	assert.Len(t, list.Offers, 2)

	rec = doRequest(t, router, http.MethodGet, "/offers?limit=many", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	offers.On("GetOffer", mock.Anything, "offer-x").Return(nil, apperrors.New(apperrors.CodeNotFound, "offer offer-x not found")).Once()
	rec = doRequest(t, router, http.MethodGet, "/offers/offer-x", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	offers.On("CancelRide", mock.Anything, "offer-1", models.CancelByDriver, "driver-b").
		Return(&models.RideOffer{ID: "offer-1", State: models.OfferCancelledByDriver}, nil).Once()
	rec = doRequest(t, router, http.MethodPost, "/offers/offer-1/cancel", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	offers.On("CancelRide", mock.Anything, "offer-2", models.CancelByDriver, "driver-b").
		Return(nil, apperrors.New(apperrors.CodeStateConflict, "offer offer-2 is completed")).Once()
	rec = doRequest(t, router, http.MethodPost, "/offers/offer-2/cancel", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	channel.On("ConversationForOffer", mock.Anything, "offer-1", "driver-b").
		Return(&models.Conversation{ID: "conv-1", OfferID: "offer-1"}, nil).Once()
	rec = doRequest(t, router, http.MethodGet, "/offers/offer-1/conversation", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	offers.AssertExpectations(t)
	channel.AssertExpectations(t)
}
