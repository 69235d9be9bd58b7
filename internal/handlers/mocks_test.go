package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ridebroker/backend/internal/middleware"
	"github.com/ridebroker/backend/internal/models"
	"github.com/ridebroker/backend/internal/services"
)

type MockOfferService struct {
	mock.Mock
}

func (m *MockOfferService) CreateOffer(ctx context.Context, in services.CreateOfferInput) (*models.RideOffer, error) {
	args := m.Called(ctx, in)
	return offerArg(args)
}

func (m *MockOfferService) GetOffer(ctx context.Context, offerID string) (*models.RideOffer, error) {
	args := m.Called(ctx, offerID)
	return offerArg(args)
}

func (m *MockOfferService) ListOpenOffers(ctx context.Context, viewerID string, limit int) ([]models.RideOffer, error) {
	args := m.Called(ctx, viewerID, limit)
	return args.Get(0).([]models.RideOffer), args.Error(1)
}

func (m *MockOfferService) CancelRide(ctx context.Context, offerID string, by models.CancelActor, requesterID string) (*models.RideOffer, error) {
	args := m.Called(ctx, offerID, by, requesterID)
	return offerArg(args)
}

func (m *MockOfferService) StartRide(ctx context.Context, offerID string) (*models.RideOffer, error) {
	args := m.Called(ctx, offerID)
	return offerArg(args)
}

func (m *MockOfferService) CompleteRide(ctx context.Context, offerID string) (*models.RideOffer, error) {
	args := m.Called(ctx, offerID)
	return offerArg(args)
}

func offerArg(args mock.Arguments) (*models.RideOffer, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RideOffer), args.Error(1)
}

type MockAcceptor struct {
	mock.Mock
}

func (m *MockAcceptor) Accept(ctx context.Context, offerID, driverID string) (*services.AcceptResult, error) {
	args := m.Called(ctx, offerID, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AcceptResult), args.Error(1)
}

type MockWallets struct {
	mock.Mock
}

func (m *MockWallets) OpenWallet(ctx context.Context, driverID string) (*models.WalletAccount, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletAccount), args.Error(1)
}

func (m *MockWallets) Balance(ctx context.Context, walletID string) (*models.WalletBalance, error) {
	args := m.Called(ctx, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletBalance), args.Error(1)
}

func (m *MockWallets) Movements(ctx context.Context, walletID string, limit int) ([]models.LedgerMovement, error) {
	args := m.Called(ctx, walletID, limit)
	return args.Get(0).([]models.LedgerMovement), args.Error(1)
}

func (m *MockWallets) Credit(ctx context.Context, walletID string, amount int64, reference string) error {
	return m.Called(ctx, walletID, amount, reference).Error(0)
}

func (m *MockWallets) Debit(ctx context.Context, walletID string, amount int64, reference string) error {
	return m.Called(ctx, walletID, amount, reference).Error(0)
}

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Send(ctx context.Context, conversationID, senderID string, msgType models.MessageType, raw json.RawMessage) (*models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, msgType, string(raw))
	return messageArg(args)
}

func (m *MockChannel) Typing(ctx context.Context, conversationID, senderID string, typing bool) error {
	return m.Called(ctx, conversationID, senderID, typing).Error(0)
}

func (m *MockChannel) MarkRead(ctx context.Context, conversationID, readerID string, upToSeq int64) (int64, error) {
	args := m.Called(ctx, conversationID, readerID, upToSeq)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChannel) Conversation(ctx context.Context, conversationID, viewerID string) (*models.Conversation, error) {
	args := m.Called(ctx, conversationID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockChannel) ConversationForOffer(ctx context.Context, offerID, viewerID string) (*models.Conversation, error) {
	args := m.Called(ctx, offerID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockChannel) History(ctx context.Context, conversationID, viewerID string, afterSeq int64, limit int) (*services.HistoryPage, error) {
	args := m.Called(ctx, conversationID, viewerID, afterSeq, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.HistoryPage), args.Error(1)
}

func (m *MockChannel) SendPaymentLink(ctx context.Context, conversationID, senderID string, amount int64) (*models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, amount)
	return messageArg(args)
}

func messageArg(args mock.Arguments) (*models.Message, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

type MockWebhook struct {
	mock.Mock
}

func (m *MockWebhook) Handle(ctx context.Context, body []byte, signature string) (*models.Message, bool, error) {
	args := m.Called(ctx, string(body), signature)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Message), args.Bool(1), args.Error(2)
}

// asDriver injects the authenticated driver the way the auth middleware does.
func asDriver(driverID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if driverID != "" {
				r = r.WithContext(middleware.WithDriverID(r.Context(), driverID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func newDriverRouter(driverID string, mount func(r chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Use(asDriver(driverID))
	mount(r)
	return r
}
