package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
	"github.com/ridebroker/backend/internal/realtime"
	"github.com/ridebroker/backend/internal/services"
)

func conversationRouter(driverID string, channel *MockChannel, hub *realtime.Hub) *chi.Mux {
	h := NewConversationHandler(context.Background(), channel, hub, time.Second, zerolog.Nop())
	return newDriverRouter(driverID, func(r chi.Router) {
		r.Get("/conversations/{conversationId}/messages", h.History)
		r.Post("/conversations/{conversationId}/messages", h.SendMessage)
		r.Post("/conversations/{conversationId}/read", h.MarkRead)
		r.Post("/conversations/{conversationId}/typing", h.Typing)
		r.Post("/conversations/{conversationId}/payment-link", h.PaymentLink)
		r.Get("/conversations/{conversationId}/ws", h.Subscribe)
	})
}

func TestConversationHandler_SendAndHistory(t *testing.T) {
	channel := new(MockChannel)
	router := conversationRouter("driver-b", channel, nil)

	channel.On("Send", mock.Anything, "conv-1", "driver-b", models.MessageText, `{"text":"on my way"}`).
		Return(&models.Message{ID: "msg-1", Seq: 1, Type: models.MessageText, Payload: models.TextPayload{Text: "on my way"}}, nil).Once()
	rec := doRequest(t, router, http.MethodPost, "/conversations/conv-1/messages", `{"type":"text","payload":{"text":"on my way"}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	decodeBody(t, rec, &msg)
	assert.Equal(t, models.TextPayload{Text: "on my way"}, msg.Payload)

	channel.On("Send", mock.Anything, "conv-1", "driver-b", models.MessagePaymentLink, `{"url":"https://x.test","amount":1}`).
		Return(nil, apperrors.New(apperrors.CodeForbidden, "only the ride owner sends payment links")).Once()
	rec = doRequest(t, router, http.MethodPost, "/conversations/conv-1/messages", `{"type":"payment_link","payload":{"url":"https://x.test","amount":1}}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/conversations/conv-1/messages", `{"payload":{"text":"hi"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	channel.On("History", mock.Anything, "conv-1", "driver-b", int64(3), 50).Return(&services.HistoryPage{
		ConversationID: "conv-1",
		LastSeq:        4,
		Messages:       []models.Message{{Seq: 4, Type: models.MessageText, Payload: models.TextPayload{Text: "x"}}},
		DetailsSent:    map[string]bool{"poster": false, "driver-b": true},
	}, nil).Once()
	rec = doRequest(t, router, http.MethodGet, "/conversations/conv-1/messages?after_seq=3&limit=50", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		LastSeq     int64            `json:"last_seq"`
		Messages    []models.Message `json:"messages"`
		DetailsSent map[string]bool  `json:"details_sent"`
	}
	decodeBody(t, rec, &page)
	assert.Equal(t, int64(4), page.LastSeq)
	require.Len(t, page.Messages, 1)
	assert.True(t, page.DetailsSent["driver-b"])

	rec = doRequest(t, router, http.MethodGet, "/conversations/conv-1/messages?after_seq=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	channel.AssertExpectations(t)
}

func TestConversationHandler_ReadTypingAndPaymentLink(t *testing.T) {
	channel := new(MockChannel)
	router := conversationRouter("poster", channel, nil)

	channel.On("MarkRead", mock.Anything, "conv-1", "poster", int64(7)).Return(int64(5), nil).Once()
	rec := doRequest(t, router, http.MethodPost, "/conversations/conv-1/read", `{"up_to_seq":7}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"up_to_seq":5}`, rec.Body.String())

	rec = doRequest(t, router, http.MethodPost, "/conversations/conv-1/read", `{"up_to_seq":-2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	channel.On("Typing", mock.Anything, "conv-1", "poster", true).Return(nil).Once()
	rec = doRequest(t, router, http.MethodPost, "/conversations/conv-1/typing", `{"typing":true}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	channel.On("SendPaymentLink", mock.Anything, "conv-1", "poster", int64(4000)).Return(&models.Message{
		Seq:     2,
		Type:    models.MessagePaymentLink,
		Payload: models.PaymentLinkPayload{URL: "https://pay.example.com/checkout?offer=offer-1", Amount: 4000},
	}, nil).Once()
	rec = doRequest(t, router, http.MethodPost, "/conversations/conv-1/payment-link", `{"amount":4000}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/conversations/conv-1/payment-link", `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	channel.AssertExpectations(t)
}

func TestConversationHandler_SubscribeStreamsEvents(t *testing.T) {
	channel := new(MockChannel)
	hub := realtime.NewHub(8, nil, zerolog.Nop())
	channel.On("Conversation", mock.Anything, "conv-1", "driver-b").
		Return(&models.Conversation{ID: "conv-1", ParticipantA: "poster", ParticipantB: "driver-b"}, nil)
	channel.On("Conversation", mock.Anything, "conv-1", "driver-z").
		Return(nil, apperrors.New(apperrors.CodeForbidden, "not a participant"))

	server := httptest.NewServer(conversationRouter("driver-b", channel, hub))
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/conversations/conv-1/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.SubscriberCount("conv-1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Deliver(models.ChannelEvent{
		Kind:           models.ChannelEventRead,
		ConversationID: "conv-1",
		Read:           &models.ReadReceipt{ReaderID: "poster", UpToSeq: 3},
	})
	var ev models.ChannelEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.ChannelEventRead, ev.Kind)
	assert.Equal(t, int64(3), ev.Read.UpToSeq)

	stranger := httptest.NewServer(conversationRouter("driver-z", channel, hub))
	defer stranger.Close()
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(stranger.URL, "http")+"/conversations/conv-1/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
