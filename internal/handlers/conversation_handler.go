package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/models"
	"github.com/ridebroker/backend/internal/realtime"
	"github.com/ridebroker/backend/internal/services"
)

type NegotiationChannel interface {
	realtime.Channel
	Conversation(ctx context.Context, conversationID, viewerID string) (*models.Conversation, error)
	History(ctx context.Context, conversationID, viewerID string, afterSeq int64, limit int) (*services.HistoryPage, error)
	SendPaymentLink(ctx context.Context, conversationID, senderID string, amount int64) (*models.Message, error)
}

type ConversationHandler struct {
	channel    NegotiationChannel
	hub        *realtime.Hub
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
	baseCtx    context.Context
	validator  *services.ValidationHelper
	log        zerolog.Logger
}

// NewConversationHandler wires the REST and WebSocket surfaces of the
// negotiation channel. baseCtx ends every open socket on shutdown.
func NewConversationHandler(baseCtx context.Context, channel NegotiationChannel, hub *realtime.Hub, pingPeriod time.Duration, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		channel: channel,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingPeriod: pingPeriod,
		baseCtx:    baseCtx,
		validator:  services.NewValidationHelper(),
		log:        log,
	}
}

type sendMessageRequest struct {
	Type    models.MessageType `json:"type" validate:"required"`
	Payload json.RawMessage    `json:"payload" validate:"required"`
}

type markReadRequest struct {
	UpToSeq int64 `json:"up_to_seq" validate:"gte=0"`
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

type paymentLinkRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// History returns messages after after_seq with read receipts
// @Summary Conversation history
// @Description Ordered messages with read_by and per-participant details_sent. Use after_seq to replay after a reconnect.
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param conversationId path string true "Conversation ID"
// @Param after_seq query int false "Only messages with a larger seq"
// @Param limit query int false "Page size (max 200)"
// @Success 200 {object} services.HistoryPage
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /api/v1/conversations/{conversationId}/messages [get]
func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	afterSeq, err := queryInt64(r, "after_seq", 0)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	limit, err := queryInt64(r, "limit", 0)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	page, err := h.channel.History(r.Context(), chi.URLParam(r, "conversationId"), driverID, afterSeq, int(limit))
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, page)
}

// SendMessage appends a message and broadcasts it
// @Summary Send a message
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param conversationId path string true "Conversation ID"
// @Param request body object{type=string,payload=object} true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /api/v1/conversations/{conversationId}/messages [post]
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	msg, err := h.channel.Send(r.Context(), chi.URLParam(r, "conversationId"), driverID, req.Type, req.Payload)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusCreated, msg)
}

// MarkRead advances the caller's read cursor
// @Summary Mark messages read
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param conversationId path string true "Conversation ID"
// @Param request body object{up_to_seq=int64} true "Read cursor"
// @Success 200 {object} object{up_to_seq=int64}
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /api/v1/conversations/{conversationId}/read [post]
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	cursor, err := h.channel.MarkRead(r.Context(), chi.URLParam(r, "conversationId"), driverID, req.UpToSeq)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, map[string]int64{"up_to_seq": cursor})
}

// Typing broadcasts a typing indicator
// @Summary Typing indicator
// @Tags Conversations
// @Accept json
// @Security BearerAuth
// @Param conversationId path string true "Conversation ID"
// @Param request body object{typing=bool} true "Typing state"
// @Success 204
// @Failure 403 {object} services.ErrorResponse
// @Router /api/v1/conversations/{conversationId}/typing [post]
func (h *ConversationHandler) Typing(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	var req typingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}

	if err := h.channel.Typing(r.Context(), chi.URLParam(r, "conversationId"), driverID, req.Typing); err != nil {
		services.SendAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PaymentLink generates a payment link and QR code and sends it
// @Summary Send a payment link
// @Description Only the ride owner may send payment links.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param conversationId path string true "Conversation ID"
// @Param request body object{amount=int64} true "Amount in minor units"
// @Success 201 {object} models.Message
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /api/v1/conversations/{conversationId}/payment-link [post]
func (h *ConversationHandler) PaymentLink(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	var req paymentLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendAppError(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	msg, err := h.channel.SendPaymentLink(r.Context(), chi.URLParam(r, "conversationId"), driverID, req.Amount)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusCreated, msg)
}

// Subscribe upgrades to a WebSocket carrying the conversation's events
// @Summary Subscribe to a conversation
// @Description WebSocket. Server frames are channel events; client frames are {action: send|typing|read}. Close code 4000 means the subscriber fell behind and must replay with after_seq.
// @Tags Conversations
// @Security BearerAuth
// @Param conversationId path string true "Conversation ID"
// @Param token query string false "Bearer token for clients that cannot set headers"
// @Success 101
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /api/v1/conversations/{conversationId}/ws [get]
func (h *ConversationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	driverID, err := requireDriver(r)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	conv, err := h.channel.Conversation(r.Context(), chi.URLParam(r, "conversationId"), driverID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("websocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe(conv.ID, driverID)
	realtime.NewClient(conn, sub, h.channel, h.pingPeriod, h.log).Serve(h.baseCtx)
}
