package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/metrics"
	"github.com/ridebroker/backend/internal/models"
)

// Broadcaster fans channel events out to subscribers of a conversation.
type Broadcaster interface {
	Publish(ctx context.Context, ev models.ChannelEvent) error
}

// MessageObserver is called after a message is durably appended.
type MessageObserver interface {
	OnMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) error
}

// LinkGenerator produces payment links for the commission flow.
type LinkGenerator interface {
	Generate(offerID string, amount int64) (models.PaymentLinkPayload, error)
}

// HistoryPage is an ordered slice of a conversation as seen by one participant.
type HistoryPage struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []models.Message  `json:"messages"`
	LastSeq        int64             `json:"last_seq"`
	DetailsSent    map[string]bool   `json:"details_sent"`
	ReadCursors    map[string]int64  `json:"read_cursors"`
	Participants   map[string]string `json:"participants"`
}

const maxHistoryPage = 200

// NegotiationService is the typed message channel between the two drivers
// of an accepted offer.
type NegotiationService struct {
	conversations ConversationStore
	broadcaster   Broadcaster
	notifier      Notifier
	links         LinkGenerator
	observers     []MessageObserver
	validate      *ValidationHelper
	metrics       *metrics.ChannelMetrics
	log           zerolog.Logger
	now           func() time.Time
	newID         func() string
}

func NewNegotiationService(conversations ConversationStore, broadcaster Broadcaster, notifier Notifier, links LinkGenerator, m *metrics.ChannelMetrics, log zerolog.Logger) *NegotiationService {
	return &NegotiationService{
		conversations: conversations,
		broadcaster:   broadcaster,
		notifier:      notifier,
		links:         links,
		validate:      NewValidationHelper(),
		metrics:       m,
		log:           log,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// AddObserver registers o for every appended message. Call before serving traffic.
func (s *NegotiationService) AddObserver(o MessageObserver) {
	s.observers = append(s.observers, o)
}

// Conversation returns the conversation if viewerID takes part in it.
func (s *NegotiationService) Conversation(ctx context.Context, conversationID, viewerID string) (*models.Conversation, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, apperrors.New(apperrors.CodeForbidden, "not a participant of this conversation")
	}
	return conv, nil
}

func (s *NegotiationService) ConversationForOffer(ctx context.Context, offerID, viewerID string) (*models.Conversation, error) {
	conv, err := s.conversations.GetConversationByOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, apperrors.New(apperrors.CodeForbidden, "not a participant of this conversation")
	}
	return conv, nil
}

// Send decodes a raw payload of the given type and appends it.
func (s *NegotiationService) Send(ctx context.Context, conversationID, senderID string, msgType models.MessageType, raw json.RawMessage) (*models.Message, error) {
	payload, err := models.DecodePayload(msgType, raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid message payload")
	}
	return s.SendPayload(ctx, conversationID, senderID, payload)
}

func (s *NegotiationService) SendPayload(ctx context.Context, conversationID, senderID string, payload models.Payload) (*models.Message, error) {
	if payload == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "payload is required")
	}
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := checkSender(conv, senderID, payload.MessageType()); err != nil {
		return nil, err
	}
	if err := s.validate.ValidateStruct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid message payload").WithDetails(fieldDetails(fieldErrs))
		}
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid message payload")
	}
	return s.append(ctx, conv, senderID, payload)
}

// SendPaymentLink generates a payment link for amount and sends it on
// behalf of the ride owner.
func (s *NegotiationService) SendPaymentLink(ctx context.Context, conversationID, senderID string, amount int64) (*models.Message, error) {
	if s.links == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "payment links are not configured")
	}
	if amount <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := checkSender(conv, senderID, models.MessagePaymentLink); err != nil {
		return nil, err
	}
	payload, err := s.links.Generate(conv.OfferID, amount)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "generate payment link")
	}
	return s.append(ctx, conv, senderID, payload)
}

// InjectPaymentComplete appends the system payment_complete message to the
// conversation of offerID.
func (s *NegotiationService) InjectPaymentComplete(ctx context.Context, offerID string, amount int64, externalRef string) (*models.Message, error) {
	conv, err := s.conversations.GetConversationByOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	payload := models.PaymentCompletePayload{Amount: amount, ExternalRef: externalRef}
	if err := s.validate.ValidateStruct(payload); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid payment confirmation")
	}
	return s.append(ctx, conv, models.SystemSenderID, payload)
}

func checkSender(conv *models.Conversation, senderID string, msgType models.MessageType) error {
	switch msgType {
	case models.MessagePaymentComplete:
		if senderID != models.SystemSenderID {
			return apperrors.New(apperrors.CodeForbidden, "payment_complete is injected by the payment system")
		}
		return nil
	case models.MessagePaymentLink:
		if senderID != conv.ParticipantA {
			return apperrors.New(apperrors.CodeForbidden, "only the ride owner sends payment links")
		}
		return nil
	}
	if !conv.HasParticipant(senderID) {
		return apperrors.New(apperrors.CodeForbidden, "not a participant of this conversation")
	}
	return nil
}

// append stores the message, then broadcasts, notifies and runs observers.
// Only the append can fail the call.
func (s *NegotiationService) append(ctx context.Context, conv *models.Conversation, senderID string, payload models.Payload) (*models.Message, error) {
	msg, err := s.conversations.AppendMessage(ctx, &models.Message{
		ID:             s.newID(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Type:           payload.MessageType(),
		Payload:        payload,
		SentAt:         s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	conv.LastSeq = msg.Seq
	s.metrics.IncMessage(string(msg.Type))

	s.broadcast(ctx, models.ChannelEvent{Kind: models.ChannelEventMessage, ConversationID: conv.ID, Message: msg})

	recipients := []string{conv.Counterparty(senderID)}
	if senderID == models.SystemSenderID {
		recipients = conv.Participants()
	}
	notify(ctx, s.notifier, s.log, models.Notification{
		Kind:           models.NotificationMessageReceived,
		RecipientIDs:   recipients,
		OfferID:        conv.OfferID,
		ConversationID: conv.ID,
		Data:           map[string]any{"seq": msg.Seq, "type": string(msg.Type), "sender_id": senderID},
		OccurredAt:     msg.SentAt,
	})

	for _, o := range s.observers {
		if err := o.OnMessage(ctx, conv, msg); err != nil {
			s.log.Error().Err(err).Str("conversation_id", conv.ID).Int64("seq", msg.Seq).Msg("message observer failed")
		}
	}
	return msg, nil
}

func (s *NegotiationService) broadcast(ctx context.Context, ev models.ChannelEvent) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", ev.ConversationID).Str("kind", string(ev.Kind)).Msg("broadcast failed")
	}
}

// History returns messages after afterSeq in sequence order, with read_by
// filled from the participants' read cursors.
func (s *NegotiationService) History(ctx context.Context, conversationID, viewerID string, afterSeq int64, limit int) (*HistoryPage, error) {
	conv, err := s.Conversation(ctx, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	if limit <= 0 || limit > maxHistoryPage {
		limit = maxHistoryPage
	}

	messages, err := s.conversations.ListMessages(ctx, conv.ID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	cursors, err := s.conversations.ReadCursors(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	senders, err := s.conversations.DetailsSenders(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	for i := range messages {
		messages[i].ReadBy = readersOf(conv, cursors, messages[i].Seq)
	}
	details := map[string]bool{conv.ParticipantA: false, conv.ParticipantB: false}
	for _, sender := range senders {
		if conv.HasParticipant(sender) {
			details[sender] = true
		}
	}
	lastSeq := conv.LastSeq
	if n := len(messages); n > 0 && messages[n-1].Seq > lastSeq {
		lastSeq = messages[n-1].Seq
	}
	return &HistoryPage{
		ConversationID: conv.ID,
		Messages:       messages,
		LastSeq:        lastSeq,
		DetailsSent:    details,
		ReadCursors:    cursors,
		Participants:   map[string]string{"owner": conv.ParticipantA, "acceptor": conv.ParticipantB},
	}, nil
}

func readersOf(conv *models.Conversation, cursors map[string]int64, seq int64) []string {
	readers := []string{}
	for _, p := range conv.Participants() {
		if cursors[p] >= seq {
			readers = append(readers, p)
		}
	}
	return readers
}

// MarkRead advances the reader's cursor to upToSeq, capped at the last
// message, and broadcasts the resulting position.
func (s *NegotiationService) MarkRead(ctx context.Context, conversationID, readerID string, upToSeq int64) (int64, error) {
	if upToSeq < 0 {
		return 0, apperrors.New(apperrors.CodeValidation, "up_to_seq must not be negative")
	}
	conv, err := s.Conversation(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	if upToSeq > conv.LastSeq {
		upToSeq = conv.LastSeq
	}
	cursor, err := s.conversations.AdvanceReadCursor(ctx, conv.ID, readerID, upToSeq)
	if err != nil {
		return 0, err
	}
	s.broadcast(ctx, models.ChannelEvent{
		Kind:           models.ChannelEventRead,
		ConversationID: conv.ID,
		Read:           &models.ReadReceipt{ReaderID: readerID, UpToSeq: cursor},
	})
	return cursor, nil
}

// Typing broadcasts a volatile typing signal. Nothing is stored.
func (s *NegotiationService) Typing(ctx context.Context, conversationID, senderID string, typing bool) error {
	conv, err := s.Conversation(ctx, conversationID, senderID)
	if err != nil {
		return err
	}
	s.broadcast(ctx, models.ChannelEvent{
		Kind:           models.ChannelEventTyping,
		ConversationID: conv.ID,
		Typing:         &models.TypingSignal{SenderID: senderID, Typing: typing},
	})
	return nil
}

func fieldDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = "failed on '" + fe.Tag() + "' tag"
	}
	return details
}
