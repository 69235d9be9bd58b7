package models

import "time"

type ChannelEventKind string

const (
	ChannelEventMessage ChannelEventKind = "message"
	ChannelEventTyping  ChannelEventKind = "typing"
	ChannelEventRead    ChannelEventKind = "read"
)

// ChannelEvent is what subscribers of a conversation receive.
type ChannelEvent struct {
	Kind           ChannelEventKind `json:"kind"`
	ConversationID string           `json:"conversation_id"`
	Message        *Message         `json:"message,omitempty"`
	Typing         *TypingSignal    `json:"typing,omitempty"`
	Read           *ReadReceipt     `json:"read,omitempty"`
}

// TypingSignal is volatile and never persisted.
type TypingSignal struct {
	SenderID string `json:"sender_id"`
	Typing   bool   `json:"typing"`
}

type ReadReceipt struct {
	ReaderID string `json:"reader_id"`
	UpToSeq  int64  `json:"up_to_seq"`
}

type NotificationKind string

const (
	NotificationOfferAccepted     NotificationKind = "offer_accepted"
	NotificationMessageReceived   NotificationKind = "message_received"
	NotificationSettlementApplied NotificationKind = "settlement_applied"
)

// Notification is handed to the push-delivery collaborator.
type Notification struct {
	Kind           NotificationKind `json:"kind"`
	RecipientIDs   []string         `json:"recipient_ids"`
	OfferID        string           `json:"offer_id,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Data           map[string]any   `json:"data,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}
