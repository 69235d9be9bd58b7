package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SystemSenderID marks messages injected by the backend rather than a driver.
const SystemSenderID = "system"

// Conversation is the negotiation thread opened when an offer is accepted.
// ParticipantA is always the ride owner, ParticipantB the accepting driver.
type Conversation struct {
	ID           string    `json:"id" db:"id"`
	OfferID      string    `json:"offer_id" db:"offer_id"`
	ParticipantA string    `json:"participant_a" db:"participant_a"`
	ParticipantB string    `json:"participant_b" db:"participant_b"`
	LastSeq      int64     `json:"last_seq" db:"last_seq"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func (c *Conversation) HasParticipant(driverID string) bool {
	return driverID != "" && (driverID == c.ParticipantA || driverID == c.ParticipantB)
}

// Counterparty returns the other participant, or "" if driverID is not a member.
func (c *Conversation) Counterparty(driverID string) string {
	switch driverID {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	}
	return ""
}

func (c *Conversation) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// Message is one entry of a conversation. Seq is assigned by the server.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Seq            int64       `json:"seq"`
	SenderID       string      `json:"sender_id"`
	Type           MessageType `json:"type"`
	Payload        Payload     `json:"-"`
	SentAt         time.Time   `json:"sent_at"`
	ReadBy         []string    `json:"read_by"`
}

type messageJSON struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Seq            int64           `json:"seq"`
	SenderID       string          `json:"sender_id"`
	Type           MessageType     `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	SentAt         time.Time       `json:"sent_at"`
	ReadBy         []string        `json:"read_by"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	raw, err := EncodePayload(m.Payload)
	if err != nil {
		return nil, err
	}
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return json.Marshal(messageJSON{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		Type:           m.Type,
		Payload:        raw,
		SentAt:         m.SentAt,
		ReadBy:         readBy,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	payload, err := DecodePayload(wire.Type, wire.Payload)
	if err != nil {
		return err
	}
	*m = Message{
		ID:             wire.ID,
		ConversationID: wire.ConversationID,
		Seq:            wire.Seq,
		SenderID:       wire.SenderID,
		Type:           wire.Type,
		Payload:        payload,
		SentAt:         wire.SentAt,
		ReadBy:         wire.ReadBy,
	}
	return nil
}

// IsReadBy reports whether reader has acknowledged the message.
func (m *Message) IsReadBy(reader string) bool {
	for _, id := range m.ReadBy {
		if id == reader {
			return true
		}
	}
	return false
}

func (m *Message) String() string {
	return fmt.Sprintf("%s#%d(%s)", m.ConversationID, m.Seq, m.Type)
}
