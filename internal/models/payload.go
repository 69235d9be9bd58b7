package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	MessageText            MessageType = "text"
	MessageDriverDetails   MessageType = "driver_details"
	MessagePaymentLink     MessageType = "payment_link"
	MessagePaymentComplete MessageType = "payment_complete"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// Payload is the closed set of message bodies. Only types in this package
// implement it, so every switch over Payload lists the full set.
type Payload interface {
	MessageType() MessageType
	sealed()
}

type TextPayload struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type VehicleDetails struct {
	Model        string `json:"model" validate:"required,max=120"`
	Registration string `json:"registration" validate:"required,max=32"`
	Color        string `json:"color,omitempty" validate:"max=40"`
}

type DriverDetailsPayload struct {
	Name      string         `json:"name" validate:"required,max=120"`
	Contact   string         `json:"contact" validate:"required,max=32"`
	Vehicle   VehicleDetails `json:"vehicle" validate:"required"`
	PhotoRefs []string       `json:"photo_refs,omitempty" validate:"max=8,dive,max=512"`
}

type PaymentLinkPayload struct {
	URL     string `json:"url" validate:"required,url"`
	Amount  int64  `json:"amount" validate:"gt=0"`
	QRImage string `json:"qr_image,omitempty"`
}

type PaymentCompletePayload struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	ExternalRef string `json:"external_ref" validate:"required,max=128"`
}

func (TextPayload) MessageType() MessageType            { return MessageText }
func (DriverDetailsPayload) MessageType() MessageType   { return MessageDriverDetails }
func (PaymentLinkPayload) MessageType() MessageType     { return MessagePaymentLink }
func (PaymentCompletePayload) MessageType() MessageType { return MessagePaymentComplete }

func (TextPayload) sealed()            {}
func (DriverDetailsPayload) sealed()   {}
func (PaymentLinkPayload) sealed()     {}
func (PaymentCompletePayload) sealed() {}

func (t MessageType) IsValid() bool {
	switch t {
	case MessageText, MessageDriverDetails, MessagePaymentLink, MessagePaymentComplete:
		return true
	}
	return false
}

// DecodePayload parses raw JSON into the payload type named by t.
func DecodePayload(t MessageType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var (
		payload Payload
		err     error
	)
	switch t {
	case MessageText:
		var p TextPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case MessageDriverDetails:
		var p DriverDetailsPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case MessagePaymentLink:
		var p PaymentLinkPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case MessagePaymentComplete:
		var p PaymentCompletePayload
		err = json.Unmarshal(raw, &p)
		payload = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return payload, nil
}

func EncodePayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(p)
}
