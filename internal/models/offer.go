package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OfferState string

const (
	OfferOpen                OfferState = "open"
	OfferLockedPendingAccept OfferState = "locked_pending_accept"
	OfferAccepted            OfferState = "accepted"
	OfferInProgress          OfferState = "in_progress"
	OfferCompleted           OfferState = "completed"
	OfferCancelledByDriver   OfferState = "cancelled_by_driver"
	OfferCancelledBySystem   OfferState = "cancelled_by_system"
	OfferExpired             OfferState = "expired"
)

// IsTerminal returns true once the offer can no longer change state.
func (s OfferState) IsTerminal() bool {
	switch s {
	case OfferCompleted, OfferCancelledByDriver, OfferCancelledBySystem, OfferExpired:
		return true
	}
	return false
}

func (s OfferState) IsCancelled() bool {
	return s == OfferCancelledByDriver || s == OfferCancelledBySystem
}

// CancelActor identifies who cancelled a ride.
type CancelActor string

const (
	CancelByDriver CancelActor = "driver"
	CancelBySystem CancelActor = "system"
)

func (a CancelActor) State() (OfferState, bool) {
	switch a {
	case CancelByDriver:
		return OfferCancelledByDriver, true
	case CancelBySystem:
		return OfferCancelledBySystem, true
	}
	return "", false
}

// RideOffer is a ride posted by one driver for another to take.
type RideOffer struct {
	ID             string          `json:"id" db:"id"`
	PosterDriverID string          `json:"poster_driver_id" db:"poster_driver_id"`
	TotalAmount    int64           `json:"total_amount" db:"total_amount"`
	LockFraction   decimal.Decimal `json:"lock_fraction" db:"lock_fraction"`
	State          OfferState      `json:"state" db:"state"`
	AcceptedBy     *string         `json:"accepted_by,omitempty" db:"accepted_by"`
	PendingBy      *string         `json:"-" db:"pending_by"`
	PendingSince   *time.Time      `json:"-" db:"pending_since"`
	LockedAmount   int64           `json:"locked_amount" db:"locked_amount"`
	Version        int64           `json:"version" db:"version"`
	Pickup         string          `json:"pickup" db:"pickup"`
	Dropoff        string          `json:"dropoff" db:"dropoff"`
	VehicleType    string          `json:"vehicle_type,omitempty" db:"vehicle_type"`
	Notes          string          `json:"notes,omitempty" db:"notes"`
	ScheduledAt    *time.Time      `json:"scheduled_at,omitempty" db:"scheduled_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	ExpiresAt      time.Time       `json:"expires_at" db:"expires_at"`
	ArchivedAt     *time.Time      `json:"archived_at,omitempty" db:"archived_at"`
}

// RequiredLock is the escrow an acceptor must reserve, rounded half away from zero.
func (o *RideOffer) RequiredLock() int64 {
	return decimal.NewFromInt(o.TotalAmount).Mul(o.LockFraction).Round(0).IntPart()
}

func (o *RideOffer) ExpiredAt(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Acceptor returns the accepting driver, or "" when none.
func (o *RideOffer) Acceptor() string {
	if o.AcceptedBy == nil {
		return ""
	}
	return *o.AcceptedBy
}

func (o *RideOffer) Clone() *RideOffer {
	cp := *o
	return &cp
}
