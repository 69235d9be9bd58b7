package models

import (
	"time"
)

type MovementKind string

const (
	MovementCredit  MovementKind = "credit"
	MovementDebit   MovementKind = "debit"
	MovementLock    MovementKind = "lock"
	MovementRelease MovementKind = "release"
	MovementCapture MovementKind = "capture"
)

// LedgerMovement is an immutable audit row written on every balance change.
type LedgerMovement struct {
	ID        string       `json:"id" db:"id"`
	WalletID  string       `json:"wallet_id" db:"wallet_id"`
	Kind      MovementKind `json:"kind" db:"kind"`
	Amount    int64        `json:"amount" db:"amount"` // minor units, always > 0
	Reference string       `json:"reference" db:"reference"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// WalletAccount belongs to exactly one driver.
type WalletAccount struct {
	ID               string    `json:"id" db:"id"`
	DriverID         string    `json:"driver_id" db:"driver_id"`
	AvailableBalance int64     `json:"available_balance" db:"available_balance"`
	LockedBalance    int64     `json:"locked_balance" db:"locked_balance"`
	Version          int       `json:"version" db:"version"` // for optimistic locking
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

type HoldStatus string

const (
	HoldHeld     HoldStatus = "held"
	HoldReleased HoldStatus = "released"
	HoldCaptured HoldStatus = "captured"
)

// WalletHold tracks the escrow reserved against one reference.
type WalletHold struct {
	WalletID  string     `json:"wallet_id" db:"wallet_id"`
	Reference string     `json:"reference" db:"reference"`
	Amount    int64      `json:"amount" db:"amount"`
	Status    HoldStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type WalletBalance struct {
	WalletID  string `json:"wallet_id"`
	Available int64  `json:"available"`
	Locked    int64  `json:"locked"`
}
