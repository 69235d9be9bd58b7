package audit

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/models"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Reference string    `json:"reference"`
	WalletID  string    `json:"wallet_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// Logger writes ledger audit events to a dedicated zerolog stream.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(base zerolog.Logger) *Logger {
	return &Logger{log: base.With().Str("channel", "audit").Logger()}
}

// Nop discards every event.
func Nop() *Logger {
	return &Logger{log: zerolog.Nop()}
}

func (a *Logger) LogMovement(m *models.LedgerMovement) {
	a.write(Event{
		Timestamp: m.CreatedAt,
		EventType: string(m.Kind),
		Reference: m.Reference,
		WalletID:  m.WalletID,
		Amount:    m.Amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"movement_id": m.ID},
	})
}

func (a *Logger) LogError(reference, walletID string, err error) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		Reference: reference,
		WalletID:  walletID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(reference, walletID, operation, details string) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: operation,
		Reference: reference,
		WalletID:  walletID,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

func (a *Logger) write(event Event) {
	if a == nil {
		return
	}
	a.log.Info().
		Time("event_time", event.Timestamp).
		Str("event_type", event.EventType).
		Str("reference", event.Reference).
		Str("wallet_id", event.WalletID).
		Int64("amount", event.Amount).
		Str("status", event.Status).
		Interface("details", event.Details).
		Msg("AUDIT")
}
