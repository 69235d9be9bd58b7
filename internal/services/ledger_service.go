package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/audit"
	"github.com/ridebroker/backend/internal/models"
)

// EscrowLedger is the slice of the ledger the arbiter and settlement trigger need.
type EscrowLedger interface {
	WalletForDriver(ctx context.Context, driverID string) (*models.WalletAccount, error)
	Lock(ctx context.Context, walletID string, amount int64, reference string) error
	Release(ctx context.Context, walletID, reference string) error
	Capture(ctx context.Context, walletID, reference string) error
	Balance(ctx context.Context, walletID string) (*models.WalletBalance, error)
}

// WalletLedgerService is the Postgres ledger store. Every mutation locks the
// wallet row, appends a movement and applies a version-guarded balance update
// in one transaction.
type WalletLedgerService struct {
	db    *sql.DB
	audit *audit.Logger
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

func NewWalletLedgerService(db *sql.DB, auditLog *audit.Logger, log zerolog.Logger) *WalletLedgerService {
	if auditLog == nil {
		auditLog = audit.Nop()
	}
	return &WalletLedgerService{
		db:    db,
		audit: auditLog,
		log:   log.With().Str("component", "ledger").Logger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *WalletLedgerService) OpenWallet(ctx context.Context, driverID string) (*models.WalletAccount, error) {
	if driverID == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "driver id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_accounts (id, driver_id, available_balance, locked_balance, version, updated_at)
		VALUES ($1, $2, 0, 0, 1, $3)
		ON CONFLICT (driver_id) DO NOTHING`,
		s.newID(), driverID, s.now())
	if err != nil {
		return nil, storageError("open wallet", err)
	}
	return s.WalletForDriver(ctx, driverID)
}

func (s *WalletLedgerService) WalletForDriver(ctx context.Context, driverID string) (*models.WalletAccount, error) {
	var w models.WalletAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, driver_id, available_balance, locked_balance, version, updated_at
		FROM wallet_accounts
		WHERE driver_id = $1`, driverID).
		Scan(&w.ID, &w.DriverID, &w.AvailableBalance, &w.LockedBalance, &w.Version, &w.UpdatedAt)
	if err != nil {
		return nil, storageError("wallet for driver", err)
	}
	return &w, nil
}

// Balance is a display snapshot. Correctness decisions go through Lock.
func (s *WalletLedgerService) Balance(ctx context.Context, walletID string) (*models.WalletBalance, error) {
	b := models.WalletBalance{WalletID: walletID}
	err := s.db.QueryRowContext(ctx, `
		SELECT available_balance, locked_balance
		FROM wallet_accounts
		WHERE id = $1`, walletID).Scan(&b.Available, &b.Locked)
	if err != nil {
		return nil, storageError("balance", err)
	}
	return &b, nil
}

// Lock moves amount from available to locked against reference. Locking a
// reference that is already held succeeds without changes.
func (s *WalletLedgerService) Lock(ctx context.Context, walletID string, amount int64, reference string) error {
	if err := validateMovement(walletID, reference, amount); err != nil {
		return err
	}

	var movement *models.LedgerMovement
	err := withTx(ctx, s.db, "lock", func(tx *sql.Tx) error {
		wallet, err := s.lockAccount(ctx, tx, walletID)
		if err != nil {
			return err
		}
		hold, err := s.findHold(ctx, tx, walletID, reference)
		if err != nil {
			return err
		}

		if hold != nil {
			switch hold.Status {
			case models.HoldHeld:
				return nil
			case models.HoldCaptured:
				return apperrors.New(apperrors.CodeStateConflict, "escrow for reference already captured")
			}
		}

		if wallet.AvailableBalance < amount {
			return apperrors.InsufficientFunds(amount, wallet.AvailableBalance)
		}

		if hold == nil {
			err = s.insertHold(ctx, tx, walletID, reference, amount)
		} else {
			err = s.updateHold(ctx, tx, walletID, reference, amount, models.HoldHeld)
		}
		if err != nil {
			return err
		}

		movement, err = s.appendMovement(ctx, tx, walletID, models.MovementLock, amount, reference)
		if err != nil {
			return err
		}
		return s.updateAccountBalance(ctx, tx, wallet, wallet.AvailableBalance-amount, wallet.LockedBalance+amount)
	})
	s.finish(movement, walletID, reference, err)
	return err
}

// Release returns a held escrow to available. Releasing twice is a no-op.
func (s *WalletLedgerService) Release(ctx context.Context, walletID, reference string) error {
	return s.settleHold(ctx, walletID, reference, models.HoldReleased)
}

// Capture spends a held escrow permanently. Capturing twice is a no-op.
func (s *WalletLedgerService) Capture(ctx context.Context, walletID, reference string) error {
	return s.settleHold(ctx, walletID, reference, models.HoldCaptured)
}

func (s *WalletLedgerService) settleHold(ctx context.Context, walletID, reference string, target models.HoldStatus) error {
	if walletID == "" || reference == "" {
		return apperrors.New(apperrors.CodeValidation, "wallet id and reference are required")
	}
	op, kind := "release", models.MovementRelease
	if target == models.HoldCaptured {
		op, kind = "capture", models.MovementCapture
	}

	var movement *models.LedgerMovement
	err := withTx(ctx, s.db, op, func(tx *sql.Tx) error {
		wallet, err := s.lockAccount(ctx, tx, walletID)
		if err != nil {
			return err
		}
		hold, err := s.findHold(ctx, tx, walletID, reference)
		if err != nil {
			return err
		}
		if hold == nil {
			return apperrors.New(apperrors.CodeNotFound, "no escrow held for reference")
		}
		if hold.Status == target {
			return nil
		}
		if hold.Status != models.HoldHeld {
			return apperrors.New(apperrors.CodeStateConflict, "escrow already "+string(hold.Status)).
				WithDetails(map[string]string{"status": string(hold.Status)})
		}

		if err := s.updateHold(ctx, tx, walletID, reference, hold.Amount, target); err != nil {
			return err
		}
		movement, err = s.appendMovement(ctx, tx, walletID, kind, hold.Amount, reference)
		if err != nil {
			return err
		}

		available := wallet.AvailableBalance
		if target == models.HoldReleased {
			available += hold.Amount
		}
		return s.updateAccountBalance(ctx, tx, wallet, available, wallet.LockedBalance-hold.Amount)
	})
	s.finish(movement, walletID, reference, err)
	return err
}

// Credit adds funds (top-up). Idempotent by reference.
func (s *WalletLedgerService) Credit(ctx context.Context, walletID string, amount int64, reference string) error {
	return s.adjust(ctx, walletID, amount, reference, models.MovementCredit)
}

// Debit removes available funds (withdrawal). Idempotent by reference.
func (s *WalletLedgerService) Debit(ctx context.Context, walletID string, amount int64, reference string) error {
	return s.adjust(ctx, walletID, amount, reference, models.MovementDebit)
}

func (s *WalletLedgerService) adjust(ctx context.Context, walletID string, amount int64, reference string, kind models.MovementKind) error {
	if err := validateMovement(walletID, reference, amount); err != nil {
		return err
	}

	var movement *models.LedgerMovement
	err := withTx(ctx, s.db, string(kind), func(tx *sql.Tx) error {
		wallet, err := s.lockAccount(ctx, tx, walletID)
		if err != nil {
			return err
		}

		var applied bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM ledger_movements
				WHERE wallet_id = $1 AND kind = $2 AND reference = $3
			)`, walletID, string(kind), reference).Scan(&applied); err != nil {
			return err
		}
		if applied {
			return nil
		}

		available := wallet.AvailableBalance + amount
		if kind == models.MovementDebit {
			if wallet.AvailableBalance < amount {
				return apperrors.InsufficientFunds(amount, wallet.AvailableBalance)
			}
			available = wallet.AvailableBalance - amount
		}

		movement, err = s.appendMovement(ctx, tx, walletID, kind, amount, reference)
		if err != nil {
			return err
		}
		return s.updateAccountBalance(ctx, tx, wallet, available, wallet.LockedBalance)
	})
	s.finish(movement, walletID, reference, err)
	return err
}

// Movements lists the audit trail of a wallet, newest first.
func (s *WalletLedgerService) Movements(ctx context.Context, walletID string, limit int) ([]models.LedgerMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_id, kind, amount, reference, created_at
		FROM ledger_movements
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, walletID, limit)
	if err != nil {
		return nil, storageError("list movements", err)
	}
	defer rows.Close()

	movements := []models.LedgerMovement{}
	for rows.Next() {
		var m models.LedgerMovement
		if err := rows.Scan(&m.ID, &m.WalletID, &m.Kind, &m.Amount, &m.Reference, &m.CreatedAt); err != nil {
			return nil, storageError("scan movement", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list movements", err)
	}
	return movements, nil
}

// Hold returns the escrow row for (walletID, reference).
func (s *WalletLedgerService) Hold(ctx context.Context, walletID, reference string) (*models.WalletHold, error) {
	h := models.WalletHold{WalletID: walletID, Reference: reference}
	err := s.db.QueryRowContext(ctx, `
		SELECT amount, status, created_at, updated_at
		FROM wallet_holds
		WHERE wallet_id = $1 AND reference = $2`, walletID, reference).
		Scan(&h.Amount, &h.Status, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, storageError("hold", err)
	}
	return &h, nil
}

func (s *WalletLedgerService) finish(movement *models.LedgerMovement, walletID, reference string, err error) {
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeInsufficientFund) && !apperrors.IsCode(err, apperrors.CodeNotFound) {
			s.audit.LogError(reference, walletID, err)
		}
		return
	}
	if movement != nil {
		s.audit.LogMovement(movement)
	}
}

func validateMovement(walletID, reference string, amount int64) error {
	if walletID == "" || reference == "" {
		return apperrors.New(apperrors.CodeValidation, "wallet id and reference are required")
	}
	if amount <= 0 {
		return apperrors.New(apperrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func (s *WalletLedgerService) lockAccount(ctx context.Context, tx *sql.Tx, walletID string) (*models.WalletAccount, error) {
	var account models.WalletAccount
	err := tx.QueryRowContext(ctx, `
		SELECT id, driver_id, available_balance, locked_balance, version, updated_at
		FROM wallet_accounts
		WHERE id = $1
		FOR UPDATE`, walletID).
		Scan(&account.ID, &account.DriverID, &account.AvailableBalance, &account.LockedBalance, &account.Version, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.CodeNotFound, "wallet not found")
	}
	return &account, err
}

func (s *WalletLedgerService) findHold(ctx context.Context, tx *sql.Tx, walletID, reference string) (*models.WalletHold, error) {
	h := models.WalletHold{WalletID: walletID, Reference: reference}
	err := tx.QueryRowContext(ctx, `
		SELECT amount, status, created_at, updated_at
		FROM wallet_holds
		WHERE wallet_id = $1 AND reference = $2
		FOR UPDATE`, walletID, reference).
		Scan(&h.Amount, &h.Status, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *WalletLedgerService) insertHold(ctx context.Context, tx *sql.Tx, walletID, reference string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_holds (wallet_id, reference, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		walletID, reference, amount, string(models.HoldHeld), s.now())
	return err
}

func (s *WalletLedgerService) updateHold(ctx context.Context, tx *sql.Tx, walletID, reference string, amount int64, status models.HoldStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallet_holds
		SET amount = $1, status = $2, updated_at = $3
		WHERE wallet_id = $4 AND reference = $5`,
		amount, string(status), s.now(), walletID, reference)
	return err
}

func (s *WalletLedgerService) appendMovement(ctx context.Context, tx *sql.Tx, walletID string, kind models.MovementKind, amount int64, reference string) (*models.LedgerMovement, error) {
	m := &models.LedgerMovement{
		ID:        s.newID(),
		WalletID:  walletID,
		Kind:      kind,
		Amount:    amount,
		Reference: reference,
		CreatedAt: s.now(),
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_movements (id, wallet_id, kind, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.WalletID, string(m.Kind), m.Amount, m.Reference, m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *WalletLedgerService) updateAccountBalance(ctx context.Context, tx *sql.Tx, wallet *models.WalletAccount, available, locked int64) error {
	if available < 0 || locked < 0 {
		return apperrors.New(apperrors.CodeInternal, "balance would go negative").
			WithDetails(map[string]int64{"available": available, "locked": locked})
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE wallet_accounts
		SET available_balance = $1, locked_balance = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`,
		available, locked, s.now(), wallet.ID, wallet.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apperrors.Wrap(apperrors.CodeTransient, ErrVersionConflict, "wallet "+wallet.ID+" changed concurrently")
	}
	return nil
}
