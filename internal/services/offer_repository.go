package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
)

// OfferStore persists ride offers. Every state write is guarded by the
// version the caller read; a stale version yields ErrVersionConflict.
type OfferStore interface {
	CreateOffer(ctx context.Context, offer *models.RideOffer) error
	GetOffer(ctx context.Context, offerID string) (*models.RideOffer, error)
	ListOpenOffers(ctx context.Context, now time.Time, excludePoster string, limit int) ([]models.RideOffer, error)
	UpdateOfferGuarded(ctx context.Context, offer *models.RideOffer, expectedVersion int64) (*models.RideOffer, error)
	AcceptOffer(ctx context.Context, offer *models.RideOffer, expectedVersion int64, conv *models.Conversation) (*models.RideOffer, error)
	ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.RideOffer, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.RideOffer, error)
}

type OfferRepository struct {
	db *sql.DB
}

func NewOfferRepository(db *sql.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

const offerColumns = `id, poster_driver_id, total_amount, lock_fraction, state, accepted_by, pending_by,
	pending_since, locked_amount, version, pickup, dropoff, vehicle_type, notes, scheduled_at,
	created_at, updated_at, expires_at, archived_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*models.RideOffer, error) {
	var (
		o            models.RideOffer
		acceptedBy   sql.NullString
		pendingBy    sql.NullString
		pendingSince sql.NullTime
		scheduledAt  sql.NullTime
		archivedAt   sql.NullTime
	)
	err := row.Scan(&o.ID, &o.PosterDriverID, &o.TotalAmount, &o.LockFraction, &o.State, &acceptedBy, &pendingBy,
		&pendingSince, &o.LockedAmount, &o.Version, &o.Pickup, &o.Dropoff, &o.VehicleType, &o.Notes, &scheduledAt,
		&o.CreatedAt, &o.UpdatedAt, &o.ExpiresAt, &archivedAt)
	if err != nil {
		return nil, err
	}
	if acceptedBy.Valid {
		o.AcceptedBy = &acceptedBy.String
	}
	if pendingBy.Valid {
		o.PendingBy = &pendingBy.String
	}
	if pendingSince.Valid {
		o.PendingSince = &pendingSince.Time
	}
	if scheduledAt.Valid {
		o.ScheduledAt = &scheduledAt.Time
	}
	if archivedAt.Valid {
		o.ArchivedAt = &archivedAt.Time
	}
	return &o, nil
}

func (r *OfferRepository) CreateOffer(ctx context.Context, o *models.RideOffer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ride_offers (id, poster_driver_id, total_amount, lock_fraction, state, locked_amount, version,
			pickup, dropoff, vehicle_type, notes, scheduled_at, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10, $11, $12, $12, $13)`,
		o.ID, o.PosterDriverID, o.TotalAmount, o.LockFraction, string(o.State), o.Version,
		o.Pickup, o.Dropoff, o.VehicleType, o.Notes, o.ScheduledAt, o.CreatedAt, o.ExpiresAt)
	return storageError("create offer", err)
}

func (r *OfferRepository) GetOffer(ctx context.Context, offerID string) (*models.RideOffer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM ride_offers WHERE id = $1`, offerID)
	offer, err := scanOffer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.New(apperrors.CodeNotFound, "ride offer not found")
		}
		return nil, storageError("get offer", err)
	}
	return offer, nil
}

func (r *OfferRepository) ListOpenOffers(ctx context.Context, now time.Time, excludePoster string, limit int) ([]models.RideOffer, error) {
	return r.list(ctx, "list open offers", `
		SELECT `+offerColumns+`
		FROM ride_offers
		WHERE state = 'open' AND expires_at > $1 AND poster_driver_id <> $2
		ORDER BY created_at DESC
		LIMIT $3`, now, excludePoster, limit)
}

func (r *OfferRepository) ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.RideOffer, error) {
	return r.list(ctx, "list expired offers", `
		SELECT `+offerColumns+`
		FROM ride_offers
		WHERE state = 'open' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`, now, limit)
}

func (r *OfferRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.RideOffer, error) {
	return r.list(ctx, "list stale pending offers", `
		SELECT `+offerColumns+`
		FROM ride_offers
		WHERE state = 'locked_pending_accept' AND pending_since < $1
		ORDER BY pending_since
		LIMIT $2`, cutoff, limit)
}

func (r *OfferRepository) list(ctx context.Context, op, query string, args ...any) ([]models.RideOffer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(op, err)
	}
	defer rows.Close()

	offers := []models.RideOffer{}
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, storageError(op, err)
		}
		offers = append(offers, *offer)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(op, err)
	}
	return offers, nil
}

// UpdateOfferGuarded writes the mutable fields of offer only if the stored
// version still equals expectedVersion.
func (r *OfferRepository) UpdateOfferGuarded(ctx context.Context, offer *models.RideOffer, expectedVersion int64) (*models.RideOffer, error) {
	updated, err := r.guardedUpdate(ctx, r.db, offer, expectedVersion)
	if err != nil {
		return nil, storageError("update offer", err)
	}
	return updated, nil
}

// AcceptOffer flips the offer to accepted and opens its conversation atomically.
func (r *OfferRepository) AcceptOffer(ctx context.Context, offer *models.RideOffer, expectedVersion int64, conv *models.Conversation) (*models.RideOffer, error) {
	var updated *models.RideOffer
	err := withTx(ctx, r.db, "accept offer", func(tx *sql.Tx) error {
		var err error
		updated, err = r.guardedUpdate(ctx, tx, offer, expectedVersion)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversations (id, offer_id, participant_a, participant_b, last_seq, created_at)
			VALUES ($1, $2, $3, $4, 0, $5)`,
			conv.ID, conv.OfferID, conv.ParticipantA, conv.ParticipantB, conv.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *OfferRepository) guardedUpdate(ctx context.Context, db execer, offer *models.RideOffer, expectedVersion int64) (*models.RideOffer, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE ride_offers
		SET state = $1, accepted_by = $2, pending_by = $3, pending_since = $4, locked_amount = $5,
			archived_at = $6, updated_at = $7, version = version + 1
		WHERE id = $8 AND version = $9`,
		string(offer.State), offer.AcceptedBy, offer.PendingBy, offer.PendingSince, offer.LockedAmount,
		offer.ArchivedAt, offer.UpdatedAt, offer.ID, expectedVersion)
	if err != nil {
		return nil, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrVersionConflict
	}

	updated := offer.Clone()
	updated.Version = expectedVersion + 1
	return updated, nil
}
