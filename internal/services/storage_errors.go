package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ridebroker/backend/internal/apperrors"
)

// ErrVersionConflict is returned by guarded writes whose version token went stale.
var ErrVersionConflict = errors.New("optimistic lock failed")

// storageError classifies a database error. Typed errors pass through,
// missing rows become NOT_FOUND and everything else is a retryable storage failure.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.As(err) != nil || errors.Is(err, ErrVersionConflict) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.Wrap(apperrors.CodeNotFound, err, op+": not found")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return apperrors.Wrap(apperrors.CodeTransient, err, fmt.Sprintf("%s: %s", op, pqErr.Code.Name()))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.CodeTransient, err, op+": interrupted")
	}
	return apperrors.Wrap(apperrors.CodeTransient, err, op)
}

// withTx runs fn inside a database transaction and commits when it returns nil.
func withTx(ctx context.Context, db *sql.DB, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(op+": begin", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return storageError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageError(op+": commit", err)
	}
	return nil
}
