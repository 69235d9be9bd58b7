package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/config"
	"github.com/ridebroker/backend/internal/metrics"
	"github.com/ridebroker/backend/internal/models"
)

const sweepJobName = "offer-sweep"

// OfferSweeper expires stale open offers and reclaims offers stranded in
// locked_pending_accept by a crashed or failed accept.
type OfferSweeper struct {
	offers   OfferStore
	ledger   EscrowLedger
	lock     SweepLock
	metrics  *metrics.JobMetrics
	log      zerolog.Logger
	interval time.Duration
	grace    time.Duration
	batch    int
	now      func() time.Time
}

func NewOfferSweeper(offers OfferStore, ledger EscrowLedger, lock SweepLock, m *metrics.JobMetrics, market config.MarketplaceConfig, log zerolog.Logger) *OfferSweeper {
	if lock == nil {
		lock = localSweepLock{}
	}
	interval := market.SweepInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	grace := market.PendingGrace
	if grace <= 0 {
		grace = 30 * time.Second
	}
	batch := market.SweepBatchSize
	if batch <= 0 {
		batch = 200
	}
	return &OfferSweeper{
		offers:   offers,
		ledger:   ledger,
		lock:     lock,
		metrics:  m,
		log:      log,
		interval: interval,
		grace:    grace,
		batch:    batch,
		now:      time.Now,
	}
}

// Run sweeps on a fixed cadence until ctx is cancelled.
func (s *OfferSweeper) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		s.log.Error().Err(err).Msg("sweep cycle failed")
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("offer sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.log.Error().Err(err).Msg("sweep cycle failed")
			}
		}
	}
}

func (s *OfferSweeper) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.log.Debug().Msg("another instance is sweeping, skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.log.Error().Err(relErr).Msg("failed to release sweep lock")
		}
	}()

	start := time.Now()
	affected, err := s.Sweep(ctx)
	s.metrics.ObserveDuration(sweepJobName, time.Since(start))
	s.metrics.AddAffected(sweepJobName, affected)
	if err != nil {
		s.metrics.IncFailure(sweepJobName)
		return err
	}
	s.metrics.IncSuccess(sweepJobName)
	if affected > 0 {
		s.log.Info().Int("affected", affected).Dur("duration", time.Since(start)).Msg("sweep complete")
	}
	return nil
}

// Sweep runs one pass and returns how many offers it changed. Failures on
// individual offers are collected and do not stop the pass.
func (s *OfferSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	var (
		affected int
		errs     error
	)

	expired, err := s.offers.ListExpiredOpen(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}
	for i := range expired {
		changed, err := s.expire(ctx, &expired[i], now)
		errs = multierr.Append(errs, err)
		if changed {
			affected++
		}
	}

	stale, err := s.offers.ListStalePending(ctx, now.Add(-s.grace), s.batch)
	if err != nil {
		return affected, multierr.Append(errs, err)
	}
	for i := range stale {
		changed, err := s.reclaim(ctx, &stale[i], now)
		errs = multierr.Append(errs, err)
		if changed {
			affected++
		}
	}
	return affected, errs
}

func (s *OfferSweeper) expire(ctx context.Context, offer *models.RideOffer, now time.Time) (bool, error) {
	next := offer.Clone()
	next.State = models.OfferExpired
	next.ArchivedAt = &now
	next.UpdatedAt = now
	if _, err := s.offers.UpdateOfferGuarded(ctx, next, offer.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return false, nil
		}
		return false, fmt.Errorf("expire offer %s: %w", offer.ID, err)
	}
	s.log.Info().Str("offer_id", offer.ID).Msg("offer expired")
	return true, nil
}

// reclaim reopens the offer, or expires it if its deadline has passed
// meanwhile, and only then releases the hold of the pending acceptor. A lost
// guarded write means the accept finished first and its escrow must stay.
func (s *OfferSweeper) reclaim(ctx context.Context, offer *models.RideOffer, now time.Time) (bool, error) {
	next := offer.Clone()
	next.PendingBy = nil
	next.PendingSince = nil
	next.UpdatedAt = now
	next.State = models.OfferOpen
	if offer.ExpiredAt(now) {
		next.State = models.OfferExpired
		next.ArchivedAt = &now
	}
	if _, err := s.offers.UpdateOfferGuarded(ctx, next, offer.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return false, nil
		}
		return false, fmt.Errorf("reopen offer %s: %w", offer.ID, err)
	}
	s.log.Warn().Str("offer_id", offer.ID).Str("state", string(next.State)).Msg("reclaimed offer stuck pending accept")

	if offer.PendingBy == nil || *offer.PendingBy == "" {
		return true, nil
	}
	if err := s.releasePending(ctx, offer.ID, *offer.PendingBy); err != nil {
		s.log.Error().Err(err).
			Str("offer_id", offer.ID).
			Str("driver_id", *offer.PendingBy).
			Msg("offer reopened but pending hold was not released")
		return true, fmt.Errorf("release hold of offer %s: %w", offer.ID, err)
	}
	return true, nil
}

func (s *OfferSweeper) releasePending(ctx context.Context, offerID, driverID string) error {
	wallet, err := s.ledger.WalletForDriver(ctx, driverID)
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.ledger.Release(ctx, wallet.ID, offerID); err != nil && !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return err
	}

	// The same driver may have taken the reopened offer before the release
	// landed. Their hold shares the reference, so re-arm it.
	current, err := s.offers.GetOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if !heldBy(current, driverID) {
		return nil
	}
	s.log.Warn().Str("offer_id", offerID).Str("driver_id", driverID).Msg("offer retaken during reclaim, restoring hold")
	return s.ledger.Lock(ctx, wallet.ID, current.RequiredLock(), offerID)
}

func heldBy(offer *models.RideOffer, driverID string) bool {
	switch offer.State {
	case models.OfferLockedPendingAccept:
		return offer.PendingBy != nil && *offer.PendingBy == driverID
	case models.OfferAccepted, models.OfferInProgress:
		return offer.Acceptor() == driverID
	}
	return false
}
