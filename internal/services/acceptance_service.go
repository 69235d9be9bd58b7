package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/metrics"
	"github.com/ridebroker/backend/internal/models"
)

// AcceptResult is returned to the driver who won an offer.
type AcceptResult struct {
	OfferID        string `json:"offer_id"`
	ConversationID string `json:"conversation_id"`
	LockedAmount   int64  `json:"locked_amount"`
	WalletID       string `json:"wallet_id"`
}

// AcceptanceService arbitrates concurrent accept attempts on ride offers.
// The guarded write to locked_pending_accept is the only serialization
// point; everything after it is reversible.
type AcceptanceService struct {
	offers   OfferStore
	ledger   EscrowLedger
	notifier Notifier
	metrics  *metrics.AcceptanceMetrics
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

func NewAcceptanceService(offers OfferStore, ledger EscrowLedger, notifier Notifier, m *metrics.AcceptanceMetrics, log zerolog.Logger) *AcceptanceService {
	return &AcceptanceService{
		offers:   offers,
		ledger:   ledger,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *AcceptanceService) Accept(ctx context.Context, offerID, driverID string) (*AcceptResult, error) {
	started := time.Now()
	result, err := s.accept(ctx, offerID, driverID)
	s.metrics.Observe(acceptOutcome(err), time.Since(started))
	return result, err
}

func (s *AcceptanceService) accept(ctx context.Context, offerID, driverID string) (*AcceptResult, error) {
	if offerID == "" || driverID == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "offer id and driver id are required")
	}

	offer, err := s.offers.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.PosterDriverID == driverID {
		return nil, apperrors.New(apperrors.CodeForbidden, "drivers cannot accept their own offer")
	}

	now := s.now()
	switch {
	case offer.State == models.OfferExpired:
		return nil, apperrors.New(apperrors.CodeExpired, "ride offer expired")
	case offer.State != models.OfferOpen:
		return nil, apperrors.New(apperrors.CodeAlreadyTaken, "ride already taken")
	case offer.ExpiredAt(now):
		s.expireLazily(ctx, offer, now)
		return nil, apperrors.New(apperrors.CodeExpired, "ride offer expired")
	}

	wallet, err := s.ledger.WalletForDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	pending := offer.Clone()
	pending.State = models.OfferLockedPendingAccept
	pending.PendingBy = &driverID
	pending.PendingSince = &now
	pending.UpdatedAt = now
	pending, err = s.offers.UpdateOfferGuarded(ctx, pending, offer.Version)
	if errors.Is(err, ErrVersionConflict) {
		return nil, apperrors.New(apperrors.CodeAlreadyTaken, "ride already taken")
	}
	if err != nil {
		return nil, err
	}

	amount := offer.RequiredLock()
	if err := s.ledger.Lock(ctx, wallet.ID, amount, offer.ID); err != nil {
		held := !apperrors.IsCode(err, apperrors.CodeInsufficientFund)
		if unwindErr := s.unwind(ctx, pending, wallet.ID, held); unwindErr != nil {
			s.log.Error().Err(unwindErr).Str("offer_id", offer.ID).Msg("unwind after failed lock did not complete")
			return nil, apperrors.Wrap(apperrors.CodeTransient, unwindErr, "offer left pending for reclaim")
		}
		return nil, err
	}

	conv := &models.Conversation{
		ID:           s.newID(),
		OfferID:      offer.ID,
		ParticipantA: offer.PosterDriverID,
		ParticipantB: driverID,
		CreatedAt:    now,
	}
	accepted := pending.Clone()
	accepted.State = models.OfferAccepted
	accepted.AcceptedBy = &driverID
	accepted.PendingBy = nil
	accepted.PendingSince = nil
	accepted.LockedAmount = amount
	accepted.UpdatedAt = s.now()
	if _, err := s.offers.AcceptOffer(ctx, accepted, pending.Version, conv); err != nil {
		if unwindErr := s.unwind(ctx, pending, wallet.ID, true); unwindErr != nil {
			s.log.Error().Err(unwindErr).Str("offer_id", offer.ID).Msg("unwind after failed accept write did not complete")
		}
		return nil, apperrors.Wrap(apperrors.CodeTransient, err, "accept offer")
	}

	s.log.Info().
		Str("offer_id", offer.ID).
		Str("driver_id", driverID).
		Int64("locked_amount", amount).
		Str("conversation_id", conv.ID).
		Msg("offer accepted")

	notify(ctx, s.notifier, s.log, models.Notification{
		Kind:           models.NotificationOfferAccepted,
		RecipientIDs:   []string{offer.PosterDriverID, driverID},
		OfferID:        offer.ID,
		ConversationID: conv.ID,
		Data:           map[string]any{"accepted_by": driverID, "locked_amount": amount},
		OccurredAt:     now,
	})

	return &AcceptResult{
		OfferID:        offer.ID,
		ConversationID: conv.ID,
		LockedAmount:   amount,
		WalletID:       wallet.ID,
	}, nil
}

// unwind returns a pending offer to open. When a hold may exist it is
// released first; both steps are idempotent so a later sweep can repeat them.
func (s *AcceptanceService) unwind(ctx context.Context, pending *models.RideOffer, walletID string, held bool) error {
	ctx = context.WithoutCancel(ctx)
	if held {
		if err := s.ledger.Release(ctx, walletID, pending.ID); err != nil && !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return err
		}
	}

	reopened := pending.Clone()
	reopened.State = models.OfferOpen
	reopened.PendingBy = nil
	reopened.PendingSince = nil
	reopened.UpdatedAt = s.now()
	_, err := s.offers.UpdateOfferGuarded(ctx, reopened, pending.Version)
	if errors.Is(err, ErrVersionConflict) {
		// the sweep already reclaimed it
		return nil
	}
	return err
}

func (s *AcceptanceService) expireLazily(ctx context.Context, offer *models.RideOffer, now time.Time) {
	expired := offer.Clone()
	expired.State = models.OfferExpired
	expired.ArchivedAt = &now
	expired.UpdatedAt = now
	if _, err := s.offers.UpdateOfferGuarded(ctx, expired, offer.Version); err != nil && !errors.Is(err, ErrVersionConflict) {
		s.log.Warn().Err(err).Str("offer_id", offer.ID).Msg("lazy expiry write failed")
	}
}

func acceptOutcome(err error) string {
	if err == nil {
		return "accepted"
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeAlreadyTaken:
		return "already_taken"
	case apperrors.CodeExpired:
		return "expired"
	case apperrors.CodeInsufficientFund:
		return "insufficient_funds"
	case apperrors.CodeTransient:
		return "transient"
	}
	return "rejected"
}
