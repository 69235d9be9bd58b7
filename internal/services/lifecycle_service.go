package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/config"
	"github.com/ridebroker/backend/internal/models"
)

const maxTransitionAttempts = 3

// CreateOfferInput is what a poster supplies for a new ride.
type CreateOfferInput struct {
	PosterDriverID string           `json:"-"`
	TotalAmount    int64            `json:"total_amount" validate:"required,gt=0"`
	LockFraction   *decimal.Decimal `json:"lock_fraction,omitempty"`
	TTL            time.Duration    `json:"-"`
	TTLSeconds     int64            `json:"ttl_seconds" validate:"required,gt=0"`
	Pickup         string           `json:"pickup" validate:"required,max=255"`
	Dropoff        string           `json:"dropoff" validate:"required,max=255"`
	VehicleType    string           `json:"vehicle_type,omitempty" validate:"max=40"`
	Notes          string           `json:"notes,omitempty" validate:"max=1000"`
	ScheduledAt    *time.Time       `json:"scheduled_at,omitempty"`
}

// LifecycleService owns offer creation and the ride lifecycle transitions
// reported by the trip collaborator.
type LifecycleService struct {
	offers  OfferStore
	settler RideSettler
	market  config.MarketplaceConfig
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string
}

func NewLifecycleService(offers OfferStore, settler RideSettler, market config.MarketplaceConfig, log zerolog.Logger) *LifecycleService {
	return &LifecycleService{
		offers:  offers,
		settler: settler,
		market:  market,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (s *LifecycleService) CreateOffer(ctx context.Context, in CreateOfferInput) (*models.RideOffer, error) {
	if in.PosterDriverID == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "poster driver id is required")
	}
	if in.TotalAmount <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "total_amount must be positive")
	}
	fraction := s.market.DefaultLockFraction
	if in.LockFraction != nil {
		fraction = *in.LockFraction
	}
	if !config.ValidLockFraction(fraction) {
		return nil, apperrors.New(apperrors.CodeValidation, "lock_fraction must be in (0, 1]")
	}
	ttl := in.TTL
	if ttl == 0 && in.TTLSeconds > 0 {
		ttl = time.Duration(in.TTLSeconds) * time.Second
	}
	if ttl <= 0 || (s.market.MaxOfferTTL > 0 && ttl > s.market.MaxOfferTTL) {
		return nil, apperrors.New(apperrors.CodeValidation, "ttl out of range").
			WithDetails(map[string]string{"max_ttl": s.market.MaxOfferTTL.String()})
	}

	now := s.now()
	offer := &models.RideOffer{
		ID:             s.newID(),
		PosterDriverID: in.PosterDriverID,
		TotalAmount:    in.TotalAmount,
		LockFraction:   fraction,
		State:          models.OfferOpen,
		Version:        1,
		Pickup:         in.Pickup,
		Dropoff:        in.Dropoff,
		VehicleType:    in.VehicleType,
		Notes:          in.Notes,
		ScheduledAt:    in.ScheduledAt,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
	if offer.RequiredLock() < 1 {
		return nil, apperrors.New(apperrors.CodeValidation, "total_amount too small for lock_fraction")
	}
	if err := s.offers.CreateOffer(ctx, offer); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("offer_id", offer.ID).
		Str("poster_driver_id", offer.PosterDriverID).
		Int64("total_amount", offer.TotalAmount).
		Time("expires_at", offer.ExpiresAt).
		Msg("offer created")
	return offer, nil
}

// GetOffer returns the offer, flipping an open offer past its deadline to expired.
func (s *LifecycleService) GetOffer(ctx context.Context, offerID string) (*models.RideOffer, error) {
	offer, err := s.offers.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if offer.State != models.OfferOpen || !offer.ExpiredAt(now) {
		return offer, nil
	}
	expired := offer.Clone()
	expired.State = models.OfferExpired
	expired.ArchivedAt = &now
	expired.UpdatedAt = now
	updated, err := s.offers.UpdateOfferGuarded(ctx, expired, offer.Version)
	if errors.Is(err, ErrVersionConflict) {
		return s.offers.GetOffer(ctx, offerID)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *LifecycleService) ListOpenOffers(ctx context.Context, viewerID string, limit int) ([]models.RideOffer, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.offers.ListOpenOffers(ctx, s.now(), viewerID, limit)
}

func (s *LifecycleService) StartRide(ctx context.Context, offerID string) (*models.RideOffer, error) {
	var result *models.RideOffer
	err := s.retryOnConflict(func() error {
		offer, err := s.offers.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		switch offer.State {
		case models.OfferInProgress:
			result = offer
			return nil
		case models.OfferAccepted:
		default:
			return stateConflict(offer, "start")
		}
		next := offer.Clone()
		next.State = models.OfferInProgress
		next.UpdatedAt = s.now()
		result, err = s.offers.UpdateOfferGuarded(ctx, next, offer.Version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CompleteRide moves an accepted or in-progress ride to completed and settles
// the escrow. Repeating it on a completed ride re-runs the settlement.
func (s *LifecycleService) CompleteRide(ctx context.Context, offerID string) (*models.RideOffer, error) {
	var result *models.RideOffer
	err := s.retryOnConflict(func() error {
		offer, err := s.offers.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		switch offer.State {
		case models.OfferCompleted:
			result = offer
			return nil
		case models.OfferAccepted, models.OfferInProgress:
		default:
			return stateConflict(offer, "complete")
		}
		now := s.now()
		next := offer.Clone()
		next.State = models.OfferCompleted
		next.ArchivedAt = &now
		next.UpdatedAt = now
		result, err = s.offers.UpdateOfferGuarded(ctx, next, offer.Version)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.settler != nil {
		if err := s.settler.OnRideCompleted(ctx, result); err != nil {
			return nil, err
		}
	}
	s.log.Info().Str("offer_id", result.ID).Msg("ride completed")
	return result, nil
}

// CancelRide cancels an open or accepted offer. The guarded state flip comes
// first and the escrow is released after it, so a flip lost to a concurrent
// transition leaves the hold in place. A failed release surfaces to the
// caller, and repeating the cancellation re-runs it. requesterID, when set,
// must be the poster or the acceptor.
func (s *LifecycleService) CancelRide(ctx context.Context, offerID string, by models.CancelActor, requesterID string) (*models.RideOffer, error) {
	target, ok := by.State()
	if !ok {
		return nil, apperrors.New(apperrors.CodeValidation, "unknown cancelling actor")
	}

	var result *models.RideOffer
	err := s.retryOnConflict(func() error {
		offer, err := s.offers.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if requesterID != "" && requesterID != offer.PosterDriverID && requesterID != offer.Acceptor() {
			return apperrors.New(apperrors.CodeForbidden, "only ride participants may cancel")
		}
		switch offer.State {
		case target:
			result = offer
			return nil
		case models.OfferOpen, models.OfferAccepted:
		default:
			return stateConflict(offer, "cancel")
		}
		now := s.now()
		next := offer.Clone()
		next.State = target
		next.ArchivedAt = &now
		next.UpdatedAt = now
		result, err = s.offers.UpdateOfferGuarded(ctx, next, offer.Version)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.settler != nil && result.Acceptor() != "" {
		if err := s.settler.OnRideCancelled(ctx, result); err != nil {
			s.log.Error().Err(err).Str("offer_id", result.ID).Msg("ride cancelled but escrow release failed")
			return nil, err
		}
	}
	s.log.Info().Str("offer_id", result.ID).Str("state", string(result.State)).Msg("ride cancelled")
	return result, nil
}

func (s *LifecycleService) retryOnConflict(fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		if attempt == maxTransitionAttempts {
			return apperrors.Wrap(apperrors.CodeTransient, err, "offer kept changing, retry the request")
		}
	}
}

func stateConflict(offer *models.RideOffer, action string) error {
	return apperrors.New(apperrors.CodeStateConflict, "cannot "+action+" offer in state "+string(offer.State)).
		WithDetails(map[string]string{"offer_id": offer.ID, "state": string(offer.State)})
}
