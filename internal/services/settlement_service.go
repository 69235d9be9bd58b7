package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/config"
	"github.com/ridebroker/backend/internal/metrics"
	"github.com/ridebroker/backend/internal/models"
)

// RideSettler turns ride lifecycle events into ledger actions.
type RideSettler interface {
	OnRideCompleted(ctx context.Context, offer *models.RideOffer) error
	OnRideCancelled(ctx context.Context, offer *models.RideOffer) error
}

const (
	actionCapture = "capture"
	actionRelease = "release"
	actionNone    = "none"
)

// SettlementService captures or releases the acceptor's escrow. Every ledger
// call is keyed by the offer id, so repeated events settle once.
type SettlementService struct {
	ledger   EscrowLedger
	policy   config.SettlementConfig
	notifier Notifier
	metrics  *metrics.SettlementMetrics
	log      zerolog.Logger
	now      func() time.Time
}

func NewSettlementService(ledger EscrowLedger, policy config.SettlementConfig, notifier Notifier, m *metrics.SettlementMetrics, log zerolog.Logger) *SettlementService {
	if policy.OnCompletion == "" {
		policy.OnCompletion = config.CompletionCapture
	}
	if policy.PaymentCompleteMode == "" {
		policy.PaymentCompleteMode = config.PaymentCommission
	}
	return &SettlementService{
		ledger:   ledger,
		policy:   policy,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (s *SettlementService) OnRideCompleted(ctx context.Context, offer *models.RideOffer) error {
	action := actionCapture
	if s.policy.OnCompletion == config.CompletionRelease {
		action = actionRelease
	}
	return s.settle(ctx, "ride_completed", offer.ID, offer.Acceptor(), offer.PosterDriverID, action)
}

func (s *SettlementService) OnRideCancelled(ctx context.Context, offer *models.RideOffer) error {
	return s.settle(ctx, "ride_cancelled", offer.ID, offer.Acceptor(), offer.PosterDriverID, actionRelease)
}

// OnMessage reacts to payment_complete messages appended to a conversation.
func (s *SettlementService) OnMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) error {
	if msg.Type != models.MessagePaymentComplete {
		return nil
	}
	if s.policy.PaymentCompleteMode != config.PaymentFare {
		s.metrics.Inc("payment_complete", actionNone)
		s.log.Info().
			Str("offer_id", conv.OfferID).
			Str("conversation_id", conv.ID).
			Msg("payment complete recorded, commission flow has no ledger action")
		return nil
	}
	return s.settle(ctx, "payment_complete", conv.OfferID, conv.ParticipantB, conv.ParticipantA, actionCapture)
}

func (s *SettlementService) settle(ctx context.Context, trigger, offerID, acceptor, poster, action string) error {
	if acceptor == "" {
		// never accepted, so nothing was locked
		s.metrics.Inc(trigger, actionNone)
		return nil
	}

	wallet, err := s.ledger.WalletForDriver(ctx, acceptor)
	if err != nil {
		return err
	}

	switch action {
	case actionCapture:
		err = s.ledger.Capture(ctx, wallet.ID, offerID)
	default:
		err = s.ledger.Release(ctx, wallet.ID, offerID)
	}
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		s.log.Debug().Str("offer_id", offerID).Str("trigger", trigger).Msg("no hold to settle")
		s.metrics.Inc(trigger, actionNone)
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("offer_id", offerID).Str("trigger", trigger).Str("action", action).Msg("settlement failed")
		return err
	}

	s.metrics.Inc(trigger, action)
	s.log.Info().Str("offer_id", offerID).Str("trigger", trigger).Str("action", action).Msg("settlement applied")
	notify(ctx, s.notifier, s.log, models.Notification{
		Kind:         models.NotificationSettlementApplied,
		RecipientIDs: []string{acceptor, poster},
		OfferID:      offerID,
		Data:         map[string]any{"action": action, "trigger": trigger, "wallet_id": wallet.ID},
		OccurredAt:   s.now(),
	})
	return nil
}
