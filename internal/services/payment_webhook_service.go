package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/models"
)

// PaymentCompleteRequest is the body the payment collaborator posts.
type PaymentCompleteRequest struct {
	OfferID     string `json:"offer_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"gt=0"`
	ExternalRef string `json:"external_ref" validate:"required,max=128"`
}

// paymentClaimTTL bounds how long an unfinished delivery blocks retries of
// the same reference. A crash between claim and append frees it after this.
const paymentClaimTTL = time.Minute

const claimProcessing = "processing"

// PaymentInjector appends system payment confirmations to a conversation.
type PaymentInjector interface {
	InjectPaymentComplete(ctx context.Context, offerID string, amount int64, externalRef string) (*models.Message, error)
}

// PaymentWebhookService authenticates payment confirmations and forwards
// each external reference to the negotiation channel once.
type PaymentWebhookService struct {
	injector PaymentInjector
	redis    *redis.Client
	secret   []byte
	ttl      time.Duration
	validate *ValidationHelper
	log      zerolog.Logger
}

func NewPaymentWebhookService(injector PaymentInjector, redisClient *redis.Client, secret string, dedupeTTL time.Duration, log zerolog.Logger) *PaymentWebhookService {
	if dedupeTTL <= 0 {
		dedupeTTL = 72 * time.Hour
	}
	return &PaymentWebhookService{
		injector: injector,
		redis:    redisClient,
		secret:   []byte(secret),
		ttl:      dedupeTTL,
		validate: NewValidationHelper(),
		log:      log,
	}
}

// Sign returns the hex HMAC-SHA256 of body under the webhook secret.
func (s *PaymentWebhookService) Sign(body []byte) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *PaymentWebhookService) VerifySignature(body []byte, signature string) error {
	if len(s.secret) == 0 {
		return apperrors.New(apperrors.CodeInternal, "webhook secret not configured")
	}
	expected, err := hex.DecodeString(s.Sign(body))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "compute signature")
	}
	given, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(expected, given) {
		return apperrors.New(apperrors.CodeUnauthorized, "signature mismatch")
	}
	return nil
}

// Handle verifies, decodes and applies one webhook delivery. The boolean is
// true when the external reference was already processed. A delivery that
// overlaps an unfinished one for the same reference gets a transient error.
func (s *PaymentWebhookService) Handle(ctx context.Context, body []byte, signature string) (*models.Message, bool, error) {
	if err := s.VerifySignature(body, signature); err != nil {
		return nil, false, err
	}

	var req PaymentCompleteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeValidation, err, "invalid webhook body")
	}
	if err := s.validate.ValidateStruct(req); err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeValidation, err, "invalid webhook body")
	}

	claimed, err := s.claim(ctx, req.ExternalRef)
	if err != nil {
		return nil, false, err
	}
	if !claimed {
		if s.inFlight(ctx, req.ExternalRef) {
			return nil, false, apperrors.New(apperrors.CodeTransient, "payment reference is being processed, retry later")
		}
		s.log.Info().Str("external_ref", req.ExternalRef).Str("offer_id", req.OfferID).Msg("duplicate payment confirmation ignored")
		return nil, true, nil
	}

	msg, err := s.injector.InjectPaymentComplete(ctx, req.OfferID, req.Amount, req.ExternalRef)
	if err != nil {
		s.forget(ctx, req.ExternalRef)
		return nil, false, err
	}
	s.confirm(ctx, req.ExternalRef, req.OfferID)
	s.log.Info().
		Str("external_ref", req.ExternalRef).
		Str("offer_id", req.OfferID).
		Int64("amount", req.Amount).
		Int64("seq", msg.Seq).
		Msg("payment confirmation recorded")
	return msg, false, nil
}

func dedupeKey(externalRef string) string {
	return fmt.Sprintf("rb:payment:%s", externalRef)
}

// claim marks the reference as processing for paymentClaimTTL. confirm
// replaces the marker with the offer id for the full dedupe window once the
// message is appended.
func (s *PaymentWebhookService) claim(ctx context.Context, externalRef string) (bool, error) {
	if s.redis == nil {
		return true, nil
	}
	ok, err := s.redis.SetNX(ctx, dedupeKey(externalRef), claimProcessing, paymentClaimTTL).Result()
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeTransient, err, "claim payment reference")
	}
	return ok, nil
}

func (s *PaymentWebhookService) inFlight(ctx context.Context, externalRef string) bool {
	val, err := s.redis.Get(ctx, dedupeKey(externalRef)).Result()
	if err == redis.Nil {
		// claim expired between SETNX and GET; let the sender retry
		return true
	}
	if err != nil {
		s.log.Warn().Err(err).Str("external_ref", externalRef).Msg("failed to read payment reference claim")
		return true
	}
	return val == claimProcessing
}

func (s *PaymentWebhookService) confirm(ctx context.Context, externalRef, offerID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.SetXX(context.WithoutCancel(ctx), dedupeKey(externalRef), offerID, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("external_ref", externalRef).Msg("failed to extend payment reference claim")
	}
}

func (s *PaymentWebhookService) forget(ctx context.Context, externalRef string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(context.WithoutCancel(ctx), dedupeKey(externalRef)).Err(); err != nil {
		s.log.Warn().Err(err).Str("external_ref", externalRef).Msg("failed to clear payment reference claim")
	}
}
