package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/models"
)

// Notifier hands events to the push-delivery collaborator. Delivery is
// best effort; callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// RedisNotifier publishes notifications as JSON on a Redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

// NewNotifier returns a Redis-backed notifier, or a log-only one when Redis is unavailable.
func NewNotifier(client *redis.Client, channel string, log zerolog.Logger) Notifier {
	if client == nil {
		return LogNotifier{log: log}
	}
	return &RedisNotifier{client: client, channel: channel, log: log}
}

func (n *RedisNotifier) Notify(ctx context.Context, note models.Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s notification: %w", note.Kind, err)
	}
	return nil
}

// LogNotifier only records notifications.
type LogNotifier struct {
	log zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, note models.Notification) error {
	n.log.Info().
		Str("kind", string(note.Kind)).
		Strs("recipients", note.RecipientIDs).
		Str("offer_id", note.OfferID).
		Msg("notification")
	return nil
}

func notify(ctx context.Context, notifier Notifier, log zerolog.Logger, note models.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, note); err != nil {
		log.Warn().Err(err).Str("kind", string(note.Kind)).Str("offer_id", note.OfferID).Msg("notification delivery failed")
	}
}
