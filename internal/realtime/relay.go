package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/ridebroker/backend/internal/models"
)

const defaultChannelPrefix = "rb:conv:"

// RedisRelay carries channel events between server processes over Redis
// pub/sub. Every process publishes through the relay and delivers what it
// receives, its own events included, into its local hub.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	prefix string
	log    zerolog.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, prefix string, log zerolog.Logger) (*RedisRelay, error) {
	if client == nil {
		return nil, errors.New("redis client required for relay")
	}
	if hub == nil {
		return nil, errors.New("hub required for relay")
	}
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisRelay{client: client, hub: hub, prefix: prefix, log: log}, nil
}

func (r *RedisRelay) channel(conversationID string) string {
	return r.prefix + conversationID
}

func (r *RedisRelay) Publish(ctx context.Context, ev models.ChannelEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode channel event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(ev.ConversationID), string(data)).Err(); err != nil {
		return fmt.Errorf("publish channel event: %w", err)
	}
	return nil
}

// Run subscribes to every conversation channel and feeds the hub until ctx
// is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", r.prefix, err)
	}
	r.log.Info().Str("pattern", r.prefix+"*").Msg("channel relay subscribed")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("relay subscription closed")
			}
			r.handle(msg.Channel, msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(channel, payload string) {
	var ev models.ChannelEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		r.log.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable channel event")
		return
	}
	if ev.ConversationID == "" {
		ev.ConversationID = strings.TrimPrefix(channel, r.prefix)
	}
	r.hub.Deliver(ev)
}
