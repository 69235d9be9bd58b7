package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type CompletionPolicy string

const (
	CompletionCapture CompletionPolicy = "capture"
	CompletionRelease CompletionPolicy = "release"
)

type PaymentCompleteMode string

const (
	// PaymentCommission treats payment_complete as informational.
	PaymentCommission PaymentCompleteMode = "commission"
	// PaymentFare captures the escrow when the payment confirms.
	PaymentFare PaymentCompleteMode = "fare"
)

type Config struct {
	Server        ServerConfig
	Log           LogConfig
	JWT           JWTConfig
	Marketplace   MarketplaceConfig
	Settlement    SettlementConfig
	Payments      PaymentsConfig
	Internal      InternalConfig
	Realtime      RealtimeConfig
	Notifications NotificationsConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type JWTConfig struct {
	SecretKey string
}

type MarketplaceConfig struct {
	DefaultLockFraction decimal.Decimal
	MaxOfferTTL         time.Duration
	PendingGrace        time.Duration
	SweepInterval       time.Duration
	SweepBatchSize      int
}

type SettlementConfig struct {
	OnCompletion        CompletionPolicy
	PaymentCompleteMode PaymentCompleteMode
}

type PaymentsConfig struct {
	LinkBaseURL   string
	WebhookSecret string
	DedupeTTL     time.Duration
}

type InternalConfig struct {
	APIKey string
}

type RealtimeConfig struct {
	SendBuffer         int
	PingPeriod         time.Duration
	RedisChannelPrefix string
}

type NotificationsConfig struct {
	Channel string
}

var envBindings = map[string]string{
	"server.port":                       "PORT",
	"log.level":                         "LOG_LEVEL",
	"log.format":                        "LOG_FORMAT",
	"jwt.secret_key":                    "JWT_SECRET_KEY",
	"marketplace.default_lock_fraction": "MARKETPLACE_DEFAULT_LOCK_FRACTION",
	"marketplace.max_offer_ttl":         "MARKETPLACE_MAX_OFFER_TTL",
	"marketplace.pending_grace":         "MARKETPLACE_PENDING_GRACE",
	"marketplace.sweep_interval":        "MARKETPLACE_SWEEP_INTERVAL",
	"marketplace.sweep_batch_size":      "MARKETPLACE_SWEEP_BATCH_SIZE",
	"settlement.on_completion":          "SETTLEMENT_ON_COMPLETION",
	"settlement.payment_complete_mode":  "SETTLEMENT_PAYMENT_COMPLETE_MODE",
	"payments.link_base_url":            "PAYMENTS_LINK_BASE_URL",
	"payments.webhook_secret":           "PAYMENTS_WEBHOOK_SECRET",
	"payments.dedupe_ttl":               "PAYMENTS_DEDUPE_TTL",
	"internal.api_key":                  "INTERNAL_API_KEY",
	"realtime.send_buffer":              "REALTIME_SEND_BUFFER",
	"realtime.ping_period":              "REALTIME_PING_PERIOD",
	"realtime.redis_channel_prefix":     "REALTIME_REDIS_CHANNEL_PREFIX",
	"notifications.channel":             "NOTIFICATIONS_CHANNEL",
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("marketplace.default_lock_fraction", "0.20")
	viper.SetDefault("marketplace.max_offer_ttl", 24*time.Hour)
	viper.SetDefault("marketplace.pending_grace", 30*time.Second)
	viper.SetDefault("marketplace.sweep_interval", 15*time.Second)
	viper.SetDefault("marketplace.sweep_batch_size", 200)
	viper.SetDefault("settlement.on_completion", string(CompletionCapture))
	viper.SetDefault("settlement.payment_complete_mode", string(PaymentCommission))
	viper.SetDefault("payments.link_base_url", "https://pay.ridebroker.local/checkout")
	viper.SetDefault("payments.dedupe_ttl", 72*time.Hour)
	viper.SetDefault("realtime.send_buffer", 64)
	viper.SetDefault("realtime.ping_period", 54*time.Second)
	viper.SetDefault("realtime.redis_channel_prefix", "rb:conv:")
	viper.SetDefault("notifications.channel", "rb:notifications")
}

// BindEnv maps environment variables onto config keys.
func BindEnv() {
	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}
}

// Load reads the typed configuration from viper.
func Load() (*Config, error) {
	setDefaults()
	BindEnv()

	fraction, err := decimal.NewFromString(viper.GetString("marketplace.default_lock_fraction"))
	if err != nil {
		return nil, fmt.Errorf("marketplace.default_lock_fraction: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            viper.GetString("server.port"),
			ReadTimeout:     viper.GetDuration("server.read_timeout"),
			WriteTimeout:    viper.GetDuration("server.write_timeout"),
			ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		},
		Log: LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
		JWT: JWTConfig{
			SecretKey: viper.GetString("jwt.secret_key"),
		},
		Marketplace: MarketplaceConfig{
			DefaultLockFraction: fraction,
			MaxOfferTTL:         viper.GetDuration("marketplace.max_offer_ttl"),
			PendingGrace:        viper.GetDuration("marketplace.pending_grace"),
			SweepInterval:       viper.GetDuration("marketplace.sweep_interval"),
			SweepBatchSize:      viper.GetInt("marketplace.sweep_batch_size"),
		},
		Settlement: SettlementConfig{
			OnCompletion:        CompletionPolicy(strings.ToLower(viper.GetString("settlement.on_completion"))),
			PaymentCompleteMode: PaymentCompleteMode(strings.ToLower(viper.GetString("settlement.payment_complete_mode"))),
		},
		Payments: PaymentsConfig{
			LinkBaseURL:   viper.GetString("payments.link_base_url"),
			WebhookSecret: viper.GetString("payments.webhook_secret"),
			DedupeTTL:     viper.GetDuration("payments.dedupe_ttl"),
		},
		Internal: InternalConfig{
			APIKey: viper.GetString("internal.api_key"),
		},
		Realtime: RealtimeConfig{
			SendBuffer:         viper.GetInt("realtime.send_buffer"),
			PingPeriod:         viper.GetDuration("realtime.ping_period"),
			RedisChannelPrefix: viper.GetString("realtime.redis_channel_prefix"),
		},
		Notifications: NotificationsConfig{
			Channel: viper.GetString("notifications.channel"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !ValidLockFraction(c.Marketplace.DefaultLockFraction) {
		return fmt.Errorf("marketplace.default_lock_fraction must be in (0, 1], got %s", c.Marketplace.DefaultLockFraction)
	}
	if c.Marketplace.PendingGrace <= 0 {
		return fmt.Errorf("marketplace.pending_grace must be positive")
	}
	if c.Marketplace.SweepInterval <= 0 {
		return fmt.Errorf("marketplace.sweep_interval must be positive")
	}
	switch c.Settlement.OnCompletion {
	case CompletionCapture, CompletionRelease:
	default:
		return fmt.Errorf("settlement.on_completion must be capture or release, got %q", c.Settlement.OnCompletion)
	}
	switch c.Settlement.PaymentCompleteMode {
	case PaymentCommission, PaymentFare:
	default:
		return fmt.Errorf("settlement.payment_complete_mode must be commission or fare, got %q", c.Settlement.PaymentCompleteMode)
	}
	return nil
}

func ValidLockFraction(f decimal.Decimal) bool {
	return f.IsPositive() && f.LessThanOrEqual(decimal.NewFromInt(1))
}
