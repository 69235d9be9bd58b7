package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ridebroker/backend/docs"
	"github.com/ridebroker/backend/internal/audit"
	"github.com/ridebroker/backend/internal/config"
	"github.com/ridebroker/backend/internal/database"
	"github.com/ridebroker/backend/internal/logger"
	"github.com/ridebroker/backend/internal/metrics"
	"github.com/ridebroker/backend/internal/paymentlink"
	"github.com/ridebroker/backend/internal/realtime"
	"github.com/ridebroker/backend/internal/services"
)

// @title RideBroker Backend API
// @version 1.0
// @description Ride-offer marketplace between drivers: escrowed acceptance, negotiation channel and settlement.
// @host localhost:8080
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey InternalKey
// @in header
// @name X-Internal-Key

const sweepLockKey = "rb:lock:offer-sweep"

func main() {
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	configErr := viper.ReadInConfig()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "ridebroker-api",
	})
	if configErr != nil {
		log.Info().Err(configErr).Msg("config file not found, using environment and defaults")
	}
	if cfg.JWT.SecretKey == "" {
		log.Fatal().Msg("jwt.secret_key is required")
	}

	docs.SwaggerInfo.Host = viper.GetString("swagger.host")
	if docs.SwaggerInfo.Host == "" {
		docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.GetConfig(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	redisClient := database.InitRedis(ctx, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := buildApp(cfg, db, redisClient, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire services")
	}

	go func() {
		if err := app.sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("offer sweeper stopped")
		}
	}()
	if app.relay != nil {
		go runRelay(ctx, app.relay, logger.Component(log, "relay"))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newRouter(ctx, cfg, app, registry, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server stopped")
}

// runRelay keeps the cross-process relay subscribed, reconnecting with a
// short backoff until ctx ends.
func runRelay(ctx context.Context, relay *realtime.RedisRelay, log zerolog.Logger) {
	backoff := time.Second
	for {
		err := relay.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("channel relay dropped")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

type app struct {
	ledger      *services.WalletLedgerService
	lifecycle   *services.LifecycleService
	acceptance  *services.AcceptanceService
	negotiation *services.NegotiationService
	webhook     *services.PaymentWebhookService
	sweeper     *services.OfferSweeper
	hub         *realtime.Hub
	relay       *realtime.RedisRelay
}

func buildApp(cfg *config.Config, db *sql.DB, redisClient *redis.Client, reg prometheus.Registerer, log zerolog.Logger) (*app, error) {
	links, err := paymentlink.NewGenerator(cfg.Payments.LinkBaseURL)
	if err != nil {
		return nil, err
	}

	channelMetrics := metrics.NewChannelMetrics(reg)
	hub := realtime.NewHub(cfg.Realtime.SendBuffer, channelMetrics, logger.Component(log, "hub"))

	var (
		broadcaster services.Broadcaster = hub
		relay       *realtime.RedisRelay
		sweepLock   services.SweepLock
	)
	if redisClient != nil {
		relay, err = realtime.NewRedisRelay(redisClient, hub, cfg.Realtime.RedisChannelPrefix, logger.Component(log, "relay"))
		if err != nil {
			return nil, err
		}
		broadcaster = relay

		lock, err := services.NewRedisSweepLock(redisClient, sweepLockKey, 2*cfg.Marketplace.SweepInterval)
		if err != nil {
			return nil, err
		}
		sweepLock = lock
	}

	ledger := services.NewWalletLedgerService(db, audit.NewLogger(log), log)
	offers := services.NewOfferRepository(db)
	conversations := services.NewConversationRepository(db)
	notifier := services.NewNotifier(redisClient, cfg.Notifications.Channel, logger.Component(log, "notifier"))

	settlement := services.NewSettlementService(ledger, cfg.Settlement, notifier, metrics.NewSettlementMetrics(reg), logger.Component(log, "settlement"))
	lifecycle := services.NewLifecycleService(offers, settlement, cfg.Marketplace, logger.Component(log, "lifecycle"))
	acceptance := services.NewAcceptanceService(offers, ledger, notifier, metrics.NewAcceptanceMetrics(reg), logger.Component(log, "acceptance"))
	negotiation := services.NewNegotiationService(conversations, broadcaster, notifier, links, channelMetrics, logger.Component(log, "negotiation"))
	negotiation.AddObserver(settlement)

	webhook := services.NewPaymentWebhookService(negotiation, redisClient, cfg.Payments.WebhookSecret, cfg.Payments.DedupeTTL, logger.Component(log, "payments"))
	sweeper := services.NewOfferSweeper(offers, ledger, sweepLock, metrics.NewJobMetrics(reg), cfg.Marketplace, logger.Component(log, "sweeper"))

	return &app{
		ledger:      ledger,
		lifecycle:   lifecycle,
		acceptance:  acceptance,
		negotiation: negotiation,
		webhook:     webhook,
		sweeper:     sweeper,
		hub:         hub,
		relay:       relay,
	}, nil
}
