package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/ridebroker/backend/internal/config"
	"github.com/ridebroker/backend/internal/handlers"
	"github.com/ridebroker/backend/internal/logger"
	mW "github.com/ridebroker/backend/internal/middleware"
	"github.com/ridebroker/backend/internal/services"
)

func newRouter(ctx context.Context, cfg *config.Config, a *app, reg *prometheus.Registry, log zerolog.Logger) http.Handler {
	auth := mW.NewAuth(cfg.JWT.SecretKey, logger.Component(log, "auth"))
	offerHandler := handlers.NewOfferHandler(a.lifecycle, a.acceptance, a.negotiation)
	walletHandler := handlers.NewWalletHandler(a.ledger)
	conversationHandler := handlers.NewConversationHandler(ctx, a.negotiation, a.hub, cfg.Realtime.PingPeriod, logger.Component(log, "ws"))
	internalHandler := handlers.NewInternalHandler(a.webhook, a.lifecycle, a.ledger, logger.Component(log, "internal"))

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.SecurityHeaders)
	r.Use(mW.RequestLogger(logger.Component(log, "http")))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		services.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Driver)

		// Long-lived; kept outside the request timeout.
		r.Get("/conversations/{conversationId}/ws", conversationHandler.Subscribe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Post("/offers", offerHandler.CreateOffer)
			r.Get("/offers", offerHandler.ListOffers)
			r.Get("/offers/{offerId}", offerHandler.GetOffer)
			r.Post("/offers/{offerId}/accept", offerHandler.AcceptOffer)
			r.Post("/offers/{offerId}/cancel", offerHandler.CancelOffer)
			r.Get("/offers/{offerId}/conversation", offerHandler.OfferConversation)

			r.Get("/wallet", walletHandler.GetWallet)
			r.Get("/wallet/movements", walletHandler.ListMovements)

			r.Get("/conversations/{conversationId}/messages", conversationHandler.History)
			r.Post("/conversations/{conversationId}/messages", conversationHandler.SendMessage)
			r.Post("/conversations/{conversationId}/read", conversationHandler.MarkRead)
			r.Post("/conversations/{conversationId}/typing", conversationHandler.Typing)
			r.Post("/conversations/{conversationId}/payment-link", conversationHandler.PaymentLink)
		})
	})

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(mW.InternalKey(cfg.Internal.APIKey, logger.Component(log, "internal-auth")))
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/payments/webhook", internalHandler.PaymentWebhook)
		r.Post("/rides/{offerId}/started", internalHandler.RideStarted)
		r.Post("/rides/{offerId}/completed", internalHandler.RideCompleted)
		r.Post("/rides/{offerId}/cancelled", internalHandler.RideCancelled)
		r.Post("/wallets/{driverId}/credit", internalHandler.CreditWallet)
		r.Post("/wallets/{driverId}/debit", internalHandler.DebitWallet)
	})

	return r
}
