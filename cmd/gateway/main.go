package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chaicafe/modelgate/internal/gateway/catalog"
	"github.com/chaicafe/modelgate/internal/gateway/governance"
	"github.com/chaicafe/modelgate/internal/gateway/handlers"
	"github.com/chaicafe/modelgate/internal/gateway/metrics"
	"github.com/chaicafe/modelgate/internal/gateway/providers"
	"github.com/chaicafe/modelgate/internal/shared/clock"
	"github.com/chaicafe/modelgate/internal/shared/config"
	"github.com/chaicafe/modelgate/internal/shared/database"
	"github.com/chaicafe/modelgate/internal/shared/redis"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting modelgate")

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Initialize Redis
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to Redis")

	// Metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Aggregator catalog with read-through cache
	cat := catalog.New(db, redisClient, time.Duration(cfg.CatalogTTLSeconds)*time.Second, log)

	// Provider routing and dispatch
	resolver := providers.NewResolver(cat)
	dispatcher := providers.NewDispatcher(
		providers.NewLocal(cfg.LocalBaseURL),
		providers.NewOpenAICompat(endpointRoutes(cfg)),
		providers.NewGoogle(cfg.GeminiAPIKey),
		providers.NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterReferer, cfg.OpenRouterTitle),
	)
	probe := providers.NewProbe(cfg.LocalBaseURL)

	// Governance pipeline
	guard := governance.NewGuard(db, log)
	ledger := governance.NewLedger(db, clock.Real{}, log)
	governor := governance.NewGovernor(
		db, guard, ledger, resolver, dispatcher, probe,
		cfg.LocalModel, cfg.DefaultHostedModel, m, log,
	)

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(governor)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(handlers.RequestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Post("/completions", chatHandler.HandleCompletion)
	r.Get("/models", chatHandler.HandleListModels)
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/model", chatHandler.HandleGetModel)
		r.Put("/model", chatHandler.HandleSetModel)
	})

	// HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}

func endpointRoutes(cfg *config.Config) []providers.EndpointRoute {
	routes := make([]providers.EndpointRoute, 0, len(cfg.OpenAIRoutes))
	for _, r := range cfg.OpenAIRoutes {
		routes = append(routes, providers.EndpointRoute{
			Matcher: r.Matcher,
			BaseURL: r.BaseURL,
			APIKey:  r.APIKey,
		})
	}
	return routes
}
