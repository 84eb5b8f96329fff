package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/campuspass/access-server-go/internal/config"
	"github.com/campuspass/access-server-go/internal/database"
	"github.com/campuspass/access-server-go/internal/handler"
	"github.com/campuspass/access-server-go/internal/jobs"
	"github.com/campuspass/access-server-go/internal/middleware"
	"github.com/campuspass/access-server-go/internal/redis"
	"github.com/campuspass/access-server-go/internal/repository"
	"github.com/campuspass/access-server-go/internal/service"
	"github.com/campuspass/access-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	identityRepo := repository.NewIdentityRepository(db.DB)
	vehicleRepo := repository.NewVehicleRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	credentialRepo := repository.NewCredentialRepository(db.DB)
	operatorRepo := repository.NewOperatorRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	transitionService := service.NewTransitionService(db, identityRepo, vehicleRepo, sessionRepo, credentialRepo)
	credentialService := service.NewCredentialService(
		credentialRepo, identityRepo, transitionService, broker, cfg.CredentialTTL(),
	)
	alertService := service.NewAlertService(sessionRepo, broker, cfg.AlertThreshold())

	authMiddleware := middleware.NewAuthMiddleware(operatorRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	accessHandler := handler.NewAccessHandler(transitionService)
	credentialHandler := handler.NewCredentialHandler(credentialService)
	alertHandler := handler.NewAlertHandler(alertService)
	eventsHandler := handler.NewEventsHandler(broker)
	sessionHandler := handler.NewSessionHandler(sessionRepo, identityRepo)
	identityHandler := handler.NewIdentityHandler(identityRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		r.Mount("/access", accessHandler.Routes())
		r.Mount("/credentials", credentialHandler.Routes())
		r.Mount("/sessions", sessionHandler.Routes())
		r.Mount("/identities", identityHandler.Routes())

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/events", eventsHandler.ServeHTTP)
			r.Mount("/", alertHandler.Routes())
		})
	})

	expiryJob := jobs.NewExpiryJob(credentialRepo, credentialService, cfg.SweepInterval())
	expiryJob.Start()
	defer expiryJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
