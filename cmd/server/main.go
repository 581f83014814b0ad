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

	"github.com/craftbooks/portal-server/internal/audit"
	"github.com/craftbooks/portal-server/internal/config"
	"github.com/craftbooks/portal-server/internal/database"
	"github.com/craftbooks/portal-server/internal/handler"
	"github.com/craftbooks/portal-server/internal/middleware"
	"github.com/craftbooks/portal-server/internal/redis"
	"github.com/craftbooks/portal-server/internal/repository"
	"github.com/craftbooks/portal-server/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("ENVIRONMENT") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

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

	clientRepo := repository.NewClientRepository(db.DB)
	identityRepo := repository.NewIdentityRepository(db.DB)
	inviteRepo := repository.NewInviteRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	auditRepo := repository.NewAuditEventRepository(db.DB)
	documentRepo := repository.NewDocumentRepository(db.DB)
	contractRepo := repository.NewContractRepository(db.DB)
	signatureRepo := repository.NewSignatureRepository(db.DB)

	recorder := audit.NewRecorder(auditRepo, clientRepo)
	limiter := service.NewRateLimiter(redisClient.Client)

	identityService := service.NewIdentityService(db, identityRepo, clientRepo, sessionRepo, recorder)
	sessionService := service.NewSessionService(db, sessionRepo, identityRepo, clientRepo, recorder, cfg.SessionTTL())
	inviteService := service.NewInviteService(db, inviteRepo, clientRepo, identityService, sessionService, recorder, cfg.InviteTTL())
	actionService := service.NewPortalActionService(db, documentRepo, contractRepo, signatureRepo, clientRepo, recorder, cfg.ConsentVersion)
	previewSeeder := service.NewPreviewSeeder(cfg.PreviewSeedURL, cfg.PreviewSeedSecret)

	sessionMiddleware := middleware.NewSessionMiddleware(sessionService)
	staffMiddleware := middleware.NewStaffMiddleware(cfg.StaffKeyHash)
	rateLimitMiddleware := middleware.NewExchangeRateLimitMiddleware(limiter)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	portalHandler := handler.NewPortalHandler(
		inviteService, sessionService, actionService, sessionMiddleware, rateLimitMiddleware,
	)
	staffHandler := handler.NewStaffHandler(
		identityService, inviteService, sessionService, recorder, limiter, previewSeeder,
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/portal", func(r chi.Router) {
		r.Mount("/", portalHandler.Routes())
	})

	r.Route("/staff", func(r chi.Router) {
		r.Use(staffMiddleware.Handler)
		r.Mount("/", staffHandler.Routes())
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
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
