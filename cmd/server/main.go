package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/synk/synk-server-go/internal/config"
	"github.com/synk/synk-server-go/internal/database"
	"github.com/synk/synk-server-go/internal/gateway"
	"github.com/synk/synk-server-go/internal/handler"
	"github.com/synk/synk-server-go/internal/jobs"
	"github.com/synk/synk-server-go/internal/middleware"
	"github.com/synk/synk-server-go/internal/redis"
	"github.com/synk/synk-server-go/internal/repository"
	"github.com/synk/synk-server-go/internal/service"
)

type repositories struct {
	accounts repository.AccountRepository
	codes    repository.PairingCodeRepository
	pairs    repository.PairRepository
}

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

	var (
		repos repositories
		db    *database.DB
	)
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		db, err = database.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		log.Info().Msg("database connected")

		if cfg.RunMigrations {
			if err := db.Migrate(); err != nil {
				log.Fatal().Err(err).Msg("failed to apply migrations")
			}
		}

		repos = repositories{
			accounts: repository.NewAccountRepository(db.DB),
			codes:    repository.NewPairingCodeRepository(db.DB),
			pairs:    repository.NewPairRepository(db),
		}

	case config.StoreBackendMemory:
		store := repository.NewMemoryStore()
		repos = repositories{
			accounts: store.Accounts(),
			codes:    store.PairingCodes(),
			pairs:    store.Pairs(),
		}
		log.Info().Msg("using in-memory store")
	}

	hub := gateway.NewHub(gateway.OptionsFromConfig(cfg))

	var partnerCache *service.PartnerCache
	if cfg.PartnerCacheTTL > 0 {
		partnerCache = service.NewPartnerCache(cfg.PartnerCacheSize, cfg.PartnerCacheTTL)
	}

	pairingService := service.NewPairingService(
		repos.codes, repos.pairs, repos.accounts, hub, partnerCache, cfg.PairingCodeTTL,
	)
	broadcaster := service.NewBroadcaster(pairingService, hub)
	tokenService := service.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL)
	accountService := service.NewAccountService(repos.accounts, pairingService, broadcaster, tokenService)

	authMiddleware := middleware.NewAuthMiddleware(tokenService, repos.accounts)

	var rateLimitMiddleware *middleware.RateLimitMiddleware
	if cfg.RateLimitEnabled {
		var limiter middleware.Limiter = middleware.NewMemoryRateLimiter(cfg.RateLimitMaxKeys)
		if cfg.RedisURL != "" {
			redisClient, err := redis.NewClient(context.Background(), cfg.RedisURL)
			if err != nil {
				log.Warn().Err(err).Msg("redis unavailable, using in-memory rate limiter")
			} else {
				defer redisClient.Close()
				limiter = middleware.NewRedisRateLimiter(redisClient.Client)
				log.Info().Msg("redis connected")
			}
		}
		rateLimitMiddleware = middleware.NewRateLimitMiddleware(limiter, middleware.DefaultRateLimitPolicy(cfg))
	} else {
		log.Warn().Msg("rate limiting disabled")
	}

	deps := handler.RouterDeps{
		Config:    cfg,
		Accounts:  accountService,
		Pairing:   pairingService,
		Hub:       hub,
		Auth:      authMiddleware,
		RateLimit: rateLimitMiddleware,
	}
	if db != nil {
		deps.DB = db
	}
	r := handler.NewRouter(deps)

	cleanupJob := jobs.NewCleanupJob(repos.codes, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

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

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Close()

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
