package main

import (
	"database/sql"
	"fmt"
	"net/http"

	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"keygate/internal/api"
	"keygate/internal/api/handlers"
	"keygate/internal/api/middleware"
	"keygate/internal/gate"
	"keygate/internal/pkg/logger"
	"keygate/internal/pkg/secrets"
	"keygate/internal/platform/auth"
	"keygate/internal/platform/config"
	"keygate/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := sql.Open("sqlite3", cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	if cfg.Database.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxConnections)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	keyRepo := repositories.NewAPIKeyRepository(db)

	// Gating core
	codec := secrets.NewCodec(cfg.APIKeys.HashSecret, cfg.APIKeys.Prefix)
	tokenSvc := auth.NewTokenService(cfg.JWT)
	policy := gate.NewPolicy(cfg.Tiers)
	limiter := gate.NewRedisLimiter(redisClient, cfg.RateLimit)
	resolver := gate.NewResolver(codec, keyRepo, userRepo, tokenSvc, policy)
	requestGate := gate.New(resolver, policy, limiter)

	// Handlers
	deps := &api.Dependencies{
		AuthHandler:     handlers.NewAuthHandler(userRepo, orgRepo, tokenSvc),
		APIKeyHandler:   handlers.NewAPIKeyHandler(keyRepo, codec, policy),
		GenerateHandler: handlers.NewGenerateHandler(),
		AdminHandler:    handlers.NewAdminHandler(keyRepo),
		HealthHandler:   handlers.NewHealthHandler(db, redisClient),
		GateMiddleware:  middleware.NewGateMiddleware(requestGate),
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info().Str("addr", server.Addr).Msg("server starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
