package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"jobgate/internal/api"
	"jobgate/internal/community"
	"jobgate/internal/config"
	"jobgate/internal/favorites"
	"jobgate/internal/matchscore"
	"jobgate/internal/session"
	"jobgate/internal/tracker"
	"jobgate/internal/upstream"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	log.Printf("api bootstrapped with upstream=%s redis=%s", cfg.Upstream.BaseURL, cfg.Redis.Addr())

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}
	log.Printf("redis connection ready")

	verifier, err := session.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatalf("init token verifier: %v", err)
	}

	upstreamClient := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout(), logger)

	directory := community.NewDirectory(upstreamClient, logger)
	// 启动时预热一次；失败不阻塞启动，目录端点会按需重试。
	if err := directory.Refresh(context.Background()); err != nil {
		logger.Warn("initial community directory refresh failed", slog.Any("error", err))
	}
	if err := directory.StartRefresh(cfg.Directory.RefreshHours); err != nil {
		log.Fatalf("start directory refresh: %v", err)
	}
	defer directory.Stop()

	favoriteStore := favorites.NewStore(redisClient)
	applyTracker := tracker.New(upstreamClient, favoriteStore)
	orchestrator := matchscore.New(upstreamClient, logger)

	router := api.NewRouter(logger)
	api.RegisterRoutes(
		router,
		verifier,
		api.NewJobHandler(upstreamClient, orchestrator, applyTracker, favoriteStore),
		api.NewCommunityHandler(directory),
	)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
