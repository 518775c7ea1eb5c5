package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/selveresta/projectQuestBot/handlers"
	"github.com/selveresta/projectQuestBot/logger"
	"github.com/selveresta/projectQuestBot/models"
	"github.com/selveresta/projectQuestBot/services"
	"github.com/selveresta/projectQuestBot/workers"
)

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.Fatal("invalid numeric environment variable",
			zap.String("key", key), zap.String("value", raw))
	}
	return value
}

func main() {
	if err := godotenv.Load(); err != nil {
		// Not fatal: containerized deployments pass the environment directly.
		logger.Initialize()
		logger.Info("no .env file found, reading environment variables directly")
	} else {
		logger.Initialize()
	}
	defer logger.Sync()

	store, err := services.NewRedisStore(envOr("REDIS_ADDR", "127.0.0.1:6379"))
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer store.Close()

	catalog, err := models.LoadQuestCatalog(os.Getenv("QUEST_CATALOG_FILE"))
	if err != nil {
		logger.Fatal("failed to load quest catalog", zap.Error(err))
	}

	participantService := services.NewParticipantService(
		store, catalog, envInt64Or("REFERRAL_BONUS_POINTS", 25))
	rankService := services.NewRankService(participantService)
	winnerService := services.NewWinnerService(store, participantService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The fetch queue serializes every profile-count read behind one worker:
	// the count scripts share a single browser session.
	fetcher := workers.NewScriptProfileFetcher(
		envOr("X_COUNT_SCRIPT", "./scripts/x_count.js"),
		envOr("INSTAGRAM_COUNT_SCRIPT", "./scripts/inst_count.js"),
	)
	fetchQueue := workers.StartFetchQueue(ctx, fetcher)
	verifyWait := time.Duration(envInt64Or("SOCIAL_VERIFY_WAIT_MS", 4000)) * time.Millisecond
	followVerifier := services.NewFollowVerifier(store, participantService, fetchQueue, verifyWait)
	challengeService := services.NewChallengeService()

	// Exactly one consumer may long-poll the chat platform; a second copy of
	// this process must exit before touching any updates.
	pollingLock := services.NewPollingLock(store)
	if err := pollingLock.Acquire(ctx); err != nil {
		logger.Fatal("could not acquire polling lock", zap.Error(err))
	}
	defer pollingLock.Release(context.Background())

	statsInterval := time.Duration(envInt64Or("STATS_INTERVAL_MINUTES", 10)) * time.Minute
	scheduler, err := services.StartStatsScheduler(participantService, statsInterval)
	if err != nil {
		logger.Fatal("failed to start stats scheduler", zap.Error(err))
	}
	defer func() { _ = scheduler.Shutdown() }()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handlers.SetupStatusRoutes(app, participantService, rankService, winnerService)
	handlers.SetupParticipantRoutes(app, participantService, challengeService, followVerifier,
		winnerService, int(envInt64Or("CHALLENGE_RETRIES", 3)))

	listenAddr := envOr("OPS_LISTEN_ADDR", ":5300")
	go func() {
		if err := app.Listen(listenAddr); err != nil {
			logger.Error("ops API server stopped", zap.Error(err))
		}
	}()

	logger.Info("✅ giveaway ledger running",
		zap.String("ops_api", listenAddr),
		zap.Int("quests", len(catalog.Definitions)))

	<-ctx.Done()
	logger.Info("shutting down")
	_ = app.Shutdown()
}
