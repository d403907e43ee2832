package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nomadmatch/advice"
	"nomadmatch/auth"
	"nomadmatch/config"
	"nomadmatch/database"
	"nomadmatch/llmclient"
	"nomadmatch/rag"
	"nomadmatch/recommend"
	"nomadmatch/web"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const adviceTemperature = 0.7

func main() {
	grantPremium := pflag.String("grant-premium", "", "grant the premium entitlement to the account with this email and exit")
	revokePremium := pflag.String("revoke-premium", "", "revoke the premium entitlement from the account with this email and exit")
	ingestPath := pflag.String("ingest", "", "ingest a city CSV into the collection and exit")
	pflag.Parse()

	ctx := context.Background()

	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info", "console")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	store, err := database.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx, cfg.EmbeddingDimensions); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}

	if email := firstNonEmpty(*grantPremium, *revokePremium); email != "" {
		if err := setPremium(ctx, store, email, *grantPremium != ""); err != nil {
			logger.Fatal("Failed to update premium entitlement", zap.Error(err), zap.String("email", email))
		}
		logger.Info("Premium entitlement updated", zap.String("email", email), zap.Bool("premium", *grantPremium != ""))
		return
	}

	llm := llmclient.New(cfg, logger)
	embedder := rag.EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		return llm.Embed(ctx, cfg.EmbeddingLLMHost, text)
	})

	cities, err := rag.New(store, embedder, logger, rag.Options{
		CacheSize:               cfg.EmbeddingCacheSize,
		MaxEmbeddingChars:       cfg.MaxEmbeddingChars,
		MaxDescriptionSentences: cfg.MaxDescriptionSentences,
	})
	if err != nil {
		logger.Fatal("Failed to initialize city store", zap.Error(err))
	}

	if *ingestPath != "" {
		result, err := cities.IngestFile(ctx, *ingestPath)
		if err != nil {
			logger.Fatal("Failed to ingest CSV", zap.Error(err), zap.String("path", *ingestPath))
		}
		logger.Info("Ingest finished", zap.Int("processed", result.Processed), zap.Int("skipped", result.Skipped))
		return
	}

	if seeded, err := cities.SeedIfEmpty(ctx, cfg.CitiesCSVPath); err != nil {
		logger.Warn("Failed to seed city collection", zap.Error(err), zap.String("path", cfg.CitiesCSVPath))
	} else if seeded {
		logger.Info("City collection seeded", zap.String("path", cfg.CitiesCSVPath))
	}

	advisor := advice.NewGenerator(llm, advice.Settings{
		Host:            cfg.MainLLMHost,
		Temperature:     adviceTemperature,
		BreakerFailures: cfg.AdviceBreakerFailures,
		BreakerOpenFor:  cfg.AdviceBreakerTimeout,
	}, logger)

	recommender := recommend.NewService(cities, store, advisor, store, logger, recommend.Options{
		DefaultResults: cfg.DefaultResults,
		MaxResults:     cfg.MaxResults,
	})

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = randomSecret()
		logger.Warn("JWT_SECRET is not set; using a random secret, tokens will not survive a restart")
	}
	tokens, err := auth.NewJWTManager(jwtSecret, cfg.TokenTTLHours)
	if err != nil {
		logger.Fatal("Failed to initialize token manager", zap.Error(err))
	}
	accounts := auth.NewService(store, tokens, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cleanupService := web.NewCleanupService(store, logger)
	go web.StartLookupCleanup(ctx, cfg, cleanupService, logger)

	webServer := web.NewServer(web.Dependencies{
		Recommender:   recommender,
		Collection:    cities,
		Lookups:       store,
		Accounts:      accounts,
		Authenticator: accounts,
		DB:            store,
	}, logger, cfg)

	port := fmt.Sprintf(":%d", cfg.WebPort)
	logger.Info("Starting NomadMatch web server", zap.String("port", port))
	if err := webServer.Start(ctx, port); err != nil {
		logger.Error("Web server error", zap.Error(err))
		os.Exit(1)
	}
}

func setPremium(ctx context.Context, store *database.PostgresStore, email string, premium bool) error {
	user, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	return store.SetPremium(ctx, user.ID, premium)
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(buf)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
