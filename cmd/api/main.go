package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/nl2sql-api/internal/config"
	"github.com/noah-isme/nl2sql-api/internal/database"
	"github.com/noah-isme/nl2sql-api/internal/evaluation"
	"github.com/noah-isme/nl2sql-api/internal/generation"
	"github.com/noah-isme/nl2sql-api/internal/grammar"
	"github.com/noah-isme/nl2sql-api/internal/handler"
	"github.com/noah-isme/nl2sql-api/internal/middleware"
	"github.com/noah-isme/nl2sql-api/internal/models"
	"github.com/noah-isme/nl2sql-api/internal/repository"
	"github.com/noah-isme/nl2sql-api/internal/router"
	"github.com/noah-isme/nl2sql-api/internal/service"
	"github.com/noah-isme/nl2sql-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	for _, problem := range cfg.Validate() {
		logger.Warn().Str("problem", problem).Msg("configuration incomplete")
	}
	logger.Info().Fields(cfg.Summary()).Msg("configuration loaded")

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = database.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := db.AutoMigrate(&models.EvaluationRun{}, &models.EvaluationCase{}); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
	}

	var analyticsDB *gorm.DB
	if cfg.AnalyticsURL != "" {
		analyticsDB, err = database.ConnectAnalytics(cfg.AnalyticsURL)
		if err != nil {
			log.Fatalf("failed to connect to analytics database: %v", err)
		}
		logger.Info().Str("dialect", analyticsDB.Dialector.Name()).Msg("analytics database connected")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var publisher service.ProgressPublisher
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		publisher = natsConn
	}

	var generator ai.Generator
	if cfg.OpenAIAPIKey != "" {
		if cfg.OpenAIAPI == config.OpenAIChatAPI {
			logger.Warn().Msg("chat completions cannot enforce the grammar; generated queries are prompt-constrained only")
		}
		generator, err = ai.NewGenerator(cfg.OpenAIAPI, openAIConfig(cfg, logger))
		if err != nil {
			log.Fatalf("failed to create generator: %v", err)
		}
	}

	policy := generation.DefaultClarificationPolicy()
	if len(cfg.ClarificationWords) > 0 {
		policy = generation.NewClarificationPolicy(cfg.ClarificationWords...)
	}
	orchestrator := generation.NewOrchestrator(generator, grammar.ClickHouse, policy, logger)

	corpus := evaluation.DefaultCorpus()
	if cfg.CorpusPath != "" {
		corpus, err = evaluation.LoadCorpus(cfg.CorpusPath)
		if err != nil {
			log.Fatalf("failed to load evaluation corpus: %v", err)
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	executor := database.NewExecutor(analyticsDB, logger)

	var evaluationRepo repository.EvaluationRepository
	if db != nil {
		evaluationRepo = repository.NewEvaluationRepository(db)
	}

	queryService := service.NewQueryService(orchestrator, executor, redisClient, cfg.QueryCacheTTL, validate, logger)
	evaluationService := service.NewEvaluationService(evaluation.NewHarness(orchestrator, corpus, logger), service.EvaluationServiceConfig{
		Repository:  evaluationRepo,
		Publisher:   publisher,
		ChannelBase: cfg.ChannelBase,
		Model:       cfg.OpenAIModel,
		Timeout:     cfg.EvaluationTimeout,
	}, logger)
	diagnosticsService := service.NewDiagnosticsService(orchestrator, executor, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		Grammar:            orchestrator.Grammar(),
		Diagnostics:        diagnosticsService,
		QueryHandler:       handler.NewQueryHandler(queryService, validate, logger),
		EvaluationHandler:  handler.NewEvaluationHandler(evaluationService, validate, logger),
		DiagnosticsHandler: handler.NewDiagnosticsHandler(diagnosticsService, logger),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}

func openAIConfig(cfg config.Config, logger zerolog.Logger) ai.OpenAIConfig {
	return ai.OpenAIConfig{
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.OpenAIModel,
		BaseURL:   cfg.OpenAIBaseURL,
		MaxTokens: cfg.OpenAIMaxTokens,
		Timeout:   cfg.GenerationTimeout,
		Logger:    logger,
	}
}
