package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lessonforge/api/internal/analytics"
	"github.com/lessonforge/api/internal/auth"
	"github.com/lessonforge/api/internal/client"
	"github.com/lessonforge/api/internal/config"
	"github.com/lessonforge/api/internal/handler"
	"github.com/lessonforge/api/internal/library"
	"github.com/lessonforge/api/internal/log"
	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/middleware"
	"github.com/lessonforge/api/internal/server"
	"github.com/lessonforge/api/internal/service"
	"github.com/lessonforge/api/internal/store"
	"github.com/lessonforge/api/internal/timing"
	ws "github.com/lessonforge/api/internal/websocket"
	"github.com/lessonforge/api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		base := log.Base()
		base.Fatal().Err(err).Msg("failed to load config")
	}
	log.Configure(log.Config{Level: cfg.Server.LogLevel, Service: "lessonforge-api"})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis not available")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	records, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open generation store")
	}
	defer records.Close()

	validate := validator.New()
	manifestValidator := manifest.NewValidator(cfg.Validation)
	analyzer := timing.NewAnalyzer(cfg.Timing)

	lib, err := library.Load(cfg.Library.Dir, manifestValidator, cfg.Validation)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load starter library")
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	// External clients
	rendererClient := client.NewRendererClient(&cfg.Renderer)
	speechClient := client.NewSpeechClient(&cfg.Speech)

	// R2 is optional; manifests are archived in memory without it
	var archive client.ObjectStore
	r2Configured := false
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			logger.Warn().Err(err).Msg("R2 client not initialized")
		} else {
			archive = r2Client
			r2Configured = true
		}
	}
	if archive == nil {
		logger.Info().Msg("R2 storage not configured, archiving manifests in memory")
		archive = client.NewMemoryStore()
	}

	// Zitadel JWKS verifier is optional; legacy JWT remains as fallback
	var tokenVerifier auth.TokenVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			logger.Warn().Err(err).Msg("JWKS verifier not initialized")
		} else {
			defer jwksVerifier.Close()
			tokenVerifier = jwksVerifier
		}
	}
	authenticator := auth.NewAuthenticator(tokenVerifier, cfg.JWT.Secret)

	// Services
	manifestService := service.NewManifestService(manifestValidator, analyzer, speechClient, cfg.Validation)
	generationService := service.NewGenerationService(redisClient, asynqClient, records, archive, manifestValidator, cfg.Validation)
	reportService := service.NewReportService(records)

	var apiAuth fiber.Handler
	if cfg.Gateway.Enabled {
		logger.Info().Msg("gateway mode enabled, using header-based auth")
		apiAuth = middleware.GatewayAuthMiddleware()
	} else {
		apiAuth = middleware.Authenticate(authenticator)
	}

	app := server.New(server.Options{
		Handlers: server.Handlers{
			Auth:       handler.NewAuthHandler(authenticator),
			Manifest:   handler.NewManifestHandler(manifestService, validate),
			Generation: handler.NewGenerationHandler(generationService, validate),
			Report:     handler.NewReportHandler(reportService, validate),
			Library:    handler.NewLibraryHandler(lib),
		},
		Auth:    apiAuth,
		Limiter: middleware.NewRateLimiter(redisClient),
		Limits:  cfg.RateLimit,
		Hub:     hub,
		Services: func() fiber.Map {
			return fiber.Map{
				"renderer": rendererClient.IsConfigured(),
				"speech":   speechClient.IsConfigured(),
				"r2":       r2Configured,
				"auth":     tokenVerifier != nil || cfg.JWT.Secret != "",
			}
		},
		RequestLog: os.Stdout,
		Debug:      strings.EqualFold(cfg.Server.LogLevel, "debug"),
	})

	generationWorker := worker.NewGenerationWorker(
		generationService,
		rendererClient,
		archive,
		analyzer,
		hub,
		analytics.NewRedisSink(redisClient),
		&cfg.Renderer,
		cfg.Validation.SpeechWordsPerMin,
	)
	workerServer := newWorkerServer(cfg, redisOpt)
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeGeneration, generationWorker.ProcessTask)
	go func() {
		if err := workerServer.Run(mux); err != nil {
			logger.Error().Err(err).Msg("asynq worker stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down server")
		workerServer.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	logger.Info().Str("addr", addr).Str("env", cfg.Server.Env).Msg("server starting")
	if err := app.Listen(addr); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	switch log.ParseLevel(cfg.Server.LogLevel) {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		asynqLogLevel = asynq.DebugLevel
	case zerolog.WarnLevel:
		asynqLogLevel = asynq.WarnLevel
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		asynqLogLevel = asynq.ErrorLevel
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			service.QueueGeneration: 1,
		},
		Logger:   log.AsynqLogger{L: log.WithComponent("asynq")},
		LogLevel: asynqLogLevel,
	})
}
