package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/luzdodia/api/internal/auth"
	"github.com/luzdodia/api/internal/client"
	"github.com/luzdodia/api/internal/config"
	"github.com/luzdodia/api/internal/executor"
	"github.com/luzdodia/api/internal/handler"
	"github.com/luzdodia/api/internal/health"
	"github.com/luzdodia/api/internal/metrics"
	"github.com/luzdodia/api/internal/middleware"
	"github.com/luzdodia/api/internal/model"
	"github.com/luzdodia/api/internal/pipeline"
	"github.com/luzdodia/api/internal/poller"
	"github.com/luzdodia/api/internal/registry"
	"github.com/luzdodia/api/internal/service"
	ws "github.com/luzdodia/api/internal/websocket"
	"github.com/luzdodia/api/internal/worker"
)

// @title          Luz do Dia API
// @version        1.0
// @description    Pipeline orchestration for spiritual short-form video.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.Log)
	defer closeLog()
	slog.SetDefault(logger)

	ctx := context.Background()
	useRedis := !strings.EqualFold(cfg.Storage.Backend, "memory")

	// Catalog
	reg := registry.Default()
	if cfg.Pipeline.CatalogFile != "" {
		reg, err = registry.Load(cfg.Pipeline.CatalogFile)
		if err != nil {
			slog.Error("failed to load catalog", "file", cfg.Pipeline.CatalogFile, "error", err)
			os.Exit(1)
		}
	}

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	// Asset storage (optional)
	var (
		r2Client *client.R2Client
		assets   client.AssetStore
		storage  health.Pinger
	)
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err = client.NewR2Client(ctx, &cfg.R2)
		if err != nil {
			slog.Warn("R2 client not initialized", "error", err)
			r2Client = nil
		} else {
			assets = r2Client
			storage = r2Client
		}
	} else {
		slog.Info("R2 storage not configured, narration stays disabled in live mode")
	}

	adapters := client.NewSet(
		client.NewGroqClient(&cfg.Groq),
		client.NewOpenAIClient(&cfg.OpenAI, assets),
		client.NewGeminiClient(&cfg.Gemini),
		client.NewOllamaClient(&cfg.Ollama),
		client.NewPollinationsClient(&cfg.Pollinations),
		client.NewElevenLabsClient(&cfg.ElevenLabs, assets),
		client.NewPexelsClient(&cfg.Pexels),
		client.NewShotstackClient(&cfg.Shotstack),
		client.NewYouTubeClient(&cfg.YouTube),
	)

	// Session store
	var (
		redisClient *redis.Client
		store       service.SessionStore
		counter     middleware.Counter
	)
	if useRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("redis not available", "addr", cfg.Redis.Addr, "error", err)
		}
		defer redisClient.Close()
		store = service.NewRedisSessionStore(redisClient,
			time.Duration(cfg.Storage.SessionTTL)*time.Hour,
			time.Duration(cfg.Storage.LockTTL)*time.Second)
		counter = middleware.NewRedisCounter(redisClient)
	} else {
		slog.Info("using in-memory session store")
		store = service.NewMemorySessionStore()
		counter = middleware.NewMemoryCounter()
	}

	// Execution mode
	checker := health.NewChecker(reg, adapters, store, storage)
	modes := service.NewModeService(model.ModeSimulated, checker)
	if model.Mode(cfg.Pipeline.Mode) == model.ModeLive {
		if err := modes.Switch(ctx, model.ModeLive); err != nil {
			slog.Warn("starting in simulated mode", "error", err)
		}
	}

	exec := executor.New(reg, adapters, executor.Settings{
		CallTimeout:          cfg.Pipeline.CallTimeoutDuration(),
		SimulatedDelay:       cfg.Pipeline.SimulatedDelay(),
		SimulatedRenderPolls: cfg.Pipeline.SimulatedRenderPolls,
		RatePerSec:           cfg.Pipeline.ProviderRatePerSec,
		Metrics:              m,
	})
	orch := pipeline.New(reg, exec, modes, pipeline.Options{
		Language: cfg.Pipeline.Language,
		Poller: poller.Config{
			MaxAttempts: cfg.Pipeline.RenderMaxAttempts,
			Interval:    cfg.Pipeline.PollInterval(),
		},
		ThumbnailConcurrency: cfg.Pipeline.ThumbnailConcurrency,
		ChannelID:            cfg.YouTube.ChannelID,
		CategoryID:           cfg.YouTube.CategoryID,
	})

	hub := ws.NewHub()
	go hub.Run()

	sessionService := service.NewSessionService(store, orch, reg, hub, 0)
	if r2Client != nil {
		sessionService.WithAssetCleaner(r2Client)
	}

	// Render tracking runs on asynq when redis backs the sessions; the
	// memory backend tracks in-process.
	var (
		renderService *service.RenderService
		asynqServer   *asynq.Server
		inline        *worker.InlineQueue
	)
	mux := asynq.NewServeMux()
	if useRedis {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		asynqClient := asynq.NewClient(redisOpt)
		defer asynqClient.Close()
		renderService = service.NewRenderService(sessionService, orch, asynqClient)
		asynqServer = asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: 10,
			Queues:      map[string]int{"render": 1},
			LogLevel:    asynqLogLevel(cfg.Log.Level),
		})
	} else {
		inline = worker.NewInlineQueue(mux)
		renderService = service.NewRenderService(sessionService, orch, inline)
	}
	renderWorker := worker.NewRenderWorker(renderService, orch, hub, m)
	mux.HandleFunc(model.TaskTypeTrackRender, renderWorker.ProcessTask)

	if asynqServer != nil {
		go func() {
			if err := asynqServer.Run(mux); err != nil {
				slog.Error("asynq worker stopped", "error", err)
			}
		}()
	}

	// Auth
	var jwksVerifier *auth.JWKSVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err = auth.NewJWKSVerifier(ctx, &cfg.Zitadel)
		if err != nil {
			slog.Warn("JWKS verifier not initialized", "error", err)
		}
	}
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
		defer jwksVerifier.Close()
	}

	var authenticate fiber.Handler
	if cfg.Gateway.Enabled {
		slog.Info("gateway mode enabled, using header-based auth")
		authenticate = middleware.GatewayAuthMiddleware()
	} else {
		authenticate = middleware.NewAuthMiddleware(tokenVerifier, cfg.JWT.Secret).Authenticate()
	}

	validate := validator.New()
	handlers := handler.Handlers{
		Sessions: handler.NewSessionHandler(sessionService, orch, validate),
		Render:   handler.NewRenderHandler(renderService),
		Catalog:  handler.NewCatalogHandler(reg, modes),
		Mode:     handler.NewModeHandler(modes, validate),
		Health:   handler.NewHealthHandler(checker, modes),
		Auth:     handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret),
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    4 * 1024 * 1024,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
	}
	app.Use(fiberlogger.New(fiberlogger.Config{Format: logFormat}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	handler.Mount(app, handlers, authenticate, middleware.NewRateLimiter(counter), cfg.RateLimit)

	// Session watchers
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("id"))
	}))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if asynqServer != nil {
			asynqServer.Shutdown()
		}
		if inline != nil {
			inline.Shutdown()
		}
	}()

	addr := ":" + cfg.Server.Port
	slog.Info("server starting", "addr", addr, "mode", modes.Mode(), "storage", cfg.Storage.Backend)
	if err := app.Listen(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func asynqLogLevel(level string) asynq.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return asynq.DebugLevel
	case "warn", "warning":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	}
	return asynq.InfoLevel
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
