package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"inkwell.app/assistant/common/id"
	"inkwell.app/assistant/common/llm"
	"inkwell.app/assistant/common/logger"
	"inkwell.app/assistant/common/otel"
	"inkwell.app/assistant/core/config"
	"inkwell.app/assistant/core/db"
	"inkwell.app/assistant/internal/http/middleware"
	httprouter "inkwell.app/assistant/internal/http/router"
	"inkwell.app/assistant/internal/pubsub"
	"inkwell.app/assistant/internal/queue"
	"inkwell.app/assistant/internal/registry"
	"inkwell.app/assistant/internal/relay"
	"inkwell.app/assistant/internal/service"
	"inkwell.app/assistant/internal/store"
	"inkwell.app/assistant/internal/titler"
	"inkwell.app/assistant/internal/upstream"
)

const titleWorkerMaxAttempts = 3

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "assistant starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Titles.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Titles.RedisStream)

	titleProducer := queue.NewRedisProducer(redisClient, cfg.Titles.RedisStream, nil)
	defer titleProducer.Close()

	stores := store.NewStores(database.Queries())
	dispatcher := upstream.New(cfg.Upstream)
	reg := registry.New()
	bus := pubsub.NewBus()

	services := service.NewServices(
		stores,
		service.NewTxRunner(database),
		cfg.WorkOS,
		dispatcher,
		relay.NewEngine(),
		reg,
		titleProducer,
	)

	titleWorker := startTitleWorker(ctx, cfg, redisClient, stores, dispatcher, bus)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, bus)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Streaming responses stay open for as long as a generation runs.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if titleWorker != nil {
		titleWorker.Stop()
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// startTitleWorker wires the title pipeline when an LLM is configured.
// Without one, enqueued tasks simply wait in the stream.
func startTitleWorker(
	ctx context.Context,
	cfg config.Config,
	redisClient *redis.Client,
	stores *store.Stores,
	dispatcher upstream.Dispatcher,
	bus *pubsub.Bus,
) *titler.Worker {
	if !cfg.TitleLLM.Enabled() {
		slog.WarnContext(ctx, "title worker disabled (no LLM API key configured)")
		return nil
	}

	llmClient, err := llm.New(llm.Config{
		APIKey:  cfg.TitleLLM.APIKey,
		BaseURL: cfg.TitleLLM.BaseURL,
		Model:   cfg.TitleLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to build llm client", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Titles.RedisStream,
		Group:        cfg.Titles.RedisGroup,
		Consumer:     cfg.Titles.Consumer,
		DLQStream:    cfg.Titles.RedisStream + "_dlq",
		BatchSize:    8,
		Block:        5 * time.Second,
		MaxAttempts:  titleWorkerMaxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create title consumer", "error", err)
		os.Exit(1)
	}

	worker := titler.New(consumer, stores.Conversations(), dispatcher, llmClient, bus, titler.Config{
		MaxAttempts: titleWorkerMaxAttempts,
	})

	go func() {
		if err := worker.Run(ctx); err != nil && err != context.Canceled {
			slog.ErrorContext(ctx, "title worker exited", "error", err)
		}
	}()
	slog.InfoContext(ctx, "title worker started", "group", cfg.Titles.RedisGroup, "consumer", cfg.Titles.Consumer)

	return worker
}

func setupRouter(cfg config.Config, services *service.Services, bus *pubsub.Bus) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, bus, httprouter.RouterConfig{
		AppURL:       cfg.AppURL,
		IsProduction: cfg.IsProduction(),
	})

	return router
}
