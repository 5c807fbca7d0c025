// Unigrow chatbot API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/unigrow/unigrow-bot/internal/actions"
	"github.com/unigrow/unigrow-bot/internal/api"
	"github.com/unigrow/unigrow-bot/internal/chat"
	"github.com/unigrow/unigrow-bot/internal/config"
	"github.com/unigrow/unigrow-bot/internal/conversation"
	"github.com/unigrow/unigrow-bot/internal/dialogue"
	"github.com/unigrow/unigrow-bot/internal/identity"
	"github.com/unigrow/unigrow-bot/internal/llm"
	"github.com/unigrow/unigrow-bot/internal/media"
	"github.com/unigrow/unigrow-bot/internal/middleware"
	"github.com/unigrow/unigrow-bot/internal/push"
	"github.com/unigrow/unigrow-bot/internal/scheduler"
	"github.com/unigrow/unigrow-bot/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "dialogue_engine", cfg.DialogueEngine)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	policy, err := scheduler.ParsePolicy(cfg.Scheduler.FailurePolicy)
	if err != nil {
		slog.Error("Invalid scheduler policy", "error", err)
		os.Exit(1)
	}
	sched := scheduler.New(scheduler.Config{
		Tick:            cfg.Scheduler.Tick,
		Policy:          policy,
		MaxAttempts:     cfg.Scheduler.MaxAttempts,
		RetryBackoff:    cfg.Scheduler.RetryBackoff,
		NurtureInterval: cfg.NurtureInterval,
	}, logger)

	llmClient := llm.New(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	slog.Info("LLM client configured", "base_url", cfg.LLM.BaseURL, "model", llmClient.Model())

	catalog := media.NewCatalog(cfg.MediaDir, logger)
	registry := actions.NewRegistry(actions.Deps{
		LLM:       llmClient,
		Scheduler: sched,
		Media:     catalog,
		Logger:    logger,
	})

	var engine dialogue.Engine
	switch cfg.DialogueEngine {
	case config.EngineRasa:
		engine = dialogue.NewRasaClient(cfg.Rasa.URL, cfg.Rasa.Timeout, logger)
		slog.Info("Using Rasa dialogue engine", "url", cfg.Rasa.URL)
	default:
		slots := conversation.NewTracker(repo, logger)
		engine = dialogue.NewScriptedEngine(registry, slots, logger)
		slog.Info("Using scripted dialogue engine")
	}

	readyCtx, readyCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := engine.Ready(readyCtx); err != nil {
		slog.Warn("Dialogue engine not ready, replies will fall back until it is", "error", err)
	}
	readyCancel()

	// Initialize services.
	chatService := chat.NewService(engine, repo, logger)
	sm := push.NewSessionManager()
	notifier := push.NewNotifier(sm, repo, logger)

	// Initialize handlers.
	baseHandler := api.NewHandler(api.Deps{
		Repo:      repo,
		Chat:      chatService,
		Scheduler: sched,
		Media:     catalog,
		Actions:   registry,
		LLM:       llmClient,
		Dialogue:  engine,
		Logger:    logger,
	})
	wsHandler := push.NewWebSocketHandler(chatService, sm, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	baseHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.With(identity.Middleware()).Get("/ws/chat", wsHandler.ServeHTTP)

	// Create server.
	// WebSocket connections are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start scheduler worker.
	sched.Start(notifier.Deliver)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop()
	if pending := len(sched.Pending()); pending > 0 {
		slog.Warn("Scheduler stopped with pending messages", "pending", pending)
	}
	sm.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
