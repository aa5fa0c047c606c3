package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub002/internal/config"
	"github.com/disparter/toguwaka-discord-game-sub002/internal/handlers"
	"github.com/disparter/toguwaka-discord-game-sub002/internal/logger"
	"github.com/disparter/toguwaka-discord-game-sub002/internal/metrics"
	"github.com/disparter/toguwaka-discord-game-sub002/internal/middleware"
	"github.com/disparter/toguwaka-discord-game-sub002/internal/services"
	"github.com/disparter/toguwaka-discord-game-sub002/internal/storage"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/engine"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Toguwaka Story API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"content_dir", cfg.ContentDir)

	store := storage.NewRedisStorage(cfg.RedisURL, cfg.ContentDir, cfg.EntryChapter, cfg.ProgressTTL, log)

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}

	model, err := store.LoadContent(context.Background())
	if err != nil {
		log.Error("Failed to load content", "error", err)
		os.Exit(1)
	}

	// Publishing gate: defective content never serves players.
	report := story.Validate(model)
	if !report.Clean() {
		log.Error("Content validation failed",
			"broken_references", report.BrokenReferences,
			"undefined_variables", report.UndefinedVariables,
			"malformed", report.Malformed)
		if !cfg.AllowInvalidContent {
			os.Exit(1)
		}
		log.Warn("Serving invalid content because ALLOW_INVALID_CONTENT is set")
	}
	log.Info("Content validated",
		"chapters", model.Len(),
		"coverage_percentage", report.CoveragePercentage)

	economy := services.NewLogEconomy(log)
	rewardApplier := services.NewRedisRewardApplier(store.Client(), economy, log)
	eventQueue := services.NewRedisEventQueue(store.Client(), cfg.EventTTL, log)
	eligibility := services.NewProgressEligibility(log)

	eng := engine.NewEngine(model, eligibility, rewardApplier, eventQueue, log)
	m := metrics.New()

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, log)
	mux.Handle("/health", healthHandler)

	storyHandler := handlers.NewStoryHandler(eng, store, m, log)
	mux.Handle("/v1/story/", storyHandler)

	validateHandler := handlers.NewValidateHandler(eng, store, m, log)
	mux.Handle("/v1/validate", validateHandler)
	mux.Handle("/v1/validate/", validateHandler)

	mux.Handle("/metrics", m.Handler())

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
