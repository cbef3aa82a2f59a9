package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ajharbinger/crm-pipeline/internal/api"
	"github.com/ajharbinger/crm-pipeline/internal/app"
	"github.com/ajharbinger/crm-pipeline/internal/auth"
	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/pkg/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewSimpleLogger().Fatal("Failed to load configuration", err)
	}

	log, closeLog := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closeLog()
	if envErr != nil {
		log.Debug("No .env file found")
	}

	a, err := app.New(cfg, log, app.Options{Migrate: true, RuntimeMetrics: true})
	if err != nil {
		log.Fatal("Failed to start", err)
	}
	defer a.Close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := api.RouterDeps{
		Services: a.Services,
		JWT:      auth.NewJWTService(cfg.JWTSecret),
		Config:   cfg,
		Logger:   log,
		Metrics:  a.Metrics,
		DB:       a.DB,
	}
	if health := a.EnrichmentHealth(); health != nil {
		deps.Enrichment = health
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", err)
	}
	log.Info("Server stopped")
}
