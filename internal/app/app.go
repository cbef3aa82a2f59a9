// Package app wires configuration, storage and services into a running
// process. Both the API server and crmctl start from here.
package app

import (
	"fmt"

	"github.com/ajharbinger/crm-pipeline/internal/database"
	"github.com/ajharbinger/crm-pipeline/internal/enrichment"
	"github.com/ajharbinger/crm-pipeline/internal/events"
	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/internal/metrics"
	"github.com/ajharbinger/crm-pipeline/internal/notify"
	"github.com/ajharbinger/crm-pipeline/internal/repository"
	"github.com/ajharbinger/crm-pipeline/internal/scoring"
	"github.com/ajharbinger/crm-pipeline/internal/services"
	"github.com/ajharbinger/crm-pipeline/pkg/config"
)

// App holds the long-lived collaborators of a process.
type App struct {
	Config     *config.Config
	Logger     logger.Logger
	DB         *database.DB
	Metrics    *metrics.Manager
	Broker     *events.Broker
	Enrichment *enrichment.Service
	Services   *services.Services
}

// Options tunes what New connects to.
type Options struct {
	// Migrate applies pending migrations before services are built.
	Migrate bool
	// RuntimeMetrics registers Go runtime and process collectors.
	RuntimeMetrics bool
}

// New connects to the database and, when configured, the broker, then
// builds every service. Call Close when done.
func New(cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a := &App{Config: cfg, Logger: log, DB: db}

	if opts.Migrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("Database migrations applied")
	}

	var metricOpts []metrics.Option
	if opts.RuntimeMetrics {
		metricOpts = append(metricOpts, metrics.WithRuntimeCollectors())
	}
	a.Metrics = metrics.NewManager(metricOpts...)

	deps := services.Dependencies{
		Repos:    repository.NewRepositories(db.DB),
		Config:   cfg,
		Engine:   scoring.NewEngine(scoring.WithObserver(metrics.NewScoringObserver(a.Metrics, log))),
		Recorder: a.Metrics,
		Logger:   log,
	}

	if cfg.EnrichmentEnabled {
		client := enrichment.NewClient(cfg.EnrichmentRatePerMinute, cfg.EnrichmentTimeout, cfg.EnrichmentUserAgent)
		a.Enrichment = enrichment.NewService(client, enrichment.NewHealthMonitor(), a.Metrics, log.With("component", "enrichment"))
		deps.Enricher = a.Enrichment
	}

	if cfg.HasAMQP() {
		broker, err := events.Dial(cfg.AMQPURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Broker = broker
		deps.Publisher = events.NewRabbitPublisher(broker)
		log.Info("Publishing lead events", "exchange", events.ExchangeName)
	}

	if cfg.HasSMTP() {
		deps.Notifier = notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	a.Services = services.NewServices(deps)
	return a, nil
}

// EnrichmentHealth returns the fetch health monitor, or nil when enrichment
// is disabled.
func (a *App) EnrichmentHealth() *enrichment.HealthMonitor {
	if a.Enrichment == nil {
		return nil
	}
	return a.Enrichment.Health()
}

// Close stops background rescoring and releases connections.
func (a *App) Close() {
	if a.Services != nil && a.Services.Rescore.IsRunning() {
		if err := a.Services.Rescore.Stop(); err != nil {
			a.Logger.Error("Failed to stop rescore pipeline", err)
		}
	}
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			a.Logger.Error("Failed to close broker connection", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("Failed to close database", err)
		}
	}
}
