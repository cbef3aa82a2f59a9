package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/events"
	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/services"
)

var workerPrefetch int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume lead events from RabbitMQ",
	Long: `Consume lead events from the work queue.

lead.enrichment_requested enriches the lead from its website (when
enrichment is enabled) and scoring.rules_changed runs one rescore cycle.
Failed messages go to the dead letter queue.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerPrefetch, "prefetch", 4, "unacknowledged messages in flight")
}

func runWorker(cmd *cobra.Command, args []string) error {
	if !cfg.HasAMQP() {
		return fmt.Errorf("amqp_url is not configured")
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	consumer := events.NewConsumer(a.Broker, workerPrefetch, log.With("component", "worker"))
	if a.Enrichment != nil {
		consumer.Handle(events.LeadEnrichmentRequested, enrichHandler(a.Services.Leads, log))
	}
	consumer.Handle(events.ScoringRulesChanged, rescoreHandler(a.Services.Rescore, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return consumer.Run(ctx)
}

type leadEnricher interface {
	Enrich(ctx context.Context, id uuid.UUID) (*models.Lead, error)
}

// enrichHandler enriches the event's lead. Leads that are gone or have no
// website are skipped rather than dead-lettered.
func enrichHandler(leads leadEnricher, log logger.Logger) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		if event.LeadID == nil {
			return fmt.Errorf("event %s has no lead id", event.ID)
		}
		lead, err := leads.Enrich(ctx, *event.LeadID)
		if err == nil {
			log.Info("Lead enriched", "lead_id", lead.ID, "score", lead.Score)
			return nil
		}
		switch errors.Code(err) {
		case errors.ErrCodeNotFound, errors.ErrCodeInvalidInput:
			log.Warn("Skipping enrichment", "lead_id", *event.LeadID, "reason", err.Error())
			return nil
		default:
			return err
		}
	}
}

type rescoreRunner interface {
	Config() services.PipelineConfig
	RunOnce(ctx context.Context, config services.PipelineConfig) (*services.PipelineStats, error)
}

func rescoreHandler(pipeline rescoreRunner, log logger.Logger) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		stats, err := pipeline.RunOnce(ctx, pipeline.Config())
		if err != nil {
			return err
		}
		log.Info("Rescored after rule change", "event_id", event.ID, "summary", stats.Summary())
		return nil
	}
}
