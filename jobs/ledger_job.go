package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/dairyops/dairyops/internal/jobs"
	"github.com/dairyops/dairyops/internal/ledger"
)

// LedgerJobs adapts the ledger engine to background task handlers.
type LedgerJobs struct {
	service *ledger.Service
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewLedgerJobs constructs the handlers around a ledger service.
func NewLedgerJobs(service *ledger.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) *LedgerJobs {
	return &LedgerJobs{service: service, metrics: metrics, logger: logger}
}

// HandleSync processes TaskLedgerSync tasks.
func (j *LedgerJobs) HandleSync(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("ledger_sync")
	result, err := j.service.SyncInvoices(ctx)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddRows("ledger_sync", "created", result.Created)
	j.logger.Info("ledger sync job done",
		slog.Int("created", result.Created),
		slog.Int("errors", len(result.Errors)))
	return tracker.End(nil)
}
