package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dairyops/dairyops/internal/cattle"
	jobmetrics "github.com/dairyops/dairyops/internal/jobs"
)

// CattleJobs adapts the herd status automation to background task handlers.
type CattleJobs struct {
	service *cattle.Service
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewCattleJobs constructs the handlers around a cattle service.
func NewCattleJobs(service *cattle.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) *CattleJobs {
	return &CattleJobs{service: service, metrics: metrics, logger: logger}
}

// HandleStatusRun processes TaskCattleStatus tasks.
func (j *CattleJobs) HandleStatusRun(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("cattle_status")
	result, err := j.service.RunStatusRules(ctx)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddRows("cattle_status", "evaluated", result.Evaluated)
	j.metrics.AddRows("cattle_status", "changed", len(result.Changes))
	j.logger.Info("cattle status job done",
		slog.Int("evaluated", result.Evaluated),
		slog.Int("changed", len(result.Changes)),
		slog.Int("errors", len(result.Errors)))
	return tracker.End(nil)
}
