package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/dairyops/dairyops/internal/jobs"
	"github.com/dairyops/dairyops/internal/scheduler"
)

// DeliveryJobs adapts the delivery scheduler to background task handlers.
type DeliveryJobs struct {
	service *scheduler.Service
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
	clock   func() time.Time
}

// NewDeliveryJobs constructs the handlers around a scheduler service.
func NewDeliveryJobs(service *scheduler.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) *DeliveryJobs {
	return &DeliveryJobs{service: service, metrics: metrics, logger: logger, clock: time.Now}
}

// HandleGenerate processes TaskDeliveryGenerate tasks.
func (j *DeliveryJobs) HandleGenerate(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("delivery_generate")
	var payload DeliveryGeneratePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	date, err := parseTaskDate(payload.Date, j.clock().UTC())
	if err != nil {
		j.logger.Error("delivery generate: bad date", slog.String("date", payload.Date))
		return asynq.SkipRetry
	}

	result, err := j.service.GenerateForDate(ctx, date, payload.AutoMark)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddRows("delivery_generate", "created", result.Created)
	j.metrics.AddRows("delivery_generate", "skipped", result.Skipped())
	j.logger.Info("delivery generation job done",
		slog.String("date", date.Format("2006-01-02")),
		slog.Int("created", result.Created),
		slog.Int("errors", len(result.Errors)))
	return tracker.End(nil)
}

// HandleComplete processes TaskDeliveryComplete tasks.
func (j *DeliveryJobs) HandleComplete(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("delivery_complete")
	var payload DeliveryCompletePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	date, err := parseTaskDate(payload.Date, j.clock().UTC())
	if err != nil {
		j.logger.Error("delivery complete: bad date", slog.String("date", payload.Date))
		return asynq.SkipRetry
	}

	result, err := j.service.CompletePending(ctx, date)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddRows("delivery_complete", "completed", result.Completed)
	j.logger.Info("delivery completion job done",
		slog.String("date", date.Format("2006-01-02")),
		slog.Int("completed", result.Completed),
		slog.Int("errors", len(result.Errors)))
	return tracker.End(nil)
}
