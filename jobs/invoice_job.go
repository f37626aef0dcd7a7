package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dairyops/dairyops/internal/billing"
	jobmetrics "github.com/dairyops/dairyops/internal/jobs"
)

// InvoiceJobs adapts the billing service to background task handlers.
type InvoiceJobs struct {
	service *billing.Service
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
	clock   func() time.Time
}

// NewInvoiceJobs constructs the handlers around a billing service.
func NewInvoiceJobs(service *billing.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) *InvoiceJobs {
	return &InvoiceJobs{service: service, metrics: metrics, logger: logger, clock: time.Now}
}

// HandleGenerate processes TaskInvoiceGenerate tasks. The scheduled run fires
// early in a month and bills the month that just closed.
func (j *InvoiceJobs) HandleGenerate(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("invoice_generate")
	var payload InvoiceGeneratePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	year, month := payload.Year, time.Month(payload.Month)
	if year == 0 || payload.Month == 0 {
		now := j.clock().UTC()
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		year, month = prev.Year(), prev.Month()
	}

	result, err := j.service.GenerateMonthly(ctx, year, month)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddRows("invoice_generate", "created", result.Created)
	j.metrics.AddRows("invoice_generate", "skipped", result.SkippedExisting+result.SkippedZero)
	j.logger.Info("invoice generation job done",
		slog.Int("year", year),
		slog.Int("month", int(month)),
		slog.Int("created", result.Created),
		slog.Int("errors", len(result.Errors)))
	return tracker.End(nil)
}
