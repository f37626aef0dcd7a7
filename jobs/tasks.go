package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskDeliveryGenerate creates the day's deliveries from subscriptions.
	TaskDeliveryGenerate = "delivery:generate"
	// TaskDeliveryComplete sweeps the day's pending deliveries to delivered.
	TaskDeliveryComplete = "delivery:complete"
	// TaskInvoiceGenerate runs the monthly billing cycle.
	TaskInvoiceGenerate = "invoice:generate"
	// TaskLedgerSync backfills ledger entries for unsynced invoices.
	TaskLedgerSync = "ledger:sync"
	// TaskCattleStatus applies the lactation status rules to the herd.
	TaskCattleStatus = "cattle:status"
)

// DeliveryGeneratePayload scopes a generation run. An empty date means the
// worker's current day.
type DeliveryGeneratePayload struct {
	Date     string `json:"date,omitempty"`
	AutoMark bool   `json:"auto_mark,omitempty"`
}

// DeliveryCompletePayload scopes a completion sweep. An empty date means the
// worker's current day.
type DeliveryCompletePayload struct {
	Date string `json:"date,omitempty"`
}

// InvoiceGeneratePayload scopes a billing run. Zero year and month mean the
// previous calendar month.
type InvoiceGeneratePayload struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

// NewDeliveryGenerateTask constructs an Asynq task for delivery generation.
func NewDeliveryGenerateTask(payload DeliveryGeneratePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliveryGenerate, body, asynq.Queue(QueueDefault)), nil
}

// NewDeliveryCompleteTask constructs an Asynq task for the completion sweep.
func NewDeliveryCompleteTask(payload DeliveryCompletePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliveryComplete, body, asynq.Queue(QueueDefault)), nil
}

// NewInvoiceGenerateTask constructs an Asynq task for the monthly billing run.
func NewInvoiceGenerateTask(payload InvoiceGeneratePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceGenerate, body, asynq.Queue(QueueDefault)), nil
}

// NewLedgerSyncTask constructs an Asynq task for ledger reconciliation.
func NewLedgerSyncTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerSync, nil, asynq.Queue(QueueDefault))
}

// NewCattleStatusTask constructs an Asynq task for the herd status sweep.
func NewCattleStatusTask() *asynq.Task {
	return asynq.NewTask(TaskCattleStatus, nil, asynq.Queue(QueueDefault))
}

// parseTaskDate resolves an optional YYYY-MM-DD payload date, falling back to
// the given current time truncated to the day.
func parseTaskDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.ParseInLocation("2006-01-02", value, time.UTC)
}
