// Package notify emits fire-and-forget domain events to an external channel.
package notify

import "context"

// Event names emitted by the core services.
const (
	EventPaymentReceived   = "payment_received"
	EventDeliveryCompleted = "delivery_completed"
	EventHealthAlert       = "health_alert"
)

// Notifier publishes a named event with a free-form payload. Implementations
// must never propagate delivery failures to the caller.
type Notifier interface {
	Publish(ctx context.Context, event string, payload map[string]any)
}

// Nop is a Notifier that discards all events.
type Nop struct{}

// Publish implements Notifier.
func (Nop) Publish(context.Context, string, map[string]any) {}
