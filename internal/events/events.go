package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"
)

const (
	TypeOrderCreated          = "order.created"
	TypeOrderStatusChanged    = "order.status_changed"
	TypeCancellationRequested = "order.cancellation_requested"
	TypeCancellationResolved  = "order.cancellation_resolved"
	TypePaymentConfirmed      = "order.payment_confirmed"
	TypePaymentFailed         = "order.payment_failed"
	TypeOrderDeleted          = "order.deleted"
)

// Event is published after an order change has been written.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id,omitempty"`
	FromStatus    string    `json:"from_status,omitempty"`
	ToStatus      string    `json:"to_status,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, e Event) error {
	slog.Info("order event",
		slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
		slog.String(logkey.Topic, e.Type),
		slog.String(logkey.OrderID, e.OrderID),
		slog.String(logkey.Status, e.ToStatus))
	return nil
}
