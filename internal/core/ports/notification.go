package ports

import (
	"context"

	"github.com/srgjo27/activity_booking/internal/core/domain"
)

// EventPublisher hands lifecycle events to whatever fans them out.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type SendResult struct {
	Success           bool
	ProviderMessageID string
}

// Channel is one delivery transport (SMS, chat bot, messaging app). The
// destination format is channel specific.
type Channel interface {
	Name() string
	Send(ctx context.Context, destination, message string) (SendResult, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}
