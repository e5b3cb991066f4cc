package notifier

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srgjo27/activity_booking/internal/core/ports"
)

// Console stands in for a real channel in local setups: messages go to
// the log instead of a provider.
type Console struct {
	name string
	log  logrus.FieldLogger
}

func NewConsole(name string, log logrus.FieldLogger) *Console {
	return &Console{name: name, log: log}
}

func (c *Console) Name() string { return c.name }

func (c *Console) Send(_ context.Context, destination, message string) (ports.SendResult, error) {
	id := uuid.NewString()
	c.log.WithFields(logrus.Fields{
		"channel":     c.name,
		"destination": destination,
		"message_id":  id,
	}).Info(message)
	return ports.SendResult{Success: true, ProviderMessageID: id}, nil
}
