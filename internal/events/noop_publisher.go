package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

// NoopPublisher logs events instead of broadcasting them. Used when no
// AMQP URL is configured or the broker is unreachable at startup.
type NoopPublisher struct {
	logger *logrus.Logger
}

// NewNoopPublisher creates a logging-only publisher.
func NewNoopPublisher(logger *logrus.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

// Publish logs the event at debug level and drops it.
func (p *NoopPublisher) Publish(_ context.Context, event *SeatEvent) error {
	p.logger.WithFields(logrus.Fields{
		"event":   event.Type,
		"trip_id": event.TripID,
		"seats":   event.Seats,
	}).Debug("Event broadcasting disabled, dropping event")
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error {
	return nil
}
