package messaging

import (
	"context"

	"anima-backend/application/ports"
	"anima-backend/domain/events"

	"go.uber.org/zap"
)

// LoggingPublisher is the development EventPublisher: events go to the log
// instead of a bus.
type LoggingPublisher struct {
	logger *zap.Logger
}

// NewLoggingPublisher creates a logging publisher
func NewLoggingPublisher(logger *zap.Logger) ports.EventPublisher {
	return &LoggingPublisher{logger: logger}
}

// Publish logs a single domain event
func (p *LoggingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()),
	)
	return nil
}

// PublishBatch logs each event in the batch
func (p *LoggingPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
