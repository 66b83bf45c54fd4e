package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"anima-backend/application/ports"
	"anima-backend/domain/events"
	pkgerrors "anima-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// PutEvents accepts at most 10 entries per call
const maxBatchSize = 10

// Publisher pushes domain events onto an EventBridge bus so downstream
// collaborators (the runtime, the budget service, dashboards) can react to
// lifecycle and voting activity.
type Publisher struct {
	client  *awseventbridge.Client
	busName string
	logger  *zap.Logger
}

// NewPublisher creates an EventBridge publisher
func NewPublisher(client *awseventbridge.Client, busName string, logger *zap.Logger) ports.EventPublisher {
	return &Publisher{
		client:  client,
		busName: busName,
		logger:  logger,
	}
}

// Publish sends a single domain event
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of the PutEvents limit. Partial
// failures are reported but do not abort later chunks.
func (p *Publisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	if len(batch) == 0 {
		return nil
	}

	var failed int
	for start := 0; start < len(batch); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(batch) {
			end = len(batch)
		}

		entries := make([]types.PutEventsRequestEntry, 0, end-start)
		for _, event := range batch[start:end] {
			detail, err := json.Marshal(event)
			if err != nil {
				p.logger.Error("Failed to marshal domain event",
					zap.String("eventType", event.GetEventType()),
					zap.Error(err),
				)
				failed++
				continue
			}
			entries = append(entries, types.PutEventsRequestEntry{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(events.SourceGovernance),
				DetailType:   aws.String(event.GetEventType()),
				Detail:       aws.String(string(detail)),
			})
		}
		if len(entries) == 0 {
			continue
		}

		out, err := p.client.PutEvents(ctx, &awseventbridge.PutEventsInput{Entries: entries})
		if err != nil {
			return pkgerrors.ErrEventPublishFailed.WithCause(err)
		}
		if out.FailedEntryCount > 0 {
			failed += int(out.FailedEntryCount)
			for _, entry := range out.Entries {
				if entry.ErrorCode != nil {
					p.logger.Warn("Event entry rejected by EventBridge",
						zap.String("errorCode", aws.ToString(entry.ErrorCode)),
						zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
					)
				}
			}
		}
	}

	if failed > 0 {
		return pkgerrors.ErrEventPublishFailed.
			WithDetail("failed_entries", failed).
			WithCause(fmt.Errorf("%d of %d events not delivered", failed, len(batch)))
	}

	p.logger.Debug("Published domain events", zap.Int("count", len(batch)))
	return nil
}
