package events

import (
	"context"

	"github.com/customeros/mailsetup/dto"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/logger"
)

// NewEventPublisher connects to RabbitMQ, or returns a publisher that only logs when no URL is configured.
func NewEventPublisher(rabbitmqURL string, log logger.Logger, publisherConfig *PublisherConfig) (interfaces.EventPublisher, error) {
	if rabbitmqURL == "" {
		log.Warn("RABBITMQ_URL is not set, events are not published")
		return &noopPublisher{log: log}, nil
	}

	publisher, err := NewRabbitMQPublisher(rabbitmqURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

type noopPublisher struct {
	log logger.Logger
}

func (p *noopPublisher) PublishAccountProvisioned(ctx context.Context, event dto.AccountProvisioned) error {
	p.log.Debugf("Skipping AccountProvisioned event for %s", event.AccountId)
	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}
