package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/msaedi/instructly-sub005/awsclient"
	"github.com/msaedi/instructly-sub005/kafka"
	"github.com/msaedi/instructly-sub005/models"
)

// BookingEventPublisher fans booking events out to Kafka and, best-effort, to
// SNS. A Kafka failure is returned to the caller; an SNS failure is only
// logged.
type BookingEventPublisher struct {
	producer    *kafka.BookingEventProducer
	snsClient   awsclient.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
}

// NewBookingEventPublisher creates a new BookingEventPublisher. snsClient and
// snsTopicArn may be empty when SNS is not configured.
func NewBookingEventPublisher(producer *kafka.BookingEventProducer, snsClient awsclient.SNSPublisher, snsTopicArn string, logger *zap.Logger) *BookingEventPublisher {
	return &BookingEventPublisher{
		producer:    producer,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		logger:      logger,
	}
}

func (p *BookingEventPublisher) Publish(ctx context.Context, event models.BookingEvent) error {
	if err := p.producer.Send(ctx, event); err != nil {
		return err
	}

	if p.snsClient != nil && p.snsTopicArn != "" {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if err := p.snsClient.Publish(ctx, p.snsTopicArn, payload); err != nil {
			p.logger.Warn("SNS publish failed",
				zap.String("booking_id", event.BookingID),
				zap.Error(err))
		}
	}
	return nil
}
