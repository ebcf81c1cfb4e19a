package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/msaedi/instructly-sub005/models"
)

// BookingEventProducer publishes booking lifecycle events to Kafka, keyed by
// booking id so a booking's events stay ordered within a partition.
type BookingEventProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewBookingEventProducer(brokers []string, topic string) *BookingEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Printf("[BookingEvents] kafka producer initialized topic=%s brokers=%v", topic, brokers)
	return &BookingEventProducer{writer: w, topic: topic}
}

func (p *BookingEventProducer) Send(ctx context.Context, event models.BookingEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.BookingID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("[BookingEvents] failed to send event: %v", err)
		return err
	}
	return nil
}

func (p *BookingEventProducer) Close() {
	_ = p.writer.Close()
	log.Println("[BookingEvents] kafka producer closed")
}
