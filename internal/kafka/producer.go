// Package kafka publishes the check-in audit stream: one event per applied
// check-in or undo (live or replayed) and one per completed sync pass.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

type Producer struct {
	CheckInWriter *kafka.Writer
	SyncWriter    *kafka.Writer
	Logger        *logger.Logger
}

func NewProducer(brokers []string, checkInTopic, syncTopic string, log *logger.Logger) *Producer {
	return &Producer{
		CheckInWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   checkInTopic,
		}),
		SyncWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   syncTopic,
		}),
		Logger: log,
	}
}

// PublishCheckIn streams one applied check-in or undo to the audit topic.
func (p *Producer) PublishCheckIn(event models.CheckInEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.Logger != nil {
		p.Logger.LogKafka("publish", p.CheckInWriter.Topic,
			fmt.Sprintf("%s %s by %s", event.Kind, event.TicketID, event.ActorID))
	}

	return p.CheckInWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(event.TicketID),
			Value: msgBytes,
		},
	)
}

// PublishSyncCompleted streams the outcome of one sync pass.
func (p *Producer) PublishSyncCompleted(event models.SyncCompletedEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.Logger != nil {
		p.Logger.LogKafka("publish", p.SyncWriter.Topic,
			fmt.Sprintf("device %s: %d synced, %d failed", event.DeviceID, event.Synced, event.Failed))
	}

	return p.SyncWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(event.DeviceID),
			Value: msgBytes,
		},
	)
}

// Close flushes and closes both writers.
func (p *Producer) Close() error {
	if err := p.CheckInWriter.Close(); err != nil {
		return err
	}
	return p.SyncWriter.Close()
}
