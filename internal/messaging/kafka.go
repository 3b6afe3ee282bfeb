package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/config"
	"github.com/temcen/crosssale/pkg/models"
)

const ConsumerGroup = "crosssale-recalculators"

// MessageWriter is the part of *kafka.Writer the bus needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the part of *kafka.Reader the bus needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReportBus publishes report events and, when a reader is attached, consumes
// them back.
type ReportBus struct {
	topic  string
	writer MessageWriter
	reader MessageReader
	logger *logrus.Logger
}

func NewReportBus(cfg *config.Config, logger *logrus.Logger) *ReportBus {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topics.Reports,
		Balancer:     &kafka.Hash{}, // same pair, same partition
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topics.Reports,
		GroupID:        ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return NewReportBusWith(cfg.Kafka.Topics.Reports, writer, reader, logger)
}

func NewReportBusWith(topic string, writer MessageWriter, reader MessageReader, logger *logrus.Logger) *ReportBus {
	return &ReportBus{
		topic:  topic,
		writer: writer,
		reader: reader,
		logger: logger,
	}
}

// PublishReports writes one message per event, keyed by the product pair.
func (b *ReportBus) PublishReports(ctx context.Context, events []models.ReportEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal report event: %w", err)
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.SelectedProduct.String() + ":" + event.ProposedProduct.String()),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(event.EventID.String())},
				{Key: "sex", Value: []byte(event.Sex)},
				{Key: "timestamp", Value: []byte(event.ReceivedAt.Format(time.RFC3339))},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := b.writer.WriteMessages(ctx, msgs...); err != nil {
		b.logger.WithError(err).WithField("events", len(events)).Error("Failed to publish report events to Kafka")
		return fmt.Errorf("failed to write messages to Kafka: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"events": len(events),
		"topic":  b.topic,
	}).Debug("Report events published to Kafka")

	return nil
}

// ConsumeReports hands every decoded event to handler until ctx is done.
// Undecodable messages are logged and skipped; a failing handler is retried
// with exponential backoff.
func (b *ReportBus) ConsumeReports(ctx context.Context, handler func(models.ReportEvent) error) error {
	if b.reader == nil {
		return fmt.Errorf("report bus has no reader")
	}

	for {
		message, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WithError(err).Error("Failed to read message from Kafka")
			continue
		}

		var event models.ReportEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			b.logger.WithError(err).WithField("offset", message.Offset).Error("Failed to unmarshal report event")
			continue
		}

		if err := b.processWithRetry(ctx, event, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WithError(err).WithField("event_id", event.EventID).Error("Dropping report event after retries")
		}
	}
}

func (b *ReportBus) processWithRetry(ctx context.Context, event models.ReportEvent, handler func(models.ReportEvent) error) error {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err = handler(event); err == nil {
			return nil
		}

		b.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": event.EventID,
			"attempt":  attempt,
		}).Warn("Report event processing failed")
	}

	return fmt.Errorf("max retries exceeded: %w", err)
}

func (b *ReportBus) Close() error {
	var errors []error

	if err := b.writer.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close producer: %w", err))
	}

	if b.reader != nil {
		if err := b.reader.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close consumer: %w", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("errors closing report bus: %v", errors)
	}

	return nil
}
