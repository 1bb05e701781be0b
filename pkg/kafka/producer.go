package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/devaeterne/marketplaceint/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// eventHeaders builds the routing headers for a message. When the context
// carries a recording span a W3C traceparent header rides along so consumers
// can join the run's trace.
func eventHeaders(ctx context.Context, eventType, platform string, extra ...kafka.Header) []kafka.Header {
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(eventType)},
		{Key: "platform", Value: []byte(platform)},
	}
	if traceParent := tracing.TraceParent(ctx); traceParent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceParent)})
	}
	return append(headers, extra...)
}

// ProductEvent represents a product lifecycle event
type ProductEvent struct {
	EventType         string          `json:"event_type"` // product.created, product.updated
	Platform          string          `json:"platform"`
	ProductID         int64           `json:"product_id"`
	PlatformProductID string          `json:"platform_product_id"`
	Data              json.RawMessage `json:"data,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
}

// RunEvent represents the outcome of one crawl or enrichment run
type RunEvent struct {
	EventType string          `json:"event_type"` // run.completed
	Platform  string          `json:"platform"`
	Report    json.RawMessage `json:"report"`
	Timestamp time.Time       `json:"timestamp"`
}

// PublishProductEvent publishes a product event to Kafka. Messages are keyed
// by internal product id so a consumer sees one product's events in order.
func (p *Producer) PublishProductEvent(ctx context.Context, event *ProductEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishProductEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(strconv.FormatInt(event.ProductID, 10)),
		Value:   data,
		Headers: eventHeaders(ctx, event.EventType, event.Platform),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish product event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"product_id": event.ProductID,
		"platform":   event.Platform,
	}).Debug("Published product event")

	return nil
}

// PublishRunEvent publishes a run report event to Kafka
func (p *Producer) PublishRunEvent(ctx context.Context, event *RunEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishRunEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.Platform),
		Value:   data,
		Headers: eventHeaders(ctx, event.EventType, event.Platform),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish run event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"platform":   event.Platform,
	}).Debug("Published run event")

	return nil
}

// PublishProductEvents publishes multiple product events in a batch
func (p *Producer) PublishProductEvents(ctx context.Context, events []*ProductEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishProductEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		messages[i] = kafka.Message{
			Topic:   p.topic,
			Key:     []byte(strconv.FormatInt(event.ProductID, 10)),
			Value:   data,
			Headers: eventHeaders(ctx, event.EventType, event.Platform, kafka.Header{Key: "schema_version", Value: []byte("1.0")}),
		}
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish product events batch")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
	}).Debug("Published product events batch")

	return nil
}
