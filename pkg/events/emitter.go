// Package events publishes product lifecycle and run report events.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/devaeterne/marketplaceint/pkg/kafka"
	"github.com/devaeterne/marketplaceint/pkg/models"
	"github.com/devaeterne/marketplaceint/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes crawl outcomes to Kafka so downstream consumers (pricing
// dashboards, alerting) can react without polling the database.
type Emitter struct {
	products *kafka.Producer
	runs     *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates an event emitter. Product lifecycle events and run
// reports go to separate topics, so each gets its own producer.
func NewEmitter(products *kafka.Producer, runs *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		products: products,
		runs:     runs,
		logger:   logger,
	}
}

// ProductCreated emits a product.created event for a first sighting.
func (e *Emitter) ProductCreated(ctx context.Context, product *models.Product) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ProductCreated")
	defer span.End()

	return e.emitProduct(ctx, "product.created", product)
}

// ProductUpdated emits a product.updated event for a refreshed identity.
func (e *Emitter) ProductUpdated(ctx context.Context, product *models.Product) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.ProductUpdated")
	defer span.End()

	return e.emitProduct(ctx, "product.updated", product)
}

func (e *Emitter) emitProduct(ctx context.Context, eventType string, product *models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}

	event := &kafka.ProductEvent{
		EventType:         eventType,
		Platform:          product.Platform,
		ProductID:         product.ID,
		PlatformProductID: product.PlatformProductID,
		Data:              data,
	}

	if err := e.products.PublishProductEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}

	return nil
}

// RunCompleted emits the aggregated report of a finished run, aborted or not.
func (e *Emitter) RunCompleted(ctx context.Context, stats *models.RunStatistics) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.RunCompleted")
	defer span.End()

	report := map[string]any{
		"schema_version": SchemaVersion,
		"processed":      stats.Processed,
		"new_products":   stats.NewProducts,
		"errors":         stats.Errors,
		"success_rate":   stats.SuccessRate(),
		"aborted":        stats.Aborted,
		"started_at":     stats.StartedAt,
		"finished_at":    stats.FinishedAt,
	}
	if len(stats.Failures) > 0 {
		report["failures"] = stats.Failures
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return err
	}

	event := &kafka.RunEvent{
		EventType: "run.completed",
		Platform:  stats.Platform,
		Report:    reportJSON,
	}

	if err := e.runs.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run.completed event")
		return err
	}

	return nil
}
