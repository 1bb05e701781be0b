package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	ingesterr "github.com/devaeterne/marketplaceint/pkg/errors"
	"github.com/devaeterne/marketplaceint/pkg/extractor"
	"github.com/devaeterne/marketplaceint/pkg/models"
	"github.com/devaeterne/marketplaceint/pkg/tracing"
)

// PendingLister finds products that still need a detail pass.
type PendingLister interface {
	ListPendingDetails(ctx context.Context, platform string, limit int) ([]models.Product, error)
}

// DetailMerger applies one successful detail pass atomically.
type DetailMerger interface {
	Merge(ctx context.Context, productID int64, bundle models.DetailBundle, attrs []models.AttributePair) error
}

// Enricher runs the detail pass: for each product missing enrichment it
// fetches the product page and merges the extracted bundle. A failed fetch or
// parse writes nothing; the product stays pending for the next run.
type Enricher struct {
	products PendingLister
	details  DetailMerger
	registry *extractor.Registry
	logger   ectologger.Logger
}

// NewEnricher wires a detail pass runner.
func NewEnricher(products PendingLister, details DetailMerger, registry *extractor.Registry, logger ectologger.Logger) *Enricher {
	return &Enricher{
		products: products,
		details:  details,
		registry: registry,
		logger:   logger,
	}
}

// Run enriches up to limit pending products on one platform. Per item
// failures are isolated and counted; a fatal engine error aborts the run and
// is returned with the partial statistics.
func (e *Enricher) Run(ctx context.Context, platform string, limit int) (*models.RunStatistics, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Enricher.Run")
	defer span.End()

	stats := &models.RunStatistics{
		Platform:  platform,
		StartedAt: time.Now().UTC(),
	}

	det, err := e.registry.Detail(platform)
	if err != nil {
		stats.FinishedAt = time.Now().UTC()
		return stats, err
	}

	pending, err := e.products.ListPendingDetails(ctx, platform, limit)
	if err != nil {
		stats.FinishedAt = time.Now().UTC()
		return stats, err
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{"platform": platform, "pending": len(pending)})
	log.Info("Starting detail pass")

	for _, p := range pending {
		if ctx.Err() != nil {
			log.Info("Run deadline reached, stopping detail pass")
			break
		}

		if p.ProductLink == nil || !strings.HasPrefix(*p.ProductLink, "http") {
			stats.RecordFailure(models.RunFailure{
				ItemID:  p.PlatformProductID,
				Message: "product link is missing or not an absolute URL",
			})
			continue
		}

		bundle, attrs, err := det.FetchDetail(ctx, *p.ProductLink)
		if err != nil {
			if ingesterr.IsFatal(err) {
				log.WithError(err).Error("Fetch engine is down, aborting detail pass")
				stats.Aborted = true
				stats.FinishedAt = time.Now().UTC()
				return stats, err
			}
			stats.RecordFailure(models.RunFailure{ItemID: p.PlatformProductID, Message: err.Error()})
			continue
		}

		if err := e.details.Merge(ctx, p.ID, *bundle, attrs); err != nil {
			stats.RecordFailure(models.RunFailure{ItemID: p.PlatformProductID, Message: err.Error()})
			continue
		}

		stats.Processed++
	}

	stats.FinishedAt = time.Now().UTC()
	log.WithFields(map[string]any{
		"processed":    stats.Processed,
		"errors":       stats.Errors,
		"success_rate": stats.SuccessRate(),
	}).Info("Detail pass finished")

	return stats, nil
}
