// Package ingest drives listing crawls and detail enrichment runs.
package ingest

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/devaeterne/marketplaceint/internal/repositories/product"
	"github.com/devaeterne/marketplaceint/pkg/database"
	ingesterr "github.com/devaeterne/marketplaceint/pkg/errors"
	"github.com/devaeterne/marketplaceint/pkg/extractor"
	"github.com/devaeterne/marketplaceint/pkg/models"
	"github.com/devaeterne/marketplaceint/pkg/normalizers"
	"github.com/devaeterne/marketplaceint/pkg/pagination"
	"github.com/devaeterne/marketplaceint/pkg/tracing"
)

// TxBeginner opens (or joins) a context-carried transaction. The item
// pipeline uses it to commit each upsert and price log pair atomically.
type TxBeginner interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

// ProductUpserter resolves raw listings to canonical product identities.
type ProductUpserter interface {
	Upsert(ctx context.Context, req models.UpsertProductRequest) (*product.UpsertResult, error)
}

// PriceAppender appends price/stock observations.
type PriceAppender interface {
	Create(ctx context.Context, req models.CreatePriceLogRequest) error
}

// TermCounter increments the per-term new product counters.
type TermCounter interface {
	IncrementCount(ctx context.Context, term, platform string, newProductCount int) error
}

// Emitter publishes lifecycle events for downstream consumers.
type Emitter interface {
	ProductCreated(ctx context.Context, p *models.Product) error
	ProductUpdated(ctx context.Context, p *models.Product) error
	RunCompleted(ctx context.Context, stats *models.RunStatistics) error
}

// Runner executes one listing crawl per platform: every term, page by page,
// item by item, sequentially. Sequential traversal is load bearing for stall
// detection, which accumulates prior page link sets per term.
type Runner struct {
	db       TxBeginner
	products ProductUpserter
	prices   PriceAppender
	terms    TermCounter
	registry *extractor.Registry
	emitter  Emitter
	maxPages int
	logger   ectologger.Logger
}

// NewRunner wires a crawl runner. emitter may be nil when event publishing is
// disabled.
func NewRunner(
	db TxBeginner,
	products ProductUpserter,
	prices PriceAppender,
	terms TermCounter,
	registry *extractor.Registry,
	emitter Emitter,
	maxPages int,
	logger ectologger.Logger,
) *Runner {
	if maxPages <= 0 {
		maxPages = pagination.DefaultMaxPages
	}
	return &Runner{
		db:       db,
		products: products,
		prices:   prices,
		terms:    terms,
		registry: registry,
		emitter:  emitter,
		maxPages: maxPages,
		logger:   logger,
	}
}

// Run crawls every term on one platform and returns the aggregated report.
// Item and page failures are isolated and counted; only a fatal engine error
// aborts the run, and it is returned alongside the partial statistics. The
// context deadline bounds the run: once it expires no new term or page work
// starts, but the in-flight item commit finishes.
func (r *Runner) Run(ctx context.Context, platform string, terms []string) (*models.RunStatistics, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Runner.Run")
	defer span.End()

	stats := &models.RunStatistics{
		Platform:  platform,
		StartedAt: time.Now().UTC(),
	}

	ext, err := r.registry.Listing(platform)
	if err != nil {
		stats.FinishedAt = time.Now().UTC()
		return stats, err
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{"platform": platform, "terms": len(terms)})
	log.Info("Starting listing crawl")

	for i, term := range terms {
		if ctx.Err() != nil {
			log.WithFields(map[string]any{"remaining_terms": len(terms) - i}).Info("Run deadline reached, stopping")
			break
		}

		newCount, termErr := r.runTerm(ctx, ext, platform, term, stats)

		if newCount > 0 {
			if err := r.terms.IncrementCount(ctx, term, platform, newCount); err != nil {
				log.WithError(err).WithFields(map[string]any{"term": term}).Error("Failed to update search term counter")
			}
		}

		if termErr != nil {
			stats.Aborted = true
			stats.FinishedAt = time.Now().UTC()
			r.emitRunCompleted(ctx, stats)
			return stats, termErr
		}
	}

	stats.FinishedAt = time.Now().UTC()
	log.WithFields(map[string]any{
		"processed":    stats.Processed,
		"new_products": stats.NewProducts,
		"errors":       stats.Errors,
		"success_rate": stats.SuccessRate(),
	}).Info("Listing crawl finished")

	r.emitRunCompleted(ctx, stats)
	return stats, nil
}

// runTerm walks one term's result pages and returns the number of new
// products it discovered. A non-nil error is always fatal.
func (r *Runner) runTerm(ctx context.Context, ext extractor.ListingExtractor, platform, term string, stats *models.RunStatistics) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Runner.runTerm")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{"platform": platform, "term": term})

	controller := pagination.NewController(r.maxPages)
	newCount := 0

	for page := 1; page <= r.maxPages; page++ {
		if ctx.Err() != nil {
			return newCount, nil
		}

		listing, err := ext.FetchListingPage(ctx, term, page)
		if err != nil {
			if ingesterr.IsFatal(err) {
				log.WithError(err).Error("Fetch engine is down, aborting run")
				return newCount, err
			}
			// A single bad page is skipped; the next one may still load.
			log.WithError(err).WithFields(map[string]any{"page": page}).Error("Failed to fetch page")
			stats.RecordFailure(models.RunFailure{Term: term, Page: page, Message: err.Error()})
			continue
		}

		decision := controller.Assess(page, listing)
		if decision.Stops() && decision != pagination.StopMaxPages {
			log.WithFields(map[string]any{"page": page, "decision": string(decision)}).Info("Stopping term traversal")
			return newCount, nil
		}

		for _, item := range listing.Items {
			isNew, itemErr := r.processItem(ctx, platform, item)
			if itemErr != nil {
				if ingesterr.IsFatal(itemErr) {
					return newCount, itemErr
				}
				stats.RecordFailure(models.RunFailure{
					Term:    term,
					Page:    page,
					ItemID:  item.PlatformProductID,
					Message: itemErr.Error(),
				})
				continue
			}
			stats.Processed++
			if isNew {
				stats.NewProducts++
				newCount++
			}
		}

		if decision.Stops() {
			log.WithFields(map[string]any{"page": page, "decision": string(decision)}).Info("Stopping term traversal")
			return newCount, nil
		}
	}

	return newCount, nil
}

// processItem normalizes one raw listing and persists the identity upsert and
// the price observation as a single transaction. A failure rolls back both
// writes, leaving no partial item state.
func (r *Runner) processItem(ctx context.Context, platform string, item models.RawListing) (bool, error) {
	price, campaign := normalizePrices(item)

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return false, ingesterr.NewPersistenceError(err, "failed to begin item transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := r.products.Upsert(txCtx, models.UpsertProductRequest{
		Platform:          platform,
		PlatformProductID: item.PlatformProductID,
		ProductLink:       item.Link,
		Title:             item.Title,
		Brand:             item.Brand,
	})
	if err != nil {
		return false, err
	}

	if err := r.prices.Create(txCtx, models.CreatePriceLogRequest{
		ProductID:     result.Product.ID,
		Price:         price,
		CampaignPrice: campaign,
		StockStatus:   item.StockText,
	}); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, ingesterr.NewPersistenceError(err, "failed to commit item transaction")
	}

	r.emitProduct(ctx, result)
	return result.IsNew, nil
}

// normalizePrices turns the raw price texts into the observation values. A
// listing that only shows a discounted price uses it as the list price too;
// the campaign price stays unset when no discount is rendered.
func normalizePrices(item models.RawListing) (float64, *float64) {
	var campaign *float64
	if item.CampaignPriceText != "" {
		v := normalizers.Price(item.CampaignPriceText)
		campaign = &v
	}

	price := normalizers.Price(item.PriceText)
	if item.PriceText == "" && campaign != nil {
		price = *campaign
	}
	return price, campaign
}

func (r *Runner) emitProduct(ctx context.Context, result *product.UpsertResult) {
	if r.emitter == nil {
		return
	}
	var err error
	if result.IsNew {
		err = r.emitter.ProductCreated(ctx, result.Product)
	} else {
		err = r.emitter.ProductUpdated(ctx, result.Product)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"product_id": result.Product.ID}).Error("Failed to emit product event")
	}
}

func (r *Runner) emitRunCompleted(ctx context.Context, stats *models.RunStatistics) {
	if r.emitter == nil {
		return
	}
	if err := r.emitter.RunCompleted(ctx, stats); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to emit run completed event")
	}
}
