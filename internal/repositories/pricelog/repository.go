package pricelog

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/devaeterne/marketplaceint/pkg/database"
	ingesterr "github.com/devaeterne/marketplaceint/pkg/errors"
	"github.com/devaeterne/marketplaceint/pkg/models"
	"github.com/devaeterne/marketplaceint/pkg/tracing"
)

// Repository handles the append-only price observation log
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new price log repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create appends one observation row with a server-assigned timestamp. Prior
// rows are never mutated or removed.
func (r *Repository) Create(ctx context.Context, req models.CreatePriceLogRequest) error {
	ctx, span := tracing.StartSpan(ctx, "pricelog.Repository.Create")
	defer span.End()

	if req.ProductID == 0 {
		return ingesterr.NewPersistenceError(nil, "product_id is required")
	}

	query := `
		INSERT INTO product_price_logs (product_id, price, campaign_price, stock_status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	q := database.RunnerFromContext(ctx, r.db)
	if _, err := q.ExecContext(ctx, query, req.ProductID, req.Price, req.CampaignPrice, req.StockStatus); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"product_id": req.ProductID}).Error("Failed to insert price log")
		return ingesterr.NewPersistenceError(err, "failed to insert price log")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"product_id":     req.ProductID,
		"price":          req.Price,
		"campaign_price": req.CampaignPrice,
	}).Debug("Appended price observation")

	return nil
}

// History returns the observations for a product, newest first.
func (r *Repository) History(ctx context.Context, productID int64, limit int) ([]models.PriceLog, error) {
	ctx, span := tracing.StartSpan(ctx, "pricelog.Repository.History")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := database.NewSelectBuilder()
	sb.Select("id", "product_id", "price", "campaign_price", "stock_status", "created_at")
	sb.From("product_price_logs")
	sb.Where(sb.Equal("product_id", productID))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var logs []models.PriceLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"product_id": productID}).Error("Failed to load price history")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load price history")
	}
	return logs, nil
}
