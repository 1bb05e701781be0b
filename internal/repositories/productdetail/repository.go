package productdetail

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

// Repository merges detail-pass results into product_details and
// product_attributes
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new product detail repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Merge applies one successful detail pass: the detail row is upserted with
// every field overwritten by this pass's values, then the attribute set is
// replaced wholesale (delete all, re-insert). Both happen in one transaction,
// so a failed pass leaves the previous detail and attributes untouched.
//
// Repeated attribute names keep their first occurrence.
func (r *Repository) Merge(ctx context.Context, productID int64, bundle models.DetailBundle, attrs []models.AttributePair) error {
	ctx, span := tracing.StartSpan(ctx, "productdetail.Repository.Merge")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":     "Merge",
		"product_id": productID,
	})

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return ingesterr.NewPersistenceError(err, "failed to begin detail transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	detailQuery := `
		INSERT INTO product_details (
			product_id, description, store_name, store_rating, shipping_info,
			free_shipping, rating, product_type, image_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (product_id) DO UPDATE SET
			description = EXCLUDED.description,
			store_name = EXCLUDED.store_name,
			store_rating = EXCLUDED.store_rating,
			shipping_info = EXCLUDED.shipping_info,
			free_shipping = EXCLUDED.free_shipping,
			rating = EXCLUDED.rating,
			product_type = EXCLUDED.product_type,
			image_url = EXCLUDED.image_url,
			updated_at = NOW()
	`

	if _, err := tx.ExecContext(txCtx, detailQuery,
		productID, bundle.Description, bundle.StoreName, bundle.StoreRating, bundle.ShippingInfo,
		bundle.FreeShipping, bundle.Rating, bundle.ProductType, bundle.ImageURL,
	); err != nil {
		log.WithError(err).Error("Failed to upsert product detail")
		return ingesterr.NewPersistenceError(err, "failed to upsert product detail")
	}

	if _, err := tx.ExecContext(txCtx, `DELETE FROM product_attributes WHERE product_id = $1`, productID); err != nil {
		log.WithError(err).Error("Failed to clear product attributes")
		return ingesterr.NewPersistenceError(err, "failed to clear product attributes")
	}

	seen := make(map[string]struct{}, len(attrs))
	inserted := 0
	for _, attr := range attrs {
		if attr.Name == "" {
			continue
		}
		if _, ok := seen[attr.Name]; ok {
			log.WithFields(map[string]any{"attribute_name": attr.Name}).Debug("Skipping repeated attribute")
			continue
		}
		seen[attr.Name] = struct{}{}

		if _, err := tx.ExecContext(txCtx,
			`INSERT INTO product_attributes (product_id, attribute_name, attribute_value, created_at) VALUES ($1, $2, $3, NOW())`,
			productID, attr.Name, attr.Value,
		); err != nil {
			log.WithError(err).WithFields(map[string]any{"attribute_name": attr.Name}).Error("Failed to insert product attribute")
			return ingesterr.NewPersistenceError(err, "failed to insert product attribute")
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return ingesterr.NewPersistenceError(err, "failed to commit detail transaction")
	}

	log.WithFields(map[string]any{"attribute_count": inserted}).Info("Merged product detail")
	return nil
}

// Get retrieves the detail row for a product. Returns nil when no detail pass
// has completed yet.
func (r *Repository) Get(ctx context.Context, productID int64) (*models.ProductDetail, error) {
	ctx, span := tracing.StartSpan(ctx, "productdetail.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "product_id", "description", "store_name", "store_rating", "shipping_info", "free_shipping", "rating", "product_type", "image_url", "created_at", "updated_at")
	sb.From("product_details")
	sb.Where(sb.Equal("product_id", productID))
	sb.Limit(1)

	query, args := sb.Build()
	var detail models.ProductDetail
	q := database.RunnerFromContext(ctx, r.db)
	if err := q.GetContext(ctx, &detail, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"product_id": productID}).Error("Failed to get product detail")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get product detail")
	}
	return &detail, nil
}

// Attributes returns the current attribute set for a product.
func (r *Repository) Attributes(ctx context.Context, productID int64) ([]models.ProductAttribute, error) {
	ctx, span := tracing.StartSpan(ctx, "productdetail.Repository.Attributes")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "product_id", "attribute_name", "attribute_value", "created_at")
	sb.From("product_attributes")
	sb.Where(sb.Equal("product_id", productID))
	sb.OrderBy("attribute_name")

	query, args := sb.Build()
	var attrs []models.ProductAttribute
	q := database.RunnerFromContext(ctx, r.db)
	if err := q.SelectContext(ctx, &attrs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"product_id": productID}).Error("Failed to load product attributes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load product attributes")
	}
	return attrs, nil
}
