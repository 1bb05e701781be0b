package product

import (
	"context"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	ingesterr "github.com/devaeterne/marketplaceint/pkg/errors"
	"github.com/devaeterne/marketplaceint/pkg/database"
	"github.com/devaeterne/marketplaceint/pkg/models"
	"github.com/devaeterne/marketplaceint/pkg/tracing"
)

// Repository handles canonical product identity persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new product repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// UpsertResult contains the result of an upsert operation
type UpsertResult struct {
	Product *models.Product
	IsNew   bool
}

// Upsert creates or refreshes a product identity keyed on
// (platform, platform_product_id) in a single atomic statement. The mutable
// fields (link, title, brand) always take the incoming values; (xmax = 0)
// distinguishes a fresh insert from a refresh without a second round-trip.
//
// A blank natural key is an identity error: the item must be skipped with no
// rows written, so validation happens before any statement is issued.
func (r *Repository) Upsert(ctx context.Context, req models.UpsertProductRequest) (*UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Upsert")
	defer span.End()

	if strings.TrimSpace(req.PlatformProductID) == "" {
		return nil, ingesterr.NewIdentityErrorf("platform_product_id is missing or blank")
	}
	if strings.TrimSpace(req.Platform) == "" {
		return nil, ingesterr.NewIdentityErrorf("platform is required")
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":              "Upsert",
		"platform":            req.Platform,
		"platform_product_id": req.PlatformProductID,
	})

	query := `
		INSERT INTO products (platform, platform_product_id, product_link, title, brand, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (platform, platform_product_id) DO UPDATE SET
			product_link = EXCLUDED.product_link,
			title = EXCLUDED.title,
			brand = EXCLUDED.brand,
			updated_at = NOW()
		RETURNING
			id, platform, platform_product_id, product_link, title, brand,
			created_at, updated_at,
			(xmax = 0) AS inserted
	`

	var result struct {
		models.Product
		Inserted bool `db:"inserted"`
	}

	q := database.RunnerFromContext(ctx, r.db)
	err := q.GetContext(ctx, &result, query,
		req.Platform, req.PlatformProductID, nilIfEmpty(req.ProductLink), req.Title, req.Brand,
	)
	if err != nil {
		log.WithError(err).Error("Failed to upsert product")
		return nil, ingesterr.NewPersistenceError(err, "failed to upsert product")
	}

	if result.Inserted {
		log.WithFields(map[string]any{"id": result.ID}).Info("Created product")
	} else {
		log.WithFields(map[string]any{"id": result.ID}).Debug("Refreshed product")
	}

	return &UpsertResult{Product: &result.Product, IsNew: result.Inserted}, nil
}

// GetByPlatformID retrieves a product by its natural key. Returns nil when no
// product matches.
func (r *Repository) GetByPlatformID(ctx context.Context, platform, platformProductID string) (*models.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.GetByPlatformID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "platform", "platform_product_id", "product_link", "title", "brand", "created_at", "updated_at")
	sb.From("products")
	sb.Where(
		sb.Equal("platform", platform),
		sb.Equal("platform_product_id", platformProductID),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var product models.Product
	q := database.RunnerFromContext(ctx, r.db)
	if err := q.GetContext(ctx, &product, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"platform": platform, "platform_product_id": platformProductID}).Error("Failed to get product by platform id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get product")
	}
	return &product, nil
}

// ListPendingDetails returns products on a platform that have a link but no
// detail row yet, newest first. These are the enrichment pass candidates.
func (r *Repository) ListPendingDetails(ctx context.Context, platform string, limit int) ([]models.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.ListPendingDetails")
	defer span.End()

	if limit < 1 {
		limit = 100
	}

	query := `
		SELECT id, platform, platform_product_id, product_link, title, brand, created_at, updated_at
		FROM products
		WHERE platform = $1
		  AND product_link IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM product_details WHERE product_details.product_id = products.id
		  )
		ORDER BY created_at DESC
		LIMIT $2
	`

	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query, platform, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"platform": platform}).Error("Failed to list products pending details")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list products")
	}
	return products, nil
}

// List retrieves products for a platform with pagination
func (r *Repository) List(ctx context.Context, platform string, page, pageSize int) (*models.ProductListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	countSb := database.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("products")
	if platform != "" {
		countSb.Where(countSb.Equal("platform", platform))
	}

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"platform": platform}).Error("Failed to count products")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count products")
	}

	sb := database.NewSelectBuilder()
	sb.Select("id", "platform", "platform_product_id", "product_link", "title", "brand", "created_at", "updated_at")
	sb.From("products")
	if platform != "" {
		sb.Where(sb.Equal("platform", platform))
	}
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"platform": platform, "page": page, "page_size": pageSize}).Error("Failed to list products")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list products")
	}

	return &models.ProductListResponse{
		Items:      products,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func nilIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
