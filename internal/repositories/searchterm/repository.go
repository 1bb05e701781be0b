package searchterm

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

// Repository tracks per-term counters of newly discovered products
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new search term repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// IncrementCount adds newProductCount to the (term, platform) counter in one
// atomic upsert. A zero or negative count is a no-op, not a zero-increment
// write. The counter is monotonic; it is never decremented or reset here.
func (r *Repository) IncrementCount(ctx context.Context, term, platform string, newProductCount int) error {
	ctx, span := tracing.StartSpan(ctx, "searchterm.Repository.IncrementCount")
	defer span.End()

	if newProductCount <= 0 {
		return nil
	}

	query := `
		INSERT INTO search_terms (term, platform, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (term, platform)
		DO UPDATE SET count = search_terms.count + EXCLUDED.count
	`

	q := database.RunnerFromContext(ctx, r.db)
	if _, err := q.ExecContext(ctx, query, term, platform, newProductCount); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"term": term, "platform": platform}).Error("Failed to increment search term count")
		return ingesterr.NewPersistenceError(err, "failed to increment search term count")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"term":      term,
		"platform":  platform,
		"increment": newProductCount,
	}).Info("Incremented search term counter")

	return nil
}

// Get returns the counter row for (term, platform), or nil when the term has
// never produced a new product on that platform.
func (r *Repository) Get(ctx context.Context, term, platform string) (*models.SearchTerm, error) {
	ctx, span := tracing.StartSpan(ctx, "searchterm.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "term", "platform", "count")
	sb.From("search_terms")
	sb.Where(
		sb.Equal("term", term),
		sb.Equal("platform", platform),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var st models.SearchTerm
	q := database.RunnerFromContext(ctx, r.db)
	if err := q.GetContext(ctx, &st, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"term": term, "platform": platform}).Error("Failed to get search term")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get search term")
	}
	return &st, nil
}
