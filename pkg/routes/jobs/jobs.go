// Package jobs exposes the crawl trigger surface. Ingest and enrich runs are
// independent, idempotent and re-runnable; each request executes one bounded
// run and returns the aggregated report.
package jobs

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	ingesterr "github.com/devaeterne/marketplaceint/pkg/errors"
	"github.com/devaeterne/marketplaceint/pkg/ingest"
	"github.com/devaeterne/marketplaceint/pkg/models"
)

const defaultEnrichLimit = 100

// IngestRunner runs a listing crawl across search terms.
type IngestRunner interface {
	Run(ctx context.Context, platform string, terms []string) (*models.RunStatistics, error)
}

// EnrichRunner runs a detail pass over pending products.
type EnrichRunner interface {
	Run(ctx context.Context, platform string, limit int) (*models.RunStatistics, error)
}

// Handler runs crawl jobs on demand
type Handler struct {
	runner      IngestRunner
	enricher    EnrichRunner
	termsPath   string
	jobTimeout  time.Duration
	enrichLimit int
	logger      ectologger.Logger
}

// NewHandler creates a new jobs handler. enrichLimit caps how many pending
// products one enrich run visits when the request does not say otherwise;
// zero or negative falls back to the built-in default.
func NewHandler(runner IngestRunner, enricher EnrichRunner, termsPath string, jobTimeout time.Duration, enrichLimit int, logger ectologger.Logger) *Handler {
	if enrichLimit <= 0 {
		enrichLimit = defaultEnrichLimit
	}
	return &Handler{
		runner:      runner,
		enricher:    enricher,
		termsPath:   termsPath,
		jobTimeout:  jobTimeout,
		enrichLimit: enrichLimit,
		logger:      logger,
	}
}

// RegisterRoutes registers job trigger endpoints
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/jobs/ingest/:platform", h.TriggerIngest)
	g.POST("/jobs/enrich/:platform", h.TriggerEnrich)
}

// TriggerResponse carries the run report back to the caller.
type TriggerResponse struct {
	Report *models.RunStatistics `json:"report"`
	Error  string                `json:"error,omitempty"`
}

// TriggerIngestRequest optionally overrides the configured term list for a
// single run. An empty body means crawl every term from the terms file.
type TriggerIngestRequest struct {
	Terms []string `json:"terms" validate:"omitempty,dive,required"`
}

// TriggerIngest runs a listing crawl for one platform across all configured
// search terms. The run is bounded by the job timeout; on deadline the report
// covers the work completed so far.
func (h *Handler) TriggerIngest(c echo.Context) error {
	ctx := c.Request().Context()

	platform := c.Param("platform")
	if platform == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "platform is required")
	}

	var req TriggerIngestRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if err := c.Validate(&req); err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	terms := req.Terms
	if len(terms) == 0 {
		var err error
		terms, err = ingest.LoadTerms(h.termsPath)
		if err != nil {
			h.logger.WithContext(ctx).WithError(err).Error("Failed to load search terms")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to load search terms")
		}
	}
	if len(terms) == 0 {
		return httperror.NewHTTPError(http.StatusUnprocessableEntity, "no search terms configured")
	}

	runCtx, cancel := context.WithTimeout(ctx, h.jobTimeout)
	defer cancel()

	stats, err := h.runner.Run(runCtx, platform, terms)
	return h.respond(c, stats, err)
}

// TriggerEnrich runs a detail pass for one platform. The optional limit query
// parameter caps how many pending products are visited.
func (h *Handler) TriggerEnrich(c echo.Context) error {
	ctx := c.Request().Context()

	platform := c.Param("platform")
	if platform == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "platform is required")
	}

	limit := h.enrichLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	runCtx, cancel := context.WithTimeout(ctx, h.jobTimeout)
	defer cancel()

	stats, err := h.enricher.Run(runCtx, platform, limit)
	return h.respond(c, stats, err)
}

// respond maps a run outcome to a response. An aborted run still returns its
// partial report so the caller can see what committed before the failure.
func (h *Handler) respond(c echo.Context, stats *models.RunStatistics, err error) error {
	if err == nil {
		return c.JSON(http.StatusOK, TriggerResponse{Report: stats})
	}

	if ingesterr.IsFatal(err) {
		return c.JSON(http.StatusBadGateway, TriggerResponse{Report: stats, Error: err.Error()})
	}

	// Anything else at this level is a setup problem, e.g. an unknown platform.
	return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
}
