// Package product exposes the read side of the catalog: listings, price
// history and enrichment data.
package product

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	productrepo "github.com/devaeterne/marketplaceint/internal/repositories/product"
	"github.com/devaeterne/marketplaceint/internal/repositories/pricelog"
	"github.com/devaeterne/marketplaceint/internal/repositories/productdetail"
	"github.com/devaeterne/marketplaceint/pkg/models"
)

// Handler serves product read endpoints
type Handler struct {
	products *productrepo.Repository
	prices   *pricelog.Repository
	details  *productdetail.Repository
}

// NewHandler creates a new product handler
func NewHandler(products *productrepo.Repository, prices *pricelog.Repository, details *productdetail.Repository) *Handler {
	return &Handler{
		products: products,
		prices:   prices,
		details:  details,
	}
}

// RegisterRoutes registers product read endpoints
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/products", h.List)
	g.GET("/products/:platform/:platformProductID", h.Get)
	g.GET("/products/:platform/:platformProductID/prices", h.PriceHistory)
}

// List returns a page of products, optionally filtered by platform.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	result, err := h.products.List(ctx, c.QueryParam("platform"), page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ProductResponse combines the identity with its enrichment data.
type ProductResponse struct {
	Product    *models.Product           `json:"product"`
	Detail     *models.ProductDetail     `json:"detail,omitempty"`
	Attributes []models.ProductAttribute `json:"attributes,omitempty"`
}

// Get returns one product by its natural key, with detail and attributes when
// a detail pass has completed.
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	platform := c.Param("platform")
	platformProductID := c.Param("platformProductID")

	p, err := h.products.GetByPlatformID(ctx, platform, platformProductID)
	if err != nil {
		return err
	}
	if p == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "product not found")
	}

	detail, err := h.details.Get(ctx, p.ID)
	if err != nil {
		return err
	}

	resp := ProductResponse{Product: p, Detail: detail}
	if detail != nil {
		attrs, err := h.details.Attributes(ctx, p.ID)
		if err != nil {
			return err
		}
		resp.Attributes = attrs
	}

	return c.JSON(http.StatusOK, resp)
}

// PriceHistory returns the observations for a product, newest first.
func (h *Handler) PriceHistory(c echo.Context) error {
	ctx := c.Request().Context()

	p, err := h.products.GetByPlatformID(ctx, c.Param("platform"), c.Param("platformProductID"))
	if err != nil {
		return err
	}
	if p == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "product not found")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	history, err := h.prices.History(ctx, p.ID, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, history)
}
