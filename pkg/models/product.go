package models

import "time"

// Product is the canonical identity for a marketplace listing.
// Uniqueness is enforced on (platform, platform_product_id); every child row
// references the internal id, so a later change of link or title cannot
// fracture price history.
type Product struct {
	ID                int64     `json:"id" db:"id"`
	Platform          string    `json:"platform" db:"platform"`
	PlatformProductID string    `json:"platform_product_id" db:"platform_product_id"`
	ProductLink       *string   `json:"product_link,omitempty" db:"product_link"`
	Title             string    `json:"title" db:"title"`
	Brand             string    `json:"brand" db:"brand"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// UpsertProductRequest is the request for creating/refreshing a product identity
type UpsertProductRequest struct {
	Platform          string `json:"platform" validate:"required"`
	PlatformProductID string `json:"platform_product_id" validate:"required"`
	ProductLink       string `json:"product_link"`
	Title             string `json:"title"`
	Brand             string `json:"brand"`
}

// ProductListResponse is the response for listing products
type ProductListResponse struct {
	Items      []Product `json:"items"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}
