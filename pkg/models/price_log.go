package models

import "time"

// PriceLog is a single append-only price/stock observation for a product.
// Rows are never updated or deleted; the history is a replayable time series.
type PriceLog struct {
	ID            int64     `json:"id" db:"id"`
	ProductID     int64     `json:"product_id" db:"product_id"`
	Price         float64   `json:"price" db:"price"`
	CampaignPrice *float64  `json:"campaign_price,omitempty" db:"campaign_price"`
	StockStatus   string    `json:"stock_status" db:"stock_status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// CreatePriceLogRequest is the request for appending a price observation.
// CampaignPrice is only set when a discounted price differs from the list price.
type CreatePriceLogRequest struct {
	ProductID     int64    `json:"product_id" validate:"required"`
	Price         float64  `json:"price"`
	CampaignPrice *float64 `json:"campaign_price,omitempty"`
	StockStatus   string   `json:"stock_status"`
}
