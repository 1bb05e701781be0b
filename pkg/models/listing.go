package models

// RawListing is a single unnormalized item extracted from a listing page.
// PriceText and CampaignPriceText carry the raw currency strings as shown on
// the page; normalization happens downstream.
type RawListing struct {
	PlatformProductID string `json:"platform_product_id"`
	Link              string `json:"link"`
	Title             string `json:"title"`
	Brand             string `json:"brand"`
	PriceText         string `json:"price_text"`
	CampaignPriceText string `json:"campaign_price_text,omitempty"`
	StockText         string `json:"stock_text"`
}

// ListingPage is the result of fetching one page of search results.
type ListingPage struct {
	Items []RawListing `json:"items"`
	// Links is the set of item links on the page, used for stall detection.
	Links []string `json:"links"`
	// HasPagination reports whether the page carries the pagination affordance
	// the source normally provides. Sources that omit it on a non-first page
	// have run out of results.
	HasPagination bool `json:"has_pagination"`
}
