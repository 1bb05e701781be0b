package models

import "time"

// ProductDetail holds the enrichment data for a product, one row per product.
// Every successful detail pass overwrites all fields wholesale; the latest
// pass is the source of truth.
type ProductDetail struct {
	ID           int64     `json:"id" db:"id"`
	ProductID    int64     `json:"product_id" db:"product_id"`
	Description  *string   `json:"description,omitempty" db:"description"`
	StoreName    *string   `json:"store_name,omitempty" db:"store_name"`
	StoreRating  float64   `json:"store_rating" db:"store_rating"`
	ShippingInfo *string   `json:"shipping_info,omitempty" db:"shipping_info"`
	FreeShipping bool      `json:"free_shipping" db:"free_shipping"`
	Rating       float64   `json:"rating" db:"rating"`
	ProductType  *string   `json:"product_type,omitempty" db:"product_type"`
	ImageURL     *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ProductAttribute is one name/value pair of a product's attribute set.
// The set is replaced atomically (delete-all, re-insert) on each successful
// detail pass; it is never partially merged.
type ProductAttribute struct {
	ID             int64     `json:"id" db:"id"`
	ProductID      int64     `json:"product_id" db:"product_id"`
	AttributeName  string    `json:"attribute_name" db:"attribute_name"`
	AttributeValue string    `json:"attribute_value" db:"attribute_value"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// AttributePair is one extracted attribute in page order. Order matters:
// when a page repeats an attribute name, the first occurrence wins.
type AttributePair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DetailBundle is the payload extracted from one product detail page.
// Any field may be absent; a successful pass still overwrites the stored
// detail row with exactly these values.
type DetailBundle struct {
	Description  *string `json:"description,omitempty"`
	StoreName    *string `json:"store_name,omitempty"`
	StoreRating  float64 `json:"store_rating"`
	ShippingInfo *string `json:"shipping_info,omitempty"`
	FreeShipping bool    `json:"free_shipping"`
	Rating       float64 `json:"rating"`
	ProductType  *string `json:"product_type,omitempty"`
	ImageURL     *string `json:"image_url,omitempty"`
}
