// Package extractor defines how platform specific crawlers turn rendered
// search result pages into normalized listings.
package extractor

import (
	"context"
	"fmt"

	"github.com/devaeterne/marketplaceint/pkg/models"
)

// ListingExtractor fetches and parses one page of search results for a term.
// Implementations own their platform's URL scheme and selectors; the returned
// page carries everything the ingest loop needs for pagination decisions.
type ListingExtractor interface {
	Platform() string
	FetchListingPage(ctx context.Context, term string, page int) (*models.ListingPage, error)
}

// DetailExtractor fetches and parses a single product detail page. Attributes
// come back in page order so the merger can keep first occurrences of
// repeated names.
type DetailExtractor interface {
	Platform() string
	FetchDetail(ctx context.Context, link string) (*models.DetailBundle, []models.AttributePair, error)
}

// Registry resolves extractors by platform name.
type Registry struct {
	listing map[string]ListingExtractor
	detail  map[string]DetailExtractor
}

// NewRegistry builds a registry from the supplied extractors.
func NewRegistry(listing []ListingExtractor, detail []DetailExtractor) *Registry {
	r := &Registry{
		listing: make(map[string]ListingExtractor, len(listing)),
		detail:  make(map[string]DetailExtractor, len(detail)),
	}
	for _, e := range listing {
		r.listing[e.Platform()] = e
	}
	for _, e := range detail {
		r.detail[e.Platform()] = e
	}
	return r
}

// Listing returns the listing extractor for a platform.
func (r *Registry) Listing(platform string) (ListingExtractor, error) {
	e, ok := r.listing[platform]
	if !ok {
		return nil, fmt.Errorf("no listing extractor registered for platform %q", platform)
	}
	return e, nil
}

// Detail returns the detail extractor for a platform.
func (r *Registry) Detail(platform string) (DetailExtractor, error) {
	e, ok := r.detail[platform]
	if !ok {
		return nil, fmt.Errorf("no detail extractor registered for platform %q", platform)
	}
	return e, nil
}

// Platforms lists every platform with a listing extractor.
func (r *Registry) Platforms() []string {
	platforms := make([]string, 0, len(r.listing))
	for p := range r.listing {
		platforms = append(platforms, p)
	}
	return platforms
}
