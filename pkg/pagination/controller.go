// Package pagination decides how far to walk a paginated search result set.
package pagination

import (
	"github.com/devaeterne/marketplaceint/pkg/models"
)

// DefaultMaxPages bounds the crawl depth per term. Result sets beyond this
// are sorted noise; the crawl runs price ascending so the cheapest offers are
// always in the first pages.
const DefaultMaxPages = 5

// Decision is the controller's verdict after seeing one fetched page.
type Decision string

const (
	// Continue means the next page should be fetched.
	Continue Decision = "CONTINUE"
	// StopEmpty means the page carried no items; the result set is exhausted.
	StopEmpty Decision = "STOP_EMPTY"
	// StopNoPagination means a non-first page is missing the pagination
	// affordance the source normally renders while more pages exist.
	StopNoPagination Decision = "STOP_NO_PAGINATION"
	// StopDuplicate means the page only repeated links already seen. Some
	// sources serve the last page again instead of signaling the end.
	StopDuplicate Decision = "STOP_DUPLICATE"
	// StopMaxPages means the page bound was reached.
	StopMaxPages Decision = "STOP_MAX_PAGES"
)

// Stops reports whether the decision ends traversal for the current term.
func (d Decision) Stops() bool {
	return d != Continue
}

// Controller tracks traversal state for one term. Stall detection depends on
// the accumulated union of prior pages' link sets, so a controller must not
// be shared across terms or used for pages out of order.
type Controller struct {
	maxPages  int
	seenLinks map[string]struct{}
}

// NewController creates a controller for a single term's traversal.
func NewController(maxPages int) *Controller {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Controller{
		maxPages:  maxPages,
		seenLinks: make(map[string]struct{}),
	}
}

// Assess inspects the page fetched at pageNum (1-based) and decides whether
// traversal continues. A page stopped at the bound still carries fresh items;
// the other stop reasons mean the page holds nothing new worth processing.
func (c *Controller) Assess(pageNum int, page *models.ListingPage) Decision {
	if page == nil || len(page.Items) == 0 {
		return StopEmpty
	}
	if pageNum > 1 && !page.HasPagination {
		return StopNoPagination
	}
	if pageNum > 1 && c.allSeen(page.Links) {
		return StopDuplicate
	}

	for _, link := range page.Links {
		c.seenLinks[link] = struct{}{}
	}

	if pageNum >= c.maxPages {
		return StopMaxPages
	}
	return Continue
}

// allSeen reports whether every link on the page was already seen on a prior
// page. Pages without any links cannot prove freshness and count as stalled.
func (c *Controller) allSeen(links []string) bool {
	for _, link := range links {
		if _, ok := c.seenLinks[link]; !ok {
			return false
		}
	}
	return true
}
