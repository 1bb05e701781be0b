// Package n11 crawls N11 search results and product detail pages.
package n11

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/PuerkitoBio/goquery"

	"github.com/devaeterne/marketplaceint/pkg/browser"
	ingesterr "github.com/devaeterne/marketplaceint/pkg/errors"
	"github.com/devaeterne/marketplaceint/pkg/models"
	"github.com/devaeterne/marketplaceint/pkg/normalizers"
	"github.com/devaeterne/marketplaceint/pkg/tracing"
)

const (
	platformName = "n11"
	baseURL      = "https://www.n11.com"
)

// outOfStockMarkers are matched case insensitively against the whole card
// text; N11 has no dedicated stock element on listing cards.
var outOfStockMarkers = []string{"tükendi", "stokta yok", "mevcut değil"}

// Extractor crawls N11 listing and detail pages.
type Extractor struct {
	fetcher browser.Fetcher
	logger  ectologger.Logger
}

// New creates an N11 extractor backed by the given fetcher.
func New(fetcher browser.Fetcher, logger ectologger.Logger) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Platform returns the platform identifier stored with every product.
func (e *Extractor) Platform() string {
	return platformName
}

// SearchURL builds the price-ascending search URL for a term and page.
func SearchURL(term string, page int) string {
	return fmt.Sprintf("%s/arama?q=%s&srt=PRICE_LOW&pg=%d", baseURL, url.QueryEscape(term), page)
}

// FetchListingPage retrieves and parses one page of search results.
func (e *Extractor) FetchListingPage(ctx context.Context, term string, page int) (*models.ListingPage, error) {
	ctx, span := tracing.StartSpan(ctx, "n11.Extractor.FetchListingPage")
	defer span.End()

	pageURL := SearchURL(term, page)
	e.logger.WithContext(ctx).WithFields(map[string]any{"term": term, "page": page, "url": pageURL}).Info("Fetching listing page")

	html, err := e.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	return ParseListing(html)
}

// ParseListing extracts raw listings from a rendered search result document.
// N11 renders a pagination bar only while more pages exist; past the last
// page the bar disappears and the site serves the first page again, so both
// the affordance and the link set matter for stopping.
func ParseListing(html string) (*models.ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, ingesterr.NewExtractionErrorf("failed to parse listing document: %v", err)
	}

	page := &models.ListingPage{
		HasPagination: doc.Find("div.paginationArea").Length() > 0,
	}

	doc.Find("div.productArea li.column").Each(func(_ int, card *goquery.Selection) {
		anchor := card.Find("a.plink").First()
		if anchor.Length() == 0 {
			return
		}

		link, _ := anchor.Attr("href")
		if link != "" && !strings.HasPrefix(link, "http") {
			link = baseURL + link
		}
		id, _ := anchor.Attr("data-id")

		title := normalizers.Text(card.Find("h3.productName").First().Text())
		if title == "" {
			title = "Başlık bulunamadı"
		}

		brand, _ := card.Find("input.sellerNickName").First().Attr("value")
		if brand == "" {
			brand = "Bilinmeyen"
		}

		priceText := normalizers.Text(card.Find("span.newPrice ins").First().Text())

		stock := "Mevcut"
		cardText := strings.ToLower(card.Text())
		for _, marker := range outOfStockMarkers {
			if strings.Contains(cardText, marker) {
				stock = "Tükendi"
				break
			}
		}

		page.Items = append(page.Items, models.RawListing{
			PlatformProductID: id,
			Link:              link,
			Title:             title,
			Brand:             brand,
			PriceText:         priceText,
			StockText:         stock,
		})
		if link != "" {
			page.Links = append(page.Links, link)
		}
	})

	return page, nil
}

// FetchDetail retrieves and parses a product detail page.
func (e *Extractor) FetchDetail(ctx context.Context, link string) (*models.DetailBundle, []models.AttributePair, error) {
	ctx, span := tracing.StartSpan(ctx, "n11.Extractor.FetchDetail")
	defer span.End()

	e.logger.WithContext(ctx).WithFields(map[string]any{"url": link}).Info("Fetching detail page")

	html, err := e.fetcher.FetchHTML(ctx, link)
	if err != nil {
		return nil, nil, err
	}

	return ParseDetail(html)
}

// imageSelectors are tried in order; N11 has shipped several gallery layouts
// and older product pages still use the previous ones.
var imageSelectors = []string{
	".unf-p-img-box-big img",
	".imgObj img",
	".product-image img",
	".proDetailCarousel img",
}

// ParseDetail extracts the enrichment bundle and the attribute list from a
// rendered detail document. Attributes are returned in page order.
func ParseDetail(html string) (*models.DetailBundle, []models.AttributePair, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, ingesterr.NewExtractionErrorf("failed to parse detail document: %v", err)
	}

	bundle := &models.DetailBundle{}

	if description := normalizers.Text(doc.Find(".unf-info-context .unf-info-desc").First().Text()); description != "" {
		bundle.Description = &description
	}

	if storeName := normalizers.Text(doc.Find(".unf-p-seller-name").First().Text()); storeName != "" {
		bundle.StoreName = &storeName
	}

	// The seller score renders with surrounding characters ("%98,5"), so the
	// number is dug out instead of parsed whole.
	bundle.StoreRating = normalizers.FirstNumber(doc.Find(".point").First().Text())

	shipping := normalizers.Text(doc.Find(".cargo").First().Text())
	if shipping == "" {
		shipping = normalizers.Text(doc.Find(".cargo-new").First().Text())
	}
	if shipping != "" {
		bundle.ShippingInfo = &shipping
	}
	bundle.FreeShipping = strings.Contains(strings.ToLower(shipping), "ücretsiz")

	bundle.Rating = normalizers.Rating(doc.Find(".ratingScore").First().Text())

	// The second to last breadcrumb is the product category; the last one is
	// the product itself.
	breadcrumbs := doc.Find("#breadCrumb ul li a")
	if breadcrumbs.Length() >= 2 {
		if productType := normalizers.Text(breadcrumbs.Eq(breadcrumbs.Length() - 2).Text()); productType != "" {
			bundle.ProductType = &productType
		}
	}

	for _, selector := range imageSelectors {
		img := doc.Find(selector).First()
		if img.Length() == 0 {
			continue
		}
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if src == "" {
			src, _ = img.Attr("data-original")
		}
		if src != "" {
			bundle.ImageURL = &src
			break
		}
	}

	var attrs []models.AttributePair
	doc.Find(".unf-prop-list .unf-prop-list-item").Each(func(_ int, item *goquery.Selection) {
		name := normalizers.Text(item.Find(".unf-prop-list-title").First().Text())
		value := normalizers.Text(item.Find(".unf-prop-list-prop").First().Text())
		if name == "" || value == "" {
			return
		}
		attrs = append(attrs, models.AttributePair{Name: name, Value: value})
	})

	// Older product pages render the same data as a plain feature table.
	doc.Find(".productFeatures table tr, .specifications table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		name := normalizers.Text(cells.Eq(0).Text())
		value := normalizers.Text(cells.Eq(1).Text())
		if name == "" || value == "" {
			return
		}
		attrs = append(attrs, models.AttributePair{Name: name, Value: value})
	})

	return bundle, attrs, nil
}
