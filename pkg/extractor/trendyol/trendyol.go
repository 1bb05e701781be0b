// Package trendyol crawls Trendyol search results and product detail pages.
package trendyol

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
	platformName = "trendyol"
	baseURL      = "https://www.trendyol.com"
)

// Campaign prices render under several class variants depending on the
// discount type; everything else inside the price container is the list price.
const campaignPriceSelector = ".price-item.lowest-price-discounted, " +
	".price-item.basket-price-original, " +
	".price-item.discounted, " +
	".price-item.basket-price-discounted"

const listPriceSelector = ".price-item" +
	":not(.lowest-price-discounted)" +
	":not(.basket-price-original)" +
	":not(.discounted)" +
	":not(.basket-price-discounted)"

// Extractor crawls Trendyol listing and detail pages.
type Extractor struct {
	fetcher browser.Fetcher
	logger  ectologger.Logger
}

// New creates a Trendyol extractor backed by the given fetcher.
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
	return fmt.Sprintf("%s/sr?q=%s&os=1&sst=PRICE_BY_ASC&pi=%d", baseURL, url.QueryEscape(term), page)
}

// FetchListingPage retrieves and parses one page of search results.
func (e *Extractor) FetchListingPage(ctx context.Context, term string, page int) (*models.ListingPage, error) {
	ctx, span := tracing.StartSpan(ctx, "trendyol.Extractor.FetchListingPage")
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
// Trendyol uses infinite scroll rather than a pagination bar, so the page
// always reports the pagination affordance as present; exhaustion shows up as
// an empty or repeating page instead.
func ParseListing(html string) (*models.ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, ingesterr.NewExtractionErrorf("failed to parse listing document: %v", err)
	}

	page := &models.ListingPage{HasPagination: true}

	doc.Find("div.p-card-wrppr").Each(func(_ int, card *goquery.Selection) {
		id, _ := card.Attr("data-id")

		brand := normalizers.Text(card.Find(".prdct-desc-cntnr-ttl").First().Text())
		if brand == "" {
			brand = "Bilinmeyen"
		}
		title := normalizers.Text(card.Find(".prdct-desc-cntnr-name").First().Text())
		if title == "" {
			title = "Başlıksız"
		}

		var link string
		if href, ok := card.Find("a[href]").First().Attr("href"); ok {
			link = baseURL + href
		}

		priceInfo := card.Find("div.price-information").First()
		campaignText := normalizers.Text(priceInfo.Find(campaignPriceSelector).First().Text())
		priceText := normalizers.Text(priceInfo.Find(listPriceSelector).First().Text())

		stock := "2 gün içinde kargoda"
		if card.Find("div.rushDelivery").Length() > 0 {
			stock = "Yarın kargoda"
		}

		page.Items = append(page.Items, models.RawListing{
			PlatformProductID: id,
			Link:              link,
			Title:             title,
			Brand:             brand,
			PriceText:         priceText,
			CampaignPriceText: campaignText,
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
	ctx, span := tracing.StartSpan(ctx, "trendyol.Extractor.FetchDetail")
	defer span.End()

	e.logger.WithContext(ctx).WithFields(map[string]any{"url": link}).Info("Fetching detail page")

	html, err := e.fetcher.FetchHTML(ctx, link)
	if err != nil {
		return nil, nil, err
	}

	return ParseDetail(html)
}

// imageSelectors are tried in order; the gallery layout differs between
// product categories.
var imageSelectors = []string{
	`img[data-testid="image"]`,
	".gallery-modal-content img",
	".product-slide-image img",
	".product-image-container img",
}

// ParseDetail extracts the enrichment bundle and the attribute list from a
// rendered detail document. Attributes are returned in page order.
func ParseDetail(html string) (*models.DetailBundle, []models.AttributePair, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, ingesterr.NewExtractionErrorf("failed to parse detail document: %v", err)
	}

	bundle := &models.DetailBundle{
		// Trendyol listings in scope all ship free; the page does not expose a
		// separate flag to read.
		FreeShipping: true,
	}

	var descParts []string
	doc.Find("ul.content-descriptions-description-content li").Each(func(_ int, li *goquery.Selection) {
		if text := normalizers.Text(li.Text()); text != "" {
			descParts = append(descParts, text)
		}
	})
	if len(descParts) > 0 {
		description := strings.Join(descParts, " ")
		bundle.Description = &description
	}

	if storeName := normalizers.Text(doc.Find("div.merchant-name").First().Text()); storeName != "" {
		bundle.StoreName = &storeName
	}

	if shipping := normalizers.Text(doc.Find("div.delivery-container").First().Text()); shipping != "" {
		bundle.ShippingInfo = &shipping
	}

	bundle.Rating = normalizers.Rating(doc.Find("span.reviews-summary-average-rating").First().Text())
	bundle.StoreRating = normalizers.Rating(doc.Find("div.score-badge").First().Text())

	// The second to last breadcrumb is the product category; the last one is
	// the product itself.
	breadcrumbs := doc.Find("ul.breadcrumb-list li.product-detail-new-breadcrumbs-item a")
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
		if src != "" {
			bundle.ImageURL = &src
			break
		}
	}

	var attrs []models.AttributePair
	doc.Find("div.attribute-item").Each(func(_ int, item *goquery.Selection) {
		name := normalizers.Text(item.Find("div.name").First().Text())
		value := normalizers.Text(item.Find("div.value").First().Text())
		if name == "" || value == "" {
			return
		}
		attrs = append(attrs, models.AttributePair{Name: name, Value: value})
	})

	return bundle, attrs, nil
}
