// Package hepsiburada crawls Hepsiburada search results and product detail
// pages.
package hepsiburada

import (
	"context"
	"encoding/json"
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
	platformName = "hepsiburada"
	baseURL      = "https://www.hepsiburada.com"
)

// Extractor crawls Hepsiburada listing and detail pages.
type Extractor struct {
	fetcher browser.Fetcher
	logger  ectologger.Logger
}

// New creates a Hepsiburada extractor backed by the given fetcher.
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
	return fmt.Sprintf("%s/ara?q=%s&siralama=artanfiyat&sayfa=%d", baseURL, url.QueryEscape(term), page)
}

// ProductIDFromURL derives the platform product id from a listing URL. IDs
// are not exposed as attributes here; the last dash separated segment of the
// path is the catalog id.
func ProductIDFromURL(href string) string {
	trimmed := strings.TrimRight(href, "/")
	idx := strings.LastIndex(trimmed, "-")
	if idx < 0 || idx == len(trimmed)-1 {
		return ""
	}
	return trimmed[idx+1:]
}

// FetchListingPage retrieves and parses one page of search results.
func (e *Extractor) FetchListingPage(ctx context.Context, term string, page int) (*models.ListingPage, error) {
	ctx, span := tracing.StartSpan(ctx, "hepsiburada.Extractor.FetchListingPage")
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
// Hepsiburada hashes its class names per build, so cards and fields match on
// stable class name prefixes rather than exact classes. Cards without a title
// are sponsored placements and are dropped before extraction.
func ParseListing(html string) (*models.ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, ingesterr.NewExtractionErrorf("failed to parse listing document: %v", err)
	}

	page := &models.ListingPage{HasPagination: true}

	doc.Find(`li[class*="productListContent-"]`).Each(func(_ int, card *goquery.Selection) {
		titleTag := card.Find(`h2[class*="title-module_titleRoot"]`).First()
		if titleTag.Length() == 0 {
			return
		}
		title := normalizers.Text(titleTag.Text())

		brand := normalizers.Text(titleTag.Find(`span[class*="title-module_brandText"]`).First().Text())
		if brand == "" {
			brand = "Belirtilmemiş"
		}

		var link, id string
		if href, ok := card.Find("a[href]").First().Attr("href"); ok {
			link = baseURL + href
			id = ProductIDFromURL(href)
		}

		// The struck through original price is absent when there is no
		// discount; the final price then stands for both.
		finalText := normalizers.Text(card.Find(`div[class*="price-module_finalPrice__"]`).First().Text())
		originalText := normalizers.Text(card.Find(`div[class*="price-module_originalPrice__"]`).First().Text())
		if originalText == "" {
			originalText = finalText
		}

		stock := "Belirsiz"
		if arrival := normalizers.Text(card.Find(`div[class*="estimatedArrivalDate"]`).First().Text()); arrival != "" {
			stock = normalizers.Text(strings.ReplaceAll(arrival, "Teslimat bilgisi:", ""))
		}

		page.Items = append(page.Items, models.RawListing{
			PlatformProductID: id,
			Link:              link,
			Title:             title,
			Brand:             brand,
			PriceText:         originalText,
			CampaignPriceText: finalText,
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
	ctx, span := tracing.StartSpan(ctx, "hepsiburada.Extractor.FetchDetail")
	defer span.End()

	e.logger.WithContext(ctx).WithFields(map[string]any{"url": link}).Info("Fetching detail page")

	html, err := e.fetcher.FetchHTML(ctx, link)
	if err != nil {
		return nil, nil, err
	}

	return ParseDetail(html)
}

// detailPage mirrors the subset of the embedded ld+json document the detail
// pass reads; the category lives in the breadcrumb list there because the
// rendered breadcrumb uses hashed class names.
type detailPage struct {
	Breadcrumb struct {
		ItemListElement []struct {
			Name string `json:"name"`
		} `json:"itemListElement"`
	} `json:"breadcrumb"`
}

// ParseDetail extracts the enrichment bundle and the attribute list from a
// rendered detail document. Attributes are returned in page order.
func ParseDetail(html string) (*models.DetailBundle, []models.AttributePair, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, ingesterr.NewExtractionErrorf("failed to parse detail document: %v", err)
	}

	bundle := &models.DetailBundle{
		// Hepsiburada ships everything in scope free; the page has no flag to read.
		FreeShipping: true,
	}

	if description := normalizers.Text(doc.Find("div.productDescriptionContent").First().Text()); description != "" {
		bundle.Description = &description
	}

	if storeName := normalizers.Text(doc.Find(`a[data-test-id="merchant-name"]`).First().Text()); storeName != "" {
		bundle.StoreName = &storeName
	}

	bundle.StoreRating = normalizers.Rating(doc.Find(`span[data-test-id="merchant-rating"]`).First().Text())
	bundle.Rating = normalizers.Rating(doc.Find(`div[data-test-id="has-review"] span`).First().Text())

	// Delivery text has no stable hook; the first compact node mentioning
	// "Teslimat" is the estimate box.
	doc.Find("div, span").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := normalizers.Text(sel.Text())
		if len(text) > 120 || !strings.Contains(strings.ToLower(text), "teslimat") {
			return true
		}
		bundle.ShippingInfo = &text
		return false
	})

	if raw := doc.Find(`script[type="application/ld+json"]`).First().Text(); raw != "" {
		var pageData detailPage
		if err := json.Unmarshal([]byte(raw), &pageData); err == nil {
			items := pageData.Breadcrumb.ItemListElement
			if len(items) >= 2 && items[len(items)-2].Name != "" {
				productType := items[len(items)-2].Name
				bundle.ProductType = &productType
			}
		}
	}

	if src, ok := doc.Find("picture img").First().Attr("src"); ok && src != "" {
		bundle.ImageURL = &src
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
