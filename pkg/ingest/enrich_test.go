package ingest

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingesterr "github.com/devaeterne/marketplaceint/pkg/errors"
	"github.com/devaeterne/marketplaceint/pkg/extractor"
	"github.com/devaeterne/marketplaceint/pkg/models"
)

type fakePendingLister struct {
	products []models.Product
	err      error
}

func (f *fakePendingLister) ListPendingDetails(_ context.Context, _ string, _ int) ([]models.Product, error) {
	return f.products, f.err
}

type fakeDetailMerger struct {
	merged   map[int64][]models.AttributePair
	failWith error
}

func (f *fakeDetailMerger) Merge(_ context.Context, productID int64, _ models.DetailBundle, attrs []models.AttributePair) error {
	if f.failWith != nil {
		return f.failWith
	}
	if f.merged == nil {
		f.merged = make(map[int64][]models.AttributePair)
	}
	f.merged[productID] = attrs
	return nil
}

type fakeDetailExtractor struct {
	platform string
	bundles  map[string]*models.DetailBundle
	attrs    map[string][]models.AttributePair
	errs     map[string]error
	fetched  []string
}

func (f *fakeDetailExtractor) Platform() string { return f.platform }

func (f *fakeDetailExtractor) FetchDetail(_ context.Context, link string) (*models.DetailBundle, []models.AttributePair, error) {
	f.fetched = append(f.fetched, link)
	if err, ok := f.errs[link]; ok {
		return nil, nil, err
	}
	if bundle, ok := f.bundles[link]; ok {
		return bundle, f.attrs[link], nil
	}
	return &models.DetailBundle{}, nil, nil
}

func pendingProduct(id int64, link string) models.Product {
	p := models.Product{ID: id, Platform: "trendyol", PlatformProductID: fmt.Sprintf("py-%d", id)}
	if link != "" {
		p.ProductLink = &link
	}
	return p
}

func newTestEnricher(lister *fakePendingLister, merger *fakeDetailMerger, det *fakeDetailExtractor) *Enricher {
	registry := extractor.NewRegistry(nil, []extractor.DetailExtractor{det})
	return NewEnricher(lister, merger, registry, silentLogger())
}

func TestEnricherMergesPendingProducts(t *testing.T) {
	link := "https://www.trendyol.com/marka/urun-p-1"
	det := &fakeDetailExtractor{
		platform: "trendyol",
		bundles:  map[string]*models.DetailBundle{link: {Rating: 4.5}},
		attrs:    map[string][]models.AttributePair{link: {{Name: "Renk", Value: "Siyah"}}},
	}
	merger := &fakeDetailMerger{}
	enricher := newTestEnricher(&fakePendingLister{products: []models.Product{pendingProduct(1, link)}}, merger, det)

	stats, err := enricher.Run(context.Background(), "trendyol", 100)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Errors)
	require.Contains(t, merger.merged, int64(1))
	assert.Equal(t, []models.AttributePair{{Name: "Renk", Value: "Siyah"}}, merger.merged[1])
}

func TestEnricherSkipsInvalidLinks(t *testing.T) {
	det := &fakeDetailExtractor{platform: "trendyol"}
	merger := &fakeDetailMerger{}
	enricher := newTestEnricher(&fakePendingLister{products: []models.Product{
		pendingProduct(1, ""),
		pendingProduct(2, "ftp://not-a-product-page"),
	}}, merger, det)

	stats, err := enricher.Run(context.Background(), "trendyol", 100)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 2, stats.Errors)
	assert.Empty(t, det.fetched)
	assert.Empty(t, merger.merged)
}

func TestEnricherFailedFetchWritesNothing(t *testing.T) {
	link := "https://www.trendyol.com/marka/urun-p-1"
	det := &fakeDetailExtractor{
		platform: "trendyol",
		errs:     map[string]error{link: fmt.Errorf("timeout waiting for page")},
	}
	merger := &fakeDetailMerger{}
	enricher := newTestEnricher(&fakePendingLister{products: []models.Product{pendingProduct(1, link)}}, merger, det)

	stats, err := enricher.Run(context.Background(), "trendyol", 100)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 1, stats.Errors)
	assert.Empty(t, merger.merged)
	assert.False(t, stats.Aborted)
}

func TestEnricherFatalEngineErrorAborts(t *testing.T) {
	first := "https://www.trendyol.com/p-1"
	second := "https://www.trendyol.com/p-2"
	det := &fakeDetailExtractor{
		platform: "trendyol",
		errs:     map[string]error{first: ingesterr.NewFatalEngineError(fmt.Errorf("chrome not reachable"), "browser session is not reachable")},
	}
	enricher := newTestEnricher(&fakePendingLister{products: []models.Product{
		pendingProduct(1, first),
		pendingProduct(2, second),
	}}, &fakeDetailMerger{}, det)

	stats, err := enricher.Run(context.Background(), "trendyol", 100)
	require.Error(t, err)
	assert.True(t, ingesterr.IsFatal(err))
	assert.True(t, stats.Aborted)
	assert.Equal(t, []string{first}, det.fetched)
}

func TestEnricherMergeFailureIsIsolated(t *testing.T) {
	link := "https://www.trendyol.com/p-1"
	det := &fakeDetailExtractor{platform: "trendyol", bundles: map[string]*models.DetailBundle{link: {}}}
	merger := &fakeDetailMerger{failWith: ingesterr.NewPersistenceError(fmt.Errorf("deadlock detected"), "failed to upsert product detail")}
	enricher := newTestEnricher(&fakePendingLister{products: []models.Product{pendingProduct(1, link)}}, merger, det)

	stats, err := enricher.Run(context.Background(), "trendyol", 100)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 1, stats.Errors)
	assert.False(t, stats.Aborted)
}

func TestEnricherUnknownPlatform(t *testing.T) {
	enricher := newTestEnricher(&fakePendingLister{}, &fakeDetailMerger{}, &fakeDetailExtractor{platform: "trendyol"})

	_, err := enricher.Run(context.Background(), "n11", 100)
	assert.Error(t, err)
}

func TestLoadTerms(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/terms.txt"
	content := "kablosuz kulaklık\n\n  telefon kılıfı  \n\nlaptop standı\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	terms, err := LoadTerms(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"kablosuz kulaklık", "telefon kılıfı", "laptop standı"}, terms)
}

func TestLoadTermsMissingFile(t *testing.T) {
	_, err := LoadTerms("/nonexistent/terms.txt")
	assert.Error(t, err)
}
