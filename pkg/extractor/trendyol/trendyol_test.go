package trendyol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingFixture = `
<html><body>
<div class="p-card-wrppr" data-id="12345">
	<a href="/marka/urun-p-12345">link</a>
	<span class="prdct-desc-cntnr-ttl">MarkaA</span>
	<span class="prdct-desc-cntnr-name">Kablosuz Kulaklık</span>
	<div class="price-information">
		<span class="price-item discounted">1.234,56 TL</span>
		<span class="price-item">1.499,00 TL</span>
	</div>
	<div class="rushDelivery"></div>
</div>
<div class="p-card-wrppr" data-id="67890">
	<a href="/marka/urun-p-67890">link</a>
	<span class="prdct-desc-cntnr-name">Kulaklık Kılıfı</span>
	<div class="price-information">
		<span class="price-item">99,90 TL</span>
	</div>
</div>
<div class="p-card-wrppr">
	<a href="/marka/urun-p-0">link</a>
	<span class="prdct-desc-cntnr-ttl">MarkaB</span>
	<div class="price-information">
		<span class="price-item">10,00 TL</span>
	</div>
</div>
</body></html>`

func TestParseListing(t *testing.T) {
	page, err := ParseListing(listingFixture)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.True(t, page.HasPagination)

	first := page.Items[0]
	assert.Equal(t, "12345", first.PlatformProductID)
	assert.Equal(t, "https://www.trendyol.com/marka/urun-p-12345", first.Link)
	assert.Equal(t, "MarkaA", first.Brand)
	assert.Equal(t, "Kablosuz Kulaklık", first.Title)
	assert.Equal(t, "1.234,56 TL", first.CampaignPriceText)
	assert.Equal(t, "1.499,00 TL", first.PriceText)
	assert.Equal(t, "Yarın kargoda", first.StockText)

	second := page.Items[1]
	assert.Equal(t, "67890", second.PlatformProductID)
	assert.Equal(t, "Bilinmeyen", second.Brand)
	assert.Empty(t, second.CampaignPriceText)
	assert.Equal(t, "99,90 TL", second.PriceText)
	assert.Equal(t, "2 gün içinde kargoda", second.StockText)

	// Cards without a data-id still come through; identity validation happens
	// at persistence time, not here.
	third := page.Items[2]
	assert.Empty(t, third.PlatformProductID)
	assert.Equal(t, "Başlıksız", third.Title)

	assert.Len(t, page.Links, 3)
}

func TestParseListingEmpty(t *testing.T) {
	page, err := ParseListing("<html><body><div class=\"no-results\"></div></body></html>")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.Links)
}

const detailFixture = `
<html><body>
<ul class="breadcrumb-list">
	<li class="product-detail-new-breadcrumbs-item"><a>Elektronik</a></li>
	<li class="product-detail-new-breadcrumbs-item"><a>Kulaklık</a></li>
	<li class="product-detail-new-breadcrumbs-item"><a>Kablosuz Kulaklık X</a></li>
</ul>
<div class="merchant-name">TeknoMağaza</div>
<div class="score-badge">9,4</div>
<span class="reviews-summary-average-rating">4,6</span>
<div class="delivery-container">2 gün içinde kargoda</div>
<img data-testid="image" src="https://cdn.example.com/img/1.jpg"/>
<ul class="content-descriptions-description-content">
	<li>Bluetooth 5.3</li>
	<li>30 saat pil ömrü</li>
</ul>
<div class="attribute-item"><div class="name">Renk</div><div class="value">Siyah</div></div>
<div class="attribute-item"><div class="name">Garanti</div><div class="value">2 Yıl</div></div>
<div class="attribute-item"><div class="name">Renk</div><div class="value">Beyaz</div></div>
</body></html>`

func TestParseDetail(t *testing.T) {
	bundle, attrs, err := ParseDetail(detailFixture)
	require.NoError(t, err)
	require.NotNil(t, bundle)

	require.NotNil(t, bundle.Description)
	assert.Equal(t, "Bluetooth 5.3 30 saat pil ömrü", *bundle.Description)
	require.NotNil(t, bundle.StoreName)
	assert.Equal(t, "TeknoMağaza", *bundle.StoreName)
	require.NotNil(t, bundle.ShippingInfo)
	assert.Equal(t, "2 gün içinde kargoda", *bundle.ShippingInfo)
	assert.True(t, bundle.FreeShipping)
	assert.InDelta(t, 4.6, bundle.Rating, 0.001)
	assert.InDelta(t, 9.4, bundle.StoreRating, 0.001)
	require.NotNil(t, bundle.ProductType)
	assert.Equal(t, "Kulaklık", *bundle.ProductType)
	require.NotNil(t, bundle.ImageURL)
	assert.Equal(t, "https://cdn.example.com/img/1.jpg", *bundle.ImageURL)

	// Page order is preserved so the merger keeps the first "Renk".
	require.Len(t, attrs, 3)
	assert.Equal(t, "Renk", attrs[0].Name)
	assert.Equal(t, "Siyah", attrs[0].Value)
	assert.Equal(t, "Garanti", attrs[1].Name)
}

func TestParseDetailSparsePage(t *testing.T) {
	bundle, attrs, err := ParseDetail("<html><body></body></html>")
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Nil(t, bundle.Description)
	assert.Nil(t, bundle.StoreName)
	assert.Nil(t, bundle.ProductType)
	assert.Zero(t, bundle.Rating)
	assert.Empty(t, attrs)
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t,
		"https://www.trendyol.com/sr?q=kablosuz+kulakl%C4%B1k&os=1&sst=PRICE_BY_ASC&pi=2",
		SearchURL("kablosuz kulaklık", 2),
	)
}
