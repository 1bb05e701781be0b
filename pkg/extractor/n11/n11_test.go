package n11

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingFixture = `
<html><body>
<div class="productArea">
	<ul>
		<li class="column">
			<a class="plink" href="/urun/kablosuz-kulaklik-111" data-id="111">a</a>
			<h3 class="productName">Kablosuz Kulaklık</h3>
			<input class="sellerNickName" value="satici1"/>
			<span class="newPrice"><ins>1.299,00 TL</ins></span>
		</li>
		<li class="column">
			<a class="plink" href="https://www.n11.com/urun/kulaklik-222" data-id="222">a</a>
			<h3 class="productName">Kulaklık Standı</h3>
			<span class="newPrice"><ins>89,90</ins></span>
			<span class="stockText">Tükendi</span>
		</li>
	</ul>
</div>
<div class="paginationArea"></div>
</body></html>`

func TestParseListing(t *testing.T) {
	page, err := ParseListing(listingFixture)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasPagination)

	first := page.Items[0]
	assert.Equal(t, "111", first.PlatformProductID)
	assert.Equal(t, "https://www.n11.com/urun/kablosuz-kulaklik-111", first.Link)
	assert.Equal(t, "Kablosuz Kulaklık", first.Title)
	assert.Equal(t, "satici1", first.Brand)
	assert.Equal(t, "1.299,00 TL", first.PriceText)
	assert.Empty(t, first.CampaignPriceText)
	assert.Equal(t, "Mevcut", first.StockText)

	second := page.Items[1]
	assert.Equal(t, "222", second.PlatformProductID)
	assert.Equal(t, "https://www.n11.com/urun/kulaklik-222", second.Link)
	assert.Equal(t, "Bilinmeyen", second.Brand)
	assert.Equal(t, "Tükendi", second.StockText)

	assert.Equal(t, []string{
		"https://www.n11.com/urun/kablosuz-kulaklik-111",
		"https://www.n11.com/urun/kulaklik-222",
	}, page.Links)
}

func TestParseListingNoPagination(t *testing.T) {
	page, err := ParseListing(`<html><body><div class="productArea"><ul><li class="column"><a class="plink" href="/u-1" data-id="1">a</a></li></ul></div></body></html>`)
	require.NoError(t, err)
	assert.False(t, page.HasPagination)
	require.Len(t, page.Items, 1)
}

func TestParseListingSkipsCardsWithoutLink(t *testing.T) {
	page, err := ParseListing(`<html><body><div class="productArea"><ul><li class="column"><h3 class="productName">Reklam</h3></li></ul></div></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t,
		"https://www.n11.com/arama?q=laptop+standi&srt=PRICE_LOW&pg=3",
		SearchURL("laptop standi", 3),
	)
}

const detailFixture = `
<html><body>
<div id="breadCrumb"><ul>
	<li><a>Anasayfa</a></li>
	<li><a>Elektronik</a></li>
	<li><a>Kulaklık</a></li>
	<li><a>Kablosuz Kulaklık X</a></li>
</ul></div>
<div class="unf-p-seller-name">TeknoMağaza</div>
<span class="point">%97,4</span>
<div class="cargo">Ücretsiz kargo</div>
<span class="ratingScore">4,6</span>
<div class="unf-info-context"><div class="unf-info-desc">Aktif gürültü engelleme özellikli kulaklık.</div></div>
<div class="unf-p-img-box-big"><img src="https://cdn.n11.com/img/1.jpg"/></div>
<div class="unf-prop-list">
	<div class="unf-prop-list-item">
		<div class="unf-prop-list-title">Renk</div>
		<div class="unf-prop-list-prop">Siyah</div>
	</div>
</div>
<div class="productFeatures"><table>
	<tr><td>Bağlantı</td><td>Bluetooth 5.3</td></tr>
	<tr><td></td><td>boş</td></tr>
</table></div>
</body></html>`

func TestParseDetail(t *testing.T) {
	bundle, attrs, err := ParseDetail(detailFixture)
	require.NoError(t, err)

	require.NotNil(t, bundle.Description)
	assert.Equal(t, "Aktif gürültü engelleme özellikli kulaklık.", *bundle.Description)
	require.NotNil(t, bundle.StoreName)
	assert.Equal(t, "TeknoMağaza", *bundle.StoreName)
	assert.InDelta(t, 97.4, bundle.StoreRating, 0.001)
	require.NotNil(t, bundle.ShippingInfo)
	assert.Equal(t, "Ücretsiz kargo", *bundle.ShippingInfo)
	assert.True(t, bundle.FreeShipping)
	assert.InDelta(t, 4.6, bundle.Rating, 0.001)
	require.NotNil(t, bundle.ProductType)
	assert.Equal(t, "Kulaklık", *bundle.ProductType)
	require.NotNil(t, bundle.ImageURL)
	assert.Equal(t, "https://cdn.n11.com/img/1.jpg", *bundle.ImageURL)

	require.Len(t, attrs, 2)
	assert.Equal(t, "Renk", attrs[0].Name)
	assert.Equal(t, "Siyah", attrs[0].Value)
	assert.Equal(t, "Bağlantı", attrs[1].Name)
	assert.Equal(t, "Bluetooth 5.3", attrs[1].Value)
}

func TestParseDetailSparsePage(t *testing.T) {
	bundle, attrs, err := ParseDetail(`<html><body><p>hata</p></body></html>`)
	require.NoError(t, err)
	assert.Nil(t, bundle.Description)
	assert.Nil(t, bundle.StoreName)
	assert.Nil(t, bundle.ShippingInfo)
	assert.False(t, bundle.FreeShipping)
	assert.Zero(t, bundle.Rating)
	assert.Empty(t, attrs)
}
