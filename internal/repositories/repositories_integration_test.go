package repositories_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devaeterne/marketplaceint/internal/repositories/pricelog"
	productrepo "github.com/devaeterne/marketplaceint/internal/repositories/product"
	"github.com/devaeterne/marketplaceint/internal/repositories/productdetail"
	"github.com/devaeterne/marketplaceint/internal/repositories/searchterm"
	ingesterr "github.com/devaeterne/marketplaceint/pkg/errors"
	"github.com/devaeterne/marketplaceint/pkg/database"
	"github.com/devaeterne/marketplaceint/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	// Use environment variables or defaults for test DB
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "marketplaceint"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewDatabaseInstance(db, getTestLogger())
}

// uniqueID keeps test rows from colliding across runs without cleanup.
func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func strPtr(s string) *string { return &s }

func TestProductRepository_UpsertIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	repo := productrepo.NewRepository(db, logger)
	ctx := context.Background()

	platformProductID := uniqueID("prod")

	first, err := repo.Upsert(ctx, models.UpsertProductRequest{
		Platform:          "trendyol",
		PlatformProductID: platformProductID,
		ProductLink:       "https://www.trendyol.com/x/y-p-" + platformProductID,
		Title:             "Kablosuz Kulaklık",
		Brand:             "JBL",
	})
	require.NoError(t, err)
	assert.True(t, first.IsNew)
	assert.NotZero(t, first.Product.ID)

	// Same natural key, refreshed fields: one row, newest values win.
	second, err := repo.Upsert(ctx, models.UpsertProductRequest{
		Platform:          "trendyol",
		PlatformProductID: platformProductID,
		ProductLink:       "https://www.trendyol.com/x/y-p-" + platformProductID,
		Title:             "Kablosuz Kulaklık v2",
		Brand:             "JBL",
	})
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.Product.ID, second.Product.ID)
	assert.Equal(t, "Kablosuz Kulaklık v2", second.Product.Title)

	stored, err := repo.GetByPlatformID(ctx, "trendyol", platformProductID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Kablosuz Kulaklık v2", stored.Title)
}

func TestProductRepository_UpsertRejectsBlankKey(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := productrepo.NewRepository(db, getTestLogger())

	_, err := repo.Upsert(context.Background(), models.UpsertProductRequest{
		Platform:          "trendyol",
		PlatformProductID: "",
		Title:             "Başlıksız",
	})
	require.Error(t, err)
	assert.Equal(t, ingesterr.KindIdentity, ingesterr.KindOf(err))
}

func TestPriceLogRepository_AppendsObservations(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	products := productrepo.NewRepository(db, logger)
	prices := pricelog.NewRepository(db, logger)
	ctx := context.Background()

	res, err := products.Upsert(ctx, models.UpsertProductRequest{
		Platform:          "n11",
		PlatformProductID: uniqueID("prod"),
		Title:             "Bluetooth Hoparlör",
		Brand:             "Anker",
	})
	require.NoError(t, err)

	campaign := 799.90
	require.NoError(t, prices.Create(ctx, models.CreatePriceLogRequest{
		ProductID:   res.Product.ID,
		Price:       899.90,
		StockStatus: "Mevcut",
	}))
	require.NoError(t, prices.Create(ctx, models.CreatePriceLogRequest{
		ProductID:     res.Product.ID,
		Price:         899.90,
		CampaignPrice: &campaign,
		StockStatus:   "Mevcut",
	}))

	history, err := prices.History(ctx, res.Product.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest first
	require.NotNil(t, history[0].CampaignPrice)
	assert.InDelta(t, 799.90, *history[0].CampaignPrice, 0.001)
	assert.Nil(t, history[1].CampaignPrice)
}

func TestProductDetailRepository_MergeReplacesAttributes(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	products := productrepo.NewRepository(db, logger)
	details := productdetail.NewRepository(db, logger)
	ctx := context.Background()

	res, err := products.Upsert(ctx, models.UpsertProductRequest{
		Platform:          "trendyol",
		PlatformProductID: uniqueID("prod"),
		Title:             "Tişört",
		Brand:             "Mavi",
	})
	require.NoError(t, err)
	productID := res.Product.ID

	err = details.Merge(ctx, productID, models.DetailBundle{
		Description: strPtr("Pamuklu tişört"),
		StoreName:   strPtr("Mavi Resmi Satıcı"),
		Rating:      4.2,
	}, []models.AttributePair{
		{Name: "Renk", Value: "Kırmızı"},
		{Name: "Beden", Value: "M"},
	})
	require.NoError(t, err)

	// A later pass replaces the whole attribute set, not just overlapping keys.
	err = details.Merge(ctx, productID, models.DetailBundle{
		Description: strPtr("Pamuklu tişört"),
		StoreName:   strPtr("Mavi Resmi Satıcı"),
		Rating:      4.4,
	}, []models.AttributePair{
		{Name: "Renk", Value: "Mavi"},
	})
	require.NoError(t, err)

	attrs, err := details.Attributes(ctx, productID)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "Renk", attrs[0].AttributeName)
	assert.Equal(t, "Mavi", attrs[0].AttributeValue)

	detail, err := details.Get(ctx, productID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.InDelta(t, 4.4, detail.Rating, 0.001)
}

func TestProductDetailRepository_MergeKeepsFirstDuplicateAttribute(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	products := productrepo.NewRepository(db, logger)
	details := productdetail.NewRepository(db, logger)
	ctx := context.Background()

	res, err := products.Upsert(ctx, models.UpsertProductRequest{
		Platform:          "trendyol",
		PlatformProductID: uniqueID("prod"),
		Title:             "Ayakkabı",
		Brand:             "Nike",
	})
	require.NoError(t, err)

	err = details.Merge(ctx, res.Product.ID, models.DetailBundle{}, []models.AttributePair{
		{Name: "Renk", Value: "Siyah"},
		{Name: "Renk", Value: "Beyaz"},
	})
	require.NoError(t, err)

	attrs, err := details.Attributes(ctx, res.Product.ID)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "Siyah", attrs[0].AttributeValue)
}

func TestSearchTermRepository_MonotonicCount(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := searchterm.NewRepository(db, getTestLogger())
	ctx := context.Background()

	term := uniqueID("term")

	require.NoError(t, repo.IncrementCount(ctx, term, "hepsiburada", 3))
	require.NoError(t, repo.IncrementCount(ctx, term, "hepsiburada", 2))
	// Zero new products leaves the row untouched.
	require.NoError(t, repo.IncrementCount(ctx, term, "hepsiburada", 0))

	stored, err := repo.Get(ctx, term, "hepsiburada")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 5, stored.Count)

	// Same term on a different platform counts separately.
	require.NoError(t, repo.IncrementCount(ctx, term, "n11", 1))
	other, err := repo.Get(ctx, term, "n11")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, 1, other.Count)
}
