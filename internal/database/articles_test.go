package database

import (
	"database/sql"
	"errors"
	"math/big"
	"testing"
)

func newTestArticles(t *testing.T) (*ArticlesManager, *PaymentRecordsManager) {
	t.Helper()

	db, lm := newTestDB(t)
	am, err := NewArticlesManager(db, lm)
	if err != nil {
		t.Fatalf("Failed to create articles manager: %v", err)
	}
	prm, err := NewPaymentRecordsManager(db, lm)
	if err != nil {
		t.Fatalf("Failed to create payment records manager: %v", err)
	}
	return am, prm
}

func testArticle(id string) *Article {
	return &Article{
		ArticleID:        id,
		Title:            "The Price of Everything",
		Body:             "Full article body.",
		PriceUSD:         "0.12",
		AuthorName:       "Ada",
		PayoutAddressEVM: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	}
}

func TestCreateAndGetArticle(t *testing.T) {
	am, _ := newTestArticles(t)

	article := testArticle("article-1")
	if err := am.CreateArticle(article); err != nil {
		t.Fatalf("Failed to create article: %v", err)
	}
	if article.ID == 0 {
		t.Error("Expected article ID to be assigned")
	}

	loaded, err := am.GetArticleByID("article-1")
	if err != nil {
		t.Fatalf("Failed to load article: %v", err)
	}
	if loaded.Title != article.Title || loaded.PriceUSD != "0.12" {
		t.Errorf("Loaded article does not match: %+v", loaded)
	}
	if loaded.Purchases != 0 || loaded.EarningsAtomic != "0" {
		t.Errorf("Expected zeroed stats on a new article, got %d purchases, %s earned",
			loaded.Purchases, loaded.EarningsAtomic)
	}
}

func TestGetArticleMissing(t *testing.T) {
	am, _ := newTestArticles(t)

	_, err := am.GetArticleByID("nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestIncrementPurchaseStats(t *testing.T) {
	am, _ := newTestArticles(t)

	if err := am.CreateArticle(testArticle("article-1")); err != nil {
		t.Fatalf("Failed to create article: %v", err)
	}

	if err := am.IncrementPurchaseStats("article-1", "120000"); err != nil {
		t.Fatalf("First stats update failed: %v", err)
	}
	if err := am.IncrementPurchaseStats("article-1", "120000"); err != nil {
		t.Fatalf("Second stats update failed: %v", err)
	}

	loaded, err := am.GetArticleByID("article-1")
	if err != nil {
		t.Fatalf("Failed to load article: %v", err)
	}
	if loaded.Purchases != 2 {
		t.Errorf("Expected 2 purchases, got %d", loaded.Purchases)
	}
	if loaded.EarningsAtomic != "240000" {
		t.Errorf("Expected earnings 240000, got %s", loaded.EarningsAtomic)
	}
	if loaded.Popularity <= 0 {
		t.Errorf("Expected positive popularity, got %f", loaded.Popularity)
	}
}

func TestIncrementPurchaseStatsBigEarnings(t *testing.T) {
	am, _ := newTestArticles(t)

	if err := am.CreateArticle(testArticle("article-1")); err != nil {
		t.Fatalf("Failed to create article: %v", err)
	}

	// Earnings beyond uint64 must still sum exactly
	huge := new(big.Int).Exp(big.NewInt(10), big.NewInt(25), nil)
	if err := am.IncrementPurchaseStats("article-1", huge.String()); err != nil {
		t.Fatalf("Stats update failed: %v", err)
	}
	if err := am.IncrementPurchaseStats("article-1", "1"); err != nil {
		t.Fatalf("Stats update failed: %v", err)
	}

	loaded, err := am.GetArticleByID("article-1")
	if err != nil {
		t.Fatalf("Failed to load article: %v", err)
	}
	expected := new(big.Int).Add(huge, big.NewInt(1)).String()
	if loaded.EarningsAtomic != expected {
		t.Errorf("Expected earnings %s, got %s", expected, loaded.EarningsAtomic)
	}
}

func TestListArticlesOrderedByPopularity(t *testing.T) {
	am, _ := newTestArticles(t)

	for _, id := range []string{"quiet", "popular"} {
		if err := am.CreateArticle(testArticle(id)); err != nil {
			t.Fatalf("Failed to create article %s: %v", id, err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := am.IncrementPurchaseStats("popular", "120000"); err != nil {
			t.Fatalf("Stats update failed: %v", err)
		}
	}

	articles, err := am.ListArticles(10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(articles))
	}
	if articles[0].ArticleID != "popular" {
		t.Errorf("Expected the purchased article first, got %s", articles[0].ArticleID)
	}
	if articles[0].Body != "" {
		t.Error("Expected list results to omit the article body")
	}
}

func TestDeleteArticleKeepsPaymentRecords(t *testing.T) {
	am, prm := newTestArticles(t)

	if err := am.CreateArticle(testArticle("article-1")); err != nil {
		t.Fatalf("Failed to create article: %v", err)
	}
	if _, err := prm.RecordPayment("article-1", testPayer, "120000", "0xabc"); err != nil {
		t.Fatalf("Failed to record payment: %v", err)
	}

	if err := am.DeleteArticle("article-1"); err != nil {
		t.Fatalf("Failed to delete article: %v", err)
	}
	if _, err := am.GetArticleByID("article-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected article to be gone, got %v", err)
	}

	// Payment history is permanent
	paid, err := prm.HasPaid("article-1", testPayer)
	if err != nil {
		t.Fatalf("HasPaid failed: %v", err)
	}
	if !paid {
		t.Error("Expected payment record to survive article deletion")
	}
}
