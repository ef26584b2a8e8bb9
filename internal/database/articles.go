package database

import (
	"database/sql"
	"math/big"
	"time"

	"github.com/inkwell-network/inkwell-node/internal/utils"
)

// Article is a priced piece of content. PriceUSD is stored as a decimal string
// so prices never pass through floating point. Payout addresses are stored as
// entered by the author and normalized by the payment layer at use time.
type Article struct {
	ID               int64     `json:"id"`
	ArticleID        string    `json:"article_id"`
	Title            string    `json:"title"`
	Body             string    `json:"body,omitempty"`
	PriceUSD         string    `json:"price_usd"`
	AuthorName       string    `json:"author_name"`
	PayoutAddressEVM string    `json:"payout_address_evm,omitempty"`
	PayoutAddressSOL string    `json:"payout_address_sol,omitempty"`
	Purchases        int64     `json:"purchases"`
	EarningsAtomic   string    `json:"earnings_atomic"` // lifetime earnings, atomic units
	Popularity       float64   `json:"popularity"`
	CreatedAt        time.Time `json:"created_at"`
}

// ArticlesManager handles article storage. The payment core only consumes the
// narrow lookup and stats-update surface of this manager.
type ArticlesManager struct {
	db     *sql.DB
	logger *utils.LogsManager
}

// NewArticlesManager creates the manager and its table
func NewArticlesManager(db *sql.DB, logger *utils.LogsManager) (*ArticlesManager, error) {
	am := &ArticlesManager{
		db:     db,
		logger: logger,
	}

	if err := am.initTable(); err != nil {
		return nil, err
	}

	return am, nil
}

func (am *ArticlesManager) initTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		article_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		price_usd TEXT NOT NULL,
		author_name TEXT NOT NULL,
		payout_address_evm TEXT,
		payout_address_sol TEXT,
		purchases INTEGER NOT NULL DEFAULT 0,
		earnings_atomic TEXT NOT NULL DEFAULT '0',
		popularity REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_articles_popularity ON articles(popularity);
	`

	_, err := am.db.Exec(query)
	return err
}

// CreateArticle inserts a new article
func (am *ArticlesManager) CreateArticle(article *Article) error {
	query := `
	INSERT INTO articles (
		article_id, title, body, price_usd, author_name,
		payout_address_evm, payout_address_sol, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now()
	}

	result, err := am.db.Exec(query,
		article.ArticleID,
		article.Title,
		article.Body,
		article.PriceUSD,
		article.AuthorName,
		article.PayoutAddressEVM,
		article.PayoutAddressSOL,
		article.CreatedAt.Unix(),
	)
	if err != nil {
		return err
	}

	article.ID, _ = result.LastInsertId()
	return nil
}

// GetArticleByID retrieves an article by its public identifier
func (am *ArticlesManager) GetArticleByID(articleID string) (*Article, error) {
	query := `
	SELECT id, article_id, title, body, price_usd, author_name,
	       payout_address_evm, payout_address_sol,
	       purchases, earnings_atomic, popularity, created_at
	FROM articles
	WHERE article_id = ?
	`

	article := &Article{}
	var payoutEVM, payoutSOL sql.NullString
	var createdAt int64

	err := am.db.QueryRow(query, articleID).Scan(
		&article.ID,
		&article.ArticleID,
		&article.Title,
		&article.Body,
		&article.PriceUSD,
		&article.AuthorName,
		&payoutEVM,
		&payoutSOL,
		&article.Purchases,
		&article.EarningsAtomic,
		&article.Popularity,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if payoutEVM.Valid {
		article.PayoutAddressEVM = payoutEVM.String
	}
	if payoutSOL.Valid {
		article.PayoutAddressSOL = payoutSOL.String
	}
	article.CreatedAt = time.Unix(createdAt, 0)

	return article, nil
}

// ListArticles retrieves articles ordered by popularity
func (am *ArticlesManager) ListArticles(limit, offset int) ([]*Article, error) {
	query := `
	SELECT id, article_id, title, price_usd, author_name,
	       purchases, earnings_atomic, popularity, created_at
	FROM articles
	ORDER BY popularity DESC, created_at DESC
	LIMIT ? OFFSET ?
	`

	rows, err := am.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := make([]*Article, 0)
	for rows.Next() {
		article := &Article{}
		var createdAt int64

		if err := rows.Scan(
			&article.ID,
			&article.ArticleID,
			&article.Title,
			&article.PriceUSD,
			&article.AuthorName,
			&article.Purchases,
			&article.EarningsAtomic,
			&article.Popularity,
			&createdAt,
		); err != nil {
			continue
		}

		article.CreatedAt = time.Unix(createdAt, 0)
		articles = append(articles, article)
	}

	return articles, nil
}

// IncrementPurchaseStats adds one purchase and its earnings to an article and
// recalculates the popularity score. Earnings are summed as big integers in
// atomic units; the stored string never passes through a float.
func (am *ArticlesManager) IncrementPurchaseStats(articleID string, amountAtomic string) error {
	tx, err := am.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var earnings string
	var purchases int64
	var createdAt int64
	err = tx.QueryRow(
		`SELECT earnings_atomic, purchases, created_at FROM articles WHERE article_id = ?`,
		articleID,
	).Scan(&earnings, &purchases, &createdAt)
	if err != nil {
		return err
	}

	current, ok := new(big.Int).SetString(earnings, 10)
	if !ok {
		current = big.NewInt(0)
	}
	add, ok := new(big.Int).SetString(amountAtomic, 10)
	if !ok {
		add = big.NewInt(0)
	}
	total := new(big.Int).Add(current, add)

	purchases++
	popularity := popularityScore(purchases, time.Unix(createdAt, 0))

	_, err = tx.Exec(
		`UPDATE articles SET purchases = ?, earnings_atomic = ?, popularity = ? WHERE article_id = ?`,
		purchases, total.String(), popularity, articleID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteArticle removes an article. Payment records referencing it are kept;
// payment history is permanent.
func (am *ArticlesManager) DeleteArticle(articleID string) error {
	_, err := am.db.Exec(`DELETE FROM articles WHERE article_id = ?`, articleID)
	return err
}

// popularityScore is a recency-weighted purchase count: each purchase counts
// full weight on day one and decays over a 30-day half-life.
func popularityScore(purchases int64, createdAt time.Time) float64 {
	ageDays := time.Since(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return float64(purchases) / (1 + ageDays/30)
}
