package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/inkwell-network/inkwell-node/internal/payment"
)

// handleListArticles lists article metadata ordered by popularity
func (s *APIServer) handleListArticles(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit == 0 {
		limit = 50
	}

	articles, err := s.dbManager.Articles.ListArticles(limit, offset)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Failed to list articles: %v", err), "api")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Internal error, please try again",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"articles": articles,
		"count":    len(articles),
	})
}

// handleGetArticle returns article metadata; the body is included only when the
// requesting payer holds a ledger record for it. The access check is the same
// HasPaid query the duplicate-payment guard uses.
func (s *APIServer) handleGetArticle(w http.ResponseWriter, r *http.Request, articleID string) {
	article, ok := s.loadArticle(w, articleID)
	if !ok {
		return
	}

	unlocked := false
	if payer := r.URL.Query().Get("payer"); payer != "" {
		unlocked = s.payerHasAccess(article.ArticleID, payer)
	}

	response := map[string]interface{}{
		"article_id":  article.ArticleID,
		"title":       article.Title,
		"price_usd":   article.PriceUSD,
		"author_name": article.AuthorName,
		"purchases":   article.Purchases,
		"popularity":  article.Popularity,
		"created_at":  article.CreatedAt.Unix(),
		"unlocked":    unlocked,
	}
	if unlocked {
		response["body"] = article.Body
	}

	writeJSON(w, http.StatusOK, response)
}

// payerHasAccess checks the ledger for either chain-family normalization of the
// supplied address. A malformed address simply means no access.
func (s *APIServer) payerHasAccess(articleID, payer string) bool {
	for _, family := range []payment.ChainFamily{payment.ChainFamilyEVM, payment.ChainFamilySolana} {
		normalized, ok := payment.TryNormalizeAddress(payer, family)
		if !ok {
			continue
		}
		paid, err := s.dbManager.Payments.HasPaid(articleID, normalized)
		if err != nil {
			s.logger.Error(fmt.Sprintf("Access check failed for %s: %v", articleID, err), "api")
			return false
		}
		if paid {
			return true
		}
	}
	return false
}
