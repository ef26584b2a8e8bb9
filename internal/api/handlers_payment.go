package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/inkwell-network/inkwell-node/internal/database"
	"github.com/inkwell-network/inkwell-node/internal/payment"
)

// handlePurchase runs the x402 purchase flow for one article. Without an
// X-PAYMENT header it answers 402 with the payment requirements; with one it
// runs the full decode/verify/settle pipeline.
func (s *APIServer) handlePurchase(w http.ResponseWriter, r *http.Request, articleID string) {
	article, ok := s.loadArticle(w, articleID)
	if !ok {
		return
	}

	network := s.requestNetwork(r)
	resource, err := s.articleResource(article, network, "/purchase")
	if err != nil {
		s.writePaymentError(w, err)
		return
	}

	header := r.Header.Get("X-PAYMENT")
	if header == "" {
		s.writePaymentRequired(w, resource, network)
		return
	}

	result, err := s.processor.ProcessPurchase(r.Context(), resource, network, header)
	if err != nil {
		s.writePaymentError(w, err)
		return
	}

	s.writePaymentSuccess(w, result, fmt.Sprintf("Article %q unlocked", article.Title))
}

// handleTip settles a reader-chosen tip to the article author
func (s *APIServer) handleTip(w http.ResponseWriter, r *http.Request, articleID string) {
	article, ok := s.loadArticle(w, articleID)
	if !ok {
		return
	}

	amount, err := s.requestAmount(r, payment.TipAmountMin, payment.TipAmountMax)
	if err != nil {
		s.writePaymentError(w, err)
		return
	}

	network := s.requestNetwork(r)
	resource, err := s.articleResource(article, network, "/tip")
	if err != nil {
		s.writePaymentError(w, err)
		return
	}
	resource.Price = amount
	resource.Description = fmt.Sprintf("Tip for %q by %s", article.Title, article.AuthorName)

	header := r.Header.Get("X-PAYMENT")
	if header == "" {
		s.writePaymentRequired(w, resource, network)
		return
	}

	result, err := s.processor.ProcessTip(r.Context(), resource, network, header)
	if err != nil {
		s.writePaymentError(w, err)
		return
	}

	s.writePaymentSuccess(w, result, fmt.Sprintf("Tip sent to %s", article.AuthorName))
}

// handleDonate settles a donation to the platform address
func (s *APIServer) handleDonate(w http.ResponseWriter, r *http.Request) {
	amount, err := s.requestAmount(r, payment.TipAmountMin, payment.TipAmountMax)
	if err != nil {
		s.writePaymentError(w, err)
		return
	}

	network := s.requestNetwork(r)

	header := r.Header.Get("X-PAYMENT")
	if header == "" {
		resource, err := s.processor.DonationResource(amount, network)
		if err != nil {
			s.writePaymentError(w, err)
			return
		}
		s.writePaymentRequired(w, resource, network)
		return
	}

	result, err := s.processor.ProcessDonation(r.Context(), amount, network, header)
	if err != nil {
		s.writePaymentError(w, err)
		return
	}

	s.writePaymentSuccess(w, result, "Thank you for supporting Inkwell")
}

// loadArticle fetches the article or writes a 404
func (s *APIServer) loadArticle(w http.ResponseWriter, articleID string) (*database.Article, bool) {
	article, err := s.dbManager.Articles.GetArticleByID(articleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"success": false,
				"error":   "Article not found",
			})
		} else {
			s.logger.Error(fmt.Sprintf("Failed to load article %s: %v", articleID, err), "api")
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"success": false,
				"error":   "Internal error, please try again",
			})
		}
		return nil, false
	}
	return article, true
}

// articleResource builds the priced resource for an article action. Price and
// recipient come from the stored article, never from the request.
func (s *APIServer) articleResource(article *database.Article, network, action string) (payment.PricedResource, error) {
	info, err := s.processor.Registry().Get(network)
	if err != nil {
		return payment.PricedResource{}, err
	}

	var payTo string
	switch info.Family {
	case payment.ChainFamilyEVM:
		payTo = article.PayoutAddressEVM
	case payment.ChainFamilySolana:
		payTo = article.PayoutAddressSOL
	}
	if payTo == "" {
		return payment.PricedResource{}, fmt.Errorf("%w: author has no payout address for %s",
			payment.ErrUnsupportedNetwork, network)
	}

	price, err := payment.ParsePrice(article.PriceUSD, payment.ArticlePriceMin, payment.ArticlePriceMax)
	if err != nil {
		return payment.PricedResource{}, err
	}

	return payment.PricedResource{
		ID:          article.ArticleID,
		Path:        "/api/articles/" + article.ArticleID + action,
		Description: fmt.Sprintf("%q by %s", article.Title, article.AuthorName),
		Price:       price,
		PayTo:       payTo,
	}, nil
}

// requestNetwork reads the target network from the query string, falling back
// to the configured default
func (s *APIServer) requestNetwork(r *http.Request) string {
	if network := r.URL.Query().Get("network"); network != "" {
		return network
	}
	return s.config.GetConfigWithDefault("default_network", "base")
}

// requestAmount reads and bounds-checks the user-chosen USD amount for tips and
// donations. Client-side bounds are a UX convenience; these are the real ones.
func (s *APIServer) requestAmount(r *http.Request, min, max decimal.Decimal) (decimal.Decimal, error) {
	value := r.URL.Query().Get("amount")
	if value == "" {
		var body struct {
			Amount string `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			value = body.Amount
		}
	}
	if value == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", payment.ErrInvalidPrice)
	}

	return payment.ParsePrice(value, min, max)
}

// writePaymentRequired answers 402 with the x402 challenge envelope
func (s *APIServer) writePaymentRequired(w http.ResponseWriter, resource payment.PricedResource, network string) {
	requirements, err := s.processor.BuildRequirement(resource, network)
	if err != nil {
		s.writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusPaymentRequired, payment.PaymentRequired{
		X402Version: payment.X402Version,
		Error:       payment.ErrPaymentRequired.Error(),
		Accepts:     []payment.PaymentRequirements{*requirements},
	})
}

// writePaymentSuccess answers 200 with the receipt. The transaction hash is
// null when the settlement path did not produce one.
func (s *APIServer) writePaymentSuccess(w http.ResponseWriter, result *payment.Result, message string) {
	var txHash interface{}
	if result.TransactionHash != "" {
		txHash = result.TransactionHash
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"message":         message,
			"receipt":         result.Receipt,
			"transactionHash": txHash,
		},
	})
}

// writePaymentError maps the payment error taxonomy onto HTTP statuses: client
// input errors and authenticity rejections are 400, the duplicate-payment
// conflict is 409, infrastructure failures are 500 with a generic message.
func (s *APIServer) writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payment.ErrMalformedPayment):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Invalid x402 payment header",
		})

	case errors.Is(err, payment.ErrInsufficientPayment):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Insufficient payment amount",
		})

	case errors.Is(err, payment.ErrRecipientMismatch):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Payment recipient mismatch",
		})

	case errors.Is(err, payment.ErrVerificationFailed), errors.Is(err, payment.ErrFacilitatorRejected):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Payment verification failed: " + rejectionReason(err),
		})

	case errors.Is(err, payment.ErrAlreadyPaid):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"success": false,
			"error":   "You have already purchased this article",
			"code":    "ALREADY_PAID",
		})

	case errors.Is(err, payment.ErrInvalidPrice), errors.Is(err, payment.ErrAmountOutOfBounds):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Invalid payment amount",
		})

	case errors.Is(err, payment.ErrUnsupportedNetwork):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Unsupported payment network",
		})

	case errors.Is(err, payment.ErrSettlementFailed):
		s.logger.Error(fmt.Sprintf("Settlement failure: %v", err), "api")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Payment settlement failed, please try again",
			"details": err.Error(),
		})

	default:
		// Facilitator unreachable, configuration missing, storage failures:
		// full context in the log, generic message to the client
		s.logger.Error(fmt.Sprintf("Payment infrastructure error: %v", err), "api")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Payment service temporarily unavailable, please try again",
		})
	}
}

// rejectionReason strips the sentinel prefix so the facilitator's stated reason
// is surfaced verbatim
func rejectionReason(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{payment.ErrVerificationFailed, payment.ErrFacilitatorRejected} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
