package api

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/inkwell-network/inkwell-node/internal/database"
	"github.com/inkwell-network/inkwell-node/internal/payment"
	"github.com/inkwell-network/inkwell-node/internal/utils"
)

const (
	testPayoutEVM = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	testPayerEVM  = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

// scriptedFacilitator returns canned verdicts so handler tests never leave the
// process
type scriptedFacilitator struct {
	verifyCalls atomic.Int32
	settleCalls atomic.Int32
	valid       bool
	reason      string
	settleOK    bool
}

func (f *scriptedFacilitator) Verify(ctx context.Context, payload *payment.PaymentPayload, requirements *payment.PaymentRequirements) (*payment.VerifyResponse, error) {
	f.verifyCalls.Add(1)
	return &payment.VerifyResponse{IsValid: f.valid, InvalidReason: f.reason, Payer: testPayerEVM}, nil
}

func (f *scriptedFacilitator) Settle(ctx context.Context, payload *payment.PaymentPayload, requirements *payment.PaymentRequirements) (*payment.SettleResponse, error) {
	f.settleCalls.Add(1)
	if !f.settleOK {
		return nil, payment.ErrFacilitatorUnavailable
	}
	return &payment.SettleResponse{Success: true, Transaction: "0xsettled", Network: requirements.Network, Payer: testPayerEVM}, nil
}

type serverFixture struct {
	server      *APIServer
	mux         *http.ServeMux
	facilitator *scriptedFacilitator
	articles    *database.ArticlesManager
	payments    *database.PaymentRecordsManager
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	cm := utils.NewConfigManager("")
	lm := utils.NewLogsManager(cm)
	cm.SetConfig("default_network", "base-sepolia")
	cm.SetConfig("platform_donation_address_evm", testPayoutEVM)

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close()
		lm.Close()
	})

	articles, err := database.NewArticlesManager(db, lm)
	if err != nil {
		t.Fatalf("Failed to create articles manager: %v", err)
	}
	payments, err := database.NewPaymentRecordsManager(db, lm)
	if err != nil {
		t.Fatalf("Failed to create payment records manager: %v", err)
	}
	tips, err := database.NewTipRecordsManager(db, lm)
	if err != nil {
		t.Fatalf("Failed to create tip records manager: %v", err)
	}

	dbManager := &database.SQLiteManager{
		Articles: articles,
		Payments: payments,
		Tips:     tips,
	}

	facilitator := &scriptedFacilitator{valid: true, settleOK: true}
	registry := payment.NewNetworkRegistry(cm)
	builder := payment.NewRequirementBuilder(registry, cm, lm)
	processor := payment.NewProcessor(registry, builder, facilitator, payments, articles, tips, cm, lm)

	server := NewAPIServer(cm, lm, dbManager, processor)
	mux := http.NewServeMux()
	server.registerRoutes(mux)

	return &serverFixture{
		server:      server,
		mux:         mux,
		facilitator: facilitator,
		articles:    articles,
		payments:    payments,
	}
}

func (f *serverFixture) createArticle(t *testing.T, id, price string) {
	t.Helper()

	article := &database.Article{
		ArticleID:        id,
		Title:            "The Price of Everything",
		Body:             "Full article body.",
		PriceUSD:         price,
		AuthorName:       "Ada",
		PayoutAddressEVM: testPayoutEVM,
	}
	if err := f.articles.CreateArticle(article); err != nil {
		t.Fatalf("Failed to create article: %v", err)
	}
}

func paymentHeader(t *testing.T, network, from, to, value string) string {
	t.Helper()

	raw, err := json.Marshal(map[string]interface{}{
		"x402Version": 1,
		"scheme":      "exact",
		"network":     network,
		"payload": map[string]interface{}{
			"signature": "0xdeadbeef",
			"authorization": map[string]interface{}{
				"from":        from,
				"to":          to,
				"value":       value,
				"validAfter":  "0",
				"validBefore": "99999999999",
				"nonce":       "0x01",
			},
		},
	})
	if err != nil {
		t.Fatalf("Failed to marshal payment header: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func (f *serverFixture) do(t *testing.T, method, target, xPayment string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if xPayment != "" {
		req.Header.Set("X-PAYMENT", xPayment)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestPurchaseWithoutPaymentChallenges(t *testing.T) {
	f := newServerFixture(t)
	f.createArticle(t, "article-1", "0.12")

	rec := f.do(t, http.MethodPost, "/api/articles/article-1/purchase", "")
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected 402, got %d: %s", rec.Code, rec.Body.String())
	}

	var challenge payment.PaymentRequired
	if err := json.Unmarshal(rec.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("Failed to decode challenge: %v", err)
	}
	if challenge.X402Version != 1 {
		t.Errorf("Expected x402Version 1, got %d", challenge.X402Version)
	}
	if challenge.Error == "" {
		t.Error("Expected a challenge error message")
	}
	if len(challenge.Accepts) != 1 {
		t.Fatalf("Expected 1 accepted requirement, got %d", len(challenge.Accepts))
	}

	req := challenge.Accepts[0]
	if req.Scheme != "exact" || req.Network != "base-sepolia" {
		t.Errorf("Unexpected scheme/network: %s/%s", req.Scheme, req.Network)
	}
	if req.MaxAmountRequired != "120000" {
		t.Errorf("Expected maxAmountRequired 120000 for $0.12, got %s", req.MaxAmountRequired)
	}
	if req.PayTo != testPayoutEVM {
		t.Errorf("Expected payTo %s, got %s", testPayoutEVM, req.PayTo)
	}
}

func TestPurchaseFullFlow(t *testing.T) {
	f := newServerFixture(t)
	f.createArticle(t, "article-1", "0.12")
	header := paymentHeader(t, "base-sepolia", testPayerEVM, testPayoutEVM, "120000")

	rec := f.do(t, http.MethodPost, "/api/articles/article-1/purchase", header)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Error("Expected success=true")
	}
	data, _ := body["data"].(map[string]interface{})
	if data == nil || data["receipt"] == "" {
		t.Error("Expected a receipt in the response data")
	}
	if data["transactionHash"] != "0xsettled" {
		t.Errorf("Expected transactionHash 0xsettled, got %v", data["transactionHash"])
	}

	paid, err := f.payments.HasPaid("article-1", testPayerEVM)
	if err != nil {
		t.Fatalf("HasPaid failed: %v", err)
	}
	if !paid {
		t.Error("Expected a ledger record after purchase")
	}

	// Purchases counter moved
	article, err := f.articles.GetArticleByID("article-1")
	if err != nil {
		t.Fatalf("Failed to load article: %v", err)
	}
	if article.Purchases != 1 {
		t.Errorf("Expected 1 purchase, got %d", article.Purchases)
	}
}

func TestPurchaseDuplicateConflict(t *testing.T) {
	f := newServerFixture(t)
	f.createArticle(t, "article-1", "0.12")
	header := paymentHeader(t, "base-sepolia", testPayerEVM, testPayoutEVM, "120000")

	if rec := f.do(t, http.MethodPost, "/api/articles/article-1/purchase", header); rec.Code != http.StatusOK {
		t.Fatalf("First purchase failed: %d %s", rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodPost, "/api/articles/article-1/purchase", header)
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["code"] != "ALREADY_PAID" {
		t.Errorf("Expected code ALREADY_PAID, got %v", body["code"])
	}
	if f.facilitator.settleCalls.Load() != 1 {
		t.Errorf("Expected no second settlement, got %d settle calls", f.facilitator.settleCalls.Load())
	}
}

func TestPurchaseMalformedHeader(t *testing.T) {
	f := newServerFixture(t)
	f.createArticle(t, "article-1", "0.12")

	rec := f.do(t, http.MethodPost, "/api/articles/article-1/purchase", "!!!garbage!!!")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != "Invalid x402 payment header" {
		t.Errorf("Unexpected error message %v", body["error"])
	}
}

func TestPurchaseUnderpayment(t *testing.T) {
	f := newServerFixture(t)
	f.createArticle(t, "article-1", "0.12")
	header := paymentHeader(t, "base-sepolia", testPayerEVM, testPayoutEVM, "50000")

	rec := f.do(t, http.MethodPost, "/api/articles/article-1/purchase", header)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != "Insufficient payment amount" {
		t.Errorf("Unexpected error message %v", body["error"])
	}
	if f.facilitator.verifyCalls.Load() != 0 {
		t.Error("Expected no facilitator call for an underpayment")
	}
}

func TestPurchaseVerificationRejected(t *testing.T) {
	f := newServerFixture(t)
	f.createArticle(t, "article-1", "0.12")
	f.facilitator.valid = false
	f.facilitator.reason = "invalid signature"
	header := paymentHeader(t, "base-sepolia", testPayerEVM, testPayoutEVM, "120000")

	rec := f.do(t, http.MethodPost, "/api/articles/article-1/purchase", header)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != "Payment verification failed: invalid signature" {
		t.Errorf("Unexpected error message %v", body["error"])
	}
}

func TestPurchaseSettlementFailure(t *testing.T) {
	f := newServerFixture(t)
	f.createArticle(t, "article-1", "0.12")
	f.facilitator.settleOK = false
	header := paymentHeader(t, "base-sepolia", testPayerEVM, testPayoutEVM, "120000")

	rec := f.do(t, http.MethodPost, "/api/articles/article-1/purchase", header)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d: %s", rec.Code, rec.Body.String())
	}

	paid, err := f.payments.HasPaid("article-1", testPayerEVM)
	if err != nil {
		t.Fatalf("HasPaid failed: %v", err)
	}
	if paid {
		t.Error("Expected no ledger record after a failed settlement")
	}
}

func TestPurchaseUnknownArticle(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/articles/nope/purchase", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPurchaseUnsupportedNetwork(t *testing.T) {
	f := newServerFixture(t)
	f.createArticle(t, "article-1", "0.12")

	rec := f.do(t, http.MethodPost, "/api/articles/article-1/purchase?network=ethereum", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != "Unsupported payment network" {
		t.Errorf("Unexpected error message %v", body["error"])
	}
}

func TestTipFlow(t *testing.T) {
	f := newServerFixture(t)
	f.createArticle(t, "article-1", "0.12")
	header := paymentHeader(t, "base-sepolia", testPayerEVM, testPayoutEVM, "1500000")

	// Challenge first
	rec := f.do(t, http.MethodPost, "/api/articles/article-1/tip?amount=1.50", "")
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
	var challenge payment.PaymentRequired
	if err := json.Unmarshal(rec.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("Failed to decode challenge: %v", err)
	}
	if challenge.Accepts[0].MaxAmountRequired != "1500000" {
		t.Errorf("Expected maxAmountRequired 1500000 for a $1.50 tip, got %s", challenge.Accepts[0].MaxAmountRequired)
	}

	// The same tip settles twice without a conflict
	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/api/articles/article-1/tip?amount=1.50", header)
		if rec.Code != http.StatusOK {
			t.Fatalf("Tip %d failed: %d %s", i+1, rec.Code, rec.Body.String())
		}
	}
	if f.facilitator.settleCalls.Load() != 2 {
		t.Errorf("Expected 2 settlements, got %d", f.facilitator.settleCalls.Load())
	}
}

func TestTipAmountBounds(t *testing.T) {
	f := newServerFixture(t)
	f.createArticle(t, "article-1", "0.12")

	for _, amount := range []string{"", "0.001", "500.00", "abc"} {
		rec := f.do(t, http.MethodPost, "/api/articles/article-1/tip?amount="+amount, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for amount %q, got %d", amount, rec.Code)
		}
	}
}

func TestDonateFlow(t *testing.T) {
	f := newServerFixture(t)
	header := paymentHeader(t, "base-sepolia", testPayerEVM, testPayoutEVM, "5000000")

	rec := f.do(t, http.MethodPost, "/api/donate?amount=5.00", "")
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected 402, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/donate?amount=5.00", header)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
}
