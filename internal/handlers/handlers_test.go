package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"log/slog"

	"github.com/FrknKoseoglu/phintech-core/internal/engine"
	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/service"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type stubQuoter struct {
	quotes map[string]pricing.Quote
}

func (s *stubQuoter) GetQuotes(_ context.Context, symbols []string) (map[string]pricing.Quote, error) {
	out := make(map[string]pricing.Quote)
	for _, symbol := range symbols {
		if q, ok := s.quotes[symbol]; ok {
			out[symbol] = q
		}
	}
	return out, nil
}

type stubSweeper struct {
	summary *engine.Summary
	err     error
}

func (s *stubSweeper) Sweep(_ context.Context) (*engine.Summary, error) {
	return s.summary, s.err
}

func newTestRouter(t *testing.T, sweeper Sweeper, sweepSecret string) (*gin.Engine, *storage.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemory()
	quoter := &stubQuoter{quotes: map[string]pricing.Quote{
		"BTC":                {Symbol: "BTC", Price: dec("97000"), Currency: pricing.CurrencyUSD, Category: pricing.CategoryCrypto},
		pricing.SymbolUSDTRY: {Symbol: pricing.SymbolUSDTRY, Price: dec("34.4"), Currency: pricing.CurrencyTRY},
	}}
	svc := service.New(store, quoter, engine.NewSettler(store), slog.Default(), nil, dec("100000"), dec("34.4"))

	handler := &Handler{
		Accounts:    svc,
		Orders:      svc,
		Wallet:      svc,
		Market:      svc,
		Portfolio:   svc,
		Sweeper:     sweeper,
		Logger:      slog.Default(),
		JWTSecret:   []byte("test-secret"),
		TokenTTL:    time.Hour,
		SweepSecret: sweepSecret,
	}

	router := gin.New()
	handler.Register(router)
	return router, store
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "user@example.com",
		"password": "long-enough-pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("register response missing token: %s", rec.Body.String())
	}
	return resp.Token
}

func TestRegisterLoginFlow(t *testing.T) {
	router, _ := newTestRouter(t, &stubSweeper{}, "")
	registerUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "user@example.com", "password": "long-enough-pass",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "user@example.com", "password": "long-enough-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "user@example.com", "password": "wrong-password!",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}
}

func TestOrdersRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t, &stubSweeper{}, "")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders", "", map[string]string{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without token", rec.Code)
	}
}

func TestCreateAndCancelOrder(t *testing.T) {
	router, _ := newTestRouter(t, &stubSweeper{}, "")
	token := registerUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders", token, map[string]string{
		"symbol": "btc", "side": "buy", "amount": "1000", "target_price": "90000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		Amount  string `json:"amount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Status != "PENDING" || created.Amount != "1000" {
		t.Fatalf("created = %+v, want PENDING amount 1000", created)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/orders", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Orders []struct {
			OrderID      string  `json:"order_id"`
			CurrentPrice *string `json:"current_price"`
		} `json:"orders"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Orders) != 1 || list.Orders[0].CurrentPrice == nil {
		t.Fatalf("list = %s, want one annotated order", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/orders/"+created.OrderID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/orders/"+created.OrderID, token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel status = %d, want 409", rec.Code)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	router, _ := newTestRouter(t, &stubSweeper{}, "")
	token := registerUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders", token, map[string]string{
		"symbol": "BTC", "side": "buy", "quantity": "1", "amount": "1000", "target_price": "90000",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for both sizes set", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/orders", token, map[string]string{
		"symbol": "NOSUCH", "side": "buy", "quantity": "1", "target_price": "10",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown asset", rec.Code)
	}
}

func TestDepositEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubSweeper{}, "")
	token := registerUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wallet/deposit", token, map[string]string{"amount": "2500"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("deposit status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/wallet/transactions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transactions status = %d", rec.Code)
	}
	var resp struct {
		Transactions []struct {
			Type  string `json:"type"`
			Total string `json:"total"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Transactions) != 1 || resp.Transactions[0].Type != "DEPOSIT" {
		t.Fatalf("transactions = %s, want one DEPOSIT", rec.Body.String())
	}
}

func TestSweepEndpoint(t *testing.T) {
	summary := &engine.Summary{Processed: 3, Completed: 2, Skipped: 1, Errors: []string{}}

	t.Run("disabled without secret", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubSweeper{summary: summary}, "")
		rec := doJSON(t, router, http.MethodPost, "/internal/sweep", "ops-secret", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubSweeper{summary: summary}, "ops-secret")
		rec := doJSON(t, router, http.MethodPost, "/internal/sweep", "not-it", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("missing bearer", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubSweeper{summary: summary}, "ops-secret")
		rec := doJSON(t, router, http.MethodPost, "/internal/sweep", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("runs sweep", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubSweeper{summary: summary}, "ops-secret")
		rec := doJSON(t, router, http.MethodPost, "/internal/sweep", "ops-secret", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var got engine.Summary
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		if got.Processed != 3 || got.Completed != 2 {
			t.Fatalf("summary = %+v", got)
		}
	})

	t.Run("already running", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubSweeper{err: engine.ErrSweepInProgress}, "ops-secret")
		rec := doJSON(t, router, http.MethodPost, "/internal/sweep", "ops-secret", nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})
}

func TestPortfolioEndpoint(t *testing.T) {
	router, store := newTestRouter(t, &stubSweeper{}, "")
	token := registerUser(t, router)

	users, err := store.GetUserByEmail(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	store.SetHolding(users.ID, "BTC", dec("0.1"), dec("90000"))

	rec := doJSON(t, router, http.MethodGet, "/api/v1/portfolio", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("portfolio status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		NetWorth struct {
			InvestmentsUSD string `json:"investments_usd"`
		} `json:"net_worth"`
		Holdings []struct {
			Symbol string `json:"symbol"`
		} `json:"holdings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	invested, err := decimal.NewFromString(resp.NetWorth.InvestmentsUSD)
	if err != nil || !invested.Equal(dec("9700")) || len(resp.Holdings) != 1 {
		t.Fatalf("portfolio = %s", rec.Body.String())
	}
}
