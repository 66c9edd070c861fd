package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeOracle struct {
	quotes map[string]pricing.Quote
	err    error
	calls  int
}

func (f *fakeOracle) GetQuotes(_ context.Context, _ []string) (map[string]pricing.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

func newTestEngine(store *storage.Memory, oracle Oracle) *Engine {
	return New(store, oracle, NewSettler(store), nil, nil, Config{}, nil, nil)
}

func seedUser(t *testing.T, store *storage.Memory, balance string) uuid.UUID {
	t.Helper()
	user, err := store.CreateUser(context.Background(), uuid.NewString()+"@example.com", "hash", dec(balance))
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user.ID
}

func seedOrder(t *testing.T, store *storage.Memory, userID uuid.UUID, symbol string, side storage.OrderSide, size storage.OrderSize, target string) uuid.UUID {
	t.Helper()
	order := &storage.LimitOrder{
		ID:          uuid.New(),
		UserID:      userID,
		Symbol:      symbol,
		Side:        side,
		Size:        size,
		TargetPrice: dec(target),
		Status:      storage.StatusPending,
	}
	if err := store.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order.ID
}

func usdQuote(symbol, price string) pricing.Quote {
	return pricing.Quote{Symbol: symbol, Price: dec(price), Currency: pricing.CurrencyUSD, Category: pricing.CategoryCrypto}
}

func tryQuote(symbol, price string) pricing.Quote {
	return pricing.Quote{Symbol: symbol, Price: dec(price), Currency: pricing.CurrencyTRY, Category: pricing.CategoryStock}
}

func TestEligible(t *testing.T) {
	cases := []struct {
		name   string
		side   storage.OrderSide
		price  string
		target string
		want   bool
	}{
		{"buy below target", storage.SideBuy, "95", "100", true},
		{"buy at target", storage.SideBuy, "100", "100", true},
		{"buy above target", storage.SideBuy, "101", "100", false},
		{"sell above target", storage.SideSell, "105", "100", true},
		{"sell at target", storage.SideSell, "100", "100", true},
		{"sell below target", storage.SideSell, "99", "100", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Eligible(tc.side, dec(tc.price), dec(tc.target)); got != tc.want {
				t.Fatalf("Eligible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSweepExecutesEligibleBuy(t *testing.T) {
	store := storage.NewMemory()
	userID := seedUser(t, store, "100000")
	orderID := seedOrder(t, store, userID, "THYAO", storage.SideBuy, storage.SizeByQuantity(dec("100")), "295")

	oracle := &fakeOracle{quotes: map[string]pricing.Quote{
		"THYAO":              tryQuote("THYAO", "290"),
		pricing.SymbolUSDTRY: {Symbol: pricing.SymbolUSDTRY, Price: dec("34.4"), Currency: pricing.CurrencyTRY},
	}}
	eng := newTestEngine(store, oracle)

	summary, err := eng.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Processed != 1 || summary.Completed != 1 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("summary = %+v, want 1 processed, 1 completed", summary)
	}

	order, _ := store.GetOrder(context.Background(), orderID)
	if order.Status != storage.StatusCompleted {
		t.Fatalf("order status = %s, want COMPLETED", order.Status)
	}
	user, _ := store.GetUser(context.Background(), userID)
	if !user.Balance.Equal(dec("71000")) {
		t.Errorf("balance = %s, want 71000", user.Balance)
	}
	notifications, _ := store.ListNotifications(context.Background(), userID, true)
	if len(notifications) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifications))
	}
}

func TestSweepLeavesIneligibleOrderPending(t *testing.T) {
	store := storage.NewMemory()
	userID := seedUser(t, store, "100000")
	orderID := seedOrder(t, store, userID, "BTC", storage.SideBuy, storage.SizeByQuantity(dec("0.1")), "90000")

	oracle := &fakeOracle{quotes: map[string]pricing.Quote{"BTC": usdQuote("BTC", "97000")}}
	summary, err := newTestEngine(store, oracle).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Processed != 1 || summary.Completed+summary.Failed+summary.Skipped != 0 {
		t.Fatalf("summary = %+v, want processed only", summary)
	}

	order, _ := store.GetOrder(context.Background(), orderID)
	if order.Status != storage.StatusPending {
		t.Fatalf("order status = %s, want PENDING", order.Status)
	}
}

func TestSweepSkipsOnQuoteMiss(t *testing.T) {
	store := storage.NewMemory()
	userID := seedUser(t, store, "100000")
	orderID := seedOrder(t, store, userID, "OBSCURE", storage.SideBuy, storage.SizeByQuantity(dec("1")), "10")

	oracle := &fakeOracle{quotes: map[string]pricing.Quote{}}
	summary, err := newTestEngine(store, oracle).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want 1 skipped", summary)
	}
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "no quote") {
		t.Fatalf("errors = %v, want quote-miss diagnostic", summary.Errors)
	}

	order, _ := store.GetOrder(context.Background(), orderID)
	if order.Status != storage.StatusPending {
		t.Fatalf("order status = %s, want PENDING for retry", order.Status)
	}
}

func TestSweepFailsOrderOnInsufficientFunds(t *testing.T) {
	store := storage.NewMemory()
	userID := seedUser(t, store, "100")
	orderID := seedOrder(t, store, userID, "THYAO", storage.SideBuy, storage.SizeByQuantity(dec("100")), "300")

	oracle := &fakeOracle{quotes: map[string]pricing.Quote{"THYAO": tryQuote("THYAO", "290")}}
	summary, err := newTestEngine(store, oracle).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", summary)
	}

	order, _ := store.GetOrder(context.Background(), orderID)
	if order.Status != storage.StatusFailed {
		t.Fatalf("order status = %s, want FAILED", order.Status)
	}
	if !strings.Contains(order.FailureReason, "insufficient funds") {
		t.Errorf("failure reason = %q, want insufficient funds", order.FailureReason)
	}
	notifications, _ := store.ListNotifications(context.Background(), userID, true)
	if len(notifications) != 1 {
		t.Errorf("notifications = %d, want 1 failure notice", len(notifications))
	}
}

func TestSweepResolvesNotionalSize(t *testing.T) {
	store := storage.NewMemory()
	userID := seedUser(t, store, "0")
	store.SetHolding(userID, pricing.SymbolStablecoin, dec("10000"), dec("1"))
	seedOrder(t, store, userID, "SOL", storage.SideBuy, storage.SizeByNotional(dec("2100")), "250")

	oracle := &fakeOracle{quotes: map[string]pricing.Quote{"SOL": usdQuote("SOL", "210")}}
	summary, err := newTestEngine(store, oracle).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Completed != 1 {
		t.Fatalf("summary = %+v, want 1 completed", summary)
	}

	holdings, _ := store.ListHoldings(context.Background(), userID)
	var sol, usdt decimal.Decimal
	for _, h := range holdings {
		switch h.Symbol {
		case "SOL":
			sol = h.Quantity
		case pricing.SymbolStablecoin:
			usdt = h.Quantity
		}
	}
	// 2100 USDT at 210 -> 10 SOL.
	if !sol.Equal(dec("10")) {
		t.Errorf("SOL = %s, want 10", sol)
	}
	if !usdt.Equal(dec("7900")) {
		t.Errorf("USDT = %s, want 7900", usdt)
	}
}

func TestSweepStablecoinOrderSettlesAgainstCash(t *testing.T) {
	store := storage.NewMemory()
	userID := seedUser(t, store, "0")
	store.SetHolding(userID, pricing.SymbolStablecoin, dec("500"), dec("1"))
	// SELL USDT when its TRY price reaches 34: 500 * 34.4 = 17200 TRY.
	seedOrder(t, store, userID, pricing.SymbolStablecoin, storage.SideSell, storage.SizeByQuantity(dec("500")), "34")

	oracle := &fakeOracle{quotes: map[string]pricing.Quote{
		pricing.SymbolStablecoin: {Symbol: pricing.SymbolStablecoin, Price: dec("1"), Currency: pricing.CurrencyUSD, Category: pricing.CategoryCurrency},
		pricing.SymbolUSDTRY:     {Symbol: pricing.SymbolUSDTRY, Price: dec("34.4"), Currency: pricing.CurrencyTRY},
	}}
	summary, err := newTestEngine(store, oracle).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Completed != 1 {
		t.Fatalf("summary = %+v, want 1 completed", summary)
	}

	user, _ := store.GetUser(context.Background(), userID)
	if !user.Balance.Equal(dec("17200")) {
		t.Errorf("balance = %s, want 17200 TRY", user.Balance)
	}
}

// claimRacingStore claims every order it lists, so the engine's own
// claim attempt always arrives second.
type claimRacingStore struct {
	*storage.Memory
}

func (s *claimRacingStore) ListPendingOrders(ctx context.Context) ([]storage.LimitOrder, error) {
	orders, err := s.Memory.ListPendingOrders(ctx)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		if _, err := s.Memory.ClaimOrder(ctx, order.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func TestSweepSkipsOrderClaimedElsewhere(t *testing.T) {
	mem := storage.NewMemory()
	userID := seedUser(t, mem, "100000")
	orderID := seedOrder(t, mem, userID, "BTC", storage.SideBuy, storage.SizeByQuantity(dec("0.1")), "100000")

	store := &claimRacingStore{Memory: mem}
	oracle := &fakeOracle{quotes: map[string]pricing.Quote{"BTC": usdQuote("BTC", "97000")}}
	eng := New(store, oracle, NewSettler(mem), nil, nil, Config{}, nil, nil)

	summary, err := eng.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Skipped != 1 || summary.Completed != 0 {
		t.Fatalf("summary = %+v, want 1 skipped", summary)
	}

	order, _ := mem.GetOrder(context.Background(), orderID)
	if order.Status != storage.StatusProcessing {
		t.Fatalf("order status = %s, want PROCESSING (owned by the other sweep)", order.Status)
	}
}

func TestSweepOracleErrorSkipsEverything(t *testing.T) {
	store := storage.NewMemory()
	userID := seedUser(t, store, "100000")
	seedOrder(t, store, userID, "BTC", storage.SideBuy, storage.SizeByQuantity(dec("0.1")), "100000")

	oracle := &fakeOracle{err: context.DeadlineExceeded}
	summary, err := newTestEngine(store, oracle).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Skipped != 1 || len(summary.Errors) != 1 {
		t.Fatalf("summary = %+v, want all skipped with diagnostic", summary)
	}
}

func TestSweepSecondPassFindsNothing(t *testing.T) {
	store := storage.NewMemory()
	userID := seedUser(t, store, "100000")
	seedOrder(t, store, userID, "THYAO", storage.SideBuy, storage.SizeByQuantity(dec("10")), "300")

	oracle := &fakeOracle{quotes: map[string]pricing.Quote{"THYAO": tryQuote("THYAO", "290")}}
	eng := newTestEngine(store, oracle)

	first, err := eng.Sweep(context.Background())
	if err != nil || first.Completed != 1 {
		t.Fatalf("first sweep = (%+v, %v), want 1 completed", first, err)
	}

	second, err := eng.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second.Processed != 0 || second.Completed != 0 {
		t.Fatalf("second sweep = %+v, want empty pass", second)
	}

	// Exactly one settlement happened.
	txs, _ := store.ListTransactions(context.Background(), userID, 10)
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
}

func TestSweepEmptyBook(t *testing.T) {
	store := storage.NewMemory()
	summary, err := newTestEngine(store, &fakeOracle{}).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("summary = %+v, want empty", summary)
	}
}
