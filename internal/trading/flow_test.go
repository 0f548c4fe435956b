package trading

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/market-dashboard/internal/backend"
	"github.com/example/market-dashboard/internal/cache"
	"github.com/example/market-dashboard/internal/domain"
	"github.com/example/market-dashboard/internal/models"
	"github.com/example/market-dashboard/internal/views"
)

type fakeExecutor struct {
	trade   models.Trade
	err     error
	stock   models.Stock
	calls   atomic.Int64
	lastReq models.TradeRequest
	block   chan struct{}
}

func (f *fakeExecutor) ExecuteTrade(ctx context.Context, req models.TradeRequest) (models.Trade, error) {
	f.calls.Add(1)
	f.lastReq = req
	if f.block != nil {
		<-f.block
	}
	return f.trade, f.err
}

func (f *fakeExecutor) CancelTrade(ctx context.Context, tradeID int64, userID string) error {
	return f.err
}

func (f *fakeExecutor) GetStock(ctx context.Context, symbol string) (models.Stock, error) {
	f.calls.Add(1)
	return f.stock, f.err
}

type recordingInvalidator struct {
	keys []cache.Key
}

func (r *recordingInvalidator) Invalidate(keys ...cache.Key) {
	r.keys = append(r.keys, keys...)
}

func newTestFlow(t *testing.T, exec Executor, inv Invalidator) *Flow {
	t.Helper()
	quotes, err := cache.NewQuotes(time.Minute)
	if err != nil {
		t.Fatalf("NewQuotes: %v", err)
	}
	t.Cleanup(quotes.Close)
	return New(exec, inv, quotes, zap.NewNop())
}

func TestValidateQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity float64
		wantMsg  string
	}{
		{"one share", 1, ""},
		{"typical order", 10, ""},
		{"upper bound", 10000, ""},
		{"zero", 0, "Quantity must be greater than 0"},
		{"negative", -3, "Quantity must be greater than 0"},
		{"fractional", 2.5, "Quantity must be a whole number"},
		{"over the cap", 10001, "Quantity cannot exceed 10,000 shares"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuantity(tt.quantity)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Message != tt.wantMsg {
				t.Fatalf("message %q, want %q", ve.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidationFailureSendsNoRequest(t *testing.T) {
	exec := &fakeExecutor{}
	flow := newTestFlow(t, exec, &recordingInvalidator{})

	_, err := flow.Submit(context.Background(), "u1", "AAPL", domain.TradeBuy, 0)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if exec.calls.Load() != 0 {
		t.Fatal("validation failure must abort before any network call")
	}
	if flow.Err() != "Quantity must be greater than 0" {
		t.Fatalf("retained error %q", flow.Err())
	}
}

func TestSubmitInvalidatesAllDependentViews(t *testing.T) {
	exec := &fakeExecutor{trade: models.Trade{ID: 7, StockSymbol: "AAPL", TradeType: domain.TradeBuy, Quantity: 10}}
	inv := &recordingInvalidator{}
	flow := newTestFlow(t, exec, inv)

	trade, err := flow.Submit(context.Background(), "u1", "AAPL", domain.TradeBuy, 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if trade.ID != 7 {
		t.Fatalf("unexpected trade %+v", trade)
	}
	if exec.lastReq.Quantity != 10 || exec.lastReq.TradeType != domain.TradeBuy || exec.lastReq.UserID != "u1" {
		t.Fatalf("unexpected request %+v", exec.lastReq)
	}

	want := cache.DependentsOfTrade("u1")
	if len(inv.keys) != len(want) {
		t.Fatalf("invalidated %v, want %v", inv.keys, want)
	}
	seen := make(map[cache.Key]bool, len(inv.keys))
	for _, k := range inv.keys {
		seen[k] = true
	}
	for _, k := range want {
		if !seen[k] {
			t.Fatalf("dependent view %+v not invalidated", k)
		}
	}
	if flow.State() != StateSucceeded {
		t.Fatalf("state = %s", flow.State())
	}
}

// The correctness contract end to end: after a successful submission each
// dependent view observes an actual refetch, not just a stale mark.
func TestSubmitForcesRefetchOfEveryDependentView(t *testing.T) {
	store := cache.NewStore()
	reg := views.New(store, time.Hour, zap.NewNop())
	defer reg.Close()

	counts := map[cache.View]*atomic.Int64{
		cache.ViewStocks:    {},
		cache.ViewPortfolio: {},
		cache.ViewSummary:   {},
		cache.ViewTrades:    {},
	}
	counting := func(key cache.Key, rows any) views.FetchFunc {
		return func(ctx context.Context) (any, error) {
			counts[key.View].Add(1)
			return rows, nil
		}
	}
	reg.Register(cache.Stocks(), counting(cache.Stocks(), []models.Stock{}))
	reg.Register(cache.Portfolio("u1"), counting(cache.Portfolio("u1"), []models.Holding{}))
	reg.Register(cache.Summary("u1"), counting(cache.Summary("u1"), models.PortfolioSummary{}))
	reg.Register(cache.Trades("u1"), counting(cache.Trades("u1"), []models.Trade{}))

	allAt := func(n int64) bool {
		for _, c := range counts {
			if c.Load() != n {
				return false
			}
		}
		return true
	}
	waitFor(t, func() bool { return allAt(1) }, "initial fetches missing")

	exec := &fakeExecutor{trade: models.Trade{ID: 1}}
	flow := newTestFlow(t, exec, reg)
	if _, err := flow.Submit(context.Background(), "u1", "AAPL", domain.TradeBuy, 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, func() bool { return allAt(2) }, "a dependent view was not refetched after the trade")
}

func TestSubmitSurfacesServerMessage(t *testing.T) {
	exec := &fakeExecutor{err: &backend.ServerError{Status: 400, Message: "Insufficient shares to sell"}}
	flow := newTestFlow(t, exec, &recordingInvalidator{})

	_, err := flow.Submit(context.Background(), "u1", "AAPL", domain.TradeSell, 5)
	var te *TradeError
	if !errors.As(err, &te) {
		t.Fatalf("expected TradeError, got %v", err)
	}
	if te.Message != "Insufficient shares to sell" {
		t.Fatalf("message %q", te.Message)
	}
	if flow.State() != StateIdle {
		t.Fatalf("failed submission should return to Idle, state = %s", flow.State())
	}
	if flow.Err() != "Insufficient shares to sell" {
		t.Fatalf("retained error %q", flow.Err())
	}
}

func TestSubmitFallbackMessage(t *testing.T) {
	exec := &fakeExecutor{err: &backend.NetworkError{Op: "POST /trades/buy", Err: errors.New("connection refused")}}
	flow := newTestFlow(t, exec, &recordingInvalidator{})

	_, err := flow.Submit(context.Background(), "u1", "AAPL", domain.TradeBuy, 1)
	var te *TradeError
	if !errors.As(err, &te) {
		t.Fatalf("expected TradeError, got %v", err)
	}
	if te.Message != FallbackMessage {
		t.Fatalf("message %q, want fallback", te.Message)
	}
}

func TestFailureDoesNotInvalidate(t *testing.T) {
	exec := &fakeExecutor{err: &backend.ServerError{Status: 500}}
	inv := &recordingInvalidator{}
	flow := newTestFlow(t, exec, inv)

	_, _ = flow.Submit(context.Background(), "u1", "AAPL", domain.TradeBuy, 1)
	if len(inv.keys) != 0 {
		t.Fatalf("failed submission invalidated %v", inv.keys)
	}
}

func TestSingleSubmissionInFlight(t *testing.T) {
	exec := &fakeExecutor{block: make(chan struct{})}
	flow := newTestFlow(t, exec, &recordingInvalidator{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = flow.Submit(context.Background(), "u1", "AAPL", domain.TradeBuy, 1)
	}()

	waitFor(t, func() bool { return flow.State() == StateSubmitting }, "first submission never started")

	if _, err := flow.Submit(context.Background(), "u1", "AAPL", domain.TradeBuy, 1); err == nil {
		t.Fatal("second concurrent submission must be rejected")
	}
	if exec.calls.Load() != 1 {
		t.Fatalf("backend saw %d submissions", exec.calls.Load())
	}

	close(exec.block)
	<-done
}

func TestResetAndClearError(t *testing.T) {
	exec := &fakeExecutor{trade: models.Trade{ID: 1}}
	flow := newTestFlow(t, exec, &recordingInvalidator{})

	if _, err := flow.Submit(context.Background(), "u1", "AAPL", domain.TradeBuy, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	flow.Reset()
	if flow.State() != StateIdle || flow.Err() != "" {
		t.Fatalf("Reset left state=%s err=%q", flow.State(), flow.Err())
	}

	_, _ = flow.Submit(context.Background(), "u1", "AAPL", domain.TradeBuy, 0)
	flow.ClearError()
	if flow.Err() != "" {
		t.Fatal("ClearError kept the message")
	}
}

func TestOrderTotal(t *testing.T) {
	stock := models.Stock{Symbol: "AAPL", CurrentPrice: decimal.NewFromInt(150)}
	total := OrderTotal(stock, 10)
	if total.StringFixed(2) != "1500.00" {
		t.Fatalf("order total = %s, want 1500.00", total.StringFixed(2))
	}
}

func TestQuoteUsesCache(t *testing.T) {
	exec := &fakeExecutor{stock: models.Stock{Symbol: "AAPL", CurrentPrice: decimal.NewFromInt(150)}}
	flow := newTestFlow(t, exec, &recordingInvalidator{})

	first, err := flow.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	flow.quotes.Wait()

	second, err := flow.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Quote (cached): %v", err)
	}
	if exec.calls.Load() != 1 {
		t.Fatalf("expected one backend lookup, saw %d", exec.calls.Load())
	}
	if !first.CurrentPrice.Equal(second.CurrentPrice) {
		t.Fatal("cached quote differs")
	}
}

func TestCancelInvalidatesTrades(t *testing.T) {
	exec := &fakeExecutor{}
	inv := &recordingInvalidator{}
	flow := newTestFlow(t, exec, inv)

	if err := flow.Cancel(context.Background(), 42, "u1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(inv.keys) != 1 || inv.keys[0] != cache.Trades("u1") {
		t.Fatalf("cancel invalidated %v", inv.keys)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
