// Package trading runs the trade submission flow: client-side quantity
// checks, a single in-flight submission per flow, and invalidation of every
// dependent view once the backend confirms the trade.
package trading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/market-dashboard/internal/backend"
	"github.com/example/market-dashboard/internal/cache"
	"github.com/example/market-dashboard/internal/domain"
	"github.com/example/market-dashboard/internal/models"
)

// MaxQuantity is the largest order size accepted client-side. The backend
// remains authoritative.
const MaxQuantity = 10000

// FallbackMessage is shown when a failed submission carries no message of
// its own.
const FallbackMessage = "An error occurred while executing the trade"

// State tracks one submission. Failed submissions return the flow to Idle
// with the error message retained until the next edit or resubmission.
type State string

const (
	StateIdle       State = "IDLE"
	StateSubmitting State = "SUBMITTING"
	StateSucceeded  State = "SUCCEEDED"
)

// ValidationError is a client-side pre-check failure. No request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// TradeError is a submission the backend rejected or that never reached it.
type TradeError struct {
	Message string
	Err     error
}

func (e *TradeError) Error() string { return "trade failed: " + e.Message }
func (e *TradeError) Unwrap() error { return e.Err }

var errInFlight = errors.New("a submission is already in flight")

// Executor is the slice of the backend client the flow needs.
type Executor interface {
	ExecuteTrade(ctx context.Context, req models.TradeRequest) (models.Trade, error)
	CancelTrade(ctx context.Context, tradeID int64, userID string) error
	GetStock(ctx context.Context, symbol string) (models.Stock, error)
}

// Invalidator marks dependent views stale after a successful mutation.
type Invalidator interface {
	Invalidate(keys ...cache.Key)
}

type Flow struct {
	backend Executor
	views   Invalidator
	quotes  *cache.Quotes
	log     *zap.Logger

	// one submission in flight at a time
	inFlight chan struct{}

	stateMu sync.Mutex
	state   State
	lastErr string
}

func New(exec Executor, inv Invalidator, quotes *cache.Quotes, log *zap.Logger) *Flow {
	f := &Flow{
		backend:  exec,
		views:    inv,
		quotes:   quotes,
		log:      log,
		inFlight: make(chan struct{}, 1),
		state:    StateIdle,
	}
	f.inFlight <- struct{}{}
	return f
}

// ValidateQuantity runs the advisory client-side checks. They run before
// any network call; a failure aborts the submission with no request sent.
func ValidateQuantity(quantity float64) error {
	if quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "Quantity must be greater than 0"}
	}
	if quantity != math.Trunc(quantity) {
		return &ValidationError{Field: "quantity", Message: "Quantity must be a whole number"}
	}
	if quantity > MaxQuantity {
		return &ValidationError{Field: "quantity", Message: "Quantity cannot exceed 10,000 shares"}
	}
	return nil
}

// Quote prices a pending order, serving repeated lookups for the same
// symbol from the short-TTL quote cache.
func (f *Flow) Quote(ctx context.Context, symbol string) (models.Stock, error) {
	if s, ok := f.quotes.Get(symbol); ok {
		return s, nil
	}
	s, err := f.backend.GetStock(ctx, symbol)
	if err != nil {
		return models.Stock{}, err
	}
	f.quotes.Set(symbol, s)
	return s, nil
}

// OrderTotal is the displayed pre-submission total: quantity × current
// price. The executed trade's totalValue still comes from the backend.
func OrderTotal(stock models.Stock, quantity int64) decimal.Decimal {
	return stock.CurrentPrice.Mul(decimal.NewFromInt(quantity))
}

// Submit validates, executes, and on success invalidates the stock list,
// portfolio, portfolio summary, and trade list for userID. Only one
// submission may be in flight per flow.
func (f *Flow) Submit(ctx context.Context, userID, symbol string, tradeType domain.TradeType, quantity float64) (models.Trade, error) {
	select {
	case <-f.inFlight:
	default:
		return models.Trade{}, errInFlight
	}
	defer func() { f.inFlight <- struct{}{} }()

	if err := ValidateQuantity(quantity); err != nil {
		f.setState(StateIdle, err.(*ValidationError).Message)
		return models.Trade{}, err
	}
	if !tradeType.Valid() {
		err := &ValidationError{Field: "tradeType", Message: fmt.Sprintf("unknown trade type %q", tradeType)}
		f.setState(StateIdle, err.Message)
		return models.Trade{}, err
	}

	f.setState(StateSubmitting, "")
	req := models.TradeRequest{
		UserID:      userID,
		StockSymbol: symbol,
		TradeType:   tradeType,
		Quantity:    int64(quantity),
	}

	trade, err := f.backend.ExecuteTrade(ctx, req)
	if err != nil {
		msg := backend.ServerMessage(err)
		if msg == "" {
			msg = FallbackMessage
		}
		f.setState(StateIdle, msg)
		f.log.Warn("trade submission failed",
			zap.String("symbol", symbol),
			zap.String("trade_type", tradeType.String()),
			zap.Error(err),
		)
		return models.Trade{}, &TradeError{Message: msg, Err: err}
	}

	f.setState(StateSucceeded, "")
	f.log.Info("trade executed",
		zap.Int64("trade_id", trade.ID),
		zap.String("symbol", trade.StockSymbol),
		zap.String("trade_type", trade.TradeType.String()),
		zap.Int64("quantity", trade.Quantity),
	)

	// Every dependent read must be stale before it is next trusted.
	f.views.Invalidate(cache.DependentsOfTrade(userID)...)
	f.quotes.Del(symbol)
	return trade, nil
}

// Cancel cancels a pending trade and invalidates the trade list.
func (f *Flow) Cancel(ctx context.Context, tradeID int64, userID string) error {
	if err := f.backend.CancelTrade(ctx, tradeID, userID); err != nil {
		msg := backend.ServerMessage(err)
		if msg == "" {
			msg = FallbackMessage
		}
		return &TradeError{Message: msg, Err: err}
	}
	f.views.Invalidate(cache.Trades(userID))
	return nil
}

// Reset dismisses a finished submission, returning the flow to Idle and
// clearing any retained error.
func (f *Flow) Reset() { f.setState(StateIdle, "") }

// ClearError drops the retained error message, as on the next field edit.
func (f *Flow) ClearError() {
	f.stateMu.Lock()
	f.lastErr = ""
	f.stateMu.Unlock()
}

func (f *Flow) State() State {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	return f.state
}

func (f *Flow) Err() string {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	return f.lastErr
}

func (f *Flow) setState(s State, errMsg string) {
	f.stateMu.Lock()
	f.state = s
	f.lastErr = errMsg
	f.stateMu.Unlock()
}
