package domain

import "strings"

// TradeType is the direction of a trade.
type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

func (t TradeType) String() string { return string(t) }
func (t TradeType) Valid() bool    { return t == TradeBuy || t == TradeSell }

func ParseTradeType(s string) (TradeType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return TradeBuy, true
	case "SELL":
		return TradeSell, true
	default:
		return "", false
	}
}

// TradeStatus is the backend-assigned lifecycle state of a trade.
type TradeStatus string

const (
	StatusPending   TradeStatus = "PENDING"
	StatusExecuted  TradeStatus = "EXECUTED"
	StatusFailed    TradeStatus = "FAILED"
	StatusCancelled TradeStatus = "CANCELLED"
)

func (s TradeStatus) String() string { return string(s) }
func (s TradeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusExecuted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// TradeFilter is the single-slot trade history filter: either a type
// filter or a status filter, never both.
type TradeFilter string

const (
	FilterAll       TradeFilter = "ALL"
	FilterBuy       TradeFilter = "BUY"
	FilterSell      TradeFilter = "SELL"
	FilterCompleted TradeFilter = "COMPLETED"
	FilterPending   TradeFilter = "PENDING"
)

func (f TradeFilter) String() string { return string(f) }

func ParseTradeFilter(s string) (TradeFilter, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ALL":
		return FilterAll, true
	case "BUY":
		return FilterBuy, true
	case "SELL":
		return FilterSell, true
	case "COMPLETED":
		return FilterCompleted, true
	case "PENDING":
		return FilterPending, true
	default:
		return "", false
	}
}
