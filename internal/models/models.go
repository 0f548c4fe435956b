package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/market-dashboard/internal/domain"
)

// Stock is a market snapshot row. Everything here is backend-owned; the
// client only mirrors it.
type Stock struct {
	Symbol           string           `json:"symbol"`
	CompanyName      string           `json:"companyName"`
	CurrentPrice     decimal.Decimal  `json:"currentPrice"`
	ChangePercentage *decimal.Decimal `json:"changePercentage,omitempty"`
	OpenPrice        *decimal.Decimal `json:"openPrice,omitempty"`
	HighPrice        *decimal.Decimal `json:"highPrice,omitempty"`
	LowPrice         *decimal.Decimal `json:"lowPrice,omitempty"`
	Volume           *int64           `json:"volume,omitempty"`
	LastUpdated      time.Time        `json:"lastUpdated"`
}

// Holding is one portfolio row. The derived fields (totalValue, totalCost,
// gainLoss, gainLossPercentage) are computed server-side and are never
// recomputed here, only displayed.
type Holding struct {
	ID                   int64           `json:"id"`
	UserID               string          `json:"userId"`
	StockSymbol          string          `json:"stockSymbol"`
	Quantity             int64           `json:"quantity"`
	AveragePurchasePrice decimal.Decimal `json:"averagePurchasePrice"`
	CurrentPrice         decimal.Decimal `json:"currentPrice"`
	TotalValue           decimal.Decimal `json:"totalValue"`
	TotalCost            decimal.Decimal `json:"totalCost"`
	GainLoss             decimal.Decimal `json:"gainLoss"`
	GainLossPercentage   decimal.Decimal `json:"gainLossPercentage"`
	LastUpdated          time.Time       `json:"lastUpdated"`
}

// PortfolioSummary aggregates all holdings for a user.
type PortfolioSummary struct {
	TotalValue              decimal.Decimal `json:"totalValue"`
	TotalCost               decimal.Decimal `json:"totalCost"`
	TotalGainLoss           decimal.Decimal `json:"totalGainLoss"`
	TotalGainLossPercentage decimal.Decimal `json:"totalGainLossPercentage"`
	TotalPositions          int             `json:"totalPositions"`
}

// Trade is a single buy/sell execution record.
type Trade struct {
	ID            int64              `json:"id"`
	UserID        string             `json:"userId"`
	StockSymbol   string             `json:"stockSymbol"`
	TradeType     domain.TradeType   `json:"tradeType"`
	Quantity      int64              `json:"quantity"`
	Price         decimal.Decimal    `json:"price"`
	Timestamp     time.Time          `json:"timestamp"`
	Status        domain.TradeStatus `json:"status"`
	StatusMessage string             `json:"statusMessage,omitempty"`
	TotalValue    decimal.Decimal    `json:"totalValue"`
}

// TradeRequest is the only entity this client constructs and sends.
type TradeRequest struct {
	UserID      string           `json:"userId"`
	StockSymbol string           `json:"stockSymbol"`
	TradeType   domain.TradeType `json:"tradeType"`
	Quantity    int64            `json:"quantity"`
}
