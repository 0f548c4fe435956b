package views

import (
	"strings"

	"github.com/example/market-dashboard/internal/domain"
	"github.com/example/market-dashboard/internal/models"
)

// SearchStocks filters the cached stock list by a case-insensitive
// substring match against symbol and company name. An empty query passes
// everything. Purely in-memory; never refetches.
func SearchStocks(stocks []models.Stock, query string) []models.Stock {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return stocks
	}
	out := make([]models.Stock, 0, len(stocks))
	for _, s := range stocks {
		if strings.Contains(strings.ToLower(s.Symbol), q) ||
			strings.Contains(strings.ToLower(s.CompanyName), q) {
			out = append(out, s)
		}
	}
	return out
}

// FilterTrades applies the single-slot trade history filter, preserving
// input order. A type filter matches only tradeType, a status filter only
// status. The COMPLETED filter matches the EXECUTED status.
func FilterTrades(trades []models.Trade, f domain.TradeFilter) []models.Trade {
	if f == domain.FilterAll || f == "" {
		return trades
	}
	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		switch f {
		case domain.FilterBuy, domain.FilterSell:
			if t.TradeType == domain.TradeType(f) {
				out = append(out, t)
			}
		case domain.FilterPending:
			if t.Status == domain.StatusPending {
				out = append(out, t)
			}
		case domain.FilterCompleted:
			if t.Status == domain.StatusExecuted {
				out = append(out, t)
			}
		}
	}
	return out
}
