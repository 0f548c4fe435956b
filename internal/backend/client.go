// Package backend is the typed REST client for the trading backend. All
// trading logic, pricing, and persistence live on the other side of this
// client; nothing here computes, it only fetches and submits.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/market-dashboard/internal/domain"
	"github.com/example/market-dashboard/internal/models"
)

type Client struct {
	baseURL string
	hc      *http.Client
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		log:     log,
	}
}

// --- Stocks ---

func (c *Client) ListStocks(ctx context.Context) ([]models.Stock, error) {
	var out []models.Stock
	if err := c.do(ctx, http.MethodGet, "/stocks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStock(ctx context.Context, symbol string) (models.Stock, error) {
	var out models.Stock
	err := c.do(ctx, http.MethodGet, "/stocks/"+url.PathEscape(symbol), nil, &out)
	if IsNotFound(err) {
		return models.Stock{}, fmt.Errorf("stock %s: %w", symbol, ErrNotFound)
	}
	return out, err
}

func (c *Client) SearchStocks(ctx context.Context, query string) ([]models.Stock, error) {
	var out []models.Stock
	path := "/stocks/search?query=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := c.do(ctx, http.MethodGet, "/stocks/"+url.PathEscape(symbol)+"/price", nil, &out)
	if IsNotFound(err) {
		return decimal.Zero, fmt.Errorf("stock %s: %w", symbol, ErrNotFound)
	}
	return out, err
}

// UpdatePrice is the admin price override.
func (c *Client) UpdatePrice(ctx context.Context, symbol string, newPrice decimal.Decimal) error {
	body := map[string]decimal.Decimal{"newPrice": newPrice}
	return c.do(ctx, http.MethodPut, "/stocks/"+url.PathEscape(symbol)+"/price", body, nil)
}

// --- Portfolio ---

func (c *Client) GetPortfolio(ctx context.Context, userID string) ([]models.Holding, error) {
	var out []models.Holding
	path := "/portfolio/user/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetHolding(ctx context.Context, userID, symbol string) (models.Holding, error) {
	var out models.Holding
	path := "/portfolio/user/" + url.PathEscape(userID) + "/stock/" + url.PathEscape(symbol)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetSummary(ctx context.Context, userID string) (models.PortfolioSummary, error) {
	var out models.PortfolioSummary
	path := "/portfolio/user/" + url.PathEscape(userID) + "/summary"
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) CheckShares(ctx context.Context, userID, symbol string, quantity int64) (bool, error) {
	var out bool
	path := fmt.Sprintf("/portfolio/user/%s/stock/%s/shares/%d/check",
		url.PathEscape(userID), url.PathEscape(symbol), quantity)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// --- Trades ---

func (c *Client) Buy(ctx context.Context, req models.TradeRequest) (models.Trade, error) {
	var out models.Trade
	err := c.do(ctx, http.MethodPost, "/trades/buy", req, &out)
	return out, err
}

func (c *Client) Sell(ctx context.Context, req models.TradeRequest) (models.Trade, error) {
	var out models.Trade
	err := c.do(ctx, http.MethodPost, "/trades/sell", req, &out)
	return out, err
}

// ExecuteTrade routes to the buy or sell endpoint based on the request's
// trade type.
func (c *Client) ExecuteTrade(ctx context.Context, req models.TradeRequest) (models.Trade, error) {
	if req.TradeType == domain.TradeSell {
		return c.Sell(ctx, req)
	}
	return c.Buy(ctx, req)
}

func (c *Client) ListTrades(ctx context.Context, userID string) ([]models.Trade, error) {
	var out []models.Trade
	path := "/trades/user/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListStockTrades(ctx context.Context, userID, symbol string) ([]models.Trade, error) {
	var out []models.Trade
	path := "/trades/user/" + url.PathEscape(userID) + "/stock/" + url.PathEscape(symbol)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTrade(ctx context.Context, tradeID int64) (models.Trade, error) {
	var out models.Trade
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/trades/%d", tradeID), nil, &out)
	if IsNotFound(err) {
		return models.Trade{}, fmt.Errorf("trade %d: %w", tradeID, ErrNotFound)
	}
	return out, err
}

// CancelTrade cancels a pending trade. The backend rejects cancellation of
// trades in any other status.
func (c *Client) CancelTrade(ctx context.Context, tradeID int64, userID string) error {
	path := fmt.Sprintf("/trades/%d/cancel?userId=%s", tradeID, url.QueryEscape(userID))
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// ValidateTrade asks the backend to pre-check a trade request without
// executing it.
func (c *Client) ValidateTrade(ctx context.Context, req models.TradeRequest) (bool, error) {
	var out bool
	err := c.do(ctx, http.MethodPost, "/trades/validate", req, &out)
	return out, err
}

// --- plumbing ---

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("backend_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServerError{Status: resp.StatusCode, Message: readMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readMessage pulls the "message" field out of an error payload, tolerating
// non-JSON bodies.
func readMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return ""
	}
	return payload.Message
}
