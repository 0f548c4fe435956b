// Package web serves the dashboard surface: cached views as JSON, the trade
// form's submit and cancel actions, and a websocket push channel.
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/market-dashboard/internal/backend"
	"github.com/example/market-dashboard/internal/cache"
	"github.com/example/market-dashboard/internal/domain"
	"github.com/example/market-dashboard/internal/models"
	"github.com/example/market-dashboard/internal/trading"
	"github.com/example/market-dashboard/internal/views"
)

type Server struct {
	R        *gin.Engine
	Views    *views.Registry
	Flow     *trading.Flow
	Hub      *Hub
	Logger   *zap.Logger
	UserID   string
	upgrader websocket.Upgrader
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type tradeForm struct {
	StockSymbol string  `json:"stockSymbol"`
	TradeType   string  `json:"tradeType"`
	Quantity    float64 `json:"quantity"`
}

// NewServer wires the router, registry, flow, hub, and middleware. The demo
// runs against a fixed user id.
func NewServer(reg *views.Registry, flow *trading.Flow, hub *Hub, logger *zap.Logger, userID, corsOrigin string) *Server {
	g := gin.New()

	// Request logging
	g.Use(func(cn *gin.Context) {
		start := time.Now()
		cn.Next()
		logger.Info("http_request",
			zap.String("method", cn.Request.Method),
			zap.String("path", cn.Request.URL.Path),
			zap.Int("status", cn.Writer.Status()),
			zap.String("ip", cn.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	})

	g.Use(gin.Recovery())

	// CORS
	g.Use(func(cn *gin.Context) {
		origin := cn.GetHeader("Origin")
		cn.Writer.Header().Set("Vary", "Origin")
		cn.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		cn.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		cn.Writer.Header().Set("Access-Control-Max-Age", "86400")
		if corsOrigin == "*" {
			cn.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && origin == corsOrigin {
			cn.Writer.Header().Set("Access-Control-Allow-Origin", corsOrigin)
		}
		if cn.Request.Method == http.MethodOptions {
			cn.AbortWithStatus(http.StatusNoContent)
			return
		}
		cn.Next()
	})

	s := &Server{
		R:      g,
		Views:  reg,
		Flow:   flow,
		Hub:    hub,
		Logger: logger,
		UserID: userID,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	g.GET("/healthz", func(cn *gin.Context) { cn.JSON(http.StatusOK, gin.H{"ok": true}) })
	g.GET("/api/views/stocks", s.getStocks)
	g.GET("/api/views/portfolio", s.getPortfolio)
	g.GET("/api/views/summary", s.getSummary)
	g.GET("/api/views/trades", s.getTrades)
	g.GET("/api/quote/:symbol", s.getQuote)
	g.POST("/api/trade", s.postTrade)
	g.PUT("/api/trades/:id/cancel", s.cancelTrade)
	g.GET("/ws", s.serveWS)

	return s
}

// --- Helpers ---

func (s *Server) badRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, apiError{Code: code, Message: msg})
}

func (s *Server) upstreamError(c *gin.Context, where string, err error) {
	if backend.IsNotFound(err) {
		c.JSON(http.StatusNotFound, apiError{Code: "not_found", Message: err.Error()})
		return
	}
	s.Logger.Error("upstream_error", zap.String("where", where), zap.Error(err))
	c.JSON(http.StatusBadGateway, apiError{Code: "upstream_error", Message: "backend request failed"})
}

// --- View handlers (cache-first; a cold or stale entry refetches) ---

func (s *Server) getStocks(c *gin.Context) {
	rows, err := views.Rows[[]models.Stock](c.Request.Context(), s.Views, cache.Stocks())
	if err != nil {
		s.upstreamError(c, "stocks", err)
		return
	}
	rows = views.SearchStocks(rows, c.Query("query"))
	if rows == nil {
		rows = []models.Stock{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) getPortfolio(c *gin.Context) {
	rows, err := views.Rows[[]models.Holding](c.Request.Context(), s.Views, cache.Portfolio(s.UserID))
	if err != nil {
		s.upstreamError(c, "portfolio", err)
		return
	}
	if rows == nil {
		rows = []models.Holding{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) getSummary(c *gin.Context) {
	summary, err := views.Rows[models.PortfolioSummary](c.Request.Context(), s.Views, cache.Summary(s.UserID))
	if err != nil {
		s.upstreamError(c, "summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getTrades(c *gin.Context) {
	filter, ok := domain.ParseTradeFilter(c.Query("filter"))
	if !ok {
		s.badRequest(c, "bad_filter", "filter must be one of ALL, BUY, SELL, COMPLETED, PENDING")
		return
	}
	rows, err := views.Rows[[]models.Trade](c.Request.Context(), s.Views, cache.Trades(s.UserID))
	if err != nil {
		s.upstreamError(c, "trades", err)
		return
	}
	rows = views.FilterTrades(rows, filter)
	if rows == nil {
		rows = []models.Trade{}
	}
	c.JSON(http.StatusOK, rows)
}

// getQuote prices a pending order: the current stock plus the displayed
// total for an optional quantity.
func (s *Server) getQuote(c *gin.Context) {
	stock, err := s.Flow.Quote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.upstreamError(c, "quote", err)
		return
	}
	resp := gin.H{"stock": stock}
	if raw := c.Query("quantity"); raw != "" {
		qty, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || qty < 0 {
			s.badRequest(c, "bad_quantity", "quantity must be a non-negative integer")
			return
		}
		resp["orderTotal"] = trading.OrderTotal(stock, qty)
	}
	c.JSON(http.StatusOK, resp)
}

// --- Mutations ---

func (s *Server) postTrade(c *gin.Context) {
	var form tradeForm
	if err := c.ShouldBindJSON(&form); err != nil {
		s.badRequest(c, "bad_request", err.Error())
		return
	}
	tradeType, ok := domain.ParseTradeType(form.TradeType)
	if !ok {
		s.badRequest(c, "bad_trade_type", "tradeType must be BUY or SELL")
		return
	}

	trade, err := s.Flow.Submit(c.Request.Context(), s.UserID, form.StockSymbol, tradeType, form.Quantity)
	if err != nil {
		var ve *trading.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, apiError{Code: "invalid_" + ve.Field, Message: ve.Message})
			return
		}
		var te *trading.TradeError
		if errors.As(err, &te) {
			c.JSON(http.StatusBadGateway, apiError{Code: "trade_failed", Message: te.Message})
			return
		}
		c.JSON(http.StatusConflict, apiError{Code: "busy", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) cancelTrade(c *gin.Context) {
	tradeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.badRequest(c, "bad_trade_id", "trade id must be an integer")
		return
	}
	if err := s.Flow.Cancel(c.Request.Context(), tradeID, s.UserID); err != nil {
		if backend.IsNotFound(err) {
			c.JSON(http.StatusNotFound, apiError{Code: "not_found", Message: "trade not found"})
			return
		}
		var te *trading.TradeError
		if errors.As(err, &te) {
			c.JSON(http.StatusBadGateway, apiError{Code: "cancel_failed", Message: te.Message})
			return
		}
		s.upstreamError(c, "cancel", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Websocket ---

func (s *Server) serveWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.Hub.Add(conn)
	// Read loop exists only to observe the close.
	go func() {
		defer s.Hub.Remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
