package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/example/market-dashboard/internal/models"
)

// Quotes is a short-TTL cache for single-instrument lookups, used to price
// a pending order without hammering GET /stocks/{symbol} on every edit.
type Quotes struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func NewQuotes(ttl time.Duration) (*Quotes, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Quotes{c: c, ttl: ttl}, nil
}

func (q *Quotes) Get(symbol string) (models.Stock, bool) {
	v, ok := q.c.Get(symbol)
	if !ok {
		return models.Stock{}, false
	}
	return v.(models.Stock), true
}

func (q *Quotes) Set(symbol string, s models.Stock) {
	q.c.SetWithTTL(symbol, s, 1, q.ttl)
}

func (q *Quotes) Del(symbol string) { q.c.Del(symbol) }

// Wait blocks until buffered writes are applied. Tests need it; the hot
// path does not.
func (q *Quotes) Wait() { q.c.Wait() }

func (q *Quotes) Close() { q.c.Close() }
