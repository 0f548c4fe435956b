package cache

// View names the three-and-a-half polled read surfaces.
type View string

const (
	ViewStocks    View = "stocks"
	ViewPortfolio View = "portfolio"
	ViewSummary   View = "portfolio-summary"
	ViewTrades    View = "trades"
)

// Key identifies one cached view: the view name plus the owning user for
// the per-user surfaces. The stock list is global, so its UserID is empty.
type Key struct {
	View   View
	UserID string
}

func Stocks() Key                 { return Key{View: ViewStocks} }
func Portfolio(userID string) Key { return Key{View: ViewPortfolio, UserID: userID} }
func Summary(userID string) Key   { return Key{View: ViewSummary, UserID: userID} }
func Trades(userID string) Key    { return Key{View: ViewTrades, UserID: userID} }

// DependentsOfTrade enumerates every view a successful trade for userID can
// affect. All of them must be invalidated before any is next read.
func DependentsOfTrade(userID string) []Key {
	return []Key{Stocks(), Portfolio(userID), Summary(userID), Trades(userID)}
}
