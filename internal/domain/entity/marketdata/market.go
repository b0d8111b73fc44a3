package marketdata

import (
	"fmt"
	"strings"
)

// MarketKey identifies a tradable pair on one exchange. Exchange names are
// lower case and symbols upper case, matching how they are stored.
type MarketKey struct {
	Exchange   string
	BuySymbol  string
	SellSymbol string
}

// NewMarketKey normalizes the identity parts of a market.
func NewMarketKey(exchange, buy, sell string) MarketKey {
	return MarketKey{
		Exchange:   strings.ToLower(strings.TrimSpace(exchange)),
		BuySymbol:  strings.ToUpper(strings.TrimSpace(buy)),
		SellSymbol: strings.ToUpper(strings.TrimSpace(sell)),
	}
}

func (k MarketKey) String() string {
	return fmt.Sprintf("%s:%s-%s", k.Exchange, k.BuySymbol, k.SellSymbol)
}

// Market is a market with recorded aggregated order book data. ExchangeID is
// the storage id of the exchange row and is only used when persisting.
type Market struct {
	MarketKey
	ExchangeID int64
}
