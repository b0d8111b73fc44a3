package marketdata

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderType is the side of an aggregated order book level.
type OrderType string

const (
	OrderTypeBid OrderType = "bid"
	OrderTypeAsk OrderType = "ask"
)

func (t OrderType) IsValid() bool {
	switch t {
	case OrderTypeBid, OrderTypeAsk:
		return true
	default:
		return false
	}
}

func ParseOrderType(s string) (OrderType, error) {
	t := OrderType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid order type: %q", s)
	}
	return t, nil
}

// PricedOrder is one price level of a materialized book.
type PricedOrder struct {
	Type  OrderType       `json:"order_type"`
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBookView holds a book as of a cutoff instant. Quartile is the subset
// of Full closest to the spread on each side.
type OrderBookView struct {
	Full     []PricedOrder
	Quartile []PricedOrder
}
