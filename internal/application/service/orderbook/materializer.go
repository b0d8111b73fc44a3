package orderbook

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	marketdata "obsnapshots/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
)

// ErrMalformedBook marks rows that cannot form a deduplicated book.
var ErrMalformedBook = errors.New("malformed order book")

// OrderSource returns the latest non-zero level per (order type, price)
// updated within [start, stop].
type OrderSource interface {
	QueryOrderBook(ctx context.Context, market marketdata.MarketKey, start, stop time.Time) ([]marketdata.PricedOrder, error)
}

type Materializer struct {
	source OrderSource
}

func NewMaterializer(source OrderSource) *Materializer {
	return &Materializer{source: source}
}

// Materialize rebuilds the book of market as it stood at stop, replaying
// history from start. A nil view means no levels exist in the window.
func (m *Materializer) Materialize(ctx context.Context, market marketdata.MarketKey, start, stop time.Time) (*marketdata.OrderBookView, error) {
	full, err := m.source.QueryOrderBook(ctx, market, start, stop)
	if err != nil {
		return nil, fmt.Errorf("query order book %s: %w", market, err)
	}
	if len(full) == 0 {
		return nil, nil
	}
	if err := validate(full); err != nil {
		return nil, fmt.Errorf("%s [%s, %s]: %w", market, start.Format(time.RFC3339Nano), stop.Format(time.RFC3339Nano), err)
	}
	return &marketdata.OrderBookView{
		Full:     full,
		Quartile: Quartile(full),
	}, nil
}

type level struct {
	side  marketdata.OrderType
	price string
}

func validate(orders []marketdata.PricedOrder) error {
	seen := make(map[level]struct{}, len(orders))
	for _, o := range orders {
		if !o.Type.IsValid() {
			return fmt.Errorf("%w: order type %q", ErrMalformedBook, o.Type)
		}
		if !o.Size.IsPositive() {
			return fmt.Errorf("%w: %s level %s has size %s", ErrMalformedBook, o.Type, o.Price, o.Size)
		}
		key := level{side: o.Type, price: o.Price.String()}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: duplicate %s level %s", ErrMalformedBook, o.Type, o.Price)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Quartile keeps bids priced at or above the discrete 75th percentile of bid
// prices and asks priced at or below the discrete 25th percentile of ask
// prices. Input order is preserved.
func Quartile(full []marketdata.PricedOrder) []marketdata.PricedOrder {
	var bidPrices, askPrices []decimal.Decimal
	for _, o := range full {
		switch o.Type {
		case marketdata.OrderTypeBid:
			bidPrices = append(bidPrices, o.Price)
		case marketdata.OrderTypeAsk:
			askPrices = append(askPrices, o.Price)
		}
	}
	bidFloor, hasBids := PercentileDisc(bidPrices, 0.75)
	askCeil, hasAsks := PercentileDisc(askPrices, 0.25)

	quartile := make([]marketdata.PricedOrder, 0, len(full)/2)
	for _, o := range full {
		switch {
		case o.Type == marketdata.OrderTypeBid && hasBids && o.Price.GreaterThanOrEqual(bidFloor):
			quartile = append(quartile, o)
		case o.Type == marketdata.OrderTypeAsk && hasAsks && o.Price.LessThanOrEqual(askCeil):
			quartile = append(quartile, o)
		}
	}
	return quartile
}

// PercentileDisc returns the first value, in ascending order, whose
// cumulative fraction reaches p. It matches Postgres percentile_disc.
func PercentileDisc(values []decimal.Decimal, p float64) (decimal.Decimal, bool) {
	if len(values) == 0 {
		return decimal.Decimal{}, false
	}
	sorted := slices.Clone(values)
	slices.SortFunc(sorted, func(a, b decimal.Decimal) int { return a.Cmp(b) })
	for i, v := range sorted {
		if float64(i+1)/float64(len(sorted)) >= p {
			return v, true
		}
	}
	return sorted[len(sorted)-1], true
}
