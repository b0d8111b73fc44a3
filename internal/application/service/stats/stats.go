package stats

import (
	"errors"
	"math"
	"slices"

	marketdata "obsnapshots/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
)

// ErrInsufficientBookDepth is returned when a book lacks bids or asks.
var ErrInsufficientBookDepth = errors.New("insufficient book depth: need at least one bid and one ask")

var two = decimal.NewFromInt(2)

// Stats are descriptive statistics of one order book.
//
// BidPriceUpperQuartile and AskPriceLowerQuartile are the lowest bid and the
// highest ask of the input; they are only the quartile thresholds when the
// input is already a quartile book.
type Stats struct {
	Spread decimal.Decimal

	BidsVolume decimal.Decimal
	AsksVolume decimal.Decimal
	BidsCount  int
	AsksCount  int

	BidsPriceMean   decimal.Decimal
	AsksPriceMean   decimal.Decimal
	BidsPriceStddev decimal.Decimal
	AsksPriceStddev decimal.Decimal
	BidPriceMedian  decimal.Decimal
	AskPriceMedian  decimal.Decimal

	MinAskPrice decimal.Decimal
	MinAskSize  decimal.Decimal
	MaxBidPrice decimal.Decimal
	MaxBidSize  decimal.Decimal

	BidPriceUpperQuartile decimal.Decimal
	AskPriceLowerQuartile decimal.Decimal
}

// Crossed reports a book whose best ask is below its best bid.
func (s Stats) Crossed() bool {
	return s.Spread.IsNegative()
}

// Compute summarizes a mixed list of bids and asks.
func Compute(orders []marketdata.PricedOrder) (Stats, error) {
	var bids, asks []marketdata.PricedOrder
	for _, o := range orders {
		switch o.Type {
		case marketdata.OrderTypeBid:
			bids = append(bids, o)
		case marketdata.OrderTypeAsk:
			asks = append(asks, o)
		}
	}
	if len(bids) == 0 || len(asks) == 0 {
		return Stats{}, ErrInsufficientBookDepth
	}

	bid := summarize(bids)
	ask := summarize(asks)

	return Stats{
		Spread:                ask.min.Sub(bid.max),
		BidsVolume:            bid.volume,
		AsksVolume:            ask.volume,
		BidsCount:             len(bids),
		AsksCount:             len(asks),
		BidsPriceMean:         bid.mean,
		AsksPriceMean:         ask.mean,
		BidsPriceStddev:       bid.stddev,
		AsksPriceStddev:       ask.stddev,
		BidPriceMedian:        bid.median,
		AskPriceMedian:        ask.median,
		MinAskPrice:           ask.min,
		MinAskSize:            ask.minSize,
		MaxBidPrice:           bid.max,
		MaxBidSize:            bid.maxSize,
		BidPriceUpperQuartile: bid.min,
		AskPriceLowerQuartile: ask.max,
	}, nil
}

type side struct {
	volume  decimal.Decimal
	mean    decimal.Decimal
	stddev  decimal.Decimal
	median  decimal.Decimal
	min     decimal.Decimal
	minSize decimal.Decimal
	max     decimal.Decimal
	maxSize decimal.Decimal
}

// summarize expects a non-empty slice.
func summarize(orders []marketdata.PricedOrder) side {
	s := side{
		volume:  decimal.Zero,
		min:     orders[0].Price,
		minSize: orders[0].Size,
		max:     orders[0].Price,
		maxSize: orders[0].Size,
	}
	prices := make([]decimal.Decimal, 0, len(orders))
	sum := decimal.Zero
	for _, o := range orders {
		prices = append(prices, o.Price)
		sum = sum.Add(o.Price)
		s.volume = s.volume.Add(o.Price.Mul(o.Size))
		if o.Price.LessThan(s.min) {
			s.min, s.minSize = o.Price, o.Size
		}
		if o.Price.GreaterThan(s.max) {
			s.max, s.maxSize = o.Price, o.Size
		}
	}

	n := decimal.NewFromInt(int64(len(prices)))
	s.mean = sum.Div(n)

	variance := decimal.Zero
	for _, p := range prices {
		d := p.Sub(s.mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.Div(n)
	s.stddev = decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))

	slices.SortFunc(prices, func(a, b decimal.Decimal) int { return a.Cmp(b) })
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		s.median = prices[mid]
	} else {
		s.median = prices[mid-1].Add(prices[mid]).Div(two)
	}
	return s
}
