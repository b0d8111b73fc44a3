package marketdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderBookSnapshot is the statistical summary of a market's book at
// Timestamp. Plain fields describe the full book, *UpperQuartile and
// *LowerQuartile fields describe the bid and ask quartile books.
type OrderBookSnapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	ExchangeID int64     `json:"exchange_id"`
	BuySymbol  string    `json:"buy_sym_id"`
	SellSymbol string    `json:"sell_sym_id"`

	Spread          decimal.Decimal `json:"spread"`
	BidsVolume      decimal.Decimal `json:"bids_volume"`
	AsksVolume      decimal.Decimal `json:"asks_volume"`
	BidsCount       int             `json:"bids_count"`
	AsksCount       int             `json:"asks_count"`
	BidsPriceStddev decimal.Decimal `json:"bids_price_stddev"`
	AsksPriceStddev decimal.Decimal `json:"asks_price_stddev"`
	BidsPriceMean   decimal.Decimal `json:"bids_price_mean"`
	AsksPriceMean   decimal.Decimal `json:"asks_price_mean"`
	MinAskPrice     decimal.Decimal `json:"min_ask_price"`
	MinAskSize      decimal.Decimal `json:"min_ask_size"`
	MaxBidPrice     decimal.Decimal `json:"max_bid_price"`
	MaxBidSize      decimal.Decimal `json:"max_bid_size"`
	BidPriceMedian  decimal.Decimal `json:"bid_price_median"`
	AskPriceMedian  decimal.Decimal `json:"ask_price_median"`

	BidPriceUpperQuartile        decimal.Decimal `json:"bid_price_upper_quartile"`
	AskPriceLowerQuartile        decimal.Decimal `json:"ask_price_lower_quartile"`
	BidsVolumeUpperQuartile      decimal.Decimal `json:"bids_volume_upper_quartile"`
	AsksVolumeLowerQuartile      decimal.Decimal `json:"asks_volume_lower_quartile"`
	BidsCountUpperQuartile       int             `json:"bids_count_upper_quartile"`
	AsksCountLowerQuartile       int             `json:"asks_count_lower_quartile"`
	BidsPriceStddevUpperQuartile decimal.Decimal `json:"bids_price_stddev_upper_quartile"`
	AsksPriceStddevLowerQuartile decimal.Decimal `json:"asks_price_stddev_lower_quartile"`
	BidsPriceMeanUpperQuartile   decimal.Decimal `json:"bids_price_mean_upper_quartile"`
	AsksPriceMeanLowerQuartile   decimal.Decimal `json:"asks_price_mean_lower_quartile"`
}
