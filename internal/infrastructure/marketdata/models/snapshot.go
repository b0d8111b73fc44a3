package models

import (
	"time"

	domain "obsnapshots/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
)

type OrderBookSnapshotModel struct {
	ID         int64     `gorm:"primaryKey;column:id;autoIncrement"`
	Timestamp  time.Time `gorm:"column:timestamp;type:timestamp;not null;uniqueIndex:uq_order_book_snapshot_market_time,priority:4"`
	ExchangeID int64     `gorm:"column:exchange_id;not null;uniqueIndex:uq_order_book_snapshot_market_time,priority:1"`
	BuySymID   string    `gorm:"column:buy_sym_id;type:varchar(20);not null;uniqueIndex:uq_order_book_snapshot_market_time,priority:2"`
	SellSymID  string    `gorm:"column:sell_sym_id;type:varchar(20);not null;uniqueIndex:uq_order_book_snapshot_market_time,priority:3"`

	Spread          decimal.Decimal `gorm:"column:spread;type:numeric"`
	BidsVolume      decimal.Decimal `gorm:"column:bids_volume;type:numeric"`
	AsksVolume      decimal.Decimal `gorm:"column:asks_volume;type:numeric"`
	BidsCount       int             `gorm:"column:bids_count;type:integer"`
	AsksCount       int             `gorm:"column:asks_count;type:integer"`
	BidsPriceStddev decimal.Decimal `gorm:"column:bids_price_stddev;type:numeric"`
	AsksPriceStddev decimal.Decimal `gorm:"column:asks_price_stddev;type:numeric"`
	BidsPriceMean   decimal.Decimal `gorm:"column:bids_price_mean;type:numeric"`
	AsksPriceMean   decimal.Decimal `gorm:"column:asks_price_mean;type:numeric"`
	MinAskPrice     decimal.Decimal `gorm:"column:min_ask_price;type:numeric"`
	MinAskSize      decimal.Decimal `gorm:"column:min_ask_size;type:numeric"`
	MaxBidPrice     decimal.Decimal `gorm:"column:max_bid_price;type:numeric"`
	MaxBidSize      decimal.Decimal `gorm:"column:max_bid_size;type:numeric"`
	BidPriceMedian  decimal.Decimal `gorm:"column:bid_price_median;type:numeric"`
	AskPriceMedian  decimal.Decimal `gorm:"column:ask_price_median;type:numeric"`

	BidPriceUpperQuartile        decimal.Decimal `gorm:"column:bid_price_upper_quartile;type:numeric"`
	AskPriceLowerQuartile        decimal.Decimal `gorm:"column:ask_price_lower_quartile;type:numeric"`
	BidsVolumeUpperQuartile      decimal.Decimal `gorm:"column:bids_volume_upper_quartile;type:numeric"`
	AsksVolumeLowerQuartile      decimal.Decimal `gorm:"column:asks_volume_lower_quartile;type:numeric"`
	BidsCountUpperQuartile       int             `gorm:"column:bids_count_upper_quartile;type:integer"`
	AsksCountLowerQuartile       int             `gorm:"column:asks_count_lower_quartile;type:integer"`
	BidsPriceStddevUpperQuartile decimal.Decimal `gorm:"column:bids_price_stddev_upper_quartile;type:numeric"`
	AsksPriceStddevLowerQuartile decimal.Decimal `gorm:"column:asks_price_stddev_lower_quartile;type:numeric"`
	BidsPriceMeanUpperQuartile   decimal.Decimal `gorm:"column:bids_price_mean_upper_quartile;type:numeric"`
	AsksPriceMeanLowerQuartile   decimal.Decimal `gorm:"column:asks_price_mean_lower_quartile;type:numeric"`
}

func (OrderBookSnapshotModel) TableName() string {
	return "order_book_snapshots"
}

func NewOrderBookSnapshotModel(s domain.OrderBookSnapshot) OrderBookSnapshotModel {
	return OrderBookSnapshotModel{
		Timestamp:  s.Timestamp,
		ExchangeID: s.ExchangeID,
		BuySymID:   s.BuySymbol,
		SellSymID:  s.SellSymbol,

		Spread:          s.Spread,
		BidsVolume:      s.BidsVolume,
		AsksVolume:      s.AsksVolume,
		BidsCount:       s.BidsCount,
		AsksCount:       s.AsksCount,
		BidsPriceStddev: s.BidsPriceStddev,
		AsksPriceStddev: s.AsksPriceStddev,
		BidsPriceMean:   s.BidsPriceMean,
		AsksPriceMean:   s.AsksPriceMean,
		MinAskPrice:     s.MinAskPrice,
		MinAskSize:      s.MinAskSize,
		MaxBidPrice:     s.MaxBidPrice,
		MaxBidSize:      s.MaxBidSize,
		BidPriceMedian:  s.BidPriceMedian,
		AskPriceMedian:  s.AskPriceMedian,

		BidPriceUpperQuartile:        s.BidPriceUpperQuartile,
		AskPriceLowerQuartile:        s.AskPriceLowerQuartile,
		BidsVolumeUpperQuartile:      s.BidsVolumeUpperQuartile,
		AsksVolumeLowerQuartile:      s.AsksVolumeLowerQuartile,
		BidsCountUpperQuartile:       s.BidsCountUpperQuartile,
		AsksCountLowerQuartile:       s.AsksCountLowerQuartile,
		BidsPriceStddevUpperQuartile: s.BidsPriceStddevUpperQuartile,
		AsksPriceStddevLowerQuartile: s.AsksPriceStddevLowerQuartile,
		BidsPriceMeanUpperQuartile:   s.BidsPriceMeanUpperQuartile,
		AsksPriceMeanLowerQuartile:   s.AsksPriceMeanLowerQuartile,
	}
}

func NewOrderBookSnapshotModels(snapshots []domain.OrderBookSnapshot) []OrderBookSnapshotModel {
	out := make([]OrderBookSnapshotModel, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, NewOrderBookSnapshotModel(s))
	}
	return out
}
