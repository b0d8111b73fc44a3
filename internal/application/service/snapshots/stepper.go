package snapshots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"obsnapshots/internal/application/service/stats"
	"obsnapshots/internal/application/service/window"
	marketdata "obsnapshots/internal/domain/entity/marketdata"
	interfaces "obsnapshots/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// ErrNoConnectTime is returned for a market whose window has no connect
// event to replay its book from.
var ErrNoConnectTime = errors.New("no connect time for market")

// BookMaterializer rebuilds a market's book as of stop from history
// starting at start.
type BookMaterializer interface {
	Materialize(ctx context.Context, market marketdata.MarketKey, start, stop time.Time) (*marketdata.OrderBookView, error)
}

// StepResult counts what happened while stepping one market.
type StepResult struct {
	Emitted int
	Empty   int
	Shallow int
	Resyncs int
	Last    *time.Time
}

// Stepper walks one market's snapshot clock from its last snapshot (or its
// connect time) up to the cutoff, one interval at a time.
type Stepper struct {
	books    BookMaterializer
	sink     interfaces.SnapshotSink
	interval time.Duration
	cutoff   time.Time
	logger   *logrus.Entry
}

func NewStepper(books BookMaterializer, sink interfaces.SnapshotSink, interval time.Duration, cutoff time.Time, logger *logrus.Logger) *Stepper {
	return &Stepper{
		books:    books,
		sink:     sink,
		interval: interval,
		cutoff:   cutoff,
		logger:   logger.WithField("component", "snapshot_stepper"),
	}
}

// Step emits every missing snapshot of market before the cutoff. initial is
// the window resolved for last; events are the market's ordered connection
// events, used again whenever the clock reaches the window's disconnect.
func (s *Stepper) Step(ctx context.Context, market marketdata.Market, events []marketdata.ConnectionEvent, last *time.Time, initial window.Window) (StepResult, error) {
	var res StepResult
	if initial.Connect == nil {
		return res, ErrNoConnectTime
	}
	log := s.logger.WithFields(logrus.Fields{
		"exchange": market.Exchange,
		"buy":      market.BuySymbol,
		"sell":     market.SellSymbol,
	})

	connect := *initial.Connect
	disconnect := initial.Disconnect

	// Steps at or before the watermark were already persisted or emitted.
	var watermark *time.Time
	next := connect.Add(s.interval)
	if last != nil {
		mark := *last
		watermark = &mark
		next = last.Add(s.interval)
	}

	// An earlier run stopped at this window's disconnect. Continue with the
	// segment that reconnected after it, stepping it through to the cutoff.
	if !next.Before(disconnect) {
		w := window.After(events, disconnect, s.cutoff)
		if w.Connect == nil {
			log.WithField("disconnect", disconnect).Debug("no reconnect after last window")
			return res, nil
		}
		res.Resyncs++
		connect, disconnect = *w.Connect, w.Disconnect
		next = connect.Add(s.interval)
		log.WithFields(logrus.Fields{
			"start": connect,
			"end":   disconnect,
		}).Debug("snapshot window advanced")
	}

	for next.Before(s.cutoff) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if watermark != nil && !next.After(*watermark) {
			next = next.Add(s.interval)
			continue
		}

		view, err := s.books.Materialize(ctx, market.MarketKey, connect, next)
		if err != nil {
			return res, err
		}
		if view == nil {
			res.Empty++
			next = next.Add(s.interval)
			continue
		}

		snapshot, crossed, err := buildSnapshot(market, next, view)
		if errors.Is(err, stats.ErrInsufficientBookDepth) {
			res.Shallow++
			log.WithField("at", next).WithError(err).Warn("skipping snapshot")
			next = next.Add(s.interval)
			continue
		}
		if err != nil {
			return res, err
		}
		if crossed {
			log.WithFields(logrus.Fields{
				"at":     next,
				"spread": snapshot.Spread.String(),
			}).Warn("crossed order book")
		}

		if err := s.sink.Enqueue(ctx, snapshot); err != nil {
			return res, fmt.Errorf("enqueue snapshot %s at %s: %w", market.MarketKey, next.Format(time.RFC3339), err)
		}
		res.Emitted++
		emitted := next
		watermark = &emitted
		res.Last = &emitted
		log.WithField("at", next).Debug("order book snapshot created")

		next = next.Add(s.interval)
		if next.Before(disconnect) {
			continue
		}

		res.Resyncs++
		at := next
		w := window.Resolve(events, &at, s.cutoff)
		if w.Connect == nil {
			log.WithField("at", at).Warn("no connect time after resync, stopping market")
			break
		}
		connect, disconnect = *w.Connect, w.Disconnect
		next = connect
		if w.OpenEnded(s.cutoff) {
			next = s.cutoff
		}
		log.WithFields(logrus.Fields{
			"start": connect,
			"end":   disconnect,
		}).Debug("snapshot window resynced")
	}
	return res, nil
}

// buildSnapshot also reports whether the full book is crossed.
func buildSnapshot(market marketdata.Market, at time.Time, view *marketdata.OrderBookView) (marketdata.OrderBookSnapshot, bool, error) {
	full, err := stats.Compute(view.Full)
	if err != nil {
		return marketdata.OrderBookSnapshot{}, false, fmt.Errorf("full book: %w", err)
	}
	quartile, err := stats.Compute(view.Quartile)
	if err != nil {
		return marketdata.OrderBookSnapshot{}, false, fmt.Errorf("quartile book: %w", err)
	}
	return marketdata.OrderBookSnapshot{
		Timestamp:  at,
		ExchangeID: market.ExchangeID,
		BuySymbol:  market.BuySymbol,
		SellSymbol: market.SellSymbol,

		Spread:          full.Spread,
		BidsVolume:      full.BidsVolume,
		AsksVolume:      full.AsksVolume,
		BidsCount:       full.BidsCount,
		AsksCount:       full.AsksCount,
		BidsPriceStddev: full.BidsPriceStddev,
		AsksPriceStddev: full.AsksPriceStddev,
		BidsPriceMean:   full.BidsPriceMean,
		AsksPriceMean:   full.AsksPriceMean,
		MinAskPrice:     full.MinAskPrice,
		MinAskSize:      full.MinAskSize,
		MaxBidPrice:     full.MaxBidPrice,
		MaxBidSize:      full.MaxBidSize,
		BidPriceMedian:  full.BidPriceMedian,
		AskPriceMedian:  full.AskPriceMedian,

		BidPriceUpperQuartile:        quartile.BidPriceUpperQuartile,
		AskPriceLowerQuartile:        quartile.AskPriceLowerQuartile,
		BidsVolumeUpperQuartile:      quartile.BidsVolume,
		AsksVolumeLowerQuartile:      quartile.AsksVolume,
		BidsCountUpperQuartile:       quartile.BidsCount,
		AsksCountLowerQuartile:       quartile.AsksCount,
		BidsPriceStddevUpperQuartile: quartile.BidsPriceStddev,
		AsksPriceStddevLowerQuartile: quartile.AsksPriceStddev,
		BidsPriceMeanUpperQuartile:   quartile.BidsPriceMean,
		AsksPriceMeanLowerQuartile:   quartile.AsksPriceMean,
	}, full.Crossed(), nil
}
