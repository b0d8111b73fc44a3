package window

import (
	"errors"
	"fmt"

	marketdata "obsnapshots/internal/domain/entity/marketdata"
)

// ErrUnorderedEvents is returned when a market's events are not ascending.
var ErrUnorderedEvents = errors.New("connection events out of order")

// Log holds every market's connection events for one run. It is built once
// and only read afterwards, so it can be shared between workers.
type Log struct {
	markets map[marketdata.MarketKey][]marketdata.ConnectionEvent
}

// NewLog groups events by market. Events must be ascending per market, and
// per exchange for exchange-wide events. Exchange-wide disconnects are merged
// into every market of their exchange; a market-bound event sorts before an
// exchange-wide one with the same timestamp.
func NewLog(events []marketdata.ConnectionEvent) (*Log, error) {
	markets := make(map[marketdata.MarketKey][]marketdata.ConnectionEvent)
	exchangeWide := make(map[string][]marketdata.ConnectionEvent)

	for _, e := range events {
		if e.ExchangeWide() {
			seq := exchangeWide[e.Market.Exchange]
			if err := checkOrder(seq, e); err != nil {
				return nil, err
			}
			exchangeWide[e.Market.Exchange] = append(seq, e)
			continue
		}
		seq := markets[e.Market]
		if err := checkOrder(seq, e); err != nil {
			return nil, err
		}
		markets[e.Market] = append(seq, e)
	}

	for key, seq := range markets {
		if wide := exchangeWide[key.Exchange]; len(wide) > 0 {
			markets[key] = merge(seq, wide)
		}
	}
	return &Log{markets: markets}, nil
}

// Events returns the ordered events of a market. Callers must not modify
// the returned slice.
func (l *Log) Events(key marketdata.MarketKey) []marketdata.ConnectionEvent {
	if l == nil {
		return nil
	}
	return l.markets[key]
}

// Markets returns the number of markets with at least one event.
func (l *Log) Markets() int {
	if l == nil {
		return 0
	}
	return len(l.markets)
}

func checkOrder(seq []marketdata.ConnectionEvent, e marketdata.ConnectionEvent) error {
	if n := len(seq); n > 0 && e.Timestamp.Before(seq[n-1].Timestamp) {
		return fmt.Errorf("%w: %s event %d at %s precedes %s", ErrUnorderedEvents,
			e.Market, e.ID, e.Timestamp, seq[n-1].Timestamp)
	}
	return nil
}

func merge(own, wide []marketdata.ConnectionEvent) []marketdata.ConnectionEvent {
	out := make([]marketdata.ConnectionEvent, 0, len(own)+len(wide))
	i, j := 0, 0
	for i < len(own) && j < len(wide) {
		if wide[j].Timestamp.Before(own[i].Timestamp) {
			out = append(out, wide[j])
			j++
			continue
		}
		out = append(out, own[i])
		i++
	}
	out = append(out, own[i:]...)
	return append(out, wide[j:]...)
}
