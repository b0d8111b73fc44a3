package interfaces

import (
	"context"
	"time"

	marketdata "obsnapshots/internal/domain/entity/marketdata"
)

// MarketDataRepository is the read side of the historical store.
type MarketDataRepository interface {
	ListMarkets(ctx context.Context) ([]marketdata.Market, error)
	LatestSnapshotTimes(ctx context.Context) (map[marketdata.MarketKey]time.Time, error)
	ConnectionEvents(ctx context.Context) ([]marketdata.ConnectionEvent, error)
	QueryOrderBook(ctx context.Context, market marketdata.MarketKey, start, stop time.Time) ([]marketdata.PricedOrder, error)

	Close()
}

// SnapshotStore persists a batch of snapshots in one transaction.
type SnapshotStore interface {
	SaveSnapshots(ctx context.Context, snapshots []marketdata.OrderBookSnapshot) error
}

// SnapshotSink accepts snapshots for buffered persistence.
type SnapshotSink interface {
	Enqueue(ctx context.Context, snapshot marketdata.OrderBookSnapshot) error
}
