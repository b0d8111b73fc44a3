package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "obsnapshots/internal/domain/entity/marketdata"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDecode marks rows that do not match the expected schema.
var ErrDecode = errors.New("decode row")

const (
	feedOrderBook = "agg_order_book"
	feedAll       = "all"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Pool exposes the underlying pool so the snapshot store can share it.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Markets

const listMarketsQuery = `
	SELECT e.name, ev.buy_sym_id, ev.sell_sym_id, e.id
	FROM events ev
	INNER JOIN exchanges e ON ev.exchange_id = e.id
	WHERE ev.data_collected = $1
	GROUP BY e.name, ev.buy_sym_id, ev.sell_sym_id, e.id
	ORDER BY e.name, ev.buy_sym_id, ev.sell_sym_id`

func (r *Repository) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	rows, err := r.pool.Query(ctx, listMarketsQuery, feedOrderBook)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		market, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, market)
	}
	return markets, rows.Err()
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		exchange, buy, sell string
		id                  int64
	)
	if err := row.Scan(&exchange, &buy, &sell, &id); err != nil {
		return domain.Market{}, fmt.Errorf("%w: market: %v", ErrDecode, err)
	}
	return domain.Market{MarketKey: domain.NewMarketKey(exchange, buy, sell), ExchangeID: id}, nil
}

// Snapshots

const latestSnapshotsQuery = `
	SELECT MAX(s.timestamp), s.buy_sym_id, s.sell_sym_id, e.name
	FROM order_book_snapshots s
	INNER JOIN exchanges e ON s.exchange_id = e.id
	GROUP BY s.buy_sym_id, s.sell_sym_id, s.exchange_id, e.name`

// LatestSnapshotTimes returns the newest persisted snapshot per market.
func (r *Repository) LatestSnapshotTimes(ctx context.Context) (map[domain.MarketKey]time.Time, error) {
	rows, err := r.pool.Query(ctx, latestSnapshotsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest := make(map[domain.MarketKey]time.Time)
	for rows.Next() {
		var (
			at                  time.Time
			buy, sell, exchange string
		)
		if err := rows.Scan(&at, &buy, &sell, &exchange); err != nil {
			return nil, fmt.Errorf("%w: latest snapshot: %v", ErrDecode, err)
		}
		latest[domain.NewMarketKey(exchange, buy, sell)] = at
	}
	return latest, rows.Err()
}

// Connection events

const connectionEventsQuery = `
	SELECT ev.id, e.name, ev.timestamp, ev.connection_event, ev.data_collected, ev.buy_sym_id, ev.sell_sym_id
	FROM events ev
	INNER JOIN exchanges e ON ev.exchange_id = e.id
	WHERE ev.data_collected = $1
	   OR (ev.connection_event = 'disconnect' AND ev.data_collected = $2)
	ORDER BY e.name, ev.buy_sym_id, ev.sell_sym_id, ev.timestamp ASC`

// ConnectionEvents returns the order book feed events of every market plus
// exchange-wide disconnects, which carry no symbols.
func (r *Repository) ConnectionEvents(ctx context.Context) ([]domain.ConnectionEvent, error) {
	rows, err := r.pool.Query(ctx, connectionEventsQuery, feedOrderBook, feedAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.ConnectionEvent
	for rows.Next() {
		event, err := scanConnectionEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanConnectionEvent(row pgx.Row) (domain.ConnectionEvent, error) {
	var (
		event     domain.ConnectionEvent
		exchange  string
		kind      string
		collected string
		buy, sell pgtype.Text
	)
	if err := row.Scan(&event.ID, &exchange, &event.Timestamp, &kind, &collected, &buy, &sell); err != nil {
		return domain.ConnectionEvent{}, fmt.Errorf("%w: connection event: %v", ErrDecode, err)
	}
	parsed, err := domain.ParseConnectionKind(kind)
	if err != nil {
		return domain.ConnectionEvent{}, fmt.Errorf("%w: event %d: %v", ErrDecode, event.ID, err)
	}
	event.Kind = parsed
	if collected == feedOrderBook && (!buy.Valid || !sell.Valid) {
		return domain.ConnectionEvent{}, fmt.Errorf("%w: event %d: order book event without symbols", ErrDecode, event.ID)
	}
	event.Market = domain.NewMarketKey(exchange, buy.String, sell.String)
	if collected == feedAll {
		event.Market = domain.NewMarketKey(exchange, "", "")
	}
	return event, nil
}

// Order book

const orderBookQuery = `
	WITH latest_orders AS (
		SELECT ao.order_type, ao.price, MAX(ao.last_update_id) AS max_update_id
		FROM aggregate_orders ao
		INNER JOIN exchanges e ON ao.exchange_id = e.id
		WHERE e.name = $1
		  AND ao.buy_sym_id = $2
		  AND ao.sell_sym_id = $3
		  AND ao.timestamp >= $4
		  AND ao.timestamp <= $5
		GROUP BY ao.order_type, ao.price
	)
	SELECT ao.order_type, ao.price, ao.size
	FROM aggregate_orders ao
	INNER JOIN exchanges e ON ao.exchange_id = e.id
	INNER JOIN latest_orders lo
	        ON lo.order_type = ao.order_type
	       AND lo.price = ao.price
	       AND lo.max_update_id = ao.last_update_id
	WHERE e.name = $1
	  AND ao.buy_sym_id = $2
	  AND ao.sell_sym_id = $3
	  AND ao.timestamp >= $4
	  AND ao.timestamp <= $5
	  AND ao.size > 0
	ORDER BY ao.timestamp DESC`

// QueryOrderBook returns the latest level per (order type, price) of market
// updated within [start, stop], dropping levels whose latest size is zero.
func (r *Repository) QueryOrderBook(ctx context.Context, market domain.MarketKey, start, stop time.Time) ([]domain.PricedOrder, error) {
	rows, err := r.pool.Query(ctx, orderBookQuery, market.Exchange, market.BuySymbol, market.SellSymbol, start, stop)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.PricedOrder
	for rows.Next() {
		order, err := scanPricedOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanPricedOrder(row pgx.Row) (domain.PricedOrder, error) {
	var (
		order domain.PricedOrder
		kind  string
	)
	if err := row.Scan(&kind, &order.Price, &order.Size); err != nil {
		return domain.PricedOrder{}, fmt.Errorf("%w: order: %v", ErrDecode, err)
	}
	parsed, err := domain.ParseOrderType(kind)
	if err != nil {
		return domain.PricedOrder{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	order.Type = parsed
	return order, nil
}
