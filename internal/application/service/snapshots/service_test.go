package snapshots

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	marketdata "obsnapshots/internal/domain/entity/marketdata"
)

// memoryStore keeps saved batches and doubles as the source of the latest
// snapshot times, so consecutive runs see what earlier runs persisted.
type memoryStore struct {
	mu      sync.Mutex
	batches [][]marketdata.OrderBookSnapshot
	err     error
}

func (m *memoryStore) SaveSnapshots(_ context.Context, snapshots []marketdata.OrderBookSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]marketdata.OrderBookSnapshot(nil), snapshots...))
	return nil
}

func (m *memoryStore) all() []marketdata.OrderBookSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []marketdata.OrderBookSnapshot
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

type fakeRepo struct {
	markets  []marketdata.Market
	events   []marketdata.ConnectionEvent
	store    *memoryStore
	orderErr map[marketdata.MarketKey]error
	listErr  error
}

func (f *fakeRepo) ListMarkets(context.Context) ([]marketdata.Market, error) {
	return f.markets, f.listErr
}

func (f *fakeRepo) LatestSnapshotTimes(context.Context) (map[marketdata.MarketKey]time.Time, error) {
	ids := make(map[int64]string, len(f.markets))
	for _, m := range f.markets {
		ids[m.ExchangeID] = m.Exchange
	}
	latest := make(map[marketdata.MarketKey]time.Time)
	for _, s := range f.store.all() {
		key := marketdata.NewMarketKey(ids[s.ExchangeID], s.BuySymbol, s.SellSymbol)
		if t, ok := latest[key]; !ok || s.Timestamp.After(t) {
			latest[key] = s.Timestamp
		}
	}
	return latest, nil
}

func (f *fakeRepo) ConnectionEvents(context.Context) ([]marketdata.ConnectionEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) QueryOrderBook(_ context.Context, market marketdata.MarketKey, _, _ time.Time) ([]marketdata.PricedOrder, error) {
	if err := f.orderErr[market]; err != nil {
		return nil, err
	}
	return sampleBook(), nil
}

func (f *fakeRepo) Close() {}

var ethusdt = marketdata.Market{MarketKey: marketdata.NewMarketKey("kraken", "ETH", "USDT"), ExchangeID: 2}

func newTestService(t *testing.T, repo *fakeRepo, opts Options) *Service {
	t.Helper()
	svc, err := NewService(repo, repo.store, opts, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRunSingleConnectionCycle(t *testing.T) {
	store := &memoryStore{}
	repo := &fakeRepo{
		markets: []marketdata.Market{btcusdt},
		events:  cycle(btcusdt.MarketKey, 0, 5),
		store:   store,
	}
	report, err := newTestService(t, repo, Options{}).Run(context.Background(), at(10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Emitted != 4 || len(store.all()) != 4 {
		t.Fatalf("emitted %d, stored %d, want 4", report.Emitted, len(store.all()))
	}
	if report.Commits != 1 || report.Flushed != 4 {
		t.Errorf("commits/flushed = %d/%d, want 1/4", report.Commits, report.Flushed)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := &memoryStore{}
	repo := &fakeRepo{
		markets: []marketdata.Market{btcusdt, ethusdt},
		events: append(
			cycle(btcusdt.MarketKey, 0, 5, 7, 9, 12, 20),
			cycle(ethusdt.MarketKey, 1, 8)...,
		),
		store: store,
	}
	svc := newTestService(t, repo, Options{Workers: 2})

	first, err := svc.Run(context.Background(), at(30))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Emitted == 0 {
		t.Fatal("first run emitted nothing")
	}
	second, err := svc.Run(context.Background(), at(30))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Emitted != 0 {
		t.Errorf("second run emitted %d snapshots", second.Emitted)
	}
	if second.Commits != 0 {
		t.Errorf("second run committed %d times", second.Commits)
	}
}

func TestRunSplitMatchesSingleRun(t *testing.T) {
	events := cycle(btcusdt.MarketKey, 0, 5, 7, 9, 12, 20)

	whole := &memoryStore{}
	if _, err := newTestService(t, &fakeRepo{markets: []marketdata.Market{btcusdt}, events: events, store: whole}, Options{}).
		Run(context.Background(), at(30)); err != nil {
		t.Fatalf("single run: %v", err)
	}

	split := &memoryStore{}
	svc := newTestService(t, &fakeRepo{markets: []marketdata.Market{btcusdt}, events: events, store: split}, Options{})
	for _, cutoff := range []time.Time{at(3), at(8), at(15), at(30)} {
		if _, err := svc.Run(context.Background(), cutoff); err != nil {
			t.Fatalf("run to %s: %v", cutoff, err)
		}
	}

	seen := make(map[time.Time]bool)
	for _, s := range split.all() {
		if seen[s.Timestamp] {
			t.Errorf("duplicate snapshot at %s", s.Timestamp)
		}
		seen[s.Timestamp] = true
	}
	for _, s := range whole.all() {
		if !seen[s.Timestamp] {
			t.Errorf("split runs missed snapshot at %s", s.Timestamp)
		}
	}
	if len(seen) < len(whole.all()) {
		t.Errorf("split runs stored %d snapshots, single run %d", len(seen), len(whole.all()))
	}
}

func TestRunKeepsUpWithReconnectedMarket(t *testing.T) {
	store := &memoryStore{}
	repo := &fakeRepo{
		markets: []marketdata.Market{btcusdt},
		events:  cycle(btcusdt.MarketKey, 0, 5, 7),
		store:   store,
	}
	svc := newTestService(t, repo, Options{})

	total := 0
	for i, cutoff := range []time.Time{at(30), at(60), at(90), at(120)} {
		report, err := svc.Run(context.Background(), cutoff)
		if err != nil {
			t.Fatalf("run to %s: %v", cutoff, err)
		}
		stored := len(store.all())
		if stored != total+report.Emitted {
			t.Errorf("run to %s: stored %d, want %d", cutoff, stored, total+report.Emitted)
		}
		if i > 0 && report.Emitted == 0 {
			t.Errorf("run to %s added no snapshots", cutoff)
		}
		total = stored
	}

	seen := make(map[time.Time]bool)
	for _, s := range store.all() {
		if seen[s.Timestamp] {
			t.Errorf("duplicate snapshot at %s", s.Timestamp)
		}
		seen[s.Timestamp] = true
		if s.Timestamp.After(at(4)) && s.Timestamp.Before(at(8)) {
			t.Errorf("snapshot at %s falls in the disconnected gap", s.Timestamp)
		}
	}
	// 1..4 from the first connection, 8..119 from the reconnect.
	if total != 116 {
		t.Errorf("stored %d snapshots, want 116", total)
	}
}

func TestRunSkipsMarketsWithoutConnectTime(t *testing.T) {
	store := &memoryStore{}
	repo := &fakeRepo{
		markets: []marketdata.Market{btcusdt, ethusdt},
		events:  cycle(btcusdt.MarketKey, 0, 5),
		store:   store,
	}
	report, err := newTestService(t, repo, Options{}).Run(context.Background(), at(10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	if report.Emitted != 4 {
		t.Errorf("emitted = %d, want 4", report.Emitted)
	}
}

func TestRunAbortsAndDiscards(t *testing.T) {
	boom := errors.New("connection reset")
	store := &memoryStore{}
	repo := &fakeRepo{
		markets:  []marketdata.Market{btcusdt, ethusdt},
		events:   append(cycle(btcusdt.MarketKey, 0, 5), cycle(ethusdt.MarketKey, 0, 5)...),
		store:    store,
		orderErr: map[marketdata.MarketKey]error{ethusdt.MarketKey: boom},
	}
	_, err := newTestService(t, repo, Options{}).Run(context.Background(), at(10))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if n := len(store.all()); n != 0 {
		t.Errorf("stored %d snapshots after abort, want 0", n)
	}
}

func TestRunStoreFailureIsFatal(t *testing.T) {
	boom := errors.New("disk full")
	store := &memoryStore{err: boom}
	repo := &fakeRepo{markets: []marketdata.Market{btcusdt}, events: cycle(btcusdt.MarketKey, 0, 5), store: store}
	if _, err := newTestService(t, repo, Options{}).Run(context.Background(), at(10)); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestRunCommitsEveryThreshold(t *testing.T) {
	store := &memoryStore{}
	repo := &fakeRepo{markets: []marketdata.Market{btcusdt}, events: cycle(btcusdt.MarketKey, 0, 6), store: store}
	report, err := newTestService(t, repo, Options{CommitInterval: 2}).Run(context.Background(), at(10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Emitted != 5 {
		t.Fatalf("emitted = %d, want 5", report.Emitted)
	}
	if report.Commits != 3 || len(store.batches) != 3 {
		t.Errorf("commits = %d, batches = %d, want 3", report.Commits, len(store.batches))
	}
}

func TestRunExchangeFilter(t *testing.T) {
	store := &memoryStore{}
	repo := &fakeRepo{
		markets: []marketdata.Market{btcusdt, ethusdt},
		events:  append(cycle(btcusdt.MarketKey, 0, 5), cycle(ethusdt.MarketKey, 0, 5)...),
		store:   store,
	}
	report, err := newTestService(t, repo, Options{Exchanges: []string{" Kraken "}}).Run(context.Background(), at(10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Markets != 1 {
		t.Errorf("markets = %d, want 1", report.Markets)
	}
	for _, s := range store.all() {
		if s.ExchangeID != ethusdt.ExchangeID {
			t.Errorf("snapshot for exchange %d outside the filter", s.ExchangeID)
		}
	}
}

func TestRunListFailure(t *testing.T) {
	boom := errors.New("timeout")
	repo := &fakeRepo{store: &memoryStore{}, listErr: boom}
	if _, err := newTestService(t, repo, Options{}).Run(context.Background(), at(10)); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestNewServiceRejectsNegativeInterval(t *testing.T) {
	repo := &fakeRepo{store: &memoryStore{}}
	if _, err := NewService(repo, repo.store, Options{Interval: -time.Second}, testLogger()); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
}
