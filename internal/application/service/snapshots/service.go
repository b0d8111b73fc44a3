package snapshots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"obsnapshots/internal/application/service/orderbook"
	"obsnapshots/internal/application/service/window"
	marketdata "obsnapshots/internal/domain/entity/marketdata"
	interfaces "obsnapshots/internal/domain/interfaces"
	"obsnapshots/internal/infrastructure/batch"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval       = 60 * time.Second
	DefaultCommitInterval = batch.DefaultThreshold
)

var ErrInvalidInterval = errors.New("snapshot interval must be positive")

// Options are the run-level settings of the generator.
type Options struct {
	Interval       time.Duration
	CommitInterval int
	Workers        int
	// Exchanges limits the run to these exchange names. Empty means all.
	Exchanges []string
}

// RunReport summarizes one run.
type RunReport struct {
	Markets int
	Skipped int
	Emitted int
	Empty   int
	Shallow int
	Resyncs int
	Commits int64
	Flushed int64
}

func (r *RunReport) add(res StepResult) {
	r.Emitted += res.Emitted
	r.Empty += res.Empty
	r.Shallow += res.Shallow
	r.Resyncs += res.Resyncs
}

// Service fills in every missing order book snapshot up to a cutoff.
type Service struct {
	repo   interfaces.MarketDataRepository
	store  interfaces.SnapshotStore
	opts   Options
	logger *logrus.Logger
}

func NewService(repo interfaces.MarketDataRepository, store interfaces.SnapshotStore, opts Options, logger *logrus.Logger) (*Service, error) {
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Interval < 0 {
		return nil, ErrInvalidInterval
	}
	if opts.CommitInterval <= 0 {
		opts.CommitInterval = DefaultCommitInterval
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Service{repo: repo, store: store, opts: opts, logger: logger}, nil
}

// Run generates snapshots strictly before cutoff for every market. On the
// first failure pending snapshots are discarded and the error is returned.
func (s *Service) Run(ctx context.Context, cutoff time.Time) (RunReport, error) {
	var report RunReport
	log := s.logger.WithFields(logrus.Fields{
		"component": "snapshot_generator",
		"cutoff":    cutoff,
	})

	markets, err := s.repo.ListMarkets(ctx)
	if err != nil {
		return report, fmt.Errorf("list markets: %w", err)
	}
	markets = filterExchanges(markets, s.opts.Exchanges)
	report.Markets = len(markets)
	if len(markets) == 0 {
		log.Info("no markets with order book data")
		return report, nil
	}

	latest, err := s.repo.LatestSnapshotTimes(ctx)
	if err != nil {
		return report, fmt.Errorf("load latest snapshot times: %w", err)
	}
	events, err := s.repo.ConnectionEvents(ctx)
	if err != nil {
		return report, fmt.Errorf("load connection events: %w", err)
	}
	connections, err := window.NewLog(events)
	if err != nil {
		return report, fmt.Errorf("build connection log: %w", err)
	}
	log.WithFields(logrus.Fields{
		"markets":         len(markets),
		"snapshot_times":  len(latest),
		"events":          len(events),
		"tracked_markets": connections.Markets(),
	}).Debug("run state loaded")

	writer := batch.NewWriter[marketdata.OrderBookSnapshot](
		s.opts.CommitInterval,
		s.store.SaveSnapshots,
		s.logger.WithField("component", "snapshot_writer"),
	)
	stepper := NewStepper(orderbook.NewMaterializer(s.repo), writer, s.opts.Interval, cutoff, s.logger)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, market := range markets {
		g.Go(func() error {
			var last *time.Time
			if t, ok := latest[market.MarketKey]; ok {
				last = &t
			}
			res, err := s.stepMarket(gctx, stepper, market, connections.Events(market.MarketKey), last, cutoff)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrNoConnectTime) {
				report.Skipped++
				return nil
			}
			report.add(res)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		dropped := writer.Discard()
		log.WithError(err).WithFields(logrus.Fields{
			"dropped": dropped,
			"commits": writer.Commits(),
		}).Error("order book snapshots aborted")
		report.Commits, report.Flushed = writer.Commits(), writer.Flushed()
		return report, err
	}
	if err := writer.Flush(ctx); err != nil {
		report.Commits, report.Flushed = writer.Commits(), writer.Flushed()
		return report, fmt.Errorf("flush snapshots: %w", err)
	}
	report.Commits, report.Flushed = writer.Commits(), writer.Flushed()

	log.WithFields(logrus.Fields{
		"markets": report.Markets,
		"skipped": report.Skipped,
		"emitted": report.Emitted,
		"empty":   report.Empty,
		"shallow": report.Shallow,
		"commits": report.Commits,
		"flushed": report.Flushed,
	}).Info("completed order book snapshots")
	return report, nil
}

func (s *Service) stepMarket(ctx context.Context, stepper *Stepper, market marketdata.Market, events []marketdata.ConnectionEvent, last *time.Time, cutoff time.Time) (StepResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"component": "snapshot_generator",
		"exchange":  market.Exchange,
		"buy":       market.BuySymbol,
		"sell":      market.SellSymbol,
	})

	initial := window.Resolve(events, last, cutoff)
	if initial.Connect == nil {
		log.WithField("last_snapshot", last).Warn("no connect time, skipping market")
		return StepResult{}, ErrNoConnectTime
	}
	log.WithFields(logrus.Fields{
		"last_snapshot": last,
		"start":         *initial.Connect,
		"end":           initial.Disconnect,
	}).Info("order book snapshot")

	res, err := stepper.Step(ctx, market, events, last, initial)
	if err != nil {
		return res, fmt.Errorf("market %s: %w", market.MarketKey, err)
	}
	log.WithFields(logrus.Fields{
		"emitted": res.Emitted,
		"empty":   res.Empty,
		"shallow": res.Shallow,
		"resyncs": res.Resyncs,
	}).Debug("market done")
	return res, nil
}

func filterExchanges(markets []marketdata.Market, exchanges []string) []marketdata.Market {
	if len(exchanges) == 0 {
		return markets
	}
	allowed := make(map[string]struct{}, len(exchanges))
	for _, name := range exchanges {
		allowed[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	filtered := make([]marketdata.Market, 0, len(markets))
	for _, m := range markets {
		if _, ok := allowed[m.Exchange]; ok {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
