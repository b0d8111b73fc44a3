package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appsnapshots "obsnapshots/internal/application/service/snapshots"
	"obsnapshots/internal/config"
	"obsnapshots/internal/infrastructure/lock"
	inframarketdata "obsnapshots/internal/infrastructure/marketdata"
	"obsnapshots/internal/logging"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to an optional .env file")
	cutoffFlag := flag.String("cutoff", "", "Generate snapshots strictly before this RFC3339 time (default now)")
	flag.Parse()

	logger := logging.New()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		logger.Fatalf("load env file %s: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if err := logging.Configure(logger, cfg.Log); err != nil {
		logger.Fatalf("failed to configure logging: %v", err)
	}

	cutoff := cfg.Snapshot.CutoffOrNow(time.Now().UTC())
	if *cutoffFlag != "" {
		if cutoff, err = config.ParseCutoff(*cutoffFlag); err != nil {
			logger.Fatalf("invalid -cutoff: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := logger.WithFields(logrus.Fields{
		"component": "snapshotter",
		"run_id":    uuid.NewString(),
		"env":       cfg.Env,
	})
	if err := run(ctx, cfg, cutoff, logger, log); err != nil {
		log.WithError(err).Fatal("order book snapshot run failed")
	}
}

func run(ctx context.Context, cfg *config.Config, cutoff time.Time, logger *logrus.Logger, log *logrus.Entry) error {
	repo, err := inframarketdata.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("init marketdata repo: %w", err)
	}
	defer repo.Close()

	store, err := inframarketdata.NewSnapshotStore(repo.Pool(), logger)
	if err != nil {
		return fmt.Errorf("init snapshot store: %w", err)
	}
	defer store.Close()

	if cfg.Snapshot.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}

		runLock := lock.NewRunLock(redisClient, lock.DefaultKey, cfg.Redis.LockTTL)
		if err := runLock.Acquire(ctx); err != nil {
			if errors.Is(err, lock.ErrLocked) {
				log.WithError(err).Warn("another run holds the lock, exiting")
				return nil
			}
			return err
		}
		log.WithField("lock_token", runLock.Token()).Debug("run lock acquired")
		defer func() {
			releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer releaseCancel()
			released, err := runLock.Release(releaseCtx)
			if err != nil {
				log.WithError(err).Error("failed to release run lock")
				return
			}
			if !released {
				log.Warn("run lock expired before release")
			}
		}()
	}

	service, err := appsnapshots.NewService(repo, store, appsnapshots.Options{
		Interval:       cfg.Snapshot.Interval,
		CommitInterval: cfg.Snapshot.CommitInterval,
		Workers:        cfg.Snapshot.Workers,
		Exchanges:      cfg.Snapshot.Exchanges,
	}, logger)
	if err != nil {
		return fmt.Errorf("init snapshot service: %w", err)
	}

	log.WithFields(logrus.Fields{
		"cutoff":          cutoff,
		"interval":        cfg.Snapshot.Interval.String(),
		"commit_interval": cfg.Snapshot.CommitInterval,
		"workers":         cfg.Snapshot.Workers,
	}).Info("starting order book snapshots")

	report, err := service.Run(ctx, cutoff)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"markets": report.Markets,
		"emitted": report.Emitted,
		"commits": report.Commits,
		"flushed": report.Flushed,
	}).Info("order book snapshot run finished")
	return nil
}
