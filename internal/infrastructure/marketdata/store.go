package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "obsnapshots/internal/domain/entity/marketdata"
	"obsnapshots/internal/infrastructure/marketdata/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const insertBatchSize = 500

// SnapshotStore writes order book snapshots through gorm on top of the
// repository's pool.
type SnapshotStore struct {
	sqlDB *sql.DB
	db    *gorm.DB
}

func NewSnapshotStore(pool *pgxpool.Pool, logger *logrus.Logger) (*SnapshotStore, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(logger.WithField("component", "gorm"), gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return &SnapshotStore{sqlDB: sqlDB, db: db}, nil
}

// Migrate creates or updates the order_book_snapshots table.
func (s *SnapshotStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.OrderBookSnapshotModel{}); err != nil {
		return fmt.Errorf("migrate order_book_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshots inserts the batch in a single transaction.
func (s *SnapshotStore) SaveSnapshots(ctx context.Context, snapshots []domain.OrderBookSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	rows := models.NewOrderBookSnapshotModels(snapshots)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert %d snapshots: %w", len(rows), err)
		}
		return nil
	})
}

func (s *SnapshotStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
