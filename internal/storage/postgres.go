package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aman-churiwal/quotagate/internal/models"
	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Postgres struct {
	DB *gorm.DB
}

// dsn - Data Source Name
func NewPostgres(dsn string) (*Postgres, error) {
	p, err := OpenDatabase(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return p, nil
}

// OpenDatabase opens any gorm dialector with the gateway's settings
func OpenDatabase(dialector gorm.Dialector) (*Postgres, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.New(os.Stderr, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true, // a missing counter is a normal read
			Colorful:                  false,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Postgres{DB: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

func (p *Postgres) AutoMigrate() error {
	return p.DB.AutoMigrate(&models.Counter{})
}

func (p *Postgres) Close() error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// noExpiry stands in for counters written without a retention hint
var noExpiry = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// PostgresCounterStore keeps counters in the rate_limit_counters table.
// Compare-and-swap is a conditional UPDATE on the version column.
type PostgresCounterStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgresCounterStore(p *Postgres) *PostgresCounterStore {
	return &PostgresCounterStore{
		db:  p.DB,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresCounterStore) Get(ctx context.Context, key string) (int32, ratelimit.Version, error) {
	var counter models.Counter
	err := s.db.WithContext(ctx).Where("counter_key = ?", key).Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ratelimit.NoVersion, nil
	}
	if err != nil {
		return 0, ratelimit.NoVersion, err
	}

	if !s.now().Before(counter.ExpiresAt) {
		return 0, ratelimit.NoVersion, nil
	}

	value, err := decodeCount(counter.Value)
	if err != nil {
		return 0, ratelimit.NoVersion, fmt.Errorf("counter %q: %w", key, err)
	}
	return value, ratelimit.Version(counter.Version), nil
}

func (s *PostgresCounterStore) CompareAndSwap(ctx context.Context, key string, value int32, expected ratelimit.Version, ttl time.Duration) error {
	now := s.now()
	expiresAt := noExpiry
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	db := s.db.WithContext(ctx)

	if expected == ratelimit.NoVersion {
		// an expired row still holds the primary key
		if err := db.Where("counter_key = ? AND expires_at <= ?", key, now).Delete(&models.Counter{}).Error; err != nil {
			return err
		}

		// seeded from the clock so a recreated key does not repeat old versions
		counter := models.Counter{
			CounterKey: key,
			Value:      encodeCount(value),
			Version:    now.UnixNano(),
			ExpiresAt:  expiresAt,
			UpdatedAt:  now,
		}
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ratelimit.ErrVersionConflict
		}
		return nil
	}

	result := db.Model(&models.Counter{}).
		Where("counter_key = ? AND version = ? AND expires_at > ?", key, int64(expected), now).
		Updates(map[string]any{
			"value":      encodeCount(value),
			"version":    gorm.Expr("version + 1"),
			"expires_at": expiresAt,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ratelimit.ErrVersionConflict
	}
	return nil
}

func (s *PostgresCounterStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", before.UTC()).Delete(&models.Counter{})
	return result.RowsAffected, result.Error
}

func (s *PostgresCounterStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
