package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/user/vidtube-go/internal/apperr"
	"github.com/user/vidtube-go/internal/config"
	"github.com/user/vidtube-go/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultCategories is the category set seeded on startup
var DefaultCategories = []string{
	"Cars and vehicles",
	"Comedy",
	"Education",
	"Gaming",
	"Entertainment",
	"Film and animation",
	"How-to and style",
	"Music",
	"News and politics",
	"People and blogs",
	"Pets and animals",
	"Science and technology",
	"Sports",
	"Travel and events",
}

// GormStore implements Store on top of gorm. It runs against postgres,
// mysql, or sqlite; every query sticks to SQL all three accept.
type GormStore struct {
	db *gorm.DB
}

// nowUTC is the clock for autoCreateTime/autoUpdateTime. Microsecond
// precision is what postgres keeps, so a cursor read back from a row
// compares equal to the stored value.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func dialectorFor(cfg *config.DBConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(cfg.DSN()), nil
	case "mysql":
		precision := 6
		return mysql.New(mysql.Config{
			DSN:                      cfg.DSN(),
			DefaultDatetimePrecision: &precision,
		}), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Open connects to the configured database, migrates the schema, and
// seeds categories when enabled.
func Open(cfg *config.DBConfig) (*GormStore, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: nowUTC,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns/2 + 1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto migrate tables
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s := &GormStore{db: db}

	if cfg.SeedCategories {
		created, err := s.SeedCategories(context.Background(), DefaultCategories)
		if err != nil {
			return nil, err
		}
		if created > 0 {
			log.Info().Int64("created", created).Msg("Seeded categories")
		}
	}

	return s, nil
}

// NewGormStore wraps an already opened gorm handle
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the gorm handle for health checks and tests
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Ping checks database connectivity
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// ownershipError tells apart a missing row from one owned by someone else.
// It is called after an owner-scoped statement matched nothing.
func ownershipError(tx *gorm.DB, table string, id uuid.UUID, what string) error {
	var count int64
	if err := tx.Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "failed to check %s existence", what)
	}
	if count == 0 {
		return apperr.NotFound(what + " not found")
	}
	return apperr.Forbidden("you do not own this " + what)
}

// exists reports whether a row with the given id exists in table
func exists(tx *gorm.DB, table string, id uuid.UUID) (bool, error) {
	var count int64
	if err := tx.Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

var _ Store = (*GormStore)(nil)
