package psql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutor/tutor/config"
	"tutor/tutor/sources/psql/models"
	"tutor/tutor/utils/logging"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	DB *gorm.DB
}

func NewDatabase(ctx context.Context, cfg config.Config) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		dialector = postgres.Open(cfg.DSN())
	}
	logging.AppLogger.Info("Connecting to database",
		zap.String("driver", cfg.DBDriver),
		zap.String("host", cfg.DBHost),
		zap.String("name", cfg.DBName),
	)

	db, err := open(ctx, dialector, func(sqlDB *sql.DB) {
		if cfg.DBDriver == "sqlite" {
			// every sqlite connection to ":memory:" is a separate database
			sqlDB.SetMaxOpenConns(1)
			return
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	})
	if err != nil {
		return nil, err
	}

	logging.AppLogger.Info("Connected to database", zap.String("driver", cfg.DBDriver))
	return db, nil
}

// Open connects over a single connection and migrates the schema. Tests use
// it with in-memory sqlite and sqlmock dialectors.
func Open(ctx context.Context, dialector gorm.Dialector) (*Database, error) {
	return open(ctx, dialector, func(sqlDB *sql.DB) { sqlDB.SetMaxOpenConns(1) })
}

func open(ctx context.Context, dialector gorm.Dialector, pool func(*sql.DB)) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	pool(sqlDB)
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return &Database{DB: db}, nil
}

// Migrate creates or updates the chat tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&models.ChatSession{}, &models.ChatMessage{}); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

func (db *Database) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (db *Database) Close() {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logging.ErrorLogger.Error("database close error", zap.Error(err))
	}
}
