package db

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"guard-backend/internal/config"
	"guard-backend/internal/model"
	"guard-backend/pkg/logging"
)

var (
	instance *gorm.DB
	mu       sync.RWMutex
)

// DSN builds the postgres connection string from the DB section.
func DSN(cfg *config.APIConfig) string {
	d := cfg.DB
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.Username, d.Password.Value, d.Names.GUARD, d.SSLMode, timeZone(cfg))
}

func timeZone(cfg *config.APIConfig) string {
	if cfg.Context.TimeZone != "" {
		return cfg.Context.TimeZone
	}
	return "UTC"
}

// InitDBFromConfig opens the postgres connection and applies pool settings.
func InitDBFromConfig(cfg *config.APIConfig) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	pool := cfg.DB.Pool
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	}

	SetDB(conn)
	logging.Info("connected to database %s on %s:%d", cfg.DB.Names.GUARD, cfg.DB.Host, cfg.DB.Port)
	return conn, nil
}

// GetDB returns the shared connection, or nil before InitDBFromConfig.
func GetDB() *gorm.DB {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

func SetDB(conn *gorm.DB) {
	mu.Lock()
	instance = conn
	mu.Unlock()
}

// Migrate creates or updates every table.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
