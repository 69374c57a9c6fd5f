package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryExecutor wraps the connection with the few primitives repositories share.
type QueryExecutor struct {
	DB *gorm.DB
}

// NewQueryExecutor creates a new instance of QueryExecutor.
func NewQueryExecutor(db *gorm.DB) *QueryExecutor {
	return &QueryExecutor{DB: db}
}

// Ping checks the connection is alive.
func (qe *QueryExecutor) Ping(ctx context.Context) error {
	if qe.DB == nil {
		return errors.New("database not initialised")
	}
	sqlDB, err := qe.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Transaction runs txFunc inside a transaction bound to ctx.
func (qe *QueryExecutor) Transaction(ctx context.Context, txFunc func(tx *gorm.DB) error) error {
	return qe.DB.WithContext(ctx).Transaction(txFunc)
}

// LockForUpdate scopes a query to SELECT ... FOR UPDATE.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
