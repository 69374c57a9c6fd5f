package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"guard-backend/internal/config"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return conn, mock
}

func TestDSN(t *testing.T) {
	cfg := &config.APIConfig{}
	cfg.DB.Host = "db"
	cfg.DB.Port = 5432
	cfg.DB.Username = "guard"
	cfg.DB.Password.Value = "pw"
	cfg.DB.Names.GUARD = "guard"
	cfg.DB.SSLMode = "disable"

	assert.Equal(t, "host=db port=5432 user=guard password=pw dbname=guard sslmode=disable TimeZone=UTC", DSN(cfg))
	cfg.Context.TimeZone = "Africa/Nairobi"
	assert.Contains(t, DSN(cfg), "TimeZone=Africa/Nairobi")
}

func TestQueryExecutor_Ping(t *testing.T) {
	conn, mock := newMockDB(t)
	qe := NewQueryExecutor(conn)

	mock.ExpectPing()
	assert.NoError(t, qe.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	assert.Error(t, qe.Ping(context.Background()))

	assert.Error(t, NewQueryExecutor(nil).Ping(context.Background()))
}

func TestQueryExecutor_Transaction(t *testing.T) {
	conn, mock := newMockDB(t)
	qe := NewQueryExecutor(conn)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, qe.Transaction(context.Background(), func(*gorm.DB) error { return nil }))

	mock.ExpectBegin()
	mock.ExpectRollback()
	err := qe.Transaction(context.Background(), func(*gorm.DB) error { return errors.New("abort") })
	assert.EqualError(t, err, "abort")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDB(t *testing.T) {
	conn, _ := newMockDB(t)
	SetDB(conn)
	t.Cleanup(func() { SetDB(nil) })
	assert.Same(t, conn, GetDB())
}
