package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"guard-backend/internal/model"
	"guard-backend/internal/wizard"
)

var reportColumns = []string{"response_id", "sections", "current_step", "is_submitted", "submitted_at", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (ReportRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return NewReportRepository(conn), mock
}

func TestReportRepository_Get(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(reportColumns).
		AddRow("r-1", []byte(`{"before-you-begin":{"reported_officially":"Yes"}}`), 2, false, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "reports" WHERE response_id = $1`)).
		WillReturnRows(rows)

	r, err := repo.Get(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", r.ResponseID)
	assert.Equal(t, 2, r.CurrentStep)
	assert.Equal(t, "Yes", r.Section(wizard.StepBeforeYouBegin)["reported_officially"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_GetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "reports"`)).
		WillReturnRows(sqlmock.NewRows(reportColumns))

	_, err := repo.Get(context.Background(), "nope")
	assert.True(t, wizard.IsNotFound(err))
}

func TestReportRepository_GetUnavailable(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "reports"`)).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.Get(context.Background(), "r-1")
	assert.True(t, wizard.IsUnavailable(err))
}

func TestReportRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "reports"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), wizard.NewReport("r-1", time.Now()))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_UpdateLocksAndWrites(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "reports" WHERE response_id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(reportColumns).AddRow("r-1", []byte(`{}`), 0, false, nil, now, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "reports" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := repo.Update(context.Background(), "r-1", func(r *wizard.Report) (bool, error) {
		r.Merge(wizard.StepBeforeYouBegin, wizard.Values{"reported_officially": "No"})
		r.AdvanceHint(wizard.StepBeforeYouBegin)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.CurrentStep)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_UpdateUnchangedSkipsWrite(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(reportColumns).AddRow("r-1", []byte(`{}`), 0, true, now, now, now))
	mock.ExpectCommit()

	_, err := repo.Update(context.Background(), "r-1", func(*wizard.Report) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_UpdateRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(reportColumns).AddRow("r-1", []byte(`{}`), 0, true, now, now, now))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "r-1", func(r *wizard.Report) (bool, error) {
		return false, wizard.Frozen(r.ResponseID)
	})
	assert.True(t, wizard.IsFrozen(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_UpdateNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(reportColumns))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "ghost", func(*wizard.Report) (bool, error) { return true, nil })
	assert.True(t, wizard.IsNotFound(err))
}

func TestReportRepository_SaveReceipt(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "receipts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	receipt := &model.Receipt{ResponseID: "r-1", Path: "working/receipts/r-1.pdf"}
	require.NoError(t, repo.SaveReceipt(context.Background(), receipt))
	assert.Equal(t, uint(7), receipt.ID)
}
