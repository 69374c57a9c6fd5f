package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"guard-backend/internal/db"
	"guard-backend/internal/model"
	"guard-backend/internal/wizard"
)

// UpdateFunc mutates a report inside a locked read-modify-write. It returns
// false when nothing changed so no write is issued.
type UpdateFunc func(r *wizard.Report) (bool, error)

// ReportRepository stores intake reports and their receipts.
type ReportRepository interface {
	Create(ctx context.Context, r *wizard.Report) error
	Get(ctx context.Context, responseID string) (*wizard.Report, error)
	Update(ctx context.Context, responseID string, fn UpdateFunc) (*wizard.Report, error)
	SaveReceipt(ctx context.Context, receipt *model.Receipt) error
	GetReceipt(ctx context.Context, responseID string) (*model.Receipt, error)
}

type reportRepository struct {
	qe *db.QueryExecutor
}

func NewReportRepository(conn *gorm.DB) ReportRepository {
	return &reportRepository{qe: db.NewQueryExecutor(conn)}
}

func (r *reportRepository) Create(ctx context.Context, report *wizard.Report) error {
	row, err := model.FromDomain(report)
	if err != nil {
		return err
	}
	if err := r.qe.DB.WithContext(ctx).Create(row).Error; err != nil {
		return wizard.Unavailable(err, "create")
	}
	return nil
}

func (r *reportRepository) Get(ctx context.Context, responseID string) (*wizard.Report, error) {
	var row model.Report
	err := r.qe.DB.WithContext(ctx).Where("response_id = ?", responseID).First(&row).Error
	if err != nil {
		return nil, translate(err, responseID, "get")
	}
	return row.ToDomain()
}

func (r *reportRepository) Update(ctx context.Context, responseID string, fn UpdateFunc) (*wizard.Report, error) {
	var out *wizard.Report
	err := r.qe.Transaction(ctx, func(tx *gorm.DB) error {
		var row model.Report
		if err := db.LockForUpdate(tx).Where("response_id = ?", responseID).First(&row).Error; err != nil {
			return translate(err, responseID, "update")
		}
		report, err := row.ToDomain()
		if err != nil {
			return err
		}
		changed, err := fn(report)
		if err != nil {
			return err
		}
		out = report
		if !changed {
			return nil
		}
		next, err := model.FromDomain(report)
		if err != nil {
			return err
		}
		return tx.Model(&model.Report{}).
			Where("response_id = ?", responseID).
			Updates(map[string]any{
				"sections":     next.Sections,
				"current_step": next.CurrentStep,
				"is_submitted": next.IsSubmitted,
				"submitted_at": next.SubmittedAt,
				"updated_at":   next.UpdatedAt,
			}).Error
	})
	if err != nil {
		if wizard.Code(err) != "" {
			return nil, err
		}
		return nil, wizard.Unavailable(err, "update")
	}
	return out, nil
}

func (r *reportRepository) SaveReceipt(ctx context.Context, receipt *model.Receipt) error {
	if err := r.qe.DB.WithContext(ctx).Create(receipt).Error; err != nil {
		return wizard.Unavailable(err, "save receipt")
	}
	return nil
}

func (r *reportRepository) GetReceipt(ctx context.Context, responseID string) (*model.Receipt, error) {
	var receipt model.Receipt
	err := r.qe.DB.WithContext(ctx).Where("response_id = ?", responseID).First(&receipt).Error
	if err != nil {
		return nil, translate(err, responseID, "get receipt")
	}
	return &receipt, nil
}

func translate(err error, responseID, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return wizard.NotFound(responseID)
	}
	if wizard.Code(err) != "" {
		return err
	}
	return wizard.Unavailable(err, op)
}
