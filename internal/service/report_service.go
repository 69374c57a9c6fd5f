package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"guard-backend/internal/repository"
	"guard-backend/internal/wizard"
	"guard-backend/pkg/logging"
	"guard-backend/utilities"
)

// ReportService is the persistence side of the wizard: it creates reports, merges
// section answers and finalizes submissions.
type ReportService interface {
	wizard.DraftStore
}

type reportService struct {
	repo     repository.ReportRepository
	schema   *wizard.Schema
	payloads *PayloadValidator
	bus      *utilities.EventBus
	logger   logging.Logger
	now      func() time.Time
	newID    func() string
}

type ReportServiceOption func(*reportService)

func WithServiceClock(now func() time.Time) ReportServiceOption {
	return func(s *reportService) { s.now = now }
}

func WithIDGenerator(gen func() string) ReportServiceOption {
	return func(s *reportService) { s.newID = gen }
}

func WithServiceSchema(schema *wizard.Schema) ReportServiceOption {
	return func(s *reportService) { s.schema = schema }
}

// NewReportService wires the repository, the submission bus and the payload checks.
func NewReportService(repo repository.ReportRepository, bus *utilities.EventBus, logger logging.Logger, opts ...ReportServiceOption) (ReportService, error) {
	s := &reportService{
		repo:   repo,
		schema: wizard.DefaultSchema(),
		bus:    bus,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	payloads, err := NewPayloadValidator(s.schema)
	if err != nil {
		return nil, err
	}
	s.payloads = payloads
	return s, nil
}

func (s *reportService) Create(ctx context.Context) (*wizard.Report, error) {
	r := wizard.NewReport(s.newID(), s.now().UTC())
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("report created: %s", r.ResponseID)
	return r, nil
}

func (s *reportService) Get(ctx context.Context, responseID string) (*wizard.Report, error) {
	return s.repo.Get(ctx, responseID)
}

func (s *reportService) PatchSection(ctx context.Context, responseID string, step wizard.Step, values wizard.Values) (*wizard.Report, error) {
	if err := s.payloads.Validate(step, values); err != nil {
		return nil, err
	}
	clean := s.schema.Normalize(step, values)

	return s.repo.Update(ctx, responseID, func(r *wizard.Report) (bool, error) {
		if r.IsSubmitted {
			return false, wizard.Frozen(responseID)
		}
		r.Merge(step, clean)
		r.AdvanceHint(step)
		r.UpdatedAt = s.now().UTC()
		return true, nil
	})
}

func (s *reportService) Submit(ctx context.Context, responseID string) (*wizard.Report, error) {
	first := false
	r, err := s.repo.Update(ctx, responseID, func(r *wizard.Report) (bool, error) {
		if r.IsSubmitted {
			return false, nil
		}
		if step, missing := wizard.FirstIncomplete(r, wizard.StepConfirmation); missing {
			g, _ := wizard.GateFor(step)
			return false, wizard.Incomplete(responseID, g.Section)
		}
		now := s.now().UTC()
		r.IsSubmitted = true
		r.SubmittedAt = &now
		r.UpdatedAt = now
		first = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if first {
		s.logger.Info("report submitted: %s", responseID)
		if s.bus != nil {
			s.bus.Publish(utilities.EventReportSubmitted, responseID)
		}
	}
	return r, nil
}
