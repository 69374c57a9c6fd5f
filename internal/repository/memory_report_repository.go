package repository

import (
	"context"
	"sync"

	"guard-backend/internal/model"
	"guard-backend/internal/wizard"
)

type memoryReportRepository struct {
	mu       sync.Mutex
	reports  map[string]*wizard.Report
	receipts map[string]*model.Receipt
	nextID   uint
}

// NewMemoryReportRepository keeps reports in process memory. It backs the
// "memory" DB driver and tests.
func NewMemoryReportRepository() ReportRepository {
	return &memoryReportRepository{
		reports:  map[string]*wizard.Report{},
		receipts: map[string]*model.Receipt{},
	}
}

func (m *memoryReportRepository) Create(_ context.Context, r *wizard.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ResponseID] = r.Clone()
	return nil
}

func (m *memoryReportRepository) Get(_ context.Context, responseID string) (*wizard.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[responseID]
	if !ok {
		return nil, wizard.NotFound(responseID)
	}
	return r.Clone(), nil
}

func (m *memoryReportRepository) Update(_ context.Context, responseID string, fn UpdateFunc) (*wizard.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.reports[responseID]
	if !ok {
		return nil, wizard.NotFound(responseID)
	}
	working := current.Clone()
	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if changed {
		m.reports[responseID] = working.Clone()
	}
	return working, nil
}

func (m *memoryReportRepository) SaveReceipt(_ context.Context, receipt *model.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *receipt
	cp.ID = m.nextID
	receipt.ID = cp.ID
	m.receipts[receipt.ResponseID] = &cp
	return nil
}

func (m *memoryReportRepository) GetReceipt(_ context.Context, responseID string) (*model.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[responseID]
	if !ok {
		return nil, wizard.NotFound(responseID)
	}
	cp := *r
	return &cp, nil
}
