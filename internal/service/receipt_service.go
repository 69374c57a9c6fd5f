package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jung-kurt/gofpdf"

	"guard-backend/internal/model"
	"guard-backend/internal/repository"
	"guard-backend/internal/wizard"
	"guard-backend/pkg/logging"
	"guard-backend/utilities"
)

const contactNotice = "You gave permission to be contacted. A member of our team may reach out using the contact details you provided."

// ReceiptService renders the confirmation document of a submitted report. The
// document carries submission metadata only, never answers.
type ReceiptService interface {
	Generate(ctx context.Context, responseID string) (*model.Receipt, error)
}

type receiptService struct {
	repo   repository.ReportRepository
	schema *wizard.Schema
	dir    string
	logger logging.Logger

	mu sync.Mutex
}

func NewReceiptService(repo repository.ReportRepository, dir string, logger logging.Logger) ReceiptService {
	if logger == nil {
		logger = logging.Default()
	}
	return &receiptService{repo: repo, schema: wizard.DefaultSchema(), dir: dir, logger: logger}
}

// InitReceiptEventListeners renders a receipt for every submitted report.
func InitReceiptEventListeners(bus *utilities.EventBus, receipts ReceiptService, logger logging.Logger) {
	bus.Subscribe(utilities.EventReportSubmitted, func(data interface{}) {
		responseID, ok := data.(string)
		if !ok {
			logger.Warn("invalid response id received for receipt: %v", data)
			return
		}
		if _, err := receipts.Generate(context.Background(), responseID); err != nil {
			logger.Error("receipt for %s failed: %v", responseID, err)
		}
	})
}

// Generate returns the stored receipt of responseID, rendering it first if needed.
func (s *receiptService) Generate(ctx context.Context, responseID string) (*model.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetReceipt(ctx, responseID)
	switch {
	case err == nil:
		if _, statErr := os.Stat(existing.Path); statErr == nil {
			return existing, nil
		}
	case !wizard.IsNotFound(err):
		return nil, err
	}

	report, err := s.repo.Get(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if !report.IsSubmitted {
		return nil, wizard.Incomplete(responseID, wizard.StepConfirmation)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipts dir: %w", err)
	}
	path := filepath.Join(s.dir, responseID+".pdf")
	if err := s.render(report, path); err != nil {
		return nil, err
	}

	if existing != nil {
		// re-rendered a missing file; the row already points at path
		return existing, nil
	}
	receipt := &model.Receipt{ResponseID: responseID, Path: path}
	if err := s.repo.SaveReceipt(ctx, receipt); err != nil {
		return nil, err
	}
	s.logger.Info("receipt written: %s", path)
	return receipt, nil
}

func (s *receiptService) render(r *wizard.Report, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Incident Report Receipt")
	pdf.Ln(16)

	pdf.SetFont("Arial", "", 12)
	line := func(label, value string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(45, 8, label)
		pdf.SetFont("Arial", "", 12)
		pdf.Cell(0, 8, value)
		pdf.Ln(8)
	}
	line("Response ID:", r.ResponseID)
	if r.SubmittedAt != nil {
		line("Submitted:", r.SubmittedAt.UTC().Format(time.RFC1123))
	}
	line("Last updated:", r.UpdatedAt.UTC().Format(time.RFC1123))
	pdf.Ln(6)

	for _, sec := range s.schema.Sections() {
		answered := 0
		for _, f := range sec.Fields {
			if v, ok := r.Value(sec.Name, f.Name); ok && !wizard.IsEmpty(v) {
				answered++
			}
		}
		pdf.Cell(0, 7, fmt.Sprintf("%s: %d of %d answered", sec.Title, answered, len(sec.Fields)))
		pdf.Ln(7)
	}
	pdf.Ln(6)

	if r.ContactPermission() {
		pdf.MultiCell(0, 6, contactNotice, "", "L", false)
		pdf.Ln(4)
	}
	pdf.MultiCell(0, 6, "Keep your Response ID. You can use it to return to your report.", "", "L", false)

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	return nil
}
