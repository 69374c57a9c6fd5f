package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"guard-backend/internal/service"
	"guard-backend/internal/wizard"
	"guard-backend/pkg/logging"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReportController serves the persistence API the wizard saves into.
type ReportController struct {
	Reports  service.ReportService
	Receipts service.ReceiptService
	Health   Pinger
	logger   logging.Logger
}

func NewReportController(reports service.ReportService, receipts service.ReceiptService, health Pinger, logger logging.Logger) *ReportController {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReportController{Reports: reports, Receipts: receipts, Health: health, logger: logger}
}

// CreateReport handles POST /api/reports
func (rc *ReportController) CreateReport(c *gin.Context) {
	r, err := rc.Reports.Create(c.Request.Context())
	if err != nil {
		respondError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"response_id": r.ResponseID,
		"message":     "Report created. Keep your Response ID to return later.",
	})
}

// GetReport handles GET /api/reports/:id
func (rc *ReportController) GetReport(c *gin.Context) {
	r, err := rc.Reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ResumeReport handles GET /api/resume/:id
func (rc *ReportController) ResumeReport(c *gin.Context) {
	r, err := rc.Reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response_id":  r.ResponseID,
		"current_step": r.CurrentStep,
		"is_submitted": r.IsSubmitted,
		"created_at":   r.CreatedAt,
		"updated_at":   r.UpdatedAt,
	})
}

// PatchSection handles PATCH /api/reports/:id/:section
func (rc *ReportController) PatchSection(c *gin.Context) {
	step := wizard.Step(c.Param("section"))
	var values map[string]any
	if err := c.ShouldBindJSON(&values); err != nil {
		respondError(c, rc.logger, wizard.PayloadInvalid(step, err))
		return
	}
	r, err := rc.Reports.PatchSection(c.Request.Context(), c.Param("id"), step, values)
	if err != nil {
		respondError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// SubmitReport handles POST /api/reports/:id/submit
func (rc *ReportController) SubmitReport(c *gin.Context) {
	r, err := rc.Reports.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// DownloadReceipt handles GET /api/reports/:id/receipt
func (rc *ReportController) DownloadReceipt(c *gin.Context) {
	id := c.Param("id")
	receipt, err := rc.Receipts.Generate(c.Request.Context(), id)
	if err != nil {
		respondError(c, rc.logger, err)
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(receipt.Path, "receipt-"+id+".pdf")
}

// Healthz handles GET /healthz
func (rc *ReportController) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok", "time": time.Now().UTC()}
	if rc.Health != nil {
		if err := rc.Health.Ping(c.Request.Context()); err != nil {
			rc.logger.Warn("health check: %v", err)
			body["status"] = "degraded"
			body["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	c.JSON(http.StatusOK, body)
}
