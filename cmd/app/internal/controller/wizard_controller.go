package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"guard-backend/internal/wizard"
	"guard-backend/pkg/logging"
)

// WizardController exposes the wizard's view states as JSON.
type WizardController struct {
	Wizard  *wizard.Controller
	timeout time.Duration
	logger  logging.Logger
}

func NewWizardController(w *wizard.Controller, timeout time.Duration, logger logging.Logger) *WizardController {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WizardController{Wizard: w, timeout: timeout, logger: logger}
}

func (wc *WizardController) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), wc.timeout)
}

func viewStatus(v *wizard.View) int {
	switch v.State {
	case wizard.StateNotFound:
		return http.StatusNotFound
	case wizard.StateSuperseded:
		return http.StatusConflict
	case wizard.StateErrored:
		if v.Retry {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadRequest
	}
	return http.StatusOK
}

func (wc *WizardController) render(c *gin.Context, v *wizard.View) {
	if v.Redirect != "" {
		c.Header("Location", v.Redirect)
	}
	c.JSON(viewStatus(v), v)
}

// Landing handles GET /
func (wc *WizardController) Landing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Start a new anonymous report, or enter your Response ID to continue one.",
		"start":       "/report",
		"resume":      "/resume",
		"total_steps": wizard.TotalSteps(),
	})
}

// StartReport handles POST /report
func (wc *WizardController) StartReport(c *gin.Context) {
	ctx, cancel := wc.ctx(c)
	defer cancel()
	wc.render(c, wc.Wizard.Start(ctx))
}

// ResumeReport handles POST /resume
func (wc *WizardController) ResumeReport(c *gin.Context) {
	var req struct {
		ResponseID string `json:"response_id" form:"response_id"`
	}
	_ = c.ShouldBind(&req)
	ctx, cancel := wc.ctx(c)
	defer cancel()
	wc.render(c, wc.Wizard.Resume(ctx, req.ResponseID))
}

// EnterStep handles GET /report/:id/:step
func (wc *WizardController) EnterStep(c *gin.Context) {
	ctx, cancel := wc.ctx(c)
	defer cancel()
	wc.render(c, wc.Wizard.Enter(ctx, c.Param("id"), wizard.Step(c.Param("step"))))
}

// AdvanceStep handles POST /report/:id/:step
func (wc *WizardController) AdvanceStep(c *gin.Context) {
	step := wizard.Step(c.Param("step"))
	if step.IsTerminal() {
		wc.EnterStep(c)
		return
	}
	raw, ok := bindValues(c)
	if !ok {
		return
	}
	ctx, cancel := wc.ctx(c)
	defer cancel()
	wc.render(c, wc.Wizard.Advance(ctx, c.Param("id"), step, raw))
}

// ScheduleDraft handles PUT /report/:id/:step/draft
func (wc *WizardController) ScheduleDraft(c *gin.Context) {
	raw, ok := bindValues(c)
	if !ok {
		return
	}
	ctx, cancel := wc.ctx(c)
	defer cancel()
	state, view := wc.Wizard.ScheduleDraft(ctx, c.Param("id"), wizard.Step(c.Param("step")), raw)
	if view != nil {
		if view.State == wizard.StateBlocked {
			c.Header("Location", view.Redirect)
			c.JSON(http.StatusConflict, view)
			return
		}
		wc.render(c, view)
		return
	}
	c.JSON(http.StatusAccepted, state)
}

// DraftStatus handles GET /report/:id/:step/draft
func (wc *WizardController) DraftStatus(c *gin.Context) {
	step := wizard.Step(c.Param("step"))
	if step.Index() < 0 {
		wc.render(c, &wizard.View{State: wizard.StateNotFound})
		return
	}
	c.JSON(http.StatusOK, wc.Wizard.DraftStatus(c.Param("id"), step))
}

// NotFound is the catch-all view.
func (wc *WizardController) NotFound(c *gin.Context) {
	wc.render(c, &wizard.View{State: wizard.StateNotFound, Message: "Page not found", Redirect: wizard.EntryURL})
}

func bindValues(c *gin.Context) (map[string]any, bool) {
	var raw map[string]any
	if c.Request.ContentLength == 0 {
		return map[string]any{}, true
	}
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return nil, false
	}
	return raw, true
}
