package controller

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the persistence API under /api and the wizard surface at the root.
// limit guards report creation; nil disables it.
func RegisterRoutes(
	r *gin.Engine,
	reportCtrl *ReportController,
	wizardCtrl *WizardController,
	limit gin.HandlerFunc,
) {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	r.GET("/healthz", reportCtrl.Healthz)

	// Persistence API.
	api := r.Group("/api")
	{
		api.POST("/reports", limit, reportCtrl.CreateReport)
		api.GET("/reports/:id", reportCtrl.GetReport)
		api.PATCH("/reports/:id/:section", reportCtrl.PatchSection)
		api.POST("/reports/:id/submit", reportCtrl.SubmitReport)
		api.GET("/reports/:id/receipt", reportCtrl.DownloadReceipt)
		api.GET("/resume/:id", reportCtrl.ResumeReport)
	}

	// Wizard routes.
	if wizardCtrl == nil {
		return
	}
	r.GET("/", wizardCtrl.Landing)
	r.POST("/report", limit, wizardCtrl.StartReport)
	r.POST("/resume", wizardCtrl.ResumeReport)
	wiz := r.Group("/report/:id")
	{
		wiz.GET("/:step", wizardCtrl.EnterStep)
		wiz.POST("/:step", wizardCtrl.AdvanceStep)
		wiz.PUT("/:step/draft", wizardCtrl.ScheduleDraft)
		wiz.GET("/:step/draft", wizardCtrl.DraftStatus)
	}
	r.NoRoute(wizardCtrl.NotFound)
}
