package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/goliatone/go-errors"

	"guard-backend/internal/wizard"
	"guard-backend/pkg/logging"
)

// statusFor maps an error to its HTTP status, by text code first, then category.
func statusFor(err error) int {
	switch wizard.Code(err) {
	case wizard.ErrCodeIncomplete:
		return http.StatusConflict
	case wizard.ErrCodePayloadInvalid:
		return http.StatusBadRequest
	}
	var ge *apperrors.Error
	if !errors.As(err, &ge) {
		return http.StatusInternalServerError
	}
	switch ge.Category {
	case apperrors.CategoryNotFound:
		return http.StatusNotFound
	case apperrors.CategoryConflict:
		return http.StatusConflict
	case apperrors.CategoryBadInput:
		return http.StatusBadRequest
	case apperrors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case apperrors.CategoryExternal:
		return http.StatusServiceUnavailable
	case apperrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger logging.Logger, err error) {
	status := statusFor(err)
	body := gin.H{"error": http.StatusText(status)}

	var ge *apperrors.Error
	if errors.As(err, &ge) {
		body["error"] = ge.Message
		body["code"] = ge.TextCode
		for _, key := range []string{"step", "section"} {
			if v, ok := ge.Metadata[key]; ok {
				body["step"] = v
				break
			}
		}
		if fields := wizard.FieldErrors(err); len(fields) > 0 {
			body["fields"] = fields
		}
	}
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, body)
}
