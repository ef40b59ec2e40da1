// Package httpkit is the gin glue shared by every module: JSON envelopes,
// error mapping, identity and middleware.
package httpkit

import (
	"errors"
	"net/http"

	"crescoflow/platform/apperr"
	"crescoflow/platform/validator"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func Error(c *gin.Context, status int, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// HandleError writes err and reports whether there was one.
//
//   - *apperr.Error keeps its kind's status and message
//   - validator errors become 400 with one entry per field
//   - anything else is a bare 500; the cause goes to the request log
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		Error(c, appErr.HTTPStatus(), appErr.Message, appErr.Details)
		return true
	}
	if details := validator.Describe(err); details != nil {
		Error(c, http.StatusBadRequest, "validation failed", details)
		return true
	}

	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, "internal error", nil)
	return true
}
