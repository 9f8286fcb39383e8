package server

import (
	"maps"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/runkit/errors"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// errorBody converts err to the client-facing body and status. Errors
// without an AppError in their chain are reported as INTERNAL_ERROR.
func errorBody(err error) (int, apperrors.ErrorResponse) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		body := appErr.ToResponse()
		// Keep the composer context wrapped around the AppError.
		body.Error.Details = maps.Clone(body.Error.Details)
		if body.Error.Details == nil {
			body.Error.Details = make(map[string]any, 1)
		}
		body.Error.Details["error"] = err.Error()
		delete(body.Error.Details, "stack")
		return appErr.HTTPStatus, body
	}
	return http.StatusInternalServerError, apperrors.Internal(err).ToResponse()
}

// RespondWithError writes err as a structured error response.
func RespondWithError(c *gin.Context, err error) {
	status, body := errorBody(err)
	c.JSON(status, body)
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// ErrorResponseFor returns the error envelope the API would send for err.
func ErrorResponseFor(err error) apperrors.ErrorResponse {
	_, body := errorBody(err)
	return body
}
