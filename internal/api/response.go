// Package api holds the response envelope and request helpers shared by the HTTP routers.
package api

import (
	"github.com/gin-gonic/gin"
)

// Error codes returned in the response envelope.
const (
	CodeBadRequest           = "BAD_REQUEST"
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeInvalidDefinition    = "INVALID_DEFINITION"
	CodeSubmissionInProgress = "SUBMISSION_IN_PROGRESS"
	CodeSessionClosed        = "SESSION_CLOSED"
	CodeFormSubmissionFailed = "FORM_SUBMISSION_FAILED"
	CodeInternal             = "INTERNAL_ERROR"
)

type ApiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ApiResponse is the envelope of every JSON response.
type ApiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *ApiError `json:"error,omitempty"`
}

// ListResponse is a page of items.
type ListResponse[T any] struct {
	TotalCount int64 `json:"totalCount"`
	Items      []T   `json:"items"`
	Offset     int   `json:"offset"`
	Limit      int   `json:"limit"`
}

func WriteJSON(c *gin.Context, status int, data any) {
	c.JSON(status, ApiResponse{Success: true, Data: data})
}

// WriteError aborts the request with an error envelope.
func WriteError(c *gin.Context, status int, code, message string, details ...any) {
	apiErr := &ApiError{Code: code, Message: message}
	if len(details) > 0 {
		apiErr.Details = details[0]
	}
	c.AbortWithStatusJSON(status, ApiResponse{Success: false, Error: apiErr})
}
