// Package api is the REST front-end: it binds request JSON to the
// Orchestrator and nothing more. No auth, result rendering, or
// connection pooling lives in this package.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/gcbaptista/nlq-query-builder/internal/errors"
)

// ErrorCode is a stable machine-readable tag for the kinds of failure
// this pipeline can produce.
type ErrorCode string

const (
	ErrorCodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrorCodeInvalidJSON     ErrorCode = "INVALID_JSON"
	ErrorCodeValidationError ErrorCode = "VALIDATION_FAILED"
	ErrorCodeSchemaError     ErrorCode = "SCHEMA_ERROR"
	ErrorCodeTranslationErr  ErrorCode = "TRANSLATION_FAILED"
	ErrorCodeBackendError    ErrorCode = "BACKEND_ERROR"
	ErrorCodeTimeout         ErrorCode = "TIMEOUT"
	ErrorCodeLLMError        ErrorCode = "LLM_ERROR"
	ErrorCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// APIError is the standardized error response shape.
type APIError struct {
	Error     string    `json:"error"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func newAPIError(code ErrorCode, message string) APIError {
	return APIError{Error: "Request failed", Code: code, Message: message, Timestamp: time.Now()}
}

// SendError writes a standardized error response.
func SendError(c *gin.Context, status int, code ErrorCode, message string) {
	c.JSON(status, newAPIError(code, message))
}

// SendPipelineError classifies err against the pipeline's error
// taxonomy and writes the matching status code and ErrorCode. Any
// error outside that taxonomy is reported as an opaque internal error
// rather than leaking implementation details to the caller.
func SendPipelineError(c *gin.Context, err error) {
	var validationErr *pkgerrors.ValidationError
	var schemaErr *pkgerrors.SchemaError
	var translationErr *pkgerrors.TranslationError
	var backendErr *pkgerrors.BackendError
	var timeoutErr *pkgerrors.TimeoutError
	var llmErr *pkgerrors.LLMError

	switch {
	case errors.As(err, &validationErr):
		SendError(c, http.StatusBadRequest, ErrorCodeValidationError, validationErr.Error())
	case errors.As(err, &schemaErr):
		SendError(c, http.StatusBadGateway, ErrorCodeSchemaError, schemaErr.Error())
	case errors.As(err, &translationErr):
		SendError(c, http.StatusInternalServerError, ErrorCodeTranslationErr, translationErr.Error())
	case errors.As(err, &backendErr):
		SendError(c, http.StatusBadGateway, ErrorCodeBackendError, backendErr.Error())
	case errors.As(err, &timeoutErr):
		SendError(c, http.StatusGatewayTimeout, ErrorCodeTimeout, timeoutErr.Error())
	case errors.As(err, &llmErr):
		SendError(c, http.StatusBadGateway, ErrorCodeLLMError, llmErr.Error())
	default:
		SendError(c, http.StatusInternalServerError, ErrorCodeInternal, err.Error())
	}
}
