// Package http exposes the ledger as a JSON API.
//
// This file implements the Builder Pattern for JSON responses and the single
// mapping from service errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"gofinances/internal/core"
	"gofinances/internal/log"
)

// errBadRequest marks requests whose body or form could not be read.
var errBadRequest = errors.New("malformed request")

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal server error")
}

// errorResponse maps err to a status code and client-safe message.
func errorResponse(err error) *JSONResponseBuilder {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrInsufficientBalance):
		return BadRequestError(core.ErrInsufficientBalance.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("transaction not found")
	case errors.Is(err, core.ErrMalformedImportRow):
		return UnprocessableEntityError(rowErrorMessage(err))
	case core.IsValidationError(err):
		return UnprocessableEntityError(err.Error())
	case errors.As(err, &maxBytes):
		return ErrorResponse(http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, errBadRequest):
		return BadRequestError(err.Error())
	default:
		return InternalServerError()
	}
}

func rowErrorMessage(err error) string {
	var rowErr *core.RowError
	if errors.As(err, &rowErr) {
		return rowErr.Error()
	}
	return core.ErrMalformedImportRow.Error()
}

// writeError logs err against the request and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)
	logger := log.FromContext(r.Context())
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldOperation, op, log.FieldError, err)
	} else {
		logger.InfoContext(r.Context(), "Request rejected", log.FieldOperation, op, log.FieldError, err)
	}
	resp.Write(w)
}
