package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"gofinances/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/1").
		Body(map[string]int{"n": 1}).
		Write(rr)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "/transactions/1", rr.Header().Get("Location"))
	assert.JSONEq(t, `{"n":1}`, rr.Body.String())

	rr = httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rr)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestErrorResponseMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"insufficient balance", fmt.Errorf("create: %w", core.ErrInsufficientBalance), http.StatusBadRequest, "insufficient balance"},
		{"not found", fmt.Errorf("delete: %w", core.ErrNotFound), http.StatusNotFound, "transaction not found"},
		{"malformed row", &core.RowError{Line: 4, Err: core.ErrInvalidType}, http.StatusUnprocessableEntity, "malformed import row at line 4: invalid transaction type"},
		{"validation", core.ErrEmptyTitle, http.StatusUnprocessableEntity, "empty title"},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "request body too large"},
		{"bad request", fmt.Errorf("%w: invalid JSON body", errBadRequest), http.StatusBadRequest, "malformed request: invalid JSON body"},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			errorResponse(tt.err).Write(rr)
			assert.Equal(t, tt.code, rr.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.msg), rr.Body.String())
		})
	}
}
