package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/macapark/dashboard/internal/restclient"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"api error", NewNotFoundError("lot", "x"), http.StatusNotFound, "NOT_FOUND"},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), http.StatusMethodNotAllowed, "HTTP_ERROR"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			ErrorHandler(tt.err, c)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"`+tt.code+`"`)
		})
	}
}

func TestUpstreamError(t *testing.T) {
	se := &restclient.StatusError{Method: "GET", Path: "/auth/me", StatusCode: 401, Message: "Token expired"}
	e := upstreamError("failed", fmt.Errorf("wrapped: %w", se))
	assert.Equal(t, http.StatusUnauthorized, e.Status)
	assert.Equal(t, "UNAUTHORIZED", e.Code)
	assert.Equal(t, "Token expired", e.Message)

	se.StatusCode = 503
	e = upstreamError("failed", se)
	assert.Equal(t, http.StatusBadGateway, e.Status)
	assert.Equal(t, "failed", e.Message)

	e = upstreamError("failed", errors.New("dial tcp: refused"))
	assert.Equal(t, http.StatusBadGateway, e.Status)
	assert.Contains(t, e.Details, "refused")
}
