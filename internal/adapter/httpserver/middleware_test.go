package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/blastdesk/internal/domain"
	"github.com/pscheid92/blastdesk/internal/platform/correlation"
	apperrors "github.com/pscheid92/blastdesk/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callHandler wraps a handler with the error middleware, matching production behavior.
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}

func TestErrorHandlingMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantType    apperrors.ErrorType
		wantMessage string
	}{
		{"structured", apperrors.ValidationError("invalid input"), http.StatusBadRequest, apperrors.TypeValidation, "invalid input"},
		{"plain error", errors.New("standard error"), http.StatusInternalServerError, apperrors.TypeInternal, "internal server error"},
		{"domain not found", fmt.Errorf("load: %w", domain.ErrBlastNotFound), http.StatusNotFound, apperrors.TypeNotFound, "blast not found"},
		{"domain conflict", domain.ErrParticipantExists, http.StatusConflict, apperrors.TypeConflict, domain.ErrParticipantExists.Error()},
		{"revoked token", domain.ErrTokenRevoked, http.StatusUnauthorized, apperrors.TypeUnauthorized, "token has been revoked"},
		{"rate limited", apperrors.RateLimitedError("slow down"), http.StatusTooManyRequests, apperrors.TypeRateLimited, "slow down"},
		{"external", apperrors.ExternalError("smtp failed", errors.New("timeout")), http.StatusBadGateway, apperrors.TypeExternal, "smtp failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), rec)

			err := callHandler(func(echo.Context) error { return tt.err }, c)
			require.NoError(t, err, "the middleware writes the error instead of returning it")

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Type)
			assert.Equal(t, tt.wantMessage, resp.Error)
		})
	}
}

func TestErrorHandlingMiddleware_PassesThroughHTTPErrors(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), httptest.NewRecorder())

	err := callHandler(func(echo.Context) error { return echo.ErrForbidden }, c)

	assert.ErrorIs(t, err, echo.ErrForbidden)
}

func TestErrorHandlingMiddleware_ContextFields(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), rec)

	require.NoError(t, callHandler(func(echo.Context) error {
		return apperrors.ValidationError("name is too long").WithField("field", "name").WithField("max", 100)
	}, c))

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "name", resp.Context["field"])
	assert.Equal(t, float64(100), resp.Context["max"])
}

func TestErrorHandlingMiddleware_NoError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), rec)

	require.NoError(t, callHandler(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	}, c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())
}

func TestCorrelationMiddleware(t *testing.T) {
	e := echo.New()
	var seen string
	handler := correlationMiddleware(func(c echo.Context) error {
		seen, _ = correlation.ID(c.Request().Context())
		return nil
	})

	t.Run("keeps a well-formed inbound ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(correlation.Header, "req-123")
		rec := httptest.NewRecorder()

		require.NoError(t, handler(e.NewContext(req, rec)))
		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rec.Header().Get(correlation.Header))
	})

	t.Run("replaces a hostile inbound ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(correlation.Header, "bad id\nwith newline")
		rec := httptest.NewRecorder()

		require.NoError(t, handler(e.NewContext(req, rec)))
		assert.Len(t, seen, 8)
		assert.Equal(t, seen, rec.Header().Get(correlation.Header))
	})
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, Services{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
}
