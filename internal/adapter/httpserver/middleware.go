package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/blastdesk/internal/app"
	"github.com/pscheid92/blastdesk/internal/domain"
	"github.com/pscheid92/blastdesk/internal/platform/correlation"
	apperrors "github.com/pscheid92/blastdesk/internal/platform/errors"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.Header))
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := toStructuredError(err)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// domainErrors maps sentinel errors from the use-case layer to client-facing errors.
var domainErrors = []struct {
	target error
	build  func(string) *apperrors.Error
}{
	{domain.ErrAdminNotFound, apperrors.NotFoundError},
	{domain.ErrDepartmentNotFound, apperrors.NotFoundError},
	{domain.ErrParticipantNotFound, apperrors.NotFoundError},
	{domain.ErrTemplateNotFound, apperrors.NotFoundError},
	{domain.ErrBlastNotFound, apperrors.NotFoundError},
	{domain.ErrAdminExists, apperrors.ConflictError},
	{domain.ErrDepartmentExists, apperrors.ConflictError},
	{domain.ErrParticipantExists, apperrors.ConflictError},
	{domain.ErrTemplateInUse, apperrors.ConflictError},
	{domain.ErrBlastNotSendable, apperrors.ConflictError},
	{domain.ErrBlastInProgress, apperrors.ConflictError},
	{domain.ErrEmptyAudience, apperrors.ValidationError},
	{domain.ErrInvalidCredentials, apperrors.UnauthorizedError},
	{domain.ErrInvalidToken, apperrors.UnauthorizedError},
	{domain.ErrTokenRevoked, apperrors.UnauthorizedError},
}

func toStructuredError(err error) *apperrors.Error {
	var structuredErr *apperrors.Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.TooLargeError("upload too large").WithField("limit", tooLarge.Limit)
	}

	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			return m.build(m.target.Error())
		}
	}

	return apperrors.AsStructuredError(err)
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if adminID := c.Get(ctxKeyAdminID); adminID != nil {
		attrs = append(attrs, "admin_id", adminID)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeTooLarge:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeUnauthorized:
		slog.InfoContext(ctx, "Unauthorized", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeRateLimited:
		slog.WarnContext(ctx, "Rate limited", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

// shuttingDown maps app.ErrShuttingDown to 503.
func shuttingDown(err error) error {
	if errors.Is(err, app.ErrShuttingDown) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is shutting down")
	}
	return err
}
