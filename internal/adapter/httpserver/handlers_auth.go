package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/blastdesk/internal/domain"
	apperrors "github.com/pscheid92/blastdesk/internal/platform/errors"
)

// Context keys set by requireAuth.
const (
	ctxKeyAdminID    = "adminID"
	ctxKeyToken      = "token"
	ctxKeyAuthSource = "authSource"
)

const (
	authSourceBearer  = "bearer"
	authSourceSession = "session"
)

const (
	csrfHeader     = "X-CSRF-Token"
	csrfCookieName = "csrf_token"
)

func (s *Server) registerAuthRoutes(api *echo.Group) {
	api.POST("/auth/logout", s.handleLogout)
	api.GET("/auth/me", s.handleMe)
	api.POST("/auth/password", s.handleChangePassword)
}

// requestToken returns the access token carried by the request and where it came from.
func (s *Server) requestToken(c echo.Context) (string, string) {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") && token != "" {
			return strings.TrimSpace(token), authSourceBearer
		}
		return "", ""
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return "", ""
	}
	token, ok := session.Values[sessionKeyToken].(string)
	if !ok || token == "" {
		return "", ""
	}
	return token, authSourceSession
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, source := s.requestToken(c)
		if token == "" {
			return apperrors.UnauthorizedError("authentication required")
		}

		claims, err := s.auth.Authenticate(c.Request().Context(), token)
		if err != nil {
			if source == authSourceSession {
				s.clearSession(c)
			}
			return err
		}

		c.Set(ctxKeyAdminID, claims.AdminID)
		c.Set(ctxKeyToken, token)
		c.Set(ctxKeyAuthSource, source)
		return next(c)
	}
}

func adminIDFrom(c echo.Context) (uuid.UUID, error) {
	adminID, ok := c.Get(ctxKeyAdminID).(uuid.UUID)
	if !ok {
		return uuid.Nil, apperrors.InternalError("missing admin ID in context", nil)
	}
	return adminID, nil
}

func (s *Server) clearSession(c echo.Context) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return
	}
	delete(session.Values, sessionKeyToken)
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		slog.WarnContext(c.Request().Context(), "Failed to clear session", "error", err)
	}
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.ValidationError("email and password are required")
	}

	result, err := s.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		// a stale cookie signed with an old secret still yields a fresh session
		slog.DebugContext(c.Request().Context(), "Discarding unreadable session", "error", err)
	}
	session.Values[sessionKeyToken] = result.Token
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	slog.InfoContext(c.Request().Context(), "Admin logged in", "admin_id", result.Admin.ID)
	return writeJSON(c, http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Admin:     toAdminResponse(result.Admin),
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	token, _ := c.Get(ctxKeyToken).(string)
	if err := s.auth.Logout(c.Request().Context(), token); err != nil {
		return apperrors.InternalError("failed to revoke token", err)
	}
	s.clearSession(c)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMe(c echo.Context) error {
	adminID, err := adminIDFrom(c)
	if err != nil {
		return err
	}
	admin, err := s.auth.GetAdmin(c.Request().Context(), adminID)
	if err != nil {
		return err
	}

	resp := meResponse{Admin: toAdminResponse(admin)}
	if token, ok := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string); ok {
		resp.CSRFToken = token
	}
	return writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleChangePassword(c echo.Context) error {
	adminID, err := adminIDFrom(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	err = s.auth.ChangePassword(c.Request().Context(), adminID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return apperrors.ValidationError("current password is incorrect").WithField("field", "current_password")
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func writeJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
