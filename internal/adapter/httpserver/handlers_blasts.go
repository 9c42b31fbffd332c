package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/blastdesk/internal/platform/errors"
)

func (s *Server) registerBlastRoutes(api *echo.Group) {
	api.GET("/blasts", s.handleListBlasts)
	api.POST("/blasts", s.handleCreateBlast)
	api.GET("/blasts/:id", s.handleGetBlast)
	api.POST("/blasts/:id/send", s.handleSendBlast)
	api.GET("/blasts/:id/deliveries", s.handleListDeliveries)
}

func (s *Server) handleListBlasts(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	blasts, total, err := s.blasts.ListBlasts(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, pageResponse[blastResponse]{
		Items:  mapSlice(blasts, toBlastResponse),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetBlast(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	blast, err := s.blasts.GetBlast(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toBlastResponse(*blast))
}

func (s *Server) handleCreateBlast(c echo.Context) error {
	adminID, err := adminIDFrom(c)
	if err != nil {
		return err
	}
	var req blastRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	blast, err := s.blasts.CreateBlast(c.Request().Context(), req.toInput(adminID))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, toBlastResponse(*blast))
}

func (s *Server) handleSendBlast(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	blast, err := s.blasts.SendBlast(c.Request().Context(), id)
	if err != nil {
		return shuttingDown(err)
	}
	slog.InfoContext(c.Request().Context(), "Blast send started", "blast_id", id, "admin_id", c.Get(ctxKeyAdminID))
	return writeJSON(c, http.StatusAccepted, toBlastResponse(*blast))
}

func (s *Server) handleListDeliveries(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	deliveries, total, err := s.blasts.ListDeliveries(c.Request().Context(), id, limit, offset)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, pageResponse[deliveryResponse]{
		Items:  mapSlice(deliveries, toDeliveryResponse),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleAnalytics(c echo.Context) error {
	summary, err := s.analytics.Summary(c.Request().Context())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toAnalyticsResponse(summary))
}
