package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/blastdesk/internal/platform/errors"
)

func (s *Server) registerTemplateRoutes(api *echo.Group) {
	api.GET("/templates", s.handleListTemplates)
	api.POST("/templates", s.handleCreateTemplate)
	api.GET("/templates/:id", s.handleGetTemplate)
	api.PUT("/templates/:id", s.handleUpdateTemplate)
	api.DELETE("/templates/:id", s.handleDeleteTemplate)
	api.PUT("/templates/:id/ecard", s.handleUpdateECard)
	api.PUT("/templates/:id/ecard/backdrop", s.handleUploadBackdrop)
	api.GET("/templates/:id/ecard/preview", s.handlePreviewECard)
}

func (s *Server) handleListTemplates(c echo.Context) error {
	templates, err := s.templates.ListTemplates(c.Request().Context())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, mapSlice(templates, toTemplateResponse))
}

func (s *Server) handleGetTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	tmpl, err := s.templates.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toTemplateResponse(*tmpl))
}

func (s *Server) handleCreateTemplate(c echo.Context) error {
	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	tmpl, err := s.templates.CreateTemplate(c.Request().Context(), req.toInput())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, toTemplateResponse(*tmpl))
}

func (s *Server) handleUpdateTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	tmpl, err := s.templates.UpdateTemplate(c.Request().Context(), id, req.toInput())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toTemplateResponse(*tmpl))
}

func (s *Server) handleDeleteTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := s.templates.DeleteTemplate(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUpdateECard(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ecardRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	tmpl, err := s.templates.UpdateECard(c.Request().Context(), id, req.toSettings())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toTemplateResponse(*tmpl))
}

func (s *Server) handleUploadBackdrop(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	data, err := s.readUpload(c)
	if err != nil {
		return err
	}
	tmpl, err := s.templates.SetBackdrop(c.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toTemplateResponse(*tmpl))
}

func (s *Server) handlePreviewECard(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	data, contentType, err := s.templates.PreviewECard(c.Request().Context(), id,
		c.QueryParam("name"), c.QueryParam("role"), c.QueryParam("format"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, contentType, data)
}
