package httpserver

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/blastdesk/internal/app"
	"github.com/pscheid92/blastdesk/internal/domain"
	apperrors "github.com/pscheid92/blastdesk/internal/platform/errors"
)

const exportFilename = "participants.csv"

func (s *Server) registerDirectoryRoutes(api *echo.Group) {
	api.GET("/departments", s.handleListDepartments)
	api.POST("/departments", s.handleCreateDepartment)
	api.GET("/departments/:id", s.handleGetDepartment)
	api.PUT("/departments/:id", s.handleUpdateDepartment)
	api.DELETE("/departments/:id", s.handleDeleteDepartment)

	api.GET("/participants", s.handleListParticipants)
	api.POST("/participants", s.handleCreateParticipant)
	api.POST("/participants/import", s.handleImportParticipants)
	api.GET("/participants/export", s.handleExportParticipants)
	api.GET("/participants/:id", s.handleGetParticipant)
	api.PUT("/participants/:id", s.handleUpdateParticipant)
	api.DELETE("/participants/:id", s.handleDeleteParticipant)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid ID format").WithField("id", raw)
	}
	return id, nil
}

// queryInt reads a non-negative integer query parameter, returning def when absent.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.ValidationError("must be a non-negative integer").WithField("field", name)
	}
	return n, nil
}

func pagination(c echo.Context) (int, int, error) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, offset = app.NormalizePage(limit, offset)
	return limit, offset, nil
}

func (s *Server) handleListDepartments(c echo.Context) error {
	departments, err := s.directory.ListDepartments(c.Request().Context())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, mapSlice(departments, toDepartmentResponse))
}

func (s *Server) handleGetDepartment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	department, err := s.directory.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toDepartmentResponse(*department))
}

func (s *Server) handleCreateDepartment(c echo.Context) error {
	var req departmentRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	department, err := s.directory.CreateDepartment(c.Request().Context(), req.toInput())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, toDepartmentResponse(*department))
}

func (s *Server) handleUpdateDepartment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req departmentRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	department, err := s.directory.UpdateDepartment(c.Request().Context(), id, req.toInput())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toDepartmentResponse(*department))
}

func (s *Server) handleDeleteDepartment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := s.directory.DeleteDepartment(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListParticipants(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	filter := domain.ParticipantFilter{
		Search: c.QueryParam("q"),
		Limit:  limit,
		Offset: offset,
	}
	if raw := c.QueryParam("department_id"); raw != "" {
		departmentID, err := uuid.Parse(raw)
		if err != nil {
			return apperrors.ValidationError("invalid department_id").WithField("department_id", raw)
		}
		filter.DepartmentID = &departmentID
	}

	participants, total, err := s.directory.ListParticipants(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, pageResponse[participantResponse]{
		Items:  mapSlice(participants, toParticipantResponse),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetParticipant(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	participant, err := s.directory.GetParticipant(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toParticipantResponse(*participant))
}

func (s *Server) handleCreateParticipant(c echo.Context) error {
	var req participantRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	participant, err := s.directory.CreateParticipant(c.Request().Context(), req.toInput())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, toParticipantResponse(*participant))
}

func (s *Server) handleUpdateParticipant(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req participantRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	participant, err := s.directory.UpdateParticipant(c.Request().Context(), id, req.toInput())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toParticipantResponse(*participant))
}

func (s *Server) handleDeleteParticipant(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := s.directory.DeleteParticipant(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleImportParticipants(c echo.Context) error {
	data, err := s.readUpload(c)
	if err != nil {
		return err
	}
	result, err := s.directory.ImportParticipants(c.Request().Context(), bytes.NewReader(data))
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, toImportResponse(result))
}

func (s *Server) handleExportParticipants(c echo.Context) error {
	buf := &bytes.Buffer{}
	if err := s.directory.ExportParticipants(c.Request().Context(), buf); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+exportFilename+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// readUpload returns the multipart "file" field, or the raw body for non-multipart
// requests, capped at MaxUploadBytes.
func (s *Server) readUpload(c echo.Context) ([]byte, error) {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response().Writer, req.Body, s.config.MaxUploadBytes)

	if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, apperrors.ValidationError("request body is empty")
		}
		return data, nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, apperrors.ValidationError("multipart field \"file\" is required").WithField("field", "file")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.InternalError("failed to open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.InternalError("failed to read upload", err)
	}
	return data, nil
}
