package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pscheid92/blastdesk/internal/csvio"
	"github.com/pscheid92/blastdesk/internal/domain"
	apperrors "github.com/pscheid92/blastdesk/internal/platform/errors"
)

// DirectoryService manages departments and participants.
type DirectoryService struct {
	departments  domain.DepartmentRepository
	participants domain.ParticipantRepository
	cache        domain.AnalyticsCache
}

func NewDirectoryService(departments domain.DepartmentRepository, participants domain.ParticipantRepository, cache domain.AnalyticsCache) *DirectoryService {
	return &DirectoryService{departments: departments, participants: participants, cache: cache}
}

func (s *DirectoryService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	return s.departments.List(ctx)
}

func (s *DirectoryService) GetDepartment(ctx context.Context, departmentID uuid.UUID) (*domain.Department, error) {
	return s.departments.Get(ctx, departmentID)
}

func (s *DirectoryService) CreateDepartment(ctx context.Context, in domain.DepartmentInput) (*domain.Department, error) {
	if err := validateDepartment(&in); err != nil {
		return nil, err
	}
	d, err := s.departments.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	invalidateAnalytics(ctx, s.cache)
	return d, nil
}

func (s *DirectoryService) UpdateDepartment(ctx context.Context, departmentID uuid.UUID, in domain.DepartmentInput) (*domain.Department, error) {
	if err := validateDepartment(&in); err != nil {
		return nil, err
	}
	d, err := s.departments.Update(ctx, departmentID, in)
	if err != nil {
		return nil, err
	}
	invalidateAnalytics(ctx, s.cache)
	return d, nil
}

func (s *DirectoryService) DeleteDepartment(ctx context.Context, departmentID uuid.UUID) error {
	if err := s.departments.Delete(ctx, departmentID); err != nil {
		return err
	}
	invalidateAnalytics(ctx, s.cache)
	return nil
}

func (s *DirectoryService) ListParticipants(ctx context.Context, filter domain.ParticipantFilter) ([]domain.Participant, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Limit, filter.Offset = NormalizePage(filter.Limit, filter.Offset)
	return s.participants.List(ctx, filter)
}

func (s *DirectoryService) GetParticipant(ctx context.Context, participantID uuid.UUID) (*domain.Participant, error) {
	return s.participants.Get(ctx, participantID)
}

func (s *DirectoryService) CreateParticipant(ctx context.Context, in domain.ParticipantInput) (*domain.Participant, error) {
	if err := validateParticipant(&in); err != nil {
		return nil, err
	}
	p, err := s.participants.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	invalidateAnalytics(ctx, s.cache)
	return p, nil
}

func (s *DirectoryService) UpdateParticipant(ctx context.Context, participantID uuid.UUID, in domain.ParticipantInput) (*domain.Participant, error) {
	if err := validateParticipant(&in); err != nil {
		return nil, err
	}
	p, err := s.participants.Update(ctx, participantID, in)
	if err != nil {
		return nil, err
	}
	invalidateAnalytics(ctx, s.cache)
	return p, nil
}

func (s *DirectoryService) DeleteParticipant(ctx context.Context, participantID uuid.UUID) error {
	if err := s.participants.Delete(ctx, participantID); err != nil {
		return err
	}
	invalidateAnalytics(ctx, s.cache)
	return nil
}

// ImportParticipants upserts every valid CSV row by email. Departments are
// matched by name and created when missing. Invalid rows are skipped and
// reported; they never abort the import.
func (s *DirectoryService) ImportParticipants(ctx context.Context, r io.Reader) (*domain.ImportResult, error) {
	rows, rowErrs, err := csvio.Decode(r)
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	result := &domain.ImportResult{Errors: rowErrs, Skipped: len(rowErrs)}
	departments := map[string]uuid.UUID{}

	for _, row := range rows {
		in := domain.ParticipantInput{Name: row.Name, Email: row.Email, Role: row.Role}
		if err := validateParticipant(&in); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, domain.ImportError{Line: row.Line, Message: importMessage(err)})
			continue
		}

		if row.Department != "" {
			id, err := s.resolveDepartment(ctx, departments, row.Department)
			if isValidation(err) {
				result.Skipped++
				result.Errors = append(result.Errors, domain.ImportError{Line: row.Line, Message: "department " + importMessage(err)})
				continue
			}
			if err != nil {
				return nil, err
			}
			in.DepartmentID = &id
		}

		_, created, err := s.participants.UpsertByEmail(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Skipped++
			result.Errors = append(result.Errors, domain.ImportError{Line: row.Line, Message: importMessage(err)})
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	slog.Info("Participants imported",
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped)

	if result.Created > 0 || result.Updated > 0 {
		invalidateAnalytics(ctx, s.cache)
	}
	return result, nil
}

func (s *DirectoryService) resolveDepartment(ctx context.Context, known map[string]uuid.UUID, name string) (uuid.UUID, error) {
	key := strings.ToLower(name)
	if id, ok := known[key]; ok {
		return id, nil
	}

	d, err := s.departments.GetByName(ctx, name)
	if errors.Is(err, domain.ErrDepartmentNotFound) {
		in := domain.DepartmentInput{Name: name}
		if err := validateDepartment(&in); err != nil {
			return uuid.Nil, err
		}
		d, err = s.departments.Create(ctx, in)
		if errors.Is(err, domain.ErrDepartmentExists) {
			d, err = s.departments.GetByName(ctx, name)
		}
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve department %q: %w", name, err)
	}

	known[key] = d.ID
	return d.ID, nil
}

func isValidation(err error) bool {
	var structured *apperrors.Error
	return errors.As(err, &structured) && structured.Type == apperrors.TypeValidation
}

func importMessage(err error) string {
	var structured *apperrors.Error
	if errors.As(err, &structured) {
		return structured.Message
	}
	return err.Error()
}

// ExportParticipants writes every participant as CSV in name order.
func (s *DirectoryService) ExportParticipants(ctx context.Context, w io.Writer) error {
	participants, err := s.participants.ListAll(ctx)
	if err != nil {
		return err
	}
	return csvio.Encode(w, participants)
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// NormalizePage applies the default page size and clamps limit and offset.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
