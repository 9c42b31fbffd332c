package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/blastdesk/internal/domain"
	"github.com/pscheid92/blastdesk/internal/platform/config"
)

// --- Mock implementations ---

type mockAuthService struct {
	loginFn          func(ctx context.Context, email, password string) (*domain.LoginResult, error)
	authenticateFn   func(ctx context.Context, token string) (*domain.TokenClaims, error)
	logoutFn         func(ctx context.Context, token string) error
	getAdminFn       func(ctx context.Context, adminID uuid.UUID) (*domain.Admin, error)
	changePasswordFn func(ctx context.Context, adminID uuid.UUID, current, next string) error
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, domain.ErrInvalidCredentials
}

func (m *mockAuthService) Authenticate(ctx context.Context, token string) (*domain.TokenClaims, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, token)
	}
	return nil, domain.ErrInvalidToken
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) GetAdmin(ctx context.Context, adminID uuid.UUID) (*domain.Admin, error) {
	if m.getAdminFn != nil {
		return m.getAdminFn(ctx, adminID)
	}
	return &domain.Admin{ID: adminID, Email: "admin@example.com"}, nil
}

func (m *mockAuthService) ChangePassword(ctx context.Context, adminID uuid.UUID, current, next string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, adminID, current, next)
	}
	return nil
}

type mockDirectoryService struct {
	listDepartmentsFn    func(ctx context.Context) ([]domain.Department, error)
	getDepartmentFn      func(ctx context.Context, id uuid.UUID) (*domain.Department, error)
	createDepartmentFn   func(ctx context.Context, in domain.DepartmentInput) (*domain.Department, error)
	updateDepartmentFn   func(ctx context.Context, id uuid.UUID, in domain.DepartmentInput) (*domain.Department, error)
	deleteDepartmentFn   func(ctx context.Context, id uuid.UUID) error
	listParticipantsFn   func(ctx context.Context, filter domain.ParticipantFilter) ([]domain.Participant, int, error)
	getParticipantFn     func(ctx context.Context, id uuid.UUID) (*domain.Participant, error)
	createParticipantFn  func(ctx context.Context, in domain.ParticipantInput) (*domain.Participant, error)
	updateParticipantFn  func(ctx context.Context, id uuid.UUID, in domain.ParticipantInput) (*domain.Participant, error)
	deleteParticipantFn  func(ctx context.Context, id uuid.UUID) error
	importParticipantsFn func(ctx context.Context, r io.Reader) (*domain.ImportResult, error)
	exportParticipantsFn func(ctx context.Context, w io.Writer) error
}

func (m *mockDirectoryService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	if m.listDepartmentsFn != nil {
		return m.listDepartmentsFn(ctx)
	}
	return nil, nil
}

func (m *mockDirectoryService) GetDepartment(ctx context.Context, id uuid.UUID) (*domain.Department, error) {
	if m.getDepartmentFn != nil {
		return m.getDepartmentFn(ctx, id)
	}
	return nil, domain.ErrDepartmentNotFound
}

func (m *mockDirectoryService) CreateDepartment(ctx context.Context, in domain.DepartmentInput) (*domain.Department, error) {
	if m.createDepartmentFn != nil {
		return m.createDepartmentFn(ctx, in)
	}
	return &domain.Department{ID: uuid.New(), Name: in.Name, Description: in.Description}, nil
}

func (m *mockDirectoryService) UpdateDepartment(ctx context.Context, id uuid.UUID, in domain.DepartmentInput) (*domain.Department, error) {
	if m.updateDepartmentFn != nil {
		return m.updateDepartmentFn(ctx, id, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDirectoryService) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	if m.deleteDepartmentFn != nil {
		return m.deleteDepartmentFn(ctx, id)
	}
	return nil
}

func (m *mockDirectoryService) ListParticipants(ctx context.Context, filter domain.ParticipantFilter) ([]domain.Participant, int, error) {
	if m.listParticipantsFn != nil {
		return m.listParticipantsFn(ctx, filter)
	}
	return nil, 0, nil
}

func (m *mockDirectoryService) GetParticipant(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	if m.getParticipantFn != nil {
		return m.getParticipantFn(ctx, id)
	}
	return nil, domain.ErrParticipantNotFound
}

func (m *mockDirectoryService) CreateParticipant(ctx context.Context, in domain.ParticipantInput) (*domain.Participant, error) {
	if m.createParticipantFn != nil {
		return m.createParticipantFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDirectoryService) UpdateParticipant(ctx context.Context, id uuid.UUID, in domain.ParticipantInput) (*domain.Participant, error) {
	if m.updateParticipantFn != nil {
		return m.updateParticipantFn(ctx, id, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDirectoryService) DeleteParticipant(ctx context.Context, id uuid.UUID) error {
	if m.deleteParticipantFn != nil {
		return m.deleteParticipantFn(ctx, id)
	}
	return nil
}

func (m *mockDirectoryService) ImportParticipants(ctx context.Context, r io.Reader) (*domain.ImportResult, error) {
	if m.importParticipantsFn != nil {
		return m.importParticipantsFn(ctx, r)
	}
	return &domain.ImportResult{}, nil
}

func (m *mockDirectoryService) ExportParticipants(ctx context.Context, w io.Writer) error {
	if m.exportParticipantsFn != nil {
		return m.exportParticipantsFn(ctx, w)
	}
	return nil
}

type mockTemplateService struct {
	listFn        func(ctx context.Context) ([]domain.Template, error)
	getFn         func(ctx context.Context, id uuid.UUID) (*domain.Template, error)
	createFn      func(ctx context.Context, in domain.TemplateInput) (*domain.Template, error)
	updateFn      func(ctx context.Context, id uuid.UUID, in domain.TemplateInput) (*domain.Template, error)
	deleteFn      func(ctx context.Context, id uuid.UUID) error
	updateECardFn func(ctx context.Context, id uuid.UUID, settings domain.ECardSettings) (*domain.Template, error)
	setBackdropFn func(ctx context.Context, id uuid.UUID, data []byte) (*domain.Template, error)
	previewFn     func(ctx context.Context, id uuid.UUID, name, role, format string) ([]byte, string, error)
}

func (m *mockTemplateService) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockTemplateService) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrTemplateNotFound
}

func (m *mockTemplateService) CreateTemplate(ctx context.Context, in domain.TemplateInput) (*domain.Template, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTemplateService) UpdateTemplate(ctx context.Context, id uuid.UUID, in domain.TemplateInput) (*domain.Template, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTemplateService) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockTemplateService) UpdateECard(ctx context.Context, id uuid.UUID, settings domain.ECardSettings) (*domain.Template, error) {
	if m.updateECardFn != nil {
		return m.updateECardFn(ctx, id, settings)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTemplateService) SetBackdrop(ctx context.Context, id uuid.UUID, data []byte) (*domain.Template, error) {
	if m.setBackdropFn != nil {
		return m.setBackdropFn(ctx, id, data)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTemplateService) PreviewECard(ctx context.Context, id uuid.UUID, name, role, format string) ([]byte, string, error) {
	if m.previewFn != nil {
		return m.previewFn(ctx, id, name, role, format)
	}
	return nil, "", errors.New("not implemented")
}

type mockBlastService struct {
	createFn         func(ctx context.Context, in domain.BlastInput) (*domain.Blast, error)
	getFn            func(ctx context.Context, id uuid.UUID) (*domain.Blast, error)
	listFn           func(ctx context.Context, limit, offset int) ([]domain.Blast, int, error)
	listDeliveriesFn func(ctx context.Context, id uuid.UUID, limit, offset int) ([]domain.Delivery, int, error)
	sendFn           func(ctx context.Context, id uuid.UUID) (*domain.Blast, error)
}

func (m *mockBlastService) CreateBlast(ctx context.Context, in domain.BlastInput) (*domain.Blast, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBlastService) GetBlast(ctx context.Context, id uuid.UUID) (*domain.Blast, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrBlastNotFound
}

func (m *mockBlastService) ListBlasts(ctx context.Context, limit, offset int) ([]domain.Blast, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockBlastService) ListDeliveries(ctx context.Context, id uuid.UUID, limit, offset int) ([]domain.Delivery, int, error) {
	if m.listDeliveriesFn != nil {
		return m.listDeliveriesFn(ctx, id, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockBlastService) SendBlast(ctx context.Context, id uuid.UUID) (*domain.Blast, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

type mockAnalyticsService struct {
	summaryFn func(ctx context.Context) (*domain.Analytics, error)
}

func (m *mockAnalyticsService) Summary(ctx context.Context) (*domain.Analytics, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx)
	}
	return &domain.Analytics{}, nil
}

// --- Test helpers ---

const testToken = "valid-token"

var testAdminID = uuid.MustParse("6f1c1a52-8f8e-4d3b-9a57-3f0d1b2c4e5a")

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		SessionSecret:  "test-secret-key-32-bytes-long!!!",
		SessionMaxAge:  time.Hour,
		MaxUploadBytes: 1024,
	}
}

// tokenAuth accepts testToken for testAdminID.
func tokenAuth() *mockAuthService {
	return &mockAuthService{
		authenticateFn: func(_ context.Context, token string) (*domain.TokenClaims, error) {
			if token != testToken {
				return nil, domain.ErrInvalidToken
			}
			return &domain.TokenClaims{AdminID: testAdminID, TokenID: "jti", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
}

func newTestServer(t *testing.T, svc Services, opts ...Option) *Server {
	t.Helper()

	if svc.Auth == nil {
		svc.Auth = tokenAuth()
	}
	if svc.Directory == nil {
		svc.Directory = &mockDirectoryService{}
	}
	if svc.Templates == nil {
		svc.Templates = &mockTemplateService{}
	}
	if svc.Blasts == nil {
		svc.Blasts = &mockBlastService{}
	}
	if svc.Analytics == nil {
		svc.Analytics = &mockAnalyticsService{}
	}

	return NewServer(testConfig(), svc, opts...)
}

// serve runs the request through the full middleware stack.
func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func authorized(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}
