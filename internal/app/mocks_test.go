package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/blastdesk/internal/domain"
)

// --- Mock implementations ---

type mockAdminRepo struct {
	getByIDFn        func(ctx context.Context, adminID uuid.UUID) (*domain.Admin, error)
	getByEmailFn     func(ctx context.Context, email string) (*domain.Admin, error)
	createFn         func(ctx context.Context, email, passwordHash string) (*domain.Admin, error)
	updatePasswordFn func(ctx context.Context, adminID uuid.UUID, passwordHash string) error
	touchLoginFn     func(ctx context.Context, adminID uuid.UUID, at time.Time) error
	countFn          func(ctx context.Context) (int, error)
}

func (m *mockAdminRepo) GetByID(ctx context.Context, adminID uuid.UUID) (*domain.Admin, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, adminID)
	}
	return nil, domain.ErrAdminNotFound
}

func (m *mockAdminRepo) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, domain.ErrAdminNotFound
}

func (m *mockAdminRepo) Create(ctx context.Context, email, passwordHash string) (*domain.Admin, error) {
	if m.createFn != nil {
		return m.createFn(ctx, email, passwordHash)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockAdminRepo) UpdatePassword(ctx context.Context, adminID uuid.UUID, passwordHash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, adminID, passwordHash)
	}
	return nil
}

func (m *mockAdminRepo) TouchLogin(ctx context.Context, adminID uuid.UUID, at time.Time) error {
	if m.touchLoginFn != nil {
		return m.touchLoginFn(ctx, adminID, at)
	}
	return nil
}

func (m *mockAdminRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

// mockDenylist keeps revoked IDs in memory.
type mockDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func newMockDenylist() *mockDenylist {
	return &mockDenylist{revoked: map[string]time.Duration{}}
}

func (m *mockDenylist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.revoked[tokenID] = ttl
	return nil
}

func (m *mockDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.revoked[tokenID]
	return ok, nil
}

type mockDepartmentRepo struct {
	listFn      func(ctx context.Context) ([]domain.Department, error)
	getFn       func(ctx context.Context, departmentID uuid.UUID) (*domain.Department, error)
	getByNameFn func(ctx context.Context, name string) (*domain.Department, error)
	createFn    func(ctx context.Context, in domain.DepartmentInput) (*domain.Department, error)
	updateFn    func(ctx context.Context, departmentID uuid.UUID, in domain.DepartmentInput) (*domain.Department, error)
	deleteFn    func(ctx context.Context, departmentID uuid.UUID) error
}

func (m *mockDepartmentRepo) List(ctx context.Context) ([]domain.Department, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockDepartmentRepo) Get(ctx context.Context, departmentID uuid.UUID) (*domain.Department, error) {
	if m.getFn != nil {
		return m.getFn(ctx, departmentID)
	}
	return nil, domain.ErrDepartmentNotFound
}

func (m *mockDepartmentRepo) GetByName(ctx context.Context, name string) (*domain.Department, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(ctx, name)
	}
	return nil, domain.ErrDepartmentNotFound
}

func (m *mockDepartmentRepo) Create(ctx context.Context, in domain.DepartmentInput) (*domain.Department, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &domain.Department{ID: uuid.New(), Name: in.Name, Description: in.Description}, nil
}

func (m *mockDepartmentRepo) Update(ctx context.Context, departmentID uuid.UUID, in domain.DepartmentInput) (*domain.Department, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, departmentID, in)
	}
	return &domain.Department{ID: departmentID, Name: in.Name, Description: in.Description}, nil
}

func (m *mockDepartmentRepo) Delete(ctx context.Context, departmentID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, departmentID)
	}
	return nil
}

type mockParticipantRepo struct {
	listFn            func(ctx context.Context, filter domain.ParticipantFilter) ([]domain.Participant, int, error)
	getFn             func(ctx context.Context, participantID uuid.UUID) (*domain.Participant, error)
	createFn          func(ctx context.Context, in domain.ParticipantInput) (*domain.Participant, error)
	updateFn          func(ctx context.Context, participantID uuid.UUID, in domain.ParticipantInput) (*domain.Participant, error)
	deleteFn          func(ctx context.Context, participantID uuid.UUID) error
	upsertByEmailFn   func(ctx context.Context, in domain.ParticipantInput) (*domain.Participant, bool, error)
	listForAudienceFn func(ctx context.Context, audience domain.Audience) ([]domain.Participant, error)
	listAllFn         func(ctx context.Context) ([]domain.Participant, error)
}

func (m *mockParticipantRepo) List(ctx context.Context, filter domain.ParticipantFilter) ([]domain.Participant, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (m *mockParticipantRepo) Get(ctx context.Context, participantID uuid.UUID) (*domain.Participant, error) {
	if m.getFn != nil {
		return m.getFn(ctx, participantID)
	}
	return nil, domain.ErrParticipantNotFound
}

func (m *mockParticipantRepo) Create(ctx context.Context, in domain.ParticipantInput) (*domain.Participant, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &domain.Participant{ID: uuid.New(), DepartmentID: in.DepartmentID, Name: in.Name, Email: in.Email, Role: in.Role}, nil
}

func (m *mockParticipantRepo) Update(ctx context.Context, participantID uuid.UUID, in domain.ParticipantInput) (*domain.Participant, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, participantID, in)
	}
	return &domain.Participant{ID: participantID, DepartmentID: in.DepartmentID, Name: in.Name, Email: in.Email, Role: in.Role}, nil
}

func (m *mockParticipantRepo) Delete(ctx context.Context, participantID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, participantID)
	}
	return nil
}

func (m *mockParticipantRepo) UpsertByEmail(ctx context.Context, in domain.ParticipantInput) (*domain.Participant, bool, error) {
	if m.upsertByEmailFn != nil {
		return m.upsertByEmailFn(ctx, in)
	}
	return nil, false, fmt.Errorf("not implemented")
}

func (m *mockParticipantRepo) ListForAudience(ctx context.Context, audience domain.Audience) ([]domain.Participant, error) {
	if m.listForAudienceFn != nil {
		return m.listForAudienceFn(ctx, audience)
	}
	return nil, nil
}

func (m *mockParticipantRepo) ListAll(ctx context.Context) ([]domain.Participant, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

type mockTemplateRepo struct {
	listFn        func(ctx context.Context) ([]domain.Template, error)
	getFn         func(ctx context.Context, templateID uuid.UUID) (*domain.Template, error)
	createFn      func(ctx context.Context, in domain.TemplateInput) (*domain.Template, error)
	updateFn      func(ctx context.Context, templateID uuid.UUID, in domain.TemplateInput) (*domain.Template, error)
	updateECardFn func(ctx context.Context, templateID uuid.UUID, settings domain.ECardSettings) error
	setBackdropFn func(ctx context.Context, templateID uuid.UUID, data []byte, contentType string) error
	deleteFn      func(ctx context.Context, templateID uuid.UUID) error
}

func (m *mockTemplateRepo) List(ctx context.Context) ([]domain.Template, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockTemplateRepo) Get(ctx context.Context, templateID uuid.UUID) (*domain.Template, error) {
	if m.getFn != nil {
		return m.getFn(ctx, templateID)
	}
	return nil, domain.ErrTemplateNotFound
}

func (m *mockTemplateRepo) Create(ctx context.Context, in domain.TemplateInput) (*domain.Template, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &domain.Template{ID: uuid.New(), Name: in.Name, Subject: in.Subject, BodyHTML: in.BodyHTML}, nil
}

func (m *mockTemplateRepo) Update(ctx context.Context, templateID uuid.UUID, in domain.TemplateInput) (*domain.Template, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, templateID, in)
	}
	return &domain.Template{ID: templateID, Name: in.Name, Subject: in.Subject, BodyHTML: in.BodyHTML}, nil
}

func (m *mockTemplateRepo) UpdateECard(ctx context.Context, templateID uuid.UUID, settings domain.ECardSettings) error {
	if m.updateECardFn != nil {
		return m.updateECardFn(ctx, templateID, settings)
	}
	return nil
}

func (m *mockTemplateRepo) SetBackdrop(ctx context.Context, templateID uuid.UUID, data []byte, contentType string) error {
	if m.setBackdropFn != nil {
		return m.setBackdropFn(ctx, templateID, data, contentType)
	}
	return nil
}

func (m *mockTemplateRepo) Delete(ctx context.Context, templateID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, templateID)
	}
	return nil
}

// memBlastRepo is a small in-memory BlastRepository; delivery tests need its
// counters to behave like the real table.
type memBlastRepo struct {
	mu         sync.Mutex
	blasts     map[uuid.UUID]*domain.Blast
	deliveries []domain.Delivery
	finished   chan uuid.UUID

	markSendingErr error
}

func newMemBlastRepo() *memBlastRepo {
	return &memBlastRepo{blasts: map[uuid.UUID]*domain.Blast{}, finished: make(chan uuid.UUID, 16)}
}

func (m *memBlastRepo) put(b domain.Blast) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blasts[b.ID] = &b
}

func (m *memBlastRepo) Create(_ context.Context, in domain.BlastInput, total int) (*domain.Blast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &domain.Blast{
		ID:         uuid.New(),
		TemplateID: in.TemplateID,
		Name:       in.Name,
		Subject:    in.Subject,
		Status:     domain.BlastDraft,
		Audience:   in.Audience,
		Total:      total,
		CreatedBy:  in.CreatedBy,
	}
	m.blasts[b.ID] = b
	out := *b
	return &out, nil
}

func (m *memBlastRepo) Get(_ context.Context, blastID uuid.UUID) (*domain.Blast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blasts[blastID]
	if !ok {
		return nil, domain.ErrBlastNotFound
	}
	out := *b
	return &out, nil
}

func (m *memBlastRepo) List(_ context.Context, _, _ int) ([]domain.Blast, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Blast
	for _, b := range m.blasts {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *memBlastRepo) ListByStatus(_ context.Context, status domain.BlastStatus) ([]domain.Blast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Blast
	for _, b := range m.blasts {
		if b.Status == status {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memBlastRepo) MarkSending(_ context.Context, blastID uuid.UUID, total int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markSendingErr != nil {
		return m.markSendingErr
	}
	b, ok := m.blasts[blastID]
	if !ok {
		return domain.ErrBlastNotFound
	}
	if !b.Status.Sendable() {
		return domain.ErrBlastNotSendable
	}
	b.Status = domain.BlastSending
	b.Total = total
	b.Failed = 0
	b.LastError = ""
	b.StartedAt = &at
	b.FinishedAt = nil

	kept := m.deliveries[:0]
	for _, d := range m.deliveries {
		if d.BlastID != blastID || d.Status != domain.DeliveryFailed {
			kept = append(kept, d)
		}
	}
	m.deliveries = kept
	return nil
}

func (m *memBlastRepo) SentParticipantIDs(_ context.Context, blastID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, d := range m.deliveries {
		if d.BlastID == blastID && d.Status == domain.DeliverySent {
			out = append(out, d.ParticipantID)
		}
	}
	return out, nil
}

func (m *memBlastRepo) RecordDelivery(_ context.Context, d domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blasts[d.BlastID]
	if !ok {
		return domain.ErrBlastNotFound
	}
	d.ID = uuid.New()
	m.deliveries = append(m.deliveries, d)
	if d.Status == domain.DeliverySent {
		b.Sent++
	} else {
		b.Failed++
	}
	return nil
}

func (m *memBlastRepo) Finish(_ context.Context, blastID uuid.UUID, status domain.BlastStatus, lastError string, at time.Time) error {
	m.mu.Lock()
	b, ok := m.blasts[blastID]
	if ok {
		b.Status = status
		b.LastError = lastError
		b.FinishedAt = &at
	}
	m.mu.Unlock()
	if !ok {
		return domain.ErrBlastNotFound
	}
	m.finished <- blastID
	return nil
}

func (m *memBlastRepo) ListDeliveries(_ context.Context, blastID uuid.UUID, _, _ int) ([]domain.Delivery, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Delivery
	for _, d := range m.deliveries {
		if d.BlastID == blastID {
			out = append(out, d)
		}
	}
	return out, len(out), nil
}

type mockBlastLock struct {
	mu            sync.Mutex
	held          map[uuid.UUID]string
	beforeAcquire func()
	refresh       func(blastID uuid.UUID) (bool, error)
	released      []uuid.UUID
}

func newMockBlastLock() *mockBlastLock {
	return &mockBlastLock{held: map[uuid.UUID]string{}}
}

func (m *mockBlastLock) Acquire(_ context.Context, blastID uuid.UUID, _ time.Duration) (string, bool, error) {
	if m.beforeAcquire != nil {
		m.beforeAcquire()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[blastID]; ok {
		return "", false, nil
	}
	token := uuid.NewString()
	m.held[blastID] = token
	return token, true, nil
}

func (m *mockBlastLock) Refresh(_ context.Context, blastID uuid.UUID, token string, _ time.Duration) (bool, error) {
	if m.refresh != nil {
		return m.refresh(blastID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[blastID] == token, nil
}

func (m *mockBlastLock) Release(_ context.Context, blastID uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[blastID] == token {
		delete(m.held, blastID)
	}
	m.released = append(m.released, blastID)
	return nil
}

func (m *mockBlastLock) isHeld(blastID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[blastID]
	return ok
}

type mockMailer struct {
	mu     sync.Mutex
	sent   []domain.Message
	sendFn func(ctx context.Context, msg domain.Message) error
}

func (m *mockMailer) Send(ctx context.Context, msg domain.Message) error {
	if m.sendFn != nil {
		if err := m.sendFn(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockMailer) messages() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.sent...)
}

type mockRenderer struct {
	renderPDFFn func(settings domain.ECardSettings, name, role string) ([]byte, error)
	renderPNGFn func(settings domain.ECardSettings, name, role string) ([]byte, error)
}

func (m *mockRenderer) RenderPDF(settings domain.ECardSettings, name, role string) ([]byte, error) {
	if m.renderPDFFn != nil {
		return m.renderPDFFn(settings, name, role)
	}
	return []byte("%PDF-" + name), nil
}

func (m *mockRenderer) RenderPNG(settings domain.ECardSettings, name, role string) ([]byte, error) {
	if m.renderPNGFn != nil {
		return m.renderPNGFn(settings, name, role)
	}
	return []byte("PNG-" + name), nil
}

type mockAnalyticsRepo struct {
	summaryFn func(ctx context.Context, since time.Time, recent int) (*domain.Analytics, error)
}

func (m *mockAnalyticsRepo) Summary(ctx context.Context, since time.Time, recent int) (*domain.Analytics, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, since, recent)
	}
	return &domain.Analytics{}, nil
}

type mockAnalyticsCache struct {
	mu          sync.Mutex
	value       *domain.Analytics
	ttl         time.Duration
	getErr      error
	setErr      error
	invalidated int
}

func (m *mockAnalyticsCache) Get(_ context.Context) (*domain.Analytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.value, nil
}

func (m *mockAnalyticsCache) Set(_ context.Context, summary *domain.Analytics, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.value = summary
	m.ttl = ttl
	return nil
}

func (m *mockAnalyticsCache) Invalidate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = nil
	m.invalidated++
	return nil
}

func (m *mockAnalyticsCache) invalidations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidated
}
