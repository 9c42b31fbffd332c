package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/pscheid92/blastdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestBlast(t *testing.T, repo *BlastRepo, templateID uuid.UUID, audience domain.Audience, total int) *domain.Blast {
	t.Helper()
	b, err := repo.Create(context.Background(), domain.BlastInput{
		TemplateID: templateID,
		Name:       "Launch",
		Subject:    "Hello {{name}}",
		Audience:   audience,
	}, total)
	require.NoError(t, err)
	return b
}

func TestBlastRepo_CreateAndGet(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewBlastRepo(pool)
	ctx := context.Background()
	tmpl := createTestTemplate(t, pool)
	dept := createTestDepartment(t, pool, "Sales")

	audience := domain.Audience{DepartmentIDs: []uuid.UUID{dept.ID}}
	created := createTestBlast(t, repo, tmpl.ID, audience, 7)

	assert.Equal(t, domain.BlastDraft, created.Status)
	assert.Equal(t, 7, created.Total)
	assert.Nil(t, created.StartedAt)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(audience, got.Audience); diff != "" {
		t.Errorf("audience mismatch (-want +got):\n%s", diff)
	}
}

func TestBlastRepo_CreateUnknownTemplate(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewBlastRepo(pool)

	_, err := repo.Create(context.Background(), domain.BlastInput{TemplateID: uuid.New(), Name: "x", Subject: "y"}, 0)
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestBlastRepo_MarkSending(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewBlastRepo(pool)
	ctx := context.Background()
	tmpl := createTestTemplate(t, pool)
	b := createTestBlast(t, repo, tmpl.ID, domain.Audience{}, 0)

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkSending(ctx, b.ID, 3, at))

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BlastSending, got.Status)
	assert.Equal(t, 3, got.Total)
	require.NotNil(t, got.StartedAt)
	assert.True(t, at.Equal(*got.StartedAt))

	assert.ErrorIs(t, repo.MarkSending(ctx, b.ID, 3, at), domain.ErrBlastNotSendable)
	assert.ErrorIs(t, repo.MarkSending(ctx, uuid.New(), 3, at), domain.ErrBlastNotFound)
}

func TestBlastRepo_RecordDeliveryAndFinish(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewBlastRepo(pool)
	ctx := context.Background()
	tmpl := createTestTemplate(t, pool)
	ada := createTestParticipant(t, pool, "Ada", "ada@example.com", nil)
	bob := createTestParticipant(t, pool, "Bob", "bob@example.com", nil)
	b := createTestBlast(t, repo, tmpl.ID, domain.Audience{}, 2)

	now := time.Now().UTC()
	require.NoError(t, repo.MarkSending(ctx, b.ID, 2, now))
	require.NoError(t, repo.RecordDelivery(ctx, domain.Delivery{BlastID: b.ID, ParticipantID: ada.ID, Email: ada.Email, Status: domain.DeliverySent, AttemptedAt: now}))
	require.NoError(t, repo.RecordDelivery(ctx, domain.Delivery{BlastID: b.ID, ParticipantID: bob.ID, Email: bob.Email, Status: domain.DeliveryFailed, Error: "550 mailbox unavailable", AttemptedAt: now.Add(time.Second)}))
	require.NoError(t, repo.Finish(ctx, b.ID, domain.BlastCompletedWithErrors, "", now.Add(2*time.Second)))

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Sent)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, domain.BlastCompletedWithErrors, got.Status)
	assert.NotNil(t, got.FinishedAt)

	deliveries, total, err := repo.ListDeliveries(ctx, b.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, deliveries, 2)
	assert.Equal(t, ada.ID, deliveries[0].ParticipantID)
	assert.Equal(t, domain.DeliveryFailed, deliveries[1].Status)
	assert.Equal(t, "550 mailbox unavailable", deliveries[1].Error)

	sent, err := repo.SentParticipantIDs(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ada.ID}, sent)
}

func TestBlastRepo_RecordDeliveryForDeletedParticipant(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewBlastRepo(pool)
	ctx := context.Background()
	tmpl := createTestTemplate(t, pool)
	ada := createTestParticipant(t, pool, "Ada", "ada@example.com", nil)
	b := createTestBlast(t, repo, tmpl.ID, domain.Audience{}, 1)

	now := time.Now().UTC()
	require.NoError(t, repo.MarkSending(ctx, b.ID, 1, now))
	require.NoError(t, NewParticipantRepo(pool).Delete(ctx, ada.ID))

	require.NoError(t, repo.RecordDelivery(ctx, domain.Delivery{BlastID: b.ID, ParticipantID: ada.ID, Email: ada.Email, Status: domain.DeliverySent, AttemptedAt: now}))

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Sent)

	deliveries, total, err := repo.ListDeliveries(ctx, b.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, deliveries, 1)
	assert.Equal(t, uuid.Nil, deliveries[0].ParticipantID)
	assert.Equal(t, ada.Email, deliveries[0].Email)
}

func TestBlastRepo_RecordDeliveryUnknownBlast(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewBlastRepo(pool)
	ada := createTestParticipant(t, pool, "Ada", "ada@example.com", nil)

	err := repo.RecordDelivery(context.Background(), domain.Delivery{BlastID: uuid.New(), ParticipantID: ada.ID, Email: ada.Email, Status: domain.DeliverySent, AttemptedAt: time.Now()})

	assert.ErrorIs(t, err, domain.ErrBlastNotFound)
}

func TestBlastRepo_ResendClearsFailures(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewBlastRepo(pool)
	ctx := context.Background()
	tmpl := createTestTemplate(t, pool)
	ada := createTestParticipant(t, pool, "Ada", "ada@example.com", nil)
	b := createTestBlast(t, repo, tmpl.ID, domain.Audience{}, 1)

	now := time.Now().UTC()
	require.NoError(t, repo.MarkSending(ctx, b.ID, 1, now))
	require.NoError(t, repo.RecordDelivery(ctx, domain.Delivery{BlastID: b.ID, ParticipantID: ada.ID, Email: ada.Email, Status: domain.DeliveryFailed, Error: "timeout", AttemptedAt: now}))
	require.NoError(t, repo.Finish(ctx, b.ID, domain.BlastFailed, "all deliveries failed", now))

	require.NoError(t, repo.MarkSending(ctx, b.ID, 1, now.Add(time.Minute)))

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Failed)
	assert.Empty(t, got.LastError)
	assert.Nil(t, got.FinishedAt)

	_, total, err := repo.ListDeliveries(ctx, b.ID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestBlastRepo_ListAndListByStatus(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewBlastRepo(pool)
	ctx := context.Background()
	tmpl := createTestTemplate(t, pool)

	first := createTestBlast(t, repo, tmpl.ID, domain.Audience{}, 0)
	second := createTestBlast(t, repo, tmpl.ID, domain.Audience{}, 0)
	require.NoError(t, repo.MarkSending(ctx, second.ID, 0, time.Now()))

	blasts, total, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, blasts, 2)

	sending, err := repo.ListByStatus(ctx, domain.BlastSending)
	require.NoError(t, err)
	require.Len(t, sending, 1)
	assert.Equal(t, second.ID, sending[0].ID)

	drafts, err := repo.ListByStatus(ctx, domain.BlastDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, first.ID, drafts[0].ID)
}
