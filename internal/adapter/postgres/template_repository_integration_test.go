package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pscheid92/blastdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRepo_CreateHasNoECard(t *testing.T) {
	pool := setupTestDB(t)
	tmpl := createTestTemplate(t, pool)

	assert.Equal(t, "Welcome", tmpl.Name)
	assert.Nil(t, tmpl.ECard)
}

func TestTemplateRepo_ECardRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTemplateRepo(pool)
	ctx := context.Background()
	tmpl := createTestTemplate(t, pool)

	settings := domain.ECardSettings{
		Enabled: true,
		Name:    domain.TextPlacement{X: 10, Y: 20, FontSize: 30, Color: "#112233", Align: domain.AlignLeft},
		Role:    domain.TextPlacement{X: 40, Y: 50, FontSize: 12, Color: "#445566", Align: domain.AlignRight},
	}
	require.NoError(t, repo.UpdateECard(ctx, tmpl.ID, settings))
	require.NoError(t, repo.SetBackdrop(ctx, tmpl.ID, []byte{0x89, 'P', 'N', 'G'}, "image/png"))

	got, err := repo.Get(ctx, tmpl.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ECard)
	assert.True(t, got.ECard.Enabled)
	assert.Equal(t, settings.Name, got.ECard.Name)
	assert.Equal(t, settings.Role, got.ECard.Role)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got.ECard.Backdrop)
	assert.Equal(t, "image/png", got.ECard.BackdropType)

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].ECard)
	assert.True(t, listed[0].ECard.HasBackdrop())
	assert.Nil(t, listed[0].ECard.Backdrop, "list omits backdrop bytes")
}

func TestTemplateRepo_Update(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTemplateRepo(pool)
	ctx := context.Background()
	tmpl := createTestTemplate(t, pool)

	updated, err := repo.Update(ctx, tmpl.ID, domain.TemplateInput{Name: "Renamed", Subject: "S", BodyHTML: "B"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, !updated.UpdatedAt.Before(tmpl.UpdatedAt))

	_, err = repo.Update(ctx, uuid.New(), domain.TemplateInput{Name: "x", Subject: "y"})
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	assert.ErrorIs(t, repo.UpdateECard(ctx, uuid.New(), domain.ECardSettings{}), domain.ErrTemplateNotFound)
	assert.ErrorIs(t, repo.SetBackdrop(ctx, uuid.New(), nil, ""), domain.ErrTemplateNotFound)
}

func TestTemplateRepo_DeleteInUse(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTemplateRepo(pool)
	ctx := context.Background()
	tmpl := createTestTemplate(t, pool)

	_, err := NewBlastRepo(pool).Create(ctx, domain.BlastInput{TemplateID: tmpl.ID, Name: "Launch", Subject: "Hi"}, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Delete(ctx, tmpl.ID), domain.ErrTemplateInUse)
}

func TestTemplateRepo_Delete(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTemplateRepo(pool)
	ctx := context.Background()
	tmpl := createTestTemplate(t, pool)

	require.NoError(t, repo.Delete(ctx, tmpl.ID))
	assert.ErrorIs(t, repo.Delete(ctx, tmpl.ID), domain.ErrTemplateNotFound)
	_, err := repo.Get(ctx, tmpl.ID)
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}
