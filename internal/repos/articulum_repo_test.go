package repos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avitoscout/orchestrator/internal/domain"
)

func TestArticulumRepo_CreateAndGetByID(t *testing.T) {
	repo := NewArticulumRepo(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, "ART-123")
	require.NoError(t, err)
	assert.Equal(t, domain.StateNew, created.State)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ART-123", got.Articulum)
}

func TestArticulumRepo_Transition(t *testing.T) {
	repo := NewArticulumRepo(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, "ART-1")
	require.NoError(t, err)

	err = repo.Transition(ctx, created.ID, domain.StateNew, domain.StateCatalogParsing)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCatalogParsing, got.State)
}

func TestArticulumRepo_Transition_LosesRaceOnWrongFromState(t *testing.T) {
	repo := NewArticulumRepo(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, "ART-2")
	require.NoError(t, err)

	err = repo.Transition(ctx, created.ID, domain.StateCatalogParsed, domain.StateValidating)
	assert.ErrorIs(t, err, ErrTransitionLost)
}

func TestArticulumRepo_RejectByMinCount(t *testing.T) {
	repo := NewArticulumRepo(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, "ART-3")
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, created.ID, domain.StateNew, domain.StateValidating))

	require.NoError(t, repo.RejectByMinCount(ctx, created.ID))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateRejectedByMinCount, got.State)
}

func TestArticulumRepo_RollbackToCatalogParsed_DeletesValidationResults(t *testing.T) {
	db := newTestDB(t)
	repo := NewArticulumRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, "ART-4")
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, created.ID, domain.StateNew, domain.StateValidating))

	require.NoError(t, db.Create(&domain.ValidationResult{
		ArticulumID: created.ID,
		AvitoItemID: "item-1",
		Stage:       domain.StageMechanical,
		Passed:      true,
	}).Error)

	require.NoError(t, repo.RollbackToCatalogParsed(ctx, created.ID))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCatalogParsed, got.State)

	var count int64
	require.NoError(t, db.Model(&domain.ValidationResult{}).Where("articulum_id = ?", created.ID).Count(&count).Error)
	assert.Zero(t, count)
}
