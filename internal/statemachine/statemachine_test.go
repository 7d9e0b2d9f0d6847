package statemachine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/repos"
)

type fakeArticulumRepo struct {
	articulums map[uuid.UUID]*domain.Articulum

	transitionCalls []transitionCall
	rollbackCalls   []uuid.UUID
	rejectCalls     []uuid.UUID
}

type transitionCall struct {
	id       uuid.UUID
	from, to domain.ArticulumState
}

func newFakeArticulumRepo(id uuid.UUID, state domain.ArticulumState) *fakeArticulumRepo {
	return &fakeArticulumRepo{
		articulums: map[uuid.UUID]*domain.Articulum{id: {ID: id, State: state}},
	}
}

func (f *fakeArticulumRepo) Create(ctx context.Context, articulum string) (*domain.Articulum, error) {
	return nil, nil
}

func (f *fakeArticulumRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Articulum, error) {
	row, ok := f.articulums[id]
	if !ok {
		return nil, repos.ErrNoTaskAvailable
	}
	return row, nil
}

func (f *fakeArticulumRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.ArticulumState) error {
	f.transitionCalls = append(f.transitionCalls, transitionCall{id, from, to})
	row, ok := f.articulums[id]
	if !ok || row.State != from {
		return repos.ErrTransitionLost
	}
	row.State = to
	return nil
}

func (f *fakeArticulumRepo) ClaimForValidation(ctx context.Context) (*domain.Articulum, error) {
	return nil, repos.ErrNoTaskAvailable
}

func (f *fakeArticulumRepo) RollbackToCatalogParsed(ctx context.Context, id uuid.UUID) error {
	f.rollbackCalls = append(f.rollbackCalls, id)
	row, ok := f.articulums[id]
	if !ok || row.State != domain.StateValidating {
		return repos.ErrTransitionLost
	}
	row.State = domain.StateCatalogParsed
	return nil
}

func (f *fakeArticulumRepo) RejectByMinCount(ctx context.Context, id uuid.UUID) error {
	f.rejectCalls = append(f.rejectCalls, id)
	row, ok := f.articulums[id]
	if !ok || row.State != domain.StateValidating {
		return repos.ErrTransitionLost
	}
	row.State = domain.StateRejectedByMinCount
	return nil
}

func TestStateMachine_MarkValidated(t *testing.T) {
	id := uuid.New()
	repo := newFakeArticulumRepo(id, domain.StateValidating)
	sm := New(repo)

	require.NoError(t, sm.MarkValidated(context.Background(), id))
	assert.Equal(t, domain.StateValidated, repo.articulums[id].State)
}

func TestStateMachine_MarkValidated_WrongStateFails(t *testing.T) {
	id := uuid.New()
	repo := newFakeArticulumRepo(id, domain.StateNew)
	sm := New(repo)

	err := sm.MarkValidated(context.Background(), id)
	assert.Error(t, err)
	assert.Equal(t, domain.StateNew, repo.articulums[id].State)
}

func TestStateMachine_RejectByMinCount(t *testing.T) {
	id := uuid.New()
	repo := newFakeArticulumRepo(id, domain.StateValidating)
	sm := New(repo)

	require.NoError(t, sm.RejectByMinCount(context.Background(), id))
	assert.Equal(t, domain.StateRejectedByMinCount, repo.articulums[id].State)
	assert.Len(t, repo.rejectCalls, 1)
}

func TestStateMachine_RollbackToCatalogParsed(t *testing.T) {
	id := uuid.New()
	repo := newFakeArticulumRepo(id, domain.StateValidating)
	sm := New(repo)

	require.NoError(t, sm.RollbackToCatalogParsed(context.Background(), id))
	assert.Equal(t, domain.StateCatalogParsed, repo.articulums[id].State)
	assert.Len(t, repo.rollbackCalls, 1)
}

func TestStateMachine_WithEventBus_ReturnsSameInstance(t *testing.T) {
	sm := New(newFakeArticulumRepo(uuid.New(), domain.StateNew))
	assert.Same(t, sm, sm.WithEventBus(nil))
}
