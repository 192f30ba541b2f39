package repository

import (
	"context"
	"testing"

	"crew/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRequestRepository_List(t *testing.T) {
	repo := NewUserRequestRepository(setup(t))
	ctx := context.Background()

	pending := &model.UserCreationRequest{Name: "Dan", Email: "dan@example.com", GroupID: "g", Status: model.UserRequestPending, RequestedByID: "actor"}
	denied := &model.UserCreationRequest{Name: "Eve", Email: "eve@example.com", GroupID: "g", Status: model.UserRequestDenied, RequestedByID: "actor"}
	require.NoError(t, repo.Create(ctx, pending))
	require.NoError(t, repo.Create(ctx, denied))

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyPending, err := repo.List(ctx, model.UserRequestPending)
	require.NoError(t, err)
	require.Len(t, onlyPending, 1)
	assert.Equal(t, pending.ID, onlyPending[0].ID)

	pending.Status = model.UserRequestApproved
	require.NoError(t, repo.Save(ctx, pending))
	found, err := repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserRequestApproved, found.Status)

	missing, err := repo.FindByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
