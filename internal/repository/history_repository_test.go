package repository

import (
	"context"
	"testing"
	"time"

	"crew/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRepository_ListNewestFirst(t *testing.T) {
	repo := NewHistoryRepository(setup(t))
	ctx := context.Background()

	groupID := "g1"
	userID := "u1"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ev := &model.HistoryEvent{
			ActingUserID: "actor",
			Action:       model.ActionEditGroup,
			GroupID:      &groupID,
			After:        model.Fields{"name": i},
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if i%2 == 0 {
			ev.UserID = &userID
		}
		require.NoError(t, repo.Create(ctx, ev))
	}

	page, err := repo.ListByGroup(ctx, groupID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, float64(4), page[0].After["name"])
	assert.Equal(t, float64(3), page[1].After["name"])

	page, err = repo.ListByGroup(ctx, groupID, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, float64(0), page[0].After["name"])
	assert.NotNil(t, page[0].Before, "empty before is stored as an empty object")

	byUser, err := repo.ListByUser(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byUser, 3)
}
