package app

import (
	"context"
	"testing"

	"crew/internal/model"
	"crew/internal/service"
	"crew/pkg/config"
	"crew/pkg/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	events []*model.HistoryEvent
}

func (p *capturePublisher) PublishHistory(event *model.HistoryEvent) error {
	p.events = append(p.events, event)
	return nil
}

func TestNewServices_SharesHistory(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewServices(db.NewTestDB(t), config.HierarchyConfig{MaxDepth: 8}, pub)
	ctx := context.Background()

	root, err := svc.Groups.Add(ctx, "actor", service.AddGroupRequest{Name: "Root"})
	require.NoError(t, err)

	user, err := svc.Users.Create(ctx, "actor", "U", "u@example.com")
	require.NoError(t, err)

	_, err = svc.Memberships.AddToGroup(ctx, "actor", service.AddMembershipRequest{UserID: user.ID, GroupID: root.ID})
	require.NoError(t, err)

	require.Len(t, pub.events, 3)
	assert.Equal(t, model.ActionCreateGroup, pub.events[0].Action)
	assert.Equal(t, model.ActionCreateUser, pub.events[1].Action)
	assert.Equal(t, model.ActionAddUserToGroup, pub.events[2].Action)

	events, err := svc.History.ListByGroup(ctx, root.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
