package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meetwin/AI-Lecturer/internal/apierr"
	"github.com/Meetwin/AI-Lecturer/internal/store"
)

func seedUsers(t *testing.T, s *store.MemoryStore, users ...store.User) {
	t.Helper()
	for _, u := range users {
		_, err := s.UpsertUser(context.Background(), u)
		require.NoError(t, err)
	}
}

func TestInviteAndAcceptIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(0)
	seedUsers(t, s,
		store.User{ID: "owner@x.io", Email: "owner@x.io", Name: "Olive"},
		store.User{ID: "guest@x.io", Email: "guest@x.io", Name: "Gus"},
	)
	svc := NewGroupService(s, nil)

	group, err := svc.CreateGroup(ctx, "Physics 101", "owner@x.io")
	require.NoError(t, err)
	assert.Equal(t, []string{"owner@x.io"}, group.Members)

	n, err := svc.Invite(ctx, group.ID, "guest@x.io", "owner@x.io")
	require.NoError(t, err)
	assert.Equal(t, store.NotificationGroupInvite, n.Type)
	assert.Equal(t, `Olive invited you to join "Physics 101"`, n.Message)
	assert.Equal(t, group.ID, n.Data["groupId"])
	assert.False(t, n.Read)

	joined, err := svc.AcceptInvite(ctx, n.ID, "guest@x.io")
	require.NoError(t, err)
	assert.Equal(t, []string{"owner@x.io", "guest@x.io"}, joined.Members)

	again, err := svc.AcceptInvite(ctx, n.ID, "guest@x.io")
	require.NoError(t, err)
	assert.Equal(t, joined.Members, again.Members)

	list, err := svc.Notifications(ctx, "guest@x.io")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}

func TestInviteFromUnknownInviter(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(0)
	seedUsers(t, s, store.User{ID: "a@x.io", Email: "a@x.io"}, store.User{ID: "b@x.io", Email: "b@x.io"})
	svc := NewGroupService(s, nil)
	group, err := svc.CreateGroup(ctx, "Chem", "a@x.io")
	require.NoError(t, err)

	n, err := svc.Invite(ctx, group.ID, "b@x.io", "ghost@x.io")
	require.NoError(t, err)
	assert.Equal(t, `Someone invited you to join "Chem"`, n.Message)
}

func TestInviteErrors(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(0)
	seedUsers(t, s, store.User{ID: "a@x.io", Email: "a@x.io"})
	svc := NewGroupService(s, nil)
	group, err := svc.CreateGroup(ctx, "Bio", "a@x.io")
	require.NoError(t, err)

	_, err = svc.Invite(ctx, "nope", "a@x.io", "")
	assert.True(t, apierr.IsNotFound(err))

	_, err = svc.Invite(ctx, group.ID, "missing@x.io", "")
	assert.True(t, apierr.IsNotFound(err))

	_, err = svc.Invite(ctx, "", "", "")
	assert.Equal(t, 400, apierr.From(err).Status)

	_, err = svc.AcceptInvite(ctx, "unknown", "a@x.io")
	assert.True(t, apierr.IsNotFound(err))

	_, err = svc.CreateGroup(ctx, "Orphans", "nobody@x.io")
	assert.True(t, apierr.IsNotFound(err))

	_, err = svc.Group(ctx, "nope")
	assert.True(t, apierr.IsNotFound(err))
}

func TestNotificationsNewestFirstAndMarkRead(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(0)
	seedUsers(t, s, store.User{ID: "a@x.io", Email: "a@x.io"}, store.User{ID: "b@x.io", Email: "b@x.io"})
	svc := NewGroupService(s, nil)
	group, err := svc.CreateGroup(ctx, "Math", "a@x.io")
	require.NoError(t, err)

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for _, offset := range []time.Duration{time.Hour, 0, 2 * time.Hour} {
		svc.now = func() time.Time { return base.Add(offset) }
		n, err := svc.Invite(ctx, group.ID, "b@x.io", "a@x.io")
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	list, err := svc.Notifications(ctx, "b@x.io")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{ids[2], ids[0], ids[1]}, []string{list[0].ID, list[1].ID, list[2].ID})

	n, err := svc.MarkRead(ctx, "b@x.io", ids[1])
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.True(t, n.Read)

	n, err = svc.MarkRead(ctx, "b@x.io", "missing")
	require.NoError(t, err)
	assert.Nil(t, n)

	empty, err := svc.Notifications(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
