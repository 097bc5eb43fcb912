package lobby

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramenko-d/durak/internal/game"
	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	st := store.NewMemory()
	engine := game.New(st, logger)
	return NewService(st, engine, logger), st
}

func newUser(t *testing.T, st *store.Memory) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := st.Atomic(context.Background(), func(tx store.Tx) error {
		return tx.InsertUser(&models.User{ID: id, IsEphemeral: true})
	})
	require.NoError(t, err)
	return id
}

func TestCreateLobbySeatsHost(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	host := newUser(t, st)

	l, err := svc.Create(ctx, host, "evening table", 4)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyWaiting, l.Status)
	assert.Equal(t, host, l.HostUserID)

	got, parts, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
	require.Len(t, parts, 1)
	assert.Equal(t, 0, parts[0].Seat)

	settings, err := svc.Settings(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, settings.StartingCards)
}

func TestJoinAssignsLowestFreeSeat(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	host := newUser(t, st)
	l, err := svc.Create(ctx, host, "", 0)
	require.NoError(t, err)

	a, b := newUser(t, st), newUser(t, st)
	require.NoError(t, svc.Join(ctx, l.ID, a))
	require.NoError(t, svc.Join(ctx, l.ID, b))

	// The first joiner leaves; the next joiner backfills seat 1.
	require.NoError(t, svc.Leave(ctx, l.ID, a))
	c := newUser(t, st)
	require.NoError(t, svc.Join(ctx, l.ID, c))

	_, parts, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	seats := map[uuid.UUID]int{}
	for _, p := range parts {
		seats[p.UserID] = p.Seat
	}
	assert.Equal(t, 0, seats[host])
	assert.Equal(t, 2, seats[b])
	assert.Equal(t, 1, seats[c])
}

func TestJoinRejectsDuplicatesAndFullLobby(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	host := newUser(t, st)
	l, err := svc.Create(ctx, host, "", 2)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Join(ctx, l.ID, host), game.ErrIllegalState)

	other := newUser(t, st)
	require.NoError(t, svc.Join(ctx, l.ID, other))

	third := newUser(t, st)
	assert.ErrorIs(t, svc.Join(ctx, l.ID, third), game.ErrIllegalState)
}

func TestLeaveHandsOffHostAndDeletesEmptyLobby(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	host := newUser(t, st)
	l, err := svc.Create(ctx, host, "", 0)
	require.NoError(t, err)

	other := newUser(t, st)
	require.NoError(t, svc.Join(ctx, l.ID, other))

	require.NoError(t, svc.Leave(ctx, l.ID, host))
	got, _, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, other, got.HostUserID, "hosting passes to the remaining player")

	require.NoError(t, svc.Leave(ctx, l.ID, other))
	_, _, err = svc.Get(ctx, l.ID)
	assert.ErrorIs(t, err, game.ErrNotFound, "empty lobby is removed")
}

func TestUpdateSettingsHostOnly(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	host := newUser(t, st)
	l, err := svc.Create(ctx, host, "", 0)
	require.NoError(t, err)

	other := newUser(t, st)
	require.NoError(t, svc.Join(ctx, l.ID, other))

	_, err = svc.UpdateSettings(ctx, l.ID, other, map[string]interface{}{"max_points": float64(20)})
	assert.ErrorIs(t, err, game.ErrUnauthorized)

	settings, err := svc.UpdateSettings(ctx, l.ID, host, map[string]interface{}{"max_points": float64(20)})
	require.NoError(t, err)
	assert.Equal(t, 20, settings.MaxPoints)

	_, err = svc.UpdateSettings(ctx, l.ID, host, map[string]interface{}{"max_points": float64(99)})
	assert.ErrorIs(t, err, game.ErrInvalidMove, "out-of-range values are rejected")
	settings, err = svc.Settings(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, settings.MaxPoints, "rejected patch left settings untouched")
}

func TestStartLaunchesGameAndLocksLobby(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	host := newUser(t, st)
	l, err := svc.Create(ctx, host, "", 0)
	require.NoError(t, err)
	other := newUser(t, st)
	require.NoError(t, svc.Join(ctx, l.ID, other))

	_, err = svc.Start(ctx, l.ID, other)
	assert.ErrorIs(t, err, game.ErrUnauthorized)
	got, _, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyWaiting, got.Status, "rejected start leaves the lobby untouched")

	session, err := svc.Start(ctx, l.ID, host)
	require.NoError(t, err)
	assert.Equal(t, models.GameActive, session.Status)

	got, _, err = svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyInGame, got.Status)

	assert.ErrorIs(t, svc.Join(ctx, l.ID, newUser(t, st)), game.ErrIllegalState,
		"no joining once the game started")
}
