package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramenko-d/durak/internal/models"
)

func TestAtomicCommitsOnSuccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id := uuid.New()

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.InsertUser(&models.User{ID: id, Email: "a@b.c"})
	})
	require.NoError(t, err)

	err = m.Atomic(ctx, func(tx Tx) error {
		u, err := tx.User(id)
		if err != nil {
			return err
		}
		assert.Equal(t, "a@b.c", u.Email)
		return nil
	})
	require.NoError(t, err)
}

func TestAtomicRollsBackOnError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id := uuid.New()
	boom := errors.New("boom")

	err := m.Atomic(ctx, func(tx Tx) error {
		if err := tx.InsertUser(&models.User{ID: id}); err != nil {
			return err
		}
		// The insert above must not survive the failure below.
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = m.Atomic(ctx, func(tx Tx) error {
		_, err := tx.User(id)
		return err
	})
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestRowsAreIsolatedBetweenTransactions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	lobbyID := uuid.New()

	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		return tx.InsertLobby(&models.Lobby{
			ID:        lobbyID,
			Name:      "original",
			Status:    models.LobbyWaiting,
			CreatedAt: time.Now().UTC(),
		})
	}))

	// Mutating a fetched row without UpdateLobby must not leak out.
	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		l, err := tx.Lobby(lobbyID)
		if err != nil {
			return err
		}
		l.Name = "scribbled"
		return nil
	}))

	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		l, err := tx.Lobby(lobbyID)
		if err != nil {
			return err
		}
		assert.Equal(t, "original", l.Name)
		return nil
	}))
}

func TestParticipantsSortedBySeat(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	lobbyID := uuid.New()

	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		for _, seat := range []int{2, 0, 1} {
			p := models.LobbyParticipant{
				LobbyID:  lobbyID,
				UserID:   uuid.New(),
				Seat:     seat,
				JoinedAt: time.Now().UTC(),
			}
			if err := tx.InsertParticipant(p); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		parts, err := tx.Participants(lobbyID)
		if err != nil {
			return err
		}
		require.Len(t, parts, 3)
		for i, p := range parts {
			assert.Equal(t, i, p.Seat)
		}
		return nil
	}))
}

func TestCardsOrderedByDealOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	gameID := uuid.New()

	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		for _, ord := range []int{5, 1, 3} {
			c := &models.CardAssignment{
				ID:        uuid.New(),
				GameID:    gameID,
				Card:      models.Card{Suit: models.SuitHearts, Rank: models.RankSix},
				Location:  models.LocationDeck,
				DealOrder: ord,
			}
			if err := tx.InsertCard(c); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, m.Atomic(ctx, func(tx Tx) error {
		cards, err := tx.CardsByGame(gameID)
		if err != nil {
			return err
		}
		require.Len(t, cards, 3)
		assert.Equal(t, []int{1, 3, 5}, []int{cards[0].DealOrder, cards[1].DealOrder, cards[2].DealOrder})
		return nil
	}))
}
