// internal/game/queries.go
//
// Read-only views of a running game. Each query runs in its own store
// transaction so it observes a consistent snapshot.
package game

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

// PlayerView is the public per-player slice of a game snapshot. Hands are
// reported as counts only; cards are private to their holder.
type PlayerView struct {
	UserID   uuid.UUID           `json:"user_id"`
	Seat     int                 `json:"seat"`
	Status   models.PlayerStatus `json:"status"`
	Points   int                 `json:"points"`
	HandSize int                 `json:"hand_size"`
}

// Snapshot is everything a spectator may see about a game.
type Snapshot struct {
	Game          models.GameSession `json:"game"`
	Round         *models.Round      `json:"round,omitempty"`
	Turn          *models.Turn       `json:"turn,omitempty"`
	Draws         []models.Draw      `json:"draws,omitempty"`
	Players       []PlayerView       `json:"players"`
	DeckRemaining int                `json:"deck_remaining"`
}

// GameState assembles the public snapshot of a game: session, active
// round and turn (if any), the table, seats, scores and hand sizes.
func (e *Engine) GameState(ctx context.Context, gameID uuid.UUID) (*Snapshot, error) {
	var snap *Snapshot
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		g, err := tx.Game(gameID)
		if errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("game %s: %w", gameID, ErrNotFound)
		} else if err != nil {
			return err
		}

		cards, err := tx.CardsByGame(gameID)
		if err != nil {
			return err
		}
		all, err := tx.PlayersByGame(gameID)
		if err != nil {
			return err
		}

		s := &Snapshot{Game: *g, DeckRemaining: deckRemaining(cards)}
		for _, p := range all {
			s.Players = append(s.Players, PlayerView{
				UserID:   p.UserID,
				Seat:     p.Seat,
				Status:   p.Status,
				Points:   p.Points,
				HandSize: handSize(cards, p.UserID),
			})
		}

		round, err := tx.ActiveRound(gameID)
		if errors.Is(err, store.ErrNoRows) {
			snap = s
			return nil
		} else if err != nil {
			return err
		}
		s.Round = round

		turn, err := tx.ActiveTurn(round.ID)
		if errors.Is(err, store.ErrNoRows) {
			snap = s
			return nil
		} else if err != nil {
			return err
		}
		s.Turn = turn

		if s.Draws, err = tx.DrawsByTurn(turn.ID); err != nil {
			return err
		}
		snap = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// PlayerHand returns the cards currently held by the player, sorted by
// suit then rank for stable presentation.
func (e *Engine) PlayerHand(ctx context.Context, gameID, userID uuid.UUID) ([]models.Card, error) {
	var hand []models.Card
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		if _, err := activeGame(tx, gameID); err != nil {
			return err
		}
		if _, err := tx.PlayerState(gameID, userID); errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("%w: user %s is not in game %s", ErrUnauthorized, userID, gameID)
		} else if err != nil {
			return err
		}
		cards, err := tx.CardsByGame(gameID)
		if err != nil {
			return err
		}
		for _, c := range cards {
			if c.Owner == userID && c.Location == models.LocationHand {
				hand = append(hand, c.Card)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(hand, func(i, j int) bool {
		if hand[i].Suit != hand[j].Suit {
			return hand[i].Suit < hand[j].Suit
		}
		return hand[i].Rank < hand[j].Rank
	})
	return hand, nil
}

// CurrentRound returns the game's active round, or NotFound when none is
// running.
func (e *Engine) CurrentRound(ctx context.Context, gameID uuid.UUID) (*models.Round, error) {
	var round *models.Round
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		if _, err := tx.Game(gameID); errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("game %s: %w", gameID, ErrNotFound)
		} else if err != nil {
			return err
		}
		r, err := tx.ActiveRound(gameID)
		if errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("%w: game %s has no active round", ErrNotFound, gameID)
		} else if err != nil {
			return err
		}
		round = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

// CurrentTurn returns the active turn of the game's active round along
// with its draws.
func (e *Engine) CurrentTurn(ctx context.Context, gameID uuid.UUID) (*models.Turn, []models.Draw, error) {
	var (
		turn  *models.Turn
		draws []models.Draw
	)
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		round, err := tx.ActiveRound(gameID)
		if errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("%w: game %s has no active round", ErrNotFound, gameID)
		} else if err != nil {
			return err
		}
		t, err := tx.ActiveTurn(round.ID)
		if errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("%w: round %d has no active turn", ErrNotFound, round.Number)
		} else if err != nil {
			return err
		}
		turn = t
		draws, err = tx.DrawsByTurn(t.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return turn, draws, nil
}

// TableCards lists the cards currently face-up on the table.
func (e *Engine) TableCards(ctx context.Context, gameID uuid.UUID) ([]models.Card, error) {
	var table []models.Card
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		if _, err := tx.Game(gameID); errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("game %s: %w", gameID, ErrNotFound)
		} else if err != nil {
			return err
		}
		cards, err := tx.CardsByGame(gameID)
		if err != nil {
			return err
		}
		for _, c := range cards {
			if c.Location == models.LocationOnTable {
				table = append(table, c.Card)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}
