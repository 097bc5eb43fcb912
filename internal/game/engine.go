// internal/game/engine.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avramenko-d/durak/internal/cache"
	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

// ActionLogger receives a record of every applied game action. Publishing is
// best-effort: failures are logged, never surfaced to players.
type ActionLogger interface {
	Publish(ctx context.Context, rec cache.ActionRecord) error
}

// Engine is the rules engine. It holds no game state of its own: every
// action runs as one atomic transaction against the injected store, and the
// store serializes actions touching the same game.
type Engine struct {
	store   store.Store
	log     *logrus.Logger
	actions ActionLogger
	seq     atomic.Int64
}

// New builds an engine on top of the given store.
func New(st store.Store, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{store: st, log: logger}
}

// SetActionLog wires an action-log publisher (typically the Redis queue).
func (e *Engine) SetActionLog(l ActionLogger) {
	e.actions = l
}

// logAction publishes an applied action to the historian queue, if wired.
func (e *Engine) logAction(ctx context.Context, gameID, actor uuid.UUID, actionType string, payload map[string]interface{}) {
	if e.actions == nil {
		return
	}
	rec := cache.ActionRecord{
		GameID:        gameID,
		ActionIndex:   e.seq.Add(1),
		ActorUserID:   actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	if err := e.actions.Publish(ctx, rec); err != nil {
		e.log.WithError(err).WithField("game_id", gameID).Warn("failed to publish action record")
	}
}

// StartGame creates a game session from a waiting lobby with an already
// validated roster: builds and shuffles a fresh deck, fixes the trump suit,
// deals starting hands, opens round one and marks the lobby in-game.
func (e *Engine) StartGame(ctx context.Context, lobbyID uuid.UUID) (*models.GameSession, error) {
	return e.startGame(ctx, lobbyID, uuid.Nil)
}

// StartGameFor is StartGame on behalf of a user: the same transaction that
// launches the game verifies they still host the lobby, so a host handoff
// cannot slip in between check and start.
func (e *Engine) StartGameFor(ctx context.Context, lobbyID, hostID uuid.UUID) (*models.GameSession, error) {
	return e.startGame(ctx, lobbyID, hostID)
}

func (e *Engine) startGame(ctx context.Context, lobbyID, hostID uuid.UUID) (*models.GameSession, error) {
	var session *models.GameSession
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		lobby, err := tx.Lobby(lobbyID)
		if errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("lobby %s: %w", lobbyID, ErrNotFound)
		} else if err != nil {
			return err
		}
		if lobby.Status != models.LobbyWaiting {
			return fmt.Errorf("%w: lobby %s is not waiting", ErrIllegalState, lobbyID)
		}
		if hostID != uuid.Nil && lobby.HostUserID != hostID {
			return fmt.Errorf("%w: only the host may start the game", ErrUnauthorized)
		}

		parts, err := tx.Participants(lobbyID)
		if err != nil {
			return err
		}
		if len(parts) < 2 {
			return fmt.Errorf("%w: need at least 2 players to start", ErrIllegalState)
		}

		settings, err := settingsOrDefault(tx, lobbyID)
		if err != nil {
			return err
		}

		deck, err := BuildDeck(settings.DeckSize)
		if err != nil {
			return err
		}
		if err := Shuffle(deck); err != nil {
			return err
		}
		trump := deck[len(deck)-1].Suit

		now := time.Now().UTC()
		g := &models.GameSession{
			ID:           uuid.New(),
			LobbyID:      lobbyID,
			Status:       models.GameActive,
			TrumpSuit:    trump,
			CurrentRound: 1,
			StartedAt:    now,
		}
		if err := tx.InsertGame(g); err != nil {
			return err
		}

		// Seats are normalized to 0..N-1 in participant seat order and stay
		// fixed for the whole game.
		players := make([]models.PlayerGameState, len(parts))
		for i, p := range parts {
			players[i] = models.PlayerGameState{
				GameID: g.ID,
				UserID: p.UserID,
				Seat:   i,
				Status: models.PlayerActive,
			}
			if err := tx.InsertPlayerState(&players[i]); err != nil {
				return err
			}
		}

		if err := dealCards(tx, g.ID, deck, players, settings); err != nil {
			return err
		}

		// The lowest-seated player opens the first round.
		defender, err := nextClockwise(players, players[0].Seat)
		if err != nil {
			return err
		}
		round := &models.Round{
			ID:               uuid.New(),
			GameID:           g.ID,
			Number:           1,
			Status:           models.RoundActive,
			ExpectedAttacker: &players[0].UserID,
			ExpectedDefender: &defender.UserID,
			StartedAt:        now,
		}
		if err := tx.InsertRound(round); err != nil {
			return err
		}

		lobby.Status = models.LobbyInGame
		if err := tx.UpdateLobby(lobby); err != nil {
			return err
		}

		session = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"game_id":  session.ID,
		"lobby_id": lobbyID,
		"trump":    session.TrumpSuit,
	}).Info("game started")
	e.logAction(ctx, session.ID, uuid.Nil, "game_start", map[string]interface{}{
		"lobby_id": lobbyID.String(),
	})
	return session, nil
}

// settingsOrDefault loads the lobby's settings, falling back to the
// traditional defaults when none were ever saved.
func settingsOrDefault(tx store.Tx, lobbyID uuid.UUID) (models.GameSettings, error) {
	s, err := tx.SettingsByLobby(lobbyID)
	if errors.Is(err, store.ErrNoRows) {
		return models.DefaultSettings(lobbyID), nil
	}
	if err != nil {
		return models.GameSettings{}, err
	}
	return *s, nil
}

// activeGame loads a game and requires it to be running.
func activeGame(tx store.Tx, gameID uuid.UUID) (*models.GameSession, error) {
	g, err := tx.Game(gameID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	if g.Status != models.GameActive {
		return nil, fmt.Errorf("%w: game %s is not active", ErrIllegalState, gameID)
	}
	return g, nil
}

// activePlayer resolves a user and requires them to be an Active player of
// the game. A missing user is NotFound; a user outside the game or sitting
// out is Unauthorized.
func activePlayer(tx store.Tx, gameID, userID uuid.UUID) (*models.PlayerGameState, error) {
	if _, err := tx.User(userID); errors.Is(err, store.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	ps, err := tx.PlayerState(gameID, userID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s is not in game %s", ErrUnauthorized, userID, gameID)
	} else if err != nil {
		return nil, err
	}
	if ps.Status != models.PlayerActive {
		return nil, fmt.Errorf("%w: player %s is not active", ErrUnauthorized, userID)
	}
	return ps, nil
}

// findHandCard locates the assignment for a specific card in a player's hand.
func findHandCard(cards []models.CardAssignment, owner uuid.UUID, card models.Card) (models.CardAssignment, bool) {
	for _, c := range cards {
		if c.Owner == owner && c.Location == models.LocationHand && c.Card == card {
			return c, true
		}
	}
	return models.CardAssignment{}, false
}

// handSize counts cards currently held by the player.
func handSize(cards []models.CardAssignment, owner uuid.UUID) int {
	n := 0
	for _, c := range cards {
		if c.Owner == owner && c.Location == models.LocationHand {
			n++
		}
	}
	return n
}

// deckRemaining counts cards still in the unowned deck pool.
func deckRemaining(cards []models.CardAssignment) int {
	n := 0
	for _, c := range cards {
		if c.Location == models.LocationDeck {
			n++
		}
	}
	return n
}
