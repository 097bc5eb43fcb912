// Package store defines the persistence collaborator the game engine runs
// against. The engine never locks anything itself: every incoming action is
// executed as one Atomic call, and the store guarantees the transaction is
// serializable with respect to every other action touching the same data.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/avramenko-d/durak/internal/models"
)

// ErrNoRows is returned by lookups that match nothing. Implementations map
// their native not-found conditions onto it so callers can use errors.Is.
var ErrNoRows = errors.New("store: no rows in result")

// Tx is a transactional view over every entity of the game data model.
// All reads and writes of a single player action go through one Tx; writes
// become visible to other transactions only if the enclosing Atomic call
// returns nil.
type Tx interface {
	// Game sessions.
	InsertGame(g *models.GameSession) error
	Game(id uuid.UUID) (*models.GameSession, error)
	UpdateGame(g *models.GameSession) error

	// Game settings, keyed by the owning lobby.
	UpsertSettings(s models.GameSettings) error
	SettingsByLobby(lobbyID uuid.UUID) (*models.GameSettings, error)

	// Lobbies and their participants.
	InsertLobby(l *models.Lobby) error
	Lobby(id uuid.UUID) (*models.Lobby, error)
	UpdateLobby(l *models.Lobby) error
	DeleteLobby(id uuid.UUID) error
	Lobbies() ([]models.Lobby, error)
	InsertParticipant(p models.LobbyParticipant) error
	DeleteParticipant(lobbyID, userID uuid.UUID) error
	Participants(lobbyID uuid.UUID) ([]models.LobbyParticipant, error)

	// Rounds.
	InsertRound(r *models.Round) error
	Round(id uuid.UUID) (*models.Round, error)
	UpdateRound(r *models.Round) error
	ActiveRound(gameID uuid.UUID) (*models.Round, error)

	// Turns.
	InsertTurn(t *models.Turn) error
	Turn(id uuid.UUID) (*models.Turn, error)
	UpdateTurn(t *models.Turn) error
	ActiveTurn(roundID uuid.UUID) (*models.Turn, error)
	TurnCount(roundID uuid.UUID) (int, error)

	// Draws.
	InsertDraw(d *models.Draw) error
	UpdateDraw(d *models.Draw) error
	DrawsByTurn(turnID uuid.UUID) ([]models.Draw, error)

	// Card assignments.
	InsertCard(c *models.CardAssignment) error
	UpdateCard(c *models.CardAssignment) error
	CardsByGame(gameID uuid.UUID) ([]models.CardAssignment, error)
	DeleteCardsByGame(gameID uuid.UUID) error

	// Per-game player state.
	InsertPlayerState(p *models.PlayerGameState) error
	PlayerState(gameID, userID uuid.UUID) (*models.PlayerGameState, error)
	UpdatePlayerState(p *models.PlayerGameState) error
	PlayersByGame(gameID uuid.UUID) ([]models.PlayerGameState, error)
	DeletePlayersByGame(gameID uuid.UUID) error

	// Users.
	InsertUser(u *models.User) error
	User(id uuid.UUID) (*models.User, error)
	UserByEmail(email string) (*models.User, error)
	UpdateUser(u *models.User) error
}

// Store hands out transactions.
type Store interface {
	// Atomic runs fn as one atomic, serializable transaction. If fn returns
	// an error the transaction leaves no trace.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}
