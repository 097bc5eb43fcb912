// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyStatus is the lifecycle state of a lobby.
type LobbyStatus string

const (
	LobbyWaiting  LobbyStatus = "waiting"
	LobbyInGame   LobbyStatus = "in_game"
	LobbyFinished LobbyStatus = "finished"
)

// Lobby represents a row in the lobbies table. Settings for the game that
// will be started from it live in GameSettings, keyed by lobby id.
type Lobby struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	HostUserID uuid.UUID   `json:"host_user_id"`
	MaxPlayers int         `json:"max_players"`
	Status     LobbyStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// LobbyParticipant binds a user to a lobby with an assigned seat. Seats are
// 0..N-1 in join order and become the fixed seating of the game.
type LobbyParticipant struct {
	LobbyID  uuid.UUID `json:"lobby_id"`
	UserID   uuid.UUID `json:"user_id"`
	Seat     int       `json:"seat"`
	JoinedAt time.Time `json:"joined_at"`
}
