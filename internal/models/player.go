package models

import "github.com/google/uuid"

// PlayerStatus is a player's standing within the current round.
type PlayerStatus string

const (
	PlayerActive PlayerStatus = "active"
	// PlayerLeft marks a player who quit the game early.
	PlayerLeft PlayerStatus = "left"
	// PlayerFinished marks a player who emptied their hand with the deck
	// exhausted; they sit out the remainder of the round.
	PlayerFinished PlayerStatus = "finished"
)

// PlayerGameState is a player's per-game record: fixed seat, round standing
// and accumulated penalty points. It exists only while the player is bound
// to a game and is deleted when the game finishes.
type PlayerGameState struct {
	GameID uuid.UUID    `json:"game_id"`
	UserID uuid.UUID    `json:"user_id"`
	Seat   int          `json:"seat"`
	Status PlayerStatus `json:"status"`
	Points int          `json:"points"`
}
