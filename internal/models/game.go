package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is the lifecycle state of a game session.
type GameStatus string

const (
	GameActive   GameStatus = "active"
	GameFinished GameStatus = "finished"
	// GameAbandoned is set by the historian when a game goes idle.
	GameAbandoned GameStatus = "abandoned"
)

// GameSession is one running game spawned from a lobby. TrumpSuit tracks
// the current deal; it is re-drawn whenever a new round is dealt.
type GameSession struct {
	ID           uuid.UUID  `json:"id"`
	LobbyID      uuid.UUID  `json:"lobby_id"`
	Status       GameStatus `json:"status"`
	TrumpSuit    Suit       `json:"trump_suit"`
	CurrentRound int        `json:"current_round"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// RoundStatus is the lifecycle state of a round.
type RoundStatus string

const (
	RoundActive   RoundStatus = "active"
	RoundFinished RoundStatus = "finished"
)

// Round is a sequence of turns from a fresh deal until at most one player
// still holds cards. ExpectedAttacker/ExpectedDefender record who may open
// the next turn; no Turn row exists until that player actually attacks.
type Round struct {
	ID               uuid.UUID   `json:"id"`
	GameID           uuid.UUID   `json:"game_id"`
	Number           int         `json:"number"`
	Status           RoundStatus `json:"status"`
	Loser            *uuid.UUID  `json:"loser,omitempty"`
	ExpectedAttacker *uuid.UUID  `json:"expected_attacker,omitempty"`
	ExpectedDefender *uuid.UUID  `json:"expected_defender,omitempty"`
	StartedAt        time.Time   `json:"started_at"`
	FinishedAt       *time.Time  `json:"finished_at,omitempty"`
}

// TurnStatus is the state machine of one attacker/defender exchange.
type TurnStatus string

const (
	TurnActive       TurnStatus = "active"
	TurnDefenderBeat TurnStatus = "defender_beat"
	TurnDefenderTook TurnStatus = "defender_took"
)

// Turn is one attacker/defender exchange of one or more draws. At most one
// Active turn exists per round; it is created lazily by the first attack.
type Turn struct {
	ID         uuid.UUID  `json:"id"`
	RoundID    uuid.UUID  `json:"round_id"`
	Number     int        `json:"number"`
	Attacker   uuid.UUID  `json:"attacker"`
	Defender   uuid.UUID  `json:"defender"`
	Status     TurnStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// DrawStatus is the state of one attack card within a turn.
type DrawStatus string

const (
	DrawPending DrawStatus = "pending"
	DrawBeaten  DrawStatus = "beaten"
	DrawTaken   DrawStatus = "taken"
)

// Draw pairs one attacking card with its optional defense. Draws are mutated
// once when defended or taken, never deleted.
type Draw struct {
	ID            uuid.UUID  `json:"id"`
	TurnID        uuid.UUID  `json:"turn_id"`
	Attacker      uuid.UUID  `json:"attacker"`
	AttackingCard Card       `json:"attacking_card"`
	DefendingCard *Card      `json:"defending_card,omitempty"`
	Status        DrawStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}
