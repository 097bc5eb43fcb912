// internal/game/rotation.go
package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/avramenko-d/durak/internal/models"
)

// activeOnly filters a seat-sorted player list down to Active players,
// preserving seat order.
func activeOnly(players []models.PlayerGameState) []models.PlayerGameState {
	out := make([]models.PlayerGameState, 0, len(players))
	for _, p := range players {
		if p.Status == models.PlayerActive {
			out = append(out, p)
		}
	}
	return out
}

// nextClockwise returns the Active player seated clockwise after fromSeat.
// The list must be Active players sorted by seat. fromSeat itself does not
// have to belong to an Active player: after a defender is finished mid-round
// rotation continues from their empty seat.
func nextClockwise(active []models.PlayerGameState, fromSeat int) (models.PlayerGameState, error) {
	if len(active) < 2 {
		return models.PlayerGameState{}, fmt.Errorf("%w: fewer than 2 active players remain", ErrIllegalState)
	}
	for _, p := range active {
		if p.Seat > fromSeat {
			return p, nil
		}
	}
	// Wrap around the table.
	return active[0], nil
}

// seatOf returns the seat of the given player within the full player list.
func seatOf(players []models.PlayerGameState, userID uuid.UUID) (int, bool) {
	for _, p := range players {
		if p.UserID == userID {
			return p.Seat, true
		}
	}
	return 0, false
}

// nextMove computes the pending attacker/defender pair after a resolved
// turn. For a beaten turn the former defender leads; for a taken turn the
// taker is skipped and the player after them leads. In both cases the new
// defender sits clockwise from the new attacker.
func nextMove(active []models.PlayerGameState, all []models.PlayerGameState, turn *models.Turn) (attacker, defender models.PlayerGameState, err error) {
	defSeat, ok := seatOf(all, turn.Defender)
	if !ok {
		return attacker, defender, fmt.Errorf("defender %s: %w", turn.Defender, ErrNotFound)
	}

	switch turn.Status {
	case models.TurnDefenderBeat:
		// The defender leads next unless they finished this round.
		led := false
		for _, p := range active {
			if p.UserID == turn.Defender {
				attacker, led = p, true
				break
			}
		}
		if !led {
			attacker, err = nextClockwise(active, defSeat)
			if err != nil {
				return attacker, defender, err
			}
		}
	case models.TurnDefenderTook:
		// The taker forfeits their lead.
		attacker, err = nextClockwise(active, defSeat)
		if err != nil {
			return attacker, defender, err
		}
	default:
		return attacker, defender, fmt.Errorf("%w: turn %s is not resolved", ErrIllegalState, turn.ID)
	}

	defender, err = nextClockwise(active, attacker.Seat)
	return attacker, defender, err
}
