// internal/game/errors.go
package game

import "errors"

// Error kinds returned by engine entry points. Callers discriminate with
// errors.Is; every error carries wrapped context about what was violated.
var (
	// ErrNotFound indicates a missing game, round, turn, draw or user.
	ErrNotFound = errors.New("not found")

	// ErrIllegalState indicates the game or turn is not in a state that
	// permits the action (game finished, no active round, too few players).
	ErrIllegalState = errors.New("illegal state")

	// ErrUnauthorized indicates the actor exists but holds the wrong role or
	// seat for the action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidMove indicates the action itself is illegal: card not held,
	// rank not on the table, defense too weak, attack limit reached.
	ErrInvalidMove = errors.New("invalid move")
)

// ErrDeckSizeUnsupported is returned when a game is started with the
// extended 52-card deck, which is a declared but unimplemented option.
var ErrDeckSizeUnsupported = errors.New("extended 52-card deck is not implemented")
