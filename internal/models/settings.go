// internal/models/settings.go
package models

import (
	"fmt"

	"github.com/google/uuid"
)

// DeckSize selects the card set used for a game.
type DeckSize string

const (
	// DeckStandard36 is the traditional 36-card deck, Six through Ace.
	DeckStandard36 DeckSize = "standard36"
	// DeckExtended52 is a declared option for the full 52-card deck.
	// It is not implemented; BuildDeck rejects it.
	DeckExtended52 DeckSize = "extended52"
)

// GameSettings captures the final game-time configuration chosen in a lobby.
type GameSettings struct {
	LobbyID uuid.UUID `json:"lobby_id"`

	// DeckSize picks the card set. Only standard36 is playable.
	DeckSize DeckSize `json:"deck_size"`

	// StartingCards is the hand size dealt at the start of each round.
	StartingCards int `json:"starting_cards"`

	// MaxAttackCards caps the number of draws per turn. 0 means no limit.
	MaxAttackCards int `json:"max_attack_cards"`

	// MultiRound enables playing rounds until someone reaches MaxPoints.
	// When false the first round's loser loses the game outright.
	MultiRound bool `json:"multi_round"`

	// MaxPoints is the penalty threshold at which a player becomes the Fool.
	MaxPoints int `json:"max_points"`

	// AnyoneCanAttack lets any active player open or join an attack.
	// When false only the expected attacker may open and only the turn's
	// original attacker may add cards.
	AnyoneCanAttack bool `json:"anyone_can_attack"`

	// TrumpCardToPlayer moves the face-up trump card into the last-seated
	// player's hand at deal time instead of leaving it in the deck pool.
	TrumpCardToPlayer bool `json:"trump_card_to_player"`
}

// DefaultSettings returns the traditional Durak configuration for a lobby.
func DefaultSettings(lobbyID uuid.UUID) GameSettings {
	return GameSettings{
		LobbyID:           lobbyID,
		DeckSize:          DeckStandard36,
		StartingCards:     7,
		MaxAttackCards:    6,
		MultiRound:        true,
		MaxPoints:         15,
		AnyoneCanAttack:   true,
		TrumpCardToPlayer: true,
	}
}

// Update applies the fields present in newSettings onto s. Absent keys keep
// their old values. Types and ranges are validated; the first violation is
// returned and s is left partially updated, so callers should apply Update
// to a copy.
func (s *GameSettings) Update(newSettings map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := newSettings[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string) error {
		if val, exists := newSettings[key]; exists && val != nil {
			// JSON numbers arrive as float64.
			switch v := val.(type) {
			case float64:
				*field = int(v)
			case int:
				*field = v
			default:
				return fmt.Errorf("invalid type for %s", key)
			}
		}
		return nil
	}

	if val, exists := newSettings["deck_size"]; exists && val != nil {
		str, ok := val.(string)
		if !ok {
			return fmt.Errorf("invalid type for deck_size")
		}
		switch DeckSize(str) {
		case DeckStandard36, DeckExtended52:
			s.DeckSize = DeckSize(str)
		default:
			return fmt.Errorf("unknown deck_size %q", str)
		}
	}
	if err := assignInt(&s.StartingCards, "starting_cards"); err != nil {
		return err
	}
	if err := assignInt(&s.MaxAttackCards, "max_attack_cards"); err != nil {
		return err
	}
	if err := assignBool(&s.MultiRound, "multi_round"); err != nil {
		return err
	}
	if err := assignInt(&s.MaxPoints, "max_points"); err != nil {
		return err
	}
	if err := assignBool(&s.AnyoneCanAttack, "anyone_can_attack"); err != nil {
		return err
	}
	if err := assignBool(&s.TrumpCardToPlayer, "trump_card_to_player"); err != nil {
		return err
	}

	return s.Validate()
}

// Validate checks the configured ranges: starting cards 3..20, max points
// 5..50, max attack cards non-negative.
func (s *GameSettings) Validate() error {
	if s.StartingCards < 3 || s.StartingCards > 20 {
		return fmt.Errorf("starting_cards must be between 3 and 20")
	}
	if s.MaxPoints < 5 || s.MaxPoints > 50 {
		return fmt.Errorf("max_points must be between 5 and 50")
	}
	if s.MaxAttackCards < 0 {
		return fmt.Errorf("max_attack_cards must be non-negative")
	}
	return nil
}
