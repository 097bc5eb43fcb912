// internal/game/rules.go
package game

import "github.com/avramenko-d/durak/internal/models"

// CanBeat reports whether the defending card legally beats the attacking
// card under the given trump suit:
//
//	trump vs trump         -> higher rank wins
//	non-trump vs trump     -> trump always wins
//	trump vs non-trump     -> defense is invalid
//	non-trump vs non-trump -> same suit and higher rank
func CanBeat(attack, defense models.Card, trump models.Suit) bool {
	attackIsTrump := attack.Suit == trump
	defenseIsTrump := defense.Suit == trump

	switch {
	case attackIsTrump && defenseIsTrump:
		return defense.Rank > attack.Rank
	case !attackIsTrump && defenseIsTrump:
		return true
	case attackIsTrump && !defenseIsTrump:
		return false
	default:
		return defense.Suit == attack.Suit && defense.Rank > attack.Rank
	}
}

// rankOnTable reports whether the rank already appears among the turn's
// draws, on either the attacking or the defending side. Additional attack
// cards must match a rank already in play.
func rankOnTable(draws []models.Draw, rank models.Rank) bool {
	for _, d := range draws {
		if d.AttackingCard.Rank == rank {
			return true
		}
		if d.DefendingCard != nil && d.DefendingCard.Rank == rank {
			return true
		}
	}
	return false
}

// countPending returns the number of draws still waiting for a defense.
func countPending(draws []models.Draw) int {
	n := 0
	for _, d := range draws {
		if d.Status == models.DrawPending {
			n++
		}
	}
	return n
}
