// internal/game/deck.go
package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

// BuildDeck returns the full card set for the given deck size in
// suit-major, rank-ascending order. Only the 36-card deck is playable;
// Extended52 is rejected rather than approximated.
func BuildDeck(size models.DeckSize) ([]models.Card, error) {
	switch size {
	case models.DeckStandard36:
	case models.DeckExtended52:
		return nil, ErrDeckSizeUnsupported
	default:
		return nil, fmt.Errorf("unknown deck size %q", size)
	}

	deck := make([]models.Card, 0, 36)
	for _, suit := range models.Suits {
		for rank := models.RankSix; rank <= models.RankAce; rank++ {
			deck = append(deck, models.Card{Suit: suit, Rank: rank})
		}
	}
	return deck, nil
}

// NewShuffleSeed draws a 64-bit seed from the OS entropy source. Seeds must
// not be predictable by players before cards are revealed, so wall-clock
// derived seeds are not acceptable here.
func NewShuffleSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("reading shuffle seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// ShuffleWithSeed permutes the deck in place with a Fisher-Yates pass driven
// by a PCG stream derived from seed. The same seed always yields the same
// permutation, which the tests rely on.
func ShuffleWithSeed(deck []models.Card, seed uint64) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := len(deck) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// Shuffle permutes the deck in place using a fresh unpredictable seed.
func Shuffle(deck []models.Card) error {
	seed, err := NewShuffleSeed()
	if err != nil {
		return err
	}
	ShuffleWithSeed(deck, seed)
	return nil
}

// dealCards writes the card assignments for a freshly shuffled deck: the
// first startingCards×N cards go to hands contiguously, startingCards per
// player in seat order; the remainder stays in the unowned deck pool in
// shuffle order. With trumpCardToPlayer set, the face-up trump (the last
// shuffled card) is relocated into the last-seated player's hand instead of
// entering the pool, so it has exactly one owner.
//
// DealOrder preserves the shuffle order; refills draw from the lowest
// remaining DealOrder, which makes the trump card the very last draw.
func dealCards(tx store.Tx, gameID uuid.UUID, deck []models.Card, players []models.PlayerGameState, settings models.GameSettings) error {
	need := settings.StartingCards * len(players)
	if need > len(deck) {
		return fmt.Errorf("%w: deck of %d cannot deal %d cards to %d players",
			ErrIllegalState, len(deck), settings.StartingCards, len(players))
	}

	idx := 0
	for _, p := range players {
		for n := 0; n < settings.StartingCards; n++ {
			if err := tx.InsertCard(&models.CardAssignment{
				ID:        uuid.New(),
				GameID:    gameID,
				Owner:     p.UserID,
				Card:      deck[idx],
				Location:  models.LocationHand,
				DealOrder: idx,
			}); err != nil {
				return err
			}
			idx++
		}
	}

	last := len(deck) - 1
	for ; idx < len(deck); idx++ {
		owner := uuid.Nil
		location := models.LocationDeck
		if settings.TrumpCardToPlayer && idx == last {
			// The trump card leaves the pool for the last-seated hand.
			owner = players[len(players)-1].UserID
			location = models.LocationHand
		}
		if err := tx.InsertCard(&models.CardAssignment{
			ID:        uuid.New(),
			GameID:    gameID,
			Owner:     owner,
			Card:      deck[idx],
			Location:  location,
			DealOrder: idx,
		}); err != nil {
			return err
		}
	}
	return nil
}
