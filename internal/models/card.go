package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Suit is one of the four french suits.
type Suit string

const (
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
	SuitSpades   Suit = "spades"
)

// Suits lists every suit in deck-building order.
var Suits = []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

// Valid reports whether s is a known suit.
func (s Suit) Valid() bool {
	switch s {
	case SuitHearts, SuitDiamonds, SuitClubs, SuitSpades:
		return true
	}
	return false
}

// Rank is the numeric card rank. Six is lowest, Ace is highest;
// comparisons between ranks are plain integer comparisons.
type Rank int

const (
	RankSix   Rank = 6
	RankSeven Rank = 7
	RankEight Rank = 8
	RankNine  Rank = 9
	RankTen   Rank = 10
	RankJack  Rank = 11
	RankQueen Rank = 12
	RankKing  Rank = 13
	RankAce   Rank = 14
)

// Valid reports whether r is a playable rank (36-card deck).
func (r Rank) Valid() bool {
	return r >= RankSix && r <= RankAce
}

// Card is an immutable card value. Two cards are equal iff suit and rank match.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return fmt.Sprintf("%d of %s", c.Rank, c.Suit)
}

// Valid reports whether the card is part of the standard deck.
func (c Card) Valid() bool {
	return c.Suit.Valid() && c.Rank.Valid()
}

// CardLocation tracks where a physical card currently sits.
type CardLocation string

const (
	LocationHand      CardLocation = "hand"
	LocationDeck      CardLocation = "deck"
	LocationOnTable   CardLocation = "on_table"
	LocationDiscarded CardLocation = "discarded"
)

// CardAssignment maps one physical card of a game to its owner and location.
// There is exactly one assignment per card per game; cards are relocated by
// updating the assignment, never by inserting a second one.
//
// Owner is uuid.Nil while the card sits in the unowned deck pool. DealOrder
// preserves the shuffle order so deck draws are deterministic within a deal.
type CardAssignment struct {
	ID        uuid.UUID    `json:"id"`
	GameID    uuid.UUID    `json:"game_id"`
	Owner     uuid.UUID    `json:"owner"`
	Card      Card         `json:"card"`
	Location  CardLocation `json:"location"`
	DealOrder int          `json:"deal_order"`
}
