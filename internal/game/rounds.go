// internal/game/rounds.go
//
// Turn resolution and round lifecycle: discarding or handing over the
// table, refilling hands from the deck pool, detecting round end and
// advancing the pending move.
package game

import (
	"fmt"
	"sort"
	"time"

	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

// resolveDefenderBeat finalizes an active turn in the defender's favor:
// every table card goes to the discard pile and the turn is closed before
// the common post-turn bookkeeping runs.
func (e *Engine) resolveDefenderBeat(tx store.Tx, g *models.GameSession, turn *models.Turn) error {
	cards, err := tx.CardsByGame(g.ID)
	if err != nil {
		return err
	}
	for _, c := range cards {
		if c.Location != models.LocationOnTable {
			continue
		}
		c.Location = models.LocationDiscarded
		if err := tx.UpdateCard(&c); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	turn.Status = models.TurnDefenderBeat
	turn.FinishedAt = &now
	if err := tx.UpdateTurn(turn); err != nil {
		return err
	}

	return e.finishTurn(tx, g, turn)
}

// finishTurn runs the bookkeeping shared by both turn outcomes: refill
// hands clockwise starting from the next leader, retire players who ran
// out of cards, and either score the round or record who moves next.
func (e *Engine) finishTurn(tx store.Tx, g *models.GameSession, turn *models.Turn) error {
	round, err := tx.Round(turn.RoundID)
	if err != nil {
		return err
	}
	settings, err := settingsOrDefault(tx, g.LobbyID)
	if err != nil {
		return err
	}

	all, err := tx.PlayersByGame(g.ID)
	if err != nil {
		return err
	}
	startSeat, ok := seatOf(all, turn.Defender)
	if !ok {
		return fmt.Errorf("defender %s: %w", turn.Defender, ErrNotFound)
	}
	if turn.Status == models.TurnDefenderTook {
		// The taker already picked up the table and never refills first.
		next, err := nextClockwise(activeOnly(all), startSeat)
		if err != nil {
			return err
		}
		startSeat = next.Seat
	}

	if err := refillHands(tx, g, settings, startSeat); err != nil {
		return err
	}

	ended, err := e.checkRoundEnd(tx, g, round)
	if err != nil || ended {
		return err
	}

	// Round continues: pin down who attacks and defends next.
	all, err = tx.PlayersByGame(g.ID)
	if err != nil {
		return err
	}
	attacker, defender, err := nextMove(activeOnly(all), all, turn)
	if err != nil {
		return err
	}
	round.ExpectedAttacker = &attacker.UserID
	round.ExpectedDefender = &defender.UserID
	return tx.UpdateRound(round)
}

// refillHands tops hands back up to the starting hand size, drawing from
// the pool in deal order so the face-up trump is the last card anyone
// draws. Players refill clockwise starting from startSeat.
func refillHands(tx store.Tx, g *models.GameSession, settings models.GameSettings, startSeat int) error {
	cards, err := tx.CardsByGame(g.ID)
	if err != nil {
		return err
	}
	pool := make([]models.CardAssignment, 0, len(cards))
	for _, c := range cards {
		if c.Location == models.LocationDeck {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].DealOrder < pool[j].DealOrder })

	all, err := tx.PlayersByGame(g.ID)
	if err != nil {
		return err
	}
	active := activeOnly(all)
	if len(active) == 0 {
		return nil
	}

	// Rotate the seat-ordered active list so refilling begins at startSeat.
	first := 0
	for i, p := range active {
		if p.Seat >= startSeat {
			first = i
			break
		}
	}

	for i := 0; i < len(active) && len(pool) > 0; i++ {
		p := active[(first+i)%len(active)]
		short := settings.StartingCards - handSize(cards, p.UserID)
		for ; short > 0 && len(pool) > 0; short-- {
			drawn := pool[0]
			pool = pool[1:]
			drawn.Owner = p.UserID
			drawn.Location = models.LocationHand
			if err := tx.UpdateCard(&drawn); err != nil {
				return err
			}
			for j := range cards {
				if cards[j].ID == drawn.ID {
					cards[j] = drawn
				}
			}
		}
	}
	return nil
}

// checkRoundEnd retires players who emptied their hand after the deck ran
// out, and closes the round once at most one card-holding player remains.
// That last holder is the round's loser; no holder at all means the round
// is drawn and nobody is penalized.
func (e *Engine) checkRoundEnd(tx store.Tx, g *models.GameSession, round *models.Round) (bool, error) {
	cards, err := tx.CardsByGame(g.ID)
	if err != nil {
		return false, err
	}
	if deckRemaining(cards) > 0 {
		return false, nil
	}

	all, err := tx.PlayersByGame(g.ID)
	if err != nil {
		return false, err
	}
	remaining := make([]models.PlayerGameState, 0, len(all))
	for i := range all {
		p := &all[i]
		if p.Status != models.PlayerActive {
			continue
		}
		if handSize(cards, p.UserID) == 0 {
			p.Status = models.PlayerFinished
			if err := tx.UpdatePlayerState(p); err != nil {
				return false, err
			}
			continue
		}
		remaining = append(remaining, *p)
	}
	if len(remaining) > 1 {
		return false, nil
	}

	var loser *models.PlayerGameState
	if len(remaining) == 1 {
		loser = &remaining[0]
	}
	return true, e.scoreRound(tx, g, round, loser)
}
