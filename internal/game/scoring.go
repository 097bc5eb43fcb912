// internal/game/scoring.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

// FoolPenalty is added to the score of the player left holding cards when
// a round ends.
const FoolPenalty = 5

// scoreRound closes the round, penalizes the loser if there is one, and
// either deals the next round or ends the game. A nil loser means the
// round was drawn: nobody scores, but the game still moves on.
func (e *Engine) scoreRound(tx store.Tx, g *models.GameSession, round *models.Round, loser *models.PlayerGameState) error {
	now := time.Now().UTC()
	round.Status = models.RoundFinished
	round.FinishedAt = &now
	if loser != nil {
		id := loser.UserID
		round.Loser = &id
	}
	if err := tx.UpdateRound(round); err != nil {
		return err
	}

	if loser != nil {
		loser.Points += FoolPenalty
		if err := tx.UpdatePlayerState(loser); err != nil {
			return err
		}
	}

	settings, err := settingsOrDefault(tx, g.LobbyID)
	if err != nil {
		return err
	}
	fool := loser != nil && loser.Points >= settings.MaxPoints

	if fool || !settings.MultiRound {
		return e.finishGame(tx, g, round, loser)
	}
	return e.startNewRound(tx, g, round, loser, settings)
}

// startNewRound reshuffles a fresh deck and deals the next round. Seats
// never change; the trump suit is re-drawn from the new deal, and the
// previous round's loser defends first against the player on their left.
func (e *Engine) startNewRound(tx store.Tx, g *models.GameSession, prev *models.Round, loser *models.PlayerGameState, settings models.GameSettings) error {
	all, err := tx.PlayersByGame(g.ID)
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].Status == models.PlayerFinished {
			all[i].Status = models.PlayerActive
			if err := tx.UpdatePlayerState(&all[i]); err != nil {
				return err
			}
		}
	}

	if err := tx.DeleteCardsByGame(g.ID); err != nil {
		return err
	}
	deck, err := BuildDeck(settings.DeckSize)
	if err != nil {
		return err
	}
	if err := Shuffle(deck); err != nil {
		return err
	}
	g.TrumpSuit = deck[len(deck)-1].Suit
	active := activeOnly(all)
	if err := dealCards(tx, g.ID, deck, active, settings); err != nil {
		return err
	}

	// The loser opens defense: the player clockwise from them attacks
	// first. A drawn round falls back to the lowest seat.
	attacker := active[0]
	if loser != nil {
		if seat, ok := seatOf(all, loser.UserID); ok {
			if attacker, err = nextClockwise(active, seat); err != nil {
				return err
			}
		}
	}
	defender, err := nextClockwise(active, attacker.Seat)
	if err != nil {
		return err
	}

	g.CurrentRound++
	if err := tx.UpdateGame(g); err != nil {
		return err
	}

	round := &models.Round{
		ID:               uuid.New(),
		GameID:           g.ID,
		Number:           prev.Number + 1,
		Status:           models.RoundActive,
		ExpectedAttacker: &attacker.UserID,
		ExpectedDefender: &defender.UserID,
		StartedAt:        time.Now().UTC(),
	}
	if err := tx.InsertRound(round); err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"game_id": g.ID,
		"round":   round.Number,
	}).Info("round started")
	return nil
}

// finishGame ends the session: the game and its lobby are marked finished
// and the per-game player rows are removed. Final scores live on in the
// action log written by the historian.
func (e *Engine) finishGame(tx store.Tx, g *models.GameSession, round *models.Round, loser *models.PlayerGameState) error {
	now := time.Now().UTC()
	g.Status = models.GameFinished
	g.FinishedAt = &now
	if err := tx.UpdateGame(g); err != nil {
		return err
	}

	if err := tx.DeletePlayersByGame(g.ID); err != nil {
		return err
	}

	lobby, err := tx.Lobby(g.LobbyID)
	if err != nil {
		return err
	}
	lobby.Status = models.LobbyFinished
	if err := tx.UpdateLobby(lobby); err != nil {
		return err
	}

	fields := logrus.Fields{"game_id": g.ID, "rounds": round.Number}
	if loser != nil {
		fields["fool"] = loser.UserID
	}
	e.log.WithFields(fields).Info("game finished")
	return nil
}
