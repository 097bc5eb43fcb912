// internal/game/actions.go
//
// The turn resolver: validates and applies attack/defend/take/pass actions.
// Every public method is one atomic transaction; validation completes in
// full before the first mutation, so a rejected action leaves no trace.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

// Attack plays a card against the target. The first attack of a move
// creates the turn; later attacks must match a rank already on the table
// and respect the attack-card limit and the anyone-can-attack setting.
func (e *Engine) Attack(ctx context.Context, gameID, actor uuid.UUID, card models.Card, target uuid.UUID) error {
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		return e.attack(tx, gameID, actor, card, target)
	})
	if err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"game_id": gameID, "actor": actor, "target": target, "card": card.String(),
	}).Info("attack")
	e.logAction(ctx, gameID, actor, "attack", map[string]interface{}{
		"card": card.String(), "target": target.String(),
	})
	return nil
}

func (e *Engine) attack(tx store.Tx, gameID, actor uuid.UUID, card models.Card, target uuid.UUID) error {
	g, err := activeGame(tx, gameID)
	if err != nil {
		return err
	}
	if _, err := activePlayer(tx, gameID, actor); err != nil {
		return err
	}
	if _, err := activePlayer(tx, gameID, target); err != nil {
		return err
	}
	if !card.Valid() {
		return fmt.Errorf("%w: %s is not a playable card", ErrInvalidMove, card)
	}

	round, err := tx.ActiveRound(gameID)
	if errors.Is(err, store.ErrNoRows) {
		return fmt.Errorf("%w: game %s has no active round", ErrIllegalState, gameID)
	} else if err != nil {
		return err
	}

	cards, err := tx.CardsByGame(gameID)
	if err != nil {
		return err
	}
	held, ok := findHandCard(cards, actor, card)
	if !ok {
		return fmt.Errorf("%w: you do not hold %s", ErrInvalidMove, card)
	}

	settings, err := settingsOrDefault(tx, g.LobbyID)
	if err != nil {
		return err
	}

	turn, err := tx.ActiveTurn(round.ID)
	switch {
	case err == nil:
		// Additional attack on the running turn.
		if turn.Defender != target {
			return fmt.Errorf("%w: can only attack the current defender", ErrInvalidMove)
		}
		draws, err := tx.DrawsByTurn(turn.ID)
		if err != nil {
			return err
		}
		if !rankOnTable(draws, card.Rank) {
			return fmt.Errorf("%w: rank %d is not on the table", ErrInvalidMove, card.Rank)
		}
		if settings.MaxAttackCards > 0 && len(draws) >= settings.MaxAttackCards {
			return fmt.Errorf("%w: attack limit of %d cards reached", ErrInvalidMove, settings.MaxAttackCards)
		}
		if !settings.AnyoneCanAttack && turn.Attacker != actor {
			return fmt.Errorf("%w: only the original attacker may add cards", ErrUnauthorized)
		}

	case errors.Is(err, store.ErrNoRows):
		// Opening attack creates the turn. With anyone_can_attack off the
		// pending move computed after the previous turn binds both roles.
		if !settings.AnyoneCanAttack {
			if round.ExpectedAttacker == nil || *round.ExpectedAttacker != actor {
				return fmt.Errorf("%w: it is not your turn to attack", ErrUnauthorized)
			}
			if round.ExpectedDefender == nil || *round.ExpectedDefender != target {
				return fmt.Errorf("%w: %s is not the expected defender", ErrInvalidMove, target)
			}
		}
		if actor == target {
			return fmt.Errorf("%w: cannot attack yourself", ErrInvalidMove)
		}
		turnCount, err := tx.TurnCount(round.ID)
		if err != nil {
			return err
		}
		turn = &models.Turn{
			ID:        uuid.New(),
			RoundID:   round.ID,
			Number:    turnCount + 1,
			Attacker:  actor,
			Defender:  target,
			Status:    models.TurnActive,
			StartedAt: time.Now().UTC(),
		}
		if err := tx.InsertTurn(turn); err != nil {
			return err
		}

	default:
		return err
	}

	draw := &models.Draw{
		ID:            uuid.New(),
		TurnID:        turn.ID,
		Attacker:      actor,
		AttackingCard: card,
		Status:        models.DrawPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.InsertDraw(draw); err != nil {
		return err
	}

	held.Location = models.LocationOnTable
	return tx.UpdateCard(&held)
}

// Defend beats the oldest pending attack with the given card. When the last
// pending draw is beaten the turn resolves as DefenderBeat: table cards are
// discarded, hands refill and the next move is computed.
func (e *Engine) Defend(ctx context.Context, gameID, actor, turnID uuid.UUID, card models.Card) error {
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		return e.defend(tx, gameID, actor, turnID, card)
	})
	if err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"game_id": gameID, "actor": actor, "card": card.String(),
	}).Info("defend")
	e.logAction(ctx, gameID, actor, "defend", map[string]interface{}{
		"card": card.String(), "turn_id": turnID.String(),
	})
	return nil
}

func (e *Engine) defend(tx store.Tx, gameID, actor, turnID uuid.UUID, card models.Card) error {
	g, err := activeGame(tx, gameID)
	if err != nil {
		return err
	}
	if _, err := activePlayer(tx, gameID, actor); err != nil {
		return err
	}

	turn, err := turnOfGame(tx, gameID, turnID)
	if err != nil {
		return err
	}
	if turn.Defender != actor {
		return fmt.Errorf("%w: you are not the defender of this turn", ErrUnauthorized)
	}
	if turn.Status != models.TurnActive {
		return fmt.Errorf("%w: turn %s is already resolved", ErrIllegalState, turnID)
	}
	if !card.Valid() {
		return fmt.Errorf("%w: %s is not a playable card", ErrInvalidMove, card)
	}

	cards, err := tx.CardsByGame(gameID)
	if err != nil {
		return err
	}
	held, ok := findHandCard(cards, actor, card)
	if !ok {
		return fmt.Errorf("%w: you do not hold %s", ErrInvalidMove, card)
	}

	draws, err := tx.DrawsByTurn(turn.ID)
	if err != nil {
		return err
	}
	var pending *models.Draw
	for i := range draws {
		if draws[i].Status == models.DrawPending {
			pending = &draws[i]
			break
		}
	}
	if pending == nil {
		return fmt.Errorf("%w: no attack to defend against", ErrInvalidMove)
	}
	if !CanBeat(pending.AttackingCard, card, g.TrumpSuit) {
		return fmt.Errorf("%w: %s cannot beat %s with trump %s",
			ErrInvalidMove, card, pending.AttackingCard, g.TrumpSuit)
	}

	defense := card
	pending.DefendingCard = &defense
	pending.Status = models.DrawBeaten
	if err := tx.UpdateDraw(pending); err != nil {
		return err
	}

	held.Location = models.LocationOnTable
	if err := tx.UpdateCard(&held); err != nil {
		return err
	}

	// pending points into draws, so the count already sees the beat.
	if countPending(draws) > 0 {
		return nil
	}
	// Every attack is beaten; the turn resolves in the defender's favor.
	return e.resolveDefenderBeat(tx, g, turn)
}

// TakeCards concedes the turn: the defender picks up every card on the
// table, all draws are marked taken and the next move skips the taker.
func (e *Engine) TakeCards(ctx context.Context, gameID, actor, turnID uuid.UUID) error {
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		return e.takeCards(tx, gameID, actor, turnID)
	})
	if err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"game_id": gameID, "actor": actor}).Info("defender took cards")
	e.logAction(ctx, gameID, actor, "take_cards", map[string]interface{}{
		"turn_id": turnID.String(),
	})
	return nil
}

func (e *Engine) takeCards(tx store.Tx, gameID, actor, turnID uuid.UUID) error {
	g, err := activeGame(tx, gameID)
	if err != nil {
		return err
	}
	if _, err := activePlayer(tx, gameID, actor); err != nil {
		return err
	}

	turn, err := turnOfGame(tx, gameID, turnID)
	if err != nil {
		return err
	}
	if turn.Defender != actor {
		return fmt.Errorf("%w: only the defender may take", ErrUnauthorized)
	}
	if turn.Status != models.TurnActive {
		return fmt.Errorf("%w: turn %s is already resolved", ErrIllegalState, turnID)
	}

	draws, err := tx.DrawsByTurn(turn.ID)
	if err != nil {
		return err
	}
	for i := range draws {
		draws[i].Status = models.DrawTaken
		if err := tx.UpdateDraw(&draws[i]); err != nil {
			return err
		}
	}

	cards, err := tx.CardsByGame(gameID)
	if err != nil {
		return err
	}
	for _, c := range cards {
		if c.Location != models.LocationOnTable {
			continue
		}
		c.Owner = actor
		c.Location = models.LocationHand
		if err := tx.UpdateCard(&c); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	turn.Status = models.TurnDefenderTook
	turn.FinishedAt = &now
	if err := tx.UpdateTurn(turn); err != nil {
		return err
	}

	return e.finishTurn(tx, g, turn)
}

// PassTurn declines to add more attack cards. With every draw beaten it
// finalizes the turn as DefenderBeat, so a defended turn cannot stall the
// round waiting for attacks that will never come.
func (e *Engine) PassTurn(ctx context.Context, gameID, actor uuid.UUID) error {
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		return e.passTurn(tx, gameID, actor)
	})
	if err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"game_id": gameID, "actor": actor}).Info("pass")
	e.logAction(ctx, gameID, actor, "pass_turn", nil)
	return nil
}

func (e *Engine) passTurn(tx store.Tx, gameID, actor uuid.UUID) error {
	g, err := activeGame(tx, gameID)
	if err != nil {
		return err
	}
	if _, err := activePlayer(tx, gameID, actor); err != nil {
		return err
	}

	round, err := tx.ActiveRound(gameID)
	if errors.Is(err, store.ErrNoRows) {
		return fmt.Errorf("%w: game %s has no active round", ErrIllegalState, gameID)
	} else if err != nil {
		return err
	}

	turn, err := tx.ActiveTurn(round.ID)
	if errors.Is(err, store.ErrNoRows) {
		return fmt.Errorf("%w: no active turn to pass", ErrIllegalState)
	} else if err != nil {
		return err
	}

	draws, err := tx.DrawsByTurn(turn.ID)
	if err != nil {
		return err
	}
	if countPending(draws) > 0 {
		return fmt.Errorf("%w: cannot pass while attacks are undefended", ErrInvalidMove)
	}

	settings, err := settingsOrDefault(tx, g.LobbyID)
	if err != nil {
		return err
	}
	if !settings.AnyoneCanAttack && turn.Attacker != actor {
		return fmt.Errorf("%w: only the attacker may pass", ErrUnauthorized)
	}

	return e.resolveDefenderBeat(tx, g, turn)
}

// turnOfGame loads a turn and verifies it belongs to the given game.
func turnOfGame(tx store.Tx, gameID, turnID uuid.UUID) (*models.Turn, error) {
	turn, err := tx.Turn(turnID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, fmt.Errorf("turn %s: %w", turnID, ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	round, err := tx.Round(turn.RoundID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, fmt.Errorf("round %s: %w", turn.RoundID, ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	if round.GameID != gameID {
		return nil, fmt.Errorf("turn %s: %w", turnID, ErrNotFound)
	}
	return turn, nil
}
