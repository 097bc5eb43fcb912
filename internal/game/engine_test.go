// internal/game/engine_test.go
package game

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramenko-d/durak/internal/cache"
	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// setupGame seats numPlayers users in a lobby, applies the settings patch
// and starts a game. Returned user IDs are in seat order.
func setupGame(t *testing.T, numPlayers int, patch map[string]interface{}) (*Engine, *store.Memory, *models.GameSession, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	engine := New(st, newTestLogger())

	users := make([]uuid.UUID, numPlayers)
	lobbyID := uuid.New()
	err := st.Atomic(ctx, func(tx store.Tx) error {
		for i := range users {
			users[i] = uuid.New()
			if err := tx.InsertUser(&models.User{ID: users[i], Username: "p", IsEphemeral: true}); err != nil {
				return err
			}
		}
		l := &models.Lobby{
			ID:         lobbyID,
			Name:       "table",
			HostUserID: users[0],
			MaxPlayers: 6,
			Status:     models.LobbyWaiting,
			CreatedAt:  time.Now().UTC(),
		}
		if err := tx.InsertLobby(l); err != nil {
			return err
		}
		settings := models.DefaultSettings(lobbyID)
		if patch != nil {
			if err := settings.Update(patch); err != nil {
				return err
			}
		}
		if err := tx.UpsertSettings(settings); err != nil {
			return err
		}
		for i, u := range users {
			p := models.LobbyParticipant{LobbyID: lobbyID, UserID: u, Seat: i, JoinedAt: time.Now().UTC()}
			if err := tx.InsertParticipant(p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	session, err := engine.StartGame(ctx, lobbyID)
	require.NoError(t, err)
	return engine, st, session, users
}

// setHands replaces the game's card assignments with fixed hands and deck
// pool so action tests are deterministic. Pool cards keep shuffle order.
func setHands(t *testing.T, st *store.Memory, gameID uuid.UUID, hands map[uuid.UUID][]models.Card, pool []models.Card) {
	t.Helper()
	err := st.Atomic(context.Background(), func(tx store.Tx) error {
		if err := tx.DeleteCardsByGame(gameID); err != nil {
			return err
		}
		order := 0
		for owner, cards := range hands {
			for _, c := range cards {
				if err := tx.InsertCard(&models.CardAssignment{
					ID: uuid.New(), GameID: gameID, Owner: owner,
					Card: c, Location: models.LocationHand, DealOrder: order,
				}); err != nil {
					return err
				}
				order++
			}
		}
		for _, c := range pool {
			if err := tx.InsertCard(&models.CardAssignment{
				ID: uuid.New(), GameID: gameID,
				Card: c, Location: models.LocationDeck, DealOrder: order,
			}); err != nil {
				return err
			}
			order++
		}
		return nil
	})
	require.NoError(t, err)
}

func setTrump(t *testing.T, st *store.Memory, gameID uuid.UUID, trump models.Suit) {
	t.Helper()
	err := st.Atomic(context.Background(), func(tx store.Tx) error {
		g, err := tx.Game(gameID)
		if err != nil {
			return err
		}
		g.TrumpSuit = trump
		return tx.UpdateGame(g)
	})
	require.NoError(t, err)
}

func currentTurnID(t *testing.T, e *Engine, gameID uuid.UUID) uuid.UUID {
	t.Helper()
	turn, _, err := e.CurrentTurn(context.Background(), gameID)
	require.NoError(t, err)
	return turn.ID
}

func handOf(t *testing.T, st *store.Memory, gameID, userID uuid.UUID) []models.Card {
	t.Helper()
	var hand []models.Card
	err := st.Atomic(context.Background(), func(tx store.Tx) error {
		cards, err := tx.CardsByGame(gameID)
		if err != nil {
			return err
		}
		for _, c := range cards {
			if c.Owner == userID && c.Location == models.LocationHand {
				hand = append(hand, c.Card)
			}
		}
		return nil
	})
	require.NoError(t, err)
	return hand
}

func playerOf(t *testing.T, st *store.Memory, gameID, userID uuid.UUID) *models.PlayerGameState {
	t.Helper()
	var p *models.PlayerGameState
	err := st.Atomic(context.Background(), func(tx store.Tx) error {
		var err error
		p, err = tx.PlayerState(gameID, userID)
		return err
	})
	require.NoError(t, err)
	return p
}

func TestStartGameDealsHands(t *testing.T) {
	_, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()

	assert.Equal(t, models.GameActive, session.Status)
	assert.Equal(t, 1, session.CurrentRound)
	assert.True(t, session.TrumpSuit.Valid())

	var cards []models.CardAssignment
	var round *models.Round
	err := st.Atomic(ctx, func(tx store.Tx) error {
		var err error
		if cards, err = tx.CardsByGame(session.ID); err != nil {
			return err
		}
		round, err = tx.ActiveRound(session.ID)
		return err
	})
	require.NoError(t, err)

	require.Len(t, cards, 36, "every card of the deck is assigned")
	assert.Len(t, handOf(t, st, session.ID, users[0]), 7)
	// The face-up trump goes to the last seat, so they start with 8 cards.
	assert.Len(t, handOf(t, st, session.ID, users[1]), 8)

	deck := 0
	var trumpCard models.CardAssignment
	for _, c := range cards {
		if c.Location == models.LocationDeck {
			deck++
		}
		if c.DealOrder == 35 {
			trumpCard = c
		}
	}
	assert.Equal(t, 21, deck)
	assert.Equal(t, session.TrumpSuit, trumpCard.Card.Suit, "trump suit comes from the last shuffled card")
	assert.Equal(t, users[1], trumpCard.Owner)

	require.NotNil(t, round.ExpectedAttacker)
	require.NotNil(t, round.ExpectedDefender)
	assert.Equal(t, users[0], *round.ExpectedAttacker, "lowest seat opens")
	assert.Equal(t, users[1], *round.ExpectedDefender)
}

func TestStartGameRejectsSoloLobby(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	engine := New(st, newTestLogger())

	lobbyID := uuid.New()
	host := uuid.New()
	err := st.Atomic(ctx, func(tx store.Tx) error {
		if err := tx.InsertUser(&models.User{ID: host, IsEphemeral: true}); err != nil {
			return err
		}
		if err := tx.InsertLobby(&models.Lobby{
			ID: lobbyID, HostUserID: host, MaxPlayers: 6,
			Status: models.LobbyWaiting, CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return tx.InsertParticipant(models.LobbyParticipant{LobbyID: lobbyID, UserID: host})
	})
	require.NoError(t, err)

	_, err = engine.StartGame(ctx, lobbyID)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestAttackAndDefendResolvesTurn(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix), card(models.SuitClubs, models.RankNine)},
		defender: {card(models.SuitHearts, models.RankSeven), card(models.SuitClubs, models.RankTen)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))

	turn, draws, err := engine.CurrentTurn(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, attacker, turn.Attacker)
	assert.Equal(t, defender, turn.Defender)
	require.Len(t, draws, 1)
	assert.Equal(t, models.DrawPending, draws[0].Status)
	assert.Len(t, handOf(t, st, session.ID, attacker), 1, "attacking card left the hand")

	require.NoError(t, engine.Defend(ctx, session.ID, defender, turn.ID, card(models.SuitHearts, models.RankSeven)))

	// All draws beaten: the turn resolved and the table was discarded.
	_, _, err = engine.CurrentTurn(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	table, err := engine.TableCards(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, table)

	round, err := engine.CurrentRound(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, round.ExpectedAttacker)
	assert.Equal(t, defender, *round.ExpectedAttacker, "successful defender leads next")
}

func TestDefendRejectsWeakCard(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankTen)},
		defender: {card(models.SuitDiamonds, models.RankAce), card(models.SuitHearts, models.RankSix)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankTen), defender))
	turnID := currentTurnID(t, engine, session.ID)

	err := engine.Defend(ctx, session.ID, defender, turnID, card(models.SuitDiamonds, models.RankAce))
	assert.ErrorIs(t, err, ErrInvalidMove, "off-suit non-trump cannot beat")
	err = engine.Defend(ctx, session.ID, defender, turnID, card(models.SuitHearts, models.RankSix))
	assert.ErrorIs(t, err, ErrInvalidMove, "lower rank cannot beat")

	// Failed defenses leave the pending draw untouched.
	_, draws, err := engine.CurrentTurn(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, draws, 1)
	assert.Equal(t, models.DrawPending, draws[0].Status)
	assert.Len(t, handOf(t, st, session.ID, defender), 2)
}

func TestAdditionalAttackMustMatchTableRank(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {
			card(models.SuitHearts, models.RankSeven),
			card(models.SuitClubs, models.RankSeven),
			card(models.SuitClubs, models.RankEight),
		},
		defender: {card(models.SuitHearts, models.RankAce), card(models.SuitClubs, models.RankAce)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSeven), defender))

	err := engine.Attack(ctx, session.ID, attacker, card(models.SuitClubs, models.RankEight), defender)
	assert.ErrorIs(t, err, ErrInvalidMove, "eight is not on the table")

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitClubs, models.RankSeven), defender),
		"second seven piles on")

	_, draws, err := engine.CurrentTurn(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, draws, 2)
}

func TestAttackCardLimit(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, map[string]interface{}{"max_attack_cards": 1})
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSeven), card(models.SuitClubs, models.RankSeven)},
		defender: {card(models.SuitHearts, models.RankAce), card(models.SuitClubs, models.RankAce)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSeven), defender))
	err := engine.Attack(ctx, session.ID, attacker, card(models.SuitClubs, models.RankSeven), defender)
	assert.ErrorIs(t, err, ErrInvalidMove)
}

func TestTakeCardsMovesTableToDefender(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix), card(models.SuitClubs, models.RankNine)},
		defender: {card(models.SuitDiamonds, models.RankSeven), card(models.SuitClubs, models.RankTen)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
	turnID := currentTurnID(t, engine, session.ID)

	require.NoError(t, engine.TakeCards(ctx, session.ID, defender, turnID))

	assert.Len(t, handOf(t, st, session.ID, defender), 3, "defender picked up the table")
	assert.Len(t, handOf(t, st, session.ID, attacker), 1)

	round, err := engine.CurrentRound(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, round.ExpectedAttacker)
	assert.Equal(t, attacker, *round.ExpectedAttacker, "the taker forfeits the lead")
	assert.Equal(t, defender, *round.ExpectedDefender)
}

func TestTakeCardsDefenderOnly(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix), card(models.SuitClubs, models.RankNine)},
		defender: {card(models.SuitDiamonds, models.RankSeven)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
	turnID := currentTurnID(t, engine, session.ID)

	err := engine.TakeCards(ctx, session.ID, attacker, turnID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPassTurnFinalizesDefendedTurn(t *testing.T) {
	engine, st, session, users := setupGame(t, 3, nil)
	ctx := context.Background()
	attacker, defender, third := users[0], users[1], users[2]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix), card(models.SuitClubs, models.RankNine)},
		defender: {card(models.SuitHearts, models.RankSeven), card(models.SuitClubs, models.RankTen)},
		third:    {card(models.SuitDiamonds, models.RankSix), card(models.SuitDiamonds, models.RankSeven)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
	turnID := currentTurnID(t, engine, session.ID)

	// A defended turn stays open for more attacks until someone passes.
	// Defend here resolves immediately since no pending draw remains.
	require.NoError(t, engine.Defend(ctx, session.ID, defender, turnID, card(models.SuitHearts, models.RankSeven)))

	err := engine.PassTurn(ctx, session.ID, attacker)
	assert.ErrorIs(t, err, ErrIllegalState, "no active turn left to pass")
}

func TestPassTurnRejectedWhilePendingAttack(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix), card(models.SuitClubs, models.RankNine)},
		defender: {card(models.SuitHearts, models.RankSeven), card(models.SuitClubs, models.RankTen)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
	err := engine.PassTurn(ctx, session.ID, attacker)
	assert.ErrorIs(t, err, ErrInvalidMove)
}

func TestPendingMoveEnforcement(t *testing.T) {
	engine, st, session, users := setupGame(t, 3, map[string]interface{}{"anyone_can_attack": false})
	ctx := context.Background()
	attacker, defender, third := users[0], users[1], users[2]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix)},
		defender: {card(models.SuitHearts, models.RankSeven)},
		third:    {card(models.SuitDiamonds, models.RankSix)},
	}, []models.Card{card(models.SuitClubs, models.RankSix)})

	err := engine.Attack(ctx, session.ID, third, card(models.SuitDiamonds, models.RankSix), defender)
	assert.ErrorIs(t, err, ErrUnauthorized, "only the expected attacker may open")

	err = engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), third)
	assert.ErrorIs(t, err, ErrInvalidMove, "must attack the expected defender")

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
}

func TestRefillAfterResolvedTurn(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, map[string]interface{}{"starting_cards": 3})
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix), card(models.SuitClubs, models.RankNine)},
		defender: {card(models.SuitHearts, models.RankSeven), card(models.SuitClubs, models.RankTen)},
	}, []models.Card{
		card(models.SuitDiamonds, models.RankSix),
		card(models.SuitDiamonds, models.RankSeven),
		card(models.SuitDiamonds, models.RankEight),
		card(models.SuitDiamonds, models.RankNine),
	})

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
	turnID := currentTurnID(t, engine, session.ID)
	require.NoError(t, engine.Defend(ctx, session.ID, defender, turnID, card(models.SuitHearts, models.RankSeven)))

	// Both players drew back up to three cards; two pool cards remain.
	assert.Len(t, handOf(t, st, session.ID, attacker), 3)
	assert.Len(t, handOf(t, st, session.ID, defender), 3)
	snap, err := engine.GameState(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.DeckRemaining, "all four pool cards were drawn")
}

func TestRoundEndScoresLoserAndRedeals(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	// Deck exhausted. The attacker sheds their last card; the defender is
	// left holding and loses the round.
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix)},
		defender: {card(models.SuitDiamonds, models.RankSeven), card(models.SuitClubs, models.RankTen)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
	turnID := currentTurnID(t, engine, session.ID)
	require.NoError(t, engine.TakeCards(ctx, session.ID, defender, turnID))

	assert.Equal(t, FoolPenalty, playerOf(t, st, session.ID, defender).Points)
	assert.Equal(t, 0, playerOf(t, st, session.ID, attacker).Points)

	// A fresh round was dealt: full deck, both players active again.
	snap, err := engine.GameState(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Game.CurrentRound)
	assert.Equal(t, models.GameActive, snap.Game.Status)
	require.NotNil(t, snap.Round)
	assert.Equal(t, 2, snap.Round.Number)
	require.NotNil(t, snap.Round.ExpectedDefender)
	assert.Equal(t, defender, *snap.Round.ExpectedDefender, "the loser defends first next round")

	total := snap.DeckRemaining
	for _, p := range snap.Players {
		total += p.HandSize
		assert.Equal(t, models.PlayerActive, p.Status)
	}
	assert.Equal(t, 36, total, "redeal uses a full deck")
}

func TestPointsAccumulateAcrossRounds(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	// Exhaust the deck and make the defender take the attacker's last card,
	// so every round ends with the same loser.
	loseRound := func() {
		setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
			attacker: {card(models.SuitHearts, models.RankSix)},
			defender: {card(models.SuitDiamonds, models.RankSeven)},
		}, nil)
		require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
		turnID := currentTurnID(t, engine, session.ID)
		require.NoError(t, engine.TakeCards(ctx, session.ID, defender, turnID))
	}

	// At the default max_points of 15, two losses only accumulate.
	loseRound()
	assert.Equal(t, FoolPenalty, playerOf(t, st, session.ID, defender).Points)
	loseRound()
	assert.Equal(t, 2*FoolPenalty, playerOf(t, st, session.ID, defender).Points)

	snap, err := engine.GameState(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameActive, snap.Game.Status)
	assert.Equal(t, 3, snap.Game.CurrentRound, "redeal after every scored round")

	// The third loss reaches the threshold and ends the game.
	loseRound()
	snap, err = engine.GameState(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameFinished, snap.Game.Status)
	assert.Empty(t, snap.Players)
}

func TestGameEndsAtMaxPoints(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, map[string]interface{}{"max_points": 5})
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix)},
		defender: {card(models.SuitDiamonds, models.RankSeven)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
	turnID := currentTurnID(t, engine, session.ID)
	require.NoError(t, engine.TakeCards(ctx, session.ID, defender, turnID))

	err := st.Atomic(ctx, func(tx store.Tx) error {
		g, err := tx.Game(session.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, models.GameFinished, g.Status)
		assert.NotNil(t, g.FinishedAt)

		players, err := tx.PlayersByGame(session.ID)
		if err != nil {
			return err
		}
		assert.Empty(t, players, "per-game state is cleared when the game ends")

		l, err := tx.Lobby(g.LobbyID)
		if err != nil {
			return err
		}
		assert.Equal(t, models.LobbyFinished, l.Status)
		return nil
	})
	require.NoError(t, err)

	// No further actions are accepted.
	err = engine.PassTurn(ctx, session.ID, attacker)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestSingleRoundGameEndsImmediately(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, map[string]interface{}{"multi_round": false})
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix)},
		defender: {card(models.SuitDiamonds, models.RankSeven)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
	turnID := currentTurnID(t, engine, session.ID)
	require.NoError(t, engine.TakeCards(ctx, session.ID, defender, turnID))

	err := st.Atomic(ctx, func(tx store.Tx) error {
		g, err := tx.Game(session.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, models.GameFinished, g.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestDrawnRoundPenalizesNobody(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	// Last card against last card: beating it empties both hands at once.
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix)},
		defender: {card(models.SuitHearts, models.RankSeven)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
	turnID := currentTurnID(t, engine, session.ID)
	require.NoError(t, engine.Defend(ctx, session.ID, defender, turnID, card(models.SuitHearts, models.RankSeven)))

	assert.Equal(t, 0, playerOf(t, st, session.ID, attacker).Points)
	assert.Equal(t, 0, playerOf(t, st, session.ID, defender).Points)

	snap, err := engine.GameState(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Game.CurrentRound, "round numbering advances even on a draw")
}

func TestFailedActionLeavesNoTrace(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix)},
		defender: {card(models.SuitHearts, models.RankSeven)},
	}, []models.Card{card(models.SuitClubs, models.RankSix)})

	err := engine.Attack(ctx, session.ID, attacker, card(models.SuitClubs, models.RankAce), defender)
	assert.ErrorIs(t, err, ErrInvalidMove, "cannot play a card you do not hold")

	// Nothing moved and no turn was opened.
	_, _, err = engine.CurrentTurn(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, handOf(t, st, session.ID, attacker), 1)
}

func TestUnknownActorsRejected(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()

	setTrump(t, st, session.ID, models.SuitSpades)
	err := engine.Attack(ctx, session.ID, uuid.New(), card(models.SuitHearts, models.RankSix), users[1])
	assert.ErrorIs(t, err, ErrNotFound, "unknown user")

	bystander := uuid.New()
	require.NoError(t, st.Atomic(ctx, func(tx store.Tx) error {
		return tx.InsertUser(&models.User{ID: bystander, IsEphemeral: true})
	}))
	err = engine.Attack(ctx, session.ID, bystander, card(models.SuitHearts, models.RankSix), users[1])
	assert.ErrorIs(t, err, ErrUnauthorized, "user outside the game")
}

// fakeActionLog collects published records in place of the Redis queue.
type fakeActionLog struct {
	records []cache.ActionRecord
}

func (f *fakeActionLog) Publish(_ context.Context, rec cache.ActionRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func TestActionsArePublishedToActionLog(t *testing.T) {
	engine, st, session, users := setupGame(t, 2, nil)
	ctx := context.Background()
	attacker, defender := users[0], users[1]

	logSink := &fakeActionLog{}
	engine.SetActionLog(logSink)

	setTrump(t, st, session.ID, models.SuitSpades)
	setHands(t, st, session.ID, map[uuid.UUID][]models.Card{
		attacker: {card(models.SuitHearts, models.RankSix), card(models.SuitClubs, models.RankNine)},
		defender: {card(models.SuitHearts, models.RankSeven), card(models.SuitClubs, models.RankTen)},
	}, nil)

	require.NoError(t, engine.Attack(ctx, session.ID, attacker, card(models.SuitHearts, models.RankSix), defender))
	turnID := currentTurnID(t, engine, session.ID)
	require.NoError(t, engine.TakeCards(ctx, session.ID, defender, turnID))

	require.Len(t, logSink.records, 2)
	assert.Equal(t, "attack", logSink.records[0].ActionType)
	assert.Equal(t, attacker, logSink.records[0].ActorUserID)
	assert.Equal(t, "take_cards", logSink.records[1].ActionType)
	assert.Less(t, logSink.records[0].ActionIndex, logSink.records[1].ActionIndex)

	// A rejected action publishes nothing.
	err := engine.PassTurn(ctx, session.ID, uuid.New())
	require.Error(t, err)
	assert.Len(t, logSink.records, 2)
}

func TestCardConservationAcrossActions(t *testing.T) {
	engine, st, session, _ := setupGame(t, 3, nil)
	ctx := context.Background()

	countAll := func() int {
		n := 0
		err := st.Atomic(ctx, func(tx store.Tx) error {
			cards, err := tx.CardsByGame(session.ID)
			if err != nil {
				return err
			}
			seen := make(map[models.Card]bool)
			for _, c := range cards {
				require.False(t, seen[c.Card], "card %s duplicated", c.Card)
				seen[c.Card] = true
			}
			n = len(cards)
			return nil
		})
		require.NoError(t, err)
		return n
	}

	require.Equal(t, 36, countAll())

	// Play a few opening attacks from whoever holds a playable card.
	round, err := engine.CurrentRound(ctx, session.ID)
	require.NoError(t, err)
	attacker := *round.ExpectedAttacker
	defender := *round.ExpectedDefender
	hand := handOf(t, st, session.ID, attacker)
	require.NotEmpty(t, hand)
	require.NoError(t, engine.Attack(ctx, session.ID, attacker, hand[0], defender))
	require.Equal(t, 36, countAll())

	turnID := currentTurnID(t, engine, session.ID)
	require.NoError(t, engine.TakeCards(ctx, session.ID, defender, turnID))
	require.Equal(t, 36, countAll())
}
