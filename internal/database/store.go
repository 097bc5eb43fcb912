// internal/database/store.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

// Store is the Postgres-backed store. Every Atomic call runs as one
// serializable pgx transaction, so concurrent actions against the same
// game either serialize or one of them retries at the caller.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an already connected pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Atomic implements store.Store.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	return pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		return fn(&pgTx{ctx: ctx, tx: tx})
	})
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func noRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNoRows
	}
	return err
}

func (t *pgTx) InsertGame(g *models.GameSession) error {
	q := `
		INSERT INTO games (id, lobby_id, status, trump_suit, current_round, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.Exec(t.ctx, q, g.ID, g.LobbyID, g.Status, g.TrumpSuit, g.CurrentRound, g.StartedAt, g.FinishedAt)
	return err
}

func (t *pgTx) Game(id uuid.UUID) (*models.GameSession, error) {
	q := `
		SELECT id, lobby_id, status, trump_suit, current_round, started_at, finished_at
		FROM games WHERE id = $1
	`
	var g models.GameSession
	err := t.tx.QueryRow(t.ctx, q, id).Scan(
		&g.ID, &g.LobbyID, &g.Status, &g.TrumpSuit, &g.CurrentRound, &g.StartedAt, &g.FinishedAt)
	if err != nil {
		return nil, noRows(err)
	}
	return &g, nil
}

func (t *pgTx) UpdateGame(g *models.GameSession) error {
	q := `
		UPDATE games
		SET status=$2, trump_suit=$3, current_round=$4, finished_at=$5
		WHERE id=$1
	`
	_, err := t.tx.Exec(t.ctx, q, g.ID, g.Status, g.TrumpSuit, g.CurrentRound, g.FinishedAt)
	return err
}

func (t *pgTx) UpsertSettings(s models.GameSettings) error {
	q := `
		INSERT INTO game_settings (lobby_id, deck_size, starting_cards, max_attack_cards,
			multi_round, max_points, anyone_can_attack, trump_card_to_player)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (lobby_id) DO UPDATE SET
			deck_size=$2, starting_cards=$3, max_attack_cards=$4,
			multi_round=$5, max_points=$6, anyone_can_attack=$7, trump_card_to_player=$8
	`
	_, err := t.tx.Exec(t.ctx, q, s.LobbyID, s.DeckSize, s.StartingCards, s.MaxAttackCards,
		s.MultiRound, s.MaxPoints, s.AnyoneCanAttack, s.TrumpCardToPlayer)
	return err
}

func (t *pgTx) SettingsByLobby(lobbyID uuid.UUID) (*models.GameSettings, error) {
	q := `
		SELECT lobby_id, deck_size, starting_cards, max_attack_cards,
			multi_round, max_points, anyone_can_attack, trump_card_to_player
		FROM game_settings WHERE lobby_id = $1
	`
	var s models.GameSettings
	err := t.tx.QueryRow(t.ctx, q, lobbyID).Scan(
		&s.LobbyID, &s.DeckSize, &s.StartingCards, &s.MaxAttackCards,
		&s.MultiRound, &s.MaxPoints, &s.AnyoneCanAttack, &s.TrumpCardToPlayer)
	if err != nil {
		return nil, noRows(err)
	}
	return &s, nil
}

func (t *pgTx) InsertLobby(l *models.Lobby) error {
	q := `
		INSERT INTO lobbies (id, name, host_user_id, max_players, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.tx.Exec(t.ctx, q, l.ID, l.Name, l.HostUserID, l.MaxPlayers, l.Status, l.CreatedAt)
	return err
}

func (t *pgTx) Lobby(id uuid.UUID) (*models.Lobby, error) {
	q := `
		SELECT id, name, host_user_id, max_players, status, created_at
		FROM lobbies WHERE id = $1
	`
	var l models.Lobby
	err := t.tx.QueryRow(t.ctx, q, id).Scan(
		&l.ID, &l.Name, &l.HostUserID, &l.MaxPlayers, &l.Status, &l.CreatedAt)
	if err != nil {
		return nil, noRows(err)
	}
	return &l, nil
}

func (t *pgTx) UpdateLobby(l *models.Lobby) error {
	q := `UPDATE lobbies SET name=$2, host_user_id=$3, max_players=$4, status=$5 WHERE id=$1`
	_, err := t.tx.Exec(t.ctx, q, l.ID, l.Name, l.HostUserID, l.MaxPlayers, l.Status)
	return err
}

func (t *pgTx) DeleteLobby(id uuid.UUID) error {
	_, err := t.tx.Exec(t.ctx, `DELETE FROM lobbies WHERE id=$1`, id)
	return err
}

func (t *pgTx) Lobbies() ([]models.Lobby, error) {
	q := `
		SELECT id, name, host_user_id, max_players, status, created_at
		FROM lobbies ORDER BY created_at
	`
	rows, err := t.tx.Query(t.ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lobby
	for rows.Next() {
		var l models.Lobby
		if err := rows.Scan(&l.ID, &l.Name, &l.HostUserID, &l.MaxPlayers, &l.Status, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertParticipant(p models.LobbyParticipant) error {
	q := `
		INSERT INTO lobby_participants (lobby_id, user_id, seat, joined_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := t.tx.Exec(t.ctx, q, p.LobbyID, p.UserID, p.Seat, p.JoinedAt)
	return err
}

func (t *pgTx) DeleteParticipant(lobbyID, userID uuid.UUID) error {
	_, err := t.tx.Exec(t.ctx,
		`DELETE FROM lobby_participants WHERE lobby_id=$1 AND user_id=$2`, lobbyID, userID)
	return err
}

func (t *pgTx) Participants(lobbyID uuid.UUID) ([]models.LobbyParticipant, error) {
	q := `
		SELECT lobby_id, user_id, seat, joined_at
		FROM lobby_participants WHERE lobby_id=$1 ORDER BY seat
	`
	rows, err := t.tx.Query(t.ctx, q, lobbyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LobbyParticipant
	for rows.Next() {
		var p models.LobbyParticipant
		if err := rows.Scan(&p.LobbyID, &p.UserID, &p.Seat, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertRound(r *models.Round) error {
	q := `
		INSERT INTO rounds (id, game_id, number, status, loser,
			expected_attacker, expected_defender, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.Exec(t.ctx, q, r.ID, r.GameID, r.Number, r.Status, r.Loser,
		r.ExpectedAttacker, r.ExpectedDefender, r.StartedAt, r.FinishedAt)
	return err
}

func (t *pgTx) Round(id uuid.UUID) (*models.Round, error) {
	q := `
		SELECT id, game_id, number, status, loser,
			expected_attacker, expected_defender, started_at, finished_at
		FROM rounds WHERE id = $1
	`
	return t.scanRound(t.tx.QueryRow(t.ctx, q, id))
}

func (t *pgTx) ActiveRound(gameID uuid.UUID) (*models.Round, error) {
	q := `
		SELECT id, game_id, number, status, loser,
			expected_attacker, expected_defender, started_at, finished_at
		FROM rounds WHERE game_id = $1 AND status = 'active'
		ORDER BY number DESC LIMIT 1
	`
	return t.scanRound(t.tx.QueryRow(t.ctx, q, gameID))
}

func (t *pgTx) scanRound(row pgx.Row) (*models.Round, error) {
	var r models.Round
	err := row.Scan(&r.ID, &r.GameID, &r.Number, &r.Status, &r.Loser,
		&r.ExpectedAttacker, &r.ExpectedDefender, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, noRows(err)
	}
	return &r, nil
}

func (t *pgTx) UpdateRound(r *models.Round) error {
	q := `
		UPDATE rounds
		SET status=$2, loser=$3, expected_attacker=$4, expected_defender=$5, finished_at=$6
		WHERE id=$1
	`
	_, err := t.tx.Exec(t.ctx, q, r.ID, r.Status, r.Loser,
		r.ExpectedAttacker, r.ExpectedDefender, r.FinishedAt)
	return err
}

func (t *pgTx) InsertTurn(tn *models.Turn) error {
	q := `
		INSERT INTO turns (id, round_id, number, attacker, defender, status, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := t.tx.Exec(t.ctx, q, tn.ID, tn.RoundID, tn.Number, tn.Attacker,
		tn.Defender, tn.Status, tn.StartedAt, tn.FinishedAt)
	return err
}

func (t *pgTx) Turn(id uuid.UUID) (*models.Turn, error) {
	q := `
		SELECT id, round_id, number, attacker, defender, status, started_at, finished_at
		FROM turns WHERE id = $1
	`
	return t.scanTurn(t.tx.QueryRow(t.ctx, q, id))
}

func (t *pgTx) ActiveTurn(roundID uuid.UUID) (*models.Turn, error) {
	q := `
		SELECT id, round_id, number, attacker, defender, status, started_at, finished_at
		FROM turns WHERE round_id = $1 AND status = 'active'
		ORDER BY number DESC LIMIT 1
	`
	return t.scanTurn(t.tx.QueryRow(t.ctx, q, roundID))
}

func (t *pgTx) scanTurn(row pgx.Row) (*models.Turn, error) {
	var tn models.Turn
	err := row.Scan(&tn.ID, &tn.RoundID, &tn.Number, &tn.Attacker,
		&tn.Defender, &tn.Status, &tn.StartedAt, &tn.FinishedAt)
	if err != nil {
		return nil, noRows(err)
	}
	return &tn, nil
}

func (t *pgTx) UpdateTurn(tn *models.Turn) error {
	q := `UPDATE turns SET status=$2, finished_at=$3 WHERE id=$1`
	_, err := t.tx.Exec(t.ctx, q, tn.ID, tn.Status, tn.FinishedAt)
	return err
}

func (t *pgTx) TurnCount(roundID uuid.UUID) (int, error) {
	var n int
	err := t.tx.QueryRow(t.ctx, `SELECT COUNT(*) FROM turns WHERE round_id=$1`, roundID).Scan(&n)
	return n, err
}

func (t *pgTx) InsertDraw(d *models.Draw) error {
	q := `
		INSERT INTO draws (id, turn_id, attacker, attack_suit, attack_rank,
			defense_suit, defense_rank, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	defSuit, defRank := splitCard(d.DefendingCard)
	_, err := t.tx.Exec(t.ctx, q, d.ID, d.TurnID, d.Attacker,
		d.AttackingCard.Suit, d.AttackingCard.Rank, defSuit, defRank, d.Status, d.CreatedAt)
	return err
}

func (t *pgTx) UpdateDraw(d *models.Draw) error {
	q := `UPDATE draws SET defense_suit=$2, defense_rank=$3, status=$4 WHERE id=$1`
	defSuit, defRank := splitCard(d.DefendingCard)
	_, err := t.tx.Exec(t.ctx, q, d.ID, defSuit, defRank, d.Status)
	return err
}

func (t *pgTx) DrawsByTurn(turnID uuid.UUID) ([]models.Draw, error) {
	q := `
		SELECT id, turn_id, attacker, attack_suit, attack_rank,
			defense_suit, defense_rank, status, created_at
		FROM draws WHERE turn_id = $1 ORDER BY created_at, id
	`
	rows, err := t.tx.Query(t.ctx, q, turnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Draw
	for rows.Next() {
		var (
			d       models.Draw
			defSuit *models.Suit
			defRank *models.Rank
		)
		if err := rows.Scan(&d.ID, &d.TurnID, &d.Attacker,
			&d.AttackingCard.Suit, &d.AttackingCard.Rank,
			&defSuit, &defRank, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		if defSuit != nil && defRank != nil {
			d.DefendingCard = &models.Card{Suit: *defSuit, Rank: *defRank}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertCard(c *models.CardAssignment) error {
	q := `
		INSERT INTO card_assignments (id, game_id, owner, suit, rank, location, deal_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.Exec(t.ctx, q, c.ID, c.GameID, nullableUUID(c.Owner),
		c.Card.Suit, c.Card.Rank, c.Location, c.DealOrder)
	return err
}

func (t *pgTx) UpdateCard(c *models.CardAssignment) error {
	q := `UPDATE card_assignments SET owner=$2, location=$3 WHERE id=$1`
	_, err := t.tx.Exec(t.ctx, q, c.ID, nullableUUID(c.Owner), c.Location)
	return err
}

func (t *pgTx) CardsByGame(gameID uuid.UUID) ([]models.CardAssignment, error) {
	q := `
		SELECT id, game_id, owner, suit, rank, location, deal_order
		FROM card_assignments WHERE game_id = $1 ORDER BY deal_order
	`
	rows, err := t.tx.Query(t.ctx, q, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CardAssignment
	for rows.Next() {
		var (
			c     models.CardAssignment
			owner *uuid.UUID
		)
		if err := rows.Scan(&c.ID, &c.GameID, &owner,
			&c.Card.Suit, &c.Card.Rank, &c.Location, &c.DealOrder); err != nil {
			return nil, err
		}
		if owner != nil {
			c.Owner = *owner
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) DeleteCardsByGame(gameID uuid.UUID) error {
	_, err := t.tx.Exec(t.ctx, `DELETE FROM card_assignments WHERE game_id=$1`, gameID)
	return err
}

func (t *pgTx) InsertPlayerState(p *models.PlayerGameState) error {
	q := `
		INSERT INTO player_game_states (game_id, user_id, seat, status, points)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := t.tx.Exec(t.ctx, q, p.GameID, p.UserID, p.Seat, p.Status, p.Points)
	return err
}

func (t *pgTx) PlayerState(gameID, userID uuid.UUID) (*models.PlayerGameState, error) {
	q := `
		SELECT game_id, user_id, seat, status, points
		FROM player_game_states WHERE game_id=$1 AND user_id=$2
	`
	var p models.PlayerGameState
	err := t.tx.QueryRow(t.ctx, q, gameID, userID).Scan(
		&p.GameID, &p.UserID, &p.Seat, &p.Status, &p.Points)
	if err != nil {
		return nil, noRows(err)
	}
	return &p, nil
}

func (t *pgTx) UpdatePlayerState(p *models.PlayerGameState) error {
	q := `UPDATE player_game_states SET status=$3, points=$4 WHERE game_id=$1 AND user_id=$2`
	_, err := t.tx.Exec(t.ctx, q, p.GameID, p.UserID, p.Status, p.Points)
	return err
}

func (t *pgTx) PlayersByGame(gameID uuid.UUID) ([]models.PlayerGameState, error) {
	q := `
		SELECT game_id, user_id, seat, status, points
		FROM player_game_states WHERE game_id=$1 ORDER BY seat
	`
	rows, err := t.tx.Query(t.ctx, q, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PlayerGameState
	for rows.Next() {
		var p models.PlayerGameState
		if err := rows.Scan(&p.GameID, &p.UserID, &p.Seat, &p.Status, &p.Points); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) DeletePlayersByGame(gameID uuid.UUID) error {
	_, err := t.tx.Exec(t.ctx, `DELETE FROM player_game_states WHERE game_id=$1`, gameID)
	return err
}

func (t *pgTx) InsertUser(u *models.User) error {
	q := `
		INSERT INTO users (id, email, password, username, is_ephemeral, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.tx.Exec(t.ctx, q, u.ID, u.Email, u.Password, u.Username, u.IsEphemeral, u.IsAdmin)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (t *pgTx) User(id uuid.UUID) (*models.User, error) {
	q := `SELECT id, email, password, username, is_ephemeral, is_admin FROM users WHERE id=$1`
	return t.scanUser(t.tx.QueryRow(t.ctx, q, id))
}

func (t *pgTx) UserByEmail(email string) (*models.User, error) {
	q := `SELECT id, email, password, username, is_ephemeral, is_admin FROM users WHERE email=$1`
	return t.scanUser(t.tx.QueryRow(t.ctx, q, email))
}

func (t *pgTx) scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Username, &u.IsEphemeral, &u.IsAdmin)
	if err != nil {
		return nil, noRows(err)
	}
	return &u, nil
}

func (t *pgTx) UpdateUser(u *models.User) error {
	q := `UPDATE users SET email=$2, password=$3, username=$4, is_ephemeral=$5, is_admin=$6 WHERE id=$1`
	_, err := t.tx.Exec(t.ctx, q, u.ID, u.Email, u.Password, u.Username, u.IsEphemeral, u.IsAdmin)
	return err
}

// nullableUUID maps the zero UUID (the unowned deck pool) to SQL NULL.
func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// splitCard explodes an optional card into nullable suit/rank columns.
func splitCard(c *models.Card) (*models.Suit, *models.Rank) {
	if c == nil {
		return nil, nil
	}
	return &c.Suit, &c.Rank
}
