package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/avramenko-d/durak/internal/models"
)

// playerKey identifies a PlayerGameState row.
type playerKey struct {
	game uuid.UUID
	user uuid.UUID
}

// participantKey identifies a LobbyParticipant row.
type participantKey struct {
	lobby uuid.UUID
	user  uuid.UUID
}

// tables holds every entity map. Values are structs, not pointers, so a
// shallow map copy yields fully isolated rows.
type tables struct {
	games        map[uuid.UUID]models.GameSession
	settings     map[uuid.UUID]models.GameSettings
	lobbies      map[uuid.UUID]models.Lobby
	participants map[participantKey]models.LobbyParticipant
	rounds       map[uuid.UUID]models.Round
	turns        map[uuid.UUID]models.Turn
	draws        map[uuid.UUID]models.Draw
	cards        map[uuid.UUID]models.CardAssignment
	players      map[playerKey]models.PlayerGameState
	users        map[uuid.UUID]models.User
	drawSeq      map[uuid.UUID]int
	nextDrawSeq  int
}

func newTables() *tables {
	return &tables{
		games:        make(map[uuid.UUID]models.GameSession),
		settings:     make(map[uuid.UUID]models.GameSettings),
		lobbies:      make(map[uuid.UUID]models.Lobby),
		participants: make(map[participantKey]models.LobbyParticipant),
		rounds:       make(map[uuid.UUID]models.Round),
		turns:        make(map[uuid.UUID]models.Turn),
		draws:        make(map[uuid.UUID]models.Draw),
		cards:        make(map[uuid.UUID]models.CardAssignment),
		players:      make(map[playerKey]models.PlayerGameState),
		users:        make(map[uuid.UUID]models.User),
		drawSeq:      make(map[uuid.UUID]int),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.games {
		c.games[k] = v
	}
	for k, v := range t.settings {
		c.settings[k] = v
	}
	for k, v := range t.lobbies {
		c.lobbies[k] = v
	}
	for k, v := range t.participants {
		c.participants[k] = v
	}
	for k, v := range t.rounds {
		c.rounds[k] = v
	}
	for k, v := range t.turns {
		c.turns[k] = v
	}
	for k, v := range t.draws {
		c.draws[k] = v
	}
	for k, v := range t.cards {
		c.cards[k] = v
	}
	for k, v := range t.players {
		c.players[k] = v
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.drawSeq {
		c.drawSeq[k] = v
	}
	c.nextDrawSeq = t.nextDrawSeq
	return c
}

// Memory is an in-process Store. Atomic serializes all transactions behind
// one mutex and runs each on a copy of the tables, committing the copy back
// only when fn succeeds. A failed action therefore leaves no trace.
type Memory struct {
	mu   sync.Mutex
	tabs *tables
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tabs: newTables()}
}

// Atomic implements Store.
func (m *Memory) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.tabs.clone()
	if err := fn(&memTx{t: work}); err != nil {
		return err
	}
	m.tabs = work
	return nil
}

// memTx implements Tx over a private copy of the tables.
type memTx struct {
	t *tables
}

func (tx *memTx) InsertGame(g *models.GameSession) error {
	tx.t.games[g.ID] = *g
	return nil
}

func (tx *memTx) Game(id uuid.UUID) (*models.GameSession, error) {
	g, ok := tx.t.games[id]
	if !ok {
		return nil, ErrNoRows
	}
	return &g, nil
}

func (tx *memTx) UpdateGame(g *models.GameSession) error {
	if _, ok := tx.t.games[g.ID]; !ok {
		return ErrNoRows
	}
	tx.t.games[g.ID] = *g
	return nil
}

func (tx *memTx) UpsertSettings(s models.GameSettings) error {
	tx.t.settings[s.LobbyID] = s
	return nil
}

func (tx *memTx) SettingsByLobby(lobbyID uuid.UUID) (*models.GameSettings, error) {
	s, ok := tx.t.settings[lobbyID]
	if !ok {
		return nil, ErrNoRows
	}
	return &s, nil
}

func (tx *memTx) InsertLobby(l *models.Lobby) error {
	tx.t.lobbies[l.ID] = *l
	return nil
}

func (tx *memTx) Lobby(id uuid.UUID) (*models.Lobby, error) {
	l, ok := tx.t.lobbies[id]
	if !ok {
		return nil, ErrNoRows
	}
	return &l, nil
}

func (tx *memTx) UpdateLobby(l *models.Lobby) error {
	if _, ok := tx.t.lobbies[l.ID]; !ok {
		return ErrNoRows
	}
	tx.t.lobbies[l.ID] = *l
	return nil
}

func (tx *memTx) DeleteLobby(id uuid.UUID) error {
	delete(tx.t.lobbies, id)
	for k := range tx.t.participants {
		if k.lobby == id {
			delete(tx.t.participants, k)
		}
	}
	return nil
}

func (tx *memTx) Lobbies() ([]models.Lobby, error) {
	out := make([]models.Lobby, 0, len(tx.t.lobbies))
	for _, l := range tx.t.lobbies {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (tx *memTx) InsertParticipant(p models.LobbyParticipant) error {
	tx.t.participants[participantKey{p.LobbyID, p.UserID}] = p
	return nil
}

func (tx *memTx) DeleteParticipant(lobbyID, userID uuid.UUID) error {
	delete(tx.t.participants, participantKey{lobbyID, userID})
	return nil
}

func (tx *memTx) Participants(lobbyID uuid.UUID) ([]models.LobbyParticipant, error) {
	var out []models.LobbyParticipant
	for k, p := range tx.t.participants {
		if k.lobby == lobbyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out, nil
}

func (tx *memTx) InsertRound(r *models.Round) error {
	tx.t.rounds[r.ID] = *r
	return nil
}

func (tx *memTx) Round(id uuid.UUID) (*models.Round, error) {
	r, ok := tx.t.rounds[id]
	if !ok {
		return nil, ErrNoRows
	}
	return &r, nil
}

func (tx *memTx) UpdateRound(r *models.Round) error {
	if _, ok := tx.t.rounds[r.ID]; !ok {
		return ErrNoRows
	}
	tx.t.rounds[r.ID] = *r
	return nil
}

func (tx *memTx) ActiveRound(gameID uuid.UUID) (*models.Round, error) {
	for _, r := range tx.t.rounds {
		if r.GameID == gameID && r.Status == models.RoundActive {
			round := r
			return &round, nil
		}
	}
	return nil, ErrNoRows
}

func (tx *memTx) InsertTurn(t *models.Turn) error {
	tx.t.turns[t.ID] = *t
	return nil
}

func (tx *memTx) Turn(id uuid.UUID) (*models.Turn, error) {
	t, ok := tx.t.turns[id]
	if !ok {
		return nil, ErrNoRows
	}
	return &t, nil
}

func (tx *memTx) UpdateTurn(t *models.Turn) error {
	if _, ok := tx.t.turns[t.ID]; !ok {
		return ErrNoRows
	}
	tx.t.turns[t.ID] = *t
	return nil
}

func (tx *memTx) ActiveTurn(roundID uuid.UUID) (*models.Turn, error) {
	for _, t := range tx.t.turns {
		if t.RoundID == roundID && t.Status == models.TurnActive {
			turn := t
			return &turn, nil
		}
	}
	return nil, ErrNoRows
}

func (tx *memTx) TurnCount(roundID uuid.UUID) (int, error) {
	n := 0
	for _, t := range tx.t.turns {
		if t.RoundID == roundID {
			n++
		}
	}
	return n, nil
}

func (tx *memTx) InsertDraw(d *models.Draw) error {
	tx.t.draws[d.ID] = *d
	tx.t.drawSeq[d.ID] = tx.t.nextDrawSeq
	tx.t.nextDrawSeq++
	return nil
}

func (tx *memTx) UpdateDraw(d *models.Draw) error {
	if _, ok := tx.t.draws[d.ID]; !ok {
		return ErrNoRows
	}
	tx.t.draws[d.ID] = *d
	return nil
}

func (tx *memTx) DrawsByTurn(turnID uuid.UUID) ([]models.Draw, error) {
	var out []models.Draw
	for _, d := range tx.t.draws {
		if d.TurnID == turnID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return tx.t.drawSeq[out[i].ID] < tx.t.drawSeq[out[j].ID]
	})
	return out, nil
}

func (tx *memTx) InsertCard(c *models.CardAssignment) error {
	tx.t.cards[c.ID] = *c
	return nil
}

func (tx *memTx) UpdateCard(c *models.CardAssignment) error {
	if _, ok := tx.t.cards[c.ID]; !ok {
		return ErrNoRows
	}
	tx.t.cards[c.ID] = *c
	return nil
}

func (tx *memTx) CardsByGame(gameID uuid.UUID) ([]models.CardAssignment, error) {
	var out []models.CardAssignment
	for _, c := range tx.t.cards {
		if c.GameID == gameID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DealOrder < out[j].DealOrder })
	return out, nil
}

func (tx *memTx) DeleteCardsByGame(gameID uuid.UUID) error {
	for id, c := range tx.t.cards {
		if c.GameID == gameID {
			delete(tx.t.cards, id)
		}
	}
	return nil
}

func (tx *memTx) InsertPlayerState(p *models.PlayerGameState) error {
	tx.t.players[playerKey{p.GameID, p.UserID}] = *p
	return nil
}

func (tx *memTx) PlayerState(gameID, userID uuid.UUID) (*models.PlayerGameState, error) {
	p, ok := tx.t.players[playerKey{gameID, userID}]
	if !ok {
		return nil, ErrNoRows
	}
	return &p, nil
}

func (tx *memTx) UpdatePlayerState(p *models.PlayerGameState) error {
	k := playerKey{p.GameID, p.UserID}
	if _, ok := tx.t.players[k]; !ok {
		return ErrNoRows
	}
	tx.t.players[k] = *p
	return nil
}

func (tx *memTx) PlayersByGame(gameID uuid.UUID) ([]models.PlayerGameState, error) {
	var out []models.PlayerGameState
	for k, p := range tx.t.players {
		if k.game == gameID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out, nil
}

func (tx *memTx) DeletePlayersByGame(gameID uuid.UUID) error {
	for k := range tx.t.players {
		if k.game == gameID {
			delete(tx.t.players, k)
		}
	}
	return nil
}

func (tx *memTx) InsertUser(u *models.User) error {
	tx.t.users[u.ID] = *u
	return nil
}

func (tx *memTx) User(id uuid.UUID) (*models.User, error) {
	u, ok := tx.t.users[id]
	if !ok {
		return nil, ErrNoRows
	}
	return &u, nil
}

func (tx *memTx) UserByEmail(email string) (*models.User, error) {
	for _, u := range tx.t.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNoRows
}

func (tx *memTx) UpdateUser(u *models.User) error {
	if _, ok := tx.t.users[u.ID]; !ok {
		return ErrNoRows
	}
	tx.t.users[u.ID] = *u
	return nil
}
