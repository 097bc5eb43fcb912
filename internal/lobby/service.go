// internal/lobby/service.go
//
// Lobby lifecycle: create, join, leave, tune settings and launch a game.
// Like the game engine, the service owns no state; everything lives in
// the injected store.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avramenko-d/durak/internal/game"
	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

// MaxSeats caps the table size. The 36-card deck cannot sustain more
// than six starting hands plus a draw pile worth playing for.
const MaxSeats = 6

// Service manages lobbies and hands full rosters off to the game engine.
type Service struct {
	store  store.Store
	engine *game.Engine
	log    *logrus.Logger
}

// NewService builds a lobby service sharing the engine's store.
func NewService(st store.Store, engine *game.Engine, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{store: st, engine: engine, log: logger}
}

// Create opens a new waiting lobby with the host seated at 0.
func (s *Service) Create(ctx context.Context, hostID uuid.UUID, name string, maxPlayers int) (*models.Lobby, error) {
	if maxPlayers <= 0 {
		maxPlayers = MaxSeats
	}
	if maxPlayers < 2 || maxPlayers > MaxSeats {
		return nil, fmt.Errorf("%w: max players must be between 2 and %d", game.ErrInvalidMove, MaxSeats)
	}
	if name == "" {
		name = "durak"
	}

	now := time.Now().UTC()
	l := &models.Lobby{
		ID:         uuid.New(),
		Name:       name,
		HostUserID: hostID,
		MaxPlayers: maxPlayers,
		Status:     models.LobbyWaiting,
		CreatedAt:  now,
	}
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		if _, err := tx.User(hostID); errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("user %s: %w", hostID, game.ErrNotFound)
		} else if err != nil {
			return err
		}
		if err := tx.InsertLobby(l); err != nil {
			return err
		}
		if err := tx.UpsertSettings(models.DefaultSettings(l.ID)); err != nil {
			return err
		}
		return tx.InsertParticipant(models.LobbyParticipant{
			LobbyID:  l.ID,
			UserID:   hostID,
			Seat:     0,
			JoinedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"lobby_id": l.ID, "host": hostID}).Info("lobby created")
	return l, nil
}

// Join seats a user at the lowest free seat of a waiting lobby.
func (s *Service) Join(ctx context.Context, lobbyID, userID uuid.UUID) error {
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		l, err := waitingLobby(tx, lobbyID)
		if err != nil {
			return err
		}
		if _, err := tx.User(userID); errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("user %s: %w", userID, game.ErrNotFound)
		} else if err != nil {
			return err
		}

		parts, err := tx.Participants(lobbyID)
		if err != nil {
			return err
		}
		taken := make(map[int]bool, len(parts))
		for _, p := range parts {
			if p.UserID == userID {
				return fmt.Errorf("%w: already in lobby %s", game.ErrIllegalState, lobbyID)
			}
			taken[p.Seat] = true
		}
		if len(parts) >= l.MaxPlayers {
			return fmt.Errorf("%w: lobby %s is full", game.ErrIllegalState, lobbyID)
		}
		seat := 0
		for taken[seat] {
			seat++
		}
		return tx.InsertParticipant(models.LobbyParticipant{
			LobbyID:  lobbyID,
			UserID:   userID,
			Seat:     seat,
			JoinedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "user": userID}).Info("joined lobby")
	return nil
}

// Leave removes a user from a waiting lobby. An emptied lobby is deleted;
// a departing host passes hosting to the lowest remaining seat.
func (s *Service) Leave(ctx context.Context, lobbyID, userID uuid.UUID) error {
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		l, err := waitingLobby(tx, lobbyID)
		if err != nil {
			return err
		}

		parts, err := tx.Participants(lobbyID)
		if err != nil {
			return err
		}
		found := false
		for _, p := range parts {
			if p.UserID == userID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: user %s is not in lobby %s", game.ErrUnauthorized, userID, lobbyID)
		}
		if err := tx.DeleteParticipant(lobbyID, userID); err != nil {
			return err
		}

		rest, err := tx.Participants(lobbyID)
		if err != nil {
			return err
		}
		if len(rest) == 0 {
			return tx.DeleteLobby(lobbyID)
		}
		if l.HostUserID == userID {
			l.HostUserID = rest[0].UserID
			return tx.UpdateLobby(l)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "user": userID}).Info("left lobby")
	return nil
}

// UpdateSettings applies a partial settings patch. Only the host may tune
// settings, and only while the lobby is still waiting.
func (s *Service) UpdateSettings(ctx context.Context, lobbyID, userID uuid.UUID, patch map[string]interface{}) (*models.GameSettings, error) {
	var out models.GameSettings
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		l, err := waitingLobby(tx, lobbyID)
		if err != nil {
			return err
		}
		if l.HostUserID != userID {
			return fmt.Errorf("%w: only the host may change settings", game.ErrUnauthorized)
		}

		settings, err := tx.SettingsByLobby(lobbyID)
		if errors.Is(err, store.ErrNoRows) {
			def := models.DefaultSettings(lobbyID)
			settings = &def
		} else if err != nil {
			return err
		}
		if err := settings.Update(patch); err != nil {
			return fmt.Errorf("%w: %v", game.ErrInvalidMove, err)
		}
		if err := tx.UpsertSettings(*settings); err != nil {
			return err
		}
		out = *settings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Settings returns the lobby's effective settings.
func (s *Service) Settings(ctx context.Context, lobbyID uuid.UUID) (*models.GameSettings, error) {
	var out models.GameSettings
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		if _, err := tx.Lobby(lobbyID); errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("lobby %s: %w", lobbyID, game.ErrNotFound)
		} else if err != nil {
			return err
		}
		settings, err := tx.SettingsByLobby(lobbyID)
		if errors.Is(err, store.ErrNoRows) {
			out = models.DefaultSettings(lobbyID)
			return nil
		} else if err != nil {
			return err
		}
		out = *settings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns all lobbies.
func (s *Service) List(ctx context.Context) ([]models.Lobby, error) {
	var out []models.Lobby
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.Lobbies()
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one lobby with its participants.
func (s *Service) Get(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, []models.LobbyParticipant, error) {
	var (
		l     *models.Lobby
		parts []models.LobbyParticipant
	)
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		l, err = tx.Lobby(lobbyID)
		if errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("lobby %s: %w", lobbyID, game.ErrNotFound)
		} else if err != nil {
			return err
		}
		parts, err = tx.Participants(lobbyID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return l, parts, nil
}

// Start launches the game. The engine checks the host and the lobby state
// inside the launch transaction itself.
func (s *Service) Start(ctx context.Context, lobbyID, userID uuid.UUID) (*models.GameSession, error) {
	return s.engine.StartGameFor(ctx, lobbyID, userID)
}

func waitingLobby(tx store.Tx, lobbyID uuid.UUID) (*models.Lobby, error) {
	l, err := tx.Lobby(lobbyID)
	if errors.Is(err, store.ErrNoRows) {
		return nil, fmt.Errorf("lobby %s: %w", lobbyID, game.ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	if l.Status != models.LobbyWaiting {
		return nil, fmt.Errorf("%w: lobby %s is not waiting", game.ErrIllegalState, lobbyID)
	}
	return l, nil
}
