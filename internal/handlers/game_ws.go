// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avramenko-d/durak/internal/middleware"
	"github.com/avramenko-d/durak/internal/models"
)

// GameMessage is the envelope for incoming WebSocket messages during play.
type GameMessage struct {
	Type string `json:"type"`

	// Card is the card being played (attack and defend).
	Card *models.Card `json:"card,omitempty"`

	// Target is the defender's user ID for attack messages.
	Target string `json:"target,omitempty"`

	// TurnID addresses the turn for defend and take_cards messages.
	TurnID string `json:"turn_id,omitempty"`

	// Message carries chat text.
	Message string `json:"message,omitempty"`
}

// GameHub tracks the live WebSocket connections per game and fans events
// out to them.
type GameHub struct {
	mu    sync.Mutex
	conns map[uuid.UUID]map[*websocket.Conn]uuid.UUID
	log   *logrus.Logger
}

func NewGameHub(logger *logrus.Logger) *GameHub {
	return &GameHub{
		conns: make(map[uuid.UUID]map[*websocket.Conn]uuid.UUID),
		log:   logger,
	}
}

func (h *GameHub) register(gameID uuid.UUID, c *websocket.Conn, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[gameID] == nil {
		h.conns[gameID] = make(map[*websocket.Conn]uuid.UUID)
	}
	h.conns[gameID][c] = userID
}

func (h *GameHub) unregister(gameID uuid.UUID, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[gameID], c)
	if len(h.conns[gameID]) == 0 {
		delete(h.conns, gameID)
	}
}

// Broadcast sends one JSON message to every connection of the game. Slow
// or dead connections only lose their own message.
func (h *GameHub) Broadcast(ctx context.Context, gameID uuid.UUID, msg interface{}) {
	h.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(h.conns[gameID]))
	for c := range h.conns[gameID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := wsjson.Write(wctx, c, msg); err != nil {
			h.log.WithError(err).WithField("game_id", gameID).Debug("dropping broadcast to dead connection")
		}
		cancel()
	}
}

// GameWSHandler upgrades to WebSocket for one game: it authenticates the
// user, checks the game exists, then serves the action read loop until
// the client goes away.
func (s *Server) GameWSHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(r.PathValue("game_id"))
	if err != nil {
		http.Error(w, "invalid game_id format", http.StatusBadRequest)
		return
	}
	if _, err := s.Engine.GameState(r.Context(), gameID); err != nil {
		writeGameError(w, err)
		return
	}

	// Authenticate before the upgrade so failures surface as plain HTTP.
	userID, err := s.EnsureEphemeralUser(w, r)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"durak"},
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.Logger.Warnf("WebSocket accept error for game %s: %v", gameID, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "internal error")

	if c.Subprotocol() != "durak" {
		c.Close(BadSubprotocolError, "client must use the 'durak' subprotocol")
		return
	}
	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

	s.hub.register(gameID, c, userID)
	defer s.hub.unregister(gameID, c)

	ctx := r.Context()
	if snap, err := s.Engine.GameState(ctx, gameID); err == nil {
		_ = wsjson.Write(ctx, c, map[string]interface{}{"type": "state", "state": snap})
	}

	err = s.readGameMessages(ctx, c, gameID, userID)
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, err)
	c.Close(websocket.StatusNormalClosure, "bye")
}

// readGameMessages handles one client's messages until error or close.
func (s *Server) readGameMessages(ctx context.Context, c *websocket.Conn, gameID, userID uuid.UUID) error {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(ctx, c, "malformed message")
			continue
		}
		if err := s.dispatchGameMessage(ctx, c, gameID, userID, msg); err != nil {
			s.sendError(ctx, c, err.Error())
			continue
		}
		s.broadcastState(ctx, gameID)
	}
}

// dispatchGameMessage routes one message to the engine.
func (s *Server) dispatchGameMessage(ctx context.Context, c *websocket.Conn, gameID, userID uuid.UUID, msg GameMessage) error {
	switch msg.Type {
	case "attack":
		if msg.Card == nil {
			return errMissingField("card")
		}
		target, err := uuid.Parse(msg.Target)
		if err != nil {
			return errMissingField("target")
		}
		return s.Engine.Attack(ctx, gameID, userID, *msg.Card, target)

	case "defend":
		if msg.Card == nil {
			return errMissingField("card")
		}
		turnID, err := uuid.Parse(msg.TurnID)
		if err != nil {
			return errMissingField("turn_id")
		}
		return s.Engine.Defend(ctx, gameID, userID, turnID, *msg.Card)

	case "take_cards":
		turnID, err := uuid.Parse(msg.TurnID)
		if err != nil {
			return errMissingField("turn_id")
		}
		return s.Engine.TakeCards(ctx, gameID, userID, turnID)

	case "pass_turn":
		return s.Engine.PassTurn(ctx, gameID, userID)

	case "hand":
		hand, err := s.Engine.PlayerHand(ctx, gameID, userID)
		if err != nil {
			return err
		}
		return wsjson.Write(ctx, c, map[string]interface{}{"type": "hand", "hand": hand})

	case "state":
		snap, err := s.Engine.GameState(ctx, gameID)
		if err != nil {
			return err
		}
		return wsjson.Write(ctx, c, map[string]interface{}{"type": "state", "state": snap})

	case "chat":
		s.hub.Broadcast(ctx, gameID, map[string]interface{}{
			"type": "chat",
			"from": userID.String(),
			"text": msg.Message,
		})
		return nil

	case "ping":
		return wsjson.Write(ctx, c, map[string]interface{}{"type": "pong"})

	default:
		return errUnknownType(msg.Type)
	}
}

// broadcastState pushes a fresh snapshot to every connection of the game.
func (s *Server) broadcastState(ctx context.Context, gameID uuid.UUID) {
	snap, err := s.Engine.GameState(ctx, gameID)
	if err != nil {
		s.Logger.WithError(err).WithField("game_id", gameID).Warn("failed to snapshot game for broadcast")
		return
	}
	s.hub.Broadcast(ctx, gameID, map[string]interface{}{"type": "state", "state": snap})
}

func (s *Server) sendError(ctx context.Context, c *websocket.Conn, text string) {
	_ = wsjson.Write(ctx, c, map[string]interface{}{"type": "error", "error": text})
}

type wsFieldError string

func (e wsFieldError) Error() string { return "missing or invalid field: " + string(e) }

func errMissingField(name string) error { return wsFieldError(name) }

type wsTypeError string

func (e wsTypeError) Error() string { return "unknown message type: " + string(e) }

func errUnknownType(t string) error { return wsTypeError(t) }
