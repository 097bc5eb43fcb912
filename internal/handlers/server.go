// internal/handlers/server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/avramenko-d/durak/internal/game"
	"github.com/avramenko-d/durak/internal/lobby"
	"github.com/avramenko-d/durak/internal/middleware"
	"github.com/avramenko-d/durak/internal/store"
)

// Server bundles the HTTP surface: user auth, lobby management and the
// per-game websocket endpoint all share one store, engine and logger.
type Server struct {
	Store   store.Store
	Engine  *game.Engine
	Lobbies *lobby.Service
	Logger  *logrus.Logger

	hub *GameHub
}

// NewServer wires the handler layer on top of an engine and lobby service.
func NewServer(st store.Store, engine *game.Engine, lobbies *lobby.Service, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		Store:   st,
		Engine:  engine,
		Lobbies: lobbies,
		Logger:  logger,
		hub:     NewGameHub(logger),
	}
}

// Routes builds the full route table with request logging applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /user/create", s.CreateUserHandler)
	mux.HandleFunc("POST /user/login", s.LoginHandler)
	mux.HandleFunc("POST /user/claim", s.ClaimEphemeralHandler)

	mux.HandleFunc("POST /lobby/create", s.CreateLobbyHandler)
	mux.HandleFunc("GET /lobby/list", s.ListLobbiesHandler)
	mux.HandleFunc("GET /lobby/{lobby_id}", s.GetLobbyHandler)
	mux.HandleFunc("POST /lobby/{lobby_id}/join", s.JoinLobbyHandler)
	mux.HandleFunc("POST /lobby/{lobby_id}/leave", s.LeaveLobbyHandler)
	mux.HandleFunc("GET /lobby/{lobby_id}/settings", s.GetSettingsHandler)
	mux.HandleFunc("POST /lobby/{lobby_id}/settings", s.UpdateSettingsHandler)
	mux.HandleFunc("POST /lobby/{lobby_id}/start", s.StartGameHandler)

	mux.HandleFunc("GET /game/{game_id}/state", s.GameStateHandler)
	mux.HandleFunc("GET /game/{game_id}/hand", s.PlayerHandHandler)
	mux.HandleFunc("GET /game/ws/{game_id}", s.GameWSHandler)

	return middleware.LogMiddleware(s.Logger)(mux)
}
