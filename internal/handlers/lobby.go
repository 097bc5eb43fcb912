// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// CreateLobbyHandler opens a lobby hosted by the requesting user. Guests
// are allowed to host; an ephemeral account is minted on the fly.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := s.EnsureEphemeralUser(w, r)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	var req struct {
		Name       string `json:"name"`
		MaxPlayers int    `json:"max_players"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		http.Error(w, "bad lobby request payload", http.StatusBadRequest)
		return
	}

	l, err := s.Lobbies.Create(r.Context(), userID, req.Name, req.MaxPlayers)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// ListLobbiesHandler returns every lobby.
func (s *Server) ListLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requestUser(r); err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	lobbies, err := s.Lobbies.List(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lobbies)
}

// GetLobbyHandler returns one lobby and its seated participants.
func (s *Server) GetLobbyHandler(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := uuid.Parse(r.PathValue("lobby_id"))
	if err != nil {
		http.Error(w, "invalid lobby_id", http.StatusBadRequest)
		return
	}
	l, parts, err := s.Lobbies.Get(r.Context(), lobbyID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lobby":        l,
		"participants": parts,
	})
}

// JoinLobbyHandler seats the requesting user in the lobby.
func (s *Server) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := uuid.Parse(r.PathValue("lobby_id"))
	if err != nil {
		http.Error(w, "invalid lobby_id", http.StatusBadRequest)
		return
	}
	userID, err := s.EnsureEphemeralUser(w, r)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}
	if err := s.Lobbies.Join(r.Context(), lobbyID, userID); err != nil {
		writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// LeaveLobbyHandler removes the requesting user from the lobby.
func (s *Server) LeaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := uuid.Parse(r.PathValue("lobby_id"))
	if err != nil {
		http.Error(w, "invalid lobby_id", http.StatusBadRequest)
		return
	}
	userID, err := s.requestUser(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	if err := s.Lobbies.Leave(r.Context(), lobbyID, userID); err != nil {
		writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetSettingsHandler returns the lobby's effective game settings.
func (s *Server) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := uuid.Parse(r.PathValue("lobby_id"))
	if err != nil {
		http.Error(w, "invalid lobby_id", http.StatusBadRequest)
		return
	}
	settings, err := s.Lobbies.Settings(r.Context(), lobbyID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettingsHandler applies a partial settings patch (host only).
func (s *Server) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := uuid.Parse(r.PathValue("lobby_id"))
	if err != nil {
		http.Error(w, "invalid lobby_id", http.StatusBadRequest)
		return
	}
	userID, err := s.requestUser(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid settings payload", http.StatusBadRequest)
		return
	}
	settings, err := s.Lobbies.UpdateSettings(r.Context(), lobbyID, userID, patch)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// StartGameHandler launches the game (host only).
func (s *Server) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := uuid.Parse(r.PathValue("lobby_id"))
	if err != nil {
		http.Error(w, "invalid lobby_id", http.StatusBadRequest)
		return
	}
	userID, err := s.requestUser(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	session, err := s.Lobbies.Start(r.Context(), lobbyID, userID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}
