// internal/handlers/game.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
)

// GameStateHandler returns the public snapshot of a game. Hands appear as
// counts only; players fetch their own cards from /game/{id}/hand.
func (s *Server) GameStateHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(r.PathValue("game_id"))
	if err != nil {
		http.Error(w, "invalid game_id", http.StatusBadRequest)
		return
	}
	snap, err := s.Engine.GameState(r.Context(), gameID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PlayerHandHandler returns the requesting player's own hand.
func (s *Server) PlayerHandHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(r.PathValue("game_id"))
	if err != nil {
		http.Error(w, "invalid game_id", http.StatusBadRequest)
		return
	}
	userID, err := s.requestUser(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	hand, err := s.Engine.PlayerHand(r.Context(), gameID, userID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"hand": hand})
}
