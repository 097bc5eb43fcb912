// internal/handlers/user.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/avramenko-d/durak/internal/auth"
	"github.com/avramenko-d/durak/internal/models"
	"github.com/avramenko-d/durak/internal/store"
)

// createUser hashes the password and inserts the user row.
func (s *Server) createUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Password != "" {
		hashed, err := auth.CreateHash(u.Password, auth.Params)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		u.Password = hashed
	}
	return s.Store.Atomic(ctx, func(tx store.Tx) error {
		if u.Email != "" {
			if _, err := tx.UserByEmail(u.Email); err == nil {
				return fmt.Errorf("email %s already registered", u.Email)
			} else if !errors.Is(err, store.ErrNoRows) {
				return err
			}
		}
		return tx.InsertUser(u)
	})
}

// authenticateUser verifies email+password and mints a JWT.
func (s *Server) authenticateUser(ctx context.Context, email, password string) (string, error) {
	var u *models.User
	err := s.Store.Atomic(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.UserByEmail(email)
		return err
	})
	if errors.Is(err, store.ErrNoRows) {
		return "", fmt.Errorf("no user with email %s", email)
	} else if err != nil {
		return "", err
	}

	ok, err := auth.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("invalid password")
	}
	return auth.CreateJWT(u.ID.String())
}

// EnsureEphemeralUser resolves the request's user, minting a guest account
// and auth cookie when no valid token is present.
func (s *Server) EnsureEphemeralUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "auth_token=") {
		token := extractCookieToken(cookieHeader, "auth_token")
		if userID, err := auth.AuthenticateJWT(token); err == nil {
			uuidVal, parseErr := uuid.Parse(userID)
			if parseErr != nil {
				return uuid.Nil, fmt.Errorf("invalid user ID in token: %w", parseErr)
			}
			return uuidVal, nil
		}
	}

	guest := models.User{Username: "Guest", IsEphemeral: true}
	if err := s.createUser(r.Context(), &guest); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create ephemeral user: %w", err)
	}
	newToken, err := auth.CreateJWT(guest.ID.String())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create ephemeral JWT: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    newToken,
		HttpOnly: true,
		Path:     "/",
	})
	return guest.ID, nil
}

// requestUser authenticates the request strictly: no guest fallback.
func (s *Server) requestUser(r *http.Request) (uuid.UUID, error) {
	cookieHeader := r.Header.Get("Cookie")
	if !strings.Contains(cookieHeader, "auth_token=") {
		return uuid.Nil, fmt.Errorf("missing auth_token")
	}
	token := extractCookieToken(cookieHeader, "auth_token")
	userIDStr, err := auth.AuthenticateJWT(token)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(userIDStr)
}

// CreateUserHandler registers a permanent account.
func (s *Server) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	user := models.User{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	}
	if err := s.createUser(r.Context(), &user); err != nil {
		if strings.Contains(err.Error(), "already registered") {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		s.Logger.WithError(err).Warn("failed to create user")
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}

	user.Password = ""
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler exchanges email+password for a JWT, also set as a cookie.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	token, err := s.authenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		s.Logger.WithError(err).Info("failed login attempt")
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   auth.TOKEN_EXPIRE_TIME_SEC,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{Token: token})
}

type claimEphemeralRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// ClaimEphemeralHandler upgrades a guest account to a permanent one.
func (s *Server) ClaimEphemeralHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := s.requestUser(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	var req claimEphemeralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid claim payload", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}
	hashed, err := auth.CreateHash(req.Password, auth.Params)
	if err != nil {
		http.Error(w, "failed to finalize ephemeral user", http.StatusInternalServerError)
		return
	}

	err = s.Store.Atomic(r.Context(), func(tx store.Tx) error {
		u, err := tx.User(userID)
		if err != nil {
			return err
		}
		if !u.IsEphemeral {
			return fmt.Errorf("user is not ephemeral")
		}
		u.Email = req.Email
		u.Password = hashed
		if req.Username != "" {
			u.Username = req.Username
		}
		u.IsEphemeral = false
		return tx.UpdateUser(u)
	})
	if err != nil {
		http.Error(w, "failed to finalize ephemeral user", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ephemeral user claimed successfully")
}
