package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventradar/radar/internal/auth"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	config auth.Config
	logger *slog.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(config auth.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		config: config,
		logger: logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Identity  auth.Identity `json:"identity"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, h.logger, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		badRequest(w, h.logger, "email and password are required")
		return
	}

	token, id, err := auth.Login(h.config, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// Generic message to prevent username enumeration
			h.logger.Warn("failed login attempt", "ip", r.RemoteAddr)
		}
		respondError(w, h.logger, err)
		return
	}

	h.logger.Info("successful login", "ip", r.RemoteAddr, "email", id.Email)
	writeJSON(w, h.logger, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.config.TokenDuration),
		Identity:  id,
	})
}
