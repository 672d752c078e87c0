package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"atamind/internal/logger"
	"atamind/internal/security"
	"atamind/internal/service"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService          *service.AuthService
	emailService         *service.EmailService
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
	states               *security.StateSigner
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, emailService *service.EmailService, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL string, states *security.StateSigner) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		emailService:         emailService,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
		states:               states,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a guardian account and returns an access token
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	result, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		handleServiceError(w, err, "Error registering guardian")
		return
	}

	if h.emailService != nil && h.emailService.IsEnabled() {
		guardian := result.Guardian
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := h.emailService.SendWelcomeEmail(ctx, guardian.Email, guardian.Name); err != nil {
				logger.Log.Warn("failed to send welcome email", zap.String("guardian_id", guardian.ID), zap.Error(err))
			}
		}()
	}

	http.SetCookie(w, security.CreateCookie(r, security.TokenCookieName, result.Token, result.ExpiresAt))
	writeJSON(w, http.StatusCreated, result)
}

// Login exchanges email and password for an access token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err, "Error logging in")
		return
	}

	http.SetCookie(w, security.CreateCookie(r, security.TokenCookieName, result.Token, result.ExpiresAt))
	writeJSON(w, http.StatusOK, result)
}

// Logout clears the token cookie. Bearer clients simply discard their token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, security.CreateDeleteCookie(r, security.TokenCookieName))
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated guardian
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())
	if guardian == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, guardian)
}
