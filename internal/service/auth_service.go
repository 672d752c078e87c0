package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"atamind/internal/models"
	"atamind/internal/repository"
	"atamind/internal/security"
	"atamind/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
)

// AuthResult is returned by every successful login
type AuthResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Guardian  *models.Guardian `json:"guardian"`
}

// AuthService handles guardian registration, login and token validation
type AuthService struct {
	guardianRepo *repository.GuardianRepository
	tokens       security.TokenService
}

// NewAuthService creates a new auth service
func NewAuthService(guardianRepo *repository.GuardianRepository, tokens security.TokenService) *AuthService {
	return &AuthService{
		guardianRepo: guardianRepo,
		tokens:       tokens,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new guardian account and logs it in
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	// Validate inputs
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}

	existing, err := s.guardianRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing guardian: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	guardian, err := s.guardianRepo.Create(ctx, email, passwordHash, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create guardian: %w", err)
	}

	return s.issue(guardian)
}

// Login authenticates a guardian with email and password
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	guardian, err := s.guardianRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get guardian: %w", err)
	}
	// OAuth-only accounts have no password to check against
	if guardian == nil || !guardian.HasPassword() {
		return nil, ErrInvalidCredentials
	}

	if !security.CheckPassword(password, guardian.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(guardian)
}

// Authenticate validates an access token and returns its guardian
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Guardian, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	guardian, err := s.guardianRepo.GetByID(ctx, claims.GuardianID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guardian: %w", err)
	}
	if guardian == nil {
		return nil, ErrUnauthorized
	}
	return guardian, nil
}

// OAuthLogin authenticates or creates a guardian using an OAuth provider
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email, name string) (*AuthResult, error) {
	if provider == "" || subject == "" {
		return nil, errors.New("missing oauth provider information")
	}
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	guardian, err := s.guardianRepo.GetByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup oauth guardian: %w", err)
	}
	if guardian != nil {
		return s.issue(guardian)
	}

	existing, err := s.guardianRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing guardian: %w", err)
	}
	if existing != nil {
		if existing.OAuthProvider != "" && existing.OAuthProvider != provider {
			return nil, ErrEmailTaken
		}
		if err := s.guardianRepo.LinkOAuth(ctx, existing.ID, provider, subject); err != nil {
			return nil, fmt.Errorf("failed to link oauth provider: %w", err)
		}
		existing.OAuthProvider = provider
		existing.OAuthSubject = subject
		return s.issue(existing)
	}

	if strings.TrimSpace(name) == "" {
		name = strings.Split(email, "@")[0]
	}
	guardian, err = s.guardianRepo.Create(ctx, email, "", name)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth guardian: %w", err)
	}
	if err := s.guardianRepo.LinkOAuth(ctx, guardian.ID, provider, subject); err != nil {
		return nil, fmt.Errorf("failed to link oauth provider: %w", err)
	}
	guardian.OAuthProvider = provider
	guardian.OAuthSubject = subject

	return s.issue(guardian)
}

func (s *AuthService) issue(guardian *models.Guardian) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.CreateToken(guardian.ID, guardian.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, Guardian: guardian}, nil
}
