package models

import "time"

// Guardian is the account holder who owns child profiles and receives reports
type Guardian struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	OAuthProvider string    `json:"oauth_provider,omitempty"`
	OAuthSubject  string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasPassword reports whether the guardian can log in with a password
func (g *Guardian) HasPassword() bool {
	return g.PasswordHash != ""
}
