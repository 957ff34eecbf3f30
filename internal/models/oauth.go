package models

import (
	"time"

	"github.com/customeros/mailsetup/internal/enum"
)

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
	IDToken      string `json:"id_token,omitempty"`
}

// Profile is the provider identity normalized across providers.
type Profile struct {
	EmailAddress string `json:"emailAddress"`
	Name         string `json:"name"`
}

// OAuthSession holds the state of one authorization attempt.
// The id doubles as the OAuth state parameter.
type OAuthSession struct {
	ID           string               `json:"id"`
	Provider     enum.AccountProvider `json:"provider"`
	CodeVerifier string               `json:"-"`
	CreatedAt    time.Time            `json:"createdAt"`
	ExpiresAt    time.Time            `json:"expiresAt"`
}

func (s *OAuthSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
