package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailsetup/internal/enum"
	"github.com/customeros/mailsetup/internal/models"
)

type OAuthClient interface {
	Provider() enum.AccountProvider
	ClientID() string
	NewSession() (*models.OAuthSession, error)
	AuthorizationURL(session *models.OAuthSession) string
	ExchangeCode(ctx context.Context, session *models.OAuthSession, code string) (*models.TokenResponse, error)
	FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error)
	MailAccessToken(ctx context.Context, refreshToken string) (string, error)
}

type OAuthSessionStore interface {
	Save(session *models.OAuthSession)
	Take(id string) (*models.OAuthSession, error)
	Discard(id string)
	PurgeExpired(now time.Time) int
}
