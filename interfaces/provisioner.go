package interfaces

import (
	"context"

	"github.com/customeros/mailsetup/internal/enum"
	"github.com/customeros/mailsetup/internal/models"
)

type ProvisionerService interface {
	ExpandAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	ProvisionAccount(ctx context.Context, account *models.Account, identity models.Identity) (*models.Account, error)
	FinalizeAccount(ctx context.Context, account *models.Account, identity models.Identity) (*models.Account, error)
	BeginOAuth(ctx context.Context, provider enum.AccountProvider, previousSessionID string) (*models.OAuthSession, string, error)
	CompleteOAuth(ctx context.Context, sessionID, code string, identity models.Identity) (*models.Account, error)
	ListAttempts(ctx context.Context, emailAddress string, limit int) ([]models.ProvisioningAttempt, error)
}
