package interfaces

import (
	"context"

	"github.com/customeros/mailsetup/internal/models"
)

type ProvisioningAttemptRepository interface {
	Create(ctx context.Context, attempt *models.ProvisioningAttempt) error
	ListByEmailAddress(ctx context.Context, emailAddress string, limit int) ([]models.ProvisioningAttempt, error)
}
