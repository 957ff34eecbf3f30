package interfaces

import (
	"context"

	"github.com/customeros/mailsetup/internal/models"
)

// ConnectionTester performs live IMAP and SMTP handshakes for an account.
type ConnectionTester interface {
	Test(ctx context.Context, account *models.Account, identity models.Identity) error
}

type AccountFinalizer interface {
	Finalize(ctx context.Context, account *models.Account, identity models.Identity) (*models.Account, error)
}
