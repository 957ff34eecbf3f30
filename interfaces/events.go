package interfaces

import (
	"context"

	"github.com/customeros/mailsetup/dto"
)

type EventPublisher interface {
	PublishAccountProvisioned(ctx context.Context, event dto.AccountProvisioned) error
	Close() error
}
