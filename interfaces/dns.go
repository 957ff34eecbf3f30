package interfaces

import (
	"context"

	"github.com/customeros/mailsetup/internal/models"
)

type MxResolver interface {
	// LookupMX keeps the failure and its kind.
	LookupMX(ctx context.Context, domain string) models.MxResult
	// ResolveMX collapses any failure to an empty list.
	ResolveMX(ctx context.Context, domain string) []string
}
