package interfaces

import (
	"context"

	"github.com/customeros/mailsetup/internal/models"
)

type AutoconfigFetcher interface {
	Resolve(ctx context.Context, emailAddress string, mxHosts []string) models.TemplateResult
	ResolveTemplate(ctx context.Context, emailAddress string, mxHosts []string) models.ConnectionSettings
}
