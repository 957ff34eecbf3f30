package oauth

import (
	"net/http"

	"github.com/customeros/mailsetup/config"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/enum"
	"github.com/customeros/mailsetup/internal/logger"
)

type Clients map[enum.AccountProvider]interfaces.OAuthClient

// NewClients registers a client for every provider that has a client id configured.
func NewClients(log logger.Logger, cfg *config.OAuthConfig, httpClient *http.Client) Clients {
	clients := Clients{}
	if cfg == nil {
		return clients
	}
	if cfg.GmailClientID != "" {
		clients[enum.ProviderGmail] = NewGmailClient(log, cfg, httpClient)
	} else {
		log.Warn("GMAIL_CLIENT_ID is not set, Gmail sign-in is disabled")
	}
	if cfg.Office365ClientID != "" {
		clients[enum.ProviderOffice365] = NewOffice365Client(log, cfg, httpClient)
	} else {
		log.Warn("OFFICE365_CLIENT_ID is not set, Office365 sign-in is disabled")
	}
	return clients
}
