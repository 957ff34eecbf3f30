package services

import (
	"net/http"
	"time"

	"github.com/customeros/mailsetup/config"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/repository"
	"github.com/customeros/mailsetup/services/autoconfig"
	"github.com/customeros/mailsetup/services/connectivity"
	"github.com/customeros/mailsetup/services/dns"
	"github.com/customeros/mailsetup/services/events"
	"github.com/customeros/mailsetup/services/finalizer"
	"github.com/customeros/mailsetup/services/oauth"
	"github.com/customeros/mailsetup/services/provisioner"
)

const oauthHTTPTimeout = 30 * time.Second

type Services struct {
	MxResolver         interfaces.MxResolver
	AutoconfigFetcher  interfaces.AutoconfigFetcher
	OAuthClients       oauth.Clients
	OAuthSessions      interfaces.OAuthSessionStore
	ConnectionTester   interfaces.ConnectionTester
	AccountFinalizer   interfaces.AccountFinalizer
	EventPublisher     interfaces.EventPublisher
	ProvisionerService interfaces.ProvisionerService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	// events
	publisherConfig := &events.PublisherConfig{
		MessageTTL:          events.DefaultMessageTTL,
		MaxRetries:          events.DefaultMaxRetries,
		PublishTimeout:      events.DefaultPublishTimeout,
		ReconnectBackoff:    events.DefaultReconnectBackoff,
		MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
	}

	publisher, err := events.NewEventPublisher(cfg.AppConfig.RabbitMQURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	oauthClients := oauth.NewClients(log, cfg.OAuthConfig, &http.Client{Timeout: oauthHTTPTimeout})
	sessions := oauth.NewSessionStore(cfg.OAuthConfig.SessionTTL)
	tester := connectivity.NewConnectionTester(log, cfg.ConnectivityConfig, oauthClients)
	accountFinalizer := finalizer.NewAccountFinalizer(log, tester)
	mxResolver := dns.NewMxResolver(log, cfg.DNSConfig)
	autoconfigFetcher := autoconfig.NewAutoconfigFetcher(log, cfg.AutoconfigConfig)

	var attempts interfaces.ProvisioningAttemptRepository
	if repos != nil {
		attempts = repos.ProvisioningAttemptRepository
	}

	services := Services{
		MxResolver:        mxResolver,
		AutoconfigFetcher: autoconfigFetcher,
		OAuthClients:      oauthClients,
		OAuthSessions:     sessions,
		ConnectionTester:  tester,
		AccountFinalizer:  accountFinalizer,
		EventPublisher:    publisher,
		ProvisionerService: provisioner.NewProvisionerService(
			log,
			mxResolver,
			autoconfigFetcher,
			accountFinalizer,
			oauthClients,
			sessions,
			attempts,
			publisher,
		),
	}

	return &services, nil
}
