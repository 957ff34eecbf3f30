package provisioner

import (
	"context"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsetup/dto"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/enum"
	mserrors "github.com/customeros/mailsetup/internal/errors"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/tracing"
	"github.com/customeros/mailsetup/internal/utils"
	"github.com/customeros/mailsetup/services/autoconfig"
)

const (
	defaultAttemptsLimit = 20
	maxAttemptsLimit     = 100
)

type provisionerService struct {
	log          logger.Logger
	mxResolver   interfaces.MxResolver
	autoconfig   interfaces.AutoconfigFetcher
	finalizer    interfaces.AccountFinalizer
	oauthClients map[enum.AccountProvider]interfaces.OAuthClient
	sessions     interfaces.OAuthSessionStore
	attempts     interfaces.ProvisioningAttemptRepository
	publisher    interfaces.EventPublisher
}

// discovery is what the expansion step learned about a domain.
type discovery struct {
	mxHosts        []string
	templateSource string
}

func NewProvisionerService(
	log logger.Logger,
	mxResolver interfaces.MxResolver,
	autoconfigFetcher interfaces.AutoconfigFetcher,
	finalizer interfaces.AccountFinalizer,
	oauthClients map[enum.AccountProvider]interfaces.OAuthClient,
	sessions interfaces.OAuthSessionStore,
	attempts interfaces.ProvisioningAttemptRepository,
	publisher interfaces.EventPublisher,
) interfaces.ProvisionerService {
	return &provisionerService{
		log:          log,
		mxResolver:   mxResolver,
		autoconfig:   autoconfigFetcher,
		finalizer:    finalizer,
		oauthClients: oauthClients,
		sessions:     sessions,
		attempts:     attempts,
		publisher:    publisher,
	}
}

// ExpandAccount merges the discovered template for the account's domain under the caller's settings.
// The account is not validated.
func (s *provisionerService) ExpandAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProvisionerService.ExpandAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	prepared, err := prepareAccount(account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	expanded, found := s.expand(ctx, prepared)
	span.LogKV("templateSource", found.templateSource, "mxHosts", strings.Join(found.mxHosts, ","))
	return expanded, nil
}

// ProvisionAccount expands and finalizes a password based IMAP account.
func (s *provisionerService) ProvisionAccount(ctx context.Context, account *models.Account, identity models.Identity) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProvisionerService.ProvisionAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	prepared, err := prepareAccount(account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if prepared.Provider != enum.ProviderIMAP {
		err = errors.Wrapf(mserrors.ErrUnsupportedProvider, "%s accounts are provisioned through OAuth", prepared.Provider)
		tracing.TraceErr(span, err)
		return nil, err
	}

	expanded, found := s.expand(ctx, prepared)
	return s.finalize(ctx, expanded, identity, found)
}

// FinalizeAccount validates an account whose settings the caller already reviewed.
func (s *provisionerService) FinalizeAccount(ctx context.Context, account *models.Account, identity models.Identity) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProvisionerService.FinalizeAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	prepared, err := prepareAccount(account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return s.finalize(ctx, prepared, identity, discovery{})
}

// BeginOAuth starts a new authorization attempt. A previous attempt of the same caller is dropped
// together with its PKCE verifier.
func (s *provisionerService) BeginOAuth(ctx context.Context, provider enum.AccountProvider, previousSessionID string) (*models.OAuthSession, string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProvisionerService.BeginOAuth")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagProvider(span, provider.String())

	client, err := s.oauthClient(provider)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, "", err
	}

	if previousSessionID != "" {
		s.sessions.Discard(previousSessionID)
	}

	session, err := client.NewSession()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, "", errors.Wrap(err, "new oauth session")
	}
	s.sessions.Save(session)
	tracing.TagEntity(span, session.ID)

	return session, client.AuthorizationURL(session), nil
}

// CompleteOAuth exchanges the authorization code of a session and provisions the signed-in mailbox.
func (s *provisionerService) CompleteOAuth(ctx context.Context, sessionID, code string, identity models.Identity) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProvisionerService.CompleteOAuth")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, sessionID)

	session, err := s.sessions.Take(sessionID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagProvider(span, session.Provider.String())

	client, err := s.oauthClient(session.Provider)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	token, err := client.ExchangeCode(ctx, session, code)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if token.RefreshToken == "" {
		s.log.Warnf("%s code exchange for session %s returned no refresh token", session.Provider, session.ID)
	}

	profile, err := client.FetchProfile(ctx, token.AccessToken)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	account, err := prepareAccount(&models.Account{
		Name:         profile.Name,
		EmailAddress: profile.EmailAddress,
		Provider:     session.Provider,
		Settings: models.ConnectionSettings{
			RefreshToken:    token.RefreshToken,
			RefreshClientID: client.ClientID(),
		},
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	expanded, found := s.expand(ctx, account)
	return s.finalize(ctx, expanded, identity, found)
}

func (s *provisionerService) ListAttempts(ctx context.Context, emailAddress string, limit int) ([]models.ProvisioningAttempt, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProvisionerService.ListAttempts")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if s.attempts == nil {
		return []models.ProvisioningAttempt{}, nil
	}

	cleanEmail, err := validateEmail(emailAddress)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if limit <= 0 {
		limit = defaultAttemptsLimit
	}
	if limit > maxAttemptsLimit {
		limit = maxAttemptsLimit
	}

	attempts, err := s.attempts.ListByEmailAddress(ctx, cleanEmail, limit)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attempts, nil
}

func (s *provisionerService) oauthClient(provider enum.AccountProvider) (interfaces.OAuthClient, error) {
	client, ok := s.oauthClients[provider]
	if !ok {
		return nil, errors.Wrapf(mserrors.ErrUnsupportedProvider, "no OAuth client configured for %q", provider)
	}
	return client, nil
}

// expand runs MX discovery and the autoconfig chain on a clone of the account.
func (s *provisionerService) expand(ctx context.Context, account *models.Account) (*models.Account, discovery) {
	expanded := account.Clone()

	domain := utils.ExtractDomainFromEmail(expanded.EmailAddress)
	mxHosts := s.mxResolver.ResolveMX(ctx, domain)
	template := s.autoconfig.Resolve(ctx, expanded.EmailAddress, mxHosts)

	expanded.Settings = autoconfig.MergeSettings(template.Settings, expanded.Settings)
	s.log.Debugf("Expanded %s from %s", expanded.EmailAddress, template.Source)

	return expanded, discovery{mxHosts: mxHosts, templateSource: template.Source}
}

func (s *provisionerService) finalize(ctx context.Context, account *models.Account, identity models.Identity, found discovery) (*models.Account, error) {
	finalized, err := s.finalizer.Finalize(ctx, account, identity)
	s.recordAttempt(ctx, account, finalized, identity, found, err)
	if err != nil {
		return nil, err
	}

	s.publishProvisioned(ctx, finalized)
	s.log.Infof("Provisioned %s account %s (%s)", finalized.Provider, finalized.ID, finalized.EmailAddress)
	return finalized, nil
}

// recordAttempt stores the non-secret outcome of a finalize run. Failures are only logged.
func (s *provisionerService) recordAttempt(ctx context.Context, account, finalized *models.Account, identity models.Identity, found discovery, finalizeErr error) {
	if s.attempts == nil {
		return
	}

	attempt := &models.ProvisioningAttempt{
		IdentityID:     identity.ID,
		EmailAddress:   account.EmailAddress,
		Provider:       account.Provider,
		Status:         enum.AttemptSucceeded,
		ImapHost:       account.Settings.ImapHost,
		SmtpHost:       account.Settings.SmtpHost,
		MxHosts:        found.mxHosts,
		TemplateSource: found.templateSource,
	}
	if finalized != nil {
		attempt.AccountID = finalized.ID
	}
	if finalizeErr != nil {
		attempt.Status = enum.AttemptFailed
		attempt.ErrorMessage = finalizeErr.Error()
		var validationErr *mserrors.ValidationError
		if errors.As(finalizeErr, &validationErr) {
			attempt.AccountID = validationErr.AccountID
		}
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.log.Errorf("Failed to record provisioning attempt for %s: %v", account.EmailAddress, err)
	}
}

func (s *provisionerService) publishProvisioned(ctx context.Context, account *models.Account) {
	if s.publisher == nil || account.AuthedAt == nil {
		return
	}

	err := s.publisher.PublishAccountProvisioned(ctx, dto.AccountProvisioned{
		AccountId:    account.ID,
		EmailAddress: account.EmailAddress,
		Provider:     account.Provider,
		ImapHost:     account.Settings.ImapHost,
		SmtpHost:     account.Settings.SmtpHost,
		AuthedAt:     *account.AuthedAt,
	})
	if err != nil {
		s.log.Errorf("Failed to publish AccountProvisioned for %s: %v", account.ID, err)
	}
}

// prepareAccount returns a clone with a validated, cleaned email address and a known provider.
func prepareAccount(account *models.Account) (*models.Account, error) {
	if account == nil {
		return nil, errors.Wrap(mserrors.ErrInvalidEmail, "account is required")
	}

	prepared := account.Clone()
	cleanEmail, err := validateEmail(prepared.EmailAddress)
	if err != nil {
		return nil, err
	}
	prepared.EmailAddress = cleanEmail

	if prepared.Provider == "" {
		prepared.Provider = enum.ProviderIMAP
	}
	if _, ok := enum.GetAccountProvider(prepared.Provider.String()); !ok {
		return nil, errors.Wrapf(mserrors.ErrUnsupportedProvider, "%q", prepared.Provider)
	}
	return prepared, nil
}

func validateEmail(emailAddress string) (string, error) {
	validation := mailvalidate.ValidateEmailSyntax(strings.TrimSpace(emailAddress))
	if !validation.IsValid {
		return "", errors.Wrapf(mserrors.ErrInvalidEmail, "%q", emailAddress)
	}
	return validation.CleanEmail, nil
}
