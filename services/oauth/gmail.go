package oauth

import (
	"context"
	"net/http"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/customeros/mailsetup/config"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/enum"
	mserrors "github.com/customeros/mailsetup/internal/errors"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/tracing"
)

var GmailScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://mail.google.com/",
	"https://www.googleapis.com/auth/contacts",
	"https://www.googleapis.com/auth/calendar",
}

type gmailClient struct {
	provider
	log logger.Logger
}

type gmailProfile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func NewGmailClient(log logger.Logger, cfg *config.OAuthConfig, httpClient *http.Client) interfaces.OAuthClient {
	return &gmailClient{
		provider: provider{
			name: "Gmail",
			kind: enum.ProviderGmail,
			config: &oauth2.Config{
				ClientID:     cfg.GmailClientID,
				ClientSecret: cfg.GmailClientSecret,
				RedirectURL:  cfg.RedirectURI,
				Scopes:       GmailScopes,
				Endpoint: oauth2.Endpoint{
					AuthURL:   cfg.GmailAuthURL,
					TokenURL:  cfg.GmailTokenURL,
					AuthStyle: oauth2.AuthStyleInParams,
				},
			},
			profileURL: cfg.GmailProfileURL,
			httpClient: newHTTPClient(httpClient),
		},
		log: log,
	}
}

func (c *gmailClient) NewSession() (*models.OAuthSession, error) {
	return c.newSession(""), nil
}

// AuthorizationURL asks for offline access and forces the account chooser and consent screen
// so a refresh token is always issued.
func (c *gmailClient) AuthorizationURL(session *models.OAuthSession) string {
	return c.config.AuthCodeURL(session.ID,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account consent"),
	)
}

func (c *gmailClient) ExchangeCode(ctx context.Context, session *models.OAuthSession, code string) (*models.TokenResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailClient.ExchangeCode")
	defer span.Finish()
	tracing.SetDefaultExternalClientSpanTags(ctx, span)
	tracing.TagProvider(span, c.kind.String())

	if session == nil {
		err := mserrors.ErrOAuthSessionNotFound
		tracing.TraceErr(span, err)
		return nil, err
	}

	token, err := c.exchange(ctx, code)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("token.scope", token.Scope, "token.hasRefreshToken", token.RefreshToken != "")
	return token, nil
}

func (c *gmailClient) FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailClient.FetchProfile")
	defer span.Finish()
	tracing.SetDefaultExternalClientSpanTags(ctx, span)

	var profile gmailProfile
	if err := c.getProfile(ctx, accessToken, &profile); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if profile.Email == "" {
		err := errors.Wrap(mserrors.ErrMailboxlessIdentity, "Gmail profile has no email")
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &models.Profile{EmailAddress: profile.Email, Name: profile.Name}, nil
}

func (c *gmailClient) MailAccessToken(ctx context.Context, refreshToken string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailClient.MailAccessToken")
	defer span.Finish()
	tracing.SetDefaultExternalClientSpanTags(ctx, span)

	token, err := c.config.TokenSource(c.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			err = &mserrors.UpstreamError{
				Kind:       mserrors.ErrOAuthExchangeFailed,
				Provider:   c.name,
				Operation:  "token refresh",
				StatusCode: retrieveErr.Response.StatusCode,
				StatusText: http.StatusText(retrieveErr.Response.StatusCode),
				Body:       string(retrieveErr.Body),
			}
		} else {
			err = errors.Wrap(err, "refresh gmail access token")
		}
		c.log.Warnf("Gmail access token refresh failed: %v", err)
		tracing.TraceErr(span, err)
		return "", err
	}
	return token.AccessToken, nil
}
