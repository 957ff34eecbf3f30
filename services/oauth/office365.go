package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

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

// Scopes under the mail protocol host are requested at authorization but never at code exchange.
const mailProtocolScopePrefix = "https://outlook.office.com/"

var Office365Scopes = []string{
	"user.read",
	"offline_access",
	"Contacts.ReadWrite",
	"Contacts.ReadWrite.Shared",
	"Calendars.ReadWrite",
	"Calendars.ReadWrite.Shared",
	"https://outlook.office.com/IMAP.AccessAsUser.All",
	"https://outlook.office.com/SMTP.Send",
}

type office365Client struct {
	provider
	log logger.Logger
}

type office365Profile struct {
	Mail              string `json:"mail"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func NewOffice365Client(log logger.Logger, cfg *config.OAuthConfig, httpClient *http.Client) interfaces.OAuthClient {
	return &office365Client{
		provider: provider{
			name: "Office365",
			kind: enum.ProviderOffice365,
			config: &oauth2.Config{
				ClientID:    cfg.Office365ClientID,
				RedirectURL: cfg.RedirectURI,
				Scopes:      Office365Scopes,
				Endpoint: oauth2.Endpoint{
					AuthURL:   cfg.Office365AuthURL,
					TokenURL:  cfg.Office365TokenURL,
					AuthStyle: oauth2.AuthStyleInParams,
				},
			},
			profileURL: cfg.Office365ProfileURL,
			httpClient: newHTTPClient(httpClient),
		},
		log: log,
	}
}

// ExchangeScopes is the scope list without the mail protocol scopes.
func ExchangeScopes() []string {
	scopes := make([]string, 0, len(Office365Scopes))
	for _, scope := range Office365Scopes {
		if strings.HasPrefix(scope, mailProtocolScopePrefix) {
			continue
		}
		scopes = append(scopes, scope)
	}
	return scopes
}

// MailProtocolScopes is what a refresh for an IMAP/SMTP token asks for.
func MailProtocolScopes() []string {
	scopes := []string{}
	for _, scope := range Office365Scopes {
		if strings.HasPrefix(scope, mailProtocolScopePrefix) {
			scopes = append(scopes, scope)
		}
	}
	return append(scopes, "offline_access")
}

// NewSession starts an authorization attempt with its own PKCE verifier.
func (c *office365Client) NewSession() (*models.OAuthSession, error) {
	return c.newSession(oauth2.GenerateVerifier()), nil
}

func (c *office365Client) AuthorizationURL(session *models.OAuthSession) string {
	return c.config.AuthCodeURL(session.ID,
		oauth2.S256ChallengeOption(session.CodeVerifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

func (c *office365Client) ExchangeCode(ctx context.Context, session *models.OAuthSession, code string) (*models.TokenResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Office365Client.ExchangeCode")
	defer span.Finish()
	tracing.SetDefaultExternalClientSpanTags(ctx, span)
	tracing.TagProvider(span, c.kind.String())

	if session == nil || session.CodeVerifier == "" {
		err := errors.Wrap(mserrors.ErrOAuthSessionNotFound, "office365 exchange needs the session's code verifier")
		tracing.TraceErr(span, err)
		return nil, err
	}

	token, err := c.exchange(ctx, code,
		oauth2.VerifierOption(session.CodeVerifier),
		oauth2.SetAuthURLParam("scope", strings.Join(ExchangeScopes(), " ")),
	)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("token.scope", token.Scope, "token.hasRefreshToken", token.RefreshToken != "")
	return token, nil
}

func (c *office365Client) FetchProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Office365Client.FetchProfile")
	defer span.Finish()
	tracing.SetDefaultExternalClientSpanTags(ctx, span)

	var profile office365Profile
	if err := c.getProfile(ctx, accessToken, &profile); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if strings.TrimSpace(profile.Mail) == "" {
		err := errors.Wrapf(mserrors.ErrMailboxlessIdentity, "Office365 account %q", profile.UserPrincipalName)
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &models.Profile{EmailAddress: strings.TrimSpace(profile.Mail), Name: profile.DisplayName}, nil
}

// MailAccessToken trades a refresh token for a token usable with IMAP and SMTP XOAUTH2.
func (c *office365Client) MailAccessToken(ctx context.Context, refreshToken string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Office365Client.MailAccessToken")
	defer span.Finish()
	tracing.SetDefaultExternalClientSpanTags(ctx, span)

	form := url.Values{}
	form.Set("client_id", c.config.ClientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("scope", strings.Join(MailProtocolScopes(), " "))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "build refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "refresh office365 access token")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "read refresh response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = &mserrors.UpstreamError{
			Kind:       mserrors.ErrOAuthExchangeFailed,
			Provider:   c.name,
			Operation:  "token refresh",
			StatusCode: resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       string(body),
		}
		c.log.Warnf("Office365 access token refresh failed: %v", err)
		tracing.TraceErr(span, err)
		return "", err
	}

	var token models.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "decode refresh response")
	}
	if token.AccessToken == "" {
		err = errors.New("office365 refresh response has no access_token")
		tracing.TraceErr(span, err)
		return "", err
	}
	return token.AccessToken, nil
}
