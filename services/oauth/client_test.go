package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsetup/config"
	"github.com/customeros/mailsetup/internal/enum"
	mserrors "github.com/customeros/mailsetup/internal/errors"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type providerServer struct {
	*httptest.Server
	tokenForm   url.Values
	tokenStatus int
	tokenBody   string
	profileAuth string
	profileBody string
}

func newProviderServer(t *testing.T) *providerServer {
	s := &providerServer{tokenStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		s.tokenForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.tokenStatus)
		_, _ = w.Write([]byte(s.tokenBody))
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		s.profileAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s.profileBody))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *providerServer) oauthConfig() *config.OAuthConfig {
	return &config.OAuthConfig{
		RedirectURI:         "http://127.0.0.1:12141",
		GmailClientID:       "gmail-client",
		GmailClientSecret:   "gmail-secret",
		GmailAuthURL:        s.URL + "/auth",
		GmailTokenURL:       s.URL + "/token",
		GmailProfileURL:     s.URL + "/me",
		Office365ClientID:   "office-client",
		Office365AuthURL:    s.URL + "/authorize",
		Office365TokenURL:   s.URL + "/token",
		Office365ProfileURL: s.URL + "/me",
	}
}

func TestGmailClient_AuthorizationURL(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	client := NewGmailClient(getLogger(), server.oauthConfig(), server.Client())
	session, err := client.NewSession()
	require.NoError(t, err)

	// Act
	authURL, err := url.Parse(client.AuthorizationURL(session))

	// Assert
	require.NoError(t, err)
	query := authURL.Query()
	assert.Equal(t, "offline", query.Get("access_type"))
	assert.Equal(t, "select_account consent", query.Get("prompt"))
	assert.Equal(t, "gmail-client", query.Get("client_id"))
	assert.Equal(t, "http://127.0.0.1:12141", query.Get("redirect_uri"))
	assert.Equal(t, session.ID, query.Get("state"))
	assert.Equal(t, strings.Join(GmailScopes, " "), query.Get("scope"))
	assert.Empty(t, query.Get("code_challenge"))
}

func TestGmailClient_ExchangeCode(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	server.tokenBody = `{"access_token":"at","refresh_token":"rt","expires_in":3599,"scope":"https://mail.google.com/","token_type":"Bearer"}`
	client := NewGmailClient(getLogger(), server.oauthConfig(), server.Client())
	session, _ := client.NewSession()

	// Act
	token, err := client.ExchangeCode(context.Background(), session, "code-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "rt", token.RefreshToken)
	assert.Equal(t, "https://mail.google.com/", token.Scope)
	assert.InDelta(t, 3599, token.ExpiresIn, 5)
	assert.Equal(t, "authorization_code", server.tokenForm.Get("grant_type"))
	assert.Equal(t, "code-1", server.tokenForm.Get("code"))
	assert.Equal(t, "gmail-client", server.tokenForm.Get("client_id"))
	assert.Equal(t, "gmail-secret", server.tokenForm.Get("client_secret"))
	assert.Equal(t, "http://127.0.0.1:12141", server.tokenForm.Get("redirect_uri"))
}

func TestGmailClient_ExchangeCode_EmbedsUpstreamError(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	server.tokenStatus = http.StatusBadRequest
	server.tokenBody = `{"error":"invalid_grant"}`
	client := NewGmailClient(getLogger(), server.oauthConfig(), server.Client())
	session, _ := client.NewSession()

	// Act
	_, err := client.ExchangeCode(context.Background(), session, "stale")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, mserrors.ErrOAuthExchangeFailed))
	assert.Contains(t, err.Error(), "400 Bad Request")
	assert.Contains(t, err.Error(), `{"error":"invalid_grant"}`)
}

func TestGmailClient_FetchProfile(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	server.profileBody = `{"email":"a@gmail.com","name":"A"}`
	client := NewGmailClient(getLogger(), server.oauthConfig(), server.Client())

	// Act
	profile, err := client.FetchProfile(context.Background(), "at")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, &models.Profile{EmailAddress: "a@gmail.com", Name: "A"}, profile)
	assert.Equal(t, "Bearer at", server.profileAuth)
}

func TestGmailClient_MailAccessToken(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	server.tokenBody = `{"access_token":"fresh","expires_in":3599,"token_type":"Bearer"}`
	client := NewGmailClient(getLogger(), server.oauthConfig(), server.Client())

	// Act
	accessToken, err := client.MailAccessToken(context.Background(), "rt")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "fresh", accessToken)
	assert.Equal(t, "refresh_token", server.tokenForm.Get("grant_type"))
	assert.Equal(t, "rt", server.tokenForm.Get("refresh_token"))
}

func TestOffice365Client_AuthorizationURL_UsesSessionChallenge(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	client := NewOffice365Client(getLogger(), server.oauthConfig(), server.Client())
	session, err := client.NewSession()
	require.NoError(t, err)

	// Act
	authURL, err := url.Parse(client.AuthorizationURL(session))

	// Assert
	require.NoError(t, err)
	query := authURL.Query()
	digest := sha256.Sum256([]byte(session.CodeVerifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(digest[:]), query.Get("code_challenge"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Equal(t, session.ID, query.Get("state"))
	assert.Contains(t, query.Get("scope"), "https://outlook.office.com/IMAP.AccessAsUser.All")
	assert.Contains(t, query.Get("scope"), "https://outlook.office.com/SMTP.Send")
	assert.NotContains(t, query.Get("code_challenge"), "=")
}

func TestOffice365Client_NewSession_FreshVerifier(t *testing.T) {
	// Arrange
	client := NewOffice365Client(getLogger(), &config.OAuthConfig{Office365ClientID: "office-client"}, nil)

	// Act
	first, _ := client.NewSession()
	second, _ := client.NewSession()

	// Assert
	assert.NotEmpty(t, first.CodeVerifier)
	assert.NotEqual(t, first.CodeVerifier, second.CodeVerifier)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, enum.ProviderOffice365, first.Provider)
}

func TestOffice365Client_ExchangeCode(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	server.tokenBody = `{"access_token":"at","refresh_token":"rt","expires_in":3600,"scope":"User.Read","token_type":"Bearer"}`
	client := NewOffice365Client(getLogger(), server.oauthConfig(), server.Client())
	session, _ := client.NewSession()

	// Act
	token, err := client.ExchangeCode(context.Background(), session, "code-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "rt", token.RefreshToken)
	assert.Equal(t, session.CodeVerifier, server.tokenForm.Get("code_verifier"))
	assert.Equal(t, "office-client", server.tokenForm.Get("client_id"))
	assert.Equal(t, strings.Join(ExchangeScopes(), " "), server.tokenForm.Get("scope"))
	assert.NotContains(t, server.tokenForm.Get("scope"), "outlook.office.com")
	assert.Contains(t, server.tokenForm.Get("scope"), "offline_access")
}

func TestOffice365Client_ExchangeCode_RequiresVerifier(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	client := NewOffice365Client(getLogger(), server.oauthConfig(), server.Client())

	// Act
	_, err := client.ExchangeCode(context.Background(), &models.OAuthSession{ID: "oauth-x"}, "code-1")

	// Assert
	assert.True(t, errors.Is(err, mserrors.ErrOAuthSessionNotFound))
	assert.Nil(t, server.tokenForm)
}

func TestOffice365Client_FetchProfile_EmptyMail(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	server.profileBody = `{"mail":null,"displayName":"Guest","userPrincipalName":"guest#EXT#@tenant.onmicrosoft.com"}`
	client := NewOffice365Client(getLogger(), server.oauthConfig(), server.Client())

	// Act
	profile, err := client.FetchProfile(context.Background(), "at")

	// Assert
	assert.Nil(t, profile)
	assert.True(t, errors.Is(err, mserrors.ErrMailboxlessIdentity))
	assert.Contains(t, err.Error(), "guest#EXT#@tenant.onmicrosoft.com")
}

func TestOffice365Client_FetchProfile(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	server.profileBody = `{"mail":"b@contoso.com","displayName":"B"}`
	client := NewOffice365Client(getLogger(), server.oauthConfig(), server.Client())

	// Act
	profile, err := client.FetchProfile(context.Background(), "at")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "b@contoso.com", profile.EmailAddress)
	assert.Equal(t, "B", profile.Name)
}

func TestOffice365Client_MailAccessToken(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	server.tokenBody = `{"access_token":"imap-token","expires_in":3600,"token_type":"Bearer"}`
	client := NewOffice365Client(getLogger(), server.oauthConfig(), server.Client())

	// Act
	accessToken, err := client.MailAccessToken(context.Background(), "rt")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "imap-token", accessToken)
	assert.Equal(t, "refresh_token", server.tokenForm.Get("grant_type"))
	assert.Equal(t, "https://outlook.office.com/IMAP.AccessAsUser.All https://outlook.office.com/SMTP.Send offline_access", server.tokenForm.Get("scope"))
}

func TestOffice365Client_MailAccessToken_UpstreamError(t *testing.T) {
	// Arrange
	server := newProviderServer(t)
	server.tokenStatus = http.StatusUnauthorized
	server.tokenBody = `{"error":"invalid_client"}`
	client := NewOffice365Client(getLogger(), server.oauthConfig(), server.Client())

	// Act
	_, err := client.MailAccessToken(context.Background(), "rt")

	// Assert
	var upstreamErr *mserrors.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.StatusCode)
	assert.Equal(t, `{"error":"invalid_client"}`, upstreamErr.Body)
}

func TestNewClients_OnlyConfiguredProviders(t *testing.T) {
	// Act
	clients := NewClients(getLogger(), &config.OAuthConfig{GmailClientID: "gmail-client"}, nil)

	// Assert
	assert.Len(t, clients, 1)
	assert.Equal(t, "gmail-client", clients[enum.ProviderGmail].ClientID())
	_, ok := clients[enum.ProviderOffice365]
	assert.False(t, ok)
}
