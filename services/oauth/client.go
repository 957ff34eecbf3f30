package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/customeros/mailsetup/internal/enum"
	mserrors "github.com/customeros/mailsetup/internal/errors"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/utils"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxResponseSize    = 1 << 20
	sessionIDPrefix    = "oauth"
	sessionIDSize      = 21
)

// provider holds what the Gmail and Office365 clients have in common.
type provider struct {
	name       string
	kind       enum.AccountProvider
	config     *oauth2.Config
	profileURL string
	httpClient *http.Client
}

func newHTTPClient(httpClient *http.Client) *http.Client {
	if httpClient != nil {
		return httpClient
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

func (p *provider) Provider() enum.AccountProvider {
	return p.kind
}

func (p *provider) ClientID() string {
	return p.config.ClientID
}

func (p *provider) newSession(codeVerifier string) *models.OAuthSession {
	return &models.OAuthSession{
		ID:           utils.GenerateNanoIDWithPrefix(sessionIDPrefix, sessionIDSize),
		Provider:     p.kind,
		CodeVerifier: codeVerifier,
		CreatedAt:    utils.Now(),
	}
}

func (p *provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// exchange runs the authorization code grant and maps provider failures to UpstreamError.
func (p *provider) exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*models.TokenResponse, error) {
	token, err := p.config.Exchange(p.clientContext(ctx), code, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, &mserrors.UpstreamError{
				Kind:       mserrors.ErrOAuthExchangeFailed,
				Provider:   p.name,
				Operation:  "OAuth Code exchange",
				StatusCode: retrieveErr.Response.StatusCode,
				StatusText: http.StatusText(retrieveErr.Response.StatusCode),
				Body:       string(retrieveErr.Body),
			}
		}
		return nil, errors.Wrapf(mserrors.ErrOAuthExchangeFailed, "%s: %v", p.name, err)
	}
	return tokenResponse(token), nil
}

func tokenResponse(token *oauth2.Token) *models.TokenResponse {
	response := &models.TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if !token.Expiry.IsZero() {
		response.ExpiresIn = int64(time.Until(token.Expiry).Round(time.Second).Seconds())
	}
	if scope, ok := token.Extra("scope").(string); ok {
		response.Scope = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		response.IDToken = idToken
	}
	return response
}

// getProfile performs a bearer authenticated GET and decodes the JSON body into out.
func (p *provider) getProfile(ctx context.Context, accessToken string, out interface{}) error {
	client := oauth2.NewClient(p.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return errors.Wrap(err, "build profile request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(mserrors.ErrProfileFetchFailed, "%s: %v", p.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errors.Wrap(err, "read profile response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &mserrors.UpstreamError{
			Kind:       mserrors.ErrProfileFetchFailed,
			Provider:   p.name,
			Operation:  "profile request",
			StatusCode: resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       string(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(mserrors.ErrProfileFetchFailed, "%s: decode profile: %v", p.name, err)
	}
	return nil
}
