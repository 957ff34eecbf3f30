package autoconfig

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsetup/config"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/enum"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/tracing"
	"github.com/customeros/mailsetup/internal/utils"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxDocumentSize    = 1 << 20

	heuristicImapPort = 993
	heuristicSmtpPort = 587
)

type autoconfigFetcher struct {
	log        logger.Logger
	httpClient *http.Client
	ispdbURL   string
}

// candidateResult is the outcome of trying a single discovery endpoint.
type candidateResult struct {
	url      string
	settings models.ConnectionSettings
	err      error
}

func NewAutoconfigFetcher(log logger.Logger, cfg *config.AutoconfigConfig) interfaces.AutoconfigFetcher {
	timeout := defaultHTTPTimeout
	ispdbURL := DefaultISPDBURL
	if cfg != nil {
		if cfg.HTTPTimeout > 0 {
			timeout = cfg.HTTPTimeout
		}
		if cfg.ISPDBURL != "" {
			ispdbURL = cfg.ISPDBURL
		}
	}

	return &autoconfigFetcher{
		log:        log,
		httpClient: &http.Client{Timeout: timeout},
		ispdbURL:   ispdbURL,
	}
}

func (s *autoconfigFetcher) ResolveTemplate(ctx context.Context, emailAddress string, mxHosts []string) models.ConnectionSettings {
	return s.Resolve(ctx, emailAddress, mxHosts).Settings
}

// Resolve tries every candidate endpoint in order and stops at the first usable document.
// It never fails: when nothing answers, the heuristic template is returned.
func (s *autoconfigFetcher) Resolve(ctx context.Context, emailAddress string, mxHosts []string) models.TemplateResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AutoconfigFetcher.Resolve")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("emailAddress", emailAddress, "mxHosts", mxHosts)

	candidates := CandidateURLs(emailAddress, mxHosts, s.ispdbURL)

	result, ok := firstSuccess(candidates, func(url string) candidateResult {
		if ctx.Err() != nil {
			return candidateResult{url: url, err: ctx.Err()}
		}
		r := s.fetchCandidate(ctx, url, emailAddress)
		if r.err != nil {
			s.log.Debugf("Autoconfig candidate %s rejected: %v", url, r.err)
		}
		return r
	})
	if ok {
		span.LogKV("template.source", result.url)
		return models.TemplateResult{Settings: result.settings, Source: result.url}
	}

	span.LogKV("template.source", models.TemplateSourceHeuristic)
	return models.TemplateResult{
		Settings: HeuristicTemplate(emailAddress),
		Source:   models.TemplateSourceHeuristic,
	}
}

// firstSuccess folds the candidates left to right and short-circuits on the first success.
func firstSuccess(candidates []string, try func(string) candidateResult) (candidateResult, bool) {
	for _, candidate := range candidates {
		if result := try(candidate); result.err == nil {
			return result, true
		}
	}
	return candidateResult{}, false
}

func (s *autoconfigFetcher) fetchCandidate(ctx context.Context, url, emailAddress string) candidateResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return candidateResult{url: url, err: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return candidateResult{url: url, err: errors.Wrap(err, "fetch")}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return candidateResult{url: url, err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return candidateResult{url: url, err: errors.Wrap(err, "read body")}
	}

	settings, err := parseClientConfig(body, emailAddress)
	if err != nil {
		return candidateResult{url: url, err: err}
	}
	return candidateResult{url: url, settings: settings}
}

// HeuristicTemplate guesses imap.<domain> and smtp.<domain> with the usual ports.
func HeuristicTemplate(emailAddress string) models.ConnectionSettings {
	domain := utils.ExtractDomainFromEmail(emailAddress)
	return models.ConnectionSettings{
		ImapHost:             "imap." + domain,
		ImapPort:             heuristicImapPort,
		ImapUsername:         emailAddress,
		ImapSecurity:         enum.SecuritySSLTLS,
		ImapAllowInsecureSSL: false,
		SmtpHost:             "smtp." + domain,
		SmtpPort:             heuristicSmtpPort,
		SmtpUsername:         emailAddress,
		SmtpSecurity:         enum.SecurityStartTLS,
		SmtpAllowInsecureSSL: false,
	}
}

// MergeSettings lays the caller's settings over a template. Any field the caller set wins;
// the template fills the rest. smtp_password then falls back to imap_password.
func MergeSettings(template, caller models.ConnectionSettings) models.ConnectionSettings {
	merged := template

	mergeString(&merged.ImapHost, caller.ImapHost)
	mergePort(&merged.ImapPort, caller.ImapPort)
	mergeString(&merged.ImapUsername, caller.ImapUsername)
	mergeString(&merged.ImapPassword, caller.ImapPassword)
	if caller.ImapSecurity != "" {
		merged.ImapSecurity = caller.ImapSecurity
	}
	merged.ImapAllowInsecureSSL = merged.ImapAllowInsecureSSL || caller.ImapAllowInsecureSSL

	mergeString(&merged.SmtpHost, caller.SmtpHost)
	mergePort(&merged.SmtpPort, caller.SmtpPort)
	mergeString(&merged.SmtpUsername, caller.SmtpUsername)
	mergeString(&merged.SmtpPassword, caller.SmtpPassword)
	if caller.SmtpSecurity != "" {
		merged.SmtpSecurity = caller.SmtpSecurity
	}
	merged.SmtpAllowInsecureSSL = merged.SmtpAllowInsecureSSL || caller.SmtpAllowInsecureSSL

	mergeString(&merged.RefreshToken, caller.RefreshToken)
	mergeString(&merged.RefreshClientID, caller.RefreshClientID)

	merged.SmtpPassword = merged.EffectiveSmtpPassword()

	return merged
}

func mergeString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func mergePort(dst *models.Port, value models.Port) {
	if value != 0 {
		*dst = value
	}
}
