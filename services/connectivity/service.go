package connectivity

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsetup/config"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/enum"
	mserrors "github.com/customeros/mailsetup/internal/errors"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/tracing"
)

const defaultTimeout = 30 * time.Second

// credentials is what one protocol leg logs in with. Exactly one of password and accessToken is set.
type credentials struct {
	username    string
	password    string
	accessToken string
}

type connectionTester struct {
	log          logger.Logger
	timeout      time.Duration
	oauthClients map[enum.AccountProvider]interfaces.OAuthClient
}

func NewConnectionTester(log logger.Logger, cfg *config.ConnectivityConfig, oauthClients map[enum.AccountProvider]interfaces.OAuthClient) interfaces.ConnectionTester {
	timeout := defaultTimeout
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	return &connectionTester{
		log:          log,
		timeout:      timeout,
		oauthClients: oauthClients,
	}
}

// Test logs in to the account's IMAP server and then its SMTP server.
func (t *connectionTester) Test(ctx context.Context, account *models.Account, identity models.Identity) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ConnectionTester.Test")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)
	tracing.TagProvider(span, account.Provider.String())
	span.SetTag(tracing.SpanTagIdentityId, identity.ID)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	imapCreds, smtpCreds, err := t.credentials(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := t.testImap(ctx, account.Settings, imapCreds); err != nil {
		err = errors.Wrapf(err, "IMAP %s:%d", account.Settings.ImapHost, account.Settings.ImapPort.Int())
		tracing.TraceErr(span, err)
		return err
	}

	if err := t.testSmtp(ctx, account.Settings, smtpCreds); err != nil {
		err = errors.Wrapf(err, "SMTP %s:%d", account.Settings.SmtpHost, account.Settings.SmtpPort.Int())
		tracing.TraceErr(span, err)
		return err
	}

	t.log.Infof("Account %s passed IMAP and SMTP login", account.EmailAddress)
	return nil
}

func (t *connectionTester) credentials(ctx context.Context, account *models.Account) (credentials, credentials, error) {
	settings := account.Settings
	imapCreds := credentials{username: firstNonEmpty(settings.ImapUsername, account.EmailAddress)}
	smtpCreds := credentials{username: firstNonEmpty(settings.SmtpUsername, settings.ImapUsername, account.EmailAddress)}

	if !account.Provider.IsOAuth() {
		imapCreds.password = settings.ImapPassword
		smtpCreds.password = settings.EffectiveSmtpPassword()
		return imapCreds, smtpCreds, nil
	}

	oauthClient, ok := t.oauthClients[account.Provider]
	if !ok {
		return imapCreds, smtpCreds, errors.Wrapf(mserrors.ErrUnsupportedProvider, "no OAuth client for %s", account.Provider)
	}
	if settings.RefreshToken == "" {
		return imapCreds, smtpCreds, errors.Errorf("%s account has no refresh_token", account.Provider)
	}

	accessToken, err := oauthClient.MailAccessToken(ctx, settings.RefreshToken)
	if err != nil {
		return imapCreds, smtpCreds, errors.Wrap(err, "mail access token")
	}
	imapCreds.accessToken = accessToken
	smtpCreds.accessToken = accessToken
	return imapCreds, smtpCreds, nil
}

func (t *connectionTester) dialer(ctx context.Context) *net.Dialer {
	dialer := &net.Dialer{
		Timeout:   t.timeout,
		KeepAlive: 30 * time.Second,
	}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	return dialer
}

func tlsConfig(host string, allowInsecure bool) *tls.Config {
	return &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: allowInsecure,
	}
}

func (t *connectionTester) testImap(ctx context.Context, settings models.ConnectionSettings, creds credentials) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ConnectionTester.testImap")
	defer span.Finish()
	span.LogKV("imap.host", settings.ImapHost, "imap.port", settings.ImapPort.Int(), "imap.security", string(settings.ImapSecurity))

	serverAddr := net.JoinHostPort(settings.ImapHost, fmt.Sprint(settings.ImapPort.Int()))
	tlsCfg := tlsConfig(settings.ImapHost, settings.ImapAllowInsecureSSL)

	var c *client.Client
	var err error
	if settings.ImapSecurity == enum.SecurityStartTLS {
		c, err = client.DialWithDialer(t.dialer(ctx), serverAddr)
	} else {
		c, err = client.DialWithDialerTLS(t.dialer(ctx), serverAddr, tlsCfg)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "connection error")
	}
	defer c.Logout()

	c.Timeout = t.timeout

	if settings.ImapSecurity == enum.SecurityStartTLS {
		if err := c.StartTLS(tlsCfg); err != nil {
			tracing.TraceErr(span, err)
			return errors.Wrap(err, "starttls error")
		}
	}

	if creds.accessToken != "" {
		err = c.Authenticate(newImapXoauth2(creds.username, creds.accessToken))
	} else {
		err = c.Login(creds.username, creds.password)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "login error for %s", creds.username)
	}
	return nil
}

func (t *connectionTester) testSmtp(ctx context.Context, settings models.ConnectionSettings, creds credentials) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ConnectionTester.testSmtp")
	defer span.Finish()
	span.LogKV("smtp.host", settings.SmtpHost, "smtp.port", settings.SmtpPort.Int(), "smtp.security", string(settings.SmtpSecurity))

	serverAddr := net.JoinHostPort(settings.SmtpHost, fmt.Sprint(settings.SmtpPort.Int()))
	tlsCfg := tlsConfig(settings.SmtpHost, settings.SmtpAllowInsecureSSL)

	var conn net.Conn
	var err error
	if settings.SmtpSecurity == enum.SecurityStartTLS {
		conn, err = t.dialer(ctx).DialContext(ctx, "tcp", serverAddr)
	} else {
		conn, err = tls.DialWithDialer(t.dialer(ctx), "tcp", serverAddr, tlsCfg)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "connection error")
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, settings.SmtpHost)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "greeting error")
	}
	defer c.Close()

	if settings.SmtpSecurity == enum.SecurityStartTLS {
		if err := c.StartTLS(tlsCfg); err != nil {
			tracing.TraceErr(span, err)
			return errors.Wrap(err, "starttls error")
		}
	}

	var auth smtp.Auth
	if creds.accessToken != "" {
		auth = newSmtpXoauth2(creds.username, creds.accessToken)
	} else {
		auth = smtp.PlainAuth("", creds.username, creds.password, settings.SmtpHost)
	}
	if err := c.Auth(auth); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "authentication error for %s", creds.username)
	}

	return c.Quit()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
