package connectivity

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"net"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsetup/config"
	"github.com/customeros/mailsetup/interfaces"
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

type MockOAuthClient struct {
	mock.Mock
	interfaces.OAuthClient
}

func (m *MockOAuthClient) MailAccessToken(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

// scriptedServer answers one line-based protocol session per connection over TLS.
type scriptedServer struct {
	listener net.Listener
	mu       sync.Mutex
	lines    []string
}

func newScriptedServer(t *testing.T, greeting string, reply func(line string) (string, bool)) *scriptedServer {
	certServer := httptest.NewTLSServer(nil)
	certs := certServer.TLS.Certificates
	certServer.Close()

	listener, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: certs})
	require.NoError(t, err)
	s := &scriptedServer{listener: listener}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go s.serve(conn, greeting, reply)
		}
	}()
	return s
}

func (s *scriptedServer) serve(conn net.Conn, greeting string, reply func(line string) (string, bool)) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte(greeting)); err != nil {
		return
	}
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		s.mu.Lock()
		s.lines = append(s.lines, line)
		s.mu.Unlock()

		response, done := reply(line)
		if _, err := conn.Write([]byte(response)); err != nil || done {
			return
		}
	}
}

func (s *scriptedServer) hostPort(t *testing.T) (string, models.Port) {
	host, port, err := net.SplitHostPort(s.listener.Addr().String())
	require.NoError(t, err)
	n, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, models.Port(n)
}

func (s *scriptedServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.lines...)
}

func newImapServer(t *testing.T, accept func(line string) bool) *scriptedServer {
	return newScriptedServer(t, "* OK [CAPABILITY IMAP4rev1 SASL-IR AUTH=PLAIN AUTH=XOAUTH2] ready\r\n", func(line string) (string, bool) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "* BAD empty command\r\n", false
		}
		tag, command := fields[0], strings.ToUpper(fields[1])
		switch command {
		case "CAPABILITY":
			return "* CAPABILITY IMAP4rev1 SASL-IR AUTH=PLAIN AUTH=XOAUTH2\r\n" + tag + " OK CAPABILITY completed\r\n", false
		case "LOGIN", "AUTHENTICATE":
			if accept(line) {
				return tag + " OK authenticated\r\n", false
			}
			return tag + " NO [AUTHENTICATIONFAILED] invalid credentials\r\n", false
		case "LOGOUT":
			return "* BYE logging out\r\n" + tag + " OK LOGOUT completed\r\n", true
		}
		return tag + " BAD unknown command\r\n", false
	})
}

func newSmtpServer(t *testing.T, accept func(line string) bool) *scriptedServer {
	return newScriptedServer(t, "220 localhost ESMTP ready\r\n", func(line string) (string, bool) {
		command := strings.ToUpper(strings.Fields(line + " x")[0])
		switch command {
		case "EHLO":
			return "250-localhost\r\n250 AUTH PLAIN XOAUTH2\r\n", false
		case "AUTH":
			if accept(line) {
				return "235 2.7.0 Authentication successful\r\n", false
			}
			return "535 5.7.8 Authentication credentials invalid\r\n", false
		case "QUIT":
			return "221 2.0.0 Bye\r\n", true
		}
		return "502 5.5.2 Command not recognized\r\n", false
	})
}

func newTestTester(clients map[enum.AccountProvider]interfaces.OAuthClient) *connectionTester {
	return NewConnectionTester(getLogger(), &config.ConnectivityConfig{Timeout: 5 * time.Second}, clients).(*connectionTester)
}

func accountFor(t *testing.T, imapServer, smtpServer *scriptedServer) *models.Account {
	imapHost, imapPort := imapServer.hostPort(t)
	smtpHost, smtpPort := smtpServer.hostPort(t)
	return &models.Account{
		ID:           "1a2b3c4d",
		EmailAddress: "user@example.com",
		Provider:     enum.ProviderIMAP,
		Settings: models.ConnectionSettings{
			ImapHost:             imapHost,
			ImapPort:             imapPort,
			ImapUsername:         "user@example.com",
			ImapPassword:         "secret",
			ImapSecurity:         enum.SecuritySSLTLS,
			ImapAllowInsecureSSL: true,
			SmtpHost:             smtpHost,
			SmtpPort:             smtpPort,
			SmtpUsername:         "user@example.com",
			SmtpSecurity:         enum.SecuritySSLTLS,
			SmtpAllowInsecureSSL: true,
		},
	}
}

func TestConnectionTester_PasswordLogin(t *testing.T) {
	// Arrange
	imapServer := newImapServer(t, func(line string) bool { return strings.Contains(line, "secret") })
	expectedPlain := base64.StdEncoding.EncodeToString([]byte("\x00user@example.com\x00secret"))
	smtpServer := newSmtpServer(t, func(line string) bool { return strings.Contains(line, expectedPlain) })
	tester := newTestTester(nil)

	// Act
	err := tester.Test(context.Background(), accountFor(t, imapServer, smtpServer), models.Identity{ID: "identity-1"})

	// Assert
	require.NoError(t, err)
	assert.Contains(t, strings.Join(imapServer.received(), "\n"), "LOGIN")
	assert.Contains(t, strings.Join(smtpServer.received(), "\n"), "AUTH PLAIN "+expectedPlain)
}

func TestConnectionTester_ImapRejected(t *testing.T) {
	// Arrange
	imapServer := newImapServer(t, func(string) bool { return false })
	smtpServer := newSmtpServer(t, func(string) bool { return true })
	tester := newTestTester(nil)

	// Act
	err := tester.Test(context.Background(), accountFor(t, imapServer, smtpServer), models.Identity{})

	// Assert
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "IMAP "))
	assert.Empty(t, smtpServer.received())
}

func TestConnectionTester_SmtpRejected(t *testing.T) {
	// Arrange
	imapServer := newImapServer(t, func(string) bool { return true })
	smtpServer := newSmtpServer(t, func(string) bool { return false })
	tester := newTestTester(nil)

	// Act
	err := tester.Test(context.Background(), accountFor(t, imapServer, smtpServer), models.Identity{})

	// Assert
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "SMTP "))
	assert.Contains(t, err.Error(), "535")
}

func TestConnectionTester_OAuthAccountUsesXoauth2(t *testing.T) {
	// Arrange
	expected := base64.StdEncoding.EncodeToString(xoauth2InitialResponse("a@gmail.com", "mail-token"))
	imapServer := newImapServer(t, func(line string) bool { return strings.Contains(line, "XOAUTH2 "+expected) })
	smtpServer := newSmtpServer(t, func(line string) bool { return strings.Contains(line, "XOAUTH2 "+expected) })
	oauthClient := new(MockOAuthClient)
	oauthClient.On("MailAccessToken", mock.Anything, "rt").Return("mail-token", nil)
	tester := newTestTester(map[enum.AccountProvider]interfaces.OAuthClient{enum.ProviderGmail: oauthClient})

	account := accountFor(t, imapServer, smtpServer)
	account.Provider = enum.ProviderGmail
	account.EmailAddress = "a@gmail.com"
	account.Settings.ImapUsername = ""
	account.Settings.SmtpUsername = ""
	account.Settings.ImapPassword = ""
	account.Settings.RefreshToken = "rt"

	// Act
	err := tester.Test(context.Background(), account, models.Identity{})

	// Assert
	require.NoError(t, err)
	oauthClient.AssertExpectations(t)
}

func TestConnectionTester_OAuthProviderNotConfigured(t *testing.T) {
	// Arrange
	tester := newTestTester(nil)
	account := &models.Account{Provider: enum.ProviderOffice365, Settings: models.ConnectionSettings{RefreshToken: "rt"}}

	// Act
	err := tester.Test(context.Background(), account, models.Identity{})

	// Assert
	assert.True(t, errors.Is(err, mserrors.ErrUnsupportedProvider))
}

func TestConnectionTester_Unreachable(t *testing.T) {
	// Arrange
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().(*net.TCPAddr)
	_ = listener.Close()
	tester := newTestTester(nil)
	account := &models.Account{
		Provider: enum.ProviderIMAP,
		Settings: models.ConnectionSettings{
			ImapHost:     "127.0.0.1",
			ImapPort:     models.Port(addr.Port),
			ImapSecurity: enum.SecuritySSLTLS,
		},
	}

	// Act
	err = tester.Test(context.Background(), account, models.Identity{})

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection error")
}

func TestXoauth2InitialResponse(t *testing.T) {
	// Act
	mechanism, ir, err := newImapXoauth2("a@gmail.com", "tok").Start()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mechanism)
	assert.Equal(t, "user=a@gmail.com\x01auth=Bearer tok\x01\x01", string(ir))
}
