package autoconfig

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/customeros/mailsetup/internal/enum"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/utils"
)

// goquery parses with the HTML parser, which lowercases element and attribute names.
const (
	incomingServerSelector = `incomingserver[type="imap"]`
	outgoingServerSelector = `outgoingserver[type="smtp"]`
)

var (
	ErrMissingServer = errors.New("autoconfig document has no matching server block")
	ErrMissingField  = errors.New("autoconfig server block is incomplete")
)

type serverBlock struct {
	hostname   string
	port       int
	username   string
	socketType string
}

// parseClientConfig extracts IMAP and SMTP settings from an ISPDB style clientConfig document.
func parseClientConfig(body []byte, emailAddress string) (models.ConnectionSettings, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.ConnectionSettings{}, errors.Wrap(err, "parse autoconfig document")
	}

	imap, err := readServer(doc, incomingServerSelector)
	if err != nil {
		return models.ConnectionSettings{}, errors.Wrap(err, "imap")
	}
	smtp, err := readServer(doc, outgoingServerSelector)
	if err != nil {
		return models.ConnectionSettings{}, errors.Wrap(err, "smtp")
	}

	return models.ConnectionSettings{
		ImapHost:             imap.hostname,
		ImapPort:             models.Port(imap.port),
		ImapUsername:         expandUsername(imap.username, emailAddress),
		ImapSecurity:         enum.SecurityFromSocketType(imap.socketType),
		ImapAllowInsecureSSL: false,
		SmtpHost:             smtp.hostname,
		SmtpPort:             models.Port(smtp.port),
		SmtpUsername:         expandUsername(smtp.username, emailAddress),
		SmtpSecurity:         enum.SecurityFromSocketType(smtp.socketType),
		SmtpAllowInsecureSSL: false,
	}, nil
}

func readServer(doc *goquery.Document, selector string) (serverBlock, error) {
	server := doc.Find(selector).First()
	if server.Length() == 0 {
		return serverBlock{}, errors.Wrap(ErrMissingServer, selector)
	}

	field := func(name string) (string, bool) {
		sel := server.Find(name).First()
		if sel.Length() == 0 {
			return "", false
		}
		return strings.TrimSpace(sel.Text()), true
	}

	hostname, ok := field("hostname")
	if !ok || hostname == "" {
		return serverBlock{}, errors.Wrap(ErrMissingField, "hostname")
	}
	portText, ok := field("port")
	if !ok {
		return serverBlock{}, errors.Wrap(ErrMissingField, "port")
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port <= 0 || port > 65535 {
		return serverBlock{}, errors.Wrapf(ErrMissingField, "port %q", portText)
	}
	username, ok := field("username")
	if !ok {
		return serverBlock{}, errors.Wrap(ErrMissingField, "username")
	}
	socketType, ok := field("sockettype")
	if !ok {
		return serverBlock{}, errors.Wrap(ErrMissingField, "socketType")
	}

	return serverBlock{
		hostname:   hostname,
		port:       port,
		username:   username,
		socketType: socketType,
	}, nil
}

func expandUsername(template, emailAddress string) string {
	replacer := strings.NewReplacer(
		"%EMAILADDRESS%", emailAddress,
		"%EMAILLOCALPART%", utils.ExtractLocalPartFromEmail(emailAddress),
		"%EMAILDOMAIN%", utils.ExtractDomainFromEmail(emailAddress),
	)
	return replacer.Replace(template)
}
