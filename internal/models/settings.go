package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/customeros/mailsetup/internal/enum"
)

// Port accepts both 993 and "993" on decode. Zero means unset.
type Port int

func (p *Port) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*p = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.Wrapf(err, "invalid port %q", s)
		}
		*p = Port(n)
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(err, "invalid port %s", string(data))
	}
	*p = Port(n)
	return nil
}

func (p Port) Int() int {
	return int(p)
}

func (p Port) Valid() bool {
	return p >= 0 && p <= 65535
}

// ConnectionSettings is the settings block of an account. Field names are the wire contract.
type ConnectionSettings struct {
	ImapHost             string            `json:"imap_host,omitempty"`
	ImapPort             Port              `json:"imap_port,omitempty"`
	ImapUsername         string            `json:"imap_username,omitempty"`
	ImapPassword         string            `json:"imap_password,omitempty"`
	ImapSecurity         enum.SecurityMode `json:"imap_security,omitempty"`
	ImapAllowInsecureSSL bool              `json:"imap_allow_insecure_ssl"`

	SmtpHost             string            `json:"smtp_host,omitempty"`
	SmtpPort             Port              `json:"smtp_port,omitempty"`
	SmtpUsername         string            `json:"smtp_username,omitempty"`
	SmtpPassword         string            `json:"smtp_password,omitempty"`
	SmtpSecurity         enum.SecurityMode `json:"smtp_security,omitempty"`
	SmtpAllowInsecureSSL bool              `json:"smtp_allow_insecure_ssl"`

	RefreshToken    string `json:"refresh_token,omitempty"`
	RefreshClientID string `json:"refresh_client_id,omitempty"`
}

// EffectiveSmtpPassword is smtp_password, or imap_password when smtp_password is unset.
func (s ConnectionSettings) EffectiveSmtpPassword() string {
	if s.SmtpPassword != "" {
		return s.SmtpPassword
	}
	return s.ImapPassword
}
