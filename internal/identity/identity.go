// Package identity derives the stable short account id.
package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/customeros/mailsetup/internal/models"
)

const idLength = 8

// mailContentFields are the only settings that decide which mailbox content gets fetched.
// Field order is part of the id.
type mailContentFields struct {
	ImapUsername string `json:"imap_username,omitempty"`
	ImapHost     string `json:"imap_host,omitempty"`
	SmtpUsername string `json:"smtp_username,omitempty"`
	SmtpHost     string `json:"smtp_host,omitempty"`
}

// ComputeID hashes the email address together with the host and username fields.
// Ports, security modes, passwords and tokens never influence the result.
func ComputeID(emailAddress string, settings models.ConnectionSettings) string {
	fields := mailContentFields{
		ImapUsername: settings.ImapUsername,
		ImapHost:     settings.ImapHost,
		SmtpUsername: settings.SmtpUsername,
		SmtpHost:     settings.SmtpHost,
	}

	var buf bytes.Buffer
	buf.WriteString(emailAddress)

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	// encoding a flat struct of strings cannot fail
	_ = encoder.Encode(fields)

	// Encode appends a newline
	payload := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:idLength]
}
