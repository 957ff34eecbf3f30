package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/customeros/mailsetup/internal/enum"
	"github.com/customeros/mailsetup/internal/models"
)

func exampleSettings() models.ConnectionSettings {
	return models.ConnectionSettings{
		ImapHost:     "imap.example.com",
		ImapPort:     993,
		ImapUsername: "user@example.com",
		ImapPassword: "hunter2",
		ImapSecurity: enum.SecuritySSLTLS,
		SmtpHost:     "smtp.example.com",
		SmtpPort:     587,
		SmtpUsername: "user@example.com",
		SmtpSecurity: enum.SecurityStartTLS,
	}
}

func TestComputeID_KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		settings models.ConnectionSettings
		expected string
	}{
		{
			name:     "all fields",
			email:    "user@example.com",
			settings: exampleSettings(),
			expected: "d698b21d",
		},
		{
			name:     "no fields",
			email:    "a@gmail.com",
			settings: models.ConnectionSettings{RefreshToken: "1//token"},
			expected: "701bb67a",
		},
		{
			name:  "html characters are not escaped",
			email: "user@example.com",
			settings: models.ConnectionSettings{
				ImapUsername: "a<b>&c@example.com",
				ImapHost:     "imap.example.com",
			},
			expected: "5c17b579",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeID(tt.email, tt.settings))
		})
	}
}

func TestComputeID_Deterministic(t *testing.T) {
	settings := exampleSettings()

	id := ComputeID("user@example.com", settings)

	assert.Len(t, id, 8)
	assert.Regexp(t, "^[0-9a-f]{8}$", id)
	assert.Equal(t, id, ComputeID("user@example.com", settings))
}

func TestComputeID_IgnoresNonContentFields(t *testing.T) {
	// Arrange
	base := exampleSettings()
	changed := base
	changed.ImapPort = 143
	changed.SmtpPort = 465
	changed.ImapSecurity = enum.SecurityStartTLS
	changed.SmtpSecurity = enum.SecuritySSLTLS
	changed.ImapPassword = "rotated"
	changed.SmtpPassword = "rotated"
	changed.ImapAllowInsecureSSL = true
	changed.RefreshToken = "refresh"
	changed.RefreshClientID = "client"

	// Act & Assert
	assert.Equal(t, ComputeID("user@example.com", base), ComputeID("user@example.com", changed))
}

func TestComputeID_ContentFieldsChangeID(t *testing.T) {
	base := exampleSettings()
	baseID := ComputeID("user@example.com", base)

	mutations := map[string]func(s *models.ConnectionSettings){
		"imap host":     func(s *models.ConnectionSettings) { s.ImapHost = "mail.example.com" },
		"imap username": func(s *models.ConnectionSettings) { s.ImapUsername = "user" },
		"smtp host":     func(s *models.ConnectionSettings) { s.SmtpHost = "mail.example.com" },
		"smtp username": func(s *models.ConnectionSettings) { s.SmtpUsername = "user" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			settings := base
			mutate(&settings)
			assert.NotEqual(t, baseID, ComputeID("user@example.com", settings))
		})
	}

	assert.NotEqual(t, baseID, ComputeID("other@example.com", base))
}
