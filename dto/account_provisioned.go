package dto

import (
	"time"

	"github.com/customeros/mailsetup/internal/enum"
)

type AccountProvisioned struct {
	AccountId    string               `json:"accountId"`
	EmailAddress string               `json:"emailAddress"`
	Provider     enum.AccountProvider `json:"provider"`
	ImapHost     string               `json:"imapHost"`
	SmtpHost     string               `json:"smtpHost"`
	AuthedAt     time.Time            `json:"authedAt"`
}
