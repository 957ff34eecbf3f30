package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailsetup/internal/enum"
	"github.com/customeros/mailsetup/internal/utils"
)

// ProvisioningAttempt records the outcome of one finalize run. It never stores credentials.
type ProvisioningAttempt struct {
	ID             string               `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID      string               `gorm:"column:account_id;type:varchar(16);index" json:"accountId"`
	IdentityID     string               `gorm:"column:identity_id;type:varchar(255);index" json:"identityId"`
	EmailAddress   string               `gorm:"column:email_address;type:varchar(255);index;not null" json:"emailAddress"`
	Provider       enum.AccountProvider `gorm:"column:provider;type:varchar(20);not null" json:"provider"`
	Status         enum.AttemptStatus   `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	ImapHost       string               `gorm:"column:imap_host;type:varchar(255)" json:"imapHost"`
	SmtpHost       string               `gorm:"column:smtp_host;type:varchar(255)" json:"smtpHost"`
	MxHosts        pq.StringArray       `gorm:"column:mx_hosts;type:text[]" json:"mxHosts"`
	TemplateSource string               `gorm:"column:template_source;type:varchar(512)" json:"templateSource"`
	ErrorMessage   string               `gorm:"column:error_message;type:text" json:"errorMessage"`
	CreatedAt      time.Time            `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (ProvisioningAttempt) TableName() string {
	return "provisioning_attempts"
}

func (p *ProvisioningAttempt) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = utils.GenerateNanoIDWithPrefix("attempt", 16)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.Now()
	}
	return nil
}
