package models

import (
	"time"

	"github.com/customeros/mailsetup/internal/enum"
)

type Account struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	EmailAddress string               `json:"emailAddress"`
	Label        string               `json:"label,omitempty"`
	Provider     enum.AccountProvider `json:"provider"`
	Settings     ConnectionSettings   `json:"settings"`
	AuthedAt     *time.Time           `json:"authedAt,omitempty"`
}

// Clone returns a deep copy. Every pipeline step works on its own copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.AuthedAt != nil {
		authedAt := *a.AuthedAt
		clone.AuthedAt = &authedAt
	}
	return &clone
}

// Identity is the caller's session identity handed to the connectivity test.
type Identity struct {
	ID    string `json:"id"`
	Token string `json:"-"`
}
