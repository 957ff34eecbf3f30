package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// input errors
	ErrInvalidEmail        = errors.New("email address is not valid")
	ErrInvalidPort         = errors.New("port is out of range")
	ErrUnsupportedProvider = errors.New("provider is not supported")

	// oauth errors
	ErrOAuthSessionNotFound = errors.New("oauth session not found")
	ErrOAuthSessionExpired  = errors.New("oauth session expired")
	ErrOAuthExchangeFailed  = errors.New("oauth code exchange failed")
	ErrProfileFetchFailed   = errors.New("profile request failed")
	ErrMailboxlessIdentity  = errors.New("signed-in identity has no mailbox")
)

// ValidationError is returned when an assembled account fails the connectivity test.
type ValidationError struct {
	AccountID string
	Err       error
}

func NewValidationError(accountID string, err error) *ValidationError {
	return &ValidationError{AccountID: accountID, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("account %s failed validation: %v", e.AccountID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// UpstreamError carries the raw response of a failed provider call.
type UpstreamError struct {
	Kind       error
	Provider   string
	Operation  string
	StatusCode int
	StatusText string
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s returned %d %s: %s", e.Provider, e.Operation, e.StatusCode, e.StatusText, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Kind
}
