package errors

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"

	mserrors "github.com/customeros/mailsetup/internal/errors"
)

type MultiErrors struct {
	Errors map[string][]ErrorInfo
}

type ErrorInfo struct {
	Message  string
	RawError error
}

func NewMultiErrors() *MultiErrors {
	return &MultiErrors{
		Errors: make(map[string][]ErrorInfo),
	}
}

func (e *MultiErrors) Add(key, message string, err error) {
	e.Errors[key] = append(e.Errors[key], ErrorInfo{
		Message:  message,
		RawError: err,
	})
}

func (e *MultiErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *MultiErrors) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var parts []string
	for _, field := range fields {
		for _, err := range e.Errors[field] {
			parts = append(parts, fmt.Sprintf("%s: %s", field, err.Message))
		}
	}
	return strings.Join(parts, " | ")
}

// HTTPStatus maps a service error to the response status code.
func HTTPStatus(err error) int {
	var multiErrors *MultiErrors
	var validationErr *mserrors.ValidationError
	var upstreamErr *mserrors.UpstreamError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &multiErrors),
		errors.Is(err, mserrors.ErrInvalidEmail),
		errors.Is(err, mserrors.ErrInvalidPort):
		return http.StatusBadRequest
	case errors.Is(err, mserrors.ErrUnsupportedProvider):
		return http.StatusNotFound
	case errors.Is(err, mserrors.ErrOAuthSessionNotFound),
		errors.Is(err, mserrors.ErrOAuthSessionExpired):
		return http.StatusGone
	case errors.Is(err, mserrors.ErrMailboxlessIdentity),
		errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &upstreamErr),
		errors.Is(err, mserrors.ErrOAuthExchangeFailed),
		errors.Is(err, mserrors.ErrProfileFetchFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
