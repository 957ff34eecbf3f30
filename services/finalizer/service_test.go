package finalizer

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

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

type MockConnectionTester struct {
	mock.Mock
}

func (m *MockConnectionTester) Test(ctx context.Context, account *models.Account, identity models.Identity) error {
	args := m.Called(ctx, account, identity)
	return args.Error(0)
}

func exampleAccount() *models.Account {
	return &models.Account{
		ID:           "caller01",
		Name:         "User",
		EmailAddress: "user@example.com",
		Label:        "user@old.example.com",
		Provider:     enum.ProviderIMAP,
		Settings: models.ConnectionSettings{
			ImapHost:     "  mail.example.com ",
			ImapPort:     143,
			ImapUsername: "user",
			ImapPassword: "secret",
			ImapSecurity: enum.SecurityStartTLS,
			SmtpHost:     "smtp.mail.example.com\n",
			SmtpPort:     465,
			SmtpUsername: "user@example.com",
			SmtpSecurity: enum.SecuritySSLTLS,
		},
	}
}

func newTestFinalizer(tester *MockConnectionTester, now time.Time) *accountFinalizer {
	f := NewAccountFinalizer(getLogger(), tester).(*accountFinalizer)
	f.now = func() time.Time { return now }
	return f
}

func TestFinalize_Success(t *testing.T) {
	// Arrange
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tester := new(MockConnectionTester)
	caller := models.Identity{ID: "identity-1", Token: "token-1"}
	tester.On("Test", mock.Anything, mock.MatchedBy(func(a *models.Account) bool {
		return a.Settings.ImapHost == "mail.example.com" && a.AuthedAt == nil
	}), caller).Return(nil)
	f := newTestFinalizer(tester, now)
	account := exampleAccount()

	// Act
	finalized, err := f.Finalize(context.Background(), account, caller)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "b0a7ff66", finalized.ID)
	assert.Equal(t, "mail.example.com", finalized.Settings.ImapHost)
	assert.Equal(t, "smtp.mail.example.com", finalized.Settings.SmtpHost)
	assert.Equal(t, "user@example.com", finalized.Label)
	require.NotNil(t, finalized.AuthedAt)
	assert.Equal(t, now, *finalized.AuthedAt)
	assert.Equal(t, "caller01", account.ID)
	assert.Nil(t, account.AuthedAt)
	tester.AssertExpectations(t)
}

func TestFinalize_KeepsPlainLabel(t *testing.T) {
	// Arrange
	tester := new(MockConnectionTester)
	tester.On("Test", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f := newTestFinalizer(tester, time.Now().UTC())
	account := exampleAccount()
	account.Label = "Work"

	// Act
	finalized, err := f.Finalize(context.Background(), account, models.Identity{})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Work", finalized.Label)
}

func TestFinalize_TesterFailure(t *testing.T) {
	// Arrange
	tester := new(MockConnectionTester)
	testErr := errors.New("imap: authentication failed")
	tester.On("Test", mock.Anything, mock.Anything, mock.Anything).Return(testErr)
	f := newTestFinalizer(tester, time.Now().UTC())

	// Act
	finalized, err := f.Finalize(context.Background(), exampleAccount(), models.Identity{})

	// Assert
	assert.Nil(t, finalized)
	var validationErr *mserrors.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "b0a7ff66", validationErr.AccountID)
	assert.ErrorIs(t, err, testErr)
}

func TestFinalize_IdIsDeterministicAcrossFailures(t *testing.T) {
	// Arrange
	tester := new(MockConnectionTester)
	tester.On("Test", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()
	tester.On("Test", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	f := newTestFinalizer(tester, time.Now().UTC())

	// Act
	_, firstErr := f.Finalize(context.Background(), exampleAccount(), models.Identity{})
	finalized, err := f.Finalize(context.Background(), exampleAccount(), models.Identity{})

	// Assert
	var validationErr *mserrors.ValidationError
	require.True(t, errors.As(firstErr, &validationErr))
	require.NoError(t, err)
	assert.Equal(t, validationErr.AccountID, finalized.ID)
}

func TestFinalize_RejectsOutOfRangePort(t *testing.T) {
	// Arrange
	tester := new(MockConnectionTester)
	f := newTestFinalizer(tester, time.Now().UTC())
	account := exampleAccount()
	account.Settings.SmtpPort = 70000

	// Act
	_, err := f.Finalize(context.Background(), account, models.Identity{})

	// Assert
	assert.ErrorIs(t, err, mserrors.ErrInvalidPort)
	tester.AssertNotCalled(t, "Test", mock.Anything, mock.Anything, mock.Anything)
}
