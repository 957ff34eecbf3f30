package finalizer

import (
	"context"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsetup/interfaces"
	mserrors "github.com/customeros/mailsetup/internal/errors"
	"github.com/customeros/mailsetup/internal/identity"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/tracing"
	"github.com/customeros/mailsetup/internal/utils"
)

type accountFinalizer struct {
	log    logger.Logger
	tester interfaces.ConnectionTester
	now    func() time.Time
}

func NewAccountFinalizer(log logger.Logger, tester interfaces.ConnectionTester) interfaces.AccountFinalizer {
	return &accountFinalizer{
		log:    log,
		tester: tester,
		now:    utils.Now,
	}
}

// Finalize normalizes a copy of the account, recomputes its id and runs the connectivity test.
// The returned account carries authedAt only when the test passed.
func (f *accountFinalizer) Finalize(ctx context.Context, account *models.Account, caller models.Identity) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AccountFinalizer.Finalize")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if account == nil {
		err := errors.New("account is required")
		tracing.TraceErr(span, err)
		return nil, err
	}

	finalized := account.Clone()
	finalized.AuthedAt = nil
	normalize(finalized)

	finalized.ID = identity.ComputeID(finalized.EmailAddress, finalized.Settings)
	tracing.TagEntity(span, finalized.ID)
	tracing.TagProvider(span, finalized.Provider.String())

	if err := validatePorts(finalized.Settings); err != nil {
		err = mserrors.NewValidationError(finalized.ID, err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	if utils.LooksLikeEmail(finalized.Label) {
		finalized.Label = finalized.EmailAddress
	}

	if err := f.tester.Test(ctx, finalized, caller); err != nil {
		f.log.Warnf("Account %s (%s) failed the connectivity test: %v", finalized.ID, finalized.EmailAddress, err)
		err = mserrors.NewValidationError(finalized.ID, err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	authedAt := f.now()
	finalized.AuthedAt = &authedAt
	span.LogKV("authedAt", authedAt.String())

	return finalized, nil
}

func normalize(account *models.Account) {
	account.Settings.ImapHost = strings.TrimSpace(account.Settings.ImapHost)
	account.Settings.SmtpHost = strings.TrimSpace(account.Settings.SmtpHost)
}

func validatePorts(settings models.ConnectionSettings) error {
	if !settings.ImapPort.Valid() {
		return errors.Wrapf(mserrors.ErrInvalidPort, "imap_port %d", settings.ImapPort.Int())
	}
	if !settings.SmtpPort.Valid() {
		return errors.Wrapf(mserrors.ErrInvalidPort, "smtp_port %d", settings.SmtpPort.Int())
	}
	return nil
}
