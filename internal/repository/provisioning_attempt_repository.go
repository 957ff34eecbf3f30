package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/tracing"
)

type provisioningAttemptRepository struct {
	db *gorm.DB
}

func NewProvisioningAttemptRepository(db *gorm.DB) interfaces.ProvisioningAttemptRepository {
	return &provisioningAttemptRepository{db: db}
}

func (r *provisioningAttemptRepository) Create(ctx context.Context, attempt *models.ProvisioningAttempt) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProvisioningAttemptRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("emailAddress", attempt.EmailAddress, "status", attempt.Status.String())

	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "create provisioning attempt")
	}
	tracing.TagEntity(span, attempt.ID)
	return nil
}

func (r *provisioningAttemptRepository) ListByEmailAddress(ctx context.Context, emailAddress string, limit int) ([]models.ProvisioningAttempt, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProvisioningAttemptRepository.ListByEmailAddress")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("emailAddress", emailAddress, "limit", limit)

	var attempts []models.ProvisioningAttempt
	err := r.db.WithContext(ctx).
		Where("email_address = ?", emailAddress).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "list provisioning attempts")
	}
	return attempts, nil
}
