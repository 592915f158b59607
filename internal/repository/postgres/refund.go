package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domainRefund "github.com/billbridge/billbridge/internal/domain/refund"
	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/postgres"
	"github.com/billbridge/billbridge/internal/types"
)

type refundRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

func NewRefundRepository(client postgres.IClient, log *logger.Logger) domainRefund.Repository {
	return &refundRepository{
		client: client,
		log:    log,
	}
}

func (r *refundRepository) Create(ctx context.Context, ref *domainRefund.Refund) error {
	r.log.Debugw("creating refund",
		"refund_id", ref.ID,
		"stripe_refund_id", ref.StripeRefundID,
		"amount", ref.Amount,
	)

	if err := r.client.Querier(ctx).Create(ref).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ierr.WithError(err).
				WithHint("Refund already recorded").
				WithReportableDetails(map[string]any{
					"stripe_refund_id": ref.StripeRefundID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create refund").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *refundRepository) Get(ctx context.Context, id string) (*domainRefund.Refund, error) {
	var ref domainRefund.Refund
	err := r.client.Querier(ctx).Where("id = ?", id).First(&ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ierr.WithError(err).
				WithHintf("Refund with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get refund").
			Mark(ierr.ErrDatabase)
	}
	return &ref, nil
}

func (r *refundRepository) GetByStripeRefundID(ctx context.Context, stripeRefundID string) (*domainRefund.Refund, error) {
	var ref domainRefund.Refund
	err := r.client.Querier(ctx).Where("stripe_refund_id = ?", stripeRefundID).First(&ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ierr.WithError(err).
				WithHintf("Refund %s was not found", stripeRefundID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get refund").
			Mark(ierr.ErrDatabase)
	}
	return &ref, nil
}

func (r *refundRepository) List(ctx context.Context, filter *types.RefundFilter) ([]*domainRefund.Refund, error) {
	var refunds []*domainRefund.Refund
	query := r.applyFilter(r.client.Querier(ctx), filter).
		Order("created_at DESC")

	if !filter.IsUnlimited() {
		query = query.Offset(filter.GetOffset()).Limit(filter.GetLimit())
	}

	if err := query.Find(&refunds).Error; err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list refunds").
			Mark(ierr.ErrDatabase)
	}
	return refunds, nil
}

func (r *refundRepository) Count(ctx context.Context, filter *types.RefundFilter) (int, error) {
	var count int64
	err := r.applyFilter(r.client.Querier(ctx), filter).
		Model(&domainRefund.Refund{}).
		Count(&count).Error
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count refunds").
			Mark(ierr.ErrDatabase)
	}
	return int(count), nil
}

func (r *refundRepository) Update(ctx context.Context, ref *domainRefund.Refund) error {
	r.log.Debugw("updating refund",
		"refund_id", ref.ID,
		"status", ref.Status,
	)

	ref.UpdatedAt = time.Now().UTC()
	result := r.client.Querier(ctx).Model(&domainRefund.Refund{}).
		Where("id = ?", ref.ID).
		Select("*").
		Updates(ref)
	if result.Error != nil {
		return ierr.WithError(result.Error).
			WithHint("Failed to update refund").
			Mark(ierr.ErrDatabase)
	}
	if result.RowsAffected == 0 {
		return ierr.NewErrorf("refund %s not found", ref.ID).
			WithHintf("Refund with ID %s was not found", ref.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *refundRepository) applyFilter(query *gorm.DB, filter *types.RefundFilter) *gorm.DB {
	if filter != nil && filter.StripePaymentIntentID != "" {
		query = query.Where("stripe_payment_intent_id = ?", filter.StripePaymentIntentID)
	}
	return query
}
