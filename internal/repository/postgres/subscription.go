package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domainSub "github.com/billbridge/billbridge/internal/domain/subscription"
	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/postgres"
	"github.com/billbridge/billbridge/internal/types"
)

type subscriptionRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

func NewSubscriptionRepository(client postgres.IClient, log *logger.Logger) domainSub.Repository {
	return &subscriptionRepository{
		client: client,
		log:    log,
	}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *domainSub.Subscription) error {
	r.log.Debugw("creating subscription",
		"subscription_id", sub.ID,
		"stripe_subscription_id", sub.StripeSubscriptionID,
		"status", sub.Status,
	)

	if err := r.client.Querier(ctx).Omit("Plan", "PendingPlan").Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ierr.WithError(err).
				WithHint("Subscription already exists").
				WithReportableDetails(map[string]any{
					"stripe_subscription_id": sub.StripeSubscriptionID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*domainSub.Subscription, error) {
	var sub domainSub.Subscription
	err := r.client.Querier(ctx).
		Preload("Plan").
		Preload("PendingPlan").
		Where("id = ?", id).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domainSub.Subscription, error) {
	var sub domainSub.Subscription
	err := r.client.Querier(ctx).
		Preload("Plan").
		Preload("PendingPlan").
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription %s was not found", stripeSubscriptionID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListByCustomer(ctx context.Context, stripeCustomerID string) ([]*domainSub.Subscription, error) {
	var subs []*domainSub.Subscription
	err := r.client.Querier(ctx).
		Preload("Plan").
		Preload("PendingPlan").
		Where("stripe_customer_id = ?", stripeCustomerID).
		Order("created_at DESC").
		Find(&subs).Error
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list customer subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*domainSub.Subscription, error) {
	var subs []*domainSub.Subscription
	query := r.applyFilter(r.client.Querier(ctx), filter).
		Preload("Plan").
		Preload("PendingPlan").
		Order("created_at DESC")

	if !filter.IsUnlimited() {
		query = query.Offset(filter.GetOffset()).Limit(filter.GetLimit())
	}

	if err := query.Find(&subs).Error; err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *subscriptionRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	var count int64
	err := r.applyFilter(r.client.Querier(ctx), filter).
		Model(&domainSub.Subscription{}).
		Count(&count).Error
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return int(count), nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *domainSub.Subscription) error {
	r.log.Debugw("updating subscription",
		"subscription_id", sub.ID,
		"status", sub.Status,
	)

	sub.UpdatedAt = time.Now().UTC()
	// Select("*") so cleared pointers like pending_plan_id=NULL are written too
	result := r.client.Querier(ctx).Model(&domainSub.Subscription{}).
		Where("id = ?", sub.ID).
		Select("*").
		Omit("Plan", "PendingPlan").
		Updates(sub)
	if result.Error != nil {
		return ierr.WithError(result.Error).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if result.RowsAffected == 0 {
		return ierr.NewErrorf("subscription %s not found", sub.ID).
			WithHintf("Subscription with ID %s was not found", sub.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, id string) error {
	result := r.client.Querier(ctx).Where("id = ?", id).Delete(&domainSub.Subscription{})
	if result.Error != nil {
		return ierr.WithError(result.Error).
			WithHint("Failed to delete subscription").
			Mark(ierr.ErrDatabase)
	}
	if result.RowsAffected == 0 {
		return ierr.NewErrorf("subscription %s not found", id).
			WithHintf("Subscription with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) applyFilter(query *gorm.DB, filter *types.SubscriptionFilter) *gorm.DB {
	if filter == nil {
		return query
	}
	if filter.CustomerID != "" {
		query = query.Where("stripe_customer_id = ?", filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	return query
}
