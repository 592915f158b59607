package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domainPlan "github.com/billbridge/billbridge/internal/domain/plan"
	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/postgres"
	"github.com/billbridge/billbridge/internal/types"
)

type planRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

func NewPlanRepository(client postgres.IClient, log *logger.Logger) domainPlan.Repository {
	return &planRepository{
		client: client,
		log:    log,
	}
}

func (r *planRepository) Create(ctx context.Context, p *domainPlan.Plan) error {
	r.log.Debugw("creating plan",
		"plan_id", p.ID,
		"name", p.Name,
		"stripe_price_id", p.StripePriceID,
	)

	if err := r.client.Querier(ctx).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ierr.WithError(err).
				WithHint("Plan with this price already exists").
				WithReportableDetails(map[string]any{
					"stripe_price_id": p.StripePriceID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create plan").
			WithReportableDetails(map[string]any{
				"plan_id": p.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *planRepository) Get(ctx context.Context, id string) (*domainPlan.Plan, error) {
	var p domainPlan.Plan
	err := r.client.Querier(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ierr.WithError(err).
				WithHintf("Plan with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *planRepository) GetByStripePriceID(ctx context.Context, stripePriceID string) (*domainPlan.Plan, error) {
	var p domainPlan.Plan
	err := r.client.Querier(ctx).Where("stripe_price_id = ?", stripePriceID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ierr.WithError(err).
				WithHintf("Plan with price %s was not found", stripePriceID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan by price").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *planRepository) List(ctx context.Context, filter *types.PlanFilter) ([]*domainPlan.Plan, error) {
	var plans []*domainPlan.Plan
	query := r.applyFilter(r.client.Querier(ctx), filter).
		Order("name ASC")

	if !filter.IsUnlimited() {
		query = query.Offset(filter.GetOffset()).Limit(filter.GetLimit())
	}

	if err := query.Find(&plans).Error; err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list plans").
			Mark(ierr.ErrDatabase)
	}
	return plans, nil
}

func (r *planRepository) Count(ctx context.Context, filter *types.PlanFilter) (int, error) {
	var count int64
	err := r.applyFilter(r.client.Querier(ctx), filter).
		Model(&domainPlan.Plan{}).
		Count(&count).Error
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count plans").
			Mark(ierr.ErrDatabase)
	}
	return int(count), nil
}

func (r *planRepository) Update(ctx context.Context, p *domainPlan.Plan) error {
	r.log.Debugw("updating plan", "plan_id", p.ID)

	p.UpdatedAt = time.Now().UTC()
	// Select("*") so zero values like active=false are written too
	result := r.client.Querier(ctx).Model(&domainPlan.Plan{}).
		Where("id = ?", p.ID).
		Select("*").
		Updates(p)
	if result.Error != nil {
		return ierr.WithError(result.Error).
			WithHint("Failed to update plan").
			Mark(ierr.ErrDatabase)
	}
	if result.RowsAffected == 0 {
		return ierr.NewErrorf("plan %s not found", p.ID).
			WithHintf("Plan with ID %s was not found", p.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *planRepository) Delete(ctx context.Context, id string) error {
	r.log.Debugw("deleting plan", "plan_id", id)

	result := r.client.Querier(ctx).Where("id = ?", id).Delete(&domainPlan.Plan{})
	if result.Error != nil {
		return ierr.WithError(result.Error).
			WithHint("Failed to delete plan").
			Mark(ierr.ErrDatabase)
	}
	if result.RowsAffected == 0 {
		return ierr.NewErrorf("plan %s not found", id).
			WithHintf("Plan with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *planRepository) applyFilter(query *gorm.DB, filter *types.PlanFilter) *gorm.DB {
	if filter != nil && filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	return query
}
