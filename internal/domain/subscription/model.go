package subscription

import (
	"time"

	"github.com/billbridge/billbridge/internal/domain/plan"
	"github.com/billbridge/billbridge/internal/types"
)

// Subscription is the local mirror of a Stripe subscription. Stripe remains
// the source of truth; rows here are only ever written from provider state.
type Subscription struct {
	ID                   string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	StripeSubscriptionID string     `gorm:"not null;uniqueIndex" json:"stripe_subscription_id"`
	StripeCustomerID     string     `gorm:"not null;index" json:"stripe_customer_id"`
	Status               string     `gorm:"not null" json:"status"`
	PlanID               string     `gorm:"not null" json:"plan_id"`
	Plan                 *plan.Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`

	// PendingPlan holds the target of a scheduled downgrade until the
	// provider reports the new price as current.
	PendingPlanID *string    `json:"pending_plan_id,omitempty"`
	PendingPlan   *plan.Plan `gorm:"foreignKey:PendingPlanID" json:"pending_plan,omitempty"`

	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`
	ScheduleID        *string    `json:"schedule_id,omitempty"`
	types.BaseModel
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// IsActive reports whether the subscription is currently usable
func (s *Subscription) IsActive() bool {
	return s.Status == types.SubscriptionStatusActive
}
