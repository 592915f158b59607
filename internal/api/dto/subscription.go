package dto

import (
	"time"

	ierr "github.com/billbridge/billbridge/internal/errors"

	"github.com/billbridge/billbridge/internal/domain/subscription"
)

// SubscriptionResponse is the API representation of a subscription
type SubscriptionResponse struct {
	ID                   string        `json:"id"`
	StripeSubscriptionID string        `json:"stripe_subscription_id"`
	StripeCustomerID     string        `json:"stripe_customer_id"`
	Status               string        `json:"status"`
	Plan                 *PlanResponse `json:"plan,omitempty"`
	PendingPlan          *PlanResponse `json:"pending_plan,omitempty"`
	CurrentPeriodEnd     *time.Time    `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool          `json:"cancel_at_period_end"`
	CanceledAt           *time.Time    `json:"canceled_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// NewSubscriptionResponse converts a domain subscription to its API representation
func NewSubscriptionResponse(s *subscription.Subscription) *SubscriptionResponse {
	if s == nil {
		return nil
	}
	return &SubscriptionResponse{
		ID:                   s.ID,
		StripeSubscriptionID: s.StripeSubscriptionID,
		StripeCustomerID:     s.StripeCustomerID,
		Status:               s.Status,
		Plan:                 NewPlanResponse(s.Plan),
		PendingPlan:          NewPlanResponse(s.PendingPlan),
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
		CancelAtPeriodEnd:    s.CancelAtPeriodEnd,
		CanceledAt:           s.CanceledAt,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

// ListSubscriptionsResponse is the paginated subscription listing
type ListSubscriptionsResponse = ListResponse[*SubscriptionResponse]

// CreateCustomerRequest registers a billing customer with the payment provider
type CreateCustomerRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func (r *CreateCustomerRequest) Validate() error {
	if r.Name == "" {
		return ierr.NewError("name is required").
			WithHint("Customer name is required").
			Mark(ierr.ErrValidation)
	}
	if r.Email == "" {
		return ierr.NewError("email is required").
			WithHint("Customer email is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CreateCustomerResponse carries the provider customer and its default payment method
type CreateCustomerResponse struct {
	CustomerID             string `json:"customer_id"`
	Email                  string `json:"email"`
	Name                   string `json:"name"`
	DefaultPaymentMethodID string `json:"default_payment_method_id,omitempty"`
}

// CreatePaymentSessionRequest starts an incomplete subscription for in-app
// payment. The customer is found or created by email.
type CreatePaymentSessionRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	PriceID string `json:"price_id" validate:"required"`
}

func (r *CreatePaymentSessionRequest) Validate() error {
	if r.Name == "" {
		return ierr.NewError("name is required").
			WithHint("Customer name is required").
			Mark(ierr.ErrValidation)
	}
	if r.Email == "" {
		return ierr.NewError("email is required").
			WithHint("Customer email is required").
			Mark(ierr.ErrValidation)
	}
	if r.PriceID == "" {
		return ierr.NewError("price_id is required").
			WithHint("Price ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentSessionResponse carries what a client needs to confirm the payment
type PaymentSessionResponse struct {
	SubscriptionID string `json:"subscription_id"`
	ClientSecret   string `json:"client_secret,omitempty"`
	Status         string `json:"status"`
}

// CreateCheckoutSessionRequest starts a provider-hosted checkout flow
type CreateCheckoutSessionRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	PriceID    string `json:"price_id" validate:"required"`
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

func (r *CreateCheckoutSessionRequest) Validate() error {
	if r.Name == "" {
		return ierr.NewError("name is required").
			WithHint("Customer name is required").
			Mark(ierr.ErrValidation)
	}
	if r.Email == "" {
		return ierr.NewError("email is required").
			WithHint("Customer email is required").
			Mark(ierr.ErrValidation)
	}
	if r.PriceID == "" {
		return ierr.NewError("price_id is required").
			WithHint("Price ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CheckoutSessionResponse carries the hosted checkout session reference
type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url,omitempty"`
}

// UpgradeSubscriptionRequest switches a subscription to a higher-priced plan
type UpgradeSubscriptionRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

func (r *UpgradeSubscriptionRequest) Validate() error {
	if r.PlanID == "" {
		return ierr.NewError("plan_id is required").
			WithHint("Target plan ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DowngradeSubscriptionRequest schedules a switch to a cheaper plan at period end
type DowngradeSubscriptionRequest struct {
	PriceID string `json:"price_id" validate:"required"`
}

func (r *DowngradeSubscriptionRequest) Validate() error {
	if r.PriceID == "" {
		return ierr.NewError("price_id is required").
			WithHint("Target price ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DowngradeSubscriptionResponse confirms the scheduled change
type DowngradeSubscriptionResponse struct {
	Subscription *SubscriptionResponse `json:"subscription"`
	ScheduleID   string                `json:"schedule_id"`
}
