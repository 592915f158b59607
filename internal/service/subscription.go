package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/billbridge/billbridge/internal/api/dto"
	"github.com/billbridge/billbridge/internal/domain/plan"
	"github.com/billbridge/billbridge/internal/domain/proration"
	"github.com/billbridge/billbridge/internal/domain/subscription"
	"github.com/billbridge/billbridge/internal/email"
	ierr "github.com/billbridge/billbridge/internal/errors"
	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
	"github.com/billbridge/billbridge/internal/types"
)

const (
	defaultCheckoutSuccessURL = "http://localhost:3000/success"
	defaultCheckoutCancelURL  = "http://localhost:3000/cancel"

	// Stripe's documented test card token, used when registering customers
	// through the backend rather than a hosted payment page.
	testCardToken = "tok_visa"

	invoiceAttachmentName = "invoice.pdf"
)

// SubscriptionService owns the subscription lifecycle: reconciliation of
// provider snapshots into local state and the upgrade, downgrade and
// cancellation workflows.
type SubscriptionService interface {
	SyncFromProvider(ctx context.Context, snapshot *stripegw.SubscriptionSnapshot) error
	CreateCustomer(ctx context.Context, req dto.CreateCustomerRequest) (*dto.CreateCustomerResponse, error)
	CreatePaymentSession(ctx context.Context, req dto.CreatePaymentSessionRequest) (*dto.PaymentSessionResponse, error)
	CreateCheckoutSession(ctx context.Context, req dto.CreateCheckoutSessionRequest) (*dto.CheckoutSessionResponse, error)
	UpgradeSubscription(ctx context.Context, subscriptionID, newPlanID string) (*dto.SubscriptionResponse, error)
	DowngradeSubscription(ctx context.Context, subscriptionID, newPriceID string) (*dto.DowngradeSubscriptionResponse, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	GetSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
	}
}

// SyncFromProvider merges a provider subscription snapshot into local state.
// The provider is authoritative: local rows are only ever written from what
// it reports. A snapshot referencing an unknown price is skipped so a later
// catalog event can resolve it on redelivery.
func (s *subscriptionService) SyncFromProvider(ctx context.Context, snapshot *stripegw.SubscriptionSnapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return ierr.NewError("subscription snapshot is empty").
			WithHint("A provider subscription payload is required").
			Mark(ierr.ErrValidation)
	}

	s.Logger.Debugw("reconciling provider subscription",
		"stripe_subscription_id", snapshot.ID,
		"status", snapshot.Status,
		"stripe_price_id", snapshot.PriceID,
	)

	snapshotPlan, err := s.PlanRepo.GetByStripePriceID(ctx, snapshot.PriceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("no plan for provider price, skipping reconciliation",
				"stripe_price_id", snapshot.PriceID,
				"stripe_subscription_id", snapshot.ID,
			)
			return nil
		}
		return err
	}

	sub, err := s.SubRepo.GetByStripeSubscriptionID(ctx, snapshot.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}

	currentPeriodEnd := timeFromUnix(snapshot.CurrentPeriodEnd)
	canceledAt := timeFromUnix(snapshot.CanceledAt)

	if sub == nil {
		newSub := &subscription.Subscription{
			ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
			StripeSubscriptionID: snapshot.ID,
			StripeCustomerID:     snapshot.CustomerID,
			Status:               snapshot.Status,
			PlanID:               snapshotPlan.ID,
			Plan:                 snapshotPlan,
			CurrentPeriodEnd:     currentPeriodEnd,
			CancelAtPeriodEnd:    snapshot.CancelAtPeriodEnd,
			CanceledAt:           canceledAt,
			BaseModel:            types.GetDefaultBaseModel(),
		}
		if err := s.SubRepo.Create(ctx, newSub); err != nil {
			return err
		}
		if snapshot.Status == types.SubscriptionStatusActive {
			s.sendActivationEmail(ctx, snapshot)
		}
		s.Logger.Infow("created subscription from provider",
			"subscription_id", newSub.ID,
			"stripe_subscription_id", snapshot.ID,
		)
		return nil
	}

	// A period end that moved forward means the provider rolled into a new
	// billing period, so any scheduled plan change has taken effect. A stale
	// or equal period end must not overwrite the effective plan; the snapshot
	// plan is parked as pending instead.
	promotePlan := true
	if sub.CurrentPeriodEnd != nil && currentPeriodEnd != nil {
		promotePlan = currentPeriodEnd.After(*sub.CurrentPeriodEnd)
	}

	previousStatus := sub.Status

	sub.StripeCustomerID = snapshot.CustomerID
	sub.Status = snapshot.Status
	sub.CancelAtPeriodEnd = snapshot.CancelAtPeriodEnd
	if promotePlan {
		if sub.PendingPlan != nil {
			sub.Plan = sub.PendingPlan
			sub.PlanID = sub.PendingPlan.ID
		} else {
			sub.Plan = snapshotPlan
			sub.PlanID = snapshotPlan.ID
		}
		sub.PendingPlanID = nil
		sub.PendingPlan = nil
	} else if snapshotPlan.ID != sub.PlanID {
		// The snapshot describes the still-running period with a different
		// price, which means a scheduled change has not taken effect yet.
		// Park it so a stale event cannot clobber the effective plan.
		sub.PendingPlanID = &snapshotPlan.ID
		sub.PendingPlan = snapshotPlan
	}
	if currentPeriodEnd != nil {
		sub.CurrentPeriodEnd = currentPeriodEnd
	}
	if canceledAt != nil {
		sub.CanceledAt = canceledAt
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	if snapshot.Status == types.SubscriptionStatusActive && previousStatus != types.SubscriptionStatusActive {
		s.sendActivationEmail(ctx, snapshot)
	}

	s.Logger.Infow("reconciled subscription from provider",
		"subscription_id", sub.ID,
		"stripe_subscription_id", snapshot.ID,
		"status", snapshot.Status,
		"plan_promoted", promotePlan,
	)
	return nil
}

// CreateCustomer registers a provider customer and attaches a default card
func (s *subscriptionService) CreateCustomer(ctx context.Context, req dto.CreateCustomerRequest) (*dto.CreateCustomerResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	customer, err := s.Gateway.FindOrCreateCustomer(ctx, req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	paymentMethodID, err := s.Gateway.AttachCardPaymentMethod(ctx, customer.ID, testCardToken, req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	return &dto.CreateCustomerResponse{
		CustomerID:             customer.ID,
		Email:                  customer.Email,
		Name:                   customer.Name,
		DefaultPaymentMethodID: paymentMethodID,
	}, nil
}

// CreatePaymentSession creates an incomplete subscription and hands back the
// client secret needed to confirm the first payment. A customer with a live
// subscription cannot start a second one.
func (s *subscriptionService) CreatePaymentSession(ctx context.Context, req dto.CreatePaymentSessionRequest) (*dto.PaymentSessionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	customer, err := s.Gateway.FindOrCreateCustomer(ctx, req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	existing, err := s.SubRepo.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	for _, sub := range existing {
		if sub.Status != types.SubscriptionStatusCanceled && sub.Status != types.SubscriptionStatusIncomplete {
			return nil, ierr.NewError("customer already has an active subscription").
				WithHint("Customer already has an active subscription.").
				WithReportableDetails(map[string]any{
					"stripe_customer_id": customer.ID,
					"subscription_id":    sub.ID,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
	}

	session, err := s.Gateway.CreateIncompleteSubscription(ctx, customer.ID, req.PriceID)
	if err != nil {
		return nil, err
	}

	return &dto.PaymentSessionResponse{
		SubscriptionID: session.SubscriptionID,
		ClientSecret:   session.ClientSecret,
		Status:         session.Status,
	}, nil
}

// CreateCheckoutSession starts a provider-hosted checkout flow
func (s *subscriptionService) CreateCheckoutSession(ctx context.Context, req dto.CreateCheckoutSessionRequest) (*dto.CheckoutSessionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	customer, err := s.Gateway.FindOrCreateCustomer(ctx, req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = defaultCheckoutSuccessURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = defaultCheckoutCancelURL
	}

	session, err := s.Gateway.CreateCheckoutSession(ctx, customer.ID, req.PriceID, successURL, cancelURL)
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

// UpgradeSubscription switches to a strictly higher-priced plan immediately,
// prorating the difference and collecting it right away.
func (s *subscriptionService) UpgradeSubscription(ctx context.Context, subscriptionID, newPlanID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.resolveSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	newPlan, err := s.resolvePlan(ctx, newPlanID)
	if err != nil {
		return nil, err
	}

	if sub.Plan == nil || !newPlan.Amount.GreaterThan(sub.Plan.Amount) {
		return nil, ierr.NewError("upgrade must be to a higher-priced plan").
			WithHint("Upgrade must be to a higher-priced plan.").
			Mark(ierr.ErrInvalidOperation)
	}

	snapshot, err := s.Gateway.ChangeSubscriptionPrice(ctx, sub.StripeSubscriptionID, newPlan.StripePriceID)
	if err != nil {
		return nil, err
	}

	sub.Plan = newPlan
	sub.PlanID = newPlan.ID
	sub.Status = snapshot.Status
	sub.CancelAtPeriodEnd = snapshot.CancelAtPeriodEnd
	if end := timeFromUnix(snapshot.CurrentPeriodEnd); end != nil {
		sub.CurrentPeriodEnd = end
	}
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	prorationInvoice, err := s.settleProrationInvoice(ctx, sub.StripeSubscriptionID)
	if err != nil {
		// the plan switch is already committed, only collection failed
		return nil, err
	}

	s.sendLifecycleEmail(ctx, sub.StripeCustomerID, lifecycleEmail{
		subject:   "Subscription Upgraded",
		text:      "Your subscription has been upgraded to " + newPlan.Name + ".",
		html:      "<p>Your subscription has been upgraded to <b>" + newPlan.Name + "</b>.</p>",
		invoice:   prorationInvoice,
		refresh:   false,
		invoiceID: "",
	})

	return dto.NewSubscriptionResponse(sub), nil
}

// DowngradeSubscription schedules a switch to the new price at the end of
// the current period. The target plan is parked as pending until the
// provider reports the new period.
func (s *subscriptionService) DowngradeSubscription(ctx context.Context, subscriptionID, newPriceID string) (*dto.DowngradeSubscriptionResponse, error) {
	sub, err := s.resolveSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	newPlan, err := s.resolvePlan(ctx, newPriceID)
	if err != nil {
		return nil, err
	}

	scheduleID, err := s.Gateway.CreateDowngradeSchedule(ctx, sub.StripeSubscriptionID, newPlan.StripePriceID)
	if err != nil {
		return nil, err
	}

	sub.PendingPlanID = &newPlan.ID
	sub.PendingPlan = newPlan
	sub.ScheduleID = &scheduleID
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.sendLifecycleEmail(ctx, sub.StripeCustomerID, lifecycleEmail{
		subject:   "Subscription Downgrade Scheduled",
		text:      "Your subscription will be downgraded to " + newPlan.Name + " at the next billing cycle.",
		html:      "<p>Your subscription will be downgraded to <b>" + newPlan.Name + "</b> at the next billing cycle.</p>",
		refresh:   true,
		invoiceID: "",
		stripeSub: sub.StripeSubscriptionID,
	})

	return &dto.DowngradeSubscriptionResponse{
		Subscription: dto.NewSubscriptionResponse(sub),
		ScheduleID:   scheduleID,
	}, nil
}

// CancelSubscription cancels immediately, refunding the unused part of the
// current period. Within the first three days of a period the full amount
// paid is returned.
func (s *subscriptionService) CancelSubscription(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.resolveSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.Gateway.GetSubscription(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return nil, err
	}

	if snapshot.ScheduleID != "" {
		if err := s.Gateway.CancelSchedule(ctx, snapshot.ScheduleID); err != nil {
			if !errors.Is(err, stripegw.ErrScheduleAlreadyCanceled) {
				return nil, err
			}
		}
	}

	// a canceled subscription carries no pending change, even when the
	// schedule was already released out-of-band
	sub.PendingPlanID = nil
	sub.PendingPlan = nil
	sub.ScheduleID = nil

	if refundAmount, paymentIntentID := s.computeCancellationRefund(ctx, snapshot); paymentIntentID != "" && refundAmount.IsPositive() {
		refundService := NewRefundService(s.ServiceParams)
		refundMajor := refundAmount.Div(decimal.NewFromInt(100))
		if _, err := refundService.CreateRefund(ctx, paymentIntentID, &refundMajor); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	sub.Status = types.SubscriptionStatusCanceled
	sub.CanceledAt = &now
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	planName := "your plan"
	if sub.Plan != nil {
		planName = sub.Plan.Name
	}
	s.sendLifecycleEmail(ctx, sub.StripeCustomerID, lifecycleEmail{
		subject: "Subscription Cancelled",
		text:    "Your subscription to " + planName + " has been cancelled.",
		html:    "<p>Your subscription to <b>" + planName + "</b> has been cancelled.</p>",
		invoice: snapshot.LatestInvoice,
	})

	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.resolveSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) GetSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.SubRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(subs, func(sub *subscription.Subscription, _ int) *dto.SubscriptionResponse {
		return dto.NewSubscriptionResponse(sub)
	})
	return dto.NewListResponse(items, total, filter.PaginationFilter), nil
}

// computeCancellationRefund derives the refundable minor-unit amount from
// the latest invoice of the provider snapshot. Returns zero when there is
// nothing to refund.
func (s *subscriptionService) computeCancellationRefund(ctx context.Context, snapshot *stripegw.SubscriptionSnapshot) (decimal.Decimal, string) {
	invoice := snapshot.LatestInvoice
	if invoice == nil || invoice.PaymentIntentID == "" || invoice.AmountPaid <= 0 {
		return decimal.Zero, ""
	}
	if snapshot.CurrentPeriodStart == 0 || snapshot.CurrentPeriodEnd == 0 {
		return decimal.Zero, ""
	}

	result, err := s.ProrationCalc.Calculate(ctx, proration.RefundParams{
		CurrentPeriodStart: time.Unix(snapshot.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(snapshot.CurrentPeriodEnd, 0).UTC(),
		CancellationDate:   time.Now().UTC(),
		AmountPaid:         decimal.NewFromInt(invoice.AmountPaid),
	})
	if err != nil {
		s.Logger.Errorw("refund calculation failed",
			"error", err,
			"stripe_subscription_id", snapshot.ID,
		)
		return decimal.Zero, ""
	}
	return result.RefundAmount, invoice.PaymentIntentID
}

// settleProrationInvoice finalizes and pays the open invoice created by an
// immediate plan change, so the prorated difference is collected right away.
// Failures surface to the caller; the plan switch itself has already been
// applied remotely and locally by the time collection runs.
func (s *subscriptionService) settleProrationInvoice(ctx context.Context, stripeSubscriptionID string) (*stripegw.InvoiceSnapshot, error) {
	invoice, err := s.Gateway.FindOpenProrationInvoice(ctx, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, nil
	}

	settled, err := s.Gateway.FinalizeAndPayInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	return settled, nil
}

type lifecycleEmail struct {
	subject string
	text    string
	html    string

	// invoice to attach, already in hand
	invoice *stripegw.InvoiceSnapshot
	// when refresh is set the latest invoice is fetched from the provider
	refresh   bool
	stripeSub string
	invoiceID string
}

// sendLifecycleEmail notifies the customer about a lifecycle change with the
// relevant invoice PDF attached when retrievable. Entirely best-effort.
func (s *subscriptionService) sendLifecycleEmail(ctx context.Context, stripeCustomerID string, msg lifecycleEmail) {
	customer, err := s.Gateway.GetCustomer(ctx, stripeCustomerID)
	if err != nil {
		s.Logger.Errorw("failed to look up customer for notification",
			"error", err,
			"stripe_customer_id", stripeCustomerID,
		)
		return
	}
	if customer == nil || customer.Email == "" {
		return
	}

	invoice := msg.invoice
	if msg.refresh && msg.stripeSub != "" {
		if snapshot, err := s.Gateway.GetSubscription(ctx, msg.stripeSub); err == nil {
			invoice = snapshot.LatestInvoice
		}
	}
	if invoice == nil && msg.invoiceID != "" {
		invoice, _ = s.Gateway.GetInvoice(ctx, msg.invoiceID)
	}

	attachments := s.invoiceAttachments(ctx, invoice)

	if _, err := s.EmailService.SendEmail(ctx, email.SendEmailRequest{
		ToAddress:   customer.Email,
		Subject:     msg.subject,
		Text:        msg.text,
		HTML:        msg.html,
		Attachments: attachments,
	}); err != nil {
		s.Logger.Errorw("failed to send lifecycle email",
			"error", err,
			"subject", msg.subject,
			"to", customer.Email,
		)
	}
}

// sendActivationEmail notifies the customer that their subscription is live
func (s *subscriptionService) sendActivationEmail(ctx context.Context, snapshot *stripegw.SubscriptionSnapshot) {
	invoice := snapshot.LatestInvoice
	if invoice != nil && invoice.InvoicePDFURL == "" && invoice.ID != "" {
		// webhook payloads carry only the invoice reference
		if full, err := s.Gateway.GetInvoice(ctx, invoice.ID); err == nil {
			invoice = full
		}
	}

	s.sendLifecycleEmail(ctx, snapshot.CustomerID, lifecycleEmail{
		subject: "Subscription Created",
		text:    "Your subscription has been created and is now active.",
		html:    "<p>Your subscription has been created and is now <b>active</b>.</p><p>Thank you!</p>",
		invoice: invoice,
	})
}

// invoiceAttachments downloads the invoice PDF when a URL is available
func (s *subscriptionService) invoiceAttachments(ctx context.Context, invoice *stripegw.InvoiceSnapshot) []email.Attachment {
	if invoice == nil || invoice.InvoicePDFURL == "" {
		return nil
	}
	pdf, err := s.Gateway.DownloadInvoicePDF(ctx, invoice.InvoicePDFURL)
	if err != nil {
		s.Logger.Errorw("failed to fetch invoice PDF",
			"error", err,
			"invoice_id", invoice.ID,
		)
		return nil
	}
	return []email.Attachment{{Filename: invoiceAttachmentName, Content: pdf}}
}

// resolveSubscription accepts either an internal id or a provider id
func (s *subscriptionService) resolveSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	if strings.HasPrefix(id, types.UUID_PREFIX_SUBSCRIPTION+"_") {
		return s.SubRepo.Get(ctx, id)
	}
	return s.SubRepo.GetByStripeSubscriptionID(ctx, id)
}

// resolvePlan accepts either an internal plan id or a provider price id
func (s *subscriptionService) resolvePlan(ctx context.Context, id string) (*plan.Plan, error) {
	if strings.HasPrefix(id, types.UUID_PREFIX_PLAN+"_") {
		return s.PlanRepo.Get(ctx, id)
	}
	return s.PlanRepo.GetByStripePriceID(ctx, id)
}

func timeFromUnix(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
