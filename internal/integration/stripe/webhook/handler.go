package webhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v82"

	ierr "github.com/billbridge/billbridge/internal/errors"
	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/service"
	"github.com/billbridge/billbridge/internal/types"
)

// Handler routes verified provider events to the reconciliation services.
// Every event is recorded to the event log before dispatch. Unknown event
// types are acknowledged without error so the provider stops redelivering
// them.
type Handler struct {
	planService     service.PlanService
	subService      service.SubscriptionService
	refundService   service.RefundService
	eventLogService service.EventLogService
	gateway         stripegw.Gateway
	logger          *logger.Logger
}

func NewHandler(
	planService service.PlanService,
	subService service.SubscriptionService,
	refundService service.RefundService,
	eventLogService service.EventLogService,
	gateway stripegw.Gateway,
	log *logger.Logger,
) *Handler {
	return &Handler{
		planService:     planService,
		subService:      subService,
		refundService:   refundService,
		eventLogService: eventLogService,
		gateway:         gateway,
		logger:          log,
	}
}

// HandleEvent dispatches one provider event. Delivery is at-least-once and
// unordered, so every branch must tolerate duplicates and stale payloads.
func (h *Handler) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return ierr.NewError("event is required").
			WithHint("An event payload is required").
			Mark(ierr.ErrValidation)
	}

	h.logger.Infow("received provider event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.eventLogService.RecordEvent(ctx, string(event.Type), json.RawMessage(event.Data.Raw)); err != nil {
		h.logger.Errorw("failed to record provider event",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type,
		)
	}

	switch types.WebhookEventType(event.Type) {
	case types.WebhookEventTypeProductCreated, types.WebhookEventTypeProductUpdated:
		return h.handleProductEvent(ctx, event)
	case types.WebhookEventTypePriceCreated, types.WebhookEventTypePriceUpdated:
		return h.handlePriceEvent(ctx, event)
	case types.WebhookEventTypeSubscriptionCreated,
		types.WebhookEventTypeSubscriptionUpdated,
		types.WebhookEventTypeSubscriptionDeleted:
		return h.handleSubscriptionEvent(ctx, event)
	case types.WebhookEventTypeChargeRefunded:
		return h.handleChargeRefunded(ctx, event)
	case types.WebhookEventTypeRefundUpdated:
		return h.handleRefundUpdated(ctx, event)
	case types.WebhookEventTypeCheckoutSessionCompleted:
		return h.handleCheckoutCompleted(ctx, event)
	case types.WebhookEventTypeInvoicePaymentSucceeded:
		return h.handleInvoicePaid(ctx, event)
	default:
		h.logger.Debugw("ignoring unhandled provider event",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return nil
	}
}

// handleProductEvent re-syncs every recurring price of the product, since a
// product-level change (name, active flag) affects all plans derived from it.
func (h *Handler) handleProductEvent(ctx context.Context, event *stripe.Event) error {
	var product stripe.Product
	if err := json.Unmarshal(event.Data.Raw, &product); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed product payload").
			Mark(ierr.ErrValidation)
	}

	prices, err := h.gateway.ListProductPrices(ctx, product.ID)
	if err != nil {
		return err
	}

	snapshot := stripegw.ProductSnapshotFromStripe(&product)
	for _, price := range prices {
		if !price.Recurring {
			continue
		}
		if _, err := h.planService.UpsertFromProvider(ctx, snapshot, price); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) handlePriceEvent(ctx context.Context, event *stripe.Event) error {
	var price stripe.Price
	if err := json.Unmarshal(event.Data.Raw, &price); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed price payload").
			Mark(ierr.ErrValidation)
	}

	snapshot := stripegw.PriceSnapshotFromStripe(&price)
	if !snapshot.Recurring {
		h.logger.Debugw("ignoring one-time price", "stripe_price_id", snapshot.ID)
		return nil
	}

	product, err := h.gateway.GetProduct(ctx, snapshot.ProductID)
	if err != nil {
		return err
	}

	_, err = h.planService.UpsertFromProvider(ctx, product, snapshot)
	return err
}

func (h *Handler) handleSubscriptionEvent(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed subscription payload").
			Mark(ierr.ErrValidation)
	}
	return h.subService.SyncFromProvider(ctx, stripegw.SubscriptionSnapshotFromStripe(&sub))
}

func (h *Handler) handleChargeRefunded(ctx context.Context, event *stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed charge payload").
			Mark(ierr.ErrValidation)
	}

	for _, snapshot := range stripegw.RefundSnapshotsFromCharge(&charge) {
		if err := h.refundService.SyncFromProvider(ctx, snapshot); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) handleRefundUpdated(ctx context.Context, event *stripe.Event) error {
	var r stripe.Refund
	if err := json.Unmarshal(event.Data.Raw, &r); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed refund payload").
			Mark(ierr.ErrValidation)
	}
	return h.refundService.SyncFromProvider(ctx, stripegw.RefundSnapshotFromStripe(&r))
}

// handleCheckoutCompleted pulls the subscription created by a hosted
// checkout and reconciles it, since no API call of ours ever saw it.
func (h *Handler) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed checkout session payload").
			Mark(ierr.ErrValidation)
	}

	if session.Mode != stripe.CheckoutSessionModeSubscription || session.Subscription == nil {
		h.logger.Debugw("ignoring non-subscription checkout session", "session_id", session.ID)
		return nil
	}

	snapshot, err := h.gateway.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return err
	}
	return h.subService.SyncFromProvider(ctx, snapshot)
}

// handleInvoicePaid re-syncs the owning subscription. A subscription only
// turns active once its first invoice is paid, and this event is the
// reliable signal for that transition.
func (h *Handler) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed invoice payload").
			Mark(ierr.ErrValidation)
	}

	subscriptionID := stripegw.SubscriptionIDFromInvoice(&invoice)
	if subscriptionID == "" {
		h.logger.Debugw("invoice has no subscription, skipping", "invoice_id", invoice.ID)
		return nil
	}

	snapshot, err := h.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	return h.subService.SyncFromProvider(ctx, snapshot)
}
