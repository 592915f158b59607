package types

// WebhookEventType identifies the Stripe webhook event types this service
// reconciles. Anything outside this set is acknowledged as a no-op so Stripe
// does not retry deliveries we can never resolve.
type WebhookEventType string

const (
	WebhookEventTypeProductCreated           WebhookEventType = "product.created"
	WebhookEventTypeProductUpdated           WebhookEventType = "product.updated"
	WebhookEventTypePriceCreated             WebhookEventType = "price.created"
	WebhookEventTypePriceUpdated             WebhookEventType = "price.updated"
	WebhookEventTypeSubscriptionCreated      WebhookEventType = "customer.subscription.created"
	WebhookEventTypeSubscriptionUpdated      WebhookEventType = "customer.subscription.updated"
	WebhookEventTypeSubscriptionDeleted      WebhookEventType = "customer.subscription.deleted"
	WebhookEventTypeChargeRefunded           WebhookEventType = "charge.refunded"
	WebhookEventTypeRefundUpdated            WebhookEventType = "refund.updated"
	WebhookEventTypeCheckoutSessionCompleted WebhookEventType = "checkout.session.completed"
	WebhookEventTypeInvoicePaymentSucceeded  WebhookEventType = "invoice.payment_succeeded"
)

// SubscriptionStatus values are mirrored from Stripe verbatim. The status is
// treated as an opaque string everywhere except the two literals below, which
// drive notification and duplicate-subscription decisions.
const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
)

// RunMode represents the deployment mode of the service
type RunMode string

const (
	ModeLocal RunMode = "local"
	ModeProd  RunMode = "prod"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
