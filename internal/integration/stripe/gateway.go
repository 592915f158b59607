package stripe

import (
	"context"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"

	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/httpclient"
	"github.com/billbridge/billbridge/internal/logger"
)

// ErrScheduleAlreadyCanceled marks the provider rejection for canceling a
// schedule that already reached the canceled status. Callers treat it as a
// no-op during subscription cancellation.
var ErrScheduleAlreadyCanceled = ierr.NewError("subscription schedule is already canceled").
	Mark(ierr.ErrInvalidOperation)

// Gateway is the single entry point for all outbound Stripe calls. Services
// depend on this interface so tests can swap in a fake provider.
type Gateway interface {
	// Catalog
	ListActiveProducts(ctx context.Context) ([]*ProductSnapshot, error)
	GetProduct(ctx context.Context, productID string) (*ProductSnapshot, error)
	ListProductPrices(ctx context.Context, productID string) ([]*PriceSnapshot, error)

	// Customers
	FindOrCreateCustomer(ctx context.Context, name, email string) (*CustomerSnapshot, error)
	GetCustomer(ctx context.Context, customerID string) (*CustomerSnapshot, error)
	AttachCardPaymentMethod(ctx context.Context, customerID, cardToken, name, email string) (string, error)

	// Subscriptions
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error)
	CreateIncompleteSubscription(ctx context.Context, customerID, priceID string) (*PaymentSessionSnapshot, error)
	ChangeSubscriptionPrice(ctx context.Context, subscriptionID, newPriceID string) (*SubscriptionSnapshot, error)

	// Schedules
	CreateDowngradeSchedule(ctx context.Context, subscriptionID, newPriceID string) (string, error)
	CancelSchedule(ctx context.Context, scheduleID string) error

	// Invoices
	GetInvoice(ctx context.Context, invoiceID string) (*InvoiceSnapshot, error)
	FindOpenProrationInvoice(ctx context.Context, subscriptionID string) (*InvoiceSnapshot, error)
	FinalizeAndPayInvoice(ctx context.Context, invoiceID string) (*InvoiceSnapshot, error)
	FindInvoiceByPaymentIntent(ctx context.Context, paymentIntentID string) (*InvoiceSnapshot, error)
	DownloadInvoicePDF(ctx context.Context, url string) ([]byte, error)

	// Refunds
	CreateRefund(ctx context.Context, paymentIntentID string, amountMinor *int64) (*RefundSnapshot, error)
	GetPaymentIntentCustomer(ctx context.Context, paymentIntentID string) (*CustomerSnapshot, error)

	// Checkout
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*CheckoutSessionSnapshot, error)
}

type gateway struct {
	client     *Client
	httpClient httpclient.Client
	logger     *logger.Logger
}

// NewGateway creates the production Stripe gateway
func NewGateway(client *Client, httpClient httpclient.Client, logger *logger.Logger) Gateway {
	return &gateway{
		client:     client,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (g *gateway) ListActiveProducts(ctx context.Context) ([]*ProductSnapshot, error) {
	params := &stripe.ProductListParams{
		Active: stripe.Bool(true),
	}

	var products []*ProductSnapshot
	for product, err := range g.client.API().V1Products.List(ctx, params) {
		if err != nil {
			return nil, g.providerError(err, "failed to list products")
		}
		products = append(products, ProductSnapshotFromStripe(product))
	}
	return products, nil
}

func (g *gateway) GetProduct(ctx context.Context, productID string) (*ProductSnapshot, error) {
	product, err := g.client.API().V1Products.Retrieve(ctx, productID, nil)
	if err != nil {
		return nil, g.providerError(err, "failed to retrieve product")
	}
	return ProductSnapshotFromStripe(product), nil
}

func (g *gateway) ListProductPrices(ctx context.Context, productID string) ([]*PriceSnapshot, error) {
	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
	}

	var prices []*PriceSnapshot
	for price, err := range g.client.API().V1Prices.List(ctx, params) {
		if err != nil {
			return nil, g.providerError(err, "failed to list prices")
		}
		snapshot := PriceSnapshotFromStripe(price)
		if snapshot.ProductID == "" {
			snapshot.ProductID = productID
		}
		prices = append(prices, snapshot)
	}
	return prices, nil
}

func (g *gateway) FindOrCreateCustomer(ctx context.Context, name, email string) (*CustomerSnapshot, error) {
	searchParams := &stripe.CustomerSearchParams{}
	searchParams.Query = "email:'" + email + "'"
	searchParams.Limit = stripe.Int64(1)

	for customer, err := range g.client.API().V1Customers.Search(ctx, searchParams) {
		if err != nil {
			return nil, g.providerError(err, "failed to search customers")
		}
		return CustomerSnapshotFromStripe(customer), nil
	}

	customer, err := g.client.API().V1Customers.Create(ctx, &stripe.CustomerCreateParams{
		Name:  stripe.String(name),
		Email: stripe.String(email),
	})
	if err != nil {
		return nil, g.providerError(err, "failed to create customer")
	}
	return CustomerSnapshotFromStripe(customer), nil
}

func (g *gateway) GetCustomer(ctx context.Context, customerID string) (*CustomerSnapshot, error) {
	customer, err := g.client.API().V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return nil, g.providerError(err, "failed to retrieve customer")
	}
	return CustomerSnapshotFromStripe(customer), nil
}

func (g *gateway) AttachCardPaymentMethod(ctx context.Context, customerID, cardToken, name, email string) (string, error) {
	paymentMethod, err := g.client.API().V1PaymentMethods.Create(ctx, &stripe.PaymentMethodCreateParams{
		Type: stripe.String("card"),
		Card: &stripe.PaymentMethodCreateCardParams{
			Token: stripe.String(cardToken),
		},
		BillingDetails: &stripe.PaymentMethodCreateBillingDetailsParams{
			Name:  stripe.String(name),
			Email: stripe.String(email),
		},
	})
	if err != nil {
		return "", g.providerError(err, "failed to create payment method")
	}

	_, err = g.client.API().V1PaymentMethods.Attach(ctx, paymentMethod.ID, &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	})
	if err != nil {
		return "", g.providerError(err, "failed to attach payment method")
	}

	_, err = g.client.API().V1Customers.Update(ctx, customerID, &stripe.CustomerUpdateParams{
		InvoiceSettings: &stripe.CustomerUpdateInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethod.ID),
		},
	})
	if err != nil {
		return "", g.providerError(err, "failed to set default payment method")
	}

	return paymentMethod.ID, nil
}

func (g *gateway) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionRetrieveParams{
		Expand: []*string{
			stripe.String("latest_invoice"),
			stripe.String("latest_invoice.payments"),
			stripe.String("schedule"),
		},
	}

	sub, err := g.client.API().V1Subscriptions.Retrieve(ctx, subscriptionID, params)
	if err != nil {
		return nil, g.providerError(err, "failed to retrieve subscription")
	}
	return SubscriptionSnapshotFromStripe(sub), nil
}

func (g *gateway) CreateIncompleteSubscription(ctx context.Context, customerID, priceID string) (*PaymentSessionSnapshot, error) {
	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		Expand: []*string{
			stripe.String("latest_invoice"),
			stripe.String("latest_invoice.confirmation_secret"),
		},
	}

	sub, err := g.client.API().V1Subscriptions.Create(ctx, params)
	if err != nil {
		return nil, g.providerError(err, "failed to create subscription")
	}

	session := &PaymentSessionSnapshot{
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		session.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	return session, nil
}

func (g *gateway) ChangeSubscriptionPrice(ctx context.Context, subscriptionID, newPriceID string) (*SubscriptionSnapshot, error) {
	sub, err := g.client.API().V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, g.providerError(err, "failed to retrieve subscription")
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil, ierr.NewErrorf("subscription %s has no items", subscriptionID).
			WithHint("Subscription has no line items to update").
			Mark(ierr.ErrIntegration)
	}
	itemID := sub.Items.Data[0].ID

	params := &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:    stripe.String(itemID),
				Price: stripe.String(newPriceID),
			},
		},
		ProrationBehavior:           stripe.String("create_prorations"),
		BillingCycleAnchorUnchanged: stripe.Bool(true),
		PaymentBehavior:             stripe.String("pending_if_incomplete"),
	}

	updated, err := g.client.API().V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		return nil, g.providerError(err, "failed to update subscription")
	}
	return SubscriptionSnapshotFromStripe(updated), nil
}

func (g *gateway) CreateDowngradeSchedule(ctx context.Context, subscriptionID, newPriceID string) (string, error) {
	sub, err := g.client.API().V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return "", g.providerError(err, "failed to retrieve subscription")
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return "", ierr.NewErrorf("subscription %s has no items", subscriptionID).
			WithHint("Subscription has no line items to schedule").
			Mark(ierr.ErrIntegration)
	}

	item := sub.Items.Data[0]
	currentPriceID := item.Price.ID
	periodStart := item.CurrentPeriodStart
	periodEnd := item.CurrentPeriodEnd
	if periodStart == 0 || periodEnd == 0 || periodStart >= periodEnd {
		return "", ierr.NewErrorf("invalid phase timing: start (%d) >= end (%d)", periodStart, periodEnd).
			WithHint("Subscription period bounds are invalid").
			Mark(ierr.ErrIntegration)
	}

	schedule, err := g.client.API().V1SubscriptionSchedules.Create(ctx, &stripe.SubscriptionScheduleCreateParams{
		FromSubscription: stripe.String(subscriptionID),
	})
	if err != nil {
		return "", g.providerError(err, "failed to create subscription schedule")
	}

	_, err = g.client.API().V1SubscriptionSchedules.Update(ctx, schedule.ID, &stripe.SubscriptionScheduleUpdateParams{
		EndBehavior: stripe.String("release"),
		Phases: []*stripe.SubscriptionScheduleUpdatePhaseParams{
			{
				Items: []*stripe.SubscriptionScheduleUpdatePhaseItemParams{
					{Price: stripe.String(currentPriceID), Quantity: stripe.Int64(1)},
				},
				StartDate: stripe.Int64(periodStart),
				EndDate:   stripe.Int64(periodEnd),
			},
			{
				Items: []*stripe.SubscriptionScheduleUpdatePhaseItemParams{
					{Price: stripe.String(newPriceID), Quantity: stripe.Int64(1)},
				},
				StartDate: stripe.Int64(periodEnd),
			},
		},
	})
	if err != nil {
		return "", g.providerError(err, "failed to update subscription schedule")
	}

	return schedule.ID, nil
}

func (g *gateway) CancelSchedule(ctx context.Context, scheduleID string) error {
	_, err := g.client.API().V1SubscriptionSchedules.Cancel(ctx, scheduleID, &stripe.SubscriptionScheduleCancelParams{})
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok {
			if stripeErr.HTTPStatusCode == http.StatusBadRequest &&
				strings.Contains(stripeErr.Msg, "currently in the `canceled` status") {
				return ErrScheduleAlreadyCanceled
			}
		}
		return g.providerError(err, "failed to cancel subscription schedule")
	}
	return nil
}

func (g *gateway) GetInvoice(ctx context.Context, invoiceID string) (*InvoiceSnapshot, error) {
	params := &stripe.InvoiceRetrieveParams{
		Expand: []*string{
			stripe.String("payments"),
		},
	}
	invoice, err := g.client.API().V1Invoices.Retrieve(ctx, invoiceID, params)
	if err != nil {
		return nil, g.providerError(err, "failed to retrieve invoice")
	}
	return InvoiceSnapshotFromStripe(invoice), nil
}

// FindOpenProrationInvoice returns the first open invoice on the subscription
// that was produced by a plan change, or nil when none exists.
func (g *gateway) FindOpenProrationInvoice(ctx context.Context, subscriptionID string) (*InvoiceSnapshot, error) {
	params := &stripe.InvoiceListParams{
		Subscription: stripe.String(subscriptionID),
		Status:       stripe.String("open"),
	}
	params.Limit = stripe.Int64(10)

	for invoice, err := range g.client.API().V1Invoices.List(ctx, params) {
		if err != nil {
			return nil, g.providerError(err, "failed to list invoices")
		}
		snapshot := InvoiceSnapshotFromStripe(invoice)
		if snapshot.BillingReason == "subscription_update" || snapshot.HasProration {
			return snapshot, nil
		}
	}
	return nil, nil
}

func (g *gateway) FinalizeAndPayInvoice(ctx context.Context, invoiceID string) (*InvoiceSnapshot, error) {
	finalized, err := g.client.API().V1Invoices.FinalizeInvoice(ctx, invoiceID, &stripe.InvoiceFinalizeInvoiceParams{})
	if err != nil {
		return nil, g.providerError(err, "failed to finalize invoice")
	}

	paid, err := g.client.API().V1Invoices.Pay(ctx, finalized.ID, &stripe.InvoicePayParams{})
	if err != nil {
		return nil, g.providerError(err, "failed to pay invoice")
	}
	return InvoiceSnapshotFromStripe(paid), nil
}

func (g *gateway) FindInvoiceByPaymentIntent(ctx context.Context, paymentIntentID string) (*InvoiceSnapshot, error) {
	params := &stripe.InvoicePaymentListParams{
		Payment: &stripe.InvoicePaymentListPaymentParams{
			PaymentIntent: stripe.String(paymentIntentID),
			Type:          stripe.String("payment_intent"),
		},
	}
	params.Limit = stripe.Int64(1)

	for payment, err := range g.client.API().V1InvoicePayments.List(ctx, params) {
		if err != nil {
			return nil, g.providerError(err, "failed to list invoice payments")
		}
		if payment.Invoice == nil {
			continue
		}
		return g.GetInvoice(ctx, payment.Invoice.ID)
	}
	return nil, nil
}

// DownloadInvoicePDF fetches the rendered invoice document from the signed
// URL Stripe exposes on the invoice.
func (g *gateway) DownloadInvoicePDF(ctx context.Context, url string) ([]byte, error) {
	resp, err := g.httpClient.Send(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    url,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// CreateRefund issues a refund against a payment intent. A nil amount
// refunds the full charge.
func (g *gateway) CreateRefund(ctx context.Context, paymentIntentID string, amountMinor *int64) (*RefundSnapshot, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	if amountMinor != nil {
		params.Amount = stripe.Int64(*amountMinor)
	}

	refund, err := g.client.API().V1Refunds.Create(ctx, params)
	if err != nil {
		return nil, g.providerError(err, "failed to create refund")
	}

	snapshot := RefundSnapshotFromStripe(refund)
	if snapshot.PaymentIntentID == "" {
		snapshot.PaymentIntentID = paymentIntentID
	}
	return snapshot, nil
}

func (g *gateway) GetPaymentIntentCustomer(ctx context.Context, paymentIntentID string) (*CustomerSnapshot, error) {
	params := &stripe.PaymentIntentRetrieveParams{
		Expand: []*string{
			stripe.String("customer"),
		},
	}
	paymentIntent, err := g.client.API().V1PaymentIntents.Retrieve(ctx, paymentIntentID, params)
	if err != nil {
		return nil, g.providerError(err, "failed to retrieve payment intent")
	}
	if paymentIntent.Customer == nil {
		return nil, nil
	}
	return CustomerSnapshotFromStripe(paymentIntent.Customer), nil
}

func (g *gateway) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*CheckoutSessionSnapshot, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:     stripe.String("subscription"),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
	}

	session, err := g.client.API().V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, g.providerError(err, "failed to create checkout session")
	}
	return &CheckoutSessionSnapshot{
		ID:  session.ID,
		URL: session.URL,
	}, nil
}

// providerError wraps a Stripe API failure preserving the provider message
// for diagnostics.
func (g *gateway) providerError(err error, msg string) error {
	g.logger.Errorw(msg, "error", err)

	builder := ierr.WithError(err).WithHint(msg)
	if stripeErr, ok := err.(*stripe.Error); ok {
		builder = builder.WithReportableDetails(map[string]any{
			"stripe_error_code": string(stripeErr.Code),
			"stripe_message":    stripeErr.Msg,
		})
	}
	return builder.Mark(ierr.ErrIntegration)
}
