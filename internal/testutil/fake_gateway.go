package testutil

import (
	"context"
	"fmt"
	"sync"

	ierr "github.com/billbridge/billbridge/internal/errors"
	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
)

// FakeGateway is an in-memory stand-in for the Stripe gateway. Responses are
// seeded per test and every mutating call is recorded for assertions.
type FakeGateway struct {
	mu sync.Mutex

	Products      map[string]*stripegw.ProductSnapshot
	Prices        map[string][]*stripegw.PriceSnapshot
	Customers     map[string]*stripegw.CustomerSnapshot
	Subscriptions map[string]*stripegw.SubscriptionSnapshot
	Invoices      map[string]*stripegw.InvoiceSnapshot

	// OpenProrationInvoice is returned by FindOpenProrationInvoice when set
	OpenProrationInvoice *stripegw.InvoiceSnapshot

	// PaymentIntentCustomers maps payment intent ids to customers
	PaymentIntentCustomers map[string]*stripegw.CustomerSnapshot

	// PaymentIntentInvoices maps payment intent ids to invoices
	PaymentIntentInvoices map[string]*stripegw.InvoiceSnapshot

	// CanceledSchedules tracks schedules already canceled remotely; canceling
	// one of these returns the already-canceled sentinel.
	CanceledSchedules map[string]bool

	// Errors to inject per operation name, e.g. "ChangeSubscriptionPrice"
	Errors map[string]error

	// Recorded calls
	RefundCalls         []RefundCall
	ScheduleCancelCalls []string
	PriceChangeCalls    []PriceChangeCall
	ScheduleCreateCalls []ScheduleCreateCall
	FinalizedInvoices   []string

	refundSeq   int
	scheduleSeq int
}

type RefundCall struct {
	PaymentIntentID string
	AmountMinor     *int64
}

type PriceChangeCall struct {
	SubscriptionID string
	NewPriceID     string
}

type ScheduleCreateCall struct {
	SubscriptionID string
	NewPriceID     string
}

// NewFakeGateway creates an empty fake gateway
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Products:               make(map[string]*stripegw.ProductSnapshot),
		Prices:                 make(map[string][]*stripegw.PriceSnapshot),
		Customers:              make(map[string]*stripegw.CustomerSnapshot),
		Subscriptions:          make(map[string]*stripegw.SubscriptionSnapshot),
		Invoices:               make(map[string]*stripegw.InvoiceSnapshot),
		PaymentIntentCustomers: make(map[string]*stripegw.CustomerSnapshot),
		PaymentIntentInvoices:  make(map[string]*stripegw.InvoiceSnapshot),
		CanceledSchedules:      make(map[string]bool),
		Errors:                 make(map[string]error),
	}
}

func (g *FakeGateway) injected(op string) error {
	if err, ok := g.Errors[op]; ok {
		return err
	}
	return nil
}

func notFound(entity string) error {
	return ierr.NewError(entity + " not found").
		WithHint("The provider does not know this " + entity).
		Mark(ierr.ErrIntegration)
}

func (g *FakeGateway) ListActiveProducts(ctx context.Context) ([]*stripegw.ProductSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("ListActiveProducts"); err != nil {
		return nil, err
	}
	var out []*stripegw.ProductSnapshot
	for _, p := range g.Products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (g *FakeGateway) GetProduct(ctx context.Context, productID string) (*stripegw.ProductSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("GetProduct"); err != nil {
		return nil, err
	}
	if p, ok := g.Products[productID]; ok {
		return p, nil
	}
	return nil, notFound("product")
}

func (g *FakeGateway) ListProductPrices(ctx context.Context, productID string) ([]*stripegw.PriceSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("ListProductPrices"); err != nil {
		return nil, err
	}
	return g.Prices[productID], nil
}

func (g *FakeGateway) FindOrCreateCustomer(ctx context.Context, name, email string) (*stripegw.CustomerSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("FindOrCreateCustomer"); err != nil {
		return nil, err
	}
	for _, c := range g.Customers {
		if c.Email == email {
			return c, nil
		}
	}
	customer := &stripegw.CustomerSnapshot{
		ID:    fmt.Sprintf("cus_fake_%d", len(g.Customers)+1),
		Email: email,
		Name:  name,
	}
	g.Customers[customer.ID] = customer
	return customer, nil
}

func (g *FakeGateway) GetCustomer(ctx context.Context, customerID string) (*stripegw.CustomerSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("GetCustomer"); err != nil {
		return nil, err
	}
	if c, ok := g.Customers[customerID]; ok {
		return c, nil
	}
	return nil, notFound("customer")
}

func (g *FakeGateway) AttachCardPaymentMethod(ctx context.Context, customerID, cardToken, name, email string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("AttachCardPaymentMethod"); err != nil {
		return "", err
	}
	return "pm_fake_" + customerID, nil
}

func (g *FakeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*stripegw.SubscriptionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("GetSubscription"); err != nil {
		return nil, err
	}
	if s, ok := g.Subscriptions[subscriptionID]; ok {
		return s, nil
	}
	return nil, notFound("subscription")
}

func (g *FakeGateway) CreateIncompleteSubscription(ctx context.Context, customerID, priceID string) (*stripegw.PaymentSessionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("CreateIncompleteSubscription"); err != nil {
		return nil, err
	}
	return &stripegw.PaymentSessionSnapshot{
		SubscriptionID: "sub_fake_incomplete",
		ClientSecret:   "pi_fake_secret",
		Status:         "incomplete",
	}, nil
}

func (g *FakeGateway) ChangeSubscriptionPrice(ctx context.Context, subscriptionID, newPriceID string) (*stripegw.SubscriptionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("ChangeSubscriptionPrice"); err != nil {
		return nil, err
	}
	g.PriceChangeCalls = append(g.PriceChangeCalls, PriceChangeCall{
		SubscriptionID: subscriptionID,
		NewPriceID:     newPriceID,
	})
	sub, ok := g.Subscriptions[subscriptionID]
	if !ok {
		return nil, notFound("subscription")
	}
	updated := *sub
	updated.PriceID = newPriceID
	g.Subscriptions[subscriptionID] = &updated
	return &updated, nil
}

func (g *FakeGateway) CreateDowngradeSchedule(ctx context.Context, subscriptionID, newPriceID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("CreateDowngradeSchedule"); err != nil {
		return "", err
	}
	g.ScheduleCreateCalls = append(g.ScheduleCreateCalls, ScheduleCreateCall{
		SubscriptionID: subscriptionID,
		NewPriceID:     newPriceID,
	})
	g.scheduleSeq++
	scheduleID := fmt.Sprintf("sub_sched_fake_%d", g.scheduleSeq)
	if sub, ok := g.Subscriptions[subscriptionID]; ok {
		updated := *sub
		updated.ScheduleID = scheduleID
		g.Subscriptions[subscriptionID] = &updated
	}
	return scheduleID, nil
}

func (g *FakeGateway) CancelSchedule(ctx context.Context, scheduleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("CancelSchedule"); err != nil {
		return err
	}
	g.ScheduleCancelCalls = append(g.ScheduleCancelCalls, scheduleID)
	if g.CanceledSchedules[scheduleID] {
		return stripegw.ErrScheduleAlreadyCanceled
	}
	g.CanceledSchedules[scheduleID] = true
	return nil
}

func (g *FakeGateway) GetInvoice(ctx context.Context, invoiceID string) (*stripegw.InvoiceSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("GetInvoice"); err != nil {
		return nil, err
	}
	if inv, ok := g.Invoices[invoiceID]; ok {
		return inv, nil
	}
	return nil, notFound("invoice")
}

func (g *FakeGateway) FindOpenProrationInvoice(ctx context.Context, subscriptionID string) (*stripegw.InvoiceSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("FindOpenProrationInvoice"); err != nil {
		return nil, err
	}
	return g.OpenProrationInvoice, nil
}

func (g *FakeGateway) FinalizeAndPayInvoice(ctx context.Context, invoiceID string) (*stripegw.InvoiceSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("FinalizeAndPayInvoice"); err != nil {
		return nil, err
	}
	g.FinalizedInvoices = append(g.FinalizedInvoices, invoiceID)
	if inv, ok := g.Invoices[invoiceID]; ok {
		paid := *inv
		paid.Status = "paid"
		return &paid, nil
	}
	if g.OpenProrationInvoice != nil && g.OpenProrationInvoice.ID == invoiceID {
		paid := *g.OpenProrationInvoice
		paid.Status = "paid"
		return &paid, nil
	}
	return nil, notFound("invoice")
}

func (g *FakeGateway) FindInvoiceByPaymentIntent(ctx context.Context, paymentIntentID string) (*stripegw.InvoiceSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("FindInvoiceByPaymentIntent"); err != nil {
		return nil, err
	}
	if inv, ok := g.PaymentIntentInvoices[paymentIntentID]; ok {
		return inv, nil
	}
	return nil, nil
}

func (g *FakeGateway) DownloadInvoicePDF(ctx context.Context, url string) ([]byte, error) {
	if err := g.injected("DownloadInvoicePDF"); err != nil {
		return nil, err
	}
	return []byte("%PDF-fake"), nil
}

func (g *FakeGateway) CreateRefund(ctx context.Context, paymentIntentID string, amountMinor *int64) (*stripegw.RefundSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("CreateRefund"); err != nil {
		return nil, err
	}
	g.RefundCalls = append(g.RefundCalls, RefundCall{
		PaymentIntentID: paymentIntentID,
		AmountMinor:     amountMinor,
	})
	g.refundSeq++
	amount := int64(0)
	if amountMinor != nil {
		amount = *amountMinor
	}
	return &stripegw.RefundSnapshot{
		ID:              fmt.Sprintf("re_fake_%d", g.refundSeq),
		PaymentIntentID: paymentIntentID,
		Amount:          amount,
		Currency:        "usd",
		Status:          "succeeded",
	}, nil
}

func (g *FakeGateway) GetPaymentIntentCustomer(ctx context.Context, paymentIntentID string) (*stripegw.CustomerSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("GetPaymentIntentCustomer"); err != nil {
		return nil, err
	}
	if c, ok := g.PaymentIntentCustomers[paymentIntentID]; ok {
		return c, nil
	}
	return nil, notFound("payment intent")
}

func (g *FakeGateway) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*stripegw.CheckoutSessionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.injected("CreateCheckoutSession"); err != nil {
		return nil, err
	}
	return &stripegw.CheckoutSessionSnapshot{
		ID:  "cs_fake_1",
		URL: "https://checkout.stripe.com/fake",
	}, nil
}
