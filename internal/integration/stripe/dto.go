package stripe

import (
	"github.com/stripe/stripe-go/v82"
)

// Snapshots are flattened views of Stripe objects. Everything outside this
// package works with these instead of the raw API types, so the provider's
// field layout is absorbed in one place. Amounts stay in minor units here;
// conversion to major units happens in the services.

// ProductSnapshot mirrors the catalog-relevant fields of a Stripe product
type ProductSnapshot struct {
	ID          string
	Name        string
	Description string
	Active      bool
}

// PriceSnapshot mirrors the catalog-relevant fields of a Stripe price
type PriceSnapshot struct {
	ID         string
	ProductID  string
	UnitAmount int64
	Currency   string
	Interval   string
	Active     bool
	Recurring  bool
}

// SubscriptionSnapshot mirrors a Stripe subscription. Period bounds come
// from the first line item.
type SubscriptionSnapshot struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	ItemID             string
	ScheduleID         string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	CancelAtPeriodEnd  bool
	CanceledAt         int64
	LatestInvoice      *InvoiceSnapshot
}

// InvoiceSnapshot mirrors the fields of a Stripe invoice this service reads
type InvoiceSnapshot struct {
	ID              string
	Status          string
	BillingReason   string
	AmountPaid      int64
	PaymentIntentID string
	InvoicePDFURL   string
	HasProration    bool
}

// RefundSnapshot mirrors a Stripe refund
type RefundSnapshot struct {
	ID              string
	PaymentIntentID string
	Amount          int64
	Currency        string
	Status          string
}

// CustomerSnapshot mirrors a Stripe customer
type CustomerSnapshot struct {
	ID    string
	Email string
	Name  string
}

// PaymentSessionSnapshot carries what a client needs to confirm payment on
// a newly created incomplete subscription.
type PaymentSessionSnapshot struct {
	SubscriptionID string
	ClientSecret   string
	Status         string
}

// CheckoutSessionSnapshot mirrors a Stripe hosted checkout session
type CheckoutSessionSnapshot struct {
	ID  string
	URL string
}

// ProductSnapshotFromStripe converts a Stripe product
func ProductSnapshotFromStripe(p *stripe.Product) *ProductSnapshot {
	if p == nil {
		return nil
	}
	return &ProductSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
	}
}

// PriceSnapshotFromStripe converts a Stripe price
func PriceSnapshotFromStripe(p *stripe.Price) *PriceSnapshot {
	if p == nil {
		return nil
	}
	snapshot := &PriceSnapshot{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
		Active:     p.Active,
	}
	if p.Product != nil {
		snapshot.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		snapshot.Recurring = true
		snapshot.Interval = string(p.Recurring.Interval)
	}
	return snapshot
}

// SubscriptionSnapshotFromStripe converts a Stripe subscription
func SubscriptionSnapshotFromStripe(s *stripe.Subscription) *SubscriptionSnapshot {
	if s == nil {
		return nil
	}
	snapshot := &SubscriptionSnapshot{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CanceledAt:        s.CanceledAt,
	}
	if s.Customer != nil {
		snapshot.CustomerID = s.Customer.ID
	}
	if s.Schedule != nil {
		snapshot.ScheduleID = s.Schedule.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		snapshot.ItemID = item.ID
		snapshot.CurrentPeriodStart = item.CurrentPeriodStart
		snapshot.CurrentPeriodEnd = item.CurrentPeriodEnd
		if item.Price != nil {
			snapshot.PriceID = item.Price.ID
		}
	}
	if s.LatestInvoice != nil {
		snapshot.LatestInvoice = InvoiceSnapshotFromStripe(s.LatestInvoice)
	}
	return snapshot
}

// InvoiceSnapshotFromStripe converts a Stripe invoice. The payment intent is
// only populated when the invoice was retrieved with payments expanded.
func InvoiceSnapshotFromStripe(inv *stripe.Invoice) *InvoiceSnapshot {
	if inv == nil {
		return nil
	}
	snapshot := &InvoiceSnapshot{
		ID:            inv.ID,
		Status:        string(inv.Status),
		BillingReason: string(inv.BillingReason),
		AmountPaid:    inv.AmountPaid,
		InvoicePDFURL: inv.InvoicePDF,
	}
	if inv.Payments != nil {
		for _, payment := range inv.Payments.Data {
			if payment.Payment != nil && payment.Payment.PaymentIntent != nil {
				snapshot.PaymentIntentID = payment.Payment.PaymentIntent.ID
				break
			}
		}
	}
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line.Parent != nil && line.Parent.SubscriptionItemDetails != nil &&
				line.Parent.SubscriptionItemDetails.Proration {
				snapshot.HasProration = true
				break
			}
		}
	}
	return snapshot
}

// SubscriptionIDFromInvoice extracts the owning subscription id, if any
func SubscriptionIDFromInvoice(inv *stripe.Invoice) string {
	if inv == nil || inv.Parent == nil || inv.Parent.SubscriptionDetails == nil {
		return ""
	}
	if inv.Parent.SubscriptionDetails.Subscription == nil {
		return ""
	}
	return inv.Parent.SubscriptionDetails.Subscription.ID
}

// RefundSnapshotFromStripe converts a Stripe refund
func RefundSnapshotFromStripe(r *stripe.Refund) *RefundSnapshot {
	if r == nil {
		return nil
	}
	snapshot := &RefundSnapshot{
		ID:       r.ID,
		Amount:   r.Amount,
		Currency: string(r.Currency),
		Status:   string(r.Status),
	}
	if r.PaymentIntent != nil {
		snapshot.PaymentIntentID = r.PaymentIntent.ID
	}
	return snapshot
}

// RefundSnapshotsFromCharge extracts every refund attached to a charge
func RefundSnapshotsFromCharge(ch *stripe.Charge) []*RefundSnapshot {
	if ch == nil || ch.Refunds == nil {
		return nil
	}
	snapshots := make([]*RefundSnapshot, 0, len(ch.Refunds.Data))
	for _, r := range ch.Refunds.Data {
		snapshot := RefundSnapshotFromStripe(r)
		if snapshot.PaymentIntentID == "" && ch.PaymentIntent != nil {
			snapshot.PaymentIntentID = ch.PaymentIntent.ID
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots
}

// CustomerSnapshotFromStripe converts a Stripe customer
func CustomerSnapshotFromStripe(c *stripe.Customer) *CustomerSnapshot {
	if c == nil {
		return nil
	}
	return &CustomerSnapshot{
		ID:    c.ID,
		Email: c.Email,
		Name:  c.Name,
	}
}
