package service

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/billbridge/billbridge/internal/api/dto"
	"github.com/billbridge/billbridge/internal/domain/refund"
	"github.com/billbridge/billbridge/internal/email"
	ierr "github.com/billbridge/billbridge/internal/errors"
	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
	"github.com/billbridge/billbridge/internal/types"
)

// stripeRefundIDPrefix guards the refund sync against payloads that carry a
// charge object rather than a refund object.
const stripeRefundIDPrefix = "re_"

// RefundService issues refunds at the provider and keeps the local refund
// ledger in step with provider refund events.
type RefundService interface {
	CreateRefund(ctx context.Context, paymentIntentID string, amount *decimal.Decimal) (*dto.RefundResponse, error)
	SyncFromProvider(ctx context.Context, snapshot *stripegw.RefundSnapshot) error
	GetRefunds(ctx context.Context, filter *types.RefundFilter) (*dto.ListRefundsResponse, error)
}

type refundService struct {
	ServiceParams
}

func NewRefundService(params ServiceParams) RefundService {
	return &refundService{
		ServiceParams: params,
	}
}

// CreateRefund issues a refund against a payment intent. A nil amount
// refunds the full charge. Amount is in major currency units.
func (s *refundService) CreateRefund(ctx context.Context, paymentIntentID string, amount *decimal.Decimal) (*dto.RefundResponse, error) {
	if paymentIntentID == "" {
		return nil, ierr.NewError("payment intent id is required").
			WithHint("A payment intent id is required to issue a refund").
			Mark(ierr.ErrValidation)
	}

	var amountMinor *int64
	if amount != nil {
		if amount.IsNegative() {
			return nil, ierr.NewError("refund amount cannot be negative").
				WithHint("Refund amount must be positive").
				Mark(ierr.ErrValidation)
		}
		minor := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
		amountMinor = &minor
	}

	snapshot, err := s.Gateway.CreateRefund(ctx, paymentIntentID, amountMinor)
	if err != nil {
		return nil, err
	}

	r := &refund.Refund{
		ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFUND),
		StripeRefundID:        snapshot.ID,
		StripePaymentIntentID: snapshot.PaymentIntentID,
		Amount:                decimal.NewFromInt(snapshot.Amount).Div(decimal.NewFromInt(100)),
		Currency:              snapshot.Currency,
		Status:                snapshot.Status,
		BaseModel:             types.GetDefaultBaseModel(),
	}
	if err := s.RefundRepo.Create(ctx, r); err != nil {
		if ierr.IsAlreadyExists(err) {
			s.Logger.Debugw("refund already recorded", "stripe_refund_id", snapshot.ID)
		} else {
			return nil, err
		}
	}

	s.Logger.Infow("issued refund",
		"refund_id", r.ID,
		"stripe_refund_id", snapshot.ID,
		"stripe_payment_intent_id", paymentIntentID,
		"amount", r.Amount,
		"currency", r.Currency,
	)

	s.sendRefundEmail(ctx, r)

	return dto.NewRefundResponse(r), nil
}

// SyncFromProvider upserts a refund reported by a provider event. Events
// whose object id is not a refund id are ignored; charge.refunded delivers
// the charge itself and the per-refund details arrive via refund.updated.
func (s *refundService) SyncFromProvider(ctx context.Context, snapshot *stripegw.RefundSnapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return nil
	}
	if !strings.HasPrefix(snapshot.ID, stripeRefundIDPrefix) {
		s.Logger.Debugw("skipping non-refund object in refund sync", "object_id", snapshot.ID)
		return nil
	}

	existing, err := s.RefundRepo.GetByStripeRefundID(ctx, snapshot.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}

	amount := decimal.NewFromInt(snapshot.Amount).Div(decimal.NewFromInt(100))

	if existing == nil {
		r := &refund.Refund{
			ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFUND),
			StripeRefundID:        snapshot.ID,
			StripePaymentIntentID: snapshot.PaymentIntentID,
			Amount:                amount,
			Currency:              snapshot.Currency,
			Status:                snapshot.Status,
			BaseModel:             types.GetDefaultBaseModel(),
		}
		if err := s.RefundRepo.Create(ctx, r); err != nil {
			return err
		}
		s.Logger.Infow("recorded refund from provider",
			"refund_id", r.ID,
			"stripe_refund_id", snapshot.ID,
		)
		return nil
	}

	existing.Status = snapshot.Status
	existing.Amount = amount
	existing.Currency = snapshot.Currency
	if snapshot.PaymentIntentID != "" {
		existing.StripePaymentIntentID = snapshot.PaymentIntentID
	}
	if err := s.RefundRepo.Update(ctx, existing); err != nil {
		return err
	}

	s.Logger.Infow("updated refund from provider",
		"refund_id", existing.ID,
		"stripe_refund_id", snapshot.ID,
		"status", snapshot.Status,
	)
	return nil
}

func (s *refundService) GetRefunds(ctx context.Context, filter *types.RefundFilter) (*dto.ListRefundsResponse, error) {
	if filter == nil {
		filter = types.NewRefundFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	refunds, err := s.RefundRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.RefundRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(refunds, func(r *refund.Refund, _ int) *dto.RefundResponse {
		return dto.NewRefundResponse(r)
	})
	return dto.NewListResponse(items, total, filter.PaginationFilter), nil
}

// sendRefundEmail notifies the customer that a refund was issued, attaching
// the related invoice PDF when it can be found. Entirely best-effort.
func (s *refundService) sendRefundEmail(ctx context.Context, r *refund.Refund) {
	customer, err := s.Gateway.GetPaymentIntentCustomer(ctx, r.StripePaymentIntentID)
	if err != nil || customer == nil || customer.Email == "" {
		if err != nil {
			s.Logger.Errorw("failed to look up customer for refund notification",
				"error", err,
				"stripe_payment_intent_id", r.StripePaymentIntentID,
			)
		}
		return
	}

	var attachments []email.Attachment
	if invoice, err := s.Gateway.FindInvoiceByPaymentIntent(ctx, r.StripePaymentIntentID); err == nil && invoice != nil && invoice.InvoicePDFURL != "" {
		if pdf, err := s.Gateway.DownloadInvoicePDF(ctx, invoice.InvoicePDFURL); err == nil {
			attachments = append(attachments, email.Attachment{Filename: invoiceAttachmentName, Content: pdf})
		}
	}

	amountText := r.Amount.StringFixed(2) + " " + strings.ToUpper(r.Currency)
	if _, err := s.EmailService.SendEmail(ctx, email.SendEmailRequest{
		ToAddress:   customer.Email,
		Subject:     "Refund Issued",
		Text:        "A refund of " + amountText + " has been issued to your payment method.",
		HTML:        "<p>A refund of <b>" + amountText + "</b> has been issued to your payment method.</p>",
		Attachments: attachments,
	}); err != nil {
		s.Logger.Errorw("failed to send refund email",
			"error", err,
			"to", customer.Email,
		)
	}
}
