package proration

import (
	"context"

	"github.com/shopspring/decimal"

	ierr "github.com/billbridge/billbridge/internal/errors"
)

const (
	secondsPerDay = 86400

	// GracePeriodDays is the window after a period starts during which a
	// cancellation refunds the full amount paid.
	GracePeriodDays = 3
)

// Calculator computes the refundable portion of a billing period.
type Calculator interface {
	Calculate(ctx context.Context, params RefundParams) (*RefundResult, error)
}

// NewCalculator creates the default day-based refund calculator.
func NewCalculator() Calculator {
	return &dayBasedCalculator{}
}

// dayBasedCalculator counts whole days, rounding partial days up. A period
// of one second is one day, and a customer one second into day four has used
// four days.
type dayBasedCalculator struct{}

func (c *dayBasedCalculator) Calculate(ctx context.Context, params RefundParams) (*RefundResult, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	periodStart := params.CurrentPeriodStart.Unix()
	periodEnd := params.CurrentPeriodEnd.Unix()
	canceledAt := params.CancellationDate.Unix()

	daysTotal := ceilDays(periodEnd - periodStart)
	daysUsed := ceilDays(canceledAt - periodStart)
	if daysUsed < 0 {
		daysUsed = 0
	}

	result := &RefundResult{
		DaysTotal: daysTotal,
		DaysUsed:  daysUsed,
	}

	if daysUsed <= GracePeriodDays {
		result.RefundAmount = params.AmountPaid
		result.FullRefund = true
		return result, nil
	}

	daysUnused := daysTotal - daysUsed
	if daysUnused <= 0 {
		result.RefundAmount = decimal.Zero
		return result, nil
	}

	// amountPaid * daysUnused / daysTotal, rounded half away from zero
	result.RefundAmount = params.AmountPaid.
		Mul(decimal.NewFromInt(daysUnused)).
		Div(decimal.NewFromInt(daysTotal)).
		Round(0)
	return result, nil
}

// ceilDays converts a span of seconds into whole days, rounding up
func ceilDays(seconds int64) int64 {
	if seconds <= 0 {
		return 0
	}
	return (seconds + secondsPerDay - 1) / secondsPerDay
}

func validateParams(params RefundParams) error {
	if !params.CurrentPeriodEnd.After(params.CurrentPeriodStart) {
		return ierr.NewError("invalid billing period").
			WithHintf("period end %v is not after period start %v", params.CurrentPeriodEnd, params.CurrentPeriodStart).
			Mark(ierr.ErrValidation)
	}
	if params.AmountPaid.IsNegative() {
		return ierr.NewError("amount paid cannot be negative").
			WithHint("Refunds can only be computed from a non-negative paid amount").
			Mark(ierr.ErrValidation)
	}
	return nil
}
