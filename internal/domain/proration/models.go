package proration

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundParams holds all necessary input for calculating a cancellation refund.
type RefundParams struct {
	CurrentPeriodStart time.Time       // Start of the current billing period
	CurrentPeriodEnd   time.Time       // End of the current billing period
	CancellationDate   time.Time       // Effective date/time of the cancellation
	AmountPaid         decimal.Decimal // Amount paid for the current period, minor units
}

// RefundResult holds the output of a refund calculation.
type RefundResult struct {
	RefundAmount decimal.Decimal // Amount to refund, minor units
	DaysTotal    int64           // Billed days in the period
	DaysUsed     int64           // Days consumed at cancellation time
	FullRefund   bool            // Whether the grace window applied
}
