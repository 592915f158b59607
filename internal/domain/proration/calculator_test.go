package proration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator_Calculate(t *testing.T) {
	periodStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 0, 30)

	tests := []struct {
		name          string
		params        RefundParams
		expected      *RefundResult
		expectedError string
	}{
		{
			name: "full_refund_on_last_grace_day",
			params: RefundParams{
				CurrentPeriodStart: periodStart,
				CurrentPeriodEnd:   periodEnd,
				CancellationDate:   periodStart.AddDate(0, 0, 3),
				AmountPaid:         decimal.NewFromInt(3000),
			},
			expected: &RefundResult{
				RefundAmount: decimal.NewFromInt(3000),
				DaysTotal:    30,
				DaysUsed:     3,
				FullRefund:   true,
			},
		},
		{
			name: "prorated_one_second_past_grace",
			params: RefundParams{
				CurrentPeriodStart: periodStart,
				CurrentPeriodEnd:   periodEnd,
				CancellationDate:   periodStart.AddDate(0, 0, 3).Add(time.Second),
				AmountPaid:         decimal.NewFromInt(3000),
			},
			expected: &RefundResult{
				// 3000 * 26 / 30
				RefundAmount: decimal.NewFromInt(2600),
				DaysTotal:    30,
				DaysUsed:     4,
				FullRefund:   false,
			},
		},
		{
			name: "partial_day_counts_as_full_day",
			params: RefundParams{
				CurrentPeriodStart: periodStart,
				CurrentPeriodEnd:   periodEnd,
				CancellationDate:   periodStart.AddDate(0, 0, 14).Add(time.Hour),
				AmountPaid:         decimal.NewFromInt(3000),
			},
			expected: &RefundResult{
				// 3000 * 15 / 30
				RefundAmount: decimal.NewFromInt(1500),
				DaysTotal:    30,
				DaysUsed:     15,
				FullRefund:   false,
			},
		},
		{
			name: "rounding_half_away_from_zero",
			params: RefundParams{
				CurrentPeriodStart: periodStart,
				CurrentPeriodEnd:   periodEnd,
				CancellationDate:   periodStart.AddDate(0, 0, 6).Add(time.Second),
				AmountPaid:         decimal.NewFromInt(1000),
			},
			expected: &RefundResult{
				// 1000 * 23 / 30 = 766.66... rounds to 767
				RefundAmount: decimal.NewFromInt(767),
				DaysTotal:    30,
				DaysUsed:     7,
				FullRefund:   false,
			},
		},
		{
			name: "zero_refund_at_period_end",
			params: RefundParams{
				CurrentPeriodStart: periodStart,
				CurrentPeriodEnd:   periodEnd,
				CancellationDate:   periodEnd,
				AmountPaid:         decimal.NewFromInt(3000),
			},
			expected: &RefundResult{
				RefundAmount: decimal.Zero,
				DaysTotal:    30,
				DaysUsed:     30,
				FullRefund:   false,
			},
		},
		{
			name: "cancellation_after_period_end",
			params: RefundParams{
				CurrentPeriodStart: periodStart,
				CurrentPeriodEnd:   periodEnd,
				CancellationDate:   periodEnd.AddDate(0, 0, 2),
				AmountPaid:         decimal.NewFromInt(3000),
			},
			expected: &RefundResult{
				RefundAmount: decimal.Zero,
				DaysTotal:    30,
				DaysUsed:     32,
				FullRefund:   false,
			},
		},
		{
			name: "one_second_period_is_one_day",
			params: RefundParams{
				CurrentPeriodStart: periodStart,
				CurrentPeriodEnd:   periodStart.Add(time.Second),
				CancellationDate:   periodStart,
				AmountPaid:         decimal.NewFromInt(500),
			},
			expected: &RefundResult{
				RefundAmount: decimal.NewFromInt(500),
				DaysTotal:    1,
				DaysUsed:     0,
				FullRefund:   true,
			},
		},
		{
			name: "zero_amount_paid_full_refund_of_zero",
			params: RefundParams{
				CurrentPeriodStart: periodStart,
				CurrentPeriodEnd:   periodEnd,
				CancellationDate:   periodStart.AddDate(0, 0, 1),
				AmountPaid:         decimal.Zero,
			},
			expected: &RefundResult{
				RefundAmount: decimal.Zero,
				DaysTotal:    30,
				DaysUsed:     1,
				FullRefund:   true,
			},
		},
		{
			name: "inverted_period_rejected",
			params: RefundParams{
				CurrentPeriodStart: periodEnd,
				CurrentPeriodEnd:   periodStart,
				CancellationDate:   periodStart,
				AmountPaid:         decimal.NewFromInt(3000),
			},
			expectedError: "invalid billing period",
		},
		{
			name: "negative_amount_rejected",
			params: RefundParams{
				CurrentPeriodStart: periodStart,
				CurrentPeriodEnd:   periodEnd,
				CancellationDate:   periodStart,
				AmountPaid:         decimal.NewFromInt(-1),
			},
			expectedError: "amount paid cannot be negative",
		},
	}

	calc := NewCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := calc.Calculate(context.Background(), tt.params)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.True(t, tt.expected.RefundAmount.Equal(result.RefundAmount),
				"refund amount mismatch: expected %s got %s", tt.expected.RefundAmount, result.RefundAmount)
			assert.Equal(t, tt.expected.DaysTotal, result.DaysTotal)
			assert.Equal(t, tt.expected.DaysUsed, result.DaysUsed)
			assert.Equal(t, tt.expected.FullRefund, result.FullRefund)
		})
	}
}
