package refund

import (
	"context"

	"github.com/billbridge/billbridge/internal/types"
)

// Repository defines the interface for refund persistence
type Repository interface {
	Create(ctx context.Context, refund *Refund) error
	Get(ctx context.Context, id string) (*Refund, error)
	GetByStripeRefundID(ctx context.Context, stripeRefundID string) (*Refund, error)
	List(ctx context.Context, filter *types.RefundFilter) ([]*Refund, error)
	Count(ctx context.Context, filter *types.RefundFilter) (int, error)
	Update(ctx context.Context, refund *Refund) error
}
