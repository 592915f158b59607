package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/service"
	"github.com/billbridge/billbridge/internal/types"
)

type RefundHandler struct {
	service service.RefundService
	log     *logger.Logger
}

func NewRefundHandler(service service.RefundService, log *logger.Logger) *RefundHandler {
	return &RefundHandler{
		service: service,
		log:     log,
	}
}

type createRefundRequest struct {
	PaymentIntentID string           `json:"payment_intent_id" binding:"required"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
}

// @Summary List refunds
// @Description List refunds, optionally filtered by payment intent
// @Tags Refunds
// @Produce json
// @Param filter query types.RefundFilter false "Filter"
// @Success 200 {object} dto.ListRefundsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /refunds [get]
func (h *RefundHandler) GetRefunds(c *gin.Context) {
	filter := types.NewRefundFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetRefunds(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Issue a refund
// @Description Refund a payment intent, fully when no amount is given
// @Tags Refunds
// @Accept json
// @Produce json
// @Param refund body createRefundRequest true "Refund"
// @Success 201 {object} dto.RefundResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /refunds [post]
func (h *RefundHandler) CreateRefund(c *gin.Context) {
	var req createRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateRefund(c.Request.Context(), req.PaymentIntentID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
