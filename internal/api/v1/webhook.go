package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
	"github.com/billbridge/billbridge/internal/integration/stripe/webhook"
	"github.com/billbridge/billbridge/internal/logger"
)

// WebhookHandler handles webhook-related endpoints
type WebhookHandler struct {
	client  *stripegw.Client
	handler *webhook.Handler
	logger  *logger.Logger
}

func NewWebhookHandler(client *stripegw.Client, handler *webhook.Handler, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		client:  client,
		handler: handler,
		logger:  log,
	}
}

// @Summary Handle Stripe webhook events
// @Description Verify and dispatch incoming Stripe events
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe webhook signature"
// @Success 200 {object} map[string]interface{} "Webhook processed"
// @Failure 400 {object} map[string]interface{} "Invalid signature or payload"
// @Failure 500 {object} map[string]interface{} "Processing failure"
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Errorw("failed to read webhook body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		h.logger.Errorw("missing Stripe-Signature header")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing Stripe-Signature header",
		})
		return
	}

	event, err := h.client.VerifyWebhook(body, signature)
	if err != nil {
		h.logger.Errorw("failed to verify webhook signature", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to verify webhook signature or parse event",
		})
		return
	}

	if err := h.handler.HandleEvent(c.Request.Context(), event); err != nil {
		h.logger.Errorw("failed to process webhook event",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type,
		)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// @Summary Webhook health check
// @Description Confirms the webhook endpoint is reachable
// @Tags Webhooks
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /webhooks/stripe/health [get]
func (h *WebhookHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
