package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/service"
	"github.com/billbridge/billbridge/internal/types"
)

type PlanHandler struct {
	service service.PlanService
	log     *logger.Logger
}

func NewPlanHandler(service service.PlanService, log *logger.Logger) *PlanHandler {
	return &PlanHandler{
		service: service,
		log:     log,
	}
}

// @Summary List plans
// @Description List plans mirrored from the payment provider
// @Tags Plans
// @Produce json
// @Param filter query types.PlanFilter false "Filter"
// @Success 200 {object} dto.ListPlansResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /plans [get]
func (h *PlanHandler) GetPlans(c *gin.Context) {
	filter := types.NewPlanFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetPlans(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a plan
// @Description Get a plan by internal id or provider price id
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.PlanResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /plans/{id} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("plan id is required").
			WithHint("Plan ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetPlan(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Sync the plan catalog
// @Description Pull all active products and recurring prices from the payment provider and upsert local plans
// @Tags Plans
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 500 {object} errors.ErrorResponse
// @Router /plans/sync [post]
func (h *PlanHandler) SyncPlans(c *gin.Context) {
	count, err := h.service.SyncCatalog(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "catalog synced",
		"synced":  count,
	})
}
