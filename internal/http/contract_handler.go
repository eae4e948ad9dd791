package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fieldops/maintenance-visits/internal/model"
	"github.com/fieldops/maintenance-visits/internal/service"
)

type contractRequest struct {
	CustomerID   string           `json:"customer_id" binding:"required"`
	ProductID    string           `json:"product_id" binding:"required"`
	TechnicianID string           `json:"technician_id"`
	Frequency    frequencyPayload `json:"frequency" binding:"required"`
	StartDate    string           `json:"start_date" binding:"required"`
	EndDate      string           `json:"end_date"`
	Value        float64          `json:"value"`
	Instructions string           `json:"instructions"`
}

func (h *Handler) bindContractInput(c *gin.Context) (service.ContractInput, bool) {
	var req contractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return service.ContractInput{}, false
	}

	customerID, err := parseOptionalUUID(req.CustomerID)
	if err != nil || customerID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
		return service.ContractInput{}, false
	}
	productID, err := parseOptionalUUID(req.ProductID)
	if err != nil || productID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product_id"})
		return service.ContractInput{}, false
	}
	technicianID, err := parseOptionalUUID(req.TechnicianID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid technician_id"})
		return service.ContractInput{}, false
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return service.ContractInput{}, false
	}
	var end *time.Time
	if req.EndDate != "" {
		parsed, err := parseDate(req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return service.ContractInput{}, false
		}
		end = &parsed
	}

	return service.ContractInput{
		CustomerID:   *customerID,
		ProductID:    *productID,
		TechnicianID: technicianID,
		Frequency:    req.Frequency.toModel(),
		StartDate:    start,
		EndDate:      end,
		Value:        req.Value,
		Instructions: req.Instructions,
	}, true
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	input, ok := h.bindContractInput(c)
	if !ok {
		return
	}

	contract, err := h.contracts.Create(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toContractResponse(contract))
}

func (h *Handler) updateContract(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	input, ok := h.bindContractInput(c)
	if !ok {
		return
	}

	contract, err := h.contracts.Update(c.Request.Context(), principal, id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) getContract(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	contract, err := h.contracts.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) listContracts(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var status *model.ContractStatus
	if raw := c.Query("status"); raw != "" {
		parsed := model.ContractStatus(raw)
		switch parsed {
		case model.ContractStatusActive, model.ContractStatusPaused,
			model.ContractStatusCompleted, model.ContractStatusCancelled:
			status = &parsed
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}

	contracts, err := h.contracts.List(c.Request.Context(), principal, status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": toContractResponses(contracts)})
}

func (h *Handler) listExpiringContracts(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	days := 0
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = parsed
	}

	contracts, err := h.contracts.ListExpiring(c.Request.Context(), principal, days)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": toContractResponses(contracts)})
}

func (h *Handler) deleteContract(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.contracts.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) pauseContract(c *gin.Context) {
	h.transitionContract(c, h.contracts.Pause)
}

func (h *Handler) resumeContract(c *gin.Context) {
	h.transitionContract(c, h.contracts.Resume)
}

func (h *Handler) cancelContract(c *gin.Context) {
	h.transitionContract(c, h.contracts.Cancel)
}

func (h *Handler) transitionContract(c *gin.Context, op func(ctx context.Context, principal model.Principal, id uuid.UUID) error) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := op(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type renewContractRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date"`
}

func (h *Handler) renewContract(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req renewContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return
	}
	var end *time.Time
	if req.EndDate != "" {
		parsed, err := parseDate(req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return
		}
		end = &parsed
	}

	renewed, err := h.contracts.Renew(c.Request.Context(), principal, id, start, end)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toContractResponse(renewed))
}

func (h *Handler) contractHealth(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	health, err := h.contracts.Health(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	var nextVisit *string
	if health.NextVisitDate != nil {
		formatted := health.NextVisitDate.Format("2006-01-02")
		nextVisit = &formatted
	}
	c.JSON(http.StatusOK, gin.H{
		"contract_id":       health.ContractID,
		"completion_rate":   health.CompletionRate,
		"completed_visits":  health.CompletedVisits,
		"total_visits":      health.TotalVisits,
		"days_until_expiry": health.DaysUntilExpiry,
		"next_visit_date":   nextVisit,
		"expiring_soon":     health.ExpiringSoon,
		"expired":           health.Expired,
		"label":             health.Label,
	})
}

func (h *Handler) materializeContract(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	through, err := parseDate(c.Query("through"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid through"})
		return
	}

	created, err := h.scheduling.MaterializeContract(c.Request.Context(), principal, id, through)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visits": toVisitResponses(created)})
}
