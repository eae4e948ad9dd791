package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/maintenance-visits/internal/model"
	"github.com/fieldops/maintenance-visits/internal/repository"
	"github.com/fieldops/maintenance-visits/internal/service"
)

type scheduleVisitRequest struct {
	ContractID    string  `json:"contract_id" binding:"required"`
	ScheduledDate string  `json:"scheduled_date" binding:"required"`
	ScheduledTime *string `json:"scheduled_time"`
	TechnicianID  string  `json:"technician_id"`
	Priority      string  `json:"priority"`
	Description   string  `json:"description"`
}

func (h *Handler) scheduleVisit(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req scheduleVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contractID, err := parseOptionalUUID(req.ContractID)
	if err != nil || contractID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract_id"})
		return
	}
	technicianID, err := parseOptionalUUID(req.TechnicianID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid technician_id"})
		return
	}
	date, err := parseDate(req.ScheduledDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_date"})
		return
	}

	visit, err := h.scheduling.ScheduleVisit(c.Request.Context(), principal, service.ScheduleVisitInput{
		ContractID:    *contractID,
		ScheduledDate: date,
		ScheduledTime: req.ScheduledTime,
		TechnicianID:  technicianID,
		Priority:      model.VisitPriority(req.Priority),
		Description:   req.Description,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toVisitResponse(visit))
}

func (h *Handler) listVisits(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var filter repository.VisitFilter
	var err error
	if filter.ContractID, err = parseOptionalUUID(c.Query("contract_id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract_id"})
		return
	}
	if filter.TechnicianID, err = parseOptionalUUID(c.Query("technician_id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid technician_id"})
		return
	}
	if raw := c.Query("status"); raw != "" {
		status := model.VisitStatus(raw)
		switch status {
		case model.VisitStatusScheduled, model.VisitStatusInProgress,
			model.VisitStatusCompleted, model.VisitStatusCancelled, model.VisitStatusMissed:
			filter.Status = &status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}
	if raw := c.Query("from"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return
		}
		filter.To = &to
	}

	visits, err := h.execution.List(c.Request.Context(), principal, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visits": toVisitResponses(visits)})
}

func (h *Handler) getVisit(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	visit, err := h.execution.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVisitResponse(visit))
}

func (h *Handler) startVisit(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	visit, err := h.execution.Start(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVisitResponse(visit))
}

type completeVisitRequest struct {
	Notes string `json:"notes" binding:"required"`
	Parts []struct {
		PartID   string  `json:"part_id" binding:"required"`
		Quantity int     `json:"quantity" binding:"required"`
		UnitCost float64 `json:"unit_cost"`
	} `json:"parts"`
	Rating            *int     `json:"rating"`
	TotalCostOverride *float64 `json:"total_cost_override"`
}

func (h *Handler) completeVisit(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req completeVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.CompleteVisitInput{
		Notes:             req.Notes,
		Rating:            req.Rating,
		TotalCostOverride: req.TotalCostOverride,
	}
	for _, line := range req.Parts {
		partID, err := parseOptionalUUID(line.PartID)
		if err != nil || partID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid part_id"})
			return
		}
		input.Parts = append(input.Parts, service.PartLine{
			PartID:   *partID,
			Quantity: line.Quantity,
			UnitCost: line.UnitCost,
		})
	}

	visit, err := h.execution.Complete(c.Request.Context(), principal, id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVisitResponse(visit))
}

type rescheduleVisitRequest struct {
	ScheduledDate string  `json:"scheduled_date" binding:"required"`
	ScheduledTime *string `json:"scheduled_time"`
}

func (h *Handler) rescheduleVisit(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req rescheduleVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := parseDate(req.ScheduledDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_date"})
		return
	}

	visit, err := h.execution.Reschedule(c.Request.Context(), principal, id, date, req.ScheduledTime)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVisitResponse(visit))
}

type cancelVisitRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) cancelVisit(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req cancelVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.execution.Cancel(c.Request.Context(), principal, id, req.Reason); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type correctVisitRequest struct {
	Field    string `json:"field" binding:"required"`
	NewValue string `json:"new_value" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

func (h *Handler) correctVisit(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req correctVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.execution.AdminCorrect(c.Request.Context(), principal, id, req.Field, req.NewValue, req.Reason); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) calendar(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	from, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}

	entries, err := h.scheduling.Calendar(c.Request.Context(), principal, from, to)
	if err != nil {
		h.handleError(c, err)
		return
	}

	out := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		item := gin.H{
			"key":         entry.Key(),
			"kind":        entry.Kind,
			"date":        entry.Date.Format("2006-01-02"),
			"contract_id": entry.ContractID,
		}
		if entry.Visit != nil {
			item["visit"] = toVisitResponse(entry.Visit)
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}
