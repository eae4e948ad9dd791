package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) dashboard(c *gin.Context) {
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

	dashboard, err := h.analytics.Dashboard(c.Request.Context(), principal, from, to)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contracts": gin.H{
			"total":         dashboard.ContractsTotal,
			"active":        dashboard.ContractsActive,
			"expiring_soon": dashboard.ContractsExpiring,
			"expired":       dashboard.ContractsExpired,
			"health":        dashboard.HealthCounts,
		},
		"visits": gin.H{
			"total":           dashboard.VisitsTotal,
			"completed":       dashboard.VisitsCompleted,
			"completion_rate": dashboard.CompletionRate,
			"on_time_rate":    dashboard.OnTimeRate,
		},
		"technicians": dashboard.Technicians,
		"revenue":     dashboard.Revenue,
	})
}

func (h *Handler) exportDashboard(c *gin.Context) {
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

	result, err := h.analytics.ExportDashboard(c.Request.Context(), principal, from, to)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, xlsxContentType, result.Content)
}

func (h *Handler) visitReport(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.analytics.VisitReport(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

func (h *Handler) listStock(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	levels, err := h.stock.ListStock(c.Request.Context(), principal.Scope())
	if err != nil {
		h.handleError(c, err)
		return
	}

	out := make([]gin.H, 0, len(levels))
	for _, level := range levels {
		out = append(out, gin.H{
			"part_id":  level.PartID,
			"quantity": level.Quantity,
		})
	}
	c.JSON(http.StatusOK, gin.H{"stock": out})
}

func (h *Handler) getStock(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	partID, ok := pathID(c, "part_id")
	if !ok {
		return
	}

	quantity, err := h.stock.GetStock(c.Request.Context(), principal.Scope(), partID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"part_id": partID, "quantity": quantity})
}

func (h *Handler) listStockMovements(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	partID, ok := pathID(c, "part_id")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	movements, err := h.stock.ListMovements(c.Request.Context(), principal.Scope(), partID, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	out := make([]gin.H, 0, len(movements))
	for _, movement := range movements {
		out = append(out, gin.H{
			"id":             movement.ID,
			"part_id":        movement.PartID,
			"quantity_delta": movement.QuantityDelta,
			"visit_id":       movement.VisitID,
			"created_at":     movement.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"movements": out})
}
