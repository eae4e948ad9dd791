package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/maintenance-visits/internal/http/middleware"
	"github.com/fieldops/maintenance-visits/internal/model"
	"github.com/fieldops/maintenance-visits/internal/service"
)

// StockReader reads the branch stock ledger. Satisfied by
// repository.StockRepository.
type StockReader interface {
	GetStock(ctx context.Context, scope model.Scope, partID uuid.UUID) (int, error)
	ListStock(ctx context.Context, scope model.Scope) ([]model.StockLevel, error)
	ListMovements(ctx context.Context, scope model.Scope, partID uuid.UUID, limit int) ([]model.StockMovement, error)
}

type Handler struct {
	contracts  *service.ContractService
	scheduling *service.SchedulingService
	execution  *service.ExecutionService
	analytics  *service.AnalyticsService
	stock      StockReader
	log        zerolog.Logger
}

func NewHandler(
	contracts *service.ContractService,
	scheduling *service.SchedulingService,
	execution *service.ExecutionService,
	analytics *service.AnalyticsService,
	stock StockReader,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		contracts:  contracts,
		scheduling: scheduling,
		execution:  execution,
		analytics:  analytics,
		stock:      stock,
		log:        log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/contracts", h.createContract)
	protected.GET("/contracts", h.listContracts)
	protected.GET("/contracts/expiring", h.listExpiringContracts)
	protected.GET("/contracts/:id", h.getContract)
	protected.PUT("/contracts/:id", h.updateContract)
	protected.DELETE("/contracts/:id", h.deleteContract)
	protected.POST("/contracts/:id/pause", h.pauseContract)
	protected.POST("/contracts/:id/resume", h.resumeContract)
	protected.POST("/contracts/:id/cancel", h.cancelContract)
	protected.POST("/contracts/:id/renew", h.renewContract)
	protected.GET("/contracts/:id/health", h.contractHealth)
	protected.POST("/contracts/:id/materialize", h.materializeContract)

	protected.GET("/calendar", h.calendar)

	protected.POST("/visits", h.scheduleVisit)
	protected.GET("/visits", h.listVisits)
	protected.GET("/visits/:id", h.getVisit)
	protected.POST("/visits/:id/start", h.startVisit)
	protected.POST("/visits/:id/complete", h.completeVisit)
	protected.POST("/visits/:id/reschedule", h.rescheduleVisit)
	protected.POST("/visits/:id/cancel", h.cancelVisit)
	protected.POST("/visits/:id/corrections", h.correctVisit)
	protected.GET("/visits/:id/report", h.visitReport)

	protected.GET("/analytics/dashboard", h.dashboard)
	protected.POST("/analytics/dashboard/export", h.exportDashboard)

	protected.GET("/stock", h.listStock)
	protected.GET("/stock/:part_id", h.getStock)
	protected.GET("/stock/:part_id/movements", h.listStockMovements)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func mustPrincipal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
	}
	return principal, ok
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrValidation
	}
	layouts := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrValidation
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

type frequencyPayload struct {
	Kind  string `json:"kind" binding:"required"`
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

func (p frequencyPayload) toModel() model.Frequency {
	return model.Frequency{
		Kind:  model.FrequencyKind(p.Kind),
		Value: p.Value,
		Unit:  model.FrequencyUnit(p.Unit),
	}
}

type contractResponse struct {
	ID           uuid.UUID        `json:"id"`
	CustomerID   uuid.UUID        `json:"customer_id"`
	ProductID    uuid.UUID        `json:"product_id"`
	TechnicianID *uuid.UUID       `json:"technician_id,omitempty"`
	Frequency    frequencyPayload `json:"frequency"`
	StartDate    string           `json:"start_date"`
	EndDate      *string          `json:"end_date,omitempty"`
	Value        float64          `json:"value"`
	Instructions string           `json:"instructions,omitempty"`
	Status       string           `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func toContractResponse(contract *model.Contract) contractResponse {
	resp := contractResponse{
		ID:           contract.ID,
		CustomerID:   contract.CustomerID,
		ProductID:    contract.ProductID,
		TechnicianID: contract.TechnicianID,
		Frequency: frequencyPayload{
			Kind:  string(contract.Frequency.Kind),
			Value: contract.Frequency.Value,
			Unit:  string(contract.Frequency.Unit),
		},
		StartDate:    contract.StartDate.Format("2006-01-02"),
		Value:        contract.Value,
		Instructions: contract.Instructions,
		Status:       string(contract.Status),
		CreatedAt:    contract.CreatedAt,
		UpdatedAt:    contract.UpdatedAt,
	}
	if contract.EndDate != nil {
		end := contract.EndDate.Format("2006-01-02")
		resp.EndDate = &end
	}
	return resp
}

func toContractResponses(contracts []model.Contract) []contractResponse {
	out := make([]contractResponse, 0, len(contracts))
	for i := range contracts {
		out = append(out, toContractResponse(&contracts[i]))
	}
	return out
}

type visitPartResponse struct {
	PartID   uuid.UUID `json:"part_id"`
	Quantity int       `json:"quantity"`
	UnitCost float64   `json:"unit_cost"`
}

type visitResponse struct {
	ID              uuid.UUID           `json:"id"`
	ContractID      uuid.UUID           `json:"contract_id"`
	ScheduledDate   string              `json:"scheduled_date"`
	ScheduledTime   *string             `json:"scheduled_time,omitempty"`
	TechnicianID    *uuid.UUID          `json:"technician_id,omitempty"`
	Priority        string              `json:"priority"`
	Status          string              `json:"status"`
	ActualStartAt   *time.Time          `json:"actual_start_at,omitempty"`
	ActualEndAt     *time.Time          `json:"actual_end_at,omitempty"`
	WorkDescription string              `json:"work_description,omitempty"`
	CompletionNotes string              `json:"completion_notes,omitempty"`
	CancelReason    string              `json:"cancel_reason,omitempty"`
	Parts           []visitPartResponse `json:"parts,omitempty"`
	TotalCost       float64             `json:"total_cost"`
	Rating          *int                `json:"rating,omitempty"`
}

func toVisitResponse(visit *model.Visit) visitResponse {
	resp := visitResponse{
		ID:              visit.ID,
		ContractID:      visit.ContractID,
		ScheduledDate:   visit.ScheduledDate.Format("2006-01-02"),
		ScheduledTime:   visit.ScheduledTime,
		TechnicianID:    visit.TechnicianID,
		Priority:        string(visit.Priority),
		Status:          string(visit.Status),
		ActualStartAt:   visit.ActualStartAt,
		ActualEndAt:     visit.ActualEndAt,
		WorkDescription: visit.WorkDescription,
		CompletionNotes: visit.CompletionNotes,
		CancelReason:    visit.CancelReason,
		TotalCost:       visit.TotalCost,
		Rating:          visit.Rating,
	}
	for _, part := range visit.Parts {
		resp.Parts = append(resp.Parts, visitPartResponse{
			PartID:   part.PartID,
			Quantity: part.Quantity,
			UnitCost: part.UnitCost,
		})
	}
	return resp
}

func toVisitResponses(visits []model.Visit) []visitResponse {
	out := make([]visitResponse, 0, len(visits))
	for i := range visits {
		out = append(out, toVisitResponse(&visits[i]))
	}
	return out
}
