package model

import (
	"time"

	"github.com/google/uuid"
)

type StockLevel struct {
	TenantID uuid.UUID
	BranchID uuid.UUID
	PartID   uuid.UUID
	Quantity int
}

// StockMovement is an append-only audit record of a branch stock change.
type StockMovement struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	BranchID      uuid.UUID
	PartID        uuid.UUID
	QuantityDelta int
	VisitID       *uuid.UUID
	CreatedAt     time.Time
}
