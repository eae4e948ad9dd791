package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CalendarEntryKind string

const (
	CalendarEntryReal    CalendarEntryKind = "real"
	CalendarEntryVirtual CalendarEntryKind = "virtual"
)

// CalendarEntry is one slot in the calendar view. Real entries wrap a
// persisted visit; virtual entries are projected occurrences that have
// not been materialized yet and carry only a synthetic key.
type CalendarEntry struct {
	Kind       CalendarEntryKind
	Date       time.Time
	ContractID uuid.UUID
	Visit      *Visit // nil for virtual entries
}

// Key returns the durable visit id for real entries and a synthetic,
// non-actionable key for virtual ones.
func (e CalendarEntry) Key() string {
	if e.Kind == CalendarEntryReal && e.Visit != nil {
		return e.Visit.ID.String()
	}
	return fmt.Sprintf("virtual:%s:%s", e.ContractID, e.Date.Format("2006-01-02"))
}
