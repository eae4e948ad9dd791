package service

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time. Injected so tests can pin it.
type Clock func() time.Time

// IDGen supplies new identifiers.
type IDGen func() uuid.UUID

func systemClock() time.Time { return time.Now().UTC() }

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
