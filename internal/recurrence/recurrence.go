// Package recurrence turns a contract frequency into concrete visit dates.
// It is pure: same inputs, same output, no clock access.
package recurrence

import (
	"time"

	"github.com/fieldops/maintenance-visits/internal/model"
)

// Dates returns the ordered calendar dates on which a visit should exist
// for the given frequency, bounded by the contract window and the
// materialize-through date. Dates already present in existing are
// excluded, which makes repeated materialization idempotent.
//
// Interval frequencies are anchored to the contract start date: the k-th
// occurrence is start + k*interval, recomputed from the start every call,
// so editing a contract never drifts previously generated dates.
func Dates(freq model.Frequency, start time.Time, end *time.Time, through time.Time, existing map[time.Time]struct{}) []time.Time {
	start = DateOnly(start)
	through = DateOnly(through)

	limit := through
	if end != nil {
		e := DateOnly(*end)
		if e.Before(limit) {
			limit = e
		}
	}
	if limit.Before(start) {
		return nil
	}

	if freq.Kind == model.FrequencyOneTime {
		if _, ok := existing[start]; ok {
			return nil
		}
		return []time.Time{start}
	}

	if freq.Value <= 0 {
		return nil
	}

	var out []time.Time
	for k := 0; ; k++ {
		occ := occurrence(start, freq, k)
		if occ.After(limit) {
			break
		}
		if _, ok := existing[occ]; ok {
			continue
		}
		out = append(out, occ)
	}
	return out
}

// Next returns the first occurrence strictly after the given date, or
// nil when the contract window is exhausted.
func Next(freq model.Frequency, start time.Time, end *time.Time, after time.Time) *time.Time {
	start = DateOnly(start)
	after = DateOnly(after)

	if freq.Kind == model.FrequencyOneTime {
		if start.After(after) && withinEnd(start, end) {
			return &start
		}
		return nil
	}
	if freq.Value <= 0 {
		return nil
	}
	for k := 0; ; k++ {
		occ := occurrence(start, freq, k)
		if !withinEnd(occ, end) {
			return nil
		}
		if occ.After(after) {
			return &occ
		}
	}
}

func withinEnd(d time.Time, end *time.Time) bool {
	if end == nil {
		return true
	}
	return !d.After(DateOnly(*end))
}

// occurrence computes start + k*interval. Month-based units are always
// re-derived from the anchor so that clamping never compounds:
// Jan 31 + 1mo = Feb 28, but Jan 31 + 2mo = Mar 31, not Mar 28.
func occurrence(anchor time.Time, freq model.Frequency, k int) time.Time {
	n := freq.Value * k
	switch freq.Unit {
	case model.UnitDay:
		return anchor.AddDate(0, 0, n)
	case model.UnitWeek:
		return anchor.AddDate(0, 0, 7*n)
	case model.UnitMonth:
		return addMonths(anchor, n)
	case model.UnitQuarter:
		return addMonths(anchor, 3*n)
	case model.UnitHalfYear:
		return addMonths(anchor, 6*n)
	case model.UnitYear:
		return addMonths(anchor, 12*n)
	default:
		return anchor.AddDate(0, 0, n)
	}
}

// addMonths adds n calendar months, clamping to the last valid day of
// the resulting month (Jan 31 + 1 month = Feb 28/29).
func addMonths(d time.Time, n int) time.Time {
	year, month, day := d.Date()
	m := int(month) + n
	y := year + (m-1)/12
	m = (m-1)%12 + 1
	if m <= 0 {
		m += 12
		y--
	}
	if last := daysIn(y, time.Month(m)); day > last {
		day = last
	}
	return time.Date(y, time.Month(m), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
