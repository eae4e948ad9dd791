package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/maintenance-visits/internal/model"
)

func TestDeriveHealthLabels(t *testing.T) {
	now := date(2026, time.March, 1)
	farEnd := date(2026, time.December, 31)

	cases := []struct {
		name      string
		completed int
		total     int
		end       *time.Time
		status    model.ContractStatus
		want      model.HealthLabel
	}{
		{"high completion far from expiry", 9, 10, &farEnd, model.ContractStatusActive, model.HealthExcellent},
		{"good completion", 7, 10, &farEnd, model.ContractStatusActive, model.HealthGood},
		{"mediocre completion", 4, 10, &farEnd, model.ContractStatusActive, model.HealthWarning},
		{"low completion", 1, 10, &farEnd, model.ContractStatusActive, model.HealthCritical},
		{"no visits yet", 0, 0, &farEnd, model.ContractStatusActive, model.HealthCritical},
		{"open-ended high completion", 9, 10, nil, model.ContractStatusActive, model.HealthExcellent},
		{"cancelled contract", 10, 10, &farEnd, model.ContractStatusCancelled, model.HealthCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			contract := &model.Contract{
				ID:      uuid.New(),
				Status:  tc.status,
				EndDate: tc.end,
			}
			got := DeriveHealth(contract, tc.completed, tc.total, now, 30)
			if got.Label != tc.want {
				t.Fatalf("label = %s, want %s", got.Label, tc.want)
			}
		})
	}
}

func TestDeriveHealthExpiryOverridesRate(t *testing.T) {
	now := date(2026, time.March, 1)

	soon := date(2026, time.March, 11)
	contract := &model.Contract{ID: uuid.New(), Status: model.ContractStatusActive, EndDate: &soon}
	health := DeriveHealth(contract, 9, 10, now, 30)
	if health.Label != model.HealthWarning {
		t.Fatalf("expiring-soon label = %s, want warning", health.Label)
	}
	if !health.ExpiringSoon {
		t.Fatal("expected ExpiringSoon")
	}
	if health.DaysUntilExpiry == nil || *health.DaysUntilExpiry != 10 {
		t.Fatalf("DaysUntilExpiry = %v, want 10", health.DaysUntilExpiry)
	}

	past := date(2026, time.February, 1)
	contract.EndDate = &past
	health = DeriveHealth(contract, 10, 10, now, 30)
	if health.Label != model.HealthCritical {
		t.Fatalf("expired label = %s, want critical", health.Label)
	}
	if !health.Expired {
		t.Fatal("expected Expired")
	}
}

func TestDeriveHealthCompletionRate(t *testing.T) {
	contract := &model.Contract{ID: uuid.New(), Status: model.ContractStatusActive}
	health := DeriveHealth(contract, 1, 3, date(2026, time.March, 1), 30)
	want := 1.0 / 3.0
	if diff := health.CompletionRate - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("CompletionRate = %f, want %f", health.CompletionRate, want)
	}
	if health.CompletedVisits != 1 || health.TotalVisits != 3 {
		t.Fatalf("counts = %d/%d, want 1/3", health.CompletedVisits, health.TotalVisits)
	}
}

func TestDeriveHealthNextVisitDate(t *testing.T) {
	now := date(2026, time.March, 20)
	end := date(2026, time.June, 30)
	contract := &model.Contract{
		ID:        uuid.New(),
		Status:    model.ContractStatusActive,
		Frequency: model.Frequency{Kind: model.FrequencyInterval, Value: 1, Unit: model.UnitMonth},
		StartDate: date(2026, time.January, 15),
		EndDate:   &end,
	}

	health := DeriveHealth(contract, 1, 3, now, 30)
	if health.NextVisitDate == nil || !health.NextVisitDate.Equal(date(2026, time.April, 15)) {
		t.Fatalf("NextVisitDate = %v, want 2026-04-15", health.NextVisitDate)
	}

	// Past the last occurrence inside the window there is no next date.
	health = DeriveHealth(contract, 6, 6, date(2026, time.June, 16), 30)
	if health.NextVisitDate != nil {
		t.Fatalf("NextVisitDate = %v, want nil after the final occurrence", health.NextVisitDate)
	}

	// Paused and cancelled contracts schedule nothing.
	contract.Status = model.ContractStatusPaused
	health = DeriveHealth(contract, 1, 3, now, 30)
	if health.NextVisitDate != nil {
		t.Fatalf("NextVisitDate = %v, want nil for paused contract", health.NextVisitDate)
	}
}

func TestDeriveHealthEndDateTodayIsNotExpired(t *testing.T) {
	today := date(2026, time.March, 1)
	contract := &model.Contract{ID: uuid.New(), Status: model.ContractStatusActive, EndDate: &today}
	health := DeriveHealth(contract, 10, 10, today, 30)
	if health.Expired {
		t.Fatal("contract ending today should not be expired")
	}
	if !health.ExpiringSoon {
		t.Fatal("contract ending today should be expiring soon")
	}
}
