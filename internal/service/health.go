package service

import (
	"time"

	"github.com/fieldops/maintenance-visits/internal/model"
	"github.com/fieldops/maintenance-visits/internal/recurrence"
)

// DeriveHealth computes the contract health label from completion
// progress and expiry proximity. Pure; nothing here is ever stored.
//
// Expiry proximity dominates: a contract about to lapse is a warning no
// matter how well its visits went, and an expired one is critical.
func DeriveHealth(contract *model.Contract, completed, total int, now time.Time, expiringSoonDays int) model.ContractHealth {
	today := dateOnly(now)

	denominator := total
	if denominator < 1 {
		denominator = 1
	}
	rate := float64(completed) / float64(denominator)

	health := model.ContractHealth{
		ContractID:      contract.ID,
		CompletionRate:  rate,
		CompletedVisits: completed,
		TotalVisits:     total,
	}

	if contract.EndDate != nil {
		end := dateOnly(*contract.EndDate)
		days := int(end.Sub(today).Hours() / 24)
		health.DaysUntilExpiry = &days
		health.Expired = end.Before(today)
		health.ExpiringSoon = days >= 0 && days <= expiringSoonDays
	}
	if contract.Status == model.ContractStatusActive {
		health.NextVisitDate = recurrence.Next(contract.Frequency, contract.StartDate, contract.EndDate, today)
	}

	switch {
	case health.Expired || contract.Status == model.ContractStatusCancelled:
		health.Label = model.HealthCritical
	case health.ExpiringSoon:
		health.Label = model.HealthWarning
	case rate >= 0.9:
		health.Label = model.HealthExcellent
	case rate >= 0.7:
		health.Label = model.HealthGood
	case rate >= 0.4:
		health.Label = model.HealthWarning
	default:
		health.Label = model.HealthCritical
	}
	return health
}
