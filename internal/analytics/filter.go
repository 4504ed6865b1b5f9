package analytics

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/installment-tracker/internal/domain"
)

// StatusFilter selects plans by payment state. Nil fields do not filter.
type StatusFilter struct {
	FullyPaid  *bool
	HasOverdue *bool
}

// AmountFilter bounds total and remaining amounts, inclusive. Nil bounds are open.
type AmountFilter struct {
	MinTotal     *decimal.Decimal
	MaxTotal     *decimal.Decimal
	MinRemaining *decimal.Decimal
	MaxRemaining *decimal.Decimal
}

// DateFilter bounds purchase and next payment dates, inclusive. Nil bounds are open.
// Plans without a next payment never match a next payment bound.
type DateFilter struct {
	PurchaseAfter     *time.Time
	PurchaseBefore    *time.Time
	NextPaymentAfter  *time.Time
	NextPaymentBefore *time.Time
}

// FilterByMerchant keeps plans whose merchant contains query, ignoring case.
func FilterByMerchant(plans map[string]*domain.InstallmentPlan, query string) map[string]*domain.InstallmentPlan {
	q := strings.ToLower(strings.TrimSpace(query))
	return filter(plans, func(p *domain.InstallmentPlan) bool {
		return strings.Contains(strings.ToLower(p.MerchantName()), q)
	})
}

// FilterByStatus applies f as of today.
func FilterByStatus(plans map[string]*domain.InstallmentPlan, f StatusFilter, today time.Time) map[string]*domain.InstallmentPlan {
	return filter(plans, func(p *domain.InstallmentPlan) bool {
		if f.FullyPaid != nil && p.IsFullyPaid() != *f.FullyPaid {
			return false
		}
		if f.HasOverdue != nil && p.HasOverdue(today) != *f.HasOverdue {
			return false
		}
		return true
	})
}

func FilterByAmount(plans map[string]*domain.InstallmentPlan, f AmountFilter) map[string]*domain.InstallmentPlan {
	return filter(plans, func(p *domain.InstallmentPlan) bool {
		total, remaining := p.TotalAmount(), p.RemainingBalance()
		switch {
		case f.MinTotal != nil && total.LessThan(*f.MinTotal):
			return false
		case f.MaxTotal != nil && total.GreaterThan(*f.MaxTotal):
			return false
		case f.MinRemaining != nil && remaining.LessThan(*f.MinRemaining):
			return false
		case f.MaxRemaining != nil && remaining.GreaterThan(*f.MaxRemaining):
			return false
		}
		return true
	})
}

func FilterByDate(plans map[string]*domain.InstallmentPlan, f DateFilter) map[string]*domain.InstallmentPlan {
	return filter(plans, func(p *domain.InstallmentPlan) bool {
		purchase := p.PurchaseDate()
		if f.PurchaseAfter != nil && purchase.Before(*f.PurchaseAfter) {
			return false
		}
		if f.PurchaseBefore != nil && purchase.After(*f.PurchaseBefore) {
			return false
		}

		next, ok := p.NextPaymentDue()
		if f.NextPaymentAfter != nil && (!ok || next.Before(*f.NextPaymentAfter)) {
			return false
		}
		if f.NextPaymentBefore != nil && (!ok || next.After(*f.NextPaymentBefore)) {
			return false
		}
		return true
	})
}

func filter(plans map[string]*domain.InstallmentPlan, keep func(*domain.InstallmentPlan) bool) map[string]*domain.InstallmentPlan {
	out := make(map[string]*domain.InstallmentPlan)
	for id, p := range plans {
		if keep(p) {
			out[id] = p
		}
	}
	return out
}
