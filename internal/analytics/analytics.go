// Package analytics aggregates a collection of installment plans into dashboard figures.
// Every function is pure: the reference date is always passed in, and inputs are never mutated.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/installment-tracker/internal/domain"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

// DefaultWindows are the timeline window sizes in days.
var DefaultWindows = []int{7, 15, 30, 60}

// Statistics summarises a plan collection.
type Statistics struct {
	TotalPlans              int             `json:"total_plans"`
	FullyPaidCount          int             `json:"fully_paid_count"`
	ActiveCount             int             `json:"active_count"`
	TotalPaid               decimal.Decimal `json:"total_paid"`
	TotalRemaining          decimal.Decimal `json:"total_remaining"`
	TotalUnpaidInstallments int             `json:"total_unpaid_installments"`
}

// PaymentInfo is an unpaid installment together with the plan it belongs to.
type PaymentInfo struct {
	PlanID       string
	Merchant     string
	Installment  domain.Installment
	DaysUntilDue int
}

// CategorizedPayments splits unpaid installments around a reference date.
type CategorizedPayments struct {
	Overdue  []PaymentInfo
	Upcoming []PaymentInfo
}

// CalculateStatistics totals paid and remaining amounts across plans.
func CalculateStatistics(plans map[string]*domain.InstallmentPlan) Statistics {
	stats := Statistics{
		TotalPaid:      decimal.Zero,
		TotalRemaining: decimal.Zero,
	}

	for _, plan := range plans {
		stats.TotalPlans++
		if plan.IsFullyPaid() {
			stats.FullyPaidCount++
		} else {
			stats.ActiveCount++
		}
		stats.TotalPaid = stats.TotalPaid.Add(plan.PaidAmount())
		stats.TotalRemaining = stats.TotalRemaining.Add(plan.RemainingBalance())
		stats.TotalUnpaidInstallments += plan.UnpaidInstallmentCount()
	}

	return stats
}

// CategorizePayments puts each unpaid installment in Overdue (due before today)
// or Upcoming (due today or later). Both lists are ordered by due date, plan id, index.
func CategorizePayments(plans map[string]*domain.InstallmentPlan, today time.Time) CategorizedPayments {
	today = utils.NormalizeDate(today)

	var result CategorizedPayments
	for _, info := range unpaid(plans, today) {
		if info.DaysUntilDue < 0 {
			result.Overdue = append(result.Overdue, info)
		} else {
			result.Upcoming = append(result.Upcoming, info)
		}
	}
	return result
}

// PaymentTimeline returns, per window W, the amount of unpaid installments due
// between today and today+W inclusive. Overdue installments count in no window,
// so a larger window never totals less than a smaller one.
// DefaultWindows is used when no window is given.
func PaymentTimeline(plans map[string]*domain.InstallmentPlan, today time.Time, windows ...int) map[int]decimal.Decimal {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	today = utils.NormalizeDate(today)

	totals := make(map[int]decimal.Decimal, len(windows))
	for _, w := range windows {
		totals[w] = decimal.Zero
	}

	for _, info := range unpaid(plans, today) {
		if info.DaysUntilDue < 0 {
			continue
		}
		for _, w := range windows {
			if info.DaysUntilDue <= w {
				totals[w] = totals[w].Add(info.Installment.Amount())
			}
		}
	}
	return totals
}

// OverdueTotal sums the unpaid amounts due before today.
func OverdueTotal(plans map[string]*domain.InstallmentPlan, today time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, info := range CategorizePayments(plans, today).Overdue {
		total = total.Add(info.Installment.Amount())
	}
	return total
}

// DueOnTotal sums the unpaid amounts due exactly on day.
func DueOnTotal(plans map[string]*domain.InstallmentPlan, day time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, info := range unpaid(plans, utils.NormalizeDate(day)) {
		if info.DaysUntilDue == 0 {
			total = total.Add(info.Installment.Amount())
		}
	}
	return total
}

// GroupByDueDate buckets payments by due date. Dates come back in ascending order.
func GroupByDueDate(payments []PaymentInfo) ([]time.Time, map[time.Time][]PaymentInfo) {
	grouped := make(map[time.Time][]PaymentInfo)
	var dates []time.Time
	for _, p := range payments {
		due := p.Installment.DueDate()
		if _, ok := grouped[due]; !ok {
			dates = append(dates, due)
		}
		grouped[due] = append(grouped[due], p)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, grouped
}

func unpaid(plans map[string]*domain.InstallmentPlan, today time.Time) []PaymentInfo {
	var out []PaymentInfo
	for planID, plan := range plans {
		for _, inst := range plan.Installments() {
			if inst.IsPaid() {
				continue
			}
			out = append(out, PaymentInfo{
				PlanID:       planID,
				Merchant:     plan.MerchantName(),
				Installment:  inst,
				DaysUntilDue: inst.DaysUntilDue(today),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if !a.Installment.DueDate().Equal(b.Installment.DueDate()) {
			return a.Installment.DueDate().Before(b.Installment.DueDate())
		}
		if a.PlanID != b.PlanID {
			return a.PlanID < b.PlanID
		}
		return a.Installment.Index() < b.Installment.Index()
	})
	return out
}
