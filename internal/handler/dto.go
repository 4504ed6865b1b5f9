package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/installment-tracker/internal/analytics"
	"github.com/segyhp/installment-tracker/internal/domain"
	"github.com/segyhp/installment-tracker/internal/service"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

// Request bodies carry dates as YYYY-MM-DD and amounts as decimal strings.

type CreatePlanRequest struct {
	MerchantName     string   `json:"merchant_name" validate:"required"`
	TotalAmount      string   `json:"total_amount" validate:"required"`
	PurchaseDate     string   `json:"purchase_date" validate:"required"`
	InstallmentCount int      `json:"installment_count" validate:"required,min=1"`
	Frequency        string   `json:"frequency" validate:"required"`
	DueDates         []string `json:"due_dates,omitempty"`
}

type EditPlanRequest struct {
	MerchantName *string  `json:"merchant_name,omitempty"`
	TotalAmount  *string  `json:"total_amount,omitempty"`
	Amounts      []string `json:"amounts,omitempty"`
	DueDates     []string `json:"due_dates,omitempty"`
}

type MarkPaidRequest struct {
	PaidDate string `json:"paid_date,omitempty"`
}

type EditPaidDateRequest struct {
	PaidDate string `json:"paid_date" validate:"required"`
}

type InstallmentResponse struct {
	Index    int     `json:"index"`
	Amount   string  `json:"amount"`
	DueDate  string  `json:"due_date"`
	Status   string  `json:"status"`
	PaidDate *string `json:"paid_date"`
}

type PlanResponse struct {
	PlanID           string                `json:"plan_id"`
	MerchantName     string                `json:"merchant_name"`
	TotalAmount      string                `json:"total_amount"`
	PurchaseDate     string                `json:"purchase_date"`
	Frequency        string                `json:"frequency"`
	InstallmentCount int                   `json:"installment_count"`
	PaidAmount       string                `json:"paid_amount"`
	RemainingBalance string                `json:"remaining_balance"`
	IsFullyPaid      bool                  `json:"is_fully_paid"`
	NextPaymentDue   *string               `json:"next_payment_due"`
	Installments     []InstallmentResponse `json:"installments"`
}

type PaymentResponse struct {
	PlanID       string `json:"plan_id"`
	Merchant     string `json:"merchant_name"`
	Index        int    `json:"index"`
	Amount       string `json:"amount"`
	DueDate      string `json:"due_date"`
	DaysUntilDue int    `json:"days_until_due"`
}

type DashboardResponse struct {
	Date          string               `json:"date"`
	Statistics    analytics.Statistics `json:"statistics"`
	OverdueTotal  string               `json:"overdue_total"`
	DueTodayTotal string               `json:"due_today_total"`
	Timeline      map[int]string       `json:"timeline"`
	Overdue       []PaymentResponse    `json:"overdue"`
	Upcoming      []PaymentResponse    `json:"upcoming"`
}

type PaymentGroupResponse struct {
	DueDate  string            `json:"due_date"`
	Total    string            `json:"total"`
	Payments []PaymentResponse `json:"payments"`
}

type PaymentsResponse struct {
	Date          string                 `json:"date"`
	Overdue       []PaymentResponse      `json:"overdue"`
	Upcoming      []PaymentResponse      `json:"upcoming"`
	GroupedByDate []PaymentGroupResponse `json:"grouped_by_date"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(utils.MinorUnitPlaces)
}

// toPlanResponse reports installment statuses as of today.
func toPlanResponse(plan *domain.InstallmentPlan, today time.Time) PlanResponse {
	resp := PlanResponse{
		PlanID:           plan.ID(),
		MerchantName:     plan.MerchantName(),
		TotalAmount:      money(plan.TotalAmount()),
		PurchaseDate:     utils.FormatDate(plan.PurchaseDate()),
		Frequency:        plan.Frequency().String(),
		InstallmentCount: plan.InstallmentCount(),
		PaidAmount:       money(plan.PaidAmount()),
		RemainingBalance: money(plan.RemainingBalance()),
		IsFullyPaid:      plan.IsFullyPaid(),
		Installments:     []InstallmentResponse{},
	}
	if next, ok := plan.NextPaymentDue(); ok {
		s := utils.FormatDate(next)
		resp.NextPaymentDue = &s
	}

	for _, inst := range plan.Installments() {
		ir := InstallmentResponse{
			Index:   inst.Index(),
			Amount:  money(inst.Amount()),
			DueDate: utils.FormatDate(inst.DueDate()),
			Status:  string(inst.Status(today)),
		}
		if paidOn, ok := inst.PaidDate(); ok {
			s := utils.FormatDate(paidOn)
			ir.PaidDate = &s
		}
		resp.Installments = append(resp.Installments, ir)
	}
	return resp
}

func toPaymentResponses(payments []analytics.PaymentInfo) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, PaymentResponse{
			PlanID:       p.PlanID,
			Merchant:     p.Merchant,
			Index:        p.Installment.Index(),
			Amount:       money(p.Installment.Amount()),
			DueDate:      utils.FormatDate(p.Installment.DueDate()),
			DaysUntilDue: p.DaysUntilDue,
		})
	}
	return out
}

// toPaymentGroups buckets payments by due date, earliest first.
func toPaymentGroups(payments []analytics.PaymentInfo) []PaymentGroupResponse {
	dates, grouped := analytics.GroupByDueDate(payments)
	out := make([]PaymentGroupResponse, 0, len(dates))
	for _, due := range dates {
		total := decimal.Zero
		for _, p := range grouped[due] {
			total = total.Add(p.Installment.Amount())
		}
		out = append(out, PaymentGroupResponse{
			DueDate:  utils.FormatDate(due),
			Total:    money(total),
			Payments: toPaymentResponses(grouped[due]),
		})
	}
	return out
}

func toDashboardResponse(d *service.Dashboard) DashboardResponse {
	timeline := make(map[int]string, len(d.Timeline))
	for w, total := range d.Timeline {
		timeline[w] = money(total)
	}
	return DashboardResponse{
		Date:          utils.FormatDate(d.Today),
		Statistics:    d.Statistics,
		OverdueTotal:  money(d.OverdueTotal),
		DueTodayTotal: money(d.DueTodayTotal),
		Timeline:      timeline,
		Overdue:       toPaymentResponses(d.Overdue),
		Upcoming:      toPaymentResponses(d.Upcoming),
	}
}
