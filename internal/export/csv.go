// Package export renders plans into spreadsheet-friendly formats.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/segyhp/installment-tracker/internal/domain"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

// WritePlanCSV writes the plan summary as Field,Value rows, a blank row, and then
// one row per installment. Status is computed as of today.
func WritePlanCSV(w io.Writer, plan *domain.InstallmentPlan, today time.Time) error {
	cw := csv.NewWriter(w)

	nextDue := "None"
	if next, ok := plan.NextPaymentDue(); ok {
		nextDue = utils.FormatDate(next)
	}

	rows := [][]string{
		{"Field", "Value"},
		{"Plan ID", plan.ID()},
		{"Merchant Name", plan.MerchantName()},
		{"Total Amount", plan.TotalAmount().StringFixed(utils.MinorUnitPlaces)},
		{"Purchase Date", utils.FormatDate(plan.PurchaseDate())},
		{"Frequency", plan.Frequency().String()},
		{"Number of Installments", strconv.Itoa(plan.InstallmentCount())},
		{"Remaining Balance", plan.RemainingBalance().StringFixed(utils.MinorUnitPlaces)},
		{"Is Fully Paid", strconv.FormatBool(plan.IsFullyPaid())},
		{"Next Payment Due", nextDue},
		{"Overdue Installments", strconv.Itoa(len(plan.OverdueInstallments(today)))},
		{},
		{"Installment", "Amount", "Due Date", "Status", "Paid Date"},
	}

	for _, inst := range plan.Installments() {
		paidOn := ""
		if d, ok := inst.PaidDate(); ok {
			paidOn = utils.FormatDate(d)
		}
		rows = append(rows, []string{
			strconv.Itoa(inst.Index()),
			inst.Amount().StringFixed(utils.MinorUnitPlaces),
			utils.FormatDate(inst.DueDate()),
			string(inst.Status(today)),
			paidOn,
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
