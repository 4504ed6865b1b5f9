package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/installment-tracker/pkg/errors"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newMonthlyPlan(t *testing.T, total string, count int) *InstallmentPlan {
	t.Helper()
	plan, err := NewInstallmentPlan(PlanParams{
		ID:               "acme_2024-01-01",
		MerchantName:     "Acme",
		TotalAmount:      dec(total),
		PurchaseDate:     utils.Date(2024, time.January, 1),
		InstallmentCount: count,
		Frequency:        FrequencyMonthly,
	})
	require.NoError(t, err)
	return plan
}

func assertConserved(t *testing.T, plan *InstallmentPlan) {
	t.Helper()
	sum := decimal.Zero
	for _, inst := range plan.Installments() {
		sum = sum.Add(inst.Amount())
	}
	assert.True(t, sum.Equal(plan.TotalAmount()), "installments sum to %s, total is %s", sum, plan.TotalAmount())
	assert.True(t, plan.RemainingBalance().Equal(plan.TotalAmount().Sub(plan.PaidAmount())))
}

func TestNewInstallmentPlan_MonthlySchedule(t *testing.T) {
	plan := newMonthlyPlan(t, "1200.00", 4)

	expectedDates := []time.Time{
		utils.Date(2024, time.January, 1),
		utils.Date(2024, time.February, 1),
		utils.Date(2024, time.March, 1),
		utils.Date(2024, time.April, 1),
	}

	insts := plan.Installments()
	require.Len(t, insts, 4)
	for i, inst := range insts {
		assert.Equal(t, i, inst.Index())
		assert.True(t, inst.Amount().Equal(dec("300.00")))
		assert.Equal(t, expectedDates[i], inst.DueDate())
	}
	assertConserved(t, plan)
	assert.False(t, plan.IsFullyPaid())
	assert.Equal(t, 4, plan.UnpaidInstallmentCount())
}

func TestNewInstallmentPlan_RemainderOnLast(t *testing.T) {
	plan := newMonthlyPlan(t, "100.00", 3)

	insts := plan.Installments()
	assert.True(t, insts[0].Amount().Equal(dec("33.33")))
	assert.True(t, insts[1].Amount().Equal(dec("33.33")))
	assert.True(t, insts[2].Amount().Equal(dec("33.34")))
	assertConserved(t, plan)
}

func TestNewInstallmentPlan_Frequencies(t *testing.T) {
	purchase := utils.Date(2024, time.January, 31)

	tests := []struct {
		name      string
		frequency Frequency
		expected  []time.Time
	}{
		{
			name:      "monthly clamps to month length",
			frequency: FrequencyMonthly,
			expected: []time.Time{
				utils.Date(2024, time.January, 31),
				utils.Date(2024, time.February, 29),
				utils.Date(2024, time.March, 31),
				utils.Date(2024, time.April, 30),
			},
		},
		{
			name:      "fortnightly",
			frequency: FrequencyFortnightly,
			expected: []time.Time{
				utils.Date(2024, time.January, 31),
				utils.Date(2024, time.February, 14),
				utils.Date(2024, time.February, 28),
				utils.Date(2024, time.March, 13),
			},
		},
		{
			name:      "weekly",
			frequency: FrequencyWeekly,
			expected: []time.Time{
				utils.Date(2024, time.January, 31),
				utils.Date(2024, time.February, 7),
				utils.Date(2024, time.February, 14),
				utils.Date(2024, time.February, 21),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewInstallmentPlan(PlanParams{
				MerchantName:     "Acme",
				TotalAmount:      dec("400"),
				PurchaseDate:     purchase,
				InstallmentCount: 4,
				Frequency:        tt.frequency,
			})
			require.NoError(t, err)

			for i, inst := range plan.Installments() {
				assert.Equal(t, tt.expected[i], inst.DueDate(), "installment %d", i)
			}
		})
	}
}

func TestNewInstallmentPlan_Custom(t *testing.T) {
	dates := []time.Time{
		utils.Date(2024, time.February, 10),
		utils.Date(2024, time.February, 10),
		utils.Date(2024, time.May, 1),
	}
	plan, err := NewInstallmentPlan(PlanParams{
		MerchantName:     "Acme",
		TotalAmount:      dec("90"),
		PurchaseDate:     utils.Date(2024, time.February, 1),
		InstallmentCount: 3,
		Frequency:        FrequencyCustom,
		CustomDueDates:   dates,
	})
	require.NoError(t, err)

	for i, inst := range plan.Installments() {
		assert.Equal(t, dates[i], inst.DueDate())
	}
	assert.Equal(t, FrequencyCustom, plan.Frequency())
}

func TestNewInstallmentPlan_Validation(t *testing.T) {
	purchase := utils.Date(2024, time.January, 1)

	tests := []struct {
		name          string
		params        PlanParams
		errorContains string
	}{
		{
			name:          "zero installments",
			params:        PlanParams{MerchantName: "A", TotalAmount: dec("10"), PurchaseDate: purchase, InstallmentCount: 0, Frequency: FrequencyMonthly},
			errorContains: "at least 1",
		},
		{
			name:          "zero total",
			params:        PlanParams{MerchantName: "A", TotalAmount: dec("0"), PurchaseDate: purchase, InstallmentCount: 2, Frequency: FrequencyMonthly},
			errorContains: "positive",
		},
		{
			name:          "negative total",
			params:        PlanParams{MerchantName: "A", TotalAmount: dec("-5"), PurchaseDate: purchase, InstallmentCount: 2, Frequency: FrequencyMonthly},
			errorContains: "positive",
		},
		{
			name:          "sub-cent total",
			params:        PlanParams{MerchantName: "A", TotalAmount: dec("10.005"), PurchaseDate: purchase, InstallmentCount: 2, Frequency: FrequencyMonthly},
			errorContains: "decimal places",
		},
		{
			name:          "total too small to split",
			params:        PlanParams{MerchantName: "A", TotalAmount: dec("0.02"), PurchaseDate: purchase, InstallmentCount: 3, Frequency: FrequencyWeekly},
			errorContains: "too small",
		},
		{
			name:          "blank merchant",
			params:        PlanParams{MerchantName: "  ", TotalAmount: dec("10"), PurchaseDate: purchase, InstallmentCount: 1, Frequency: FrequencyMonthly},
			errorContains: "merchant",
		},
		{
			name:          "unknown frequency",
			params:        PlanParams{MerchantName: "A", TotalAmount: dec("10"), PurchaseDate: purchase, InstallmentCount: 1, Frequency: "yearly"},
			errorContains: "frequency",
		},
		{
			name: "custom date count mismatch",
			params: PlanParams{
				MerchantName: "A", TotalAmount: dec("10"), PurchaseDate: purchase, InstallmentCount: 2, Frequency: FrequencyCustom,
				CustomDueDates: []time.Time{purchase},
			},
			errorContains: "needs 2 due dates",
		},
		{
			name: "custom dates out of order",
			params: PlanParams{
				MerchantName: "A", TotalAmount: dec("10"), PurchaseDate: purchase, InstallmentCount: 2, Frequency: FrequencyCustom,
				CustomDueDates: []time.Time{utils.Date(2024, time.March, 1), utils.Date(2024, time.February, 1)},
			},
			errorContains: "ascending",
		},
		{
			name: "custom date before purchase",
			params: PlanParams{
				MerchantName: "A", TotalAmount: dec("10"), PurchaseDate: purchase, InstallmentCount: 1, Frequency: FrequencyCustom,
				CustomDueDates: []time.Time{utils.Date(2023, time.December, 31)},
			},
			errorContains: "before purchase",
		},
		{
			name: "dates supplied for generated frequency",
			params: PlanParams{
				MerchantName: "A", TotalAmount: dec("10"), PurchaseDate: purchase, InstallmentCount: 1, Frequency: FrequencyWeekly,
				CustomDueDates: []time.Time{purchase},
			},
			errorContains: "only be supplied for custom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewInstallmentPlan(tt.params)
			assert.Nil(t, plan)
			require.Error(t, err)
			assert.True(t, customError.IsValidation(err))
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestInstallmentPlan_MarkPaidScenario(t *testing.T) {
	plan := newMonthlyPlan(t, "1200.00", 4)
	now := utils.Date(2024, time.January, 1)

	require.NoError(t, plan.MarkInstallmentPaid(0, utils.Date(2024, time.January, 1), now))

	assert.True(t, plan.RemainingBalance().Equal(dec("900.00")))
	assert.True(t, plan.PaidAmount().Equal(dec("300.00")))
	assert.False(t, plan.IsFullyPaid())
	assert.Equal(t, 3, plan.UnpaidInstallmentCount())
	assertConserved(t, plan)

	next, ok := plan.NextPaymentDue()
	assert.True(t, ok)
	assert.Equal(t, utils.Date(2024, time.February, 1), next)
}

func TestInstallmentPlan_MarkErrors(t *testing.T) {
	plan := newMonthlyPlan(t, "1200.00", 4)
	now := utils.Date(2024, time.June, 1)

	err := plan.MarkInstallmentPaid(4, now, now)
	assert.True(t, customError.IsNotFound(err))

	err = plan.MarkInstallmentPaid(-1, now, now)
	assert.True(t, customError.IsNotFound(err))

	err = plan.MarkInstallmentUnpaid(9)
	assert.True(t, customError.IsNotFound(err))

	err = plan.MarkInstallmentUnpaid(1)
	assert.True(t, customError.IsInvalidState(err))

	require.NoError(t, plan.MarkInstallmentPaid(1, utils.Date(2024, time.February, 3), now))
	err = plan.MarkInstallmentPaid(1, now, now)
	assert.True(t, customError.IsInvalidState(err))

	inst, err := plan.Installment(1)
	require.NoError(t, err)
	paidOn, _ := inst.PaidDate()
	assert.Equal(t, utils.Date(2024, time.February, 3), paidOn)
}

func TestInstallmentPlan_FullyPaid(t *testing.T) {
	plan := newMonthlyPlan(t, "100.00", 3)
	now := utils.Date(2024, time.June, 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, plan.MarkInstallmentPaid(i, now, now))
	}

	assert.True(t, plan.IsFullyPaid())
	assert.True(t, plan.RemainingBalance().IsZero())
	_, ok := plan.NextPaymentDue()
	assert.False(t, ok)

	require.NoError(t, plan.MarkInstallmentUnpaid(2))
	assert.False(t, plan.IsFullyPaid())
	assert.True(t, plan.RemainingBalance().Equal(dec("33.34")))
}

func TestInstallmentPlan_Overdue(t *testing.T) {
	plan := newMonthlyPlan(t, "1200.00", 4)
	today := utils.Date(2024, time.February, 15)

	require.NoError(t, plan.MarkInstallmentPaid(0, utils.Date(2024, time.January, 1), today))

	overdue := plan.OverdueInstallments(today)
	require.Len(t, overdue, 1)
	assert.Equal(t, 1, overdue[0].Index())
	assert.True(t, plan.HasOverdue(today))
	assert.False(t, plan.HasOverdue(utils.Date(2024, time.January, 15)))
}

func TestInstallmentPlan_Installments_ReturnsCopy(t *testing.T) {
	plan := newMonthlyPlan(t, "1200.00", 4)
	now := utils.Date(2024, time.June, 1)

	insts := plan.Installments()
	require.NoError(t, insts[0].MarkPaid(now, now))

	assert.False(t, plan.Installments()[0].IsPaid())
	assert.True(t, plan.RemainingBalance().Equal(dec("1200.00")))
}

func TestInstallmentPlan_Edit(t *testing.T) {
	t.Run("merchant only", func(t *testing.T) {
		plan := newMonthlyPlan(t, "1200.00", 4)
		name := "  Acme Corp "
		require.NoError(t, plan.Edit(PlanEdit{MerchantName: &name}))
		assert.Equal(t, "Acme Corp", plan.MerchantName())
	})

	t.Run("amounts keeping total", func(t *testing.T) {
		plan := newMonthlyPlan(t, "1200.00", 4)
		amounts := []decimal.Decimal{dec("500"), dec("300"), dec("200"), dec("200")}
		require.NoError(t, plan.Edit(PlanEdit{Amounts: amounts}))

		for i, inst := range plan.Installments() {
			assert.True(t, inst.Amount().Equal(amounts[i]))
		}
		assertConserved(t, plan)
	})

	t.Run("new total with amounts", func(t *testing.T) {
		plan := newMonthlyPlan(t, "1200.00", 4)
		total := dec("1000")
		amounts := []decimal.Decimal{dec("250"), dec("250"), dec("250"), dec("250")}
		require.NoError(t, plan.Edit(PlanEdit{TotalAmount: &total, Amounts: amounts}))

		assert.True(t, plan.TotalAmount().Equal(total))
		assertConserved(t, plan)
	})

	t.Run("due dates", func(t *testing.T) {
		plan := newMonthlyPlan(t, "1200.00", 4)
		dates := []time.Time{
			utils.Date(2024, time.January, 15),
			utils.Date(2024, time.February, 15),
			utils.Date(2024, time.March, 15),
			utils.Date(2024, time.April, 15),
		}
		require.NoError(t, plan.Edit(PlanEdit{DueDates: dates}))

		for i, inst := range plan.Installments() {
			assert.Equal(t, dates[i], inst.DueDate())
		}
	})
}

func TestInstallmentPlan_Edit_RejectsWithoutChange(t *testing.T) {
	newTotal := dec("1000")
	blank := " "
	good := "Other"

	tests := []struct {
		name string
		edit PlanEdit
	}{
		{
			name: "sum differs from total",
			edit: PlanEdit{Amounts: []decimal.Decimal{dec("300"), dec("300"), dec("300"), dec("299.99")}},
		},
		{
			name: "wrong amount count",
			edit: PlanEdit{Amounts: []decimal.Decimal{dec("600"), dec("600")}},
		},
		{
			name: "non-positive amount",
			edit: PlanEdit{Amounts: []decimal.Decimal{dec("700"), dec("500"), dec("0"), dec("0")}},
		},
		{
			name: "sub-cent amounts",
			edit: PlanEdit{Amounts: []decimal.Decimal{dec("300.005"), dec("299.995"), dec("300"), dec("300")}},
		},
		{
			name: "total without amounts",
			edit: PlanEdit{TotalAmount: &newTotal},
		},
		{
			name: "dates out of order",
			edit: PlanEdit{DueDates: []time.Time{
				utils.Date(2024, time.January, 1),
				utils.Date(2024, time.March, 1),
				utils.Date(2024, time.February, 1),
				utils.Date(2024, time.April, 1),
			}},
		},
		{
			name: "date before purchase",
			edit: PlanEdit{DueDates: []time.Time{
				utils.Date(2023, time.December, 1),
				utils.Date(2024, time.February, 1),
				utils.Date(2024, time.March, 1),
				utils.Date(2024, time.April, 1),
			}},
		},
		{
			name: "blank merchant",
			edit: PlanEdit{MerchantName: &blank},
		},
		{
			name: "valid merchant but invalid amounts",
			edit: PlanEdit{MerchantName: &good, Amounts: []decimal.Decimal{dec("1"), dec("1"), dec("1"), dec("1")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := newMonthlyPlan(t, "1200.00", 4)
			before, err := json.Marshal(plan)
			require.NoError(t, err)

			err = plan.Edit(tt.edit)
			assert.True(t, customError.IsValidation(err))

			after, err := json.Marshal(plan)
			require.NoError(t, err)
			assert.JSONEq(t, string(before), string(after))
		})
	}
}

func TestInstallmentPlan_EditPaidDate(t *testing.T) {
	plan := newMonthlyPlan(t, "1200.00", 4)
	now := utils.Date(2024, time.March, 1)

	err := plan.EditPaidDate(0, now, now)
	assert.True(t, customError.IsInvalidState(err))

	require.NoError(t, plan.MarkInstallmentPaid(0, utils.Date(2024, time.January, 5), now))
	require.NoError(t, plan.EditPaidDate(0, utils.Date(2024, time.January, 3), now))

	inst, err := plan.Installment(0)
	require.NoError(t, err)
	paidOn, _ := inst.PaidDate()
	assert.Equal(t, utils.Date(2024, time.January, 3), paidOn)

	err = plan.EditPaidDate(0, now.AddDate(0, 0, 1), now)
	assert.True(t, customError.IsValidation(err))

	err = plan.EditPaidDate(10, now, now)
	assert.True(t, customError.IsNotFound(err))
}

func TestInstallmentPlan_ConservationAcrossMutations(t *testing.T) {
	plan := newMonthlyPlan(t, "100.00", 3)
	now := utils.Date(2024, time.June, 1)
	total := dec("150.00")

	steps := []func() error{
		func() error { return plan.MarkInstallmentPaid(0, now, now) },
		func() error { return plan.Edit(PlanEdit{Amounts: []decimal.Decimal{dec("50"), dec("25"), dec("25")}}) },
		func() error { return plan.Edit(PlanEdit{Amounts: []decimal.Decimal{dec("50"), dec("40")}}) },
		func() error {
			return plan.Edit(PlanEdit{TotalAmount: &total, Amounts: []decimal.Decimal{dec("50"), dec("50"), dec("50")}})
		},
		func() error { return plan.MarkInstallmentUnpaid(0) },
		func() error { return plan.MarkInstallmentPaid(2, now, now) },
	}

	for _, step := range steps {
		_ = step()
		assertConserved(t, plan)
	}
	assert.True(t, plan.RemainingBalance().Equal(dec("100")))
}
