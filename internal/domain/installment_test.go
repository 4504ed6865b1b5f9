package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/installment-tracker/pkg/errors"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

func TestInstallment_Status(t *testing.T) {
	due := utils.Date(2024, time.February, 1)

	tests := []struct {
		name      string
		paidOn    *time.Time
		reference time.Time
		expected  PaymentStatus
	}{
		{
			name:      "pending before due date",
			reference: utils.Date(2024, time.January, 20),
			expected:  PaymentStatusPending,
		},
		{
			name:      "pending on due date",
			reference: due,
			expected:  PaymentStatusPending,
		},
		{
			name:      "overdue after due date",
			reference: utils.Date(2024, time.February, 2),
			expected:  PaymentStatusOverdue,
		},
		{
			name:      "paid wins over overdue",
			paidOn:    timePtr(utils.Date(2024, time.March, 1)),
			reference: utils.Date(2024, time.June, 1),
			expected:  PaymentStatusPaid,
		},
		{
			name:      "reference with clock time is treated as a date",
			reference: time.Date(2024, time.February, 1, 23, 59, 0, 0, time.UTC),
			expected:  PaymentStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := newInstallment(0, decimal.NewFromInt(100), due)
			if tt.paidOn != nil {
				require.NoError(t, inst.MarkPaid(*tt.paidOn, *tt.paidOn))
			}
			assert.Equal(t, tt.expected, inst.Status(tt.reference))
		})
	}
}

func TestInstallment_PaidStatusIgnoresReference(t *testing.T) {
	inst := newInstallment(0, decimal.NewFromInt(100), utils.Date(2024, time.February, 1))
	require.NoError(t, inst.MarkPaid(utils.Date(2024, time.January, 15), utils.Date(2024, time.January, 15)))

	for _, ref := range []time.Time{
		utils.Date(1999, time.January, 1),
		utils.Date(2024, time.February, 1),
		utils.Date(2099, time.December, 31),
	} {
		assert.Equal(t, PaymentStatusPaid, inst.Status(ref))
	}
}

func TestInstallment_MarkPaid(t *testing.T) {
	now := utils.Date(2024, time.March, 1)

	t.Run("late payment accepted", func(t *testing.T) {
		inst := newInstallment(0, decimal.NewFromInt(50), utils.Date(2024, time.February, 1))
		require.NoError(t, inst.MarkPaid(utils.Date(2024, time.February, 20), now))

		paidOn, ok := inst.PaidDate()
		assert.True(t, ok)
		assert.Equal(t, utils.Date(2024, time.February, 20), paidOn)
	})

	t.Run("early payment accepted", func(t *testing.T) {
		inst := newInstallment(0, decimal.NewFromInt(50), utils.Date(2024, time.June, 1))
		assert.NoError(t, inst.MarkPaid(now, now))
	})

	t.Run("future payment rejected", func(t *testing.T) {
		inst := newInstallment(0, decimal.NewFromInt(50), utils.Date(2024, time.June, 1))
		err := inst.MarkPaid(now.AddDate(0, 0, 1), now)

		assert.True(t, customError.IsValidation(err))
		assert.False(t, inst.IsPaid())
	})

	t.Run("already paid rejected and date kept", func(t *testing.T) {
		inst := newInstallment(3, decimal.NewFromInt(50), utils.Date(2024, time.February, 1))
		require.NoError(t, inst.MarkPaid(utils.Date(2024, time.February, 1), now))

		err := inst.MarkPaid(now, now)
		assert.True(t, customError.IsInvalidState(err))
		assert.Contains(t, err.Error(), "#3")

		paidOn, _ := inst.PaidDate()
		assert.Equal(t, utils.Date(2024, time.February, 1), paidOn)
	})
}

func TestInstallment_MarkUnpaid(t *testing.T) {
	inst := newInstallment(0, decimal.NewFromInt(50), utils.Date(2024, time.February, 1))

	err := inst.MarkUnpaid()
	assert.True(t, customError.IsInvalidState(err))

	require.NoError(t, inst.MarkPaid(utils.Date(2024, time.February, 1), utils.Date(2024, time.February, 1)))
	require.NoError(t, inst.MarkUnpaid())

	_, ok := inst.PaidDate()
	assert.False(t, ok)
	assert.Equal(t, PaymentStatusOverdue, inst.Status(utils.Date(2024, time.March, 1)))
}

func TestInstallment_DaysUntilDue(t *testing.T) {
	inst := newInstallment(0, decimal.NewFromInt(50), utils.Date(2024, time.February, 1))

	assert.Equal(t, -14, inst.DaysUntilDue(utils.Date(2024, time.February, 15)))
	assert.Equal(t, 0, inst.DaysUntilDue(utils.Date(2024, time.February, 1)))
	assert.Equal(t, 10, inst.DaysUntilDue(utils.Date(2024, time.January, 22)))
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" Monthly ")
	require.NoError(t, err)
	assert.Equal(t, FrequencyMonthly, f)

	_, err = ParseFrequency("yearly")
	assert.True(t, customError.IsValidation(err))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
