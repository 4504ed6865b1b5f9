package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/installment-tracker/internal/domain"
	"github.com/segyhp/installment-tracker/internal/repository/mocks"
	"github.com/segyhp/installment-tracker/internal/service"
	customError "github.com/segyhp/installment-tracker/pkg/errors"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

func newJob(t *testing.T, repo *mocks.MockPlanRepository, windowDays int) (*ReminderJob, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	now := time.Date(2024, time.February, 15, 9, 0, 0, 0, time.UTC)
	svc := service.NewPlanService(repo, log, service.WithClock(func() time.Time { return now }))
	return NewReminderJob(svc, log, windowDays), hook
}

func TestReminderJob_Run(t *testing.T) {
	plan, err := domain.NewInstallmentPlan(domain.PlanParams{
		ID:               "gym_2024-02-01",
		MerchantName:     "Gym",
		TotalAmount:      decimal.RequireFromString("40"),
		PurchaseDate:     utils.Date(2024, time.February, 1),
		InstallmentCount: 4,
		Frequency:        domain.FrequencyWeekly,
	})
	require.NoError(t, err)

	repo := &mocks.MockPlanRepository{}
	repo.On("List", mock.Anything).Return(map[string]*domain.InstallmentPlan{plan.ID(): plan}, nil)

	// Due Feb 1 and Feb 8 (overdue), Feb 15 (today), Feb 22 (in 7 days).
	job, hook := newJob(t, repo, 3)
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, utils.Date(2024, time.February, 15), summary.Date)
	assert.Len(t, summary.Overdue, 2)
	require.Len(t, summary.Upcoming, 1)
	assert.Equal(t, 0, summary.Upcoming[0].DaysUntilDue)
	assert.Equal(t, "20.00", summary.OverdueTotal)
	assert.Equal(t, "10.00", summary.DueTodayTotal)

	var warnings int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
			assert.Equal(t, "gym_2024-02-01", e.Data["plan_id"])
		}
	}
	assert.Equal(t, 2, warnings)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "Reminder run complete", last.Message)
	assert.Equal(t, 1, last.Data["upcoming_count"])
}

func TestReminderJob_RunStorageError(t *testing.T) {
	repo := &mocks.MockPlanRepository{}
	repo.On("List", mock.Anything).Return(nil, customError.WrapStorageError(errors.New("io")))

	job, _ := newJob(t, repo, 7)
	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, customError.ErrStorage)
}

func TestReminderJob_Register(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	job := NewReminderJob(service.NewPlanService(&mocks.MockPlanRepository{}, log), log, 7)

	c := cron.New(cron.WithSeconds())
	id, err := job.Register(c, "0 0 9 * * *")
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = job.Register(c, "not a spec")
	assert.Error(t, err)
}
