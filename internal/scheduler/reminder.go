// Package scheduler runs the periodic payment reminder job.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/installment-tracker/internal/analytics"
	"github.com/segyhp/installment-tracker/internal/logger"
	"github.com/segyhp/installment-tracker/internal/service"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

// Summary is what one reminder run found.
type Summary struct {
	Date          time.Time
	Overdue       []analytics.PaymentInfo
	Upcoming      []analytics.PaymentInfo
	OverdueTotal  string
	DueTodayTotal string
}

type ReminderJob struct {
	service    *service.PlanService
	log        *logrus.Entry
	windowDays int
	timeout    time.Duration
}

// NewReminderJob reports overdue installments and those due within windowDays.
func NewReminderJob(svc *service.PlanService, log *logrus.Logger, windowDays int) *ReminderJob {
	return &ReminderJob{
		service:    svc,
		log:        logger.Component(log, "reminder_job"),
		windowDays: windowDays,
		timeout:    time.Minute,
	}
}

// Register schedules the job on c.
func (j *ReminderJob) Register(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.Run(ctx); err != nil {
			j.log.WithError(err).Error("Reminder job failed")
		}
	})
}

// Run logs one line per overdue or soon due installment and a closing summary.
func (j *ReminderJob) Run(ctx context.Context) (*Summary, error) {
	d, err := j.service.Dashboard(ctx, j.service.Today())
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Date:          d.Today,
		Overdue:       d.Overdue,
		OverdueTotal:  d.OverdueTotal.StringFixed(utils.MinorUnitPlaces),
		DueTodayTotal: d.DueTodayTotal.StringFixed(utils.MinorUnitPlaces),
	}
	for _, p := range d.Upcoming {
		if p.DaysUntilDue <= j.windowDays {
			summary.Upcoming = append(summary.Upcoming, p)
		}
	}

	for _, p := range summary.Overdue {
		j.paymentEntry(p).Warn("Installment overdue")
	}
	for _, p := range summary.Upcoming {
		j.paymentEntry(p).Info("Installment due soon")
	}

	j.log.WithFields(logrus.Fields{
		"date":            utils.FormatDate(summary.Date),
		"overdue_count":   len(summary.Overdue),
		"overdue_total":   summary.OverdueTotal,
		"due_today_total": summary.DueTodayTotal,
		"upcoming_count":  len(summary.Upcoming),
		"window_days":     j.windowDays,
	}).Info("Reminder run complete")

	return summary, nil
}

func (j *ReminderJob) paymentEntry(p analytics.PaymentInfo) *logrus.Entry {
	return j.log.WithFields(logrus.Fields{
		logger.FieldPlanID: p.PlanID,
		logger.FieldIndex:  p.Installment.Index(),
		"merchant":         p.Merchant,
		"amount":           p.Installment.Amount().StringFixed(utils.MinorUnitPlaces),
		"due_date":         utils.FormatDate(p.Installment.DueDate()),
		"days_until_due":   p.DaysUntilDue,
	})
}
