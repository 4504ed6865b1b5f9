package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/installment-tracker/internal/analytics"
	"github.com/segyhp/installment-tracker/internal/domain"
	"github.com/segyhp/installment-tracker/internal/export"
	"github.com/segyhp/installment-tracker/internal/logger"
	"github.com/segyhp/installment-tracker/internal/repository"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

// CreatePlanInput describes a new plan. The plan id is generated.
type CreatePlanInput struct {
	MerchantName     string
	TotalAmount      decimal.Decimal
	PurchaseDate     time.Time
	InstallmentCount int
	Frequency        domain.Frequency
	CustomDueDates   []time.Time
}

// PlanFilter narrows ListPlans. The zero value matches every plan.
type PlanFilter struct {
	Merchant string
	Status   analytics.StatusFilter
	Amount   analytics.AmountFilter
	Date     analytics.DateFilter
}

// Dashboard is the payment overview as of Today.
type Dashboard struct {
	Today         time.Time
	Statistics    analytics.Statistics
	Overdue       []analytics.PaymentInfo
	Upcoming      []analytics.PaymentInfo
	OverdueTotal  decimal.Decimal
	DueTodayTotal decimal.Decimal
	Timeline      map[int]decimal.Decimal
}

type Option func(*PlanService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *PlanService) { s.now = now }
}

// WithLocation sets the zone used to decide what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *PlanService) { s.loc = loc }
}

func WithTimelineWindows(windows []int) Option {
	return func(s *PlanService) { s.windows = windows }
}

// PlanService owns the plan collection. Mutations load the plan, apply the domain
// operation and save it only when the operation succeeded.
type PlanService struct {
	repo    repository.PlanRepository
	log     *logrus.Entry
	now     func() time.Time
	loc     *time.Location
	windows []int

	// mu serialises load-modify-save cycles.
	mu sync.Mutex
}

func NewPlanService(repo repository.PlanRepository, log *logrus.Logger, opts ...Option) *PlanService {
	s := &PlanService{
		repo:    repo,
		log:     logger.Component(log, "plan_service"),
		now:     time.Now,
		loc:     time.UTC,
		windows: analytics.DefaultWindows,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar date in the service location, at midnight UTC.
func (s *PlanService) Today() time.Time {
	now := s.now().In(s.loc)
	return utils.Date(now.Year(), now.Month(), now.Day())
}

// CreatePlan builds and stores a new plan under a generated id.
func (s *PlanService) CreatePlan(ctx context.Context, in CreatePlanInput) (*domain.InstallmentPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	planID, err := s.generatePlanID(ctx, in.MerchantName, in.PurchaseDate)
	if err != nil {
		return nil, err
	}

	plan, err := domain.NewInstallmentPlan(domain.PlanParams{
		ID:               planID,
		MerchantName:     in.MerchantName,
		TotalAmount:      in.TotalAmount,
		PurchaseDate:     in.PurchaseDate,
		InstallmentCount: in.InstallmentCount,
		Frequency:        in.Frequency,
		CustomDueDates:   in.CustomDueDates,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, plan); err != nil {
		s.log.WithError(err).WithField(logger.FieldPlanID, planID).Error("failed to save new plan")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		logger.FieldPlanID: planID,
		"total_amount":     plan.TotalAmount().String(),
		"installments":     plan.InstallmentCount(),
		"frequency":        plan.Frequency().String(),
	}).Info("plan created")

	return plan, nil
}

// GeneratePlanID returns merchant_YYYY-MM-DD, suffixed with _2, _3... until unused.
func (s *PlanService) GeneratePlanID(ctx context.Context, merchant string, purchase time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generatePlanID(ctx, merchant, purchase)
}

func (s *PlanService) generatePlanID(ctx context.Context, merchant string, purchase time.Time) (string, error) {
	base := fmt.Sprintf("%s_%s", slugify(merchant), utils.FormatDate(purchase))

	planID := base
	for n := 2; ; n++ {
		exists, err := s.repo.Exists(ctx, planID)
		if err != nil {
			return "", err
		}
		if !exists {
			return planID, nil
		}
		planID = fmt.Sprintf("%s_%d", base, n)
	}
}

// slugify lowercases name and collapses every run of other characters into one
// underscore, so the id is safe as a file name and in a URL path.
func slugify(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "plan"
	}
	return b.String()
}

func (s *PlanService) GetPlan(ctx context.Context, planID string) (*domain.InstallmentPlan, error) {
	return s.repo.GetByID(ctx, planID)
}

// ListPlans returns the plans matching f, ordered by plan id.
func (s *PlanService) ListPlans(ctx context.Context, f PlanFilter) ([]*domain.InstallmentPlan, error) {
	plans, err := s.filteredPlans(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.InstallmentPlan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (s *PlanService) filteredPlans(ctx context.Context, f PlanFilter) (map[string]*domain.InstallmentPlan, error) {
	plans, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if f.Merchant != "" {
		plans = analytics.FilterByMerchant(plans, f.Merchant)
	}
	plans = analytics.FilterByStatus(plans, f.Status, s.Today())
	plans = analytics.FilterByAmount(plans, f.Amount)
	plans = analytics.FilterByDate(plans, f.Date)
	return plans, nil
}

func (s *PlanService) DeletePlan(ctx context.Context, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, planID); err != nil {
		return err
	}
	s.log.WithField(logger.FieldPlanID, planID).Info("plan deleted")
	return nil
}

// MarkPaid records a payment. A zero paidOn means today.
func (s *PlanService) MarkPaid(ctx context.Context, planID string, index int, paidOn time.Time) (*domain.InstallmentPlan, error) {
	today := s.Today()
	if paidOn.IsZero() {
		paidOn = today
	}
	return s.update(ctx, planID, "installment marked paid", index, func(p *domain.InstallmentPlan) error {
		return p.MarkInstallmentPaid(index, paidOn, today)
	})
}

func (s *PlanService) MarkUnpaid(ctx context.Context, planID string, index int) (*domain.InstallmentPlan, error) {
	return s.update(ctx, planID, "installment marked unpaid", index, func(p *domain.InstallmentPlan) error {
		return p.MarkInstallmentUnpaid(index)
	})
}

func (s *PlanService) EditPaidDate(ctx context.Context, planID string, index int, paidOn time.Time) (*domain.InstallmentPlan, error) {
	today := s.Today()
	return s.update(ctx, planID, "paid date corrected", index, func(p *domain.InstallmentPlan) error {
		return p.EditPaidDate(index, paidOn, today)
	})
}

func (s *PlanService) EditPlan(ctx context.Context, planID string, edit domain.PlanEdit) (*domain.InstallmentPlan, error) {
	return s.update(ctx, planID, "plan edited", -1, func(p *domain.InstallmentPlan) error {
		return p.Edit(edit)
	})
}

// update runs fn on the stored plan and saves the result. Nothing is saved when fn fails.
func (s *PlanService) update(ctx context.Context, planID, event string, index int, fn func(*domain.InstallmentPlan) error) (*domain.InstallmentPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, err := s.repo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	entry := s.log.WithField(logger.FieldPlanID, planID)
	if index >= 0 {
		entry = entry.WithField(logger.FieldIndex, index)
	}

	if err := fn(plan); err != nil {
		entry.WithError(err).Debug("plan update rejected")
		return nil, err
	}

	if err := s.repo.Save(ctx, plan); err != nil {
		entry.WithError(err).Error("failed to save plan")
		return nil, err
	}

	entry.Info(event)
	return plan, nil
}

// Dashboard aggregates every stored plan as of today.
func (s *PlanService) Dashboard(ctx context.Context, today time.Time) (*Dashboard, error) {
	plans, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	today = utils.NormalizeDate(today)
	categorized := analytics.CategorizePayments(plans, today)

	return &Dashboard{
		Today:         today,
		Statistics:    analytics.CalculateStatistics(plans),
		Overdue:       categorized.Overdue,
		Upcoming:      categorized.Upcoming,
		OverdueTotal:  analytics.OverdueTotal(plans, today),
		DueTodayTotal: analytics.DueOnTotal(plans, today),
		Timeline:      analytics.PaymentTimeline(plans, today, s.windows...),
	}, nil
}

// Timeline returns the amounts due within each window, counted from today.
// The configured windows are used when none are given.
func (s *PlanService) Timeline(ctx context.Context, today time.Time, windows ...int) (map[int]decimal.Decimal, error) {
	plans, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		windows = s.windows
	}
	return analytics.PaymentTimeline(plans, today, windows...), nil
}

// ExportCSV writes the plan to w with statuses as of today.
func (s *PlanService) ExportCSV(ctx context.Context, planID string, w io.Writer) error {
	plan, err := s.repo.GetByID(ctx, planID)
	if err != nil {
		return err
	}
	return export.WritePlanCSV(w, plan, s.Today())
}
