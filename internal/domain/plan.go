package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	customError "github.com/segyhp/installment-tracker/pkg/errors"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

// InstallmentPlan is a merchant purchase split into dated installments.
// The installment amounts always sum to TotalAmount; every mutator validates
// fully before touching state, so a failed call leaves the plan unchanged.
type InstallmentPlan struct {
	id           string
	merchantName string
	totalAmount  decimal.Decimal
	purchaseDate time.Time
	frequency    Frequency
	installments []Installment
}

// PlanParams are the inputs of NewInstallmentPlan.
type PlanParams struct {
	ID               string
	MerchantName     string
	TotalAmount      decimal.Decimal
	PurchaseDate     time.Time
	InstallmentCount int
	Frequency        Frequency
	// CustomDueDates is required for FrequencyCustom and rejected otherwise.
	CustomDueDates []time.Time
}

// PlanEdit lists the fields to change. Nil / empty fields are left alone.
type PlanEdit struct {
	MerchantName *string
	// TotalAmount may only change together with a full set of Amounts.
	TotalAmount *decimal.Decimal
	Amounts     []decimal.Decimal
	DueDates    []time.Time
}

// NewInstallmentPlan splits TotalAmount into InstallmentCount equal shares rounded down
// to the minor unit, with the remainder on the last share, and schedules them according
// to Frequency starting on PurchaseDate.
func NewInstallmentPlan(p PlanParams) (*InstallmentPlan, error) {
	merchant, err := validateMerchant(p.MerchantName)
	if err != nil {
		return nil, err
	}
	if p.InstallmentCount < 1 {
		return nil, customError.NewValidationError("installment count must be at least 1, got %d", p.InstallmentCount)
	}
	if err := validateTotal(p.TotalAmount); err != nil {
		return nil, err
	}
	if !p.Frequency.IsValid() {
		return nil, customError.NewValidationError("unknown frequency %q", p.Frequency)
	}

	minimum := decimal.New(1, -utils.MinorUnitPlaces).Mul(decimal.NewFromInt(int64(p.InstallmentCount)))
	if p.TotalAmount.LessThan(minimum) {
		return nil, customError.NewValidationError(
			"total amount %s is too small to split into %d installments",
			p.TotalAmount, p.InstallmentCount,
		)
	}

	purchase := utils.NormalizeDate(p.PurchaseDate)
	dueDates, err := scheduleDueDates(p, purchase)
	if err != nil {
		return nil, err
	}

	shares := utils.SplitAmount(p.TotalAmount, p.InstallmentCount)
	installments := make([]Installment, p.InstallmentCount)
	for i := range installments {
		installments[i] = newInstallment(i, shares[i], dueDates[i])
	}

	return &InstallmentPlan{
		id:           p.ID,
		merchantName: merchant,
		totalAmount:  p.TotalAmount,
		purchaseDate: purchase,
		frequency:    p.Frequency,
		installments: installments,
	}, nil
}

func scheduleDueDates(p PlanParams, purchase time.Time) ([]time.Time, error) {
	if p.Frequency == FrequencyCustom {
		if len(p.CustomDueDates) != p.InstallmentCount {
			return nil, customError.NewValidationError(
				"custom frequency needs %d due dates, got %d",
				p.InstallmentCount, len(p.CustomDueDates),
			)
		}
		dates := make([]time.Time, len(p.CustomDueDates))
		for i, d := range p.CustomDueDates {
			dates[i] = utils.NormalizeDate(d)
		}
		if err := validateDueDates(dates, purchase); err != nil {
			return nil, err
		}
		return dates, nil
	}

	if len(p.CustomDueDates) > 0 {
		return nil, customError.NewValidationError("due dates can only be supplied for custom frequency, got %s", p.Frequency)
	}

	dates := make([]time.Time, p.InstallmentCount)
	for i := range dates {
		dates[i], _ = p.Frequency.DueDate(purchase, i)
	}
	return dates, nil
}

func validateMerchant(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", customError.NewValidationError("merchant name must not be empty")
	}
	return name, nil
}

func validateTotal(total decimal.Decimal) error {
	if !total.IsPositive() {
		return customError.NewValidationError("total amount must be positive, got %s", total)
	}
	if !utils.HasMinorUnitPrecision(total) {
		return customError.NewValidationError("total amount %s has more than %d decimal places", total, utils.MinorUnitPlaces)
	}
	return nil
}

// validateDueDates requires non-decreasing dates, none before purchase.
func validateDueDates(dates []time.Time, purchase time.Time) error {
	for i, d := range dates {
		if d.Before(purchase) {
			return customError.NewValidationError(
				"due date %s of installment #%d is before purchase date %s",
				utils.FormatDate(d), i, utils.FormatDate(purchase),
			)
		}
		if i > 0 && d.Before(dates[i-1]) {
			return customError.NewValidationError(
				"due dates must be in ascending order: #%d (%s) is before #%d (%s)",
				i, utils.FormatDate(d), i-1, utils.FormatDate(dates[i-1]),
			)
		}
	}
	return nil
}

func validateAmounts(amounts []decimal.Decimal, total decimal.Decimal) error {
	for i, a := range amounts {
		if !a.IsPositive() {
			return customError.NewValidationError("amount of installment #%d must be positive, got %s", i, a)
		}
		if !utils.HasMinorUnitPrecision(a) {
			return customError.NewValidationError("amount of installment #%d (%s) has more than %d decimal places", i, a, utils.MinorUnitPlaces)
		}
	}
	if sum := utils.SumDecimals(amounts); !sum.Equal(total) {
		return customError.NewValidationError("sum of installments (%s) must equal total amount (%s)", sum, total)
	}
	return nil
}

func (p *InstallmentPlan) ID() string {
	return p.id
}

func (p *InstallmentPlan) MerchantName() string {
	return p.merchantName
}

func (p *InstallmentPlan) TotalAmount() decimal.Decimal {
	return p.totalAmount
}

func (p *InstallmentPlan) PurchaseDate() time.Time {
	return p.purchaseDate
}

func (p *InstallmentPlan) Frequency() Frequency {
	return p.frequency
}

// Installments returns a copy of the installments in due date order.
func (p *InstallmentPlan) Installments() []Installment {
	out := make([]Installment, len(p.installments))
	copy(out, p.installments)
	return out
}

func (p *InstallmentPlan) InstallmentCount() int {
	return len(p.installments)
}

// Installment returns a copy of the installment with the given index.
func (p *InstallmentPlan) Installment(index int) (Installment, error) {
	pos, err := p.position(index)
	if err != nil {
		return Installment{}, err
	}
	return p.installments[pos], nil
}

func (p *InstallmentPlan) position(index int) (int, error) {
	for pos := range p.installments {
		if p.installments[pos].index == index {
			return pos, nil
		}
	}
	return -1, customError.WrapInstallmentNotFound(index)
}

// PaidAmount is the sum of the amounts of paid installments.
func (p *InstallmentPlan) PaidAmount() decimal.Decimal {
	paid := decimal.Zero
	for i := range p.installments {
		if p.installments[i].paid {
			paid = paid.Add(p.installments[i].amount)
		}
	}
	return paid
}

func (p *InstallmentPlan) RemainingBalance() decimal.Decimal {
	return p.totalAmount.Sub(p.PaidAmount())
}

func (p *InstallmentPlan) IsFullyPaid() bool {
	for i := range p.installments {
		if !p.installments[i].paid {
			return false
		}
	}
	return true
}

func (p *InstallmentPlan) UnpaidInstallmentCount() int {
	n := 0
	for i := range p.installments {
		if !p.installments[i].paid {
			n++
		}
	}
	return n
}

// NextPaymentDue returns the earliest due date among unpaid installments.
func (p *InstallmentPlan) NextPaymentDue() (time.Time, bool) {
	var next time.Time
	found := false
	for i := range p.installments {
		inst := &p.installments[i]
		if inst.paid {
			continue
		}
		if !found || inst.dueDate.Before(next) {
			next = inst.dueDate
			found = true
		}
	}
	return next, found
}

// OverdueInstallments returns copies of the unpaid installments due before today.
func (p *InstallmentPlan) OverdueInstallments(today time.Time) []Installment {
	var overdue []Installment
	for i := range p.installments {
		if p.installments[i].IsOverdue(today) {
			overdue = append(overdue, p.installments[i])
		}
	}
	return overdue
}

func (p *InstallmentPlan) HasOverdue(today time.Time) bool {
	for i := range p.installments {
		if p.installments[i].IsOverdue(today) {
			return true
		}
	}
	return false
}

// MarkInstallmentPaid records the payment of the installment with the given index.
func (p *InstallmentPlan) MarkInstallmentPaid(index int, paidOn, now time.Time) error {
	pos, err := p.position(index)
	if err != nil {
		return err
	}
	return p.installments[pos].MarkPaid(paidOn, now)
}

// MarkInstallmentUnpaid reverts a payment.
func (p *InstallmentPlan) MarkInstallmentUnpaid(index int) error {
	pos, err := p.position(index)
	if err != nil {
		return err
	}
	return p.installments[pos].MarkUnpaid()
}

// EditPaidDate corrects the payment date of an already paid installment.
func (p *InstallmentPlan) EditPaidDate(index int, paidOn, now time.Time) error {
	pos, err := p.position(index)
	if err != nil {
		return err
	}
	inst := &p.installments[pos]
	if !inst.paid {
		return customError.WrapNotPaid(index)
	}
	paidOn = utils.NormalizeDate(paidOn)
	if err := checkNotFuture(paidOn, now); err != nil {
		return err
	}

	inst.paidDate = paidOn
	return nil
}

// Edit applies e atomically.
func (p *InstallmentPlan) Edit(e PlanEdit) error {
	merchant := p.merchantName
	if e.MerchantName != nil {
		var err error
		if merchant, err = validateMerchant(*e.MerchantName); err != nil {
			return err
		}
	}

	total := p.totalAmount
	if e.TotalAmount != nil {
		if e.Amounts == nil {
			return customError.NewValidationError("changing the total amount requires all installment amounts")
		}
		if err := validateTotal(*e.TotalAmount); err != nil {
			return err
		}
		total = *e.TotalAmount
	}

	if e.Amounts != nil {
		if len(e.Amounts) != len(p.installments) {
			return customError.NewValidationError(
				"expected %d installment amounts, got %d",
				len(p.installments), len(e.Amounts),
			)
		}
		if err := validateAmounts(e.Amounts, total); err != nil {
			return err
		}
	}

	var dueDates []time.Time
	if e.DueDates != nil {
		if len(e.DueDates) != len(p.installments) {
			return customError.NewValidationError(
				"expected %d due dates, got %d",
				len(p.installments), len(e.DueDates),
			)
		}
		dueDates = make([]time.Time, len(e.DueDates))
		for i, d := range e.DueDates {
			dueDates[i] = utils.NormalizeDate(d)
		}
		if err := validateDueDates(dueDates, p.purchaseDate); err != nil {
			return err
		}
	}

	p.merchantName = merchant
	p.totalAmount = total
	for i := range p.installments {
		if e.Amounts != nil {
			p.installments[i].amount = e.Amounts[i]
		}
		if dueDates != nil {
			p.installments[i].dueDate = dueDates[i]
		}
	}
	return nil
}
