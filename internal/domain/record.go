package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	customError "github.com/segyhp/installment-tracker/pkg/errors"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

// PlanRecord is the persisted representation of a plan. It carries no status field.
type PlanRecord struct {
	PlanID       string              `json:"plan_id"`
	MerchantName string              `json:"merchant_name"`
	TotalAmount  decimal.Decimal     `json:"total_amount"`
	PurchaseDate Date                `json:"purchase_date"`
	Frequency    Frequency           `json:"frequency"`
	Installments []InstallmentRecord `json:"installments"`
}

// InstallmentRecord is the persisted representation of an installment.
type InstallmentRecord struct {
	Index    int             `json:"index"`
	Amount   decimal.Decimal `json:"amount"`
	DueDate  Date            `json:"due_date"`
	PaidDate *Date           `json:"paid_date"`
}

// Date is a calendar date that marshals as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: utils.NormalizeDate(t)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(utils.FormatDate(d.Time))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := utils.ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Record snapshots the plan for persistence.
func (p *InstallmentPlan) Record() PlanRecord {
	rec := PlanRecord{
		PlanID:       p.id,
		MerchantName: p.merchantName,
		TotalAmount:  p.totalAmount,
		PurchaseDate: NewDate(p.purchaseDate),
		Frequency:    p.frequency,
		Installments: make([]InstallmentRecord, len(p.installments)),
	}
	for i := range p.installments {
		inst := &p.installments[i]
		ir := InstallmentRecord{
			Index:   inst.index,
			Amount:  inst.amount,
			DueDate: NewDate(inst.dueDate),
		}
		if inst.paid {
			paid := NewDate(inst.paidDate)
			ir.PaidDate = &paid
		}
		rec.Installments[i] = ir
	}
	return rec
}

// MarshalJSON encodes the plan as its record.
func (p *InstallmentPlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Record())
}

// RestorePlan rebuilds a plan from a stored record, rejecting records that break
// any plan invariant.
func RestorePlan(rec PlanRecord) (*InstallmentPlan, error) {
	merchant, err := validateMerchant(rec.MerchantName)
	if err != nil {
		return nil, err
	}
	if err := validateTotal(rec.TotalAmount); err != nil {
		return nil, err
	}
	if !rec.Frequency.IsValid() {
		return nil, customError.NewValidationError("unknown frequency %q", rec.Frequency)
	}
	if len(rec.Installments) == 0 {
		return nil, customError.NewValidationError("plan %s has no installments", rec.PlanID)
	}

	purchase := utils.NormalizeDate(rec.PurchaseDate.Time)
	seen := make(map[int]bool, len(rec.Installments))
	amounts := make([]decimal.Decimal, len(rec.Installments))
	dueDates := make([]time.Time, len(rec.Installments))
	installments := make([]Installment, len(rec.Installments))

	for i, ir := range rec.Installments {
		if ir.Index < 0 || seen[ir.Index] {
			return nil, customError.NewValidationError("invalid or duplicate installment index %d", ir.Index)
		}
		seen[ir.Index] = true

		inst := newInstallment(ir.Index, ir.Amount, ir.DueDate.Time)
		if ir.PaidDate != nil {
			inst.paidDate = utils.NormalizeDate(ir.PaidDate.Time)
			inst.paid = true
		}
		installments[i] = inst
		amounts[i] = inst.amount
		dueDates[i] = inst.dueDate
	}

	if err := validateAmounts(amounts, rec.TotalAmount); err != nil {
		return nil, err
	}
	if err := validateDueDates(dueDates, purchase); err != nil {
		return nil, err
	}

	return &InstallmentPlan{
		id:           rec.PlanID,
		merchantName: merchant,
		totalAmount:  rec.TotalAmount,
		purchaseDate: purchase,
		frequency:    rec.Frequency,
		installments: installments,
	}, nil
}
