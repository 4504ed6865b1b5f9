package domain

import (
	"time"

	"github.com/shopspring/decimal"

	customError "github.com/segyhp/installment-tracker/pkg/errors"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

// PaymentStatus is derived from an installment's dates and is never stored.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// Installment is a single scheduled payment of a plan.
type Installment struct {
	index    int
	amount   decimal.Decimal
	dueDate  time.Time
	paidDate time.Time
	paid     bool
}

func newInstallment(index int, amount decimal.Decimal, dueDate time.Time) Installment {
	return Installment{
		index:   index,
		amount:  amount,
		dueDate: utils.NormalizeDate(dueDate),
	}
}

func (i *Installment) Index() int {
	return i.index
}

func (i *Installment) Amount() decimal.Decimal {
	return i.amount
}

func (i *Installment) DueDate() time.Time {
	return i.dueDate
}

// PaidDate returns the payment date and whether the installment is paid.
func (i *Installment) PaidDate() (time.Time, bool) {
	return i.paidDate, i.paid
}

func (i *Installment) IsPaid() bool {
	return i.paid
}

// Status reports the installment's status as seen on reference.
// A paid installment is paid whatever the reference date.
func (i *Installment) Status(reference time.Time) PaymentStatus {
	if i.paid {
		return PaymentStatusPaid
	}
	if i.dueDate.Before(utils.NormalizeDate(reference)) {
		return PaymentStatusOverdue
	}
	return PaymentStatusPending
}

// IsOverdue reports whether the installment is unpaid and due before reference.
func (i *Installment) IsOverdue(reference time.Time) bool {
	return i.Status(reference) == PaymentStatusOverdue
}

// DaysUntilDue is negative for installments due before reference.
func (i *Installment) DaysUntilDue(reference time.Time) int {
	return utils.DaysBetween(reference, i.dueDate)
}

// MarkPaid records a payment on paidOn. Early and late payments are both accepted,
// but a payment cannot be dated after now.
func (i *Installment) MarkPaid(paidOn, now time.Time) error {
	if i.paid {
		return customError.WrapAlreadyPaid(i.index)
	}
	paidOn = utils.NormalizeDate(paidOn)
	if err := checkNotFuture(paidOn, now); err != nil {
		return err
	}

	i.paidDate = paidOn
	i.paid = true
	return nil
}

// MarkUnpaid clears the payment. Unmarking an unpaid installment is rejected
// so callers can tell "nothing changed" from "changed".
func (i *Installment) MarkUnpaid() error {
	if !i.paid {
		return customError.WrapNotPaid(i.index)
	}

	i.paidDate = time.Time{}
	i.paid = false
	return nil
}

func checkNotFuture(paidOn, now time.Time) error {
	if paidOn.After(utils.NormalizeDate(now)) {
		return customError.NewValidationError(
			"paid date %s is in the future (today is %s)",
			utils.FormatDate(paidOn), utils.FormatDate(now),
		)
	}
	return nil
}
