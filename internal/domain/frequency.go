package domain

import (
	"strings"
	"time"

	customError "github.com/segyhp/installment-tracker/pkg/errors"
	"github.com/segyhp/installment-tracker/pkg/utils"
)

// Frequency determines how due dates are spaced when a plan is created.
type Frequency string

const (
	FrequencyMonthly     Frequency = "monthly"
	FrequencyFortnightly Frequency = "fortnightly"
	FrequencyWeekly      Frequency = "weekly"
	FrequencyCustom      Frequency = "custom"
)

// ParseFrequency maps user text onto a Frequency, ignoring case and surrounding spaces.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", customError.NewValidationError("unknown frequency %q", s)
	}
	return f, nil
}

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyMonthly, FrequencyFortnightly, FrequencyWeekly, FrequencyCustom:
		return true
	}
	return false
}

func (f Frequency) String() string {
	return string(f)
}

// DueDate returns the due date of installment n (0-based) counted from start.
// Installment 0 is due on start itself. Custom frequencies have no generated dates.
func (f Frequency) DueDate(start time.Time, n int) (time.Time, bool) {
	start = utils.NormalizeDate(start)
	switch f {
	case FrequencyMonthly:
		return utils.AddMonthsClamped(start, n), true
	case FrequencyFortnightly:
		return start.AddDate(0, 0, 14*n), true
	case FrequencyWeekly:
		return start.AddDate(0, 0, 7*n), true
	}
	return time.Time{}, false
}
