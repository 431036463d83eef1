package lifecycle

import (
	"errors"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid_reporting_period")

const monthLayout = "2006-01"

// PeriodBounds expands YYYY-MM month labels into the inclusive day
// bounds of the reporting period: first day of the start month through
// last day of the end month.
func PeriodBounds(startMonth, endMonth string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(monthLayout, startMonth, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	end, err := time.ParseInLocation(monthLayout, endMonth, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	return start, monthEnd(end), nil
}
