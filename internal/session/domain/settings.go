package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session_not_found")
	ErrDataNotFound    = errors.New("session_data_not_found")
	ErrInvalidSettings = errors.New("invalid_settings")
)

// Settings are the operator-tunable options of a session. Periods are
// YYYY-MM month labels, both inclusive.
type Settings struct {
	Currency    string  `json:"currency"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	Tolerance   float64 `json:"tolerance"`
}

// DefaultSettings covers a trailing twelve-month window ending in the
// month before now.
func DefaultSettings(now time.Time) Settings {
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	start := end.AddDate(0, -11, 0)
	return Settings{
		Currency:    "USD",
		PeriodStart: start.Format("2006-01"),
		PeriodEnd:   end.Format("2006-01"),
		Tolerance:   1.00,
	}
}

var settingKeys = map[string]bool{
	"currency":     true,
	"period_start": true,
	"period_end":   true,
	"tolerance":    true,
}

// ApplySettings merges a raw settings patch onto the current values.
// Unknown keys are rejected.
func ApplySettings(current Settings, patch map[string]any) (Settings, error) {
	for key := range patch {
		if !settingKeys[key] {
			return Settings{}, fmt.Errorf("%w: unknown setting %q", ErrInvalidSettings, key)
		}
	}

	out := current
	if v, ok := patch["currency"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return Settings{}, fmt.Errorf("%w: currency must be a non-empty string", ErrInvalidSettings)
		}
		out.Currency = s
	}
	if v, ok := patch["period_start"]; ok {
		s, err := monthLabel(v, "period_start")
		if err != nil {
			return Settings{}, err
		}
		out.PeriodStart = s
	}
	if v, ok := patch["period_end"]; ok {
		s, err := monthLabel(v, "period_end")
		if err != nil {
			return Settings{}, err
		}
		out.PeriodEnd = s
	}
	if v, ok := patch["tolerance"]; ok {
		f, ok := v.(float64)
		if !ok || f < 0 {
			return Settings{}, fmt.Errorf("%w: tolerance must be a non-negative number", ErrInvalidSettings)
		}
		out.Tolerance = f
	}

	start, err := time.Parse("2006-01", out.PeriodStart)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: period_start must be YYYY-MM", ErrInvalidSettings)
	}
	end, err := time.Parse("2006-01", out.PeriodEnd)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: period_end must be YYYY-MM", ErrInvalidSettings)
	}
	if end.Before(start) {
		return Settings{}, fmt.Errorf("%w: period_end is before period_start", ErrInvalidSettings)
	}
	return out, nil
}

func monthLabel(v any, field string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a YYYY-MM string", ErrInvalidSettings, field)
	}
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", fmt.Errorf("%w: %s must be YYYY-MM", ErrInvalidSettings, field)
	}
	return s, nil
}
