package core

import (
	"fmt"
	"time"
)

const (
	PeriodYear  PeriodType = "year"
	PeriodMonth PeriodType = "month"
	PeriodDay   PeriodType = "day"
)

// PeriodType is the granularity of a statistics query.
type PeriodType string

// ParsePeriodType returns the PeriodType named by s.
func ParsePeriodType(s string) (PeriodType, error) {
	switch p := PeriodType(s); p {
	case PeriodYear, PeriodMonth, PeriodDay:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q, expected one of year, month, day", ErrInvalidPeriodType, s)
}

func (p PeriodType) layout() string {
	switch p {
	case PeriodYear:
		return "2006"
	case PeriodMonth:
		return "2006-01"
	default:
		return DateLayout
	}
}

// ExpectedFormat is the human readable period format for p.
func (p PeriodType) ExpectedFormat() string {
	switch p {
	case PeriodYear:
		return "YYYY"
	case PeriodMonth:
		return "YYYY-MM"
	default:
		return "YYYY-MM-DD"
	}
}

// ValidatePeriod checks that period is written in the format p expects.
func (p PeriodType) ValidatePeriod(period string) error {
	if _, err := time.Parse(p.layout(), period); err != nil {
		return fmt.Errorf("%w for %s, expected format: %s", ErrInvalidDateFormat, p, p.ExpectedFormat())
	}
	return nil
}
