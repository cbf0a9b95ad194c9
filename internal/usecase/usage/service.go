// Package usage reports embedding token consumption against the configured budget.
package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

// Period selects the reporting window.
type Period string

// Reporting periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. Empty means PeriodMonth.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodMonth:
		return PeriodMonth, nil
	case PeriodDay:
		return PeriodDay, nil
	}
	return "", fmt.Errorf("period must be %q or %q, got %q: %w", PeriodDay, PeriodMonth, s, domain.ErrInvalidRequest)
}

// Report is the token usage of one window. Limit 0 and Remaining -1 mean unlimited.
type Report struct {
	Provider    string
	Period      Period
	PeriodStart time.Time
	PeriodEnd   time.Time
	Limit       int64
	Used        int64
	Remaining   int64
	Exhausted   bool
}

// Service handles usage reporting.
type Service struct {
	provider string
	br       BudgetReader
	now      func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(provider string, br BudgetReader) *Service {
	return &Service{provider: provider, br: br, now: func() time.Time { return time.Now().UTC() }}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period Period) Report {
	now := s.now()
	r := Report{Provider: s.provider, Period: period, Remaining: -1}

	switch period {
	case PeriodDay:
		r.PeriodStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.PeriodEnd = r.PeriodStart.Add(24 * time.Hour)
		if s.br != nil {
			r.Limit, r.Used = s.br.DailyLimit(), s.br.DailyUsed()
		}
	default:
		r.Period = PeriodMonth
		r.PeriodStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.PeriodEnd = r.PeriodStart.AddDate(0, 1, 0)
		if s.br != nil {
			r.Limit, r.Used = s.br.MonthlyLimit(), s.br.MonthlyUsed()
		}
	}

	if r.Limit > 0 {
		r.Remaining = max(r.Limit-r.Used, 0)
		r.Exhausted = r.Remaining == 0
	}
	return r
}
