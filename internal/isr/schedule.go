// Package isr resolves progressive ISR brackets and runs the cumulative
// monthly ISR computation.
package isr

import (
	"sort"

	moneyutil "github.com/rezonia/cedula-processor/internal/decimal"
	"github.com/rezonia/cedula-processor/internal/model"
)

// Row is one bracket as declared by a table. Month 0 applies to every month.
type Row struct {
	Month   int
	Bracket model.TaxBracket
}

// Schedule holds the brackets of each month, sorted ascending by Lower
type Schedule struct {
	Name   string
	months [12][]model.TaxBracket
}

// NewSchedule builds a schedule from table rows. Rows whose month is not
// in 1-12 are replicated into every month and rates above 1 are read as
// percentages.
func NewSchedule(name string, rows []Row) *Schedule {
	s := &Schedule{Name: name}
	for _, r := range rows {
		b := r.Bracket
		b.Rate = moneyutil.NormalizeRate(b.Rate)

		if r.Month < 1 || r.Month > 12 {
			for i := range s.months {
				s.months[i] = append(s.months[i], b)
			}
			continue
		}
		s.months[r.Month-1] = append(s.months[r.Month-1], b)
	}

	for i := range s.months {
		brackets := s.months[i]
		sort.SliceStable(brackets, func(a, b int) bool {
			return brackets[a].Lower.LessThan(brackets[b].Lower)
		})
	}
	return s
}

// Brackets returns the brackets of month (1-12); nil when none were declared
func (s *Schedule) Brackets(month int) []model.TaxBracket {
	if s == nil || month < 1 || month > 12 {
		return nil
	}
	return s.months[month-1]
}

// Empty reports whether no month has any bracket
func (s *Schedule) Empty() bool {
	if s == nil {
		return true
	}
	for _, m := range s.months {
		if len(m) > 0 {
			return false
		}
	}
	return true
}
