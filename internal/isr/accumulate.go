package isr

import (
	"github.com/shopspring/decimal"

	moneyutil "github.com/rezonia/cedula-processor/internal/decimal"
	"github.com/rezonia/cedula-processor/internal/model"
)

// MonthInput carries the period figures of one month
type MonthInput struct {
	Income      decimal.Decimal
	Deductions  decimal.Decimal
	ISRWithheld decimal.Decimal
}

// Accumulate computes the ISR worksheet for months 1 to 12 in order.
// inputs[0] is January. Cumulative income and deductions start at zero;
// the bracket lookup uses the period base (income minus deductions) of
// each month. A month without brackets is computed as zero tax and
// reported through a MissingScheduleError.
func Accumulate(inputs [12]MonthInput, schedule *Schedule) ([]model.MonthlyISRLine, []error) {
	lines := make([]model.MonthlyISRLine, 0, 12)
	var warnings []error

	cumIncome := decimal.Zero
	cumDeductions := decimal.Zero

	for i, in := range inputs {
		month := i + 1
		income := in.Income
		deductions := in.Deductions
		withheld := in.ISRWithheld

		cumIncome = cumIncome.Add(income)
		cumDeductions = cumDeductions.Add(deductions)
		base := income.Sub(deductions)

		line := model.MonthlyISRLine{
			Month:                month,
			TaxableIncome:        income,
			CumulativeIncome:     cumIncome,
			Deductions:           deductions,
			CumulativeDeductions: cumDeductions,
			TaxableBase:          base,
			LowerBound:           decimal.Zero,
			ExcessOverLower:      decimal.Zero,
			Rate:                 decimal.Zero,
			MarginalTax:          decimal.Zero,
			FixedQuota:           decimal.Zero,
			GrossISR:             decimal.Zero,
			ISRWithheld:          withheld,
		}

		res, ok := Resolve(base, schedule.Brackets(month))
		if ok {
			line.LowerBound = res.Bracket.Lower
			line.Rate = res.Bracket.Rate
			line.ExcessOverLower = res.Excess
			line.MarginalTax = res.MarginalTax
			line.FixedQuota = res.Bracket.FixedQuota
			line.GrossISR = res.GrossTax
		} else {
			warnings = append(warnings, &model.MissingScheduleError{Month: month})
		}

		line.ISRPayable = moneyutil.MaxZero(line.GrossISR.Sub(withheld))
		lines = append(lines, line)
	}

	return lines, warnings
}
