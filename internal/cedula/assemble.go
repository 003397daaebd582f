// Package cedula joins the ISR and IVA worksheets into the monthly cedula
// and runs the full computation over parsed documents.
package cedula

import (
	"fmt"

	"github.com/shopspring/decimal"

	moneyutil "github.com/rezonia/cedula-processor/internal/decimal"
	"github.com/rezonia/cedula-processor/internal/model"
)

// Assemble merges 12 ISR lines, 12 IVA lines and the withholding totals
// into ordered monthly rows and the annual totals. Withheld ISR is taken
// from withholding and ISRPayable is recomputed from it. The IVA side of
// the annual totals is ivaAnnual, the Month 0 line from iva.Compute.
func Assemble(isrLines []model.MonthlyISRLine, ivaLines []model.MonthlyIVALine, ivaAnnual model.MonthlyIVALine, withholding [12]model.WithholdingMonth) ([]model.CedulaRow, model.AnnualTotals, error) {
	if len(isrLines) != 12 || len(ivaLines) != 12 {
		return nil, model.AnnualTotals{}, fmt.Errorf("assemble: want 12 ISR and 12 IVA lines, got %d and %d", len(isrLines), len(ivaLines))
	}
	if ivaAnnual.Month != 0 {
		return nil, model.AnnualTotals{}, fmt.Errorf("assemble: annual IVA line has month %d, want 0", ivaAnnual.Month)
	}

	rows := make([]model.CedulaRow, 0, 12)
	var income, deductions, gross, withheld, payable []decimal.Decimal

	for i := 0; i < 12; i++ {
		month := i + 1
		isrLine := isrLines[i]
		ivaLine := ivaLines[i]
		if isrLine.Month != month || ivaLine.Month != month {
			return nil, model.AnnualTotals{}, fmt.Errorf("assemble: line %d is for month %d/%d", month, isrLine.Month, ivaLine.Month)
		}

		isrLine.ISRWithheld = withholding[i].ISRWithheld
		isrLine.ISRPayable = moneyutil.MaxZero(isrLine.GrossISR.Sub(isrLine.ISRWithheld))

		rows = append(rows, model.CedulaRow{Month: month, ISR: isrLine, IVA: ivaLine})

		income = append(income, isrLine.TaxableIncome)
		deductions = append(deductions, isrLine.Deductions)
		gross = append(gross, isrLine.GrossISR)
		withheld = append(withheld, isrLine.ISRWithheld)
		payable = append(payable, isrLine.ISRPayable)
	}

	annual := model.AnnualTotals{
		Income:      moneyutil.Sum(income),
		Deductions:  moneyutil.Sum(deductions),
		GrossISR:    moneyutil.Sum(gross),
		ISRWithheld: moneyutil.Sum(withheld),
		ISRPayable:  moneyutil.Sum(payable),

		VATCaused:        ivaAnnual.VATCaused,
		VATCreditable:    ivaAnnual.VATCreditable,
		VATWithheld:      ivaAnnual.VATWithheld,
		NetDifference:    ivaAnnual.NetDifference,
		VATPayable:       ivaAnnual.VATPayable,
		VATCreditBalance: ivaAnnual.VATCreditBalance,
	}
	return rows, annual, nil
}
