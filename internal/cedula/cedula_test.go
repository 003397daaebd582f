package cedula_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/cedula-processor/internal/cedula"
	"github.com/rezonia/cedula-processor/internal/isr"
	"github.com/rezonia/cedula-processor/internal/iva"
	"github.com/rezonia/cedula-processor/internal/ledger"
	"github.com/rezonia/cedula-processor/internal/model"
	"github.com/rezonia/cedula-processor/internal/processor"
	"github.com/rezonia/cedula-processor/internal/source"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func flatSchedule() *isr.Schedule {
	return isr.NewSchedule("flat", []isr.Row{
		{Bracket: model.TaxBracket{Lower: decimal.Zero, OpenEnded: true, Rate: d("10"), FixedQuota: decimal.Zero}},
	})
}

func invoice(id, path string, month int, subtotal, vat string) model.FiscalDocument {
	return model.FiscalDocument{
		ID:         id,
		SourcePath: path,
		Year:       2024,
		Month:      month,
		Subtotal:   d(subtotal),
		VATAmount:  d(vat),
		Total:      d(subtotal).Add(d(vat)),
	}
}

func TestAssemble(t *testing.T) {
	var isrIn [12]isr.MonthInput
	var ivaIn [12]iva.MonthInput
	var withholding [12]model.WithholdingMonth
	for i := range withholding {
		withholding[i].Month = i + 1
	}
	isrIn[0] = isr.MonthInput{Income: d("1000")}
	ivaIn[0] = iva.MonthInput{Caused: d("160"), Creditable: d("200")}
	ivaIn[1] = iva.MonthInput{Caused: d("100")}
	withholding[0].ISRWithheld = d("40")

	isrLines, _ := isr.Accumulate(isrIn, flatSchedule())
	ivaLines, ivaAnnual := iva.Compute(ivaIn, iva.ModeBase)

	rows, annual, err := cedula.Assemble(isrLines, ivaLines, ivaAnnual, withholding)
	require.NoError(t, err)
	require.Len(t, rows, 12)

	for i, r := range rows {
		assert.Equal(t, i+1, r.Month)
	}
	assert.True(t, d("100").Equal(rows[0].ISR.GrossISR))
	assert.True(t, d("40").Equal(rows[0].ISR.ISRWithheld))
	assert.True(t, d("60").Equal(rows[0].ISR.ISRPayable))

	assert.True(t, d("1000").Equal(annual.Income))
	assert.True(t, d("60").Equal(annual.ISRPayable))
	assert.True(t, d("40").Equal(rows[0].IVA.VATCreditBalance))
	assert.True(t, d("100").Equal(rows[1].IVA.VATPayable))
	assert.True(t, d("60").Equal(annual.VATPayable), "January credit offsets February")
	assert.True(t, annual.VATCreditBalance.IsZero())
}

func TestAssemble_Deterministic(t *testing.T) {
	var isrIn [12]isr.MonthInput
	isrIn[3] = isr.MonthInput{Income: d("500"), Deductions: d("100")}
	isrLines, _ := isr.Accumulate(isrIn, flatSchedule())
	ivaLines, ivaAnnual := iva.Compute([12]iva.MonthInput{}, iva.ModeWithheld)

	rows1, annual1, err := cedula.Assemble(isrLines, ivaLines, ivaAnnual, [12]model.WithholdingMonth{})
	require.NoError(t, err)
	rows2, annual2, err := cedula.Assemble(isrLines, ivaLines, ivaAnnual, [12]model.WithholdingMonth{})
	require.NoError(t, err)

	assert.Equal(t, rows1, rows2)
	assert.Equal(t, annual1, annual2)
	assert.True(t, d("40").Equal(isrLines[3].GrossISR), "input lines are not modified")
}

func TestAssemble_WrongShape(t *testing.T) {
	_, _, err := cedula.Assemble(nil, nil, model.MonthlyIVALine{}, [12]model.WithholdingMonth{})
	assert.Error(t, err)

	isrLines, _ := isr.Accumulate([12]isr.MonthInput{}, flatSchedule())
	ivaLines, _ := iva.Compute([12]iva.MonthInput{}, iva.ModeBase)
	_, _, err = cedula.Assemble(isrLines, ivaLines, ivaLines[11], [12]model.WithholdingMonth{})
	assert.Error(t, err, "a monthly line is not an annual line")
}

func TestAssemble_AnnualIVAFromCompute(t *testing.T) {
	var ivaIn [12]iva.MonthInput
	ivaIn[0] = iva.MonthInput{Caused: d("300"), Creditable: d("100"), Withheld: d("50")}
	ivaIn[5] = iva.MonthInput{Caused: d("20"), Creditable: d("400")}

	isrLines, _ := isr.Accumulate([12]isr.MonthInput{}, flatSchedule())
	ivaLines, ivaAnnual := iva.Compute(ivaIn, iva.ModeWithheld)

	_, annual, err := cedula.Assemble(isrLines, ivaLines, ivaAnnual, [12]model.WithholdingMonth{})
	require.NoError(t, err)

	assert.Equal(t, 0, ivaAnnual.Month)
	assert.True(t, ivaAnnual.NetDifference.Equal(annual.NetDifference))
	assert.True(t, ivaAnnual.VATPayable.Equal(annual.VATPayable))
	assert.True(t, ivaAnnual.VATCreditBalance.Equal(annual.VATCreditBalance))

	// 320 caused - 500 creditable - 50 withheld
	assert.True(t, d("-230").Equal(annual.NetDifference))
	assert.True(t, d("230").Equal(annual.VATCreditBalance))
	assert.True(t, annual.VATPayable.IsZero())
	assert.True(t, d("320").Equal(annual.VATCaused))
	assert.True(t, d("50").Equal(annual.VATWithheld))
}

func TestEngine_Compute(t *testing.T) {
	e := &cedula.Engine{
		Classifier: ledger.Classifier{IncomeRoot: "ingresos", ExpenseRoot: "gastos"},
		FiscalYear: 2024,
		Mode:       iva.ModeBase,
		Schedule:   flatSchedule(),
	}

	res, err := e.Compute(cedula.Input{
		Invoices: []model.FiscalDocument{
			invoice("A", "ingresos/a.xml", 1, "1000", "160"),
			invoice("A", "ingresos/lote.zip/a.xml", 1, "1000", "160"),
			invoice("B", "gastos/b.xml", 1, "300", "48"),
			invoice("C", "ingresos/c.xml", 2, "500", "80"),
			{ID: "D", SourcePath: "ingresos/sin_fecha.xml", Subtotal: d("999")},
			{ID: "E", SourcePath: "ingresos/2023.xml", Year: 2023, Month: 12, Subtotal: d("999")},
		},
		Withholdings: []model.WithholdingDocument{
			{ID: "W1", PeriodStartMonth: 2, FiscalYear: 2024, ISRWithheld: d("10"), VATWithheld: d("5")},
			{ID: "W1", PeriodStartMonth: 2, FiscalYear: 2024, ISRWithheld: d("10"), VATWithheld: d("5")},
			{ID: "W2", PeriodStartMonth: 3, FiscalYear: 2023, ISRWithheld: d("99")},
		},
		Stats: model.RunStats{FilesSeen: 9},
	})
	require.NoError(t, err)

	c := res.Cedula
	assert.Equal(t, 2024, c.FiscalYear)
	assert.Equal(t, "base", c.IVAMode)
	require.Len(t, c.Rows, 12)

	jan := c.Rows[0]
	assert.True(t, d("1000").Equal(jan.ISR.TaxableIncome))
	assert.True(t, d("300").Equal(jan.ISR.Deductions))
	assert.True(t, d("70").Equal(jan.ISR.GrossISR))
	assert.True(t, d("112").Equal(jan.IVA.VATPayable))

	feb := c.Rows[1]
	assert.True(t, d("1500").Equal(feb.ISR.CumulativeIncome))
	assert.True(t, d("10").Equal(feb.ISR.ISRWithheld))
	assert.True(t, d("40").Equal(feb.ISR.ISRPayable))
	assert.True(t, d("5").Equal(feb.IVA.VATWithheld))
	assert.True(t, d("80").Equal(feb.IVA.NetDifference))

	assert.True(t, d("1500").Equal(c.Annual.Income))
	assert.True(t, d("192").Equal(c.Annual.VATPayable))

	assert.Equal(t, 9, c.Stats.FilesSeen)
	assert.Equal(t, 1, c.Stats.DuplicateInvoices)
	assert.Equal(t, 1, c.Stats.DuplicateWithholding)
	assert.Equal(t, 1, c.Stats.Undated)
	assert.Equal(t, 2, c.Stats.Excluded)
	assert.NotEmpty(t, c.Warnings)

	assert.Len(t, res.Documents, 5)
	assert.Len(t, res.Withholdings, 2)
}

func TestEngine_WithheldMode(t *testing.T) {
	e := &cedula.Engine{FiscalYear: 2024, RFC: "GOMA800101AB1", Mode: iva.ModeWithheld, Schedule: flatSchedule()}

	doc := invoice("A", "x.xml", 4, "1000", "160")
	doc.IssuerRFC = "GOMA800101AB1"

	res, err := e.Compute(cedula.Input{
		Invoices:     []model.FiscalDocument{doc},
		Withholdings: []model.WithholdingDocument{{ID: "W", PeriodStartMonth: 4, VATWithheld: d("106.67")}},
	})
	require.NoError(t, err)

	apr := res.Cedula.Rows[3]
	assert.True(t, d("53.33").Equal(apr.IVA.VATPayable))
	assert.Equal(t, model.CategoryIncome, res.Documents[0].Category)
}

func TestEngine_MissingScheduleWarns(t *testing.T) {
	e := &cedula.Engine{FiscalYear: 2024}

	res, err := e.Compute(cedula.Input{
		Invoices: []model.FiscalDocument{invoice("A", "x.xml", 1, "1000", "0")},
	})
	require.NoError(t, err)
	assert.Len(t, res.Cedula.Warnings, 12)
	for _, r := range res.Cedula.Rows {
		assert.True(t, r.ISR.GrossISR.IsZero())
	}
}

func TestEngine_RequiresYear(t *testing.T) {
	_, err := (&cedula.Engine{}).Compute(cedula.Input{})
	assert.Error(t, err)
}

func TestEngine_FromXML(t *testing.T) {
	dir := filepath.Join("..", "parser", "xml", "testdata")
	var files []source.File
	for _, name := range []string{"cfdi40_ingreso.xml", "cfdi40_traslados_divididos.xml", "retenciones20.xml", "cfdi40_ingreso.xml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		files = append(files, source.File{Path: name, Data: data})
	}

	batch, err := processor.NewPipeline().ProcessBatch(context.Background(), files)
	require.NoError(t, err)

	schedule, err := isr.Default(2024)
	require.NoError(t, err)

	e := &cedula.Engine{FiscalYear: 2024, RFC: "GOMA800101AB1", Schedule: schedule}
	res, err := e.Compute(cedula.Input{Invoices: batch.Invoices, Withholdings: batch.Withholdings})
	require.NoError(t, err)

	c := res.Cedula
	assert.Equal(t, 1, c.Stats.DuplicateInvoices)

	mar := c.Rows[2]
	assert.True(t, d("10000").Equal(mar.ISR.TaxableIncome))
	assert.True(t, d("770.90").Equal(mar.ISR.GrossISR))
	assert.True(t, d("1600").Equal(mar.IVA.VATPayable))

	may := c.Rows[4]
	assert.True(t, d("1000").Equal(may.ISR.Deductions))
	assert.True(t, may.ISR.GrossISR.IsZero(), "negative base is untaxed")
	assert.True(t, d("128").Equal(may.IVA.VATCreditBalance))

	feb := c.Rows[1]
	assert.True(t, d("125").Equal(feb.ISR.ISRWithheld))
	assert.True(t, feb.ISR.ISRPayable.IsZero())

	assert.True(t, d("1472").Equal(c.Annual.VATPayable))
	assert.True(t, d("1000").Equal(c.Rows[11].ISR.CumulativeDeductions))
}
