package cedula

import (
	"fmt"

	"github.com/rezonia/cedula-processor/internal/isr"
	"github.com/rezonia/cedula-processor/internal/iva"
	"github.com/rezonia/cedula-processor/internal/ledger"
	"github.com/rezonia/cedula-processor/internal/logger"
	"github.com/rezonia/cedula-processor/internal/model"
)

// Input is everything parsed for one run
type Input struct {
	Invoices     []model.FiscalDocument
	Withholdings []model.WithholdingDocument

	// Stats and Warnings carried over from the parse stage
	Stats    model.RunStats
	Warnings []string
}

// Result is a computed cedula plus the documents that fed it
type Result struct {
	Cedula       *model.Cedula
	Documents    []model.ClassifiedDocument
	Withholdings []model.WithholdingDocument
}

// Engine computes the cedula of one taxpayer and fiscal year
type Engine struct {
	Classifier ledger.Classifier
	FiscalYear int
	RFC        string
	Mode       iva.Mode
	Schedule   *isr.Schedule
	Log        *logger.Logger
}

// Compute runs dedup, classification, monthly aggregation, the ISR
// accumulator and IVA netting, then assembles the cedula. It holds no
// state between calls.
func (e *Engine) Compute(in Input) (*Result, error) {
	if e.FiscalYear <= 0 {
		return nil, fmt.Errorf("fiscal year is required")
	}
	log := e.Log
	if log == nil {
		log = logger.Nop()
	}
	mode := e.Mode
	if mode == "" {
		mode = iva.ModeBase
	}

	stats := in.Stats
	warnings := append([]string(nil), in.Warnings...)

	invoices, dupInvoices := ledger.Dedup(in.Invoices)
	withholdings, dupWithholdings := ledger.DedupWithholdings(in.Withholdings)
	stats.DuplicateInvoices += dupInvoices
	stats.DuplicateWithholding += dupWithholdings

	undated := 0
	for _, d := range invoices {
		if !d.HasPeriod() {
			undated++
			warnings = append(warnings, fmt.Sprintf("%s: no usable issue date, excluded from totals", d.SourcePath))
		}
	}

	classifier := e.Classifier
	if classifier.OwnRFC == "" {
		classifier.OwnRFC = e.RFC
	}
	classified := classifier.ClassifyAll(invoices)
	agg := ledger.Aggregate(classified, e.FiscalYear)
	withheld, whExcluded := ledger.WithholdingTotals(withholdings, e.FiscalYear)
	stats.Undated += undated
	stats.Excluded += agg.Excluded - undated + whExcluded

	var isrInputs [12]isr.MonthInput
	var ivaInputs [12]iva.MonthInput
	for i := 0; i < 12; i++ {
		month := i + 1
		income := agg.Bucket(month, model.CategoryIncome)
		expense := agg.Bucket(month, model.CategoryExpense)

		isrInputs[i] = isr.MonthInput{
			Income:      income.SumSubtotal,
			Deductions:  expense.SumSubtotal,
			ISRWithheld: withheld[i].ISRWithheld,
		}
		ivaInputs[i] = iva.MonthInput{
			Caused:     income.SumVAT,
			Creditable: expense.SumVAT,
			Withheld:   withheld[i].VATWithheld,
		}
	}

	if e.Schedule.Empty() {
		log.Warn().Int("year", e.FiscalYear).Msg("ISR schedule is empty, tax computed as zero")
	}
	isrLines, scheduleWarnings := isr.Accumulate(isrInputs, e.Schedule)
	for _, w := range scheduleWarnings {
		log.Warn().Err(w).Msg("ISR schedule")
		warnings = append(warnings, w.Error())
	}

	ivaLines, ivaAnnual := iva.Compute(ivaInputs, mode)

	rows, annual, err := Assemble(isrLines, ivaLines, ivaAnnual, withheld)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("year", e.FiscalYear).
		Int("invoices", len(invoices)).
		Int("withholdings", len(withholdings)).
		Int("duplicates", dupInvoices+dupWithholdings).
		Int("excluded", stats.Excluded).
		Str("iva_mode", string(mode)).
		Msg("cedula computed")

	return &Result{
		Cedula: &model.Cedula{
			FiscalYear:  e.FiscalYear,
			TaxpayerRFC: e.RFC,
			IVAMode:     string(mode),
			Rows:        rows,
			Annual:      annual,
			Stats:       stats,
			Warnings:    warnings,
		},
		Documents:    classified,
		Withholdings: withholdings,
	}, nil
}
