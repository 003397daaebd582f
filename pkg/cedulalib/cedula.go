// Package cedulalib provides a public API for computing ISR and IVA
// cedulas from SAT CFDI invoices and withholding receipts.
//
// Example usage:
//
//	proc, err := cedulalib.NewProcessor(cedulalib.Options{
//	    FiscalYear: 2024,
//	    RFC:        "GOMA800101AB1",
//	    IncomeRoot: "facturas/ingresos",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := proc.ComputeDirs(ctx, "facturas")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Cedula.Annual.ISRPayable)
package cedulalib

import (
	"github.com/rezonia/cedula-processor/internal/cedula"
	"github.com/rezonia/cedula-processor/internal/isr"
	"github.com/rezonia/cedula-processor/internal/iva"
	"github.com/rezonia/cedula-processor/internal/logger"
	"github.com/rezonia/cedula-processor/internal/model"
	xmlparser "github.com/rezonia/cedula-processor/internal/parser/xml"
	"github.com/rezonia/cedula-processor/internal/processor"
	"github.com/rezonia/cedula-processor/internal/source"
)

// Re-export core types for public API
type (
	FiscalDocument      = model.FiscalDocument
	WithholdingDocument = model.WithholdingDocument
	ClassifiedDocument  = model.ClassifiedDocument
	Cedula              = model.Cedula
	CedulaRow           = model.CedulaRow
	AnnualTotals        = model.AnnualTotals
	MonthlyISRLine      = model.MonthlyISRLine
	MonthlyIVALine      = model.MonthlyIVALine
	TaxBracket          = model.TaxBracket
	RunStats            = model.RunStats
	Category            = model.Category

	File     = source.File
	Parsed   = xmlparser.Parsed
	Batch    = processor.Batch
	Result   = cedula.Result
	Schedule = isr.Schedule
	IVAMode  = iva.Mode
	Logger   = logger.Logger
)

// Re-export ledger categories
const (
	CategoryIncome  = model.CategoryIncome
	CategoryExpense = model.CategoryExpense
)

// Re-export IVA netting modes
const (
	IVAModeBase     = iva.ModeBase
	IVAModeWithheld = iva.ModeWithheld
)

// Re-export error types
type (
	ParseError           = model.ParseError
	ValidationError      = model.ValidationError
	MissingScheduleError = model.MissingScheduleError
	InputNotFoundError   = model.InputNotFoundError
	OutputWriteError     = model.OutputWriteError
	MissingFieldError    = model.MissingFieldError
)
