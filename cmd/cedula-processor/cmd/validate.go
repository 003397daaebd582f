package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rezonia/cedula-processor/internal/model"
	"github.com/rezonia/cedula-processor/internal/processor"
	"github.com/rezonia/cedula-processor/internal/report"
	"github.com/rezonia/cedula-processor/pkg/cedulalib"
)

var (
	strictValidation bool
)

// rfcPattern matches a person (4 letters) or company (3 letters) RFC:
// letters, a yymmdd date and a 3 character homoclave
var rfcPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)

// amountTolerance absorbs cent rounding between subtotal, tax and total
var amountTolerance = decimal.New(1, -2)

var validateCmd = &cobra.Command{
	Use:   "validate [paths...]",
	Short: "Validate document files",
	Long: `Validate CFDI invoices and withholding receipts before computing a cedula.

Checks performed:
  - Fiscal stamp UUID present
  - Issuer and receiver RFC format (3 or 4 letters, 6 digits, 3 characters)
  - Amount consistency (subtotal + IVA = total)
  - Issue date and withholding period

Examples:
  cedula-processor validate factura.xml
  cedula-processor validate ./xml --strict`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&strictValidation, "strict", false, "Treat missing dates and unknown fiscal years as errors")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	files, err := cedulalib.Collect(ctx, args...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	pipeline := processor.NewPipeline(
		processor.WithLogger(log.Component("parser")),
		processor.WithWorkers(cfg.Workers),
	)
	batch, err := pipeline.ProcessBatch(ctx, files)
	if err != nil {
		return err
	}

	results := make([]*ValidationResult, 0, len(batch.Results))
	allValid := true
	for _, r := range batch.Results {
		result := validateResult(r, strictValidation)
		results = append(results, result)

		if !result.Valid {
			allValid = false
		}
	}

	// Output results
	if cfg.Format == report.FormatJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("✓ %s: VALID\n", r.File)
			} else {
				fmt.Printf("✗ %s: INVALID\n", r.File)
				for _, e := range r.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}
			for _, w := range r.Warnings {
				fmt.Printf("  ⚠ %s\n", w)
			}
		}
	}

	if !allValid {
		return fmt.Errorf("validation failed for some files")
	}
	return nil
}

func validateResult(r processor.Result, strict bool) *ValidationResult {
	result := &ValidationResult{
		File:     r.Source,
		Valid:    true,
		Errors:   []string{},
		Warnings: append([]string{}, r.Warnings...),
	}

	if r.Error != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("parse error: %v", r.Error))
		return result
	}

	var errs []error
	var warnings []string
	switch {
	case r.Parsed != nil && r.Parsed.Invoice != nil:
		errs, warnings = checkInvoice(r.Parsed.Invoice, strict)
	case r.Parsed != nil && r.Parsed.Withholding != nil:
		errs, warnings = checkWithholding(r.Parsed.Withholding, strict)
	default:
		errs = []error{model.NewValidationError("document", nil, "required", "no document data extracted")}
	}

	for _, err := range errs {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}
	result.Warnings = append(result.Warnings, warnings...)
	return result
}

func checkInvoice(inv *model.FiscalDocument, strict bool) ([]error, []string) {
	var errs []error
	var warnings []string

	if inv.ID == "" {
		errs = append(errs, model.NewValidationError("uuid", nil, "required", "missing fiscal stamp UUID"))
	}
	if err := checkRFC("issuer_rfc", inv.IssuerRFC); err != nil {
		errs = append(errs, err)
	}
	if err := checkRFC("receiver_rfc", inv.ReceiverRFC); err != nil {
		errs = append(errs, err)
	}

	if inv.IssueDate == nil {
		if strict {
			errs = append(errs, model.NewValidationError("issue_date", inv.RawDate, "required", "missing or unreadable issue date"))
		} else {
			warnings = append(warnings, "missing or unreadable issue date")
		}
	}

	if inv.Total.IsZero() {
		warnings = append(warnings, "total amount is zero or missing")
	} else {
		// Discounts and withheld taxes also move the total, so a gap is only a warning
		expected := inv.Subtotal.Add(inv.VATAmount)
		if expected.Sub(inv.Total).Abs().GreaterThan(amountTolerance) {
			warnings = append(warnings,
				fmt.Sprintf("amount mismatch: subtotal(%s) + IVA(%s) = %s, but total is %s",
					inv.Subtotal, inv.VATAmount, expected, inv.Total))
		}
	}

	return errs, warnings
}

func checkWithholding(wd *model.WithholdingDocument, strict bool) ([]error, []string) {
	var errs []error
	var warnings []string

	if wd.ID == "" {
		errs = append(errs, model.NewValidationError("uuid", nil, "required", "missing fiscal stamp UUID"))
	}
	if err := checkRFC("issuer_rfc", wd.IssuerRFC); err != nil {
		errs = append(errs, err)
	}

	start, end := wd.PeriodStartMonth, wd.PeriodEndMonth
	if start < 1 || start > 12 || end < 1 || end > 12 || start > end {
		errs = append(errs, model.NewValidationError("period",
			fmt.Sprintf("%d-%d", start, end), "range", "period months must be 1-12 with start <= end"))
	}

	if wd.FiscalYear == 0 {
		if strict {
			errs = append(errs, model.NewValidationError("fiscal_year", nil, "required", "missing fiscal year"))
		} else {
			warnings = append(warnings, "missing fiscal year, receipt is kept for any year")
		}
	}

	withheld := wd.ISRWithheld.Add(wd.VATWithheld)
	if !wd.TotalWithheldAmount.IsZero() && withheld.Sub(wd.TotalWithheldAmount).Abs().GreaterThan(amountTolerance) {
		warnings = append(warnings,
			fmt.Sprintf("withheld mismatch: ISR(%s) + IVA(%s) = %s, but total withheld is %s",
				wd.ISRWithheld, wd.VATWithheld, withheld, wd.TotalWithheldAmount))
	}

	return errs, warnings
}

func checkRFC(field, rfc string) error {
	if rfc == "" {
		return model.NewValidationError(field, nil, "required", "missing RFC")
	}
	if !rfcPattern.MatchString(rfc) {
		return model.NewValidationError(field, rfc, "format", "RFC must be 3 or 4 letters, 6 digits and 3 characters")
	}
	return nil
}

// ValidationResult holds the result of validating a single file
type ValidationResult struct {
	File     string   `json:"file"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
