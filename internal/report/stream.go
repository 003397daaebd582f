package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/rezonia/cedula-processor/internal/model"
	"github.com/rezonia/cedula-processor/internal/processor"
)

// Format is a text output format
type Format string

const (
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatTable Format = "table"
)

// ParseFormat validates an output format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatTable:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// amounts in table output follow Mexican conventions
var printer = message.NewPrinter(language.MustParse("es-MX"))

// Money formats an amount for human-readable output
func Money(d decimal.Decimal) string {
	return printer.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}

// Write renders the cedula in format
func Write(w io.Writer, format Format, c *model.Cedula) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, c)
	case FormatCSV:
		return WriteCSV(w, c)
	case FormatTable:
		return WriteTable(w, c)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteJSON writes the cedula as indented JSON
func WriteJSON(w io.Writer, c *model.Cedula) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// WriteCSV writes one line per month plus the annual line
func WriteCSV(w io.Writer, c *model.Cedula) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"month", "income", "cumulative_income", "deductions", "cumulative_deductions",
		"taxable_base", "lower_bound", "excess", "rate", "marginal_tax", "fixed_quota",
		"gross_isr", "isr_withheld", "isr_payable",
		"vat_caused", "vat_creditable", "vat_withheld", "net_difference", "vat_payable", "vat_credit_balance",
	}); err != nil {
		return err
	}

	for _, r := range c.Rows {
		i, v := r.ISR, r.IVA
		if err := cw.Write([]string{
			fmt.Sprintf("%d", r.Month),
			i.TaxableIncome.String(), i.CumulativeIncome.String(), i.Deductions.String(), i.CumulativeDeductions.String(),
			i.TaxableBase.String(), i.LowerBound.String(), i.ExcessOverLower.String(), i.Rate.String(),
			i.MarginalTax.String(), i.FixedQuota.String(), i.GrossISR.String(), i.ISRWithheld.String(), i.ISRPayable.String(),
			v.VATCaused.String(), v.VATCreditable.String(), v.VATWithheld.String(),
			v.NetDifference.String(), v.VATPayable.String(), v.VATCreditBalance.String(),
		}); err != nil {
			return err
		}
	}

	a := c.Annual
	if err := cw.Write([]string{
		"annual",
		a.Income.String(), "", a.Deductions.String(), "",
		a.Income.Sub(a.Deductions).String(), "", "", "", "", "",
		a.GrossISR.String(), a.ISRWithheld.String(), a.ISRPayable.String(),
		a.VATCaused.String(), a.VATCreditable.String(), a.VATWithheld.String(),
		a.NetDifference.String(), a.VATPayable.String(), a.VATCreditBalance.String(),
	}); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// WriteTable writes a condensed monthly summary for terminals
func WriteTable(w io.Writer, c *model.Cedula) error {
	fmt.Fprintf(w, "Cédula %d", c.FiscalYear)
	if c.TaxpayerRFC != "" {
		fmt.Fprintf(w, " (%s)", c.TaxpayerRFC)
	}
	fmt.Fprintf(w, " IVA: %s\n\n", c.IVAMode)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MES\tINGRESOS\tDEDUCCIONES\tBASE\tISR CAUSADO\tISR RETENIDO\tISR A PAGAR\tIVA A PAGAR\tSALDO A FAVOR\t")

	for _, r := range c.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			monthName(r.Month),
			Money(r.ISR.TaxableIncome),
			Money(r.ISR.Deductions),
			Money(r.ISR.TaxableBase),
			Money(r.ISR.GrossISR),
			Money(r.ISR.ISRWithheld),
			Money(r.ISR.ISRPayable),
			Money(r.IVA.VATPayable),
			Money(r.IVA.VATCreditBalance),
		)
	}

	a := c.Annual
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
		totalLabel,
		Money(a.Income),
		Money(a.Deductions),
		Money(a.Income.Sub(a.Deductions)),
		Money(a.GrossISR),
		Money(a.ISRWithheld),
		Money(a.ISRPayable),
		Money(a.VATPayable),
		Money(a.VATCreditBalance),
	)
	if err := tw.Flush(); err != nil {
		return err
	}

	s := c.Stats
	fmt.Fprintf(w, "\narchivos: %d  facturas: %d  retenciones: %d  omitidos: %d  duplicados: %d  excluidos: %d\n",
		s.FilesSeen, s.InvoicesParsed, s.WithholdingsParsed, s.Skipped,
		s.DuplicateInvoices+s.DuplicateWithholding, s.Excluded)
	return nil
}

// DocumentRow is the flat view of one parsed file
type DocumentRow struct {
	File        string   `json:"file"`
	Kind        string   `json:"kind,omitempty"`
	Schema      string   `json:"schema,omitempty"`
	UUID        string   `json:"uuid,omitempty"`
	Date        string   `json:"date,omitempty"`
	IssuerRFC   string   `json:"issuer_rfc,omitempty"`
	ReceiverRFC string   `json:"receiver_rfc,omitempty"`
	Subtotal    string   `json:"subtotal,omitempty"`
	VAT         string   `json:"vat,omitempty"`
	Total       string   `json:"total,omitempty"`
	ISRWithheld string   `json:"isr_withheld,omitempty"`
	VATWithheld string   `json:"vat_withheld,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// DocumentRows flattens parse results, keeping their order
func DocumentRows(results []processor.Result) []DocumentRow {
	rows := make([]DocumentRow, 0, len(results))
	for _, r := range results {
		row := DocumentRow{File: r.Source, Warnings: r.Warnings}
		if r.Error != nil {
			row.Error = r.Error.Error()
			rows = append(rows, row)
			continue
		}

		p := r.Parsed
		row.Kind = string(p.Kind)
		row.Schema = string(p.Schema)
		switch {
		case p.Invoice != nil:
			d := p.Invoice
			row.UUID = d.ID
			row.Date = formatDate(d.IssueDate)
			row.IssuerRFC = d.IssuerRFC
			row.ReceiverRFC = d.ReceiverRFC
			row.Subtotal = d.Subtotal.StringFixed(2)
			row.VAT = d.VATAmount.StringFixed(2)
			row.Total = d.Total.StringFixed(2)
		case p.Withholding != nil:
			d := p.Withholding
			row.UUID = d.ID
			row.Date = formatDate(d.IssueDate)
			row.IssuerRFC = d.IssuerRFC
			row.ReceiverRFC = d.ReceiverRFC
			row.Total = d.TotalOperationAmount.StringFixed(2)
			row.ISRWithheld = d.ISRWithheld.StringFixed(2)
			row.VATWithheld = d.VATWithheld.StringFixed(2)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteDocuments renders parsed files in format
func WriteDocuments(w io.Writer, format Format, rows []DocumentRow) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"file", "kind", "schema", "uuid", "date", "issuer_rfc", "receiver_rfc",
			"subtotal", "vat", "total", "isr_withheld", "vat_withheld", "error"}); err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write([]string{r.File, r.Kind, r.Schema, r.UUID, r.Date, r.IssuerRFC, r.ReceiverRFC,
				r.Subtotal, r.VAT, r.Total, r.ISRWithheld, r.VATWithheld, r.Error}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	case FormatTable:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tKIND\tSCHEMA\tUUID\tDATE\tISSUER\tTOTAL")
		fmt.Fprintln(tw, "----\t----\t------\t----\t----\t------\t-----")
		for _, r := range rows {
			if r.Error != "" {
				fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\t\n", r.File, r.Error)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.File, r.Kind, r.Schema, r.UUID, r.Date, r.IssuerRFC, r.Total)
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
