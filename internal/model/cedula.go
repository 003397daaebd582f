package model

import (
	"github.com/shopspring/decimal"
)

// BucketKey addresses a monthly aggregation bucket
type BucketKey struct {
	Month    int
	Category Category
}

// MonthlyBucket holds the per-month sums for one ledger side
type MonthlyBucket struct {
	Month       int             `json:"month"`
	Category    Category        `json:"category"`
	SumSubtotal decimal.Decimal `json:"sum_subtotal"`
	SumVAT      decimal.Decimal `json:"sum_vat"`
	SumTotal    decimal.Decimal `json:"sum_total"`
	Count       int             `json:"count"`
}

// WithholdingMonth holds withheld amounts attributed to one month
type WithholdingMonth struct {
	Month       int             `json:"month"`
	ISRWithheld decimal.Decimal `json:"isr_withheld"`
	VATWithheld decimal.Decimal `json:"vat_withheld"`
	Count       int             `json:"count"`
}

// TaxBracket is one row of a progressive ISR tariff
type TaxBracket struct {
	Lower      decimal.Decimal `json:"lower"`
	Upper      decimal.Decimal `json:"upper"`
	OpenEnded  bool            `json:"open_ended,omitempty"`
	Rate       decimal.Decimal `json:"rate"`
	FixedQuota decimal.Decimal `json:"fixed_quota"`
}

// Contains reports whether base falls inside the bracket, bounds inclusive
func (b TaxBracket) Contains(base decimal.Decimal) bool {
	if base.LessThan(b.Lower) {
		return false
	}
	return b.OpenEnded || base.LessThanOrEqual(b.Upper)
}

// MonthlyISRLine is one month of the cumulative ISR worksheet
type MonthlyISRLine struct {
	Month                int             `json:"month"`
	TaxableIncome        decimal.Decimal `json:"taxable_income"`
	CumulativeIncome     decimal.Decimal `json:"cumulative_income"`
	Deductions           decimal.Decimal `json:"deductions"`
	CumulativeDeductions decimal.Decimal `json:"cumulative_deductions"`
	TaxableBase          decimal.Decimal `json:"taxable_base"`
	LowerBound           decimal.Decimal `json:"lower_bound"`
	ExcessOverLower      decimal.Decimal `json:"excess_over_lower"`
	Rate                 decimal.Decimal `json:"rate"`
	MarginalTax          decimal.Decimal `json:"marginal_tax"`
	FixedQuota           decimal.Decimal `json:"fixed_quota"`
	GrossISR             decimal.Decimal `json:"gross_isr"`
	ISRWithheld          decimal.Decimal `json:"isr_withheld"`
	ISRPayable           decimal.Decimal `json:"isr_payable"`
}

// MonthlyIVALine is one month of the IVA netting worksheet
type MonthlyIVALine struct {
	Month            int             `json:"month"`
	VATCaused        decimal.Decimal `json:"vat_caused"`
	VATCreditable    decimal.Decimal `json:"vat_creditable"`
	VATWithheld      decimal.Decimal `json:"vat_withheld"`
	NetDifference    decimal.Decimal `json:"net_difference"`
	VATPayable       decimal.Decimal `json:"vat_payable"`
	VATCreditBalance decimal.Decimal `json:"vat_credit_balance"`
}

// CedulaRow joins the ISR and IVA lines of one month
type CedulaRow struct {
	Month int            `json:"month"`
	ISR   MonthlyISRLine `json:"isr"`
	IVA   MonthlyIVALine `json:"iva"`
}

// AnnualTotals is the closing row of the cedula
type AnnualTotals struct {
	Income      decimal.Decimal `json:"income"`
	Deductions  decimal.Decimal `json:"deductions"`
	GrossISR    decimal.Decimal `json:"gross_isr"`
	ISRWithheld decimal.Decimal `json:"isr_withheld"`
	ISRPayable  decimal.Decimal `json:"isr_payable"`

	// IVA figures are re-netted over the annual sums
	VATCaused        decimal.Decimal `json:"vat_caused"`
	VATCreditable    decimal.Decimal `json:"vat_creditable"`
	VATWithheld      decimal.Decimal `json:"vat_withheld"`
	NetDifference    decimal.Decimal `json:"net_difference"`
	VATPayable       decimal.Decimal `json:"vat_payable"`
	VATCreditBalance decimal.Decimal `json:"vat_credit_balance"`
}

// RunStats counts what happened to the inputs of one run
type RunStats struct {
	FilesSeen            int `json:"files_seen"`
	InvoicesParsed       int `json:"invoices_parsed"`
	WithholdingsParsed   int `json:"withholdings_parsed"`
	Skipped              int `json:"skipped"`
	DuplicateInvoices    int `json:"duplicate_invoices"`
	DuplicateWithholding int `json:"duplicate_withholdings"`
	Excluded             int `json:"excluded"`
	Undated              int `json:"undated"`
}

// Cedula is the full output of one computation run
type Cedula struct {
	FiscalYear  int          `json:"fiscal_year"`
	TaxpayerRFC string       `json:"taxpayer_rfc,omitempty"`
	IVAMode     string       `json:"iva_mode"`
	Rows        []CedulaRow  `json:"rows"`
	Annual      AnnualTotals `json:"annual"`
	Stats       RunStats     `json:"stats"`
	Warnings    []string     `json:"warnings,omitempty"`
}
