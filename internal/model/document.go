package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Schema identifies the XML schema variant a document was read from
type Schema string

const (
	SchemaCFDI40        Schema = "CFDI40"
	SchemaCFDI33        Schema = "CFDI33"
	SchemaRetenciones20 Schema = "RET20"
	SchemaRetenciones10 Schema = "RET10"
	SchemaUnknown       Schema = "UNKNOWN"
)

// DocumentKind distinguishes invoices from withholding receipts
type DocumentKind string

const (
	KindInvoice     DocumentKind = "invoice"
	KindWithholding DocumentKind = "withholding"
)

// Category is the side of the ledger an invoice lands on
type Category string

const (
	CategoryIncome  Category = "income"
	CategoryExpense Category = "expense"
)

// FiscalDocument is a parsed CFDI invoice
type FiscalDocument struct {
	// Fiscal stamp UUID, empty when the document carries no stamp
	ID string `json:"id"`

	// Header
	IssueDate     *time.Time `json:"issue_date,omitempty"`
	RawDate       string     `json:"raw_date,omitempty"`
	Series        string     `json:"series,omitempty"`
	Folio         string     `json:"folio,omitempty"`
	Schema        Schema     `json:"schema"`
	PaymentMethod string     `json:"payment_method,omitempty"` // PUE, PPD
	PaymentForm   string     `json:"payment_form,omitempty"`   // 01, 03, 99...
	UsageCode     string     `json:"usage_code,omitempty"`     // G03, D01...

	// Parties
	IssuerRFC    string `json:"issuer_rfc"`
	IssuerName   string `json:"issuer_name,omitempty"`
	ReceiverRFC  string `json:"receiver_rfc"`
	ReceiverName string `json:"receiver_name,omitempty"`

	// Totals
	Subtotal  decimal.Decimal `json:"subtotal"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`

	// Derived from IssueDate; zero when the date could not be read
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`

	StampedAt  *time.Time `json:"stamped_at,omitempty"`
	SourcePath string     `json:"source_path"`
}

// HasPeriod reports whether the document has a usable year and month
func (d FiscalDocument) HasPeriod() bool {
	return d.Year > 0 && d.Month >= 1 && d.Month <= 12
}

// WithholdingDocument is a parsed retenciones receipt
type WithholdingDocument struct {
	ID            string     `json:"id"`
	Folio         string     `json:"folio,omitempty"`
	IssueDate     *time.Time `json:"issue_date,omitempty"`
	RetentionCode string     `json:"retention_code,omitempty"`
	Schema        Schema     `json:"schema"`

	PeriodStartMonth int `json:"period_start_month"`
	PeriodEndMonth   int `json:"period_end_month"`
	FiscalYear       int `json:"fiscal_year"`

	IssuerRFC    string `json:"issuer_rfc"`
	IssuerName   string `json:"issuer_name,omitempty"`
	ReceiverRFC  string `json:"receiver_rfc"`
	ReceiverName string `json:"receiver_name,omitempty"`

	TotalOperationAmount decimal.Decimal `json:"total_operation_amount"`
	TotalTaxableAmount   decimal.Decimal `json:"total_taxable_amount"`
	TotalWithheldAmount  decimal.Decimal `json:"total_withheld_amount"`
	ISRWithheld          decimal.Decimal `json:"isr_withheld"`
	VATWithheld          decimal.Decimal `json:"vat_withheld"`

	// Optional digital-platform service detail
	ServiceDate       *time.Time      `json:"service_date,omitempty"`
	ServicePriceExVAT decimal.Decimal `json:"service_price_ex_vat"`
	ServiceType       string          `json:"service_type,omitempty"`

	StampedAt  *time.Time `json:"stamped_at,omitempty"`
	SourcePath string     `json:"source_path"`
}

// ClassifiedDocument pairs an invoice with its ledger side
type ClassifiedDocument struct {
	Document FiscalDocument `json:"document"`
	Category Category       `json:"category"`
}
