// Package report renders a computed cedula as a workbook or as a text
// stream.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rezonia/cedula-processor/internal/model"
)

// Sheet names written by WriteWorkbook
const (
	SheetISR          = "cedula_isr"
	SheetIVA          = "cedula_iva"
	SheetIncome       = "ingresos"
	SheetExpense      = "gastos"
	SheetWithholdings = "retenciones"
)

// MonthNames are the row labels of the monthly sheets
var MonthNames = [12]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

const totalLabel = "Total anual"

var isrHeader = []string{
	"Mes", "Ingresos", "Ingresos acumulados", "Deducciones", "Deducciones acumuladas",
	"Base gravable", "Límite inferior", "Excedente", "Tasa", "Impuesto marginal",
	"Cuota fija", "ISR causado", "ISR retenido", "ISR a pagar",
}

var ivaHeader = []string{
	"Mes", "IVA causado", "IVA acreditable", "IVA retenido", "Diferencia",
	"IVA a pagar", "Saldo a favor",
}

var invoiceHeader = []string{
	"UUID", "Fecha", "Serie", "Folio", "RFC emisor", "Nombre emisor",
	"RFC receptor", "Nombre receptor", "Subtotal", "IVA", "Total", "Moneda",
	"Método de pago", "Forma de pago", "Uso CFDI", "Archivo",
}

var withholdingHeader = []string{
	"UUID", "Fecha", "Clave retención", "Mes inicial", "Mes final", "Ejercicio",
	"RFC emisor", "Nombre emisor", "Monto operación", "Monto gravado",
	"Monto retenido", "ISR retenido", "IVA retenido", "Archivo",
}

// Details are the documents listed in the detail sheets
type Details struct {
	Documents    []model.ClassifiedDocument
	Withholdings []model.WithholdingDocument
}

// WriteWorkbook writes the cedula sheets into the workbook at path. Sheets
// it does not own are kept when the file already exists; its own sheets are
// replaced. The workbook is saved to a temporary file and renamed, so a
// failed write leaves any previous file untouched.
func WriteWorkbook(path string, c *model.Cedula, details Details) error {
	f, fresh, err := openOrCreate(path)
	if err != nil {
		return &model.OutputWriteError{Path: path, Cause: err}
	}
	defer f.Close()

	w := &sheetWriter{f: f}
	if err := w.init(); err != nil {
		return &model.OutputWriteError{Path: path, Cause: err}
	}

	steps := []struct {
		sheet string
		fill  func(string) error
	}{
		{SheetISR, func(s string) error { return w.writeISR(s, c) }},
		{SheetIVA, func(s string) error { return w.writeIVA(s, c) }},
		{SheetIncome, func(s string) error { return w.writeInvoices(s, details.Documents, model.CategoryIncome) }},
		{SheetExpense, func(s string) error { return w.writeInvoices(s, details.Documents, model.CategoryExpense) }},
		{SheetWithholdings, func(s string) error { return w.writeWithholdings(s, details.Withholdings) }},
	}

	for _, step := range steps {
		if err := w.replaceSheet(step.sheet); err != nil {
			return &model.OutputWriteError{Path: path, Cause: err}
		}
		if err := step.fill(step.sheet); err != nil {
			return &model.OutputWriteError{Path: path, Cause: fmt.Errorf("sheet %s: %w", step.sheet, err)}
		}
	}

	if fresh {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return &model.OutputWriteError{Path: path, Cause: err}
		}
	}
	if idx, err := f.GetSheetIndex(SheetISR); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := saveAtomic(f, path); err != nil {
		return &model.OutputWriteError{Path: path, Cause: err}
	}
	return nil
}

func openOrCreate(path string) (*excelize.File, bool, error) {
	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("open existing workbook: %w", err)
		}
		return f, false, nil
	}
	return excelize.NewFile(), true, nil
}

func saveAtomic(f *excelize.File, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

type sheetWriter struct {
	f      *excelize.File
	header int
	money  int
	rate   int
	total  int
}

func (w *sheetWriter) init() error {
	var err error
	if w.header, err = w.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
	}); err != nil {
		return err
	}
	if w.money, err = w.f.NewStyle(&excelize.Style{NumFmt: 4}); err != nil {
		return err
	}
	if w.rate, err = w.f.NewStyle(&excelize.Style{NumFmt: 10}); err != nil {
		return err
	}
	w.total, err = w.f.NewStyle(&excelize.Style{NumFmt: 4, Font: &excelize.Font{Bold: true}})
	return err
}

// replaceSheet leaves an empty sheet named name. An existing sheet is
// renamed aside first so the workbook never runs out of sheets.
func (w *sheetWriter) replaceSheet(name string) error {
	idx, err := w.f.GetSheetIndex(name)
	if err != nil {
		return err
	}
	if idx >= 0 {
		old := name + "_old"
		if err := w.f.SetSheetName(name, old); err != nil {
			return err
		}
		if _, err := w.f.NewSheet(name); err != nil {
			return err
		}
		return w.f.DeleteSheet(old)
	}
	_, err = w.f.NewSheet(name)
	return err
}

func (w *sheetWriter) writeHeader(sheet string, header []string) error {
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := w.f.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(sheet, "A1", last+"1", w.header); err != nil {
		return err
	}
	if err := w.f.SetColWidth(sheet, "A", last, 16); err != nil {
		return err
	}
	return w.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (w *sheetWriter) writeRow(sheet string, rowNum int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(sheet, cell, &values)
}

// styleColumns applies style to columns [from, to] (1-based) of rows [top, bottom]
func (w *sheetWriter) styleColumns(sheet string, from, to, top, bottom, style int) error {
	if bottom < top {
		return nil
	}
	start, err := excelize.CoordinatesToCellName(from, top)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(to, bottom)
	if err != nil {
		return err
	}
	return w.f.SetCellStyle(sheet, start, end, style)
}

func (w *sheetWriter) autoFilter(sheet string, cols, rows int) error {
	if rows < 2 {
		return nil
	}
	end, err := excelize.CoordinatesToCellName(cols, rows)
	if err != nil {
		return err
	}
	return w.f.AutoFilter(sheet, "A1:"+end, nil)
}

func (w *sheetWriter) writeISR(sheet string, c *model.Cedula) error {
	if err := w.writeHeader(sheet, isrHeader); err != nil {
		return err
	}

	for i, r := range c.Rows {
		l := r.ISR
		if err := w.writeRow(sheet, i+2, []interface{}{
			monthName(r.Month),
			num(l.TaxableIncome), num(l.CumulativeIncome),
			num(l.Deductions), num(l.CumulativeDeductions),
			num(l.TaxableBase), num(l.LowerBound), num(l.ExcessOverLower),
			num(l.Rate), num(l.MarginalTax), num(l.FixedQuota),
			num(l.GrossISR), num(l.ISRWithheld), num(l.ISRPayable),
		}); err != nil {
			return err
		}
	}

	totalRow := len(c.Rows) + 2
	a := c.Annual
	if err := w.writeRow(sheet, totalRow, []interface{}{
		totalLabel,
		num(a.Income), nil, num(a.Deductions), nil,
		num(a.Income.Sub(a.Deductions)), nil, nil, nil, nil, nil,
		num(a.GrossISR), num(a.ISRWithheld), num(a.ISRPayable),
	}); err != nil {
		return err
	}

	n := len(isrHeader)
	if err := w.styleColumns(sheet, 2, n, 2, totalRow-1, w.money); err != nil {
		return err
	}
	if err := w.styleColumns(sheet, 9, 9, 2, totalRow-1, w.rate); err != nil {
		return err
	}
	return w.styleColumns(sheet, 1, n, totalRow, totalRow, w.total)
}

func (w *sheetWriter) writeIVA(sheet string, c *model.Cedula) error {
	if err := w.writeHeader(sheet, ivaHeader); err != nil {
		return err
	}

	for i, r := range c.Rows {
		l := r.IVA
		if err := w.writeRow(sheet, i+2, []interface{}{
			monthName(r.Month),
			num(l.VATCaused), num(l.VATCreditable), num(l.VATWithheld),
			num(l.NetDifference), num(l.VATPayable), num(l.VATCreditBalance),
		}); err != nil {
			return err
		}
	}

	totalRow := len(c.Rows) + 2
	a := c.Annual
	if err := w.writeRow(sheet, totalRow, []interface{}{
		totalLabel,
		num(a.VATCaused), num(a.VATCreditable), num(a.VATWithheld),
		num(a.NetDifference), num(a.VATPayable), num(a.VATCreditBalance),
	}); err != nil {
		return err
	}

	n := len(ivaHeader)
	if err := w.styleColumns(sheet, 2, n, 2, totalRow-1, w.money); err != nil {
		return err
	}
	return w.styleColumns(sheet, 1, n, totalRow, totalRow, w.total)
}

func (w *sheetWriter) writeInvoices(sheet string, docs []model.ClassifiedDocument, category model.Category) error {
	if err := w.writeHeader(sheet, invoiceHeader); err != nil {
		return err
	}

	selected := make([]model.FiscalDocument, 0, len(docs))
	for _, cd := range docs {
		if cd.Category == category {
			selected = append(selected, cd.Document)
		}
	}
	SortDocuments(selected)

	for i, d := range selected {
		if err := w.writeRow(sheet, i+2, []interface{}{
			d.ID, formatDate(d.IssueDate), d.Series, d.Folio,
			d.IssuerRFC, d.IssuerName, d.ReceiverRFC, d.ReceiverName,
			num(d.Subtotal), num(d.VATAmount), num(d.Total), d.Currency,
			d.PaymentMethod, d.PaymentForm, d.UsageCode, d.SourcePath,
		}); err != nil {
			return err
		}
	}

	last := len(selected) + 1
	if err := w.styleColumns(sheet, 9, 11, 2, last, w.money); err != nil {
		return err
	}
	return w.autoFilter(sheet, len(invoiceHeader), last)
}

func (w *sheetWriter) writeWithholdings(sheet string, docs []model.WithholdingDocument) error {
	if err := w.writeHeader(sheet, withholdingHeader); err != nil {
		return err
	}

	sorted := append([]model.WithholdingDocument(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FiscalYear != sorted[j].FiscalYear {
			return sorted[i].FiscalYear < sorted[j].FiscalYear
		}
		if sorted[i].PeriodStartMonth != sorted[j].PeriodStartMonth {
			return sorted[i].PeriodStartMonth < sorted[j].PeriodStartMonth
		}
		return sorted[i].Folio < sorted[j].Folio
	})

	for i, d := range sorted {
		if err := w.writeRow(sheet, i+2, []interface{}{
			d.ID, formatDate(d.IssueDate), d.RetentionCode,
			d.PeriodStartMonth, d.PeriodEndMonth, d.FiscalYear,
			d.IssuerRFC, d.IssuerName,
			num(d.TotalOperationAmount), num(d.TotalTaxableAmount), num(d.TotalWithheldAmount),
			num(d.ISRWithheld), num(d.VATWithheld), d.SourcePath,
		}); err != nil {
			return err
		}
	}

	last := len(sorted) + 1
	if err := w.styleColumns(sheet, 9, 13, 2, last, w.money); err != nil {
		return err
	}
	return w.autoFilter(sheet, len(withholdingHeader), last)
}

// SortDocuments orders invoices by issue date, then series, then folio.
// Undated documents go last.
func SortDocuments(docs []model.FiscalDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		switch {
		case a.IssueDate == nil && b.IssueDate != nil:
			return false
		case a.IssueDate != nil && b.IssueDate == nil:
			return true
		case a.IssueDate != nil && !a.IssueDate.Equal(*b.IssueDate):
			return a.IssueDate.Before(*b.IssueDate)
		}
		if a.Series != b.Series {
			return a.Series < b.Series
		}
		return folioLess(a.Folio, b.Folio)
	})
}

// folioLess compares numeric folios by value and the rest as text
func folioLess(a, b string) bool {
	na, errA := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	nb, errB := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if errA == nil && errB == nil && na != nb {
		return na < nb
	}
	return a < b
}

func monthName(m int) string {
	if m >= 1 && m <= 12 {
		return MonthNames[m-1]
	}
	return fmt.Sprintf("%d", m)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
