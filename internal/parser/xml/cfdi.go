package xml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	moneyutil "github.com/rezonia/cedula-processor/internal/decimal"
	"github.com/rezonia/cedula-processor/internal/model"
	"github.com/rezonia/cedula-processor/internal/stamp"
)

// CFDI namespaces
const (
	CFDI40Namespace = "http://www.sat.gob.mx/cfd/4"
	CFDI33Namespace = "http://www.sat.gob.mx/cfd/3"
)

// Fixed SAT tax codes
const (
	IVATransferCode    = "002"
	ISRWithholdingCode = "001"
	IVAWithholdingCode = "002"
)

// vatTransferCodes are the Impuesto values counted as IVA on transfer
// lines, including legacy spellings still found in old 3.3 files
var vatTransferCodes = map[string]bool{
	IVATransferCode: true,
	"IVA":           true,
	"002.0":         true,
}

// InvoiceAdapter parses CFDI 4.0 and 3.3 invoices
type InvoiceAdapter struct {
	variants []variant
	stamps   *stamp.Extractor
}

// NewInvoiceAdapter creates a CFDI adapter. CFDI 4.0 is tried first.
func NewInvoiceAdapter() *InvoiceAdapter {
	return &InvoiceAdapter{
		variants: []variant{
			{schema: model.SchemaCFDI40, namespace: CFDI40Namespace},
			{schema: model.SchemaCFDI33, namespace: CFDI33Namespace},
		},
		stamps: stamp.NewExtractor(),
	}
}

func (a *InvoiceAdapter) Kind() model.DocumentKind {
	return model.KindInvoice
}

func (a *InvoiceAdapter) CanParse(content []byte) bool {
	if !bytes.Contains(content, []byte("Comprobante")) {
		return false
	}
	return bytes.Contains(content, []byte(CFDI40Namespace)) ||
		bytes.Contains(content, []byte(CFDI33Namespace))
}

func (a *InvoiceAdapter) Parse(ctx context.Context, r io.Reader, sourcePath string) (*Parsed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, model.NewParseError(model.SchemaUnknown, "xml", "failed to read XML", err)
	}

	comp, v := a.locate(doc.Root())
	if comp == nil {
		return nil, model.NewParseError(model.SchemaUnknown, "root", "no Comprobante element in a supported CFDI namespace", nil)
	}

	fr := &fieldReader{}
	inv := a.convert(comp, v, fr)
	inv.SourcePath = sourcePath

	if s, err := a.stamps.Extract(comp); err == nil {
		inv.ID = s.UUID
		inv.StampedAt = fr.optionalDate("FechaTimbrado", s.RawStampedAt)
	} else {
		fr.warnings = append(fr.warnings, err.Error())
	}

	return &Parsed{
		Kind:     model.KindInvoice,
		Schema:   v.schema,
		Invoice:  inv,
		Warnings: fr.warnings,
	}, nil
}

// locate finds the Comprobante, trying each namespace variant in order
func (a *InvoiceAdapter) locate(root *etree.Element) (*etree.Element, variant) {
	for _, v := range a.variants {
		if comp := findRoot(root, v.namespace, "Comprobante"); comp != nil {
			return comp, v
		}
	}
	return nil, variant{schema: model.SchemaUnknown}
}

func (a *InvoiceAdapter) convert(comp *etree.Element, v variant, fr *fieldReader) *model.FiscalDocument {
	ns := v.namespace
	issuer := child(comp, ns, "Emisor")
	receiver := child(comp, ns, "Receptor")

	inv := &model.FiscalDocument{
		Schema:        v.schema,
		RawDate:       attr(comp, "Fecha", "fecha"),
		Series:        attr(comp, "Serie", "serie"),
		Folio:         attr(comp, "Folio", "folio"),
		PaymentMethod: attr(comp, "MetodoPago", "MetodoDePago", "metodoDePago"),
		PaymentForm:   attr(comp, "FormaPago", "formaDePago"),
		Currency:      attr(comp, "Moneda", "moneda"),
		IssuerRFC:     strings.ToUpper(attr(issuer, "Rfc", "RFC", "rfc")),
		IssuerName:    attr(issuer, "Nombre", "nombre"),
		ReceiverRFC:   strings.ToUpper(attr(receiver, "Rfc", "RFC", "rfc")),
		ReceiverName:  attr(receiver, "Nombre", "nombre"),
		UsageCode:     attr(receiver, "UsoCFDI"),
		Subtotal:      fr.amount(comp, "SubTotal", "Subtotal", "subTotal"),
		Total:         fr.amount(comp, "Total", "total"),
		VATAmount:     a.transferredVAT(comp, ns, fr),
	}
	if inv.Currency == "" {
		inv.Currency = "MXN"
	}

	if inv.RawDate != "" {
		if t, err := parseDate(inv.RawDate); err == nil {
			inv.IssueDate = &t
			inv.Year = t.Year()
			inv.Month = int(t.Month())
		} else {
			fr.warnings = append(fr.warnings, fmt.Sprintf("field Fecha: %v, document excluded from monthly totals", err))
		}
	} else {
		fr.warnings = append(fr.warnings, "field Fecha: missing, document excluded from monthly totals")
	}

	return inv
}

// transferredVAT sums every Comprobante-level IVA transfer line. Concept
// level taxes are ignored since the summary block repeats them.
func (a *InvoiceAdapter) transferredVAT(comp *etree.Element, ns string, fr *fieldReader) decimal.Decimal {
	total := moneyutil.Zero
	taxes := child(comp, ns, "Impuestos")
	for _, group := range children(taxes, ns, "Traslados") {
		for _, line := range children(group, ns, "Traslado") {
			if !vatTransferCodes[attr(line, "Impuesto", "impuesto")] {
				continue
			}
			total = total.Add(fr.amount(line, "Importe", "importe"))
		}
	}
	return total
}
