package xml

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/cedula-processor/internal/model"
	"github.com/rezonia/cedula-processor/internal/stamp"
)

// Retenciones namespaces
const (
	Retenciones20Namespace = "http://www.sat.gob.mx/esquemas/retencionpago/2"
	Retenciones10Namespace = "http://www.sat.gob.mx/esquemas/retencionpago/1"
	PlatformsNamespace     = "http://www.sat.gob.mx/esquemas/retencionpago/1/PlataformasTecnologicas10"
)

var (
	isrWithholdingCodes = map[string]bool{ISRWithholdingCode: true, "01": true, "ISR": true}
	ivaWithholdingCodes = map[string]bool{IVAWithholdingCode: true, "02": true, "IVA": true}
)

// WithholdingAdapter parses Retenciones 2.0 and 1.0 receipts
type WithholdingAdapter struct {
	variants []variant
	stamps   *stamp.Extractor
}

// NewWithholdingAdapter creates a retenciones adapter. Version 2.0 is tried first.
func NewWithholdingAdapter() *WithholdingAdapter {
	return &WithholdingAdapter{
		variants: []variant{
			{schema: model.SchemaRetenciones20, namespace: Retenciones20Namespace},
			{schema: model.SchemaRetenciones10, namespace: Retenciones10Namespace},
		},
		stamps: stamp.NewExtractor(),
	}
}

func (a *WithholdingAdapter) Kind() model.DocumentKind {
	return model.KindWithholding
}

func (a *WithholdingAdapter) CanParse(content []byte) bool {
	if !bytes.Contains(content, []byte("Retenciones")) {
		return false
	}
	return bytes.Contains(content, []byte(Retenciones20Namespace)) ||
		bytes.Contains(content, []byte(Retenciones10Namespace))
}

func (a *WithholdingAdapter) Parse(ctx context.Context, r io.Reader, sourcePath string) (*Parsed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, model.NewParseError(model.SchemaUnknown, "xml", "failed to read XML", err)
	}

	root, v := a.locate(doc.Root())
	if root == nil {
		return nil, model.NewParseError(model.SchemaUnknown, "root", "no Retenciones element in a supported namespace", nil)
	}

	fr := &fieldReader{}
	w := a.convert(root, v, fr)
	w.SourcePath = sourcePath

	if s, err := a.stamps.Extract(root); err == nil {
		w.ID = s.UUID
		w.StampedAt = fr.optionalDate("FechaTimbrado", s.RawStampedAt)
	} else {
		fr.warnings = append(fr.warnings, err.Error())
	}

	return &Parsed{
		Kind:        model.KindWithholding,
		Schema:      v.schema,
		Withholding: w,
		Warnings:    fr.warnings,
	}, nil
}

func (a *WithholdingAdapter) locate(root *etree.Element) (*etree.Element, variant) {
	for _, v := range a.variants {
		if el := findRoot(root, v.namespace, "Retenciones"); el != nil {
			return el, v
		}
	}
	return nil, variant{schema: model.SchemaUnknown}
}

func (a *WithholdingAdapter) convert(root *etree.Element, v variant, fr *fieldReader) *model.WithholdingDocument {
	ns := v.namespace
	issuer := descendant(root, ns, "Emisor")
	receiver := descendant(root, ns, "Nacional")
	if receiver == nil {
		receiver = descendant(root, ns, "Extranjero")
	}
	period := descendant(root, ns, "Periodo")
	totals := descendant(root, ns, "Totales")

	w := &model.WithholdingDocument{
		Schema:               v.schema,
		Folio:                attr(root, "FolioInt"),
		IssueDate:            fr.optionalDate("FechaExp", attr(root, "FechaExp")),
		RetentionCode:        attr(root, "CveRetenc"),
		IssuerRFC:            strings.ToUpper(attr(issuer, "RfcE", "RFCEmisor")),
		IssuerName:           attr(issuer, "NomDenRazSocE"),
		ReceiverRFC:          strings.ToUpper(attr(receiver, "RfcR", "RFCRecep")),
		ReceiverName:         attr(receiver, "NomDenRazSocR"),
		PeriodStartMonth:     fr.month(period, "MesIni"),
		PeriodEndMonth:       fr.month(period, "MesFin"),
		FiscalYear:           fr.year(period, "Ejercicio", "Ejerc"),
		TotalOperationAmount: fr.amount(totals, "MontoTotOperacion", "montoTotOperacion"),
		TotalTaxableAmount:   fr.amount(totals, "MontoTotGrav", "montoTotGrav"),
		TotalWithheldAmount:  fr.amount(totals, "MontoTotRet", "montoTotRet"),
	}

	// ISR and IVA are independent accumulators over every withheld line
	for _, line := range descendants(root, ns, "ImpRetenidos") {
		code := attr(line, "ImpuestoRet", "Impuesto")
		amount := fr.amount(line, "MontoRet", "montoRet")
		switch {
		case isrWithholdingCodes[code]:
			w.ISRWithheld = w.ISRWithheld.Add(amount)
		case ivaWithholdingCodes[code]:
			w.VATWithheld = w.VATWithheld.Add(amount)
		}
	}

	if svc := descendant(root, PlatformsNamespace, "DetallesDelServicio"); svc != nil {
		w.ServiceDate = fr.optionalDate("FechaServ", attr(svc, "FechaServ"))
		w.ServicePriceExVAT = fr.amount(svc, "PrecioServSinIVA")
		w.ServiceType = attr(svc, "TipoDeServ")
	}

	return w
}
