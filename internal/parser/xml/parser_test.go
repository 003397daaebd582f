package xml_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/cedula-processor/internal/model"
	xmlparser "github.com/rezonia/cedula-processor/internal/parser/xml"
)

func TestRegistry_NewRegistry(t *testing.T) {
	registry := xmlparser.NewRegistry()
	require.NotNil(t, registry)

	for kind, file := range map[model.DocumentKind]string{
		model.KindInvoice:     "cfdi40_ingreso.xml",
		model.KindWithholding: "retenciones20.xml",
	} {
		adapter, err := registry.Detect(readTestFile(t, file))
		require.NoError(t, err, "adapter for %s should exist", kind)
		assert.Equal(t, kind, adapter.Kind())
	}
}

func TestRegistry_Detect(t *testing.T) {
	registry := xmlparser.NewRegistry()

	tests := []struct {
		name     string
		file     string
		expected model.DocumentKind
	}{
		{"CFDI 4.0", "cfdi40_ingreso.xml", model.KindInvoice},
		{"CFDI 3.3", "cfdi33_gasto.xml", model.KindInvoice},
		{"Retenciones 2.0", "retenciones20.xml", model.KindWithholding},
		{"Retenciones 1.0", "retenciones10.xml", model.KindWithholding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := registry.Detect(readTestFile(t, tt.file))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, adapter.Kind())
		})
	}
}

func TestRegistry_Detect_UnknownFormat(t *testing.T) {
	registry := xmlparser.NewRegistry()
	_, err := registry.Detect([]byte(`<UnknownFormat>data</UnknownFormat>`))
	require.Error(t, err)

	var parseErr *model.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, model.SchemaUnknown, parseErr.Schema)
	assert.Equal(t, "root", parseErr.Field)
}

func TestRegistry_RegisterAdapter(t *testing.T) {
	registry := xmlparser.NewRegistry()

	custom := &mockAdapter{kind: model.KindInvoice}
	registry.RegisterAdapter(custom)

	// Custom adapter should take priority
	adapter, err := registry.Detect(readTestFile(t, "cfdi40_ingreso.xml"))
	require.NoError(t, err)
	assert.Equal(t, custom, adapter)
}

type mockAdapter struct {
	kind model.DocumentKind
}

func (m *mockAdapter) Parse(ctx context.Context, r io.Reader, sourcePath string) (*xmlparser.Parsed, error) {
	return nil, nil
}
func (m *mockAdapter) CanParse(content []byte) bool { return true }
func (m *mockAdapter) Kind() model.DocumentKind     { return m.kind }

func TestInvoiceAdapter_ParseCFDI40(t *testing.T) {
	parsed := parseFile(t, "cfdi40_ingreso.xml")

	require.Equal(t, model.KindInvoice, parsed.Kind)
	assert.Equal(t, model.SchemaCFDI40, parsed.Schema)
	assert.Empty(t, parsed.Warnings)

	inv := parsed.Invoice
	require.NotNil(t, inv)
	assert.Equal(t, "6F1B2C3D-4E5F-4A6B-8C7D-9E0F1A2B3C4D", inv.ID)
	assert.Equal(t, "A", inv.Series)
	assert.Equal(t, "1024", inv.Folio)
	assert.Equal(t, "GOMA800101AB1", inv.IssuerRFC)
	assert.Equal(t, "ANA GOMEZ MARTINEZ", inv.IssuerName)
	assert.Equal(t, "EKU9003173C9", inv.ReceiverRFC)
	assert.Equal(t, "G03", inv.UsageCode)
	assert.Equal(t, "PUE", inv.PaymentMethod)
	assert.Equal(t, "03", inv.PaymentForm)
	assert.Equal(t, "MXN", inv.Currency)
	assert.Equal(t, 2024, inv.Year)
	assert.Equal(t, 3, inv.Month)
	require.NotNil(t, inv.IssueDate)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC), *inv.IssueDate)
	require.NotNil(t, inv.StampedAt)

	// Concept-level transfer is not counted twice
	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(10000)))
	assert.True(t, inv.VATAmount.Equal(decimal.NewFromInt(1600)), "got %s", inv.VATAmount)
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(11600)))
	assert.Equal(t, "testdata/cfdi40_ingreso.xml", inv.SourcePath)
}

func TestInvoiceAdapter_ParseCFDI33Aliases(t *testing.T) {
	parsed := parseFile(t, "cfdi33_gasto.xml")

	assert.Equal(t, model.SchemaCFDI33, parsed.Schema)
	inv := parsed.Invoice
	require.NotNil(t, inv)

	// RFC / Subtotal / MetodoDePago spellings, legacy IVA code
	assert.Equal(t, "OFI920113KZ8", inv.IssuerRFC)
	assert.Equal(t, "GOMA800101AB1", inv.ReceiverRFC)
	assert.Equal(t, "PUE", inv.PaymentMethod)
	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(500)))
	assert.True(t, inv.VATAmount.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, "MXN", inv.Currency, "currency defaults to MXN")
	assert.Equal(t, 2021, inv.Year)
	assert.Equal(t, 11, inv.Month)
}

func TestInvoiceAdapter_SplitTransferLines(t *testing.T) {
	parsed := parseFile(t, "cfdi40_traslados_divididos.xml")

	// 80 + 48 for code 002; IEPS (003) and the exempt line contribute nothing
	assert.True(t, parsed.Invoice.VATAmount.Equal(decimal.NewFromInt(128)), "got %s", parsed.Invoice.VATAmount)
}

func TestInvoiceAdapter_UnparseableDate(t *testing.T) {
	content := []byte(`<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Fecha="15/03/2024" SubTotal="100" Total="116">
	<cfdi:Emisor Rfc="AAA010101AAA"/>
	<cfdi:Receptor Rfc="BBB010101BBB"/>
</cfdi:Comprobante>`)

	parsed, err := xmlparser.NewInvoiceAdapter().Parse(context.Background(), bytes.NewReader(content), "x.xml")
	require.NoError(t, err)

	inv := parsed.Invoice
	assert.Nil(t, inv.IssueDate)
	assert.Equal(t, "15/03/2024", inv.RawDate)
	assert.Equal(t, 0, inv.Year)
	assert.Equal(t, 0, inv.Month)
	assert.False(t, inv.HasPeriod())
	assert.Empty(t, inv.ID)
	assert.NotEmpty(t, parsed.Warnings)
}

func TestInvoiceAdapter_InvalidAmount(t *testing.T) {
	content := []byte(`<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Fecha="2024-01-02" SubTotal="abc" Total="116">
	<cfdi:Emisor Rfc="AAA010101AAA"/>
</cfdi:Comprobante>`)

	parsed, err := xmlparser.NewInvoiceAdapter().Parse(context.Background(), bytes.NewReader(content), "x.xml")
	require.NoError(t, err)
	assert.True(t, parsed.Invoice.Subtotal.IsZero())
	assert.True(t, parsed.Invoice.Total.Equal(decimal.NewFromInt(116)))

	found := false
	for _, w := range parsed.Warnings {
		if bytes.Contains([]byte(w), []byte("SubTotal")) {
			found = true
		}
	}
	assert.True(t, found, "expected a SubTotal warning in %v", parsed.Warnings)
}

func TestInvoiceAdapter_NegativeAmount(t *testing.T) {
	content := []byte(`<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Fecha="2024-03-15T10:00:00" SubTotal="-1000.00" Total="-1160.00">
	<cfdi:Emisor Rfc="AAA010101AAA"/>
	<cfdi:Receptor Rfc="BBB010101BBB"/>
	<cfdi:Impuestos>
		<cfdi:Traslados>
			<cfdi:Traslado Base="1000.00" Impuesto="002" TipoFactor="Tasa" TasaOCuota="0.160000" Importe="-160.00"/>
			<cfdi:Traslado Base="500.00" Impuesto="002" TipoFactor="Tasa" TasaOCuota="0.160000" Importe="80.00"/>
		</cfdi:Traslados>
	</cfdi:Impuestos>
</cfdi:Comprobante>`)

	parsed, err := xmlparser.NewInvoiceAdapter().Parse(context.Background(), bytes.NewReader(content), "x.xml")
	require.NoError(t, err)

	inv := parsed.Invoice
	assert.True(t, inv.Subtotal.IsZero(), "got %s", inv.Subtotal)
	assert.True(t, inv.Total.IsZero(), "got %s", inv.Total)
	assert.True(t, inv.VATAmount.Equal(decimal.NewFromInt(80)), "got %s", inv.VATAmount)

	negatives := 0
	for _, w := range parsed.Warnings {
		if bytes.Contains([]byte(w), []byte("negative amount")) {
			negatives++
		}
	}
	assert.Equal(t, 3, negatives, "warnings: %v", parsed.Warnings)
}

func TestWithholdingAdapter_NegativeAmount(t *testing.T) {
	content := bytes.Replace(readTestFile(t, "retenciones20.xml"), []byte(`MontoTotRet="250.00"`), []byte(`MontoTotRet="-250.00"`), 1)

	parsed, err := xmlparser.NewWithholdingAdapter().Parse(context.Background(), bytes.NewReader(content), "r.xml")
	require.NoError(t, err)
	assert.True(t, parsed.Withholding.TotalWithheldAmount.IsZero())
	assert.True(t, parsed.Withholding.ISRWithheld.Equal(decimal.NewFromInt(125)))
}

func TestInvoiceAdapter_MissingRoot(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{
			name:    "foreign namespace",
			content: `<cfdi:Comprobante xmlns:cfdi="http://example.com/other"/>`,
			field:   "root",
		},
		{
			name:    "malformed",
			content: `<cfdi:Comprobante><Unclosed>`,
			field:   "xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := xmlparser.NewInvoiceAdapter().Parse(context.Background(), bytes.NewReader([]byte(tt.content)), "x.xml")
			require.Error(t, err)

			var parseErr *model.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.field, parseErr.Field)
		})
	}
}

func TestInvoiceAdapter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := xmlparser.NewInvoiceAdapter().Parse(ctx, bytes.NewReader(readTestFile(t, "cfdi40_ingreso.xml")), "x.xml")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithholdingAdapter_ParseV2(t *testing.T) {
	parsed := parseFile(t, "retenciones20.xml")

	require.Equal(t, model.KindWithholding, parsed.Kind)
	assert.Equal(t, model.SchemaRetenciones20, parsed.Schema)

	w := parsed.Withholding
	require.NotNil(t, w)
	assert.Equal(t, "33333333-4444-4555-8666-777777777777", w.ID)
	assert.Equal(t, "R-2024-02", w.Folio)
	assert.Equal(t, "26", w.RetentionCode)
	assert.Equal(t, "UBE1306125I2", w.IssuerRFC)
	assert.Equal(t, "UBER MEXICO TECHNOLOGY", w.IssuerName)
	assert.Equal(t, "GOMA800101AB1", w.ReceiverRFC)
	assert.Equal(t, 2, w.PeriodStartMonth)
	assert.Equal(t, 2, w.PeriodEndMonth)
	assert.Equal(t, 2024, w.FiscalYear)
	assert.True(t, w.TotalOperationAmount.Equal(decimal.NewFromInt(5000)))
	assert.True(t, w.TotalTaxableAmount.Equal(decimal.NewFromInt(5000)))
	assert.True(t, w.TotalWithheldAmount.Equal(decimal.NewFromInt(250)))

	// ISR lines accumulate independently of IVA lines
	assert.True(t, w.ISRWithheld.Equal(decimal.NewFromInt(125)), "got %s", w.ISRWithheld)
	assert.True(t, w.VATWithheld.Equal(decimal.NewFromInt(125)), "got %s", w.VATWithheld)

	require.NotNil(t, w.ServiceDate)
	assert.Equal(t, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), *w.ServiceDate)
	assert.True(t, w.ServicePriceExVAT.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "01", w.ServiceType)
}

func TestWithholdingAdapter_ParseV1(t *testing.T) {
	parsed := parseFile(t, "retenciones10.xml")

	assert.Equal(t, model.SchemaRetenciones10, parsed.Schema)
	w := parsed.Withholding
	require.NotNil(t, w)
	assert.Equal(t, "BAN010101AA1", w.IssuerRFC)
	assert.Equal(t, "GOMA800101AB1", w.ReceiverRFC)
	assert.Equal(t, 6, w.PeriodStartMonth)
	assert.Equal(t, 2019, w.FiscalYear)
	assert.True(t, w.ISRWithheld.Equal(decimal.NewFromInt(80)))
	assert.True(t, w.VATWithheld.Equal(decimal.NewFromInt(16)))
	require.NotNil(t, w.IssueDate)
}

func TestWithholdingAdapter_NoServiceDetail(t *testing.T) {
	content := []byte(`<retenciones:Retenciones xmlns:retenciones="http://www.sat.gob.mx/esquemas/retencionpago/2" FolioInt="1">
	<retenciones:Periodo MesIni="1" MesFin="1" Ejercicio="2024"/>
	<retenciones:Totales MontoTotOperacion="10" MontoTotGrav="10" MontoTotRet="0"/>
</retenciones:Retenciones>`)

	parsed, err := xmlparser.NewWithholdingAdapter().Parse(context.Background(), bytes.NewReader(content), "r.xml")
	require.NoError(t, err)

	w := parsed.Withholding
	assert.Nil(t, w.ServiceDate)
	assert.True(t, w.ServicePriceExVAT.IsZero())
	assert.Empty(t, w.ServiceType)
	assert.True(t, w.ISRWithheld.IsZero())
	assert.True(t, w.VATWithheld.IsZero())
	assert.Empty(t, w.ID)
}

func TestRegistry_Parse(t *testing.T) {
	registry := xmlparser.NewRegistry()

	parsed, err := registry.Parse(context.Background(), readTestFile(t, "retenciones20.xml"), "r.xml")
	require.NoError(t, err)
	assert.Equal(t, model.KindWithholding, parsed.Kind)
	assert.Equal(t, "r.xml", parsed.Withholding.SourcePath)

	parsed, err = registry.Parse(context.Background(), readTestFile(t, "cfdi33_gasto.xml"), "g.xml")
	require.NoError(t, err)
	assert.Equal(t, model.KindInvoice, parsed.Kind)
}

func TestDateParsing(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		expected time.Time
	}{
		{"seconds", "2024-03-15T10:20:30", time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC)},
		{"zulu", "2024-03-15T10:20:30Z", time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC)},
		{"fraction", "2024-03-15T10:20:30.123", time.Date(2024, 3, 15, 10, 20, 30, 123000000, time.UTC)},
		{"date only", "2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := []byte(`<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Fecha="` + tt.date + `" SubTotal="1" Total="1"/>`)
			parsed, err := xmlparser.NewInvoiceAdapter().Parse(context.Background(), bytes.NewReader(content), "d.xml")
			require.NoError(t, err)
			require.NotNil(t, parsed.Invoice.IssueDate)
			assert.True(t, tt.expected.Equal(*parsed.Invoice.IssueDate), "got %s", parsed.Invoice.IssueDate)
		})
	}
}

// Helper functions

func readTestFile(t *testing.T, filename string) []byte {
	t.Helper()
	path := filepath.Join("testdata", filename)
	content, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read test file: %s", filename)
	return content
}

func parseFile(t *testing.T, filename string) *xmlparser.Parsed {
	t.Helper()
	parsed, err := xmlparser.NewRegistry().Parse(context.Background(), readTestFile(t, filename), filepath.Join("testdata", filename))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	return parsed
}
