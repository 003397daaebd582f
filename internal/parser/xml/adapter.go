package xml

import (
	"bytes"
	"context"
	"io"

	"github.com/rezonia/cedula-processor/internal/model"
)

// Parsed is the outcome of parsing one XML document. Exactly one of
// Invoice and Withholding is set, according to Kind.
type Parsed struct {
	Kind        model.DocumentKind
	Schema      model.Schema
	Invoice     *model.FiscalDocument
	Withholding *model.WithholdingDocument

	// Non-fatal problems found while reading the document
	Warnings []string
}

// Adapter parses one family of SAT XML documents
type Adapter interface {
	// Parse parses XML content; sourcePath is recorded on the result
	Parse(ctx context.Context, r io.Reader, sourcePath string) (*Parsed, error)

	// CanParse returns true if adapter can handle this content
	CanParse(content []byte) bool

	// Kind returns the document kind produced by the adapter
	Kind() model.DocumentKind
}

// Registry holds all registered adapters
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates registry with all adapters
func NewRegistry() *Registry {
	return &Registry{
		adapters: []Adapter{
			NewWithholdingAdapter(), // <retenciones:Retenciones>
			NewInvoiceAdapter(),     // <cfdi:Comprobante>
		},
	}
}

// Detect identifies the document family from XML content
func (r *Registry) Detect(content []byte) (Adapter, error) {
	for _, a := range r.adapters {
		if a.CanParse(content) {
			return a, nil
		}
	}
	return nil, model.NewParseError(model.SchemaUnknown, "root", "unknown XML format, no matching adapter found", nil)
}

// Parse parses XML using appropriate adapter
func (r *Registry) Parse(ctx context.Context, content []byte, sourcePath string) (*Parsed, error) {
	adapter, err := r.Detect(content)
	if err != nil {
		return nil, err
	}
	return adapter.Parse(ctx, bytes.NewReader(content), sourcePath)
}

// RegisterAdapter adds a custom adapter to the registry
func (r *Registry) RegisterAdapter(a Adapter) {
	// Add at the beginning so custom adapters take priority
	r.adapters = append([]Adapter{a}, r.adapters...)
}
