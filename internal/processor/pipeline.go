package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/rezonia/cedula-processor/internal/logger"
	"github.com/rezonia/cedula-processor/internal/model"
	xmlparser "github.com/rezonia/cedula-processor/internal/parser/xml"
	"github.com/rezonia/cedula-processor/internal/source"
)

// DefaultWorkers is the parse concurrency when none is configured
const DefaultWorkers = 4

// Format represents detected input format
type Format int

const (
	FormatUnknown Format = iota
	FormatXML
	FormatZip
)

func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatZip:
		return "zip"
	default:
		return "unknown"
	}
}

// Result is the outcome of parsing one document
type Result struct {
	Source   string            `json:"source"`
	Parsed   *xmlparser.Parsed `json:"-"`
	Warnings []string          `json:"warnings,omitempty"`
	Error    error             `json:"-"`
}

// Batch collects the parse results of a set of files, in input order
type Batch struct {
	Results      []Result
	Invoices     []model.FiscalDocument
	Withholdings []model.WithholdingDocument
	Skipped      int
	Warnings     []string
}

// Pipeline parses SAT XML documents
type Pipeline struct {
	registry *xmlparser.Registry
	log      *logger.Logger
	workers  int
}

// Option configures the pipeline
type Option func(*Pipeline)

// WithLogger sets the logger used for per-document warnings
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithWorkers bounds the number of documents parsed concurrently
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithRegistry replaces the adapter registry
func WithRegistry(r *xmlparser.Registry) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.registry = r
		}
	}
}

// NewPipeline creates a new processing pipeline
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: xmlparser.NewRegistry(),
		log:      logger.Nop(),
		workers:  DefaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessXML parses one XML document from a reader
func (p *Pipeline) ProcessXML(ctx context.Context, r io.Reader, sourcePath string) *Result {
	data, err := io.ReadAll(r)
	if err != nil {
		return &Result{Source: sourcePath, Error: fmt.Errorf("read failed: %w", err)}
	}
	return p.ProcessXMLBytes(ctx, data, sourcePath)
}

// ProcessXMLBytes parses one XML document held in memory
func (p *Pipeline) ProcessXMLBytes(ctx context.Context, data []byte, sourcePath string) *Result {
	result := &Result{Source: sourcePath}

	parsed, err := p.registry.Parse(ctx, data, sourcePath)
	if err != nil {
		result.Error = fmt.Errorf("XML parsing failed: %w", err)
		return result
	}

	result.Parsed = parsed
	result.Warnings = parsed.Warnings
	return result
}

// ProcessBatch parses files concurrently. Each worker writes into its own
// slot, so results keep the order of files. A document that fails to parse
// is logged and counted as skipped; only cancellation aborts the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, files []source.File) (*Batch, error) {
	results := make([]Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = *p.ProcessXMLBytes(gctx, f.Data, f.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &Batch{Results: results}
	for _, r := range results {
		for _, w := range r.Warnings {
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("%s: %s", r.Source, w))
			p.log.Warn().Str("file", r.Source).Msg(w)
		}

		if r.Error != nil {
			batch.Skipped++
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("%s: skipped: %v", r.Source, r.Error))
			p.log.Warn().Str("file", r.Source).Err(r.Error).Msg("document skipped")
			continue
		}

		switch r.Parsed.Kind {
		case model.KindInvoice:
			batch.Invoices = append(batch.Invoices, *r.Parsed.Invoice)
		case model.KindWithholding:
			batch.Withholdings = append(batch.Withholdings, *r.Parsed.Withholding)
		}
	}

	p.log.Debug().
		Int("files", len(files)).
		Int("invoices", len(batch.Invoices)).
		Int("withholdings", len(batch.Withholdings)).
		Int("skipped", batch.Skipped).
		Msg("batch parsed")

	return batch, nil
}

// DetectFormat detects file format from content
func DetectFormat(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	// Zip local file header
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return FormatZip
	}

	trimmed := bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	trimmed = bytes.TrimSpace(trimmed)
	if bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<")) {
		return FormatXML
	}

	return FormatUnknown
}
