package cedulalib

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rezonia/cedula-processor/internal/cedula"
	"github.com/rezonia/cedula-processor/internal/isr"
	"github.com/rezonia/cedula-processor/internal/iva"
	"github.com/rezonia/cedula-processor/internal/ledger"
	"github.com/rezonia/cedula-processor/internal/logger"
	"github.com/rezonia/cedula-processor/internal/model"
	"github.com/rezonia/cedula-processor/internal/processor"
	"github.com/rezonia/cedula-processor/internal/source"
)

// Options configures a Processor
type Options struct {
	FiscalYear int
	RFC        string
	IVAMode    IVAMode

	// Documents below IncomeRoot are income, below ExpenseRoot expenses;
	// anything else is classified by issuer RFC
	IncomeRoot  string
	ExpenseRoot string

	// WithholdingDir holds withholding receipts. Like ExpenseRoot it may be
	// missing, which ComputeDirs treats as no documents.
	WithholdingDir string

	// ISR tariff: Schedule if set, else the table at ISRTable, else the
	// embedded tariff closest to FiscalYear
	Schedule *Schedule
	ISRTable string

	Workers int
	Logger  *Logger
}

// Processor parses documents and computes cedulas
type Processor struct {
	pipeline *processor.Pipeline
	engine   *cedula.Engine
	log      *logger.Logger

	// roots that may be absent
	optional []string
}

// NewProcessor creates a processor with the given options. The ISR table
// is loaded here, so a bad table path fails early.
func NewProcessor(opts Options) (*Processor, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	schedule := opts.Schedule
	if schedule == nil {
		var err error
		switch {
		case opts.ISRTable != "":
			schedule, err = isr.LoadSchedule(opts.ISRTable)
		case opts.FiscalYear > 0:
			schedule, err = isr.Default(opts.FiscalYear)
		}
		if err != nil {
			return nil, err
		}
	}
	if schedule != nil {
		log.Debug().Str("table", schedule.Name).Msg("ISR schedule loaded")
	}

	mode := opts.IVAMode
	if mode == "" {
		mode = iva.ModeBase
	}

	return &Processor{
		pipeline: processor.NewPipeline(
			processor.WithLogger(log.Component("parser")),
			processor.WithWorkers(opts.Workers),
		),
		engine: &cedula.Engine{
			Classifier: ledger.Classifier{
				IncomeRoot:  opts.IncomeRoot,
				ExpenseRoot: opts.ExpenseRoot,
				OwnRFC:      opts.RFC,
			},
			FiscalYear: opts.FiscalYear,
			RFC:        opts.RFC,
			Mode:       mode,
			Schedule:   schedule,
			Log:        log.Component("engine"),
		},
		log:      log,
		optional: cleanPaths(opts.ExpenseRoot, opts.WithholdingDir),
	}, nil
}

func cleanPaths(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p != "" {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}

// Schedule returns the ISR tariff in use, nil when none was loaded
func (p *Processor) Schedule() *Schedule {
	return p.engine.Schedule
}

// ParseXML parses a single document
func (p *Processor) ParseXML(ctx context.Context, r io.Reader, name string) (*Parsed, error) {
	result := p.pipeline.ProcessXML(ctx, r, name)
	if result.Error != nil {
		return nil, result.Error
	}
	return result.Parsed, nil
}

// Parse parses files concurrently; failed documents are counted, not fatal
func (p *Processor) Parse(ctx context.Context, files []File) (*Batch, error) {
	return p.pipeline.ProcessBatch(ctx, files)
}

// Compute parses files and computes the cedula
func (p *Processor) Compute(ctx context.Context, files []File) (*Result, error) {
	return p.compute(ctx, files, nil)
}

func (p *Processor) compute(ctx context.Context, files []File, warnings []string) (*Result, error) {
	batch, err := p.Parse(ctx, files)
	if err != nil {
		return nil, err
	}

	return p.engine.Compute(cedula.Input{
		Invoices:     batch.Invoices,
		Withholdings: batch.Withholdings,
		Stats: model.RunStats{
			FilesSeen:          len(files),
			InvoicesParsed:     len(batch.Invoices),
			WithholdingsParsed: len(batch.Withholdings),
			Skipped:            batch.Skipped,
		},
		Warnings: append(warnings, batch.Warnings...),
	})
}

// ComputeDirs scans roots (directories, .xml or .zip files) and computes
// the cedula over everything found. A missing root is an error, except the
// expense root and withholding directory, which count as empty.
func (p *Processor) ComputeDirs(ctx context.Context, roots ...string) (*Result, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no input roots given")
	}

	var present, warnings []string
	for _, root := range roots {
		if p.isOptional(root) {
			if _, err := os.Stat(root); err != nil {
				p.log.Warn().Str("path", root).Err(err).Msg("input missing, treated as empty")
				warnings = append(warnings, fmt.Sprintf("input %s not found, treated as empty", root))
				continue
			}
		}
		present = append(present, root)
	}

	var files []File
	if len(present) > 0 {
		var err error
		files, err = Collect(ctx, present...)
		if err != nil {
			return nil, err
		}
	}
	p.log.Info().Int("files", len(files)).Strs("roots", present).Msg("input scanned")
	return p.compute(ctx, files, warnings)
}

func (p *Processor) isOptional(root string) bool {
	root = filepath.Clean(root)
	for _, o := range p.optional {
		if o == root {
			return true
		}
	}
	return false
}

// Collect scans roots in order. A path reached from two roots is read once.
func Collect(ctx context.Context, roots ...string) ([]File, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no input roots given")
	}

	seen := make(map[string]struct{})
	var files []File
	for _, root := range roots {
		found, err := source.Scan(ctx, root)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if _, ok := seen[f.Path]; ok {
				continue
			}
			seen[f.Path] = struct{}{}
			files = append(files, f)
		}
	}
	return files, nil
}
