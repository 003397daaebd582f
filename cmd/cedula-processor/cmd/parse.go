package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/cedula-processor/internal/report"
	"github.com/rezonia/cedula-processor/pkg/cedulalib"
)

var (
	outputFile   string
	parseTimeout time.Duration
)

var parseCmd = &cobra.Command{
	Use:   "parse [paths...]",
	Short: "Parse documents without computing a cedula",
	Long: `Parse CFDI invoices and withholding receipts and print one row per file.

Paths may be .xml files, .zip archives or directories (scanned recursively).
Files that fail to parse are listed with their error.

Examples:
  cedula-processor parse factura.xml
  cedula-processor parse ./xml -f csv -o documentos.csv
  cedula-processor parse lote.zip -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	parseCmd.Flags().DurationVar(&parseTimeout, "timeout", 5*time.Minute, "Processing timeout")
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), parseTimeout)
	defer cancel()

	files, err := cedulalib.Collect(ctx, args...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to parse")
	}
	log.Debug().Int("files", len(files)).Msg("files found")

	proc, err := cedulalib.NewProcessor(cedulalib.Options{Workers: cfg.Workers, Logger: log})
	if err != nil {
		return err
	}
	batch, err := proc.Parse(ctx, files)
	if err != nil {
		return err
	}

	writer := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	return report.WriteDocuments(writer, cfg.Format, report.DocumentRows(batch.Results))
}
