package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/cedula-processor/internal/report"
	"github.com/rezonia/cedula-processor/pkg/cedulalib"
)

var computeTimeout time.Duration

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute the annual cedula",
	Long: `Scan the input directories, parse every CFDI and withholding receipt,
and compute the monthly ISR and IVA cedula for the fiscal year.

Documents under the income root count as income, documents under the
expense root as expenses. Anything else is classified by issuer RFC
against --rfc.

The cedula is printed to stdout in --format. With --output the xlsx
workbook is written as well; existing cedula sheets in it are replaced.

Examples:
  cedula-processor compute --year 2024 --input ./xml
  cedula-processor compute --year 2024 --income-root ./emitidas --expense-root ./recibidas --rfc GOMA800101AB1
  cedula-processor compute --year 2024 --input ./xml --isr-table tarifa.xlsx -o cedula.xlsx`,
	Args: cobra.NoArgs,
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)

	addComputeFlags(computeCmd)
	computeCmd.Flags().String("isr-table", "", "ISR tariff table (.yaml or .xlsx); default is the embedded SAT tariff")
	computeCmd.Flags().String("input", "", "Input directory with ingresos/ and gastos/ subdirectories")
	computeCmd.Flags().String("income-root", "", "Income documents root (default: <input>/ingresos)")
	computeCmd.Flags().String("expense-root", "", "Expense documents root (default: <input>/gastos)")
	computeCmd.Flags().String("withholding-dir", "", "Extra directory with withholding receipts")
	computeCmd.Flags().StringP("output", "o", "", "Workbook to write (.xlsx)")
	computeCmd.Flags().DurationVar(&computeTimeout, "timeout", 10*time.Minute, "Overall processing timeout")
}

func runCompute(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	proc, err := cedulalib.NewProcessor(cedulalib.Options{
		FiscalYear:     cfg.FiscalYear,
		RFC:            cfg.RFC,
		IVAMode:        cfg.IVAMode,
		IncomeRoot:     cfg.IncomeRoot,
		ExpenseRoot:    cfg.ExpenseRoot,
		WithholdingDir: cfg.WithholdingDir,
		ISRTable:       cfg.ISRTable,
		Workers:        cfg.Workers,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), computeTimeout)
	defer cancel()

	res, err := proc.ComputeDirs(ctx, cfg.Roots()...)
	if err != nil {
		return err
	}

	stats := res.Cedula.Stats
	log.Info().
		Int("files", stats.FilesSeen).
		Int("invoices", stats.InvoicesParsed).
		Int("withholdings", stats.WithholdingsParsed).
		Int("skipped", stats.Skipped).
		Int("duplicates", stats.DuplicateInvoices+stats.DuplicateWithholding).
		Int("excluded", stats.Excluded).
		Msg("cedula computed")

	if err := report.Write(os.Stdout, cfg.Format, res.Cedula); err != nil {
		return err
	}

	if cfg.Output != "" {
		if err := report.WriteWorkbook(cfg.Output, res.Cedula, report.Details{
			Documents:    res.Documents,
			Withholdings: res.Withholdings,
		}); err != nil {
			return err
		}
		log.Info().Str("path", cfg.Output).Msg("workbook written")
	}
	return nil
}
