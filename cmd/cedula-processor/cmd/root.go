package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/cedula-processor/internal/config"
	"github.com/rezonia/cedula-processor/internal/logger"
)

var (
	version = "1.0.0"

	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cedula-processor",
	Short: "Build annual ISR and IVA cedulas from SAT CFDI documents",
	Long: `Cedula Processor reads stamped CFDI invoices and withholding receipts
(XML, loose or inside zip archives) and computes the monthly ISR and IVA
cedula of one taxpayer for one fiscal year.

Supports:
  - CFDI 4.0 and 3.3 invoices
  - Retenciones 2.0 and 1.0 withholding receipts
  - ISR tariffs from YAML or xlsx tables, with embedded SAT defaults

Settings come from flags, CEDULA_* environment variables or cedula.yaml.

Examples:
  # Compute the 2024 cedula from ./xml/ingresos, ./xml/gastos
  cedula-processor compute --year 2024 --input ./xml -o cedula.xlsx

  # Net IVA after withholdings, print JSON
  cedula-processor compute --year 2024 --input ./xml --iva-mode withheld -f json

  # Check documents before computing
  cedula-processor validate ./xml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringP("format", "f", "table", "Output format (json, csv, table)")
	flags.Int("workers", 4, "Parallel document parsers")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flags.String("log-env", "development", "Log output: development (console) or production (JSON)")
}

// loadConfig reads settings for cmd and builds the logger they describe
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log := logger.New(logger.Config{
		Env:   cfg.Log.Env,
		Level: cfg.Log.Level,
	})
	return cfg, log, nil
}

// addComputeFlags registers the flags shared by commands that compute cedulas
func addComputeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("year", 0, "Fiscal year (required)")
	cmd.Flags().String("rfc", "", "Taxpayer RFC, classifies documents outside the income/expense roots")
	cmd.Flags().String("iva-mode", "base", "IVA netting: base or withheld")
}
