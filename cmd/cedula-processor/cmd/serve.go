package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/cedula-processor/internal/server"
)

var (
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for computing cedulas.

The API provides endpoints for:
  - POST /api/v1/cedula  - Compute a cedula from uploaded XML/zip files
                           (fields: income, expense, withholding, isr_table;
                           form values: year, rfc, iva_mode; ?format=xlsx)
  - POST /api/v1/parse   - Parse uploaded documents
  - GET  /health         - Health check

--year, --rfc and --iva-mode set defaults for requests that omit them.

Examples:
  # Start server on default port
  cedula-processor serve

  # Start in debug mode with a default year
  cedula-processor serve --address :9090 --year 2024 --debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addComputeFlags(serveCmd)
	serveCmd.Flags().String("address", ":8080", "Server listen address")
	serveCmd.Flags().Bool("debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 5*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	srv := server.NewServer(&server.Config{
		Address:      cfg.Server.Address,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        cfg.Server.Debug,
		Workers:      cfg.Workers,
		FiscalYear:   cfg.FiscalYear,
		RFC:          cfg.RFC,
		IVAMode:      cfg.IVAMode,
		Logger:       log.Component("server"),
	})

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
