package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/cedula-processor/internal/config"
	"github.com/rezonia/cedula-processor/internal/iva"
	"github.com/rezonia/cedula-processor/internal/report"
)

func flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("year", 0, "")
	fs.String("rfc", "", "")
	fs.String("iva-mode", "", "")
	fs.String("input", "", "")
	fs.String("format", "", "")
	fs.Int("workers", 0, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, iva.ModeBase, cfg.IVAMode)
	assert.Equal(t, report.FormatTable, cfg.Format)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Empty(t, cfg.IncomeRoot)
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CEDULA_FISCAL_YEAR", "2023")
	t.Setenv("CEDULA_RFC", " goma800101ab1 ")
	t.Setenv("CEDULA_IVA_MODE", "withheld")
	t.Setenv("CEDULA_INPUT_DIR", "/data/cfdi")

	fs := flagSet()
	require.NoError(t, fs.Parse([]string{"--year", "2024", "--workers", "8"}))

	cfg, err := config.Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 2024, cfg.FiscalYear, "flag wins over env")
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "GOMA800101AB1", cfg.RFC)
	assert.Equal(t, iva.ModeWithheld, cfg.IVAMode)
	assert.Equal(t, filepath.Join("/data/cfdi", "ingresos"), cfg.IncomeRoot)
	assert.Equal(t, filepath.Join("/data/cfdi", "gastos"), cfg.ExpenseRoot)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cedula.yaml"), []byte(`
fiscal_year: 2025
iva_mode: base
input_dir: facturas
expense_root: otros/gastos
format: json
server:
  address: ":9090"
`), 0o644))

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 2025, cfg.FiscalYear)
	assert.Equal(t, report.FormatJSON, cfg.Format)
	assert.Equal(t, filepath.Join("facturas", "ingresos"), cfg.IncomeRoot)
	assert.Equal(t, "otros/gastos", cfg.ExpenseRoot)
	assert.Equal(t, ":9090", cfg.Server.Address)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("CEDULA_IVA_MODE", "gross")
	_, err := config.Load(nil)
	assert.Error(t, err)

	t.Setenv("CEDULA_IVA_MODE", "base")
	t.Setenv("CEDULA_FORMAT", "pdf")
	_, err = config.Load(nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := config.Config{FiscalYear: 2024, InputDir: "in", Workers: 4, Output: "cedula.xlsx"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing year", func(c *config.Config) { c.FiscalYear = 0 }},
		{"year out of range", func(c *config.Config) { c.FiscalYear = 1999 }},
		{"no input", func(c *config.Config) { c.InputDir = "" }},
		{"no workers", func(c *config.Config) { c.Workers = 0 }},
		{"output not xlsx", func(c *config.Config) { c.Output = "cedula.csv" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestRoots(t *testing.T) {
	c := config.Config{
		InputDir:       "data",
		IncomeRoot:     filepath.Join("data", "ingresos"),
		ExpenseRoot:    "elsewhere/gastos",
		WithholdingDir: "retenciones",
	}
	assert.Equal(t, []string{"data", filepath.Join("elsewhere", "gastos"), "retenciones"}, c.Roots())

	assert.Empty(t, (&config.Config{}).Roots())
}
