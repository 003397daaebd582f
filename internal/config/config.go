// Package config loads run settings from flags, CEDULA_* environment
// variables and an optional cedula.yaml file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rezonia/cedula-processor/internal/iva"
	"github.com/rezonia/cedula-processor/internal/report"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "CEDULA"

// Config holds the settings of one run
type Config struct {
	FiscalYear int
	RFC        string
	IVAMode    iva.Mode

	InputDir       string
	IncomeRoot     string
	ExpenseRoot    string
	WithholdingDir string

	ISRTable string
	Output   string
	Format   report.Format
	Workers  int

	Log    LogConfig
	Server ServerConfig
}

// LogConfig configures the logger
type LogConfig struct {
	Level string // trace, debug, info, warn, error
	Env   string // development (console) or production (JSON)
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Address string
	Debug   bool
}

// flagKeys maps configuration keys to the flag that overrides them
var flagKeys = map[string]string{
	"fiscal_year":     "year",
	"rfc":             "rfc",
	"iva_mode":        "iva-mode",
	"input_dir":       "input",
	"income_root":     "income-root",
	"expense_root":    "expense-root",
	"withholding_dir": "withholding-dir",
	"isr_table":       "isr-table",
	"output":          "output",
	"format":          "format",
	"workers":         "workers",
	"log_level":       "log-level",
	"log_env":         "log-env",
	"server.address":  "address",
	"server.debug":    "debug",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("iva_mode", string(iva.ModeBase))
	v.SetDefault("format", string(report.FormatTable))
	v.SetDefault("workers", 4)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_env", "development")
	v.SetDefault("server.address", ":8080")
}

// Load reads the configuration. Flags set on the command line win over
// environment variables, which win over the config file. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetConfigName("cedula")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	mode, err := iva.ParseMode(v.GetString("iva_mode"))
	if err != nil {
		return nil, err
	}
	format, err := report.ParseFormat(v.GetString("format"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		FiscalYear:     v.GetInt("fiscal_year"),
		RFC:            strings.ToUpper(strings.TrimSpace(v.GetString("rfc"))),
		IVAMode:        mode,
		InputDir:       v.GetString("input_dir"),
		IncomeRoot:     v.GetString("income_root"),
		ExpenseRoot:    v.GetString("expense_root"),
		WithholdingDir: v.GetString("withholding_dir"),
		ISRTable:       v.GetString("isr_table"),
		Output:         v.GetString("output"),
		Format:         format,
		Workers:        v.GetInt("workers"),
		Log: LogConfig{
			Level: v.GetString("log_level"),
			Env:   v.GetString("log_env"),
		},
		Server: ServerConfig{
			Address: v.GetString("server.address"),
			Debug:   v.GetBool("server.debug"),
		},
	}

	if cfg.InputDir != "" {
		if cfg.IncomeRoot == "" {
			cfg.IncomeRoot = filepath.Join(cfg.InputDir, "ingresos")
		}
		if cfg.ExpenseRoot == "" {
			cfg.ExpenseRoot = filepath.Join(cfg.InputDir, "gastos")
		}
	}
	return cfg, nil
}

// Validate checks the settings a cedula computation needs
func (c *Config) Validate() error {
	if c.FiscalYear < 2000 || c.FiscalYear > 2100 {
		return fmt.Errorf("fiscal_year must be between 2000 and 2100, got %d", c.FiscalYear)
	}
	if c.InputDir == "" && c.IncomeRoot == "" && c.ExpenseRoot == "" {
		return fmt.Errorf("input_dir is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Output != "" && !strings.EqualFold(filepath.Ext(c.Output), ".xlsx") {
		return fmt.Errorf("output must be an .xlsx file: %s", c.Output)
	}
	return nil
}

// Roots returns the directories to scan, without duplicates and without
// directories nested in one already listed
func (c *Config) Roots() []string {
	var roots []string
	add := func(p string) {
		if p == "" {
			return
		}
		p = filepath.Clean(p)
		for _, r := range roots {
			if rel, err := filepath.Rel(r, p); err == nil && !strings.HasPrefix(rel, "..") {
				return
			}
		}
		roots = append(roots, p)
	}

	add(c.InputDir)
	add(c.IncomeRoot)
	add(c.ExpenseRoot)
	add(c.WithholdingDir)
	return roots
}
