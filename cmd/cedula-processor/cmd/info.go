package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/cedula-processor/internal/model"
	xmlparser "github.com/rezonia/cedula-processor/internal/parser/xml"
	"github.com/rezonia/cedula-processor/internal/processor"
	"github.com/rezonia/cedula-processor/internal/source"
	"github.com/rezonia/cedula-processor/internal/stamp"
	"github.com/rezonia/cedula-processor/pkg/cedulalib"
)

var infoCmd = &cobra.Command{
	Use:   "info [paths...]",
	Short: "Show information about document files",
	Long: `Display information about document files without computing anything.

Shows:
  - Detected file format (XML, zip)
  - Document kind and schema variant (CFDI 4.0/3.3, Retenciones 2.0/1.0)
  - Whether a fiscal stamp is present, and its UUID

Zip archives are listed entry by entry.

Examples:
  cedula-processor info factura.xml
  cedula-processor info ./xml/gastos`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	files, err := cedulalib.Collect(cmd.Context(), args...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found")
	}

	registry := xmlparser.NewRegistry()
	for _, f := range files {
		printFileInfo(cmd.Context(), os.Stdout, registry, f)
		fmt.Fprintln(os.Stdout)
	}
	return nil
}

func printFileInfo(ctx context.Context, w io.Writer, registry *xmlparser.Registry, f source.File) {
	fmt.Fprintf(w, "File: %s\n", f.Path)
	fmt.Fprintf(w, "  Size: %d bytes\n", len(f.Data))

	format := processor.DetectFormat(f.Data)
	fmt.Fprintf(w, "  Format: %s\n", formatName(format))
	if format != processor.FormatXML {
		return
	}

	if stamp.NewExtractor().CanExtract(f.Data) {
		fmt.Fprintln(w, "  Stamp: present")
	} else {
		fmt.Fprintln(w, "  Stamp: missing")
	}

	parsed, err := registry.Parse(ctx, f.Data, f.Path)
	if err != nil {
		fmt.Fprintf(w, "  Error: %v\n", err)
		if preview := getPreview(string(f.Data), 120); preview != "" {
			fmt.Fprintf(w, "  Preview: %s\n", preview)
		}
		return
	}

	fmt.Fprintf(w, "  Kind: %s\n", parsed.Kind)
	fmt.Fprintf(w, "  Schema: %s\n", schemaName(parsed.Schema))

	switch {
	case parsed.Invoice != nil:
		inv := parsed.Invoice
		fmt.Fprintf(w, "  UUID: %s\n", orDash(inv.ID))
		fmt.Fprintf(w, "  Issuer: %s\n", inv.IssuerRFC)
		fmt.Fprintf(w, "  Receiver: %s\n", inv.ReceiverRFC)
		if inv.HasPeriod() {
			fmt.Fprintf(w, "  Period: %04d-%02d\n", inv.Year, inv.Month)
		}
	case parsed.Withholding != nil:
		wd := parsed.Withholding
		fmt.Fprintf(w, "  UUID: %s\n", orDash(wd.ID))
		fmt.Fprintf(w, "  Issuer: %s\n", wd.IssuerRFC)
		fmt.Fprintf(w, "  Period: %d, months %d-%d\n", wd.FiscalYear, wd.PeriodStartMonth, wd.PeriodEndMonth)
	}
	for _, warning := range parsed.Warnings {
		fmt.Fprintf(w, "  Warning: %s\n", warning)
	}
}

func formatName(f processor.Format) string {
	switch f {
	case processor.FormatXML:
		return "XML"
	case processor.FormatZip:
		return "Zip archive"
	default:
		return "Unknown"
	}
}

func schemaName(s model.Schema) string {
	switch s {
	case model.SchemaCFDI40:
		return "CFDI 4.0"
	case model.SchemaCFDI33:
		return "CFDI 3.3"
	case model.SchemaRetenciones20:
		return "Retenciones 2.0"
	case model.SchemaRetenciones10:
		return "Retenciones 1.0"
	default:
		return "Unknown"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func getPreview(content string, maxLen int) string {
	// Remove XML declaration
	if idx := strings.Index(content, "?>"); idx >= 0 {
		content = content[idx+2:]
	}

	content = strings.Join(strings.Fields(content), " ")
	if len(content) > maxLen {
		content = content[:maxLen] + "..."
	}
	return content
}
