package isr

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	moneyutil "github.com/rezonia/cedula-processor/internal/decimal"
	"github.com/rezonia/cedula-processor/internal/model"
	"github.com/rezonia/cedula-processor/internal/workbook"
)

//go:embed tables/*.yaml
var tables embed.FS

// tableFile is the YAML layout of a bracket table
type tableFile struct {
	Year     int        `yaml:"year"`
	Brackets []tableRow `yaml:"brackets"`
}

type tableRow struct {
	Month      int    `yaml:"month"`
	Lower      string `yaml:"lower"`
	Upper      string `yaml:"upper"`
	FixedQuota string `yaml:"fixed_quota"`
	Rate       string `yaml:"rate"`
}

// SheetSchema maps the columns of a bracket table in a workbook
var SheetSchema = workbook.Schema{
	Sheet: "tablas isr",
	Fields: []workbook.Field{
		{Name: "mes", Aliases: []string{"month", "periodo"}},
		{Name: "limite_inferior", Aliases: []string{"lim inferior", "lower", "limite inf"}, Required: true},
		{Name: "limite_superior", Aliases: []string{"lim superior", "upper", "limite sup"}},
		{Name: "cuota_fija", Aliases: []string{"fixed quota", "cuota"}},
		{Name: "tasa", Aliases: []string{"sobre excedente", "sobre excedente del limite inferior", "rate", "porcentaje"}, Required: true},
	},
}

var sheetNames = []string{"tablas isr", "tabla isr", "isr", "tarifa"}

// LoadSchedule reads a bracket table from a .yaml/.yml or .xlsx file
func LoadSchedule(path string) (*Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.InputNotFoundError{Path: path, Cause: err}
	}
	defer f.Close()

	s, err := LoadScheduleFrom(f, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("load ISR table %s: %w", path, err)
	}
	s.Name = filepath.Base(path)
	return s, nil
}

// LoadScheduleFrom reads a bracket table in the format named by ext
func LoadScheduleFrom(r io.Reader, ext string) (*Schedule, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return parseYAML(data)
	case "xlsx":
		_, rows, err := workbook.ReadSheetFrom(r, sheetNames...)
		if err != nil {
			return nil, err
		}
		return parseRows(rows)
	default:
		return nil, fmt.Errorf("unsupported ISR table format: %q", ext)
	}
}

// Default returns the embedded monthly tariff for year. When no table for
// year is embedded, the closest available year is used.
func Default(year int) (*Schedule, error) {
	name, err := closestTable(year)
	if err != nil {
		return nil, err
	}

	data, err := tables.ReadFile("tables/" + name)
	if err != nil {
		return nil, err
	}
	s, err := parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("embedded table %s: %w", name, err)
	}
	s.Name = "builtin:" + strings.TrimSuffix(name, ".yaml")
	return s, nil
}

// AvailableYears lists the years with an embedded tariff
func AvailableYears() []int {
	entries, _ := tables.ReadDir("tables")
	years := make([]int, 0, len(entries))
	for _, e := range entries {
		y, err := strconv.Atoi(strings.TrimSuffix(e.Name(), ".yaml"))
		if err == nil {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

func closestTable(year int) (string, error) {
	years := AvailableYears()
	if len(years) == 0 {
		return "", fmt.Errorf("no embedded ISR tables")
	}

	best := years[0]
	for _, y := range years {
		if abs(y-year) < abs(best-year) || (abs(y-year) == abs(best-year) && y > best) {
			best = y
		}
	}
	return fmt.Sprintf("%d.yaml", best), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func parseYAML(data []byte) (*Schedule, error) {
	var tf tableFile
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&tf); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}

	rows := make([]Row, 0, len(tf.Brackets))
	for i, tr := range tf.Brackets {
		b, err := bracket(tr.Lower, tr.Upper, tr.FixedQuota, tr.Rate)
		if err != nil {
			return nil, fmt.Errorf("bracket %d: %w", i+1, err)
		}
		rows = append(rows, Row{Month: tr.Month, Bracket: b})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table has no brackets")
	}
	return NewSchedule("", rows), nil
}

func parseRows(rows [][]string) (*Schedule, error) {
	records, err := SheetSchema.Records(rows)
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(records))
	for _, rec := range records {
		month := rowMonth(rec.Get("mes"))

		b, err := bracket(rec.Get("limite_inferior"), rec.Get("limite_superior"), rec.Get("cuota_fija"), rec.Get("tasa"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.Row, err)
		}
		out = append(out, Row{Month: month, Bracket: b})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("table has no brackets")
	}
	return NewSchedule("", out), nil
}

// rowMonth reads a "mes" cell. Blank, non-numeric and out of range values
// give 0, which applies the row to every month.
func rowMonth(raw string) int {
	d, err := moneyutil.ParseAmount(raw)
	if err != nil || !d.IsInteger() {
		return 0
	}
	m := int(d.IntPart())
	if m < 1 || m > 12 {
		return 0
	}
	return m
}

func bracket(lower, upper, quota, rate string) (model.TaxBracket, error) {
	var b model.TaxBracket
	var err error

	if b.Lower, err = moneyutil.ParseAmount(lower); err != nil {
		return b, fmt.Errorf("invalid lower bound %q", lower)
	}
	if openEnded(upper) {
		b.OpenEnded = true
	} else if b.Upper, err = moneyutil.ParseAmount(upper); err != nil {
		return b, fmt.Errorf("invalid upper bound %q", upper)
	}
	if b.FixedQuota, err = moneyutil.ParseAmount(quota); err != nil {
		return b, fmt.Errorf("invalid fixed quota %q", quota)
	}
	if b.Rate, err = moneyutil.ParseAmount(rate); err != nil {
		return b, fmt.Errorf("invalid rate %q", rate)
	}
	return b, nil
}

func openEnded(upper string) bool {
	switch workbook.Normalize(upper) {
	case "", "en adelante", "adelante", "infinity", "inf":
		return true
	}
	return false
}
