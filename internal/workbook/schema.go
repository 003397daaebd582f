// Package workbook maps spreadsheet columns onto named fields through a
// declared alias table, resolved once per sheet.
package workbook

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rezonia/cedula-processor/internal/model"
)

// DefaultHeaderScan is how many leading rows are searched for the header
const DefaultHeaderScan = 10

// Field declares one logical column and the header spellings it accepts
type Field struct {
	Name     string
	Aliases  []string
	Required bool
}

// Schema is the set of fields expected on a sheet
type Schema struct {
	Sheet  string
	Fields []Field
}

// Mapping is a resolved schema: field name to column index
type Mapping struct {
	sheet   string
	columns map[string]int
}

// Record is one data row read through a Mapping
type Record struct {
	// Row is the 1-based spreadsheet row number
	Row    int
	values map[string]string
}

// Get returns the trimmed cell for field, empty when the column is absent
func (r Record) Get(field string) string {
	return r.values[field]
}

// Has reports whether field was mapped and the cell is not blank
func (r Record) Has(field string) bool {
	return r.values[field] != ""
}

// Resolve maps header cells onto schema fields. A required field with no
// matching header yields a MissingFieldError.
func (s Schema) Resolve(header []string) (*Mapping, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = Normalize(h)
	}

	m := &Mapping{sheet: s.Sheet, columns: make(map[string]int, len(s.Fields))}
	for _, f := range s.Fields {
		idx := findColumn(normalized, f)
		if idx < 0 {
			if f.Required {
				return nil, &model.MissingFieldError{Sheet: s.Sheet, Field: f.Name}
			}
			continue
		}
		m.columns[f.Name] = idx
	}
	return m, nil
}

func findColumn(header []string, f Field) int {
	candidates := append([]string{f.Name}, f.Aliases...)
	for _, c := range candidates {
		want := Normalize(c)
		for i, h := range header {
			if h == want {
				return i
			}
		}
	}
	return -1
}

// Has reports whether field was found in the header
func (m *Mapping) Has(field string) bool {
	_, ok := m.columns[field]
	return ok
}

// Record reads one row; rowNumber is 1-based
func (m *Mapping) Record(row []string, rowNumber int) Record {
	values := make(map[string]string, len(m.columns))
	for name, idx := range m.columns {
		if idx < len(row) {
			values[name] = strings.TrimSpace(row[idx])
		}
	}
	return Record{Row: rowNumber, values: values}
}

// Records locates the header within the first DefaultHeaderScan rows and
// returns every non-blank row below it
func (s Schema) Records(rows [][]string) ([]Record, error) {
	headerIdx, m, err := s.FindHeader(rows, DefaultHeaderScan)
	if err != nil {
		return nil, err
	}

	var out []Record
	for i := headerIdx + 1; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		out = append(out, m.Record(rows[i], i+1))
	}
	return out, nil
}

// FindHeader returns the index of the first row among the first maxScan
// that resolves every required field
func (s Schema) FindHeader(rows [][]string, maxScan int) (int, *Mapping, error) {
	var lastErr error = &model.MissingFieldError{Sheet: s.Sheet, Field: s.firstRequired()}
	for i := 0; i < len(rows) && i < maxScan; i++ {
		if blank(rows[i]) {
			continue
		}
		m, err := s.Resolve(rows[i])
		if err == nil {
			return i, m, nil
		}
		lastErr = err
	}
	return -1, nil, lastErr
}

func (s Schema) firstRequired() string {
	for _, f := range s.Fields {
		if f.Required {
			return f.Name
		}
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Normalize folds a header for comparison: accents removed, lower case,
// and runs of spaces, underscores, dots or dashes collapsed to one space
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-' || r == '.' || r == '%' || r == '(' || r == ')'
	}), " ")
}
