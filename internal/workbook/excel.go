package workbook

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadSheet opens an .xlsx file and returns the rows of the first sheet
// whose name matches one of names (compared through Normalize). With no
// names the first sheet is read.
func ReadSheet(path string, names ...string) (string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return readSheet(f, names)
}

// ReadSheetFrom is ReadSheet over an in-memory workbook
func ReadSheetFrom(r io.Reader, names ...string) (string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readSheet(f, names)
}

func readSheet(f *excelize.File, names []string) (string, [][]string, error) {
	sheet := matchSheet(f.GetSheetList(), names)
	if sheet == "" {
		return "", nil, fmt.Errorf("no sheet named %v in workbook", names)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return sheet, rows, nil
}

func matchSheet(available, wanted []string) string {
	if len(available) == 0 {
		return ""
	}
	if len(wanted) == 0 {
		return available[0]
	}
	for _, w := range wanted {
		nw := Normalize(w)
		for _, a := range available {
			if Normalize(a) == nw {
				return a
			}
		}
	}
	return ""
}
