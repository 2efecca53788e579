// Package sheet turns uploaded spreadsheet files into plain string grids and
// resolves report headers, so the rest of the pipeline never touches a file
// format or a spreadsheet library.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyFile      = errors.New("file contains no rows")
	ErrHeaderNotFound = errors.New("header row not found")
)

// Grid is the raw cell matrix of one worksheet. Rows may be ragged; callers
// use Row to read with padding.
type Grid [][]string

// Cell returns the trimmed value at (row, col), or "" when out of range.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	r := g[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

// FromXLSX reads the first worksheet of an XLSX file into a Grid.
func FromXLSX(r io.Reader) (Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return Grid(rows), nil
}

// FromCSV reads a CSV file into a Grid. Ragged rows are allowed.
func FromCSV(r io.Reader) (Grid, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return Grid(rows), nil
}

// ColumnSpec names one logical column and the header spellings that map to it.
// Matching is case-insensitive on trimmed cell text.
type ColumnSpec struct {
	Canonical string
	Aliases   []string
	Required  bool
}

func (s ColumnSpec) matches(cell string) bool {
	cell = strings.TrimSpace(cell)
	if strings.EqualFold(cell, s.Canonical) {
		return true
	}
	for _, a := range s.Aliases {
		if strings.EqualFold(cell, a) {
			return true
		}
	}
	return false
}

// Header is a located report header: its row index, the resolved column
// positions keyed by canonical name, and the branch token found near it.
type Header struct {
	RowIndex int
	Columns  map[string]int
	Branch   string
}

// Column returns the index of a resolved canonical column, or -1.
func (h *Header) Column(canonical string) int {
	if idx, ok := h.Columns[canonical]; ok {
		return idx
	}
	return -1
}

// Locate scans the grid for the first row containing any anchor cell, then
// resolves every spec against that row exactly once. Specs marked Required
// that cannot be resolved make the whole header fail.
func Locate(g Grid, anchors []string, specs []ColumnSpec) (*Header, error) {
	headerRow := -1
scan:
	for i, row := range g {
		for _, cell := range row {
			for _, anchor := range anchors {
				if strings.EqualFold(strings.TrimSpace(cell), anchor) {
					headerRow = i
					break scan
				}
			}
		}
	}
	if headerRow == -1 {
		return nil, ErrHeaderNotFound
	}

	h := &Header{
		RowIndex: headerRow,
		Columns:  make(map[string]int, len(specs)),
	}
	for _, spec := range specs {
		found := false
		for col, cell := range g[headerRow] {
			if spec.matches(cell) {
				h.Columns[spec.Canonical] = col
				found = true
				break
			}
		}
		if !found && spec.Required {
			return nil, fmt.Errorf("%w: missing column %q", ErrHeaderNotFound, spec.Canonical)
		}
	}
	h.Branch = locateBranch(g, headerRow)
	return h, nil
}

// locateBranch finds the branch token of a report. Legacy exports carry a
// "Site: <token>" cell somewhere above the data; newer exports put the token
// alone on the row right under the header.
func locateBranch(g Grid, headerRow int) string {
	for i := 0; i <= headerRow && i < len(g); i++ {
		for _, cell := range g[i] {
			cell = strings.TrimSpace(cell)
			if rest, ok := cutPrefixFold(cell, "site:"); ok {
				return strings.TrimSpace(rest)
			}
		}
	}
	if headerRow+1 < len(g) {
		if v, ok := loneValue(g[headerRow+1]); ok {
			return v
		}
	}
	return ""
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) {
		return "", false
	}
	if !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// loneValue reports the single non-empty cell of a row, if there is exactly one.
func loneValue(row []string) (string, bool) {
	value, count := "", 0
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			value = cell
			count++
		}
	}
	return value, count == 1
}
