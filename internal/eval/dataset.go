// Package eval measures classification accuracy against a labeled CSV.
package eval

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/colaso96/beforeyouradvisor/internal/adapters"
)

// ErrNoExamples is returned when no row carries a label.
var ErrNoExamples = errors.New("no usable rows with non-empty labels")

// Example is one labeled row.
type Example struct {
	// Input is the "column: value" rendering of the feature columns.
	Input  string
	Answer string
	Row    adapters.RawRow
}

// Dataset is a parsed evaluation file.
type Dataset struct {
	LabelColumn    string
	FeatureColumns []string
	Examples       []Example
	// Skipped counts rows with an empty label.
	Skipped int
}

// LoadDataset parses a labeled CSV. When features is empty every column
// except the label is used.
func LoadDataset(data []byte, labelColumn string, features []string) (*Dataset, error) {
	headers, rows, err := adapters.ReadCSV(data)
	if err != nil {
		return nil, fmt.Errorf("LoadDataset: %w", err)
	}

	found := false
	for _, h := range headers {
		if h == labelColumn {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("LoadDataset: label column %q not in CSV headers: %v", labelColumn, headers)
	}

	cols := pickFeatureColumns(headers, labelColumn, features)
	ds := &Dataset{LabelColumn: labelColumn, FeatureColumns: cols}
	for _, row := range rows {
		answer := strings.TrimSpace(cell(row, labelColumn))
		if answer == "" {
			ds.Skipped++
			continue
		}
		var b strings.Builder
		for i, c := range cols {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s: %s", c, strings.TrimSpace(cell(row, c)))
		}
		ds.Examples = append(ds.Examples, Example{Input: b.String(), Answer: answer, Row: row})
	}
	if len(ds.Examples) == 0 {
		return nil, fmt.Errorf("LoadDataset: %w", ErrNoExamples)
	}
	return ds, nil
}

func pickFeatureColumns(headers []string, label string, features []string) []string {
	var cols []string
	for _, f := range features {
		if f = strings.TrimSpace(f); f != "" {
			cols = append(cols, f)
		}
	}
	if len(cols) > 0 {
		return cols
	}
	for _, h := range headers {
		if h != label {
			cols = append(cols, h)
		}
	}
	return cols
}

func cell(row adapters.RawRow, name string) string {
	v, ok := row[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// lookupFold finds a column by case-insensitive name.
func lookupFold(row adapters.RawRow, names ...string) any {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, n := range names {
		for _, k := range keys {
			if strings.EqualFold(strings.TrimSpace(k), n) {
				return row[k]
			}
		}
	}
	return nil
}
