package adapters

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SignSampleSize is how many rows the sign heuristic inspects.
const SignSampleSize = 50

// ErrEmptyCSV is returned for files without a header row.
var ErrEmptyCSV = errors.New("csv has no header row")

// ReadCSV parses a CSV export into rows keyed by header. Blank lines and a
// leading byte-order mark are ignored.
func ReadCSV(data []byte) ([]string, []RawRow, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ReadCSV: header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows []RawRow
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("ReadCSV: line %d: %w", len(rows)+2, err)
		}
		if blank(record) {
			continue
		}
		row := make(RawRow, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// SelectCSVAdapter picks the adapter for a CSV export. Header signatures
// win, then the filename, then the majority sign of the first rows. A tie
// in the sign count selects Chase.
func SelectCSVAdapter(filename string, headers []string, rows []RawRow) Adapter {
	if a := adapterFromHeaders(headers); a != nil {
		return a
	}
	if a := adapterFromFilename(filename); a != nil {
		return a
	}
	return adapterFromSigns(rows)
}

func adapterFromHeaders(headers []string) Adapter {
	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[strings.ToLower(strings.TrimSpace(h))] = true
	}
	switch {
	case set["transaction date"] && set["post date"]:
		return Chase()
	case set["details"] && set["posting date"] && set["type"]:
		// Chase checking layout.
		return Chase()
	case set["card member"], set["account #"], set["extended details"], set["appears on your statement as"]:
		return Amex()
	}
	return nil
}

func adapterFromFilename(filename string) Adapter {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "chase"):
		return Chase()
	case strings.Contains(name, "amex"), strings.Contains(name, "american express"), strings.Contains(name, "americanexpress"):
		return Amex()
	}
	return nil
}

func adapterFromSigns(rows []RawRow) Adapter {
	positive, negative := SignCounts(rows)
	if positive > negative {
		return Amex()
	}
	return Chase()
}

// SignCounts counts positive and negative amounts among the first
// SignSampleSize rows. Unparseable amounts are ignored.
func SignCounts(rows []RawRow) (positive, negative int) {
	for i, row := range rows {
		if i >= SignSampleSize {
			break
		}
		raw, ok := lookup(row, amountColumns)
		if !ok {
			continue
		}
		v, err := ParseAmount(raw)
		if err != nil {
			continue
		}
		switch {
		case v > 0:
			positive++
		case v < 0:
			negative++
		}
	}
	return positive, negative
}
