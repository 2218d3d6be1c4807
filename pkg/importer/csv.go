package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// csvRow gives header-based access to one CSV record.
type csvRow struct {
	num    int
	values []string
	index  map[string]int
	decode func(string) string
}

// get returns the trimmed value of column col, or "" if absent.
func (r csvRow) get(col string) string {
	return strings.TrimSpace(r.raw(col))
}

// raw returns the value of column col as exported, surrounding whitespace
// included. Secrets are read with raw.
func (r csvRow) raw(col string) string {
	idx, ok := r.index[col]
	if !ok || idx >= len(r.values) {
		return ""
	}
	v := r.values[idx]
	if r.decode != nil {
		v = r.decode(v)
	}
	return v
}

// readCSV parses a CSV export with a header row and calls fn for each
// record. Header names are matched case-insensitively. Malformed rows are
// reported as warnings and skipped.
func readCSV(data []byte, required string, decode func(string) string, fn func(csvRow)) ([]string, error) {
	// Strip UTF-8 BOM if present
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true // Handle malformed exports
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := index[required]; !ok {
		return nil, fmt.Errorf("missing required column: %s", required)
	}

	var warnings []string
	rowNum := 1 // header is row 1
	for {
		rowNum++
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: failed to parse: %v", rowNum, err))
			continue
		}
		if len(values) != len(header) {
			warnings = append(warnings, fmt.Sprintf("row %d: column count mismatch (expected %d, got %d)",
				rowNum, len(header), len(values)))
			continue
		}
		fn(csvRow{num: rowNum, values: values, index: index, decode: decode})
	}
	return warnings, nil
}
