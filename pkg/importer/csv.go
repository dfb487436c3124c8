package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// csvRow gives access to one CSV record by column name.
type csvRow struct {
	num    int
	fields []string
	index  map[string]int
}

func (r csvRow) get(col string) string {
	if i, ok := r.index[col]; ok && i < len(r.fields) {
		return strings.TrimSpace(r.fields[i])
	}
	return ""
}

// readCSV reads a header-first CSV export and calls fn for every well-formed
// row. Column names are lowercased when fold is set. Broken rows become
// warnings on result.
func readCSV(data []byte, fold bool, required string, result *ImportResult, fn func(csvRow)) error {
	reader := csv.NewReader(bytes.NewReader(stripBOM(data)))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if fold {
			col = strings.ToLower(col)
		}
		index[col] = i
	}
	if _, ok := index[required]; !ok {
		return fmt.Errorf("missing required column: %s", required)
	}

	rowNum := 1
	for {
		rowNum++
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: failed to parse: %v", rowNum, err))
			continue
		}
		if len(fields) != len(header) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: column count mismatch (expected %d, got %d)",
					rowNum, len(header), len(fields)))
			continue
		}
		fn(csvRow{num: rowNum, fields: fields, index: index})
	}
}
