package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
)

// Row is one CSV record keyed by column name.
type Row map[string]string

// ParseCSV reads a CSV document into rows keyed by the header line.
// Short records are padded with empty strings; extra cells are dropped.
func ParseCSV(r io.Reader) ([]Row, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	headers := make([]string, 0, len(records[0]))
	for _, h := range records[0] {
		headers = append(headers, strings.TrimSpace(h))
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(record) {
				row[header] = strings.TrimSpace(record[i])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows, headers, nil
}

// RenderCSV writes a header line plus records back into CSV text.
func RenderCSV(headers []string, records [][]string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(headers)
	for _, record := range records {
		_ = w.Write(record)
	}
	w.Flush()
	return buf.String()
}
