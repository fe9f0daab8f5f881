package dataset

import (
	"bytes"
	"encoding/csv"
	"strings"

	"cartwright/pkg/errors"
)

// CSVLoader parses CSV lesson datasets. The first row must be a header and
// must include an "id" column. Every column becomes a record field. Rows
// without a "title" column get one synthesized from the id, so minimal
// exports still produce titled items.
type CSVLoader struct{}

func (l *CSVLoader) Format() string { return "csv" }

func (l *CSVLoader) Supports(name string) bool {
	return strings.EqualFold(ext(name), ".csv")
}

func (l *CSVLoader) Load(data []byte) (*Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // ragged rows are reported per record downstream
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDataset, err, "invalid CSV dataset")
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidDataset, "CSV dataset is empty")
	}

	header := rows[0]
	idCol := -1
	titleCol := -1
	for i, name := range header {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "id":
			idCol = i
		case "title":
			titleCol = i
		}
	}
	if idCol < 0 {
		return nil, errors.New(errors.ErrCodeInvalidDataset, "CSV dataset must contain an %q column", "id")
	}

	recs := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		fields := make(map[string]any, len(header))
		for c, name := range header {
			if c < len(row) {
				fields[strings.TrimSpace(name)] = row[c]
			}
		}
		if titleCol < 0 || titleCol >= len(row) || row[titleCol] == "" {
			if id, ok := fields["id"].(string); ok && id != "" {
				fields["title"] = "Lesson " + id
			}
		}
		recs = append(recs, Record{Index: i, Fields: fields})
	}

	return &Dataset{Records: recs}, nil
}
