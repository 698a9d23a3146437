// Package parquet converts stream records into parquet files for the
// archive.
package parquet

import (
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/xitongsys/parquet-go-source/writerfile"
	pq "github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Encode writes records to w as a single snappy compressed parquet file and
// returns the number of rows written. Keys absent from the schema are
// dropped.
func (s Schema) Encode(w io.Writer, records []map[string]any) (int, error) {
	def, err := s.JSONDefinition()
	if err != nil {
		return 0, fmt.Errorf("building parquet schema: %w", err)
	}

	pfw := writerfile.NewWriterFile(w)
	pw, err := writer.NewJSONWriter(def, pfw, 1)
	if err != nil {
		return 0, fmt.Errorf("creating parquet writer: %w", err)
	}
	pw.CompressionType = pq.CompressionCodec_SNAPPY

	rows := 0
	for i, record := range records {
		bs, err := json.Marshal(s.project(record))
		if err != nil {
			_ = pw.WriteStop()
			return rows, fmt.Errorf("encoding row %d: %w", i, err)
		}
		if err := pw.Write(string(bs)); err != nil {
			_ = pw.WriteStop()
			return rows, fmt.Errorf("writing row %d: %w", i, err)
		}
		rows++
	}

	if err := pw.WriteStop(); err != nil {
		return rows, fmt.Errorf("finishing parquet file: %w", err)
	}
	return rows, pfw.Close()
}

// project coerces a record onto the schema's physical types. Values that
// cannot be represented become null.
func (s Schema) project(record map[string]any) map[string]any {
	row := make(map[string]any, len(s))
	for _, f := range s {
		v, ok := record[f.Name]
		if !ok || v == nil {
			continue
		}

		switch f.Type {
		case "INT64", "DOUBLE":
			if n, ok := toNumber(v, f.Type == "INT64"); ok {
				row[f.Name] = n
			}
		case "BOOLEAN":
			if b, ok := v.(bool); ok {
				row[f.Name] = b
			}
		default:
			if str, ok := v.(string); ok {
				row[f.Name] = str
				continue
			}
			bs, err := json.Marshal(v)
			if err == nil {
				row[f.Name] = string(bs)
			}
		}
	}
	return row
}

func toNumber(v any, integer bool) (json.Number, bool) {
	var raw string
	switch n := v.(type) {
	case json.Number:
		raw = n.String()
	case string:
		raw = n
	case float64:
		raw = strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		raw = strconv.Itoa(n)
	case int64:
		raw = strconv.FormatInt(n, 10)
	default:
		return "", false
	}

	if integer {
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return "", false
		}
	} else if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return "", false
	}
	return json.Number(raw), true
}
