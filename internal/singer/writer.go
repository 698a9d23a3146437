package singer

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/areed1192/tap-federal-reserve/internal/metrics"
)

type WriterOption func(*Writer)

// WithTee copies every line written to out into w as well.
func WithTee(w io.Writer) WriterOption {
	return func(wr *Writer) {
		wr.tee = w
	}
}

func WithMetrics(m *metrics.Metrics) WriterOption {
	return func(wr *Writer) {
		wr.metrics = m
	}
}

// Writer emits Singer messages as line delimited JSON. Each message is
// written as soon as it is produced; there is no buffering or flow control.
type Writer struct {
	out     io.Writer
	tee     io.Writer
	metrics *metrics.Metrics
	counts  map[MessageType]int
}

func NewWriter(out io.Writer, opts ...WriterOption) *Writer {
	w := &Writer{
		out:    out,
		counts: make(map[MessageType]int),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) WriteSchema(stream string, schema map[string]any, keyProperties []string) error {
	return w.write(TypeSchema, NewSchemaMessage(stream, schema, keyProperties))
}

func (w *Writer) WriteRecord(stream string, record map[string]any) error {
	return w.write(TypeRecord, NewRecordMessage(stream, record))
}

// WriteRecords writes one RECORD per element, in order. It stops at the
// first error; lines already written stand.
func (w *Writer) WriteRecords(stream string, records []map[string]any) error {
	for i, record := range records {
		if err := w.WriteRecord(stream, record); err != nil {
			return fmt.Errorf("writing record %d: %w", i, err)
		}
	}
	return nil
}

// Count returns how many messages of the given type have been written.
func (w *Writer) Count(t MessageType) int {
	return w.counts[t]
}

func (w *Writer) write(t MessageType, msg any) error {
	bs, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", t, err)
	}
	bs = append(bs, '\n')

	if _, err := w.out.Write(bs); err != nil {
		return fmt.Errorf("writing %s message: %w", t, err)
	}
	if w.tee != nil {
		if _, err := w.tee.Write(bs); err != nil {
			return fmt.Errorf("copying %s message: %w", t, err)
		}
	}

	w.counts[t]++
	w.metrics.MessageEmitted(string(t))
	return nil
}
