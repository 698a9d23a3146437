// Package archive keeps a copy of a sync run's output in a repository,
// along with a manifest describing the run.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/areed1192/tap-federal-reserve/internal"
	"github.com/areed1192/tap-federal-reserve/internal/parquet"
)

const (
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"

	MessagesKey = "messages.jsonl"
	ManifestKey = "manifest.json"
)

var ErrUnknownFormat = errors.New("unknown archive format")

type Option func(*Archiver)

func WithLogger(l *zap.Logger) Option {
	return func(a *Archiver) {
		a.logger = l
	}
}

func WithFormat(format string) Option {
	return func(a *Archiver) {
		a.format = format
	}
}

func WithSyncID(id uuid.UUID) Option {
	return func(a *Archiver) {
		a.syncID = id
	}
}

// Archiver buffers the messages of one run and writes them to a
// repository when the run finishes. Objects are written with bare keys;
// the repository is expected to be scoped to the run.
type Archiver struct {
	repository internal.Repository
	format     string
	syncID     uuid.UUID
	start      time.Time
	buf        bytes.Buffer
	logger     *zap.Logger
}

func New(repository internal.Repository, opts ...Option) (*Archiver, error) {
	a := &Archiver{
		repository: repository,
		format:     FormatJSONL,
		syncID:     uuid.New(),
		start:      time.Now().UTC(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	switch a.format {
	case FormatJSONL, FormatParquet:
	case "":
		a.format = FormatJSONL
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, a.format)
	}
	return a, nil
}

// Writer receives the Singer lines emitted during the run.
func (a *Archiver) Writer() io.Writer {
	return &a.buf
}

// Finish writes the run's data objects followed by the manifest. The
// manifest is written even when writing the data fails; both errors are
// returned.
func (a *Archiver) Finish(ctx context.Context, m Manifest) (*Manifest, error) {
	logger := a.logger.Named("archive")

	m.SyncID = a.syncID
	m.StartTime = a.start
	m.Format = a.format

	objects, dataErr := a.writeData(ctx)
	if dataErr != nil {
		logger.Error("writing archive data", zap.Error(dataErr))
	}
	m.Objects = objects
	if m.Objects == nil {
		m.Objects = []string{}
	}
	m.EndTime = time.Now().UTC()

	manifestErr := a.writeManifest(ctx, &m)
	if manifestErr == nil {
		logger.Info("archived sync run",
			zap.String("sync_id", a.syncID.String()),
			zap.Strings("objects", m.Objects),
			zap.Bool("completed", m.Completed),
		)
	}

	return &m, errors.Join(dataErr, manifestErr)
}

func (a *Archiver) writeData(ctx context.Context) ([]string, error) {
	if a.buf.Len() == 0 {
		return nil, nil
	}

	switch a.format {
	case FormatParquet:
		return a.writeParquet(ctx)
	default:
		if err := a.repository.Write(ctx, MessagesKey, bytes.NewReader(a.buf.Bytes())); err != nil {
			return nil, fmt.Errorf("writing %s: %w", MessagesKey, err)
		}
		return []string{MessagesKey}, nil
	}
}

type streamData struct {
	schema  map[string]any
	records []map[string]any
}

// writeParquet writes one file per stream that had a SCHEMA message.
func (a *Archiver) writeParquet(ctx context.Context) ([]string, error) {
	streams, order, err := a.decodeMessages()
	if err != nil {
		return nil, err
	}

	var objects []string
	for _, name := range order {
		data := streams[name]
		if data.schema == nil {
			a.logger.Warn("no schema for stream, skipping parquet", zap.String("stream", name))
			continue
		}

		s, err := parquet.FromJSONSchema(data.schema)
		if err != nil {
			return objects, fmt.Errorf("deriving parquet schema for %q: %w", name, err)
		}

		var out bytes.Buffer
		if _, err := s.Encode(&out, data.records); err != nil {
			return objects, fmt.Errorf("encoding %q: %w", name, err)
		}

		key := name + ".parquet"
		if err := a.repository.Write(ctx, key, &out); err != nil {
			return objects, fmt.Errorf("writing %s: %w", key, err)
		}
		objects = append(objects, key)
	}
	return objects, nil
}

func (a *Archiver) decodeMessages() (map[string]*streamData, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(a.buf.Bytes()))
	dec.UseNumber()

	streams := make(map[string]*streamData)
	var order []string
	for {
		var msg struct {
			Type   string         `json:"type"`
			Stream string         `json:"stream"`
			Schema map[string]any `json:"schema"`
			Record map[string]any `json:"record"`
		}
		err := dec.Decode(&msg)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("decoding archived message: %w", err)
		}

		data, ok := streams[msg.Stream]
		if !ok {
			data = &streamData{}
			streams[msg.Stream] = data
			order = append(order, msg.Stream)
		}
		switch msg.Type {
		case "SCHEMA":
			data.schema = msg.Schema
		case "RECORD":
			data.records = append(data.records, msg.Record)
		}
	}
	return streams, order, nil
}

func (a *Archiver) writeManifest(ctx context.Context, m *Manifest) error {
	bs, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := a.repository.Write(ctx, ManifestKey, bytes.NewReader(bs)); err != nil {
		return fmt.Errorf("writing %s: %w", ManifestKey, err)
	}
	return nil
}
