// Package tap implements the two modes of the connector: discovery, which
// describes the streams the tap can produce, and sync, which fetches one
// FRED series and re-emits it as Singer messages.
package tap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/areed1192/tap-federal-reserve/internal/config"
	"github.com/areed1192/tap-federal-reserve/internal/fred"
	"github.com/areed1192/tap-federal-reserve/internal/metrics"
	"github.com/areed1192/tap-federal-reserve/internal/schema"
	"github.com/areed1192/tap-federal-reserve/internal/singer"
)

const (
	// StreamName tags every message emitted by Sync.
	StreamName = "fred_series"
	// SeriesSchemaID is the bundled schema describing a series record.
	SeriesSchemaID = "federal_reserve_series"
)

var ErrNoFetcher = errors.New("no series fetcher configured")

// KeyProperties of the sync stream. Series records carry no field that
// identifies a row on its own, so none is declared.
var KeyProperties = []string{}

type Fetcher interface {
	GetSeries(ctx context.Context, seriesID, realtimeStart, realtimeEnd string) (*fred.SeriesResponse, error)
}

type SchemaLoader func() (*schema.Registry, error)

type Option func(*Tap)

func WithLogger(l *zap.Logger) Option {
	return func(t *Tap) {
		t.logger = l
	}
}

func WithFetcher(f Fetcher) Option {
	return func(t *Tap) {
		t.fetcher = f
	}
}

func WithSchemaLoader(l SchemaLoader) Option {
	return func(t *Tap) {
		t.loadSchemas = l
	}
}

func WithWriter(w *singer.Writer) Option {
	return func(t *Tap) {
		t.writer = w
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tap) {
		t.metrics = m
	}
}

type Tap struct {
	fetcher     Fetcher
	loadSchemas SchemaLoader
	writer      *singer.Writer
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func New(opts ...Option) *Tap {
	t := &Tap{
		loadSchemas: schema.LoadBundled,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.writer == nil {
		t.writer = singer.NewWriter(os.Stdout, singer.WithMetrics(t.metrics))
	}
	return t
}

// Discover builds one catalog entry per loaded schema, in registry order.
func (t *Tap) Discover() (*singer.Catalog, error) {
	registry, err := t.loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("loading schemas: %w", err)
	}

	catalog := &singer.Catalog{
		Streams: make([]singer.CatalogEntry, 0, registry.Len()),
	}
	for _, s := range registry.All() {
		catalog.Streams = append(catalog.Streams, singer.CatalogEntry{
			TapStreamID:   s.ID,
			Stream:        s.ID,
			Schema:        s.Document,
			KeyProperties: []string{},
			Metadata:      []singer.Metadata{},
		})
	}

	t.logger.Named("tap.discover").Info("discovered streams",
		zap.Int("num_streams", len(catalog.Streams)),
	)
	return catalog, nil
}

// Result describes a sync run. It is returned on failure too, with State
// recording how far the run got.
type Result struct {
	Stream            string
	SeriesID          string
	RealtimeStart     string
	RealtimeEnd       string
	NumSourceRecords  int
	NumRecordsEmitted int
	State             State
}

// Sync fetches the configured series and writes one SCHEMA message followed
// by one RECORD per upstream element, in upstream order. The config is
// validated before any request is made. Messages already written are not
// retracted when a later step fails.
func (t *Tap) Sync(ctx context.Context, cfg *config.Config) (*Result, error) {
	logger := t.logger.Named("tap.sync")
	fsm := NewFSM(FSMWithLogger(logger))

	result := &Result{
		Stream: StreamName,
		State:  fsm.Current(),
	}

	err := t.sync(ctx, cfg, fsm, result, logger)
	if err != nil && fsm.Active() {
		_ = fsm.Transition(StateError)
	}
	result.State = fsm.Current()
	t.metrics.SyncFinished(err == nil, time.Now())

	return result, err
}

func (t *Tap) sync(ctx context.Context, cfg *config.Config, fsm *FSM, result *Result, logger *zap.Logger) error {
	if err := cfg.ValidateSync(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if t.fetcher == nil {
		return ErrNoFetcher
	}
	result.SeriesID = cfg.SeriesID

	if err := fsm.Transition(StateFetching); err != nil {
		return err
	}
	resp, err := t.fetcher.GetSeries(ctx, cfg.SeriesID, cfg.SeriesStartDate, cfg.SeriesEndDate)
	if err != nil {
		return fmt.Errorf("fetching series %q: %w", cfg.SeriesID, err)
	}
	result.RealtimeStart = resp.RealtimeStart
	result.RealtimeEnd = resp.RealtimeEnd
	result.NumSourceRecords = len(resp.Seriess)

	logger.Info("fetched series",
		zap.String("series_id", cfg.SeriesID),
		zap.Int("num_records", len(resp.Seriess)),
	)

	if err := fsm.Transition(StateLoading); err != nil {
		return err
	}
	registry, err := t.loadSchemas()
	if err != nil {
		return fmt.Errorf("loading schemas: %w", err)
	}
	s, err := registry.Get(SeriesSchemaID)
	if err != nil {
		return err
	}

	if err := fsm.Transition(StateEmitting); err != nil {
		return err
	}
	if err := t.writer.WriteSchema(StreamName, s.Document, KeyProperties); err != nil {
		return err
	}
	before := t.writer.Count(singer.TypeRecord)
	err = t.writer.WriteRecords(StreamName, resp.Seriess)
	result.NumRecordsEmitted = t.writer.Count(singer.TypeRecord) - before
	if err != nil {
		return err
	}

	return fsm.Transition(StateCompleted)
}
