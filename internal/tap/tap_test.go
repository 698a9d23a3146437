package tap

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"testing/fstest"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/areed1192/tap-federal-reserve/internal/config"
	"github.com/areed1192/tap-federal-reserve/internal/fred"
	"github.com/areed1192/tap-federal-reserve/internal/fredtest"
	"github.com/areed1192/tap-federal-reserve/internal/schema"
	"github.com/areed1192/tap-federal-reserve/internal/singer"
)

type fakeFetcher struct {
	resp  *fred.SeriesResponse
	err   error
	calls int
}

func (f *fakeFetcher) GetSeries(ctx context.Context, seriesID, realtimeStart, realtimeEnd string) (*fred.SeriesResponse, error) {
	f.calls++
	return f.resp, f.err
}

func validConfig() *config.Config {
	return &config.Config{
		APIKey:          "k",
		StartDate:       "2020-01-01",
		SeriesID:        "GNPCA",
		SeriesStartDate: "2020-01-01",
		SeriesEndDate:   "2020-12-31",
	}
}

func readMessages(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestDiscover(t *testing.T) {
	t.Run("bundled", func(t *testing.T) {
		tp := New(WithLogger(zaptest.NewLogger(t)))
		catalog, err := tp.Discover()
		require.NoError(t, err)

		entry, ok := catalog.Get(SeriesSchemaID)
		require.True(t, ok)
		assert.Equal(t, SeriesSchemaID, entry.Stream)
		assert.Empty(t, entry.KeyProperties)
		assert.NotNil(t, entry.KeyProperties)
		assert.Empty(t, entry.Metadata)
		assert.Equal(t, "object", entry.Schema["type"])
	})

	t.Run("one entry per schema file", func(t *testing.T) {
		fsys := fstest.MapFS{
			"b.json": {Data: []byte(`{"type": "object"}`)},
			"a.json": {Data: []byte(`{"type": "object"}`)},
		}
		tp := New(WithSchemaLoader(func() (*schema.Registry, error) {
			return schema.Load(fsys)
		}))

		catalog, err := tp.Discover()
		require.NoError(t, err)
		require.Len(t, catalog.Streams, 2)
		assert.Equal(t, "a", catalog.Streams[0].TapStreamID)
		assert.Equal(t, "b", catalog.Streams[1].TapStreamID)
	})

	t.Run("output parses as catalog", func(t *testing.T) {
		catalog, err := New().Discover()
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, catalog.Dump(&buf))
		read, err := singer.ReadCatalog(&buf)
		require.NoError(t, err)
		assert.Len(t, read.Streams, len(catalog.Streams))
	})

	t.Run("loader error", func(t *testing.T) {
		tp := New(WithSchemaLoader(func() (*schema.Registry, error) {
			return nil, schema.ErrNoSchemas
		}))
		_, err := tp.Discover()
		assert.ErrorIs(t, err, schema.ErrNoSchemas)
	})
}

func TestSync(t *testing.T) {
	t.Run("schema then records in order", func(t *testing.T) {
		records := []map[string]any{
			{"id": "r1"},
			{"id": "r2"},
			{"id": "r3"},
		}
		fetcher := &fakeFetcher{resp: &fred.SeriesResponse{Seriess: records}}

		var out bytes.Buffer
		tp := New(
			WithFetcher(fetcher),
			WithWriter(singer.NewWriter(&out)),
			WithLogger(zaptest.NewLogger(t)),
		)

		result, err := tp.Sync(context.Background(), validConfig())
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, result.State)
		assert.Equal(t, 3, result.NumSourceRecords)
		assert.Equal(t, 3, result.NumRecordsEmitted)

		msgs := readMessages(t, &out)
		require.Len(t, msgs, 4)
		assert.Equal(t, "SCHEMA", msgs[0]["type"])
		assert.Equal(t, StreamName, msgs[0]["stream"])
		assert.Equal(t, []any{}, msgs[0]["key_properties"])

		for i, want := range []string{"r1", "r2", "r3"} {
			msg := msgs[i+1]
			assert.Equal(t, "RECORD", msg["type"])
			assert.Equal(t, StreamName, msg["stream"])
			assert.Equal(t, map[string]any{"id": want}, msg["record"])
		}
	})

	t.Run("empty series", func(t *testing.T) {
		fetcher := &fakeFetcher{resp: &fred.SeriesResponse{Seriess: []map[string]any{}}}
		var out bytes.Buffer
		tp := New(WithFetcher(fetcher), WithWriter(singer.NewWriter(&out)))

		result, err := tp.Sync(context.Background(), validConfig())
		require.NoError(t, err)
		assert.Equal(t, 0, result.NumRecordsEmitted)
		assert.Len(t, readMessages(t, &out), 1)
	})

	t.Run("missing series id makes no request", func(t *testing.T) {
		srv := fredtest.New(t)
		cfg := validConfig()
		cfg.SeriesID = ""

		var out bytes.Buffer
		tp := New(
			WithFetcher(fred.New("k", fred.WithBaseURL(srv.URL))),
			WithWriter(singer.NewWriter(&out)),
		)

		result, err := tp.Sync(context.Background(), cfg)
		assert.ErrorIs(t, err, config.ErrMissingKey)
		assert.Equal(t, StateCreated, result.State)
		assert.Empty(t, srv.Queries())
		assert.Zero(t, out.Len())
	})

	t.Run("fetch error emits nothing", func(t *testing.T) {
		apiErr := &fred.APIError{StatusCode: http.StatusBadRequest, Message: "Bad Request."}
		fetcher := &fakeFetcher{err: apiErr}

		var out bytes.Buffer
		tp := New(WithFetcher(fetcher), WithWriter(singer.NewWriter(&out)))

		result, err := tp.Sync(context.Background(), validConfig())
		var target *fred.APIError
		assert.ErrorAs(t, err, &target)
		assert.Equal(t, StateError, result.State)
		assert.Equal(t, 1, fetcher.calls)
		assert.Zero(t, out.Len())
	})

	t.Run("missing series schema", func(t *testing.T) {
		fsys := fstest.MapFS{
			"other.json": {Data: []byte(`{"type": "object"}`)},
		}
		fetcher := &fakeFetcher{resp: &fred.SeriesResponse{Seriess: []map[string]any{{"id": "r1"}}}}

		var out bytes.Buffer
		tp := New(
			WithFetcher(fetcher),
			WithWriter(singer.NewWriter(&out)),
			WithSchemaLoader(func() (*schema.Registry, error) { return schema.Load(fsys) }),
		)

		result, err := tp.Sync(context.Background(), validConfig())
		assert.ErrorIs(t, err, schema.ErrSchemaNotFound)
		assert.Equal(t, StateError, result.State)
		assert.Zero(t, out.Len())
	})

	t.Run("no fetcher", func(t *testing.T) {
		_, err := New(WithWriter(singer.NewWriter(&bytes.Buffer{}))).Sync(context.Background(), validConfig())
		assert.True(t, errors.Is(err, ErrNoFetcher))
	})
}

func TestSyncEndToEnd(t *testing.T) {
	srv := fredtest.New(t)
	srv.Respond(http.StatusOK, `{"seriess":[{"date":"2020-01-01","value":"19000"}]}`)

	var out bytes.Buffer
	tp := New(
		WithFetcher(fred.New("k", fred.WithBaseURL(srv.URL))),
		WithWriter(singer.NewWriter(&out)),
		WithLogger(zaptest.NewLogger(t)),
	)

	_, err := tp.Sync(context.Background(), validConfig())
	require.NoError(t, err)

	queries := srv.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "GNPCA", queries[0].Get("series_id"))
	assert.Equal(t, "2020-01-01", queries[0].Get("realtime_start"))
	assert.Equal(t, "2020-12-31", queries[0].Get("realtime_end"))

	var records []map[string]any
	for _, msg := range readMessages(t, &out) {
		if msg["type"] == "RECORD" {
			records = append(records, msg["record"].(map[string]any))
		}
	}
	require.Len(t, records, 1)
	assert.Equal(t, "19000", records[0]["value"])
}
