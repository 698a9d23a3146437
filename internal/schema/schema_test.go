package schema

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundled(t *testing.T) {
	r, err := LoadBundled()
	require.NoError(t, err)

	s, err := r.Get("federal_reserve_series")
	require.NoError(t, err)
	assert.Equal(t, "federal_reserve_series", s.ID)
	assert.Equal(t, "object", s.Document["type"])

	props, ok := s.Document["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "id")
	assert.Contains(t, props, "realtime_start")
}

func TestLoad(t *testing.T) {
	t.Run("id is the file stem", func(t *testing.T) {
		fsys := fstest.MapFS{
			"b_stream.json": {Data: []byte(`{"type": "object", "title": "not the id"}`)},
			"a_stream.json": {Data: []byte(`{"type": "object"}`)},
			"README.md":     {Data: []byte(`ignored`)},
		}

		r, err := Load(fsys)
		require.NoError(t, err)
		assert.Equal(t, []string{"a_stream", "b_stream"}, r.IDs())
		assert.Equal(t, 2, r.Len())

		s, err := r.Get("b_stream")
		require.NoError(t, err)
		assert.Equal(t, "not the id", s.Document["title"])
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := LoadBundled()
		require.NoError(t, err)
		second, err := LoadBundled()
		require.NoError(t, err)

		assert.Equal(t, first.IDs(), second.IDs())
		assert.Equal(t, first.All(), second.All())
	})

	t.Run("malformed json fails the whole load", func(t *testing.T) {
		fsys := fstest.MapFS{
			"good.json": {Data: []byte(`{"type": "object"}`)},
			"bad.json":  {Data: []byte(`{"type": `)},
		}

		r, err := Load(fsys)
		assert.Error(t, err)
		assert.Nil(t, r)
	})

	t.Run("invalid json schema", func(t *testing.T) {
		fsys := fstest.MapFS{
			"bad.json": {Data: []byte(`{"type": 5}`)},
		}

		_, err := Load(fsys)
		assert.Error(t, err)
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := Load(fstest.MapFS{})
		assert.ErrorIs(t, err, ErrNoSchemas)
	})

	t.Run("unknown id", func(t *testing.T) {
		r, err := LoadBundled()
		require.NoError(t, err)

		_, err = r.Get("missing")
		assert.ErrorIs(t, err, ErrSchemaNotFound)
	})
}
