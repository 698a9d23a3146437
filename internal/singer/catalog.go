package singer

import (
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

var ErrMissingStreams = errors.New("catalog missing streams")

type Metadata struct {
	Breadcrumb []string       `json:"breadcrumb"`
	Metadata   map[string]any `json:"metadata"`
}

// CatalogEntry describes one stream. Replication control fields are unset
// for this tap and are omitted from the document.
type CatalogEntry struct {
	TapStreamID       string         `json:"tap_stream_id"`
	Stream            string         `json:"stream"`
	Schema            map[string]any `json:"schema"`
	KeyProperties     []string       `json:"key_properties"`
	Metadata          []Metadata     `json:"metadata"`
	ReplicationKey    string         `json:"replication_key,omitempty"`
	ReplicationMethod string         `json:"replication_method,omitempty"`
	IsView            *bool          `json:"is_view,omitempty"`
	Database          string         `json:"database_name,omitempty"`
	Table             string         `json:"table_name,omitempty"`
	RowCount          *int           `json:"row_count,omitempty"`
	StreamAlias       string         `json:"stream_alias,omitempty"`
}

type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

// Get returns the entry with the given tap_stream_id.
func (c *Catalog) Get(tapStreamID string) (CatalogEntry, bool) {
	for _, s := range c.Streams {
		if s.TapStreamID == tapStreamID {
			return s, true
		}
	}
	return CatalogEntry{}, false
}

// Dump writes the catalog as an indented JSON document.
func (c *Catalog) Dump(w io.Writer) error {
	streams := c.Streams
	if streams == nil {
		streams = []CatalogEntry{}
	}

	bs, err := json.MarshalIndent(Catalog{Streams: streams}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}
	bs = append(bs, '\n')

	_, err = w.Write(bs)
	return err
}

// ReadCatalog parses a catalog document. The streams key must be present.
func ReadCatalog(r io.Reader) (*Catalog, error) {
	var raw struct {
		Streams *[]CatalogEntry `json:"streams"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if raw.Streams == nil {
		return nil, ErrMissingStreams
	}
	return &Catalog{Streams: *raw.Streams}, nil
}
