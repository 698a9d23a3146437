package archive

import (
	"time"

	"github.com/google/uuid"
)

/*
The manifest is a record of what a sync run fetched and emitted.
It is written for failed runs too, so an archive can be audited
without replaying the stream.
*/

type Manifest struct {
	SyncID            uuid.UUID `json:"sync_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	Stream            string    `json:"stream"`
	SeriesID          string    `json:"series_id"`
	RealtimeStart     string    `json:"realtime_start,omitempty"`
	RealtimeEnd       string    `json:"realtime_end,omitempty"`
	Format            string    `json:"format"`
	Objects           []string  `json:"objects"`
	NumSourceRecords  int       `json:"num_source_records"`
	NumRecordsEmitted int       `json:"num_records_emitted"`
	State             string    `json:"state"`
	Completed         bool      `json:"completed"`
	Error             string    `json:"error,omitempty"`
}
