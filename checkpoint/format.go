package checkpoint

import (
	"errors"
	"time"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/cache"
)

const (
	// Format names the record stream.
	Format = "modmemo-checkpoint"
	// Version is the format version this package writes and reads.
	Version = 1
)

const (
	kindHeader  = "header"
	kindEntry   = "entry"
	kindTrailer = "trailer"
)

// line is the union of every record kind; Kind selects the fields in use.
type line struct {
	Kind string `json:"kind"`

	// header
	Format    string     `json:"format,omitempty"`
	Version   int        `json:"version,omitempty"`
	ID        string     `json:"id,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Graph     string     `json:"graph,omitempty"`

	// entry
	Key     cache.Key        `json:"key,omitempty"`
	Type    anyvalue.TypeTag `json:"type,omitempty"`
	Tag     *cache.Tag       `json:"tag,omitempty"`
	Payload []byte           `json:"payload,omitempty"`

	// trailer
	Count     *int   `json:"count,omitempty"`
	Checksum  string `json:"checksum,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Manifest describes a written or read checkpoint.
type Manifest struct {
	ID        string       `json:"id" yaml:"id"`
	Format    string       `json:"format" yaml:"format"`
	Version   int          `json:"version" yaml:"version"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
	Count     int          `json:"count" yaml:"count"`
	Checksum  string       `json:"checksum" yaml:"checksum"`
	Signed    bool         `json:"signed" yaml:"signed"`
	Graph     []byte       `json:"-" yaml:"-"`
	Skipped   []EntryError `json:"-" yaml:"-"`
}

// Report is the outcome of a restore.
type Report struct {
	Manifest Manifest
	// Restored counts entries inserted into the cache.
	Restored int
	// Failures lists entries that could not be restored.
	Failures []EntryError
}

// Err joins the entry failures, or returns nil when there were none.
func (r *Report) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i := range r.Failures {
		errs[i] = &r.Failures[i]
	}
	return errors.Join(errs...)
}
