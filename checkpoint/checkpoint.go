package checkpoint

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/modmemo/cache"
)

// Checkpoint writes the entries of c to w and returns the manifest of what
// was written.
func Checkpoint(ctx context.Context, c *cache.Cache, w io.Writer, opts ...Option) (*Manifest, error) {
	if c == nil {
		return nil, cache.ErrNilCache
	}
	o := newOptions(opts)

	created := o.now().UTC()
	id, err := ulid.New(ulid.Timestamp(created), ulid.DefaultEntropy())
	if err != nil {
		return nil, fmt.Errorf("checkpoint: snapshot id: %w", err)
	}
	m := &Manifest{
		ID:        id.String(),
		Format:    Format,
		Version:   Version,
		CreatedAt: created,
	}

	hdr := line{Kind: kindHeader, Format: Format, Version: Version, ID: m.ID, CreatedAt: &created}
	if o.graph != nil {
		graph, err := yaml.Marshal(o.graph)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: encode graph: %w", err)
		}
		hdr.Graph = string(graph)
		m.Graph = graph
	}

	lw := newLineWriter(w)
	if err := lw.write(hdr); err != nil {
		return nil, err
	}
	for _, e := range c.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.Tag != cache.TagDurable && !o.includeSession {
			continue
		}
		tag, payload, err := o.registry.Encode(e.Value)
		if err != nil {
			entryErr := EntryError{Key: e.Key, Type: e.Value.Type(), Err: err}
			if o.skipUnencodable {
				m.Skipped = append(m.Skipped, entryErr)
				continue
			}
			return nil, &entryErr
		}
		t := e.Tag
		if err := lw.write(line{Kind: kindEntry, Key: e.Key, Type: tag, Tag: &t, Payload: payload}); err != nil {
			return nil, err
		}
		m.Count++
	}

	m.Checksum = lw.sum()
	count := m.Count
	trl := line{Kind: kindTrailer, Count: &count, Checksum: m.Checksum}
	if len(o.signingKey) > 0 {
		sig, err := sign(o.signingKey, m.ID, m.Checksum)
		if err != nil {
			return nil, err
		}
		trl.Signature = sig
		m.Signed = true
	}
	if err := lw.write(trl); err != nil {
		return nil, err
	}
	if err := lw.flush(); err != nil {
		return nil, err
	}
	return m, nil
}

type lineWriter struct {
	w *bufio.Writer
	h hash.Hash
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: bufio.NewWriter(w), h: sha256.New()}
}

func (lw *lineWriter) write(l line) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("checkpoint: encode %s: %w", l.Kind, err)
	}
	data = append(data, '\n')
	if l.Kind != kindTrailer {
		lw.h.Write(data)
	}
	if _, err := lw.w.Write(data); err != nil {
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	return nil
}

func (lw *lineWriter) sum() string {
	return hex.EncodeToString(lw.h.Sum(nil))
}

func (lw *lineWriter) flush() error {
	if err := lw.w.Flush(); err != nil {
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	return nil
}
