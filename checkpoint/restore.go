package checkpoint

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jonwraymond/modmemo/cache"
)

// Restore reads a checkpoint into a new cache created with the configured
// policy.
func Restore(ctx context.Context, r io.Reader, opts ...Option) (*cache.Cache, *Report, error) {
	o := newOptions(opts)
	if err := o.policy.Validate(); err != nil {
		return nil, nil, err
	}
	c := cache.New(o.policy, o.cacheOpts...)
	report, err := restore(ctx, c, r, o)
	if err != nil {
		return nil, report, err
	}
	return c, report, nil
}

// RestoreInto reads a checkpoint into c.
//
// The whole stream is verified before the first insert, so a corrupt,
// tampered or mismatched checkpoint leaves c untouched. Entries that fail on
// their own, such as unknown types or conflicts with durable entries already
// in c, are listed in the Report and do not stop the rest.
func RestoreInto(ctx context.Context, c *cache.Cache, r io.Reader, opts ...Option) (*Report, error) {
	if c == nil {
		return nil, cache.ErrNilCache
	}
	return restore(ctx, c, r, newOptions(opts))
}

// Inspect reads and verifies a checkpoint without loading it.
func Inspect(ctx context.Context, r io.Reader, opts ...Option) (*Manifest, error) {
	o := newOptions(opts)
	m, _, err := read(ctx, r, o)
	return m, err
}

func restore(ctx context.Context, c *cache.Cache, r io.Reader, o options) (*Report, error) {
	m, entries, err := read(ctx, r, o)
	if err != nil {
		return nil, err
	}
	report := &Report{Manifest: *m}

	var insertOpts []cache.InsertOption
	if o.force {
		insertOpts = append(insertOpts, cache.Force())
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		value, err := o.registry.Decode(e.Type, e.Payload)
		if err != nil {
			report.Failures = append(report.Failures, EntryError{Key: e.Key, Type: e.Type, Err: err})
			continue
		}
		tag := cache.TagDurable
		if e.Tag != nil {
			tag = *e.Tag
		}
		opts := append([]cache.InsertOption{cache.WithTag(tag)}, insertOpts...)
		if err := c.Insert(ctx, e.Key, value, opts...); err != nil {
			report.Failures = append(report.Failures, EntryError{Key: e.Key, Type: e.Type, Err: err})
			continue
		}
		report.Restored++
	}
	return report, nil
}

// read parses and verifies the whole stream. Nothing is decoded into values.
func read(ctx context.Context, r io.Reader, o options) (*Manifest, []line, error) {
	br := bufio.NewReader(r)
	h := sha256.New()

	next := func() (line, []byte, error) {
		raw, err := br.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(bytes.TrimSpace(raw)) == 0 {
					return line{}, nil, io.EOF
				}
				return line{}, nil, fmt.Errorf("%w: unterminated record", ErrCorrupt)
			}
			return line{}, nil, fmt.Errorf("checkpoint: read: %w", err)
		}
		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return line{}, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		return l, raw, nil
	}

	hdr, raw, err := next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty stream", ErrCorrupt)
		}
		return nil, nil, err
	}
	if hdr.Kind != kindHeader || hdr.Format != Format {
		return nil, nil, fmt.Errorf("%w: not a %s stream", ErrCorrupt, Format)
	}
	if hdr.Version != Version {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, hdr.Version, Version)
	}
	h.Write(raw)

	m := &Manifest{
		ID:      hdr.ID,
		Format:  hdr.Format,
		Version: hdr.Version,
	}
	if hdr.CreatedAt != nil {
		m.CreatedAt = *hdr.CreatedAt
	}
	if hdr.Graph != "" {
		m.Graph = []byte(hdr.Graph)
	}

	var entries []line
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		l, raw, err := next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil, fmt.Errorf("%w: missing trailer", ErrCorrupt)
			}
			return nil, nil, err
		}
		switch l.Kind {
		case kindEntry:
			if err := cache.ValidateKey(l.Key); err != nil {
				return nil, nil, fmt.Errorf("%w: entry %d: %w", ErrCorrupt, len(entries), err)
			}
			if n := len(entries); n > 0 && entries[n-1].Key >= l.Key {
				return nil, nil, fmt.Errorf("%w: entries out of order at %s", ErrCorrupt, l.Key)
			}
			if l.Tag != nil && !l.Tag.Valid() {
				return nil, nil, fmt.Errorf("%w: entry %s has unknown tag", ErrCorrupt, l.Key)
			}
			h.Write(raw)
			entries = append(entries, l)
		case kindTrailer:
			checksum := hex.EncodeToString(h.Sum(nil))
			if l.Count == nil || *l.Count != len(entries) {
				return nil, nil, fmt.Errorf("%w: entry count does not match trailer", ErrCorrupt)
			}
			if l.Checksum != checksum {
				return nil, nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
			}
			if _, _, err := next(); !errors.Is(err, io.EOF) {
				return nil, nil, fmt.Errorf("%w: data after trailer", ErrCorrupt)
			}
			if len(o.signingKey) > 0 {
				if err := verify(o.signingKey, l.Signature, m.ID, checksum); err != nil {
					return nil, nil, err
				}
			}
			m.Count = len(entries)
			m.Checksum = checksum
			m.Signed = l.Signature != ""
			return m, entries, nil
		default:
			return nil, nil, fmt.Errorf("%w: unexpected %q record", ErrCorrupt, l.Kind)
		}
	}
}
