package manager

import (
	"bytes"
	"context"
	"io"

	"github.com/jonwraymond/modmemo/checkpoint"
	"github.com/jonwraymond/modmemo/observe"
)

// Checkpoint writes the cache to w with the current graph configuration in
// the header. Inputs the registry cannot encode leave the graph out of the
// header; the cache entries are still written.
func (m *Manager) Checkpoint(ctx context.Context, w io.Writer, opts ...checkpoint.Option) (*checkpoint.Manifest, error) {
	opts = m.checkpointOptions(ctx, opts)
	man, err := checkpoint.Checkpoint(ctx, m.cache, w, opts...)
	if err != nil {
		return nil, err
	}
	m.logger.Info(ctx, "checkpoint written",
		observe.Field{Key: "checkpoint.id", Value: man.ID},
		observe.Field{Key: "checkpoint.entries", Value: man.Count},
	)
	return man, nil
}

// Save checkpoints the cache into s.
func (m *Manager) Save(ctx context.Context, s checkpoint.Store, opts ...checkpoint.Option) (*checkpoint.Manifest, error) {
	opts = m.checkpointOptions(ctx, opts)
	return checkpoint.Save(ctx, s, m.cache, opts...)
}

func (m *Manager) checkpointOptions(ctx context.Context, opts []checkpoint.Option) []checkpoint.Option {
	base := []checkpoint.Option{checkpoint.WithRegistry(m.registry)}
	cfg, err := m.Snapshot()
	if err != nil {
		m.logger.Warn(ctx, "graph left out of checkpoint", observe.Field{Key: "error", Value: err.Error()})
	} else {
		base = append(base, checkpoint.WithGraph(cfg))
	}
	return append(base, opts...)
}

// Restore loads a checkpoint into the cache. Entries already held durably
// are kept unless checkpoint.Overwrite is given; they are reported as
// failures.
func (m *Manager) Restore(ctx context.Context, r io.Reader, opts ...checkpoint.Option) (*checkpoint.Report, error) {
	opts = append([]checkpoint.Option{checkpoint.WithRegistry(m.registry)}, opts...)
	report, err := checkpoint.RestoreInto(ctx, m.cache, r, opts...)
	if err != nil {
		return report, err
	}
	fields := []observe.Field{
		{Key: "checkpoint.id", Value: report.Manifest.ID},
		{Key: "checkpoint.restored", Value: report.Restored},
	}
	if len(report.Failures) > 0 {
		fields = append(fields, observe.Field{Key: "checkpoint.failures", Value: len(report.Failures)})
		m.logger.Warn(ctx, "checkpoint restored with failures", fields...)
	} else {
		m.logger.Info(ctx, "checkpoint restored", fields...)
	}
	return report, nil
}

// GraphOf decodes the graph configuration stored in a checkpoint header.
// It returns nil when the checkpoint carries none.
func GraphOf(man *checkpoint.Manifest) (*Config, error) {
	if man == nil || len(man.Graph) == 0 {
		return nil, nil
	}
	return LoadConfig(bytes.NewReader(man.Graph))
}
