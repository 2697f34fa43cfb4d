// Package modify rebuilds the entry set of an existing package with
// caller-supplied replacement content.
package modify

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/meigma/apkrepack/archive"
)

// config holds configuration for Entries.
type config struct {
	appendMissing bool
	maxEntrySize  uint64
	entryOpts     []archive.EntryOption
	logger        *slog.Logger
}

// Option configures Entries.
type Option func(*config)

// WithAppendMissing adds replacements whose paths are not in the original
// archive as new entries, in sorted path order after the original entries.
// Without it such replacements are ignored.
func WithAppendMissing() Option {
	return func(cfg *config) {
		cfg.appendMissing = true
	}
}

// WithMaxEntrySize rejects original entries larger than limit bytes once
// decompressed. Zero disables the limit.
func WithMaxEntrySize(limit uint64) Option {
	return func(cfg *config) {
		cfg.maxEntrySize = limit
	}
}

// WithEntryOptions passes options through to archive.NewEntries.
func WithEntryOptions(opts ...archive.EntryOption) Option {
	return func(cfg *config) {
		cfg.entryOpts = append(cfg.entryOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// Files merges replacements over the content of original.
//
// Every entry under META-INF/ is dropped. The remaining entries keep their
// original order. original is not modified.
func Files(original []byte, replacements map[string][]byte, opts ...Option) ([]archive.File, error) {
	cfg := newConfig(opts)

	files, err := archive.ReadFiles(original, archive.ReadWithMaxEntrySize(cfg.maxEntrySize))
	if err != nil {
		return nil, err
	}

	used := make(map[string]struct{}, len(replacements))
	out := make([]archive.File, 0, len(files)+len(replacements))
	dropped := 0
	for _, f := range files {
		if archive.InMetadataDir(f.Path) {
			dropped++
			continue
		}
		if raw, ok := replacements[f.Path]; ok {
			f.Raw = raw
			used[f.Path] = struct{}{}
		}
		out = append(out, f)
	}

	for _, p := range slices.Sorted(maps.Keys(replacements)) {
		if _, ok := used[p]; ok {
			continue
		}
		if !cfg.appendMissing || archive.InMetadataDir(p) {
			cfg.logger.Debug("ignoring replacement for path not in archive", "path", p)
			continue
		}
		out = append(out, archive.File{Path: p, Raw: replacements[p]})
	}

	cfg.logger.Debug("merged replacements",
		"entries", len(out),
		"replaced", len(used),
		"dropped_metadata", dropped,
	)
	return out, nil
}

// Entries merges replacements over original and classifies and compresses
// the result, ready for archive.Assemble.
func Entries(ctx context.Context, original []byte, replacements map[string][]byte, opts ...Option) ([]*archive.Entry, error) {
	cfg := newConfig(opts)

	files, err := Files(original, replacements, opts...)
	if err != nil {
		return nil, err
	}

	entryOpts := append([]archive.EntryOption{archive.WithLogger(cfg.logger)}, cfg.entryOpts...)
	return archive.NewEntries(ctx, files, entryOpts...)
}

func newConfig(opts []Option) config {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}
