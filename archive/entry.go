package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/apkrepack/internal/checksum"
	"github.com/meigma/apkrepack/internal/deflate"
	"github.com/meigma/apkrepack/internal/pathutil"
	"github.com/meigma/apkrepack/internal/ziptype"
)

// Entry is one file inside an archive, classified and ready to be written.
//
// Data is written verbatim as the entry payload. For stored entries Data and
// Raw are the same slice. CRC32 is always computed over Raw.
type Entry struct {
	Path             string
	Raw              []byte
	Data             []byte
	Method           Method
	CRC32            uint32
	UncompressedSize uint64
	CompressedSize   uint64
	Align            bool
}

// File is an uncompressed path and content pair.
type File struct {
	Path string
	Raw  []byte
}

// Files converts a path to content map to a slice sorted by path.
func Files(m map[string][]byte) []File {
	out := make([]File, 0, len(m))
	for _, p := range slices.Sorted(maps.Keys(m)) {
		out = append(out, File{Path: p, Raw: m[p]})
	}
	return out
}

// Compressor produces raw deflate streams.
type Compressor interface {
	Compress(ctx context.Context, b []byte) ([]byte, error)
}

var defaultCompressor = sync.OnceValues(func() (*deflate.Compressor, error) {
	return deflate.New(deflate.DefaultLevel)
})

// entryConfig holds configuration for entry construction.
type entryConfig struct {
	compressor Compressor
	skip       []SkipCompressionFunc
	workers    int
	progress   ziptype.ProgressFunc
	logger     *slog.Logger
}

// EntryOption configures entry construction.
type EntryOption func(*entryConfig)

// WithCompressor sets the compressor used for deflated entries.
func WithCompressor(c Compressor) EntryOption {
	return func(cfg *entryConfig) {
		cfg.compressor = c
	}
}

// WithSkipCompression adds predicates that force matching paths to be stored.
func WithSkipCompression(fns ...SkipCompressionFunc) EntryOption {
	return func(cfg *entryConfig) {
		cfg.skip = append(cfg.skip, fns...)
	}
}

// WithWorkers sets how many entries are compressed concurrently.
// Zero uses GOMAXPROCS; values below zero force serial processing.
func WithWorkers(n int) EntryOption {
	return func(cfg *entryConfig) {
		cfg.workers = n
	}
}

// WithProgress sets a callback that receives one event per finished entry.
func WithProgress(fn ziptype.ProgressFunc) EntryOption {
	return func(cfg *entryConfig) {
		cfg.progress = fn
	}
}

// WithLogger sets the logger for entry construction.
func WithLogger(logger *slog.Logger) EntryOption {
	return func(cfg *entryConfig) {
		cfg.logger = logger
	}
}

func newEntryConfig(opts []EntryOption) (entryConfig, error) {
	var cfg entryConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.compressor == nil {
		c, err := defaultCompressor()
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", ziptype.ErrCompression, err)
		}
		cfg.compressor = c
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg, nil
}

// NewEntry classifies p and compresses raw when its class allows it.
//
// Deflated output that is not strictly smaller than raw is discarded and the
// entry is stored instead. A compressor error is returned as is; it is never
// turned into a silent store.
func NewEntry(ctx context.Context, p string, raw []byte, opts ...EntryOption) (*Entry, error) {
	cfg, err := newEntryConfig(opts)
	if err != nil {
		return nil, err
	}
	return cfg.build(ctx, p, raw)
}

// NewEntries builds entries for files, preserving their order.
//
// Entries are compressed concurrently; the first failure cancels the rest and
// is returned. Duplicate paths are rejected with ErrDuplicateEntry.
func NewEntries(ctx context.Context, files []File, opts ...EntryOption) ([]*Entry, error) {
	cfg, err := newEntryConfig(opts)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if _, ok := seen[f.Path]; ok {
			return nil, fmt.Errorf("%w: %s", ziptype.ErrDuplicateEntry, f.Path)
		}
		seen[f.Path] = struct{}{}
	}

	entries := make([]*Entry, len(files))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workerCount(len(files)))
	for i, f := range files {
		g.Go(func() error {
			e, err := cfg.build(gctx, f.Path, f.Raw)
			if err != nil {
				return err
			}
			entries[i] = e
			cfg.report(f.Path, int(done.Add(1)), len(files))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// NewStoredEntry returns an entry stored verbatim, bypassing classification.
func NewStoredEntry(p string, raw []byte, align bool) *Entry {
	size := uint64(len(raw))
	return &Entry{
		Path:             p,
		Raw:              raw,
		Data:             raw,
		Method:           Store,
		CRC32:            checksum.Checksum(raw),
		UncompressedSize: size,
		CompressedSize:   size,
		Align:            align,
	}
}

func (cfg *entryConfig) build(ctx context.Context, p string, raw []byte) (*Entry, error) {
	if err := pathutil.Check(p); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	class := Classify(p, cfg.skip...)
	if class.Method == Store || len(raw) == 0 {
		return NewStoredEntry(p, raw, class.Align), nil
	}

	compressed, err := cfg.compressor.Compress(ctx, raw)
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, ziptype.ErrCompression) {
			err = fmt.Errorf("%w: %w", ziptype.ErrCompression, err)
		}
		return nil, fmt.Errorf("compress %s: %w", p, err)
	}
	if len(compressed) >= len(raw) {
		cfg.logger.Debug("storing entry, deflate did not shrink it", "path", p, "size", len(raw), "deflated", len(compressed))
		return NewStoredEntry(p, raw, class.Align), nil
	}

	return &Entry{
		Path:             p,
		Raw:              raw,
		Data:             compressed,
		Method:           Deflate,
		CRC32:            checksum.Checksum(raw),
		UncompressedSize: uint64(len(raw)),
		CompressedSize:   uint64(len(compressed)),
		Align:            class.Align,
	}, nil
}

func (cfg *entryConfig) workerCount(n int) int {
	switch {
	case cfg.workers < 0:
		return 1
	case cfg.workers > 0:
		return cfg.workers
	}
	return max(1, min(n, runtime.GOMAXPROCS(0)))
}

func (cfg *entryConfig) report(p string, done, total int) {
	if cfg.progress == nil {
		return
	}
	cfg.progress(ziptype.ProgressEvent{
		Stage:      ziptype.StageCompressing,
		Path:       p,
		FilesDone:  done,
		FilesTotal: total,
	})
}
