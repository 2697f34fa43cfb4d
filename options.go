package apkrepack

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/meigma/apkrepack/archive"
	"github.com/meigma/apkrepack/internal/deflate"
	"github.com/meigma/apkrepack/signing"
)

// Option configures a Repackager.
type Option func(*Repackager) error

// --- Signing Options ---

// WithIdentity sets the key and certificate every build is signed with.
func WithIdentity(id *signing.Identity) Option {
	return func(r *Repackager) error {
		if err := id.Validate(); err != nil {
			return err
		}
		r.identity = id
		return nil
	}
}

// WithRequireIdentity makes builds fail with ErrNoIdentity instead of
// generating an ephemeral identity when none was configured.
func WithRequireIdentity() Option {
	return func(r *Repackager) error {
		r.requireIdentity = true
		return nil
	}
}

// WithSignerName sets the base name of the .SF and signature block entries.
func WithSignerName(name string) Option {
	return func(r *Repackager) error {
		r.signOpts = append(r.signOpts, signing.WithSignerName(name))
		return nil
	}
}

// WithCreatedBy sets the Created-By attribute of the manifest and signature file.
func WithCreatedBy(s string) Option {
	return func(r *Repackager) error {
		r.signOpts = append(r.signOpts, signing.WithCreatedBy(s))
		return nil
	}
}

// --- Compression Options ---

// WithCompressionLevel sets the deflate level, from flate.HuffmanOnly (-2)
// to flate.BestCompression (9). The default is BestCompression.
func WithCompressionLevel(level int) Option {
	return func(r *Repackager) error {
		c, err := deflate.New(level)
		if err != nil {
			return err
		}
		r.compressor = c
		return nil
	}
}

// WithCompressor replaces the deflate compressor.
// The compressor must emit a raw DEFLATE stream.
func WithCompressor(c archive.Compressor) Option {
	return func(r *Repackager) error {
		if c == nil {
			return errors.New("apkrepack: nil compressor")
		}
		r.compressor = c
		return nil
	}
}

// WithSkipCompression adds predicates for paths that must be stored.
func WithSkipCompression(fns ...archive.SkipCompressionFunc) Option {
	return func(r *Repackager) error {
		r.skip = append(r.skip, fns...)
		return nil
	}
}

// WithWorkers sets how many entries are compressed concurrently.
// Zero selects runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(r *Repackager) error {
		if n < 0 {
			return fmt.Errorf("apkrepack: workers must be >= 0, got %d", n)
		}
		r.workers = n
		return nil
	}
}

// --- Modify Options ---

// WithAppendMissing makes Modify append replacements for paths that are not
// in the original archive instead of ignoring them.
func WithAppendMissing() Option {
	return func(r *Repackager) error {
		r.appendMissing = true
		return nil
	}
}

// WithMaxEntrySize limits the uncompressed size of any entry read from the
// original archive. Zero means no limit.
func WithMaxEntrySize(limit uint64) Option {
	return func(r *Repackager) error {
		r.maxEntrySize = limit
		return nil
	}
}

// --- Observability Options ---

// WithLogger sets the logger for build diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repackager) error {
		r.logger = logger
		return nil
	}
}

// WithProgress sets a callback that receives progress events.
// The callback must be safe for concurrent calls.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Repackager) error {
		r.progress = fn
		return nil
	}
}
