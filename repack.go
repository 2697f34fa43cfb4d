package apkrepack

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/meigma/apkrepack/archive"
	"github.com/meigma/apkrepack/modify"
	"github.com/meigma/apkrepack/signing"
)

// Re-export signing types used in the public API.
type (
	// Identity is a signing key and the certificate embedded in signature blocks.
	Identity = signing.Identity

	// Verification is the result of a successful Verify.
	Verification = signing.Verification
)

// Repackager builds signed, aligned packages.
//
// A Repackager holds configuration only and is safe for concurrent use;
// concurrent builds share nothing.
type Repackager struct {
	logger          *slog.Logger
	progress        ProgressFunc
	identity        *signing.Identity
	requireIdentity bool
	signOpts        []signing.SignOption
	compressor      archive.Compressor
	skip            []archive.SkipCompressionFunc
	workers         int
	appendMissing   bool
	maxEntrySize    uint64
}

// New creates a Repackager with the given options.
func New(opts ...Option) (*Repackager, error) {
	r := &Repackager{}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Modify replaces entries of original and returns the signed result.
//
// Every entry under META-INF/ is dropped and fresh signing metadata is
// written. Replacement paths that are not in original are ignored unless
// WithAppendMissing is set. No output is returned on any failure.
func (r *Repackager) Modify(ctx context.Context, original []byte, replacements map[string][]byte) ([]byte, error) {
	log := r.log()
	r.report(ProgressEvent{Stage: StageReading})

	opts := []modify.Option{
		modify.WithLogger(log),
		modify.WithMaxEntrySize(r.maxEntrySize),
		modify.WithEntryOptions(r.entryOptions()...),
	}
	if r.appendMissing {
		opts = append(opts, modify.WithAppendMissing())
	}
	entries, err := modify.Entries(ctx, original, replacements, opts...)
	if err != nil {
		return nil, err
	}
	return r.finish(ctx, entries)
}

// Build creates a signed package from a complete set of files.
//
// Entries are written in sorted path order. Signing metadata in files is
// skipped since it would be replaced by the build's own.
func (r *Repackager) Build(ctx context.Context, files map[string][]byte) ([]byte, error) {
	log := r.log()

	list := make([]archive.File, 0, len(files))
	for _, p := range slices.Sorted(maps.Keys(files)) {
		if archive.IsSigningMetadata(p) {
			log.Debug("skipping signing metadata in input", "path", p)
			continue
		}
		list = append(list, archive.File{Path: p, Raw: files[p]})
	}

	entries, err := archive.NewEntries(ctx, list, r.entryOptions()...)
	if err != nil {
		return nil, err
	}
	return r.finish(ctx, entries)
}

// finish runs both assembly passes around the signer.
func (r *Repackager) finish(ctx context.Context, entries []*archive.Entry) ([]byte, error) {
	log := r.log()

	id, err := r.signingIdentity()
	if err != nil {
		return nil, err
	}

	r.report(ProgressEvent{Stage: StageAssembling, FilesTotal: len(entries)})
	unsigned, err := archive.Assemble(entries)
	if err != nil {
		return nil, fmt.Errorf("assemble unsigned archive: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.report(ProgressEvent{Stage: StageSigning, FilesTotal: len(entries)})
	files, err := archive.ReadFiles(unsigned)
	if err != nil {
		return nil, fmt.Errorf("read back unsigned archive: %w", err)
	}
	signOpts := append([]signing.SignOption{signing.WithLogger(log)}, r.signOpts...)
	sigEntries, err := signing.Sign(files, id, signOpts...)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := slices.Concat(entries, sigEntries)
	r.report(ProgressEvent{Stage: StageAssembling, FilesTotal: len(all)})
	signed, err := archive.Assemble(all)
	if err != nil {
		return nil, fmt.Errorf("assemble signed archive: %w", err)
	}
	if err := archive.CheckAlignment(signed); err != nil {
		return nil, err
	}

	r.report(ProgressEvent{Stage: StageDone, FilesDone: len(all), FilesTotal: len(all)})
	log.Info("built package",
		"entries", len(all),
		"size", len(signed),
		"unsigned_size", len(unsigned),
	)
	return signed, nil
}

// signingIdentity returns the configured identity or, unless one is
// required, a freshly generated one.
func (r *Repackager) signingIdentity() (*signing.Identity, error) {
	if r.identity != nil {
		return r.identity, nil
	}
	if r.requireIdentity {
		return nil, ErrNoIdentity
	}
	id, err := signing.GenerateIdentity()
	if err != nil {
		return nil, err
	}
	r.log().Warn("no signing identity configured; signed with an ephemeral certificate",
		"subject", id.Certificate.Subject.String(),
		"serial", id.Certificate.SerialNumber.Text(16),
	)
	return id, nil
}

func (r *Repackager) entryOptions() []archive.EntryOption {
	opts := []archive.EntryOption{
		archive.WithLogger(r.log()),
		archive.WithWorkers(r.workers),
	}
	if r.compressor != nil {
		opts = append(opts, archive.WithCompressor(r.compressor))
	}
	if len(r.skip) > 0 {
		opts = append(opts, archive.WithSkipCompression(r.skip...))
	}
	if r.progress != nil {
		opts = append(opts, archive.WithProgress(r.progress))
	}
	return opts
}

func (r *Repackager) report(ev ProgressEvent) {
	if r.progress != nil {
		r.progress(ev)
	}
}

func (r *Repackager) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.New(slog.DiscardHandler)
}

// GenerateIdentity creates a fresh key pair and self-signed certificate.
func GenerateIdentity(opts ...signing.IdentityOption) (*Identity, error) {
	return signing.GenerateIdentity(opts...)
}

// LoadIdentity parses a PEM certificate and private key.
func LoadIdentity(certPEM, keyPEM []byte) (*Identity, error) {
	return signing.LoadIdentity(certPEM, keyPEM)
}

// Verify checks the JAR signature of a package.
func Verify(apk []byte) (*Verification, error) {
	return signing.Verify(apk)
}

// Check parses the layout of a package and verifies that every stored entry
// requiring alignment starts on a 4-byte boundary.
func Check(apk []byte) (*archive.Layout, error) {
	layout, err := archive.Inspect(apk)
	if err != nil {
		return nil, err
	}
	if err := archive.CheckAlignment(apk); err != nil {
		return nil, err
	}
	return layout, nil
}
