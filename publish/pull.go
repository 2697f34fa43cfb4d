package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"

	"github.com/meigma/apkrepack/signing"
)

// DefaultMaxPackageSize bounds the layer size Pull accepts.
const DefaultMaxPackageSize int64 = 1 << 30 // 1 GiB

// Package is a pulled package and the descriptors it was found under.
type Package struct {
	// Manifest is the descriptor of the package manifest.
	Manifest ocispec.Descriptor

	// Layer is the descriptor of the archive blob.
	Layer ocispec.Descriptor

	// Annotations are the manifest annotations.
	Annotations map[string]string

	// Data is the archive.
	Data []byte

	// Verification is set when the pull verified the package signature.
	Verification *signing.Verification
}

// Created returns the manifest creation time, or the zero time if the
// annotation is missing or malformed.
func (p *Package) Created() time.Time {
	ts, ok := p.Annotations[ocispec.AnnotationCreated]
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}

// pullConfig holds configuration for Pull.
type pullConfig struct {
	maxSize         int64
	verifySignature bool
	logger          *slog.Logger
}

// PullOption configures Pull.
type PullOption func(*pullConfig)

// WithMaxSize limits the package layer size. Zero or negative disables the limit.
func WithMaxSize(n int64) PullOption {
	return func(cfg *pullConfig) {
		cfg.maxSize = n
	}
}

// WithSignatureVerification verifies the package's JAR signature after the
// layer digest has been checked.
func WithSignatureVerification() PullOption {
	return func(cfg *pullConfig) {
		cfg.verifySignature = true
	}
}

// WithPullLogger sets the logger for pull diagnostics.
func WithPullLogger(logger *slog.Logger) PullOption {
	return func(cfg *pullConfig) {
		cfg.logger = logger
	}
}

// Pull resolves ref in target and fetches the package it names.
//
// The manifest must carry ArtifactType and exactly one MediaTypeAPK layer.
// The layer content is checked against its descriptor digest before it is
// returned.
func Pull(ctx context.Context, target oras.ReadOnlyTarget, ref string, opts ...PullOption) (*Package, error) {
	cfg := pullConfig{maxSize: DefaultMaxPackageSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidReference)
	}

	desc, err := target.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", ref, mapError(err))
	}
	cfg.logger.Debug("resolved reference", "ref", ref, "digest", desc.Digest.String())

	if desc.MediaType != ocispec.MediaTypeImageManifest {
		return nil, fmt.Errorf("%w: unexpected media type %q", ErrInvalidManifest, desc.MediaType)
	}
	raw, err := content.FetchAll(ctx, target, desc)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", mapError(err))
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	layer, err := packageLayer(&manifest)
	if err != nil {
		return nil, err
	}
	if cfg.maxSize > 0 && layer.Size > cfg.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrTooLarge, layer.Size, cfg.maxSize)
	}

	data, err := content.FetchAll(ctx, target, layer)
	if err != nil {
		return nil, fmt.Errorf("fetch package blob: %w", mapError(err))
	}
	if got := digest.FromBytes(data); got != layer.Digest {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrDigestMismatch, layer.Digest, got)
	}

	pkg := &Package{
		Manifest:    desc,
		Layer:       layer,
		Annotations: manifest.Annotations,
		Data:        data,
	}
	if cfg.verifySignature {
		v, err := signing.Verify(data)
		if err != nil {
			return nil, err
		}
		pkg.Verification = v
	}

	cfg.logger.Info("pulled package", "ref", ref, "digest", layer.Digest.String(), "size", layer.Size)
	return pkg, nil
}

// packageLayer validates manifest and returns its archive layer.
func packageLayer(manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	if manifest.MediaType != ocispec.MediaTypeImageManifest {
		return ocispec.Descriptor{}, fmt.Errorf("%w: unexpected manifest media type %q", ErrInvalidManifest, manifest.MediaType)
	}
	if manifest.ArtifactType != ArtifactType {
		return ocispec.Descriptor{}, fmt.Errorf("%w: unexpected artifact type %q", ErrInvalidManifest, manifest.ArtifactType)
	}
	if len(manifest.Layers) != 1 {
		return ocispec.Descriptor{}, fmt.Errorf("%w: expected 1 layer, got %d", ErrInvalidManifest, len(manifest.Layers))
	}
	layer := manifest.Layers[0]
	if layer.MediaType != MediaTypeAPK {
		return ocispec.Descriptor{}, fmt.Errorf("%w: unexpected layer media type %q", ErrInvalidManifest, layer.MediaType)
	}
	if err := layer.Digest.Validate(); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: layer digest: %v", ErrInvalidManifest, err)
	}
	return layer, nil
}
