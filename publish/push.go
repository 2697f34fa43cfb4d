package publish

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry"
)

// pushConfig holds configuration for Push.
type pushConfig struct {
	tags        []string
	annotations map[string]string
	title       string
	signer      string
	logger      *slog.Logger
}

// PushOption configures Push.
type PushOption func(*pushConfig)

// WithTags applies additional tags to the pushed manifest.
func WithTags(tags ...string) PushOption {
	return func(cfg *pushConfig) {
		cfg.tags = append(cfg.tags, tags...)
	}
}

// WithAnnotations adds manifest annotations. Keys set here override the
// defaults written by Push.
func WithAnnotations(annotations map[string]string) PushOption {
	return func(cfg *pushConfig) {
		if cfg.annotations == nil {
			cfg.annotations = make(map[string]string, len(annotations))
		}
		maps.Copy(cfg.annotations, annotations)
	}
}

// WithTitle sets the layer's file name annotation.
func WithTitle(name string) PushOption {
	return func(cfg *pushConfig) {
		cfg.title = name
	}
}

// WithSigner records the signing certificate subject on the manifest.
func WithSigner(subject string) PushOption {
	return func(cfg *pushConfig) {
		cfg.signer = subject
	}
}

// WithLogger sets the logger for push diagnostics.
func WithLogger(logger *slog.Logger) PushOption {
	return func(cfg *pushConfig) {
		cfg.logger = logger
	}
}

// Push stores apk in target and tags the resulting manifest.
//
// The archive is pushed as one layer blob, then an OCI 1.1 image manifest
// with ArtifactType and an empty config is packed around it and tagged. The
// manifest descriptor is returned.
func Push(ctx context.Context, target oras.Target, tag string, apk []byte, opts ...PushOption) (ocispec.Descriptor, error) {
	cfg := pushConfig{title: "package.apk"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	tags := append([]string{tag}, cfg.tags...)
	for _, t := range tags {
		if err := validateTag(t); err != nil {
			return ocispec.Descriptor{}, err
		}
	}

	layer, err := oras.PushBytes(ctx, target, MediaTypeAPK, apk)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("push package blob: %w", mapError(err))
	}
	layer.Annotations = map[string]string{ocispec.AnnotationTitle: cfg.title}
	cfg.logger.Debug("pushed package blob", "digest", layer.Digest.String(), "size", layer.Size)

	annotations := map[string]string{
		AnnotationPackageSize: strconv.Itoa(len(apk)),
	}
	if cfg.signer != "" {
		annotations[AnnotationSigner] = cfg.signer
	}
	maps.Copy(annotations, cfg.annotations)

	manifest, err := oras.PackManifest(ctx, target, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers:              []ocispec.Descriptor{layer},
		ManifestAnnotations: annotations,
	})
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("pack manifest: %w", mapError(err))
	}

	for _, t := range tags {
		if err := target.Tag(ctx, manifest, t); err != nil {
			return ocispec.Descriptor{}, fmt.Errorf("tag %q: %w", t, mapError(err))
		}
	}

	cfg.logger.Info("pushed package",
		"digest", manifest.Digest.String(),
		"tags", tags,
		"size", len(apk),
	)
	return manifest, nil
}

func validateTag(tag string) error {
	ref := registry.Reference{Reference: tag}
	if err := ref.ValidateReferenceAsTag(); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidReference, tag, err)
	}
	return nil
}
