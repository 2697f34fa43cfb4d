package signing

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/digitorus/pkcs7"

	"github.com/meigma/apkrepack/archive"
	"github.com/meigma/apkrepack/internal/pathutil"
	"github.com/meigma/apkrepack/internal/ziptype"
)

// DefaultSignerName is the base name of the .SF and signature block files.
const DefaultSignerName = "CERT"

// DefaultCreatedBy is written to the manifest and signature file headers.
const DefaultCreatedBy = "1.0 (apkrepack)"

// ManifestPath is the fixed location of the signing manifest.
const ManifestPath = archive.MetadataDir + "MANIFEST.MF"

var signerNameRe = regexp.MustCompile(`^[A-Z0-9_-]{1,8}$`)

// signConfig holds configuration for Sign.
type signConfig struct {
	signerName string
	createdBy  string
	logger     *slog.Logger
}

// SignOption configures Sign.
type SignOption func(*signConfig)

// WithSignerName sets the base name of the .SF and signature block entries.
// It must be 1 to 8 characters from [A-Z0-9_-].
func WithSignerName(name string) SignOption {
	return func(cfg *signConfig) {
		cfg.signerName = name
	}
}

// WithCreatedBy sets the Created-By attribute.
func WithCreatedBy(s string) SignOption {
	return func(cfg *signConfig) {
		cfg.createdBy = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SignOption {
	return func(cfg *signConfig) {
		cfg.logger = logger
	}
}

// Artifacts holds the three signing files.
type Artifacts struct {
	Manifest      []byte
	SignatureFile []byte
	Block         []byte

	SignatureFilePath string
	BlockPath         string
}

// Entries returns the artifacts as stored, unaligned archive entries in the
// order manifest, signature file, signature block.
func (a *Artifacts) Entries() []*archive.Entry {
	return []*archive.Entry{
		archive.NewStoredEntry(ManifestPath, a.Manifest, false),
		archive.NewStoredEntry(a.SignatureFilePath, a.SignatureFile, false),
		archive.NewStoredEntry(a.BlockPath, a.Block, false),
	}
}

// Sign digests files and returns the signing artifacts as entries to append
// before the final assembly pass.
//
// files must hold each entry's uncompressed content as it will appear in the
// final archive. Existing signing metadata and directory entries are not
// digested. Any digest or signing failure is returned wrapped with ErrSigning
// and no artifacts are produced.
func Sign(files []archive.File, id *Identity, opts ...SignOption) ([]*archive.Entry, error) {
	a, err := BuildArtifacts(files, id, opts...)
	if err != nil {
		return nil, err
	}
	return a.Entries(), nil
}

// BuildArtifacts is Sign without the conversion to entries.
func BuildArtifacts(files []archive.File, id *Identity, opts ...SignOption) (*Artifacts, error) {
	cfg := signConfig{
		signerName: DefaultSignerName,
		createdBy:  DefaultCreatedBy,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if !signerNameRe.MatchString(cfg.signerName) {
		return nil, fmt.Errorf("%w: invalid signer name %q", ziptype.ErrSigning, cfg.signerName)
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	ext, err := id.BlockExtension()
	if err != nil {
		return nil, err
	}

	manifest, sections, err := buildManifest(files, cfg.createdBy)
	if err != nil {
		return nil, err
	}
	sf, err := buildSignatureFile(manifest, sections, cfg.createdBy)
	if err != nil {
		return nil, err
	}
	block, err := signBlock(sf, id)
	if err != nil {
		return nil, err
	}

	cfg.logger.Debug("signed entries",
		"entries", len(sections)-1,
		"signer", id.Certificate.Subject.String(),
		"block", ext,
	)
	return &Artifacts{
		Manifest:          manifest,
		SignatureFile:     sf,
		Block:             block,
		SignatureFilePath: archive.MetadataDir + cfg.signerName + ".SF",
		BlockPath:         archive.MetadataDir + cfg.signerName + "." + ext,
	}, nil
}

// manifestSection pairs a manifest section's name with its exact bytes.
type manifestSection struct {
	name string
	raw  []byte
}

// buildManifest returns the manifest text and its sections, the main
// section first and per-entry sections sorted by path.
func buildManifest(files []archive.File, createdBy string) ([]byte, []manifestSection, error) {
	sorted := make([]archive.File, 0, len(files))
	for _, f := range files {
		if archive.IsSigningMetadata(f.Path) || pathutil.IsDir(f.Path) {
			continue
		}
		sorted = append(sorted, f)
	}
	slices.SortFunc(sorted, func(a, b archive.File) int {
		return strings.Compare(a.Path, b.Path)
	})

	var w sectionWriter
	w.attr(manifestVerKey, "1.0")
	w.attr(createdByAttr, createdBy)
	sections := []manifestSection{{raw: w.end()}}

	for i, f := range sorted {
		if i > 0 && sorted[i-1].Path == f.Path {
			return nil, nil, fmt.Errorf("%w: %s", ziptype.ErrDuplicateEntry, f.Path)
		}
		d, err := digestB64(f.Raw)
		if err != nil {
			return nil, nil, err
		}
		w.attr(nameAttr, f.Path)
		w.attr(digestAttr, d)
		sections = append(sections, manifestSection{name: f.Path, raw: w.end()})
	}

	var manifest []byte
	for _, s := range sections {
		manifest = append(manifest, s.raw...)
	}
	return manifest, sections, nil
}

// buildSignatureFile digests the whole manifest, its main section and each
// entry section.
func buildSignatureFile(manifest []byte, sections []manifestSection, createdBy string) ([]byte, error) {
	whole, err := digestB64(manifest)
	if err != nil {
		return nil, err
	}
	mainAttrs, err := digestB64(sections[0].raw)
	if err != nil {
		return nil, err
	}

	var w sectionWriter
	w.attr(sigVerKey, "1.0")
	w.attr(createdByAttr, createdBy)
	w.attr(manifestAttr, whole)
	w.attr(mainAttrsAttr, mainAttrs)
	sf := w.end()

	for _, s := range sections[1:] {
		d, err := digestB64(s.raw)
		if err != nil {
			return nil, err
		}
		w.attr(nameAttr, s.name)
		w.attr(digestAttr, d)
		sf = append(sf, w.end()...)
	}
	return sf, nil
}

// signBlock produces a detached PKCS#7 SignedData over sf. The signer info
// carries content type, message digest and signing time as authenticated
// attributes.
func signBlock(sf []byte, id *Identity) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(sf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ziptype.ErrSigning, err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(id.Certificate, id.PrivateKey, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("%w: add signer: %w", ziptype.ErrSigning, err)
	}
	sd.Detach()
	block, err := sd.Finish()
	if err != nil {
		return nil, fmt.Errorf("%w: finish signature block: %w", ziptype.ErrSigning, err)
	}
	return block, nil
}
