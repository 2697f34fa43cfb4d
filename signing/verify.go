package signing

import (
	"crypto/x509"
	"fmt"
	"path"
	"strings"

	"github.com/digitorus/pkcs7"

	"github.com/meigma/apkrepack/archive"
	"github.com/meigma/apkrepack/internal/pathutil"
	"github.com/meigma/apkrepack/internal/ziptype"
)

// Verification is the result of a successful Verify.
type Verification struct {
	// Signer is the certificate embedded in the signature block.
	Signer *x509.Certificate

	// SignatureFile is the path of the verified .SF entry.
	SignatureFile string

	// Entries lists the verified entry paths in manifest order.
	Entries []string
}

// Verify checks the JAR signature of an assembled archive.
//
// The signature block must verify over the exact .SF bytes, the .SF must
// match the manifest, and every manifest digest must match the entry's
// uncompressed content. Every entry outside the signing metadata must be
// covered by the manifest. Failures wrap ErrVerification.
func Verify(b []byte) (*Verification, error) {
	files, err := archive.ReadFiles(b)
	if err != nil {
		return nil, err
	}
	return VerifyFiles(files)
}

// VerifyFiles is Verify over already-read archive content.
func VerifyFiles(files []archive.File) (*Verification, error) {
	byPath := make(map[string][]byte, len(files))
	for _, f := range files {
		byPath[f.Path] = f.Raw
	}

	manifest, ok := byPath[ManifestPath]
	if !ok {
		return nil, fmt.Errorf("%w: no %s", ziptype.ErrVerification, ManifestPath)
	}
	sfPath, sf, blockPath, block, err := findSignature(files, byPath)
	if err != nil {
		return nil, err
	}

	signer, err := verifyBlock(block, sf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", blockPath, err)
	}

	mf, err := ParseSections(manifest)
	if err != nil {
		return nil, err
	}
	if err := verifySignatureFile(sf, manifest, mf); err != nil {
		return nil, fmt.Errorf("%s: %w", sfPath, err)
	}

	v := &Verification{Signer: signer, SignatureFile: sfPath}
	covered := make(map[string]struct{}, len(mf))
	for _, sec := range mf[1:] {
		name := sec.Name()
		raw, ok := byPath[name]
		if !ok {
			return nil, fmt.Errorf("%w: manifest names missing entry %s", ziptype.ErrVerification, name)
		}
		want, ok := sec.Attrs[digestAttr]
		if !ok {
			return nil, fmt.Errorf("%w: no %s for %s", ziptype.ErrVerification, digestAttr, name)
		}
		got, err := digestB64(raw)
		if err != nil {
			return nil, err
		}
		if got != want {
			return nil, fmt.Errorf("%w: digest mismatch for %s", ziptype.ErrVerification, name)
		}
		covered[name] = struct{}{}
		v.Entries = append(v.Entries, name)
	}

	for _, f := range files {
		if archive.IsSigningMetadata(f.Path) || pathutil.IsDir(f.Path) {
			continue
		}
		if _, ok := covered[f.Path]; !ok {
			return nil, fmt.Errorf("%w: %s is not covered by the manifest", ziptype.ErrVerification, f.Path)
		}
	}
	return v, nil
}

// findSignature locates the single .SF file and its matching block.
func findSignature(files []archive.File, byPath map[string][]byte) (sfPath string, sf []byte, blockPath string, block []byte, err error) {
	for _, f := range files {
		if !archive.IsSigningMetadata(f.Path) || !strings.EqualFold(path.Ext(f.Path), ".SF") {
			continue
		}
		if sfPath != "" {
			return "", nil, "", nil, fmt.Errorf("%w: multiple signers are not supported", ziptype.ErrVerification)
		}
		sfPath, sf = f.Path, f.Raw
	}
	if sfPath == "" {
		return "", nil, "", nil, fmt.Errorf("%w: no signature file", ziptype.ErrVerification)
	}

	base := sfPath[:len(sfPath)-len(".SF")]
	for _, ext := range []string{".RSA", ".EC", ".DSA"} {
		for p, raw := range byPath {
			if len(p) == len(base)+len(ext) && strings.HasPrefix(p, base) && strings.EqualFold(p[len(base):], ext) {
				return sfPath, sf, p, raw, nil
			}
		}
	}
	return "", nil, "", nil, fmt.Errorf("%w: no signature block for %s", ziptype.ErrVerification, sfPath)
}

// verifyBlock checks a detached PKCS#7 signature over sf and returns the
// signer certificate. The certificate chain is not validated; JAR signing
// certificates are self-signed.
func verifyBlock(block, sf []byte) (*x509.Certificate, error) {
	p7, err := pkcs7.Parse(block)
	if err != nil {
		return nil, fmt.Errorf("%w: parse signature block: %w", ziptype.ErrVerification, err)
	}
	p7.Content = sf
	if err := p7.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ziptype.ErrVerification, err)
	}
	signer := p7.GetOnlySigner()
	if signer == nil {
		return nil, fmt.Errorf("%w: expected exactly one signer", ziptype.ErrVerification)
	}
	return signer, nil
}

// verifySignatureFile checks the .SF against the manifest. When the
// whole-manifest digest matches, per-section digests are not needed; when it
// does not, every section digest must match instead.
func verifySignatureFile(sf, manifest []byte, mf []Section) error {
	sections, err := ParseSections(sf)
	if err != nil {
		return err
	}
	if len(sections) == 0 || len(mf) == 0 {
		return fmt.Errorf("%w: empty signature file or manifest", ziptype.ErrVerification)
	}

	header := sections[0]
	if want, ok := header.Attrs[mainAttrsAttr]; ok {
		got, err := digestB64(mf[0].Raw)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("%w: manifest main attributes digest mismatch", ziptype.ErrVerification)
		}
	}
	if want, ok := header.Attrs[manifestAttr]; ok {
		got, err := digestB64(manifest)
		if err != nil {
			return err
		}
		if got == want {
			return nil
		}
	}

	mfByName := make(map[string][]byte, len(mf))
	for _, sec := range mf[1:] {
		mfByName[sec.Name()] = sec.Raw
	}
	for _, sec := range sections[1:] {
		raw, ok := mfByName[sec.Name()]
		if !ok {
			return fmt.Errorf("%w: %s is not in the manifest", ziptype.ErrVerification, sec.Name())
		}
		got, err := digestB64(raw)
		if err != nil {
			return err
		}
		if got != sec.Attrs[digestAttr] {
			return fmt.Errorf("%w: manifest section digest mismatch for %s", ziptype.ErrVerification, sec.Name())
		}
		delete(mfByName, sec.Name())
	}
	if len(mfByName) > 0 {
		return fmt.Errorf("%w: manifest sections not covered by the signature file", ziptype.ErrVerification)
	}
	return nil
}
