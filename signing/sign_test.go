package signing

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/digitorus/pkcs7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/apkrepack/archive"
	"github.com/meigma/apkrepack/internal/ziptype"
)

var testIdentity = sync.OnceValues(func() (*Identity, error) {
	return GenerateIdentity(WithCommonName("signing test"))
})

func identity(t *testing.T) *Identity {
	t.Helper()
	id, err := testIdentity()
	require.NoError(t, err)
	return id
}

func b64sha(b []byte) string {
	sum := sha256.Sum256(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func abFiles() []archive.File {
	return []archive.File{
		{Path: "b.txt", Raw: []byte("BBB")},
		{Path: "a.txt", Raw: []byte("AAA")},
	}
}

func assembleSigned(t *testing.T, files []archive.File, signing []*archive.Entry) []byte {
	t.Helper()
	entries := make([]*archive.Entry, 0, len(files)+len(signing))
	for _, f := range files {
		entries = append(entries, archive.NewStoredEntry(f.Path, f.Raw, true))
	}
	entries = append(entries, signing...)
	out, err := archive.Assemble(entries)
	require.NoError(t, err)
	return out
}

func TestSign_SignatureValidityScenario(t *testing.T) {
	t.Parallel()

	id := identity(t)
	a, err := BuildArtifacts(abFiles(), id)
	require.NoError(t, err)

	// The block verifies against the embedded certificate and the exact .SF bytes.
	p7, err := pkcs7.Parse(a.Block)
	require.NoError(t, err)
	p7.Content = a.SignatureFile
	require.NoError(t, p7.Verify())
	require.NotNil(t, p7.GetOnlySigner())
	assert.Equal(t, id.Certificate.Raw, p7.GetOnlySigner().Raw)

	signed := assembleSigned(t, abFiles(), a.Entries())
	v, err := Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, v.Entries)
	assert.Equal(t, "META-INF/CERT.SF", v.SignatureFile)

	// Changing a.txt after signing breaks verification against the stale manifest.
	tampered := abFiles()
	tampered[1].Raw = []byte("AAB")
	_, err = Verify(assembleSigned(t, tampered, a.Entries()))
	require.ErrorIs(t, err, ziptype.ErrVerification)
	assert.Contains(t, err.Error(), "a.txt")
}

func TestSign_ArtifactPaths(t *testing.T) {
	t.Parallel()

	entries, err := Sign(abFiles(), identity(t))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "META-INF/MANIFEST.MF", entries[0].Path)
	assert.Equal(t, "META-INF/CERT.SF", entries[1].Path)
	assert.Equal(t, "META-INF/CERT.RSA", entries[2].Path)
	for _, e := range entries {
		assert.Equal(t, archive.Store, e.Method)
		assert.False(t, e.Align)
	}
}

func TestSign_ManifestFormat(t *testing.T) {
	t.Parallel()

	a, err := BuildArtifacts(abFiles(), identity(t), WithCreatedBy("test"))
	require.NoError(t, err)

	want := "Manifest-Version: 1.0\r\n" +
		"Created-By: test\r\n" +
		"\r\n" +
		"Name: a.txt\r\n" +
		"SHA-256-Digest: " + b64sha([]byte("AAA")) + "\r\n" +
		"\r\n" +
		"Name: b.txt\r\n" +
		"SHA-256-Digest: " + b64sha([]byte("BBB")) + "\r\n" +
		"\r\n"
	assert.Equal(t, want, string(a.Manifest))
}

func TestSign_SignatureFileFormat(t *testing.T) {
	t.Parallel()

	a, err := BuildArtifacts(abFiles(), identity(t), WithCreatedBy("test"))
	require.NoError(t, err)

	mainSection := "Manifest-Version: 1.0\r\nCreated-By: test\r\n\r\n"
	aSection := "Name: a.txt\r\nSHA-256-Digest: " + b64sha([]byte("AAA")) + "\r\n\r\n"
	bSection := "Name: b.txt\r\nSHA-256-Digest: " + b64sha([]byte("BBB")) + "\r\n\r\n"

	// 85 bytes: wrapped after 72 with a single-space continuation line.
	mainAttrs := "SHA-256-Digest-Manifest-Main-Attributes: " + b64sha([]byte(mainSection))
	require.Len(t, mainAttrs, 85)

	want := "Signature-Version: 1.0\r\n" +
		"Created-By: test\r\n" +
		"SHA-256-Digest-Manifest: " + b64sha(a.Manifest) + "\r\n" +
		mainAttrs[:72] + "\r\n" +
		" " + mainAttrs[72:] + "\r\n" +
		"\r\n" +
		"Name: a.txt\r\n" +
		"SHA-256-Digest: " + b64sha([]byte(aSection)) + "\r\n" +
		"\r\n" +
		"Name: b.txt\r\n" +
		"SHA-256-Digest: " + b64sha([]byte(bSection)) + "\r\n" +
		"\r\n"
	assert.Equal(t, want, string(a.SignatureFile))
}

func TestSign_CRLFOnly(t *testing.T) {
	t.Parallel()

	a, err := BuildArtifacts(abFiles(), identity(t))
	require.NoError(t, err)
	for _, text := range [][]byte{a.Manifest, a.SignatureFile} {
		assert.Equal(t, bytes.Count(text, []byte("\n")), bytes.Count(text, []byte("\r\n")))
	}
}

func TestSign_LongNamesWrapAt72Bytes(t *testing.T) {
	t.Parallel()

	long := "assets/" + strings.Repeat("very-long-directory-name/", 8) + "file.txt"
	files := []archive.File{{Path: long, Raw: []byte("content")}}
	a, err := BuildArtifacts(files, identity(t))
	require.NoError(t, err)

	for _, line := range strings.Split(string(a.Manifest), "\r\n") {
		assert.LessOrEqual(t, len(line), 72, line)
	}

	sections, err := ParseSections(a.Manifest)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, long, sections[1].Name())

	v, err := Verify(assembleSigned(t, files, a.Entries()))
	require.NoError(t, err)
	assert.Equal(t, []string{long}, v.Entries)
}

func TestSign_ExcludesSigningMetadataAndDirectories(t *testing.T) {
	t.Parallel()

	files := append(abFiles(),
		archive.File{Path: "META-INF/CERT.SF", Raw: []byte("old")},
		archive.File{Path: "META-INF/MANIFEST.MF", Raw: []byte("old")},
		archive.File{Path: "res/", Raw: nil},
		archive.File{Path: "META-INF/services/x.Provider", Raw: []byte("impl")},
	)
	a, err := BuildArtifacts(files, identity(t))
	require.NoError(t, err)

	sections, err := ParseSections(a.Manifest)
	require.NoError(t, err)
	var names []string
	for _, s := range sections[1:] {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"META-INF/services/x.Provider", "a.txt", "b.txt"}, names)
}

func TestSign_ECDSABlockExtension(t *testing.T) {
	t.Parallel()

	id, err := GenerateIdentity(WithKeyType(KeyECDSA))
	require.NoError(t, err)

	entries, err := Sign(abFiles(), id, WithSignerName("RELEASE"))
	require.NoError(t, err)
	assert.Equal(t, "META-INF/RELEASE.SF", entries[1].Path)
	assert.Equal(t, "META-INF/RELEASE.EC", entries[2].Path)

	_, err = Verify(assembleSigned(t, abFiles(), entries))
	require.NoError(t, err)
}

func TestSign_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no identity", func(t *testing.T) {
		t.Parallel()
		_, err := Sign(abFiles(), nil)
		require.ErrorIs(t, err, ziptype.ErrNoIdentity)
	})

	t.Run("invalid signer name", func(t *testing.T) {
		t.Parallel()
		_, err := Sign(abFiles(), identity(t), WithSignerName("cert/../x"))
		require.ErrorIs(t, err, ziptype.ErrSigning)
	})

	t.Run("duplicate path", func(t *testing.T) {
		t.Parallel()
		files := append(abFiles(), archive.File{Path: "a.txt", Raw: []byte("again")})
		_, err := Sign(files, identity(t))
		require.ErrorIs(t, err, ziptype.ErrDuplicateEntry)
	})
}

func TestVerify_DetectsTampering(t *testing.T) {
	t.Parallel()

	a, err := BuildArtifacts(abFiles(), identity(t))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(a Artifacts) Artifacts
	}{
		{name: "signature file", mutate: func(a Artifacts) Artifacts {
			a.SignatureFile = bytes.Replace(a.SignatureFile, []byte("1.0"), []byte("1.1"), 1)
			return a
		}},
		{name: "manifest", mutate: func(a Artifacts) Artifacts {
			a.Manifest = bytes.Replace(a.Manifest, []byte("a.txt"), []byte("c.txt"), 1)
			return a
		}},
		{name: "signature block", mutate: func(a Artifacts) Artifacts {
			a.Block = bytes.Clone(a.Block)
			a.Block[len(a.Block)-1] ^= 0xff
			return a
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := tt.mutate(*a)
			_, err := Verify(assembleSigned(t, abFiles(), m.Entries()))
			require.ErrorIs(t, err, ziptype.ErrVerification)
		})
	}
}

func TestVerify_UncoveredEntry(t *testing.T) {
	t.Parallel()

	a, err := BuildArtifacts(abFiles(), identity(t))
	require.NoError(t, err)

	files := append(abFiles(), archive.File{Path: "c.txt", Raw: []byte("CCC")})
	_, err = Verify(assembleSigned(t, files, a.Entries()))
	require.ErrorIs(t, err, ziptype.ErrVerification)
	assert.Contains(t, err.Error(), "c.txt")
}

func TestVerify_LowercaseSignatureNames(t *testing.T) {
	t.Parallel()

	a, err := BuildArtifacts(abFiles(), identity(t))
	require.NoError(t, err)

	renamed := make([]*archive.Entry, 0, 3)
	for _, e := range a.Entries() {
		p := e.Path
		if p != archive.MetadataDir+"MANIFEST.MF" {
			p = archive.MetadataDir + strings.ToLower(strings.TrimPrefix(p, archive.MetadataDir))
		}
		renamed = append(renamed, archive.NewStoredEntry(p, e.Data, false))
	}
	require.Equal(t, "META-INF/cert.sf", renamed[1].Path)

	v, err := Verify(assembleSigned(t, abFiles(), renamed))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, v.Entries)
}

func TestVerify_Unsigned(t *testing.T) {
	t.Parallel()

	_, err := Verify(assembleSigned(t, abFiles(), nil))
	require.ErrorIs(t, err, ziptype.ErrVerification)
}
