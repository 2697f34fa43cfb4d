package modify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/apkrepack/archive"
	"github.com/meigma/apkrepack/internal/testutil"
	"github.com/meigma/apkrepack/internal/ziptype"
)

func originalAPK(t *testing.T) []byte {
	t.Helper()
	return testutil.BuildZip(t, []testutil.ZipFile{
		{Name: "AndroidManifest.xml", Data: []byte("<manifest/>")},
		{Name: "res/raw/config.json", Data: []byte(`{"merchant":"old"}`)},
		{Name: "resources.arsc", Data: []byte("table"), Stored: true},
		{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\r\n\r\n")},
		{Name: "META-INF/CERT.SF", Data: []byte("Signature-Version: 1.0\r\n\r\n")},
		{Name: "META-INF/CERT.RSA", Data: []byte{0x30, 0x82}},
		{Name: "META-INF/services/x.Provider", Data: []byte("impl")},
		{Name: "classes.dex", Data: bytes.Repeat([]byte("dex"), 100)},
	})
}

func paths(files []archive.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestFiles_ReplacesAndDropsMetadata(t *testing.T) {
	t.Parallel()

	original := originalAPK(t)
	before := bytes.Clone(original)

	files, err := Files(original, map[string][]byte{
		"res/raw/config.json": []byte(`{"merchant":"new"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AndroidManifest.xml", "res/raw/config.json", "resources.arsc", "classes.dex"}, paths(files))
	assert.Equal(t, []byte(`{"merchant":"new"}`), files[1].Raw)
	assert.Equal(t, []byte("<manifest/>"), files[0].Raw)
	assert.Equal(t, []byte("table"), files[2].Raw)
	assert.Equal(t, before, original, "original bytes must not change")
}

func TestFiles_UnknownReplacementIgnored(t *testing.T) {
	t.Parallel()

	files, err := Files(originalAPK(t), map[string][]byte{
		"assets/new.txt": []byte("new"),
	})
	require.NoError(t, err)
	assert.NotContains(t, paths(files), "assets/new.txt")
	assert.Len(t, files, 4)
}

func TestFiles_AppendMissing(t *testing.T) {
	t.Parallel()

	files, err := Files(originalAPK(t), map[string][]byte{
		"assets/z.txt":         []byte("z"),
		"assets/a.txt":         []byte("a"),
		"META-INF/MANIFEST.MF": []byte("forged"),
	}, WithAppendMissing())
	require.NoError(t, err)

	got := paths(files)
	assert.Equal(t, []string{"assets/a.txt", "assets/z.txt"}, got[len(got)-2:])
	assert.NotContains(t, got, "META-INF/MANIFEST.MF")
}

func TestFiles_InvalidArchive(t *testing.T) {
	t.Parallel()

	_, err := Files([]byte("not a zip"), nil)
	require.ErrorIs(t, err, ziptype.ErrInvalidArchive)
}

func TestFiles_MaxEntrySize(t *testing.T) {
	t.Parallel()

	_, err := Files(originalAPK(t), nil, WithMaxEntrySize(16))
	require.ErrorIs(t, err, ziptype.ErrInvalidArchive)
}

func TestEntries_ClassifiedAndAssemblable(t *testing.T) {
	t.Parallel()

	entries, err := Entries(context.Background(), originalAPK(t), map[string][]byte{
		"res/raw/config.json": []byte(`{"merchant":"new"}`),
	})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	byPath := make(map[string]*archive.Entry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	assert.Equal(t, archive.Store, byPath["resources.arsc"].Method)
	assert.Equal(t, archive.Deflate, byPath["classes.dex"].Method)

	out, err := archive.Assemble(entries)
	require.NoError(t, err)
	require.NoError(t, archive.CheckAlignment(out))

	files, err := archive.ReadFiles(out)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"merchant":"new"}`), files[1].Raw)
}

func TestEntries_CompressorFailure(t *testing.T) {
	t.Parallel()

	_, err := Entries(context.Background(), originalAPK(t), nil,
		WithEntryOptions(archive.WithCompressor(testutil.FailingCompressor{})))
	require.ErrorIs(t, err, ziptype.ErrCompression)
}
