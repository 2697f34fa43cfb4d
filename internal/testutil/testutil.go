// Package testutil provides fixtures shared by the apkrepack tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// ZipFile is one entry written by BuildZip.
type ZipFile struct {
	Name   string
	Data   []byte
	Stored bool
}

// BuildZip writes files with a general-purpose ZIP writer, the way a build
// tool would produce an unaligned, unsigned package.
func BuildZip(tb testing.TB, files []ZipFile) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		method := zip.Deflate
		if f.Stored {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		require.NoError(tb, err)
		_, err = w.Write(f.Data)
		require.NoError(tb, err)
	}
	require.NoError(tb, zw.Close())
	return buf.Bytes()
}

// RandomBytes returns n pseudo-random bytes from a fixed seed. The output
// does not compress.
func RandomBytes(n int, seed uint64) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // test data only
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.UintN(256))
	}
	return b
}

// SampleAPK returns the files of a small but realistic package: a binary
// manifest, a resource table, a native library, media and dex code.
func SampleAPK() map[string][]byte {
	return map[string][]byte{
		"AndroidManifest.xml":              bytes.Repeat([]byte("<manifest package=\"com.example\"/>"), 20),
		"classes.dex":                      bytes.Repeat([]byte("dex\n035\x00code"), 300),
		"resources.arsc":                   bytes.Repeat([]byte{0x02, 0x00, 0x0c, 0x00}, 257),
		"lib/arm64-v8a/libnative.so":       RandomBytes(1021, 1),
		"res/drawable/icon.png":            RandomBytes(333, 2),
		"res/raw/config.json":              []byte(`{"merchant":"acme","currency":"USD"}`),
		"assets/branding/logo.txt":         bytes.Repeat([]byte("ACME "), 50),
		"res/layout/activity_main.xml":     bytes.Repeat([]byte("<LinearLayout/>"), 40),
		"res/raw/tiny":                     []byte("x"),
		"lib/armeabi-v7a/libnative.so":     RandomBytes(517, 3),
		"res/drawable-hdpi/background.jpg": RandomBytes(901, 4),
	}
}

// ErrCompressorFailed is returned by FailingCompressor.
var ErrCompressorFailed = errors.New("testutil: compressor failed")

// FailingCompressor fails every call.
type FailingCompressor struct{}

// Compress implements archive.Compressor.
func (FailingCompressor) Compress(context.Context, []byte) ([]byte, error) {
	return nil, ErrCompressorFailed
}

// GrowingCompressor returns output one byte longer than its input.
type GrowingCompressor struct{}

// Compress implements archive.Compressor.
func (GrowingCompressor) Compress(_ context.Context, b []byte) ([]byte, error) {
	return append(bytes.Clone(b), 0), nil
}
