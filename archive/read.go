package archive

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zip"

	"github.com/meigma/apkrepack/internal/ziptype"
)

// readConfig holds configuration for reading archives.
type readConfig struct {
	maxEntrySize uint64
}

// ReadOption configures ReadFiles.
type ReadOption func(*readConfig)

// ReadWithMaxEntrySize rejects entries whose uncompressed size exceeds limit.
// Zero disables the limit.
func ReadWithMaxEntrySize(limit uint64) ReadOption {
	return func(cfg *readConfig) {
		cfg.maxEntrySize = limit
	}
}

// ReadFiles parses b and returns every entry's decompressed content in
// central directory order. Directory entries are included with empty content.
//
// Any parse, decompression or checksum failure is wrapped with
// ErrInvalidArchive; b is never modified.
func ReadFiles(b []byte, opts ...ReadOption) ([]File, error) {
	var cfg readConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ziptype.ErrInvalidArchive, err)
	}

	files := make([]File, 0, len(zr.File))
	for _, f := range zr.File {
		raw, err := readFile(f, cfg.maxEntrySize)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ziptype.ErrInvalidArchive, f.Name, err)
		}
		files = append(files, File{Path: f.Name, Raw: raw})
	}
	return files, nil
}

func readFile(f *zip.File, limit uint64) ([]byte, error) {
	size := f.UncompressedSize64
	if limit > 0 && size > limit {
		return nil, ziptype.ErrSizeOverflow
	}
	if size > math.MaxInt32 {
		return nil, ziptype.ErrSizeOverflow
	}

	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	// The zip reader verifies the CRC once it reaches EOF.
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
