// Package deflate produces the raw deflate streams stored in ZIP entries.
//
// Streams carry no zlib or gzip framing; the CRC and sizes live in the ZIP
// headers instead.
package deflate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/apkrepack/internal/ziptype"
)

// DefaultLevel is the compression level used when none is configured.
const DefaultLevel = flate.BestCompression

// Compressor deflates byte slices, reusing flate writers across calls.
// It is safe for concurrent use.
type Compressor struct {
	level int
	pool  *sync.Pool
}

// New creates a Compressor for the given flate level (-2 through 9).
func New(level int) (*Compressor, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("deflate: invalid level %d", level)
	}
	c := &Compressor{level: level}
	c.pool = &sync.Pool{
		New: func() any {
			w, err := flate.NewWriter(io.Discard, level)
			if err != nil {
				return nil
			}
			return w
		},
	}
	return c, nil
}

// Level returns the configured compression level.
func (c *Compressor) Level() int {
	return c.level
}

// Compress returns the raw deflate encoding of b.
// Any encoder failure is wrapped with ziptype.ErrCompression.
func (c *Compressor) Compress(ctx context.Context, b []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, release, err := c.get()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ziptype.ErrCompression, err)
	}
	defer release()

	var buf bytes.Buffer
	buf.Grow(len(b) / 2)
	w.Reset(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ziptype.ErrCompression, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ziptype.ErrCompression, err)
	}
	return buf.Bytes(), nil
}

// get returns a pooled writer and its release function.
func (c *Compressor) get() (*flate.Writer, func(), error) {
	if v, ok := c.pool.Get().(*flate.Writer); ok && v != nil {
		return v, func() {
			v.Reset(io.Discard)
			c.pool.Put(v)
		}, nil
	}
	// Pool's New function failed, try directly
	w, err := flate.NewWriter(io.Discard, c.level)
	if err != nil {
		return nil, nil, err
	}
	return w, func() {}, nil
}

// Decompress inflates a raw deflate stream that is expected to produce
// exactly size bytes. ziptype.ErrSizeOverflow is returned if it produces more.
func Decompress(b []byte, size uint64) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, int64(size)+1)) //nolint:gosec // sizes come from 32-bit ZIP fields
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	if uint64(len(out)) > size {
		return nil, ziptype.ErrSizeOverflow
	}
	if uint64(len(out)) != size {
		return nil, fmt.Errorf("inflate: short output (%d of %d bytes)", len(out), size)
	}
	return out, nil
}
