package deflate

import (
	"bytes"
	"compress/flate"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/apkrepack/internal/ziptype"
)

func TestCompress_RawStream(t *testing.T) {
	t.Parallel()

	c, err := New(DefaultLevel)
	require.NoError(t, err)

	original := bytes.Repeat([]byte("hello world "), 200)
	compressed, err := c.Compress(context.Background(), original)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(original))

	// A raw stream must be readable by the stdlib inflater without any header.
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestCompress_Empty(t *testing.T) {
	t.Parallel()

	c, err := New(DefaultLevel)
	require.NoError(t, err)

	compressed, err := c.Compress(context.Background(), nil)
	require.NoError(t, err)

	got, err := Decompress(compressed, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCompress_CanceledContext(t *testing.T) {
	t.Parallel()

	c, err := New(DefaultLevel)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Compress(ctx, []byte("data"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew_InvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := New(42)
	require.Error(t, err)
}

func TestCompress_ConcurrentReuse(t *testing.T) {
	t.Parallel()

	c, err := New(5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			original := bytes.Repeat([]byte{byte('a' + i)}, 4096)
			compressed, err := c.Compress(context.Background(), original)
			assert.NoError(t, err)
			got, err := Decompress(compressed, uint64(len(original)))
			assert.NoError(t, err)
			assert.Equal(t, original, got)
		}(i)
	}
	wg.Wait()
}

func TestDecompress_SizeMismatch(t *testing.T) {
	t.Parallel()

	c, err := New(DefaultLevel)
	require.NoError(t, err)

	original := bytes.Repeat([]byte("x"), 100)
	compressed, err := c.Compress(context.Background(), original)
	require.NoError(t, err)

	_, err = Decompress(compressed, 50)
	require.ErrorIs(t, err, ziptype.ErrSizeOverflow)

	_, err = Decompress(compressed, 150)
	require.Error(t, err)
}
