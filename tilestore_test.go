package elevation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"go.uber.org/zap/zaptest"
)

// A countingDecoder counts decodes per locator.
type countingDecoder struct {
	mu     sync.Mutex
	counts map[string]int
	decode func(ctx context.Context, locator string, count int) (*RasterTile, error)
}

func newCountingDecoder(decode func(ctx context.Context, locator string, count int) (*RasterTile, error)) *countingDecoder {
	return &countingDecoder{
		counts: make(map[string]int),
		decode: decode,
	}
}

func (d *countingDecoder) Decode(ctx context.Context, locator string) (*RasterTile, error) {
	d.mu.Lock()
	d.counts[locator]++
	count := d.counts[locator]
	d.mu.Unlock()
	return d.decode(ctx, locator, count)
}

func (d *countingDecoder) count(locator string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[locator]
}

func newTestTile(t *testing.T, value float64) *RasterTile {
	t.Helper()
	tile, err := NewRasterTile([]float64{0}, []float64{0}, [][]float64{{value}})
	assert.NoError(t, err)
	return tile
}

func TestTileStoreCoalesces(t *testing.T) {
	tile := newTestTile(t, 1)
	release := make(chan struct{})
	decoder := newCountingDecoder(func(context.Context, string, int) (*RasterTile, error) {
		<-release
		return tile, nil
	})
	store, err := NewTileStore(decoder, WithStoreLogger(zaptest.NewLogger(t)))
	assert.NoError(t, err)

	const n = 16
	var started, done sync.WaitGroup
	var failures atomic.Int32
	for range n {
		started.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			started.Done()
			actual, err := store.Get(context.Background(), "A.nc")
			if err != nil || actual != tile {
				failures.Add(1)
			}
		}()
	}
	started.Wait()
	close(release)
	done.Wait()

	assert.Equal(t, int32(0), failures.Load())
	assert.Equal(t, 1, decoder.count("A.nc"))
	assert.Equal(t, 1, store.Len())

	actual, err := store.Get(context.Background(), "A.nc")
	assert.NoError(t, err)
	assert.Equal(t, tile, actual)
	assert.Equal(t, 1, decoder.count("A.nc"))
}

func TestTileStoreFailuresNotCached(t *testing.T) {
	tile := newTestTile(t, 1)
	errCorrupt := errors.New("corrupt")
	decoder := newCountingDecoder(func(_ context.Context, _ string, count int) (*RasterTile, error) {
		if count == 1 {
			return nil, errCorrupt
		}
		return tile, nil
	})
	store, err := NewTileStore(decoder)
	assert.NoError(t, err)

	_, err = store.Get(context.Background(), "A.nc")
	var tileLoadErr *TileLoadError
	assert.True(t, errors.As(err, &tileLoadErr))
	assert.Equal(t, "A.nc", tileLoadErr.Locator)
	assert.IsError(t, err, errCorrupt)
	assert.Equal(t, 0, store.Len())

	actual, err := store.Get(context.Background(), "A.nc")
	assert.NoError(t, err)
	assert.Equal(t, tile, actual)
	assert.Equal(t, 2, decoder.count("A.nc"))
}

func TestTileStoreEviction(t *testing.T) {
	decoder := newCountingDecoder(func(context.Context, string, int) (*RasterTile, error) {
		return newTestTile(t, 1), nil
	})
	store, err := NewTileStore(decoder, WithCacheSize(1))
	assert.NoError(t, err)

	for _, locator := range []string{"A.nc", "B.nc", "A.nc", "A.nc"} {
		_, err := store.Get(context.Background(), locator)
		assert.NoError(t, err)
		assert.Equal(t, 1, store.Len())
	}
	assert.Equal(t, 2, decoder.count("A.nc"))
	assert.Equal(t, 1, decoder.count("B.nc"))

	store.Purge()
	assert.Equal(t, 0, store.Len())
	_, err = store.Get(context.Background(), "B.nc")
	assert.NoError(t, err)
	assert.Equal(t, 2, decoder.count("B.nc"))
}

func TestTileStoreUnbounded(t *testing.T) {
	decoder := newCountingDecoder(func(context.Context, string, int) (*RasterTile, error) {
		return newTestTile(t, 1), nil
	})
	store, err := NewTileStore(decoder)
	assert.NoError(t, err)
	for _, locator := range []string{"A.nc", "B.nc", "C.nc", "A.nc"} {
		_, err := store.Get(context.Background(), locator)
		assert.NoError(t, err)
	}
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, 1, decoder.count("A.nc"))
}

func TestTileStoreDecodeTimeout(t *testing.T) {
	decoder := newCountingDecoder(func(ctx context.Context, _ string, _ int) (*RasterTile, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	store, err := NewTileStore(decoder, WithDecodeTimeout(10*time.Millisecond))
	assert.NoError(t, err)

	_, err = store.Get(context.Background(), "A.nc")
	var tileLoadErr *TileLoadError
	assert.True(t, errors.As(err, &tileLoadErr))
	assert.IsError(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, store.Len())
}

func TestTileStoreCallerCanceled(t *testing.T) {
	tile := newTestTile(t, 1)
	release := make(chan struct{})
	decoder := newCountingDecoder(func(ctx context.Context, _ string, _ int) (*RasterTile, error) {
		<-release
		return tile, ctx.Err()
	})
	store, err := NewTileStore(decoder)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Get(ctx, "A.nc")
	assert.IsError(t, err, context.Canceled)

	// The decode is not canceled with the caller.
	close(release)
	actual, err := store.Get(context.Background(), "A.nc")
	assert.NoError(t, err)
	assert.Equal(t, tile, actual)
	assert.Equal(t, 1, decoder.count("A.nc"))
}

func TestTileStoreDecoderMisbehaves(t *testing.T) {
	for _, tc := range []struct {
		name   string
		decode DecoderFunc
	}{
		{
			name: "panic",
			decode: func(context.Context, string) (*RasterTile, error) {
				panic("index out of range")
			},
		},
		{
			name: "nil_tile",
			decode: func(context.Context, string) (*RasterTile, error) {
				return nil, nil
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewTileStore(tc.decode)
			assert.NoError(t, err)
			_, err = store.Get(context.Background(), "A.nc")
			var tileLoadErr *TileLoadError
			assert.True(t, errors.As(err, &tileLoadErr))
			assert.Equal(t, "A.nc", tileLoadErr.Locator)
			assert.Equal(t, 0, store.Len())
		})
	}
}
