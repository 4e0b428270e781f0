package elevation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	tileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevation_tile_cache_hits_total",
		Help: "The total number of hits on the tile cache",
	})
	tileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevation_tile_cache_misses_total",
		Help: "The total number of misses on the tile cache",
	})
	tileCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevation_tile_cache_evictions_total",
		Help: "The total number of evictions from the tile cache",
	})
	tileLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elevation_tile_load_failures_total",
		Help: "The total number of failed tile loads",
	})
	tileDecodeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "elevation_tile_decode_seconds",
		Help:    "The time taken to decode a tile",
		Buckets: prometheus.DefBuckets,
	})
)

// DefaultDecodeTimeout is the default maximum time to wait for a tile to be
// decoded.
const DefaultDecodeTimeout = 30 * time.Second

// A TileGetter returns tiles by locator.
type TileGetter interface {
	Get(ctx context.Context, locator string) (*RasterTile, error)
}

// A TileStore is a cache of decoded tiles. Concurrent requests for a tile that
// is not yet cached share a single decode. Failed decodes are not cached.
type TileStore struct {
	decoder       Decoder
	cacheSize     int
	decodeTimeout time.Duration
	logger        *zap.Logger
	cache         *lru.Cache[string, *RasterTile]
	group         singleflight.Group
}

// A TileStoreOption sets an option on a TileStore.
type TileStoreOption func(*TileStore)

// NewTileStore returns a new TileStore that decodes tiles with decoder.
func NewTileStore(decoder Decoder, options ...TileStoreOption) (*TileStore, error) {
	s := &TileStore{
		decoder:       decoder,
		decodeTimeout: DefaultDecodeTimeout,
		logger:        zap.NewNop(),
	}
	for _, option := range options {
		option(s)
	}

	size := s.cacheSize
	if size <= 0 {
		size = math.MaxInt
	}
	var err error
	s.cache, err = lru.NewWithEvict(size, func(locator string, _ *RasterTile) {
		tileCacheEvictions.Inc()
		s.logger.Debug("evicted tile", zap.String("locator", locator))
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// WithCacheSize sets the maximum number of cached tiles. Zero or negative
// values mean unbounded, which is the default.
func WithCacheSize(cacheSize int) TileStoreOption {
	return func(s *TileStore) {
		s.cacheSize = cacheSize
	}
}

// WithDecodeTimeout sets the maximum time to wait for a decode. Zero means no
// limit.
func WithDecodeTimeout(decodeTimeout time.Duration) TileStoreOption {
	return func(s *TileStore) {
		s.decodeTimeout = decodeTimeout
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *zap.Logger) TileStoreOption {
	return func(s *TileStore) {
		s.logger = logger
	}
}

// Get returns the tile with the given locator, decoding it if it is not
// cached. Errors are of type *TileLoadError.
func (s *TileStore) Get(ctx context.Context, locator string) (*RasterTile, error) {
	if tile, ok := s.cache.Get(locator); ok {
		tileCacheHits.Inc()
		return tile, nil
	}

	resultCh := s.group.DoChan(locator, func() (any, error) {
		// The tile may have been added since the check above.
		if tile, ok := s.cache.Peek(locator); ok {
			tileCacheHits.Inc()
			return tile, nil
		}
		tileCacheMisses.Inc()
		return s.load(context.WithoutCancel(ctx), locator)
	})

	waitCtx := ctx
	if s.decodeTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.decodeTimeout)
		defer cancel()
	}

	select {
	case result := <-resultCh:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*RasterTile), nil
	case <-waitCtx.Done():
		// The decode continues so that later calls can use its result.
		s.logger.Warn("gave up waiting for tile",
			zap.String("locator", locator),
			zap.Error(waitCtx.Err()),
		)
		return nil, &TileLoadError{Locator: locator, Err: waitCtx.Err()}
	}
}

// Len returns the number of cached tiles.
func (s *TileStore) Len() int {
	return s.cache.Len()
}

// Purge removes all cached tiles.
func (s *TileStore) Purge() {
	s.cache.Purge()
}

// load decodes the tile with the given locator and adds it to the cache.
func (s *TileStore) load(ctx context.Context, locator string) (tile *RasterTile, err error) {
	if s.decodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.decodeTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			tile, err = nil, fmt.Errorf("panic: %v", r)
		}
		tileDecodeSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			tileLoadFailures.Inc()
			s.logger.Error("failed to load tile",
				zap.String("locator", locator),
				zap.Error(err),
			)
			var tileLoadErr *TileLoadError
			if !errors.As(err, &tileLoadErr) {
				err = &TileLoadError{Locator: locator, Err: err}
			}
		}
	}()

	tile, err = s.decoder.Decode(ctx, locator)
	if err != nil {
		return nil, err
	}
	if tile == nil {
		return nil, errors.New("decoder returned no tile")
	}

	if evicted := s.cache.Add(locator, tile); evicted {
		s.logger.Debug("cache full", zap.Int("size", s.cacheSize))
	}
	rows, cols := tile.Size()
	s.logger.Info("loaded tile",
		zap.String("locator", locator),
		zap.Int("rows", rows),
		zap.Int("cols", cols),
		zap.Duration("duration", time.Since(start)),
	)
	return tile, nil
}
