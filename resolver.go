package elevation

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/twpayne/go-elevation-api"

// DefaultConcurrency is the default maximum number of tiles fetched
// concurrently by a Resolver.
const DefaultConcurrency = 4

// A Resolver resolves points to elevations using a TileIndex and a
// TileGetter.
type Resolver struct {
	index       *TileIndex
	store       TileGetter
	concurrency int
	logger      *zap.Logger
	tracer      trace.Tracer
}

// A ResolverOption sets an option on a Resolver.
type ResolverOption func(*Resolver)

// WithConcurrency sets the maximum number of tiles fetched concurrently.
func WithConcurrency(concurrency int) ResolverOption {
	return func(r *Resolver) {
		r.concurrency = concurrency
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver returns a new Resolver.
func NewResolver(index *TileIndex, store TileGetter, options ...ResolverOption) *Resolver {
	r := &Resolver{
		index:       index,
		store:       store,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, option := range options {
		option(r)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	return r
}

// Resolve returns the elevation of each point, in order. Points not covered by
// any tile have value NoData. Points whose tile could not be loaded have value
// NoData and Err set. The returned error joins the errors of all tiles that
// could not be loaded, and is nil if every point was resolved.
func (r *Resolver) Resolve(ctx context.Context, points []Point) ([]Elevation, error) {
	ctx, span := r.tracer.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.Int("elevation.points", len(points))),
	)
	defer span.End()

	elevations := make([]Elevation, len(points))
	var locators []string
	indexesByLocator := make(map[string][]int)
	for i, point := range points {
		elevations[i] = Elevation{
			Lat:   point.Lat,
			Lon:   point.Lon,
			Value: NoData,
		}
		tile, ok := r.index.Covers(point)
		if !ok {
			r.logger.Debug("point not covered",
				zap.Float64("lat", point.Lat),
				zap.Float64("lon", point.Lon),
			)
			continue
		}
		if _, ok := indexesByLocator[tile.Locator]; !ok {
			locators = append(locators, tile.Locator)
		}
		indexesByLocator[tile.Locator] = append(indexesByLocator[tile.Locator], i)
	}
	span.SetAttributes(attribute.Int("elevation.tiles", len(locators)))

	// Each goroutine writes only the elements of elevations and errs at the
	// indexes that it owns.
	errs := make([]error, len(locators))
	var group errgroup.Group
	group.SetLimit(r.concurrency)
	for i, locator := range locators {
		group.Go(func() error {
			errs[i] = r.resolveTile(ctx, locator, points, indexesByLocator[locator], elevations)
			return nil
		})
	}
	_ = group.Wait()

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return elevations, err
}

// resolveTile fetches the tile with the given locator and samples it at the
// points with the given indexes.
func (r *Resolver) resolveTile(ctx context.Context, locator string, points []Point, indexes []int, elevations []Elevation) error {
	ctx, span := r.tracer.Start(ctx, "GetTile",
		trace.WithAttributes(
			attribute.String("elevation.locator", locator),
			attribute.Int("elevation.points", len(indexes)),
		),
	)
	defer span.End()

	tile, err := r.store.Get(ctx, locator)
	if err != nil {
		var tileLoadErr *TileLoadError
		if !errors.As(err, &tileLoadErr) {
			err = &TileLoadError{Locator: locator, Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		for _, i := range indexes {
			elevations[i].Err = err
		}
		return err
	}

	var sampleErrs []error
	for _, i := range indexes {
		value, err := tile.Sample(points[i])
		if err != nil {
			err = &TileLoadError{Locator: locator, Err: err}
			elevations[i].Err = err
			sampleErrs = append(sampleErrs, err)
			continue
		}
		elevations[i].Value = value
	}
	return errors.Join(sampleErrs...)
}
