// Package tiler resolves one slippy-map tile out of a georeferenced, rotated
// source image.
//
// ResolveTile runs a fixed sequence per request: build the overlay footprint,
// short-circuit to a placeholder when the tile misses it, fetch and decode
// the original, rotate, then crop, pad and resize in one pass before
// encoding. A Compositor holds no per-request state and is safe for concurrent
// use as long as its Store and RasterEngine are.
package tiler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kiesman99/drape/internal/observability"
	"github.com/kiesman99/drape/internal/raster"
	"github.com/kiesman99/drape/internal/store"
	"github.com/kiesman99/drape/pkg/tile"
)

// MaxDimension bounds the output edge a request may ask for.
const MaxDimension = 4096

// Store supplies original image bytes.
type Store interface {
	Fetch(ctx context.Context, loc store.Locator) ([]byte, error)
}

// RasterEngine is the set of image primitives the compositor drives.
type RasterEngine interface {
	Decode(data []byte) (image.Image, error)
	Rotate(img image.Image, degrees float64, fill color.Color) image.Image
	Compose(img image.Image, plan tile.CropPlan, dim int, fill color.Color) image.Image
	Fill(w, h int, c color.Color) image.Image
	Encode(img image.Image) ([]byte, string, error)
}

// PlaceholderMode selects what is returned for tiles outside the overlay.
type PlaceholderMode int

const (
	// PlaceholderFill paints placeholders with tile.Background.
	PlaceholderFill PlaceholderMode = iota
	// PlaceholderBlank returns fully transparent placeholders.
	PlaceholderBlank
)

// ParsePlaceholderMode maps "fill" or "blank" to a PlaceholderMode.
func ParsePlaceholderMode(s string) (PlaceholderMode, error) {
	switch s {
	case "", "fill":
		return PlaceholderFill, nil
	case "blank":
		return PlaceholderBlank, nil
	default:
		return PlaceholderFill, fmt.Errorf("unknown placeholder mode %q (want fill or blank)", s)
	}
}

// Result is an encoded tile.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	// Placeholder is set when the tile misses the overlay and no source
	// image was read.
	Placeholder bool
}

// Compositor resolves tile requests against a Store and a RasterEngine.
type Compositor struct {
	store       Store
	engine      RasterEngine
	placeholder PlaceholderMode
	log         *slog.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithPlaceholder sets the placeholder mode.
func WithPlaceholder(mode PlaceholderMode) Option {
	return func(c *Compositor) { c.placeholder = mode }
}

// WithLogger sets the logger used for step timings and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compositor) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records tile outcomes and fetches on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Compositor) { c.metrics = m }
}

// WithTracer overrides the tracer, which otherwise comes from the global
// OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Compositor) {
		if t != nil {
			c.tracer = t
		}
	}
}

// New creates a Compositor.
func New(st Store, engine RasterEngine, opts ...Option) *Compositor {
	c := &Compositor{
		store:  st,
		engine: engine,
		log:    slog.Default(),
		tracer: otel.Tracer("github.com/kiesman99/drape/internal/tiler"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ResolveTile returns the encoded tile for req, reading the original image
// from loc only when the tile intersects the overlay footprint.
func (c *Compositor) ResolveTile(ctx context.Context, req tile.Request, loc store.Locator) (*Result, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "tiler.ResolveTile", trace.WithAttributes(
		attribute.Int("tile.z", int(req.Tile.Z)),
		attribute.Int("tile.x", int(req.Tile.X)),
		attribute.Int("tile.y", int(req.Tile.Y)),
		attribute.String("source", loc.String()),
	))
	defer span.End()

	res, err := c.resolve(ctx, req, loc)

	outcome := observability.OutcomeRendered
	switch {
	case err != nil:
		outcome = observability.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res.Placeholder:
		outcome = observability.OutcomePlaceholder
	}
	span.SetAttributes(attribute.String("tile.outcome", outcome))
	c.metrics.ObserveTile(outcome, time.Since(start))

	return res, err
}

func (c *Compositor) resolve(ctx context.Context, req tile.Request, loc store.Locator) (*Result, error) {
	if err := req.Overlay.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	z, x, y := int(req.Tile.Z), int(req.Tile.X), int(req.Tile.Y)
	if _, err := tile.NewTile(x, y, z); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTile, err)
	}
	dim := req.Dimension()
	if dim > MaxDimension {
		return nil, fmt.Errorf("%w: output dimension %d exceeds %d", ErrInvalidTile, dim, MaxDimension)
	}

	bounds := tile.BuildFootprint(req.Overlay).TileBounds(z)
	if bounds.Degenerate() {
		return nil, fmt.Errorf("%w: footprint bounding box is degenerate at zoom %d", ErrInvalidGeometry, z)
	}

	if !bounds.Intersects(x, y) {
		return c.placeholderTile(ctx, dim)
	}

	var data []byte
	err := c.step(ctx, "fetch", func(ctx context.Context) error {
		var err error
		data, err = c.store.Fetch(ctx, loc)
		c.metrics.ObserveFetch(len(data), err)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAccessDenied) {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		return nil, fmt.Errorf("fetch %s: %w", loc, err)
	}

	var img image.Image
	err = c.step(ctx, "decode", func(context.Context) error {
		var err error
		img, err = c.engine.Decode(data)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecodeFailure, loc, err)
	}

	srcW, srcH := raster.Size(img)
	rotation := req.Overlay.RotationDegrees

	if math.Mod(rotation, 360) != 0 {
		_, done := c.startStep(ctx, "rotate")
		img = c.engine.Rotate(img, rotation, tile.Background)
		done(nil)
	}

	// The plan is proportional: crop edges are fractions of the rotated size.
	// Predicting it from the decoded pixels agrees with predicting it from the
	// descriptor's aspect values whenever those are the source's dimensions.
	rotW, rotH := tile.ImageSizeAfterRotation(float64(srcW), float64(srcH), rotation)
	if w, h := raster.Size(img); w != int(math.Round(rotW)) || h != int(math.Round(rotH)) {
		c.metrics.ObserveRotationMismatch()
		c.log.WarnContext(ctx, "rotated raster disagrees with predicted size",
			"source", loc.String(),
			"rotation", rotation,
			"measured", fmt.Sprintf("%dx%d", w, h),
			"predicted", fmt.Sprintf("%.2fx%.2f", rotW, rotH),
		)
	}

	plan := tile.PlanCrop(bounds, x, y, rotW, rotH)
	if plan.Empty() {
		return c.placeholderTile(ctx, dim)
	}

	_, done := c.startStep(ctx, "compose")
	img = c.engine.Compose(img, plan, dim, tile.Background)
	done(nil)

	return c.encode(ctx, img, false)
}

func (c *Compositor) placeholderTile(ctx context.Context, dim int) (*Result, error) {
	fill := color.Color(tile.Background)
	if c.placeholder == PlaceholderBlank {
		fill = color.Transparent
	}
	return c.encode(ctx, c.engine.Fill(dim, dim, fill), true)
}

func (c *Compositor) encode(ctx context.Context, img image.Image, placeholder bool) (*Result, error) {
	var (
		data        []byte
		contentType string
	)
	err := c.step(ctx, "encode", func(context.Context) error {
		var err error
		data, contentType, err = c.engine.Encode(img)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("encode tile: %w", err)
	}

	w, h := raster.Size(img)
	return &Result{
		Data:        data,
		ContentType: contentType,
		Width:       w,
		Height:      h,
		Placeholder: placeholder,
	}, nil
}

// step runs fn in its own span and logs its duration at debug level.
func (c *Compositor) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, done := c.startStep(ctx, name)
	err := fn(ctx)
	done(err)
	return err
}

// startStep opens the span for one step. The returned func ends it, records
// err on it when non-nil and logs the step duration.
func (c *Compositor) startStep(ctx context.Context, name string) (context.Context, func(err error)) {
	ctx, span := c.tracer.Start(ctx, "tiler."+name)
	start := time.Now()

	return ctx, func(err error) {
		c.log.DebugContext(ctx, "tile step", "step", name, "duration", time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
