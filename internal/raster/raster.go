package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kiesman99/drape/pkg/tile"
)

// ContentTypePNG is the content type of every raster Encode produces.
const ContentTypePNG = "image/png"

// ErrUnrecognizedFormat is returned by Decode for bytes no registered decoder
// claims.
var ErrUnrecognizedFormat = errors.New("unrecognized image format")

// Engine implements the raster primitives the tile compositor needs on top
// of image.Image. The zero value is not usable; call New.
type Engine struct {
	interp      draw.Interpolator
	compression png.CompressionLevel
}

// Option configures an Engine.
type Option func(*Engine)

// WithInterpolation selects the resampler for rotate and resize:
// "nearest", "approxbilinear", "bilinear" or "catmullrom".
func WithInterpolation(name string) Option {
	return func(e *Engine) {
		if i, err := Interpolator(name); err == nil {
			e.interp = i
		}
	}
}

// WithCompression sets the PNG compression level.
func WithCompression(level png.CompressionLevel) Option {
	return func(e *Engine) { e.compression = level }
}

// New creates an Engine. Bilinear resampling and default PNG compression are
// used unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		interp:      draw.BiLinear,
		compression: png.DefaultCompression,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Interpolator maps a configuration name to an x/image interpolator.
func Interpolator(name string) (draw.Interpolator, error) {
	switch strings.ToLower(name) {
	case "nearest", "nearestneighbor":
		return draw.NearestNeighbor, nil
	case "approxbilinear":
		return draw.ApproxBiLinear, nil
	case "", "bilinear":
		return draw.BiLinear, nil
	case "catmullrom":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown interpolation %q", name)
	}
}

// CompressionLevel maps a configuration name to a PNG compression level.
func CompressionLevel(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return png.DefaultCompression, nil
	case "none":
		return png.NoCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	default:
		return png.DefaultCompression, fmt.Errorf("unknown png compression %q", name)
	}
}

// Decode detects the image format and decodes it.
func (e *Engine) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrUnrecognizedFormat
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, ErrUnrecognizedFormat
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Size returns the pixel dimensions of img.
func Size(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// Fill returns a w×h raster of a single colour.
func (e *Engine) Fill(w, h int, c color.Color) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	stddraw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, stddraw.Src)
	return dst
}

// Rotate turns img clockwise by degrees about its centre. The result is sized
// to the rotated bounding box (rounded to whole pixels) and the exposed
// corners are filled with fill.
func (e *Engine) Rotate(img image.Image, degrees float64, fill color.Color) image.Image {
	sw, sh := Size(img)
	rw, rh := tile.ImageSizeAfterRotation(float64(sw), float64(sh), degrees)
	dw, dh := int(math.Round(rw)), int(math.Round(rh))

	dst := e.Fill(dw, dh, fill).(*image.RGBA)

	sin, cos := math.Sincos(degrees * math.Pi / 180)
	sb := img.Bounds()
	cx := float64(sb.Min.X) + float64(sw)/2
	cy := float64(sb.Min.Y) + float64(sh)/2

	// Source centre to origin, rotate clockwise (y grows downward), origin to
	// destination centre.
	s2d := f64.Aff3{
		cos, -sin, float64(dw)/2 - (cos*cx - sin*cy),
		sin, cos, float64(dh)/2 - (sin*cx + cos*cy),
	}
	e.interp.Transform(dst, s2d, img, sb, draw.Over, nil)
	return dst
}

// Crop copies the rectangle r out of img into a raster anchored at the origin.
// r is clipped to the image bounds.
func (e *Engine) Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Add(img.Bounds().Min).Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	stddraw.Draw(dst, dst.Bounds(), img, r.Min, stddraw.Src)
	return dst
}

// Compose renders the plan's crop of img into a dim×dim tile. The crop is
// scaled straight into its share of a canvas filled with fill, so the padded
// raster the plan describes is never allocated. Padding is scaled by the same
// factors as the crop.
func (e *Engine) Compose(img image.Image, plan tile.CropPlan, dim int, fill color.Color) image.Image {
	pw, ph := plan.PaddedSize()
	if !plan.Pad.Any() && pw == dim && ph == dim {
		return e.Crop(img, plan.Rect())
	}

	dst := e.Fill(dim, dim, fill).(*image.RGBA)
	src := plan.Rect().Add(img.Bounds().Min).Intersect(img.Bounds())
	if src.Empty() || pw <= 0 || ph <= 0 {
		return dst
	}

	sx := float64(dim) / float64(pw)
	sy := float64(dim) / float64(ph)
	cw, ch := plan.Right-plan.Left, plan.Bottom-plan.Top
	at := image.Rect(
		scaled(plan.Pad.Left, sx, dim),
		scaled(plan.Pad.Top, sy, dim),
		scaled(plan.Pad.Left+cw, sx, dim),
		scaled(plan.Pad.Top+ch, sy, dim),
	)
	// keep overlays narrower than a pixel visible
	if at.Dx() == 0 {
		at.Max.X = min(at.Min.X+1, dim)
		at.Min.X = at.Max.X - 1
	}
	if at.Dy() == 0 {
		at.Max.Y = min(at.Min.Y+1, dim)
		at.Min.Y = at.Max.Y - 1
	}

	e.interp.Scale(dst, at, img, src, draw.Src, nil)
	return dst
}

func scaled(v int, factor float64, limit int) int {
	return max(0, min(limit, int(math.Round(float64(v)*factor))))
}

// Encode writes img as PNG and returns the bytes with their content type.
func (e *Engine) Encode(img image.Image) ([]byte, string, error) {
	enc := png.Encoder{CompressionLevel: e.compression}

	var output bytes.Buffer
	if err := enc.Encode(&output, img); err != nil {
		return nil, "", err
	}
	return output.Bytes(), ContentTypePNG, nil
}
