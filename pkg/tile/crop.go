package tile

import (
	"image"
	"math"
)

// Padding is the background extent to add on each side of a crop, in pixels.
type Padding struct {
	Left, Top, Right, Bottom int
}

// Any reports whether any side needs padding.
func (p Padding) Any() bool {
	return p.Left > 0 || p.Top > 0 || p.Right > 0 || p.Bottom > 0
}

// CropPlan is the rectangle to extract from the rotated source raster plus
// the padding needed where the tile reaches past the raster.
type CropPlan struct {
	Left, Top, Right, Bottom int
	Pad                      Padding
}

// Rect returns the crop rectangle in rotated-raster pixel space.
func (c CropPlan) Rect() image.Rectangle {
	return image.Rect(c.Left, c.Top, c.Right, c.Bottom)
}

// Empty reports a crop with no pixels, e.g. a tile touching the box only
// along an edge.
func (c CropPlan) Empty() bool {
	return c.Right <= c.Left || c.Bottom <= c.Top
}

// PaddedSize returns the raster size after cropping and extending.
func (c CropPlan) PaddedSize() (int, int) {
	w := c.Right - c.Left + c.Pad.Left + c.Pad.Right
	h := c.Bottom - c.Top + c.Pad.Top + c.Pad.Bottom
	return w, h
}

// ImageSizeAfterRotation predicts the bounding size of a w×h raster rotated
// by degrees without rasterizing it. The result has a period of 180°.
func ImageSizeAfterRotation(w, h, degrees float64) (float64, float64) {
	degrees = math.Mod(degrees, 180)
	if degrees < 0 {
		degrees += 180
	}
	// 90+θ bounds like the transposed box at θ
	if degrees >= 90 {
		w, h = h, w
		degrees -= 90
	}
	if degrees == 0 {
		return w, h
	}

	sin, cos := math.Sincos(degrees * math.Pi / 180)
	return w*cos + h*sin, w*sin + h*cos
}

// PlanCrop maps the unit square of tile (x, y) linearly from bounding-box
// tile space onto a rotatedW×rotatedH raster. The crop is clamped to the
// raster; whatever falls outside becomes padding.
func PlanCrop(b TileBounds, x, y int, rotatedW, rotatedH float64) CropPlan {
	fx, fy := float64(x), float64(y)
	bw, bh := b.Width(), b.Height()

	return CropPlan{
		Left:   round(math.Max(0, (fx-b.MinX)/bw) * rotatedW),
		Top:    round(math.Max(0, (fy-b.MinY)/bh) * rotatedH),
		Right:  round(math.Min(rotatedW, (fx+1-b.MinX)/bw*rotatedW)),
		Bottom: round(math.Min(rotatedH, (fy+1-b.MinY)/bh*rotatedH)),
		Pad: Padding{
			Left:   round(math.Max(0, (b.MinX-fx)/bw*rotatedW)),
			Top:    round(math.Max(0, (b.MinY-fy)/bh*rotatedH)),
			Right:  round(math.Max(0, (fx+1-b.MaxX)/bw*rotatedW)),
			Bottom: round(math.Max(0, (fy+1-b.MaxY)/bh*rotatedH)),
		},
	}
}

// round rounds halves towards +Inf so tile edges land on the same pixel
// from both neighbours.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
