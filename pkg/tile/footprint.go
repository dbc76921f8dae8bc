package tile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Corner indexes into Footprint.Corners and Footprint.Pixels.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// Footprint is the quadrilateral an overlay occupies on the globe, with the
// corners ordered top-left, top-right, bottom-right, bottom-left.
type Footprint struct {
	Corners [4]GeoPoint
	Pixels  [4]PixelPoint
}

// TileBounds is an axis-aligned box in fractional tile units at one zoom.
type TileBounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns the box width in tiles.
func (b TileBounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height in tiles.
func (b TileBounds) Height() float64 { return b.MaxY - b.MinY }

// Validate reports descriptor values the footprint cannot be built from.
func (d OverlayDescriptor) Validate() error {
	switch {
	case !finite(d.WidthMeters) || d.WidthMeters <= 0:
		return fmt.Errorf("width_meters must be positive, got %v", d.WidthMeters)
	case !finite(d.AspectWidth) || d.AspectWidth <= 0:
		return fmt.Errorf("aspect_width must be positive, got %v", d.AspectWidth)
	case !finite(d.AspectHeight) || d.AspectHeight <= 0:
		return fmt.Errorf("aspect_height must be positive, got %v", d.AspectHeight)
	case !finite(d.RotationDegrees):
		return fmt.Errorf("rotation_degrees must be finite, got %v", d.RotationDegrees)
	case !finite(d.Anchor.Lat) || d.Anchor.Lat <= -90 || d.Anchor.Lat >= 90:
		return fmt.Errorf("anchor latitude must be within (-90, 90), got %v", d.Anchor.Lat)
	case !finite(d.Anchor.Lng):
		return fmt.Errorf("anchor longitude must be finite, got %v", d.Anchor.Lng)
	}
	return nil
}

// BuildFootprint walks the overlay border from the anchor with geodesic
// offsets, as if the image were rotated in place about its top-left corner.
func BuildFootprint(d OverlayDescriptor) Footprint {
	heightMeters := d.WidthMeters * (d.AspectHeight / d.AspectWidth)

	var f Footprint
	f.Corners[TopLeft] = d.Anchor
	f.Corners[TopRight] = DestinationPoint(f.Corners[TopLeft], d.WidthMeters, 90+d.RotationDegrees)
	f.Corners[BottomRight] = DestinationPoint(f.Corners[TopRight], heightMeters, 180+d.RotationDegrees)
	f.Corners[BottomLeft] = DestinationPoint(f.Corners[BottomRight], d.WidthMeters, 270+d.RotationDegrees)

	for i, c := range f.Corners {
		f.Pixels[i] = Project(c)
	}
	return f
}

// Bounds returns the world pixel bounding box of the projected corners. It
// bounds the rotated shape rather than filling it.
func (f Footprint) Bounds() orb.Bound {
	mp := make(orb.MultiPoint, 0, len(f.Pixels))
	for _, p := range f.Pixels {
		mp = append(mp, orb.Point{p.X, p.Y})
	}
	return mp.Bound()
}

// TileBounds returns Bounds expressed in fractional tile units at zoom.
func (f Footprint) TileBounds(zoom int) TileBounds {
	b := f.Bounds()
	lo := TileCoordinate(PixelPoint{X: b.Min.X(), Y: b.Min.Y()}, zoom)
	hi := TileCoordinate(PixelPoint{X: b.Max.X(), Y: b.Max.Y()}, zoom)

	return TileBounds{MinX: lo.X, MinY: lo.Y, MaxX: hi.X, MaxY: hi.Y}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
