package tile

import (
	"image/color"

	"github.com/paulmach/orb/maptile"
)

// Fixed constants shared by every tile computation. Changing any of them
// breaks pixel alignment with tiles rendered earlier.
const (
	// Size is the base tile size in pixels; one world wrap at zoom 0.
	Size = 256

	// EarthRadius is the WGS84 equatorial radius in meters, used as a
	// spherical approximation.
	EarthRadius = 6378137.0

	// DefaultDimension is the output tile edge in pixels when a request
	// does not ask for another one.
	DefaultDimension = 256

	// MaxZoom is the deepest zoom level accepted for a tile request.
	MaxZoom = 30
)

// Background is the fill used for rotated corners, padding and placeholders.
var Background = color.RGBA{R: 63, G: 120, B: 106, A: 255}

// GeoPoint is a geographic location in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" mapstructure:"lat"`
	Lng float64 `json:"lng" mapstructure:"lng"`
}

// PixelPoint is a point in world pixel space at base tile size.
type PixelPoint struct {
	X, Y float64
}

// TileCoord is a possibly fractional tile position at a zoom level.
type TileCoord struct {
	X, Y float64
	Zoom int
}

// OverlayDescriptor georeferences a source image. Anchor is the unrotated
// top-left corner; AspectWidth and AspectHeight are the source image's pixel
// dimensions.
type OverlayDescriptor struct {
	Anchor          GeoPoint `json:"anchor" mapstructure:"anchor"`
	WidthMeters     float64  `json:"width_meters" mapstructure:"width_meters"`
	RotationDegrees float64  `json:"rotation_degrees" mapstructure:"rotation_degrees"`
	AspectWidth     float64  `json:"aspect_width" mapstructure:"aspect_width"`
	AspectHeight    float64  `json:"aspect_height" mapstructure:"aspect_height"`
}

// Request is one tile resolution request.
type Request struct {
	Overlay         OverlayDescriptor
	Tile            maptile.Tile
	OutputDimension int
}

// Dimension returns the requested output edge, falling back to DefaultDimension.
func (r Request) Dimension() int {
	if r.OutputDimension <= 0 {
		return DefaultDimension
	}
	return r.OutputDimension
}
