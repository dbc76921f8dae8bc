package tile

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb/maptile"
)

// Intersects reports whether the unit square of tile (x, y) overlaps the box.
// Tile x spans [x, x+1) in tile space.
func (b TileBounds) Intersects(x, y int) bool {
	fx, fy := float64(x), float64(y)
	return !(fx+1 < b.MinX || fx > b.MaxX || fy+1 < b.MinY || fy > b.MaxY)
}

// Degenerate reports a box with no area, which no crop can be planned against.
func (b TileBounds) Degenerate() bool {
	w, h := b.Width(), b.Height()
	return !(w > 0) || !(h > 0) || math.IsInf(w, 0) || math.IsInf(h, 0)
}

// Covering lists the tiles a warm-up pass must render for the box at zoom:
// floor(min)..ceil(max) on each axis, clipped to the tile grid.
func (b TileBounds) Covering(zoom maptile.Zoom) []maptile.Tile {
	limit := int64(1) << zoom
	clip := func(v float64) uint32 {
		i := int64(v)
		if i < 0 {
			return 0
		}
		if i >= limit {
			return uint32(limit - 1)
		}
		return uint32(i)
	}

	x0, x1 := clip(math.Floor(b.MinX)), clip(math.Ceil(b.MaxX))
	y0, y1 := clip(math.Floor(b.MinY)), clip(math.Ceil(b.MaxY))

	tiles := make([]maptile.Tile, 0, int(x1-x0+1)*int(y1-y0+1))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			tiles = append(tiles, maptile.New(x, y, zoom))
		}
	}
	return tiles
}

// ErrOutsideGrid is returned for tile addresses that do not exist at their zoom.
var ErrOutsideGrid = errors.New("tile outside grid")

// NewTile validates a z/x/y address against the tile grid.
func NewTile(x, y, zoom int) (maptile.Tile, error) {
	if zoom < 0 || zoom > MaxZoom {
		return maptile.Tile{}, fmt.Errorf("%w: zoom %d not in [0, %d]", ErrOutsideGrid, zoom, MaxZoom)
	}
	n := 1 << zoom
	if x < 0 || y < 0 || x >= n || y >= n {
		return maptile.Tile{}, fmt.Errorf("%w: %d/%d/%d", ErrOutsideGrid, zoom, x, y)
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(zoom)), nil
}
