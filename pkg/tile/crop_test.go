package tile

import (
	"math"
	"testing"

	"github.com/paulmach/orb/maptile"
)

func TestImageSizeAfterRotation(t *testing.T) {
	tests := []struct {
		name          string
		w, h, degrees float64
		wantW, wantH  float64
	}{
		{"zero", 3521, 2368, 0, 3521, 2368},
		{"ninety", 3521, 2368, 90, 2368, 3521},
		{"one eighty", 3521, 2368, 180, 3521, 2368},
		{"minus ninety", 3521, 2368, -90, 2368, 3521},
		{"square at 45", 100, 100, 45, 100 * math.Sqrt2, 100 * math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ImageSizeAfterRotation(tt.w, tt.h, tt.degrees)
			if math.Abs(w-tt.wantW) > 1e-9 || math.Abs(h-tt.wantH) > 1e-9 {
				t.Errorf("ImageSizeAfterRotation(%v, %v, %v) = (%v, %v), want (%v, %v)",
					tt.w, tt.h, tt.degrees, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestImageSizeAfterRotationExactAtZero(t *testing.T) {
	w, h := ImageSizeAfterRotation(3521, 2368, 0)
	if w != 3521 || h != 2368 {
		t.Errorf("got (%v, %v), want exact (3521, 2368)", w, h)
	}
	w, h = ImageSizeAfterRotation(3521, 2368, 90)
	if w != 2368 || h != 3521 {
		t.Errorf("got (%v, %v), want exact (2368, 3521)", w, h)
	}
}

func TestImageSizeAfterRotationPeriodic(t *testing.T) {
	for deg := -360.0; deg <= 360; deg += 17 {
		w1, h1 := ImageSizeAfterRotation(640, 480, deg)
		w2, h2 := ImageSizeAfterRotation(640, 480, deg+180)
		if math.Abs(w1-w2) > 1e-9 || math.Abs(h1-h2) > 1e-9 {
			t.Errorf("period broken at %v: (%v, %v) vs (%v, %v)", deg, w1, h1, w2, h2)
		}
	}
}

func TestPlanCropInteriorTileHasNoPadding(t *testing.T) {
	b := BuildFootprint(honolulu).TileBounds(16)

	plan := PlanCrop(b, 4030, 28792, 64, 64)

	if plan.Pad.Any() {
		t.Errorf("interior tile padding = %+v, want none", plan.Pad)
	}
	if plan.Left <= 0 || plan.Top <= 0 || plan.Right >= 64 || plan.Bottom >= 64 {
		t.Errorf("interior crop %v should be a strict subset of 64x64", plan.Rect())
	}
	want := CropPlan{Left: 9, Top: 9, Right: 22, Bottom: 22}
	if plan != want {
		t.Errorf("PlanCrop = %+v, want %+v", plan, want)
	}
}

func TestPlanCropEdgeTiles(t *testing.T) {
	b := BuildFootprint(honolulu).TileBounds(14)

	tests := []struct {
		x, y int
		want CropPlan
	}{
		{1007, 7197, CropPlan{Left: 0, Top: 0, Right: 35, Bottom: 9, Pad: Padding{Left: 17, Top: 43}}},
		{1008, 7198, CropPlan{Left: 35, Top: 9, Right: 64, Bottom: 61, Pad: Padding{Right: 23}}},
		{1008, 7199, CropPlan{Left: 35, Top: 61, Right: 64, Bottom: 64, Pad: Padding{Right: 23, Bottom: 50}}},
	}

	for _, tt := range tests {
		got := PlanCrop(b, tt.x, tt.y, 64, 64)
		if got != tt.want {
			t.Errorf("PlanCrop(%d, %d) = %+v, want %+v", tt.x, tt.y, got, tt.want)
		}
		if r := got.Rect(); r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > 64 || r.Max.Y > 64 {
			t.Errorf("crop %v escapes the raster", r)
		}
	}
}

func TestPlanCropPaddedSize(t *testing.T) {
	plan := CropPlan{Left: 0, Top: 0, Right: 35, Bottom: 9, Pad: Padding{Left: 17, Top: 43}}
	w, h := plan.PaddedSize()
	if w != 52 || h != 52 {
		t.Errorf("PaddedSize = (%d, %d), want (52, 52)", w, h)
	}
}

func TestPlanCropEmpty(t *testing.T) {
	b := TileBounds{MinX: 3, MinY: 3, MaxX: 5, MaxY: 5}
	// Tile 2 ends exactly where the box starts.
	plan := PlanCrop(b, 2, 3, 100, 100)
	if !plan.Empty() {
		t.Errorf("PlanCrop on touching tile = %+v, want empty", plan)
	}
}

func TestIntersects(t *testing.T) {
	b := TileBounds{MinX: 10.5, MinY: 20.5, MaxX: 12.5, MaxY: 22.5}

	tests := []struct {
		x, y int
		want bool
	}{
		{10, 20, true},
		{11, 21, true},
		{12, 22, true},
		{9, 21, false},
		{13, 21, false},
		{11, 19, false},
		{11, 23, false},
		{0, 0, false},
	}

	for _, tt := range tests {
		if got := b.Intersects(tt.x, tt.y); got != tt.want {
			t.Errorf("Intersects(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestDegenerate(t *testing.T) {
	if (TileBounds{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}).Degenerate() {
		t.Error("unit box reported degenerate")
	}
	if !(TileBounds{MinX: 1, MinY: 1, MaxX: 1, MaxY: 2}).Degenerate() {
		t.Error("zero-width box not reported degenerate")
	}
	if !(TileBounds{MinX: math.NaN(), MinY: 1, MaxX: 2, MaxY: 2}).Degenerate() {
		t.Error("NaN box not reported degenerate")
	}
}

func TestCovering(t *testing.T) {
	b := TileBounds{MinX: 10.5, MinY: 20.5, MaxX: 11.5, MaxY: 21.2}
	tiles := b.Covering(maptile.Zoom(6))

	// floor(10.5)..ceil(11.5) x floor(20.5)..ceil(21.2) = 3 x 3
	if len(tiles) != 9 {
		t.Fatalf("Covering returned %d tiles, want 9", len(tiles))
	}
	if tiles[0] != maptile.New(10, 20, 6) {
		t.Errorf("first tile = %v, want 6/10/20", tiles[0])
	}
}

func TestCoveringClipsToGrid(t *testing.T) {
	b := TileBounds{MinX: -0.5, MinY: -0.5, MaxX: 1.5, MaxY: 1.5}
	tiles := b.Covering(maptile.Zoom(1))
	if len(tiles) != 4 {
		t.Fatalf("Covering returned %d tiles, want the 4 tiles of zoom 1", len(tiles))
	}
}

func TestNewTile(t *testing.T) {
	if _, err := NewTile(1006, 7197, 14); err != nil {
		t.Errorf("NewTile(1006, 7197, 14) error = %v", err)
	}
	for _, c := range [][3]int{{-1, 0, 3}, {8, 0, 3}, {0, 8, 3}, {0, 0, -1}, {0, 0, MaxZoom + 1}} {
		if _, err := NewTile(c[0], c[1], c[2]); err == nil {
			t.Errorf("NewTile(%v) accepted an address outside the grid", c)
		}
	}
}
