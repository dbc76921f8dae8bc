package tile

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

func TestProjectUnprojectRoundTrip(t *testing.T) {
	for lat := -84.0; lat <= 84.0; lat += 7.5 {
		for lng := -179.0; lng <= 179.0; lng += 31.3 {
			in := GeoPoint{Lat: lat, Lng: lng}
			out := Unproject(Project(in))
			if math.Abs(out.Lat-in.Lat) > 1e-9 || math.Abs(out.Lng-in.Lng) > 1e-9 {
				t.Errorf("round trip %v -> %v", in, out)
			}
		}
	}
}

func TestProjectClampsNearPoles(t *testing.T) {
	for _, lat := range []float64{89.9999, -89.9999, 90, -90} {
		p := Project(GeoPoint{Lat: lat, Lng: 0})
		if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			t.Errorf("Project(lat=%v) = %v, want finite", lat, p.Y)
		}
	}

	north := Project(GeoPoint{Lat: 89, Lng: 0})
	south := Project(GeoPoint{Lat: -89, Lng: 0})
	if north.Y >= south.Y {
		t.Errorf("expected y to grow southwards, got north=%v south=%v", north.Y, south.Y)
	}
}

func TestProjectOrigin(t *testing.T) {
	p := Project(GeoPoint{})
	if p.X != Size/2 || p.Y != Size/2 {
		t.Errorf("Project(0,0) = %v, want (128,128)", p)
	}
}

func TestTileCoordinateMatchesMaptile(t *testing.T) {
	points := []GeoPoint{
		{Lat: 21.334011, Lng: -157.866301},
		{Lat: 37.7749, Lng: -122.4194},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 51.5074, Lng: -0.1278},
	}

	for _, p := range points {
		for _, z := range []int{0, 5, 14, 18} {
			got := TileCoordinate(Project(p), z)
			want := maptile.Fraction(orb.Point{p.Lng, p.Lat}, maptile.Zoom(z))
			if math.Abs(got.X-want.X()) > 1e-6 || math.Abs(got.Y-want.Y()) > 1e-6 {
				t.Errorf("TileCoordinate(%v, %d) = (%v, %v), want (%v, %v)", p, z, got.X, got.Y, want.X(), want.Y())
			}
		}
	}
}

func TestDestinationPoint(t *testing.T) {
	from := GeoPoint{Lat: 21.334011, Lng: -157.866301}

	tests := []struct {
		name    string
		bearing float64
		check   func(GeoPoint) bool
	}{
		{"north", 0, func(p GeoPoint) bool { return p.Lat > from.Lat && math.Abs(p.Lng-from.Lng) < 1e-9 }},
		{"east", 90, func(p GeoPoint) bool { return p.Lng > from.Lng }},
		{"south", 180, func(p GeoPoint) bool { return p.Lat < from.Lat && math.Abs(p.Lng-from.Lng) < 1e-9 }},
		{"west", 270, func(p GeoPoint) bool { return p.Lng < from.Lng }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DestinationPoint(from, 2800, tt.bearing)
			if !tt.check(got) {
				t.Errorf("DestinationPoint bearing %v = %v", tt.bearing, got)
			}
		})
	}

	// One degree of latitude along a meridian.
	oneDegree := EarthRadius * math.Pi / 180
	got := DestinationPoint(GeoPoint{}, oneDegree, 0)
	if math.Abs(got.Lat-1) > 1e-9 || math.Abs(got.Lng) > 1e-9 {
		t.Errorf("DestinationPoint one degree north = %v, want (1, 0)", got)
	}
}

func TestDestinationPointZeroDistance(t *testing.T) {
	from := GeoPoint{Lat: 48.8566, Lng: 2.3522}
	got := DestinationPoint(from, 0, 123)
	if math.Abs(got.Lat-from.Lat) > 1e-12 || math.Abs(got.Lng-from.Lng) > 1e-12 {
		t.Errorf("DestinationPoint zero distance = %v, want %v", got, from)
	}
}
