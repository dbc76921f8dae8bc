package tile

import "math"

// sinLimit keeps the Mercator logarithm finite near the poles.
const sinLimit = 0.9999

// Project converts a geographic point to world pixel coordinates using the
// spherical Web-Mercator projection.
// https://en.wikipedia.org/wiki/Web_Mercator_projection
func Project(p GeoPoint) PixelPoint {
	siny := math.Sin(p.Lat * math.Pi / 180)
	siny = math.Min(math.Max(siny, -sinLimit), sinLimit)

	return PixelPoint{
		X: Size * (0.5 + p.Lng/360),
		Y: Size * (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)),
	}
}

// Unproject is the inverse of Project.
func Unproject(p PixelPoint) GeoPoint {
	lng := (p.X/Size - 0.5) * 360
	k := (0.5 - p.Y/Size) * 4 * math.Pi
	// sin(lat) = tanh(k/2)
	lat := math.Asin(math.Tanh(k/2)) * 180 / math.Pi

	return GeoPoint{Lat: lat, Lng: lng}
}

// DestinationPoint returns the point reached by travelling distanceMeters from
// `from` along the great circle starting at bearingDegrees (clockwise from north).
// http://www.movable-type.co.uk/scripts/latlong.html
func DestinationPoint(from GeoPoint, distanceMeters, bearingDegrees float64) GeoPoint {
	delta := distanceMeters / EarthRadius
	theta := bearingDegrees * math.Pi / 180

	phi1 := from.Lat * math.Pi / 180
	lambda1 := from.Lng * math.Pi / 180

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	sinDelta, cosDelta := math.Sincos(delta)
	sinTheta, cosTheta := math.Sincos(theta)

	sinPhi2 := sinPhi1*cosDelta + cosPhi1*sinDelta*cosTheta
	phi2 := math.Asin(sinPhi2)
	y := sinTheta * sinDelta * cosPhi1
	x := cosDelta - sinPhi1*sinPhi2
	lambda2 := lambda1 + math.Atan2(y, x)

	return GeoPoint{
		Lat: phi2 * 180 / math.Pi,
		Lng: lambda2 * 180 / math.Pi,
	}
}

// TileCoordinate scales a world pixel point to fractional tile units at zoom.
func TileCoordinate(p PixelPoint, zoom int) TileCoord {
	scale := math.Exp2(float64(zoom))
	return TileCoord{
		X:    p.X * scale / Size,
		Y:    p.Y * scale / Size,
		Zoom: zoom,
	}
}
