// Package geo implements the great-circle math behind radius searches.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// DistanceKm returns the haversine distance between a and b in kilometres.
func DistanceKm(a, b Point) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within reports whether b lies within radiusKm of a, boundary included.
func Within(a, b Point, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm
}

// BoundingBox is a lat/lon rectangle that contains every point within a
// radius of its centre. It may contain points outside the radius, so callers
// still apply DistanceKm to what it admits.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	// WrapsAntimeridian is set when the box crosses longitude ±180. The
	// longitude range is then MinLon..180 together with -180..MaxLon.
	WrapsAntimeridian bool
}

// NewBoundingBox returns the box around center for radiusKm. Near the poles,
// or for radii wider than half the globe, the box spans every longitude.
func NewBoundingBox(center Point, radiusKm float64) BoundingBox {
	angular := radiusKm / EarthRadiusKm
	latDelta := degrees(angular)

	box := BoundingBox{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MaxLat: math.Min(center.Lat+latDelta, 90),
		MinLon: -180,
		MaxLon: 180,
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 || angular >= math.Pi/2 {
		return box
	}

	// Widest longitude span is reached at the latitude tangent to the circle.
	ratio := math.Sin(angular) / math.Cos(radians(center.Lat))
	if ratio >= 1 {
		return box
	}
	lonDelta := degrees(math.Asin(ratio))
	box.MinLon = center.Lon - lonDelta
	box.MaxLon = center.Lon + lonDelta

	switch {
	case box.MinLon < -180:
		box.MinLon += 360
		box.WrapsAntimeridian = true
	case box.MaxLon > 180:
		box.MaxLon -= 360
		box.WrapsAntimeridian = true
	}
	return box
}

// Contains reports whether p lies inside the box.
func (b BoundingBox) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.WrapsAntimeridian {
		return p.Lon >= b.MinLon || p.Lon <= b.MaxLon
	}
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
