package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	buenosAires = Point{Lat: -34.6037, Lon: -58.3816}
	cordoba     = Point{Lat: -31.4201, Lon: -64.1888}
	montevideo  = Point{Lat: -34.9011, Lon: -56.1645}
	london      = Point{Lat: 51.5074, Lon: -0.1278}
	paris       = Point{Lat: 48.8566, Lon: 2.3522}
	newYork     = Point{Lat: 40.7128, Lon: -74.0060}
	losAngeles  = Point{Lat: 34.0522, Lon: -118.2437}
)

func TestDistanceKm_Identity(t *testing.T) {
	assert.Equal(t, 0.0, DistanceKm(cordoba, cordoba))
}

func TestDistanceKm_Symmetric(t *testing.T) {
	pairs := [][2]Point{{buenosAires, cordoba}, {london, paris}, {newYork, losAngeles}}
	for _, p := range pairs {
		assert.InDelta(t, DistanceKm(p[0], p[1]), DistanceKm(p[1], p[0]), 1e-9)
	}
}

func TestDistanceKm_KnownCities(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
	}{
		{"london-paris", london, paris, 343.5},
		{"newyork-losangeles", newYork, losAngeles, 3935.7},
		{"buenosaires-cordoba", buenosAires, cordoba, 646.0},
		{"buenosaires-montevideo", buenosAires, montevideo, 204.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			assert.InEpsilon(t, tt.want, got, 0.01, "got %.1f km", got)
		})
	}
}

func TestWithin_BoundaryInclusive(t *testing.T) {
	d := DistanceKm(buenosAires, montevideo)
	assert.True(t, Within(buenosAires, montevideo, d))
	assert.False(t, Within(buenosAires, montevideo, d-0.001))
}

func TestBoundingBox_ContainsEveryPointInRadius(t *testing.T) {
	centers := []Point{buenosAires, london, {Lat: 0, Lon: 179.9}, {Lat: -60, Lon: -179.5}}
	radii := []float64{1, 50, 500, 2000}

	for _, c := range centers {
		for _, r := range radii {
			box := NewBoundingBox(c, r)
			for bearing := 0.0; bearing < 360; bearing += 15 {
				p := destination(c, bearing, r*0.999)
				assert.True(t, box.Contains(p), "center %v radius %v bearing %v point %v", c, r, bearing, p)
			}
		}
	}
}

func TestBoundingBox_ExcludesFarPoints(t *testing.T) {
	box := NewBoundingBox(buenosAires, 50)
	assert.True(t, box.Contains(buenosAires))
	assert.False(t, box.Contains(cordoba))
	assert.False(t, box.WrapsAntimeridian)
}

func TestBoundingBox_Poles(t *testing.T) {
	box := NewBoundingBox(Point{Lat: -89.9, Lon: 10}, 100)
	assert.Equal(t, -90.0, box.MinLat)
	assert.Equal(t, -180.0, box.MinLon)
	assert.Equal(t, 180.0, box.MaxLon)
}

// destination returns the point reached from p after distKm along bearing.
func destination(p Point, bearingDeg, distKm float64) Point {
	d := distKm / EarthRadiusKm
	brg := radians(bearingDeg)
	lat1, lon1 := radians(p.Lat), radians(p.Lon)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(math.Sin(brg)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	lon := math.Mod(degrees(lon2)+540, 360) - 180
	return Point{Lat: degrees(lat2), Lon: lon}
}
