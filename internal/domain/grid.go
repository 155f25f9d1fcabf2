package domain

import (
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Axis names used in the coordinate bundle.
const (
	AxisLat   = "lat"
	AxisLon   = "lon"
	AxisDepth = "depth"
	AxisTime  = "time"
)

// Missing returns the sentinel stored in cells without an observation.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is the missing sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Coords holds the coordinate vectors a grid was built from.
type Coords struct {
	Lat   []float64 // Degrees north, strictly ascending.
	Lon   []float64 // Degrees east, strictly ascending.
	Depth []float64 // Meters, positive down.
	Time  []int     // Derived from the time code, not read from file.
}

// Map returns the coordinate bundle keyed by axis name.
func (c Coords) Map() map[string][]float64 {
	t := make([]float64, len(c.Time))
	for i, v := range c.Time {
		t[i] = float64(v)
	}
	return map[string][]float64{
		AxisLat:   c.Lat,
		AxisLon:   c.Lon,
		AxisDepth: c.Depth,
		AxisTime:  t,
	}
}

// Grid is a dense (lat, lon, depth, time) array with its coordinates.
type Grid struct {
	Data   *sparse.DenseArray
	Coords Coords
}

// NewGrid allocates a grid shaped after coords with every cell missing.
func NewGrid(coords Coords) *Grid {
	data := sparse.ZerosDense(len(coords.Lat), len(coords.Lon), len(coords.Depth), len(coords.Time))
	for i := range data.Elements {
		data.Elements[i] = math.NaN()
	}
	return &Grid{Data: data, Coords: coords}
}

// Shape returns (nLat, nLon, nDepth, nTime).
func (g *Grid) Shape() [4]int {
	return [4]int{len(g.Coords.Lat), len(g.Coords.Lon), len(g.Coords.Depth), len(g.Coords.Time)}
}

// At returns the value at cell (i, j, k, t).
func (g *Grid) At(i, j, k, t int) float64 {
	return g.Data.Get(i, j, k, t)
}

// Set stores v at cell (i, j, k, t).
// DenseArray.Set drops zero values, which would leave a zero observation missing.
func (g *Grid) Set(v float64, i, j, k, t int) {
	g.Data.Elements[g.Data.Index1d(i, j, k, t)] = v
}

// Column returns the depth profile at (i, j) for time index t.
func (g *Grid) Column(i, j, t int) []float64 {
	col := make([]float64, len(g.Coords.Depth))
	for k := range col {
		col[k] = g.At(i, j, k, t)
	}
	return col
}

// Slice returns the horizontal field at depth index k and time index t as [lat][lon].
func (g *Grid) Slice(k, t int) [][]float64 {
	values := make([][]float64, len(g.Coords.Lat))
	for i := range values {
		values[i] = make([]float64, len(g.Coords.Lon))
		for j := range values[i] {
			values[i][j] = g.At(i, j, k, t)
		}
	}
	return values
}

// Coverage returns the fraction of cells holding an observation.
// It is a diagnostic for the sparse population of the dense array, not a validity check.
func (g *Grid) Coverage() float64 {
	n := len(g.Data.Elements)
	if n == 0 {
		return 0
	}
	present := floats.Count(func(v float64) bool { return !math.IsNaN(v) }, g.Data.Elements)
	return float64(present) / float64(n)
}

// NearestIndex returns the (lat, lon) indices of the grid node closest to the point.
// Longitudes are wrapped to the grid's convention (0–360 or −180–180) first.
func (g *Grid) NearestIndex(lat, lon float64) (int, int) {
	return findNearestIndex(g.Coords.Lat, lat), findNearestIndex(g.Coords.Lon, NormalizeLonForAxis(g.Coords.Lon, lon))
}

// NormalizeLonForAxis wraps lon into the convention used by lons.
func NormalizeLonForAxis(lons []float64, lon float64) float64 {
	if len(lons) == 0 {
		return lon
	}
	if lons[len(lons)-1] > 180 {
		lon = math.Mod(lon, 360)
		if lon < 0 {
			lon += 360
		}
		return lon
	}
	if lon > 180 {
		lon -= 360
	}
	return lon
}

// findNearestIndex finds the index of the value closest to target in a sorted array.
func findNearestIndex(arr []float64, target float64) int {
	if len(arr) == 0 {
		return 0
	}

	left, right := 0, len(arr)-1
	for left < right {
		mid := (left + right) / 2
		if arr[mid] < target {
			left = mid + 1
		} else {
			right = mid
		}
	}

	if left > 0 && math.Abs(arr[left-1]-target) <= math.Abs(arr[left]-target) {
		return left - 1
	}
	return left
}
