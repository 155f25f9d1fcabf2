package domain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
)

// EarthRadiusM is the mean Earth radius used for cell areas.
const EarthRadiusM = 6.371e6

// Profile holds the vertical columns at one grid node for every time slot.
type Profile struct {
	Lat    float64     `json:"lat"`
	Lon    float64     `json:"lon"`
	Depth  []float64   `json:"depth_m"`
	Time   []int       `json:"time"`
	Values [][]float64 `json:"values"` // Values[t][k]; missing cells are NaN.
}

// Profile returns the columns at the grid node nearest to (lat, lon).
func (g *Grid) Profile(lat, lon float64) Profile {
	i, j := g.NearestIndex(lat, lon)
	p := Profile{
		Lat:    g.Coords.Lat[i],
		Lon:    g.Coords.Lon[j],
		Depth:  g.Coords.Depth,
		Time:   g.Coords.Time,
		Values: make([][]float64, len(g.Coords.Time)),
	}
	for t := range g.Coords.Time {
		p.Values[t] = g.Column(i, j, t)
	}
	return p
}

// VolumeMean returns the volume-weighted mean of the field at time index t.
//
// Each water column is integrated over depth with the trapezoid rule, with
// missing cells contributing neither value nor wet thickness. Columns are
// weighted by a² cos φ Δφ Δλ, assuming uniform lat/lon spacing.
func (g *Grid) VolumeMean(t int) (float64, error) {
	nLat, nLon, nDepth, nTime := len(g.Coords.Lat), len(g.Coords.Lon), len(g.Coords.Depth), len(g.Coords.Time)
	if t < 0 || t >= nTime {
		return 0, fmt.Errorf("time index %d out of range [0, %d)", t, nTime)
	}
	if nLat < 2 || nLon < 2 {
		return 0, fmt.Errorf("volume mean needs at least 2 latitudes and 2 longitudes, got %d x %d", nLat, nLon)
	}
	if nDepth < 2 {
		return 0, fmt.Errorf("volume mean needs at least 2 depth levels, got %d", nDepth)
	}
	if !sort.Float64sAreSorted(g.Coords.Depth) {
		return 0, fmt.Errorf("depth axis must be ascending")
	}

	dphi := math.Abs(g.Coords.Lat[1]-g.Coords.Lat[0]) * math.Pi / 180
	dlam := math.Abs(g.Coords.Lon[1]-g.Coords.Lon[0]) * math.Pi / 180

	values := make([]float64, nDepth)
	wet := make([]float64, nDepth)
	var sumValue, sumVolume float64
	for i, lat := range g.Coords.Lat {
		dA := EarthRadiusM * EarthRadiusM * math.Cos(lat*math.Pi/180) * dphi * dlam
		for j := 0; j < nLon; j++ {
			for k := 0; k < nDepth; k++ {
				v := g.At(i, j, k, t)
				if math.IsNaN(v) {
					values[k], wet[k] = 0, 0
					continue
				}
				values[k], wet[k] = v, 1
			}
			sumValue += integrate.Trapezoidal(g.Coords.Depth, values) * dA
			sumVolume += integrate.Trapezoidal(g.Coords.Depth, wet) * dA
		}
	}

	if sumVolume == 0 {
		return 0, fmt.Errorf("no wet volume at time index %d", t)
	}
	return sumValue / sumVolume, nil
}
