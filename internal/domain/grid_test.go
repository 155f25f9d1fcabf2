package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGrid(lats, lons, depths []float64, times []int) *Grid {
	return NewGrid(Coords{Lat: lats, Lon: lons, Depth: depths, Time: times})
}

func TestNewGrid_AllMissing(t *testing.T) {
	g := newTestGrid([]float64{0, 1}, []float64{0, 1, 2}, []float64{0, 10}, []int{0})

	assert.Equal(t, [4]int{2, 3, 2, 1}, g.Shape())
	assert.Len(t, g.Data.Elements, 12)
	assert.Zero(t, g.Coverage())
	for _, v := range g.Data.Elements {
		assert.True(t, IsMissing(v))
	}
}

func TestGrid_SetKeepsZero(t *testing.T) {
	g := newTestGrid([]float64{0}, []float64{0}, []float64{0, 10}, []int{1, 2})
	g.Set(0, 0, 0, 1, 1)

	assert.Equal(t, 0.0, g.At(0, 0, 1, 1))
	assert.True(t, IsMissing(g.At(0, 0, 1, 0)))
	assert.InDelta(t, 0.25, g.Coverage(), 1e-12)
}

func TestGrid_ColumnAndSlice(t *testing.T) {
	g := newTestGrid([]float64{0, 1}, []float64{10, 20}, []float64{0, 5, 10}, []int{0})
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 3; k++ {
				g.Set(float64(100*i+10*j+k), i, j, k, 0)
			}
		}
	}

	assert.Equal(t, []float64{110, 111, 112}, g.Column(1, 1, 0))
	assert.Equal(t, [][]float64{{2, 12}, {102, 112}}, g.Slice(2, 0))
}

func TestGrid_NearestIndex(t *testing.T) {
	tests := []struct {
		name         string
		lons         []float64
		lat, lon     float64
		wantI, wantJ int
	}{
		{"interior", []float64{-179.5, -30.5, 0.5, 179.5}, 44.6, -30, 1, 1},
		{"wraps east longitude", []float64{-179.5, -30.5, 0.5, 179.5}, 45.4, 329.6, 2, 1},
		{"0-360 axis", []float64{0.5, 90.5, 329.5, 359.5}, 45.4, -30, 2, 2},
		{"clamps below", []float64{0.5, 90.5}, -90, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGrid([]float64{-0.5, 44.5, 45.5}, tt.lons, []float64{0}, []int{0})
			i, j := g.NearestIndex(tt.lat, tt.lon)
			assert.Equal(t, tt.wantI, i)
			assert.Equal(t, tt.wantJ, j)
		})
	}
}

func TestGrid_Profile(t *testing.T) {
	g := newTestGrid([]float64{44.5, 45.5}, []float64{-30.5, -29.5}, []float64{0, 10}, []int{1, 2, 3, 4})
	for tt := 0; tt < 4; tt++ {
		g.Set(float64(tt), 1, 0, 0, tt)
	}

	p := g.Profile(45.2, 329.4)
	assert.Equal(t, 45.5, p.Lat)
	assert.Equal(t, -30.5, p.Lon)
	assert.Equal(t, []int{1, 2, 3, 4}, p.Time)
	require.Len(t, p.Values, 4)
	assert.Equal(t, 3.0, p.Values[3][0])
	assert.True(t, IsMissing(p.Values[3][1]))
}

func TestGrid_VolumeMean(t *testing.T) {
	lats := []float64{0, 60}
	g := newTestGrid(lats, []float64{0, 1}, []float64{0, 100, 200}, []int{0})
	for j := 0; j < 2; j++ {
		for k := 0; k < 3; k++ {
			g.Set(10, 0, j, k, 0)
			g.Set(20, 1, j, k, 0)
		}
	}
	// A dry column contributes nothing.
	g.Set(math.NaN(), 1, 1, 0, 0)
	g.Set(math.NaN(), 1, 1, 1, 0)
	g.Set(math.NaN(), 1, 1, 2, 0)

	mean, err := g.VolumeMean(0)
	require.NoError(t, err)

	w0 := 2 * math.Cos(0)
	w1 := math.Cos(60 * math.Pi / 180)
	assert.InDelta(t, (10*w0+20*w1)/(w0+w1), mean, 1e-9)
}

func TestGrid_VolumeMeanErrors(t *testing.T) {
	g := newTestGrid([]float64{0}, []float64{0, 1}, []float64{0, 10}, []int{0})
	_, err := g.VolumeMean(0)
	assert.Error(t, err)

	g = newTestGrid([]float64{0, 1}, []float64{0, 1}, []float64{0, 10}, []int{0})
	_, err = g.VolumeMean(1)
	assert.Error(t, err)

	_, err = g.VolumeMean(0)
	assert.ErrorContains(t, err, "no wet volume")

	g = newTestGrid([]float64{0, 1}, []float64{0, 1}, []float64{10, 0}, []int{0})
	_, err = g.VolumeMean(0)
	assert.ErrorContains(t, err, "ascending")
}

func TestCoords_Map(t *testing.T) {
	c := Coords{Lat: []float64{1}, Lon: []float64{2}, Depth: []float64{0, 5}, Time: []int{1, 2, 3, 4}}
	m := c.Map()

	assert.Len(t, m, 4)
	assert.Equal(t, []float64{1, 2, 3, 4}, m[AxisTime])
	assert.Equal(t, []float64{0, 5}, m[AxisDepth])
}
