// Package interp interpolates horizontal climatology fields.
package interp

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.ngs.io/woa-api/internal/domain"
)

// ErrMissingCorner is returned when a corner that contributes to the result holds no observation.
var ErrMissingCorner = errors.New("missing value at interpolation corner")

// GridCell represents a cell in a regular grid with four corner values.
type GridCell struct {
	// Corner coordinates (forming a rectangle).
	X0, X1 float64 // Longitude boundaries.
	Y0, Y1 float64 // Latitude boundaries.

	// Values at the four corners:
	// V00: value at (X0, Y0).
	// V10: value at (X1, Y0).
	// V01: value at (X0, Y1).
	// V11: value at (X1, Y1).
	// NaN marks a corner without an observation.
	V00, V10, V01, V11 float64
}

// BilinearInterpolate performs bilinear interpolation within a grid cell.
//
//	f(x,y) ≈ (1-t)(1-u)f(x0,y0) + t(1-u)f(x1,y0) + (1-t)u*f(x0,y1) + tu*f(x1,y1)
//
// Corners with zero weight are ignored, so a point on an observed node or
// edge still resolves when the far corners are missing.
func BilinearInterpolate(cell GridCell, x, y float64) (float64, error) {
	if cell.X1 <= cell.X0 {
		return 0, fmt.Errorf("invalid grid cell: X1 must be > X0")
	}
	if cell.Y1 <= cell.Y0 {
		return 0, fmt.Errorf("invalid grid cell: Y1 must be > Y0")
	}

	const epsilon = 1e-9
	if x < cell.X0-epsilon || x > cell.X1+epsilon {
		return 0, fmt.Errorf("x coordinate %.6f is outside grid cell [%.6f, %.6f]", x, cell.X0, cell.X1)
	}
	if y < cell.Y0-epsilon || y > cell.Y1+epsilon {
		return 0, fmt.Errorf("y coordinate %.6f is outside grid cell [%.6f, %.6f]", y, cell.Y0, cell.Y1)
	}

	t := math.Max(0, math.Min(1, (x-cell.X0)/(cell.X1-cell.X0)))
	u := math.Max(0, math.Min(1, (y-cell.Y0)/(cell.Y1-cell.Y0)))

	corners := [4]struct{ w, v float64 }{
		{(1 - t) * (1 - u), cell.V00},
		{t * (1 - u), cell.V10},
		{(1 - t) * u, cell.V01},
		{t * u, cell.V11},
	}

	var result float64
	for _, c := range corners {
		if c.w == 0 {
			continue
		}
		if math.IsNaN(c.v) {
			return 0, fmt.Errorf("%w at (%.4f, %.4f)", ErrMissingCorner, x, y)
		}
		result += c.w * c.v
	}
	return result, nil
}

// Grid2D represents a regular 2D grid for interpolation.
type Grid2D struct {
	X      []float64   // Longitudes.
	Y      []float64   // Latitudes.
	Values [][]float64 // Values[i][j] corresponds to (X[j], Y[i]).
}

// FromSlice builds the horizontal field of g at depth index k and time index t.
func FromSlice(g *domain.Grid, k, t int) (*Grid2D, error) {
	shape := g.Shape()
	if k < 0 || k >= shape[2] {
		return nil, fmt.Errorf("depth index %d out of range [0, %d)", k, shape[2])
	}
	if t < 0 || t >= shape[3] {
		return nil, fmt.Errorf("time index %d out of range [0, %d)", t, shape[3])
	}
	grid := &Grid2D{
		X:      g.Coords.Lon,
		Y:      g.Coords.Lat,
		Values: g.Slice(k, t),
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}
	return grid, nil
}

// Validate checks if the grid is valid.
func (g *Grid2D) Validate() error {
	if len(g.X) < 2 {
		return fmt.Errorf("grid must have at least 2 X coordinates")
	}
	if len(g.Y) < 2 {
		return fmt.Errorf("grid must have at least 2 Y coordinates")
	}
	if len(g.Values) != len(g.Y) {
		return fmt.Errorf("number of value rows (%d) must match Y coordinates (%d)", len(g.Values), len(g.Y))
	}

	for i, row := range g.Values {
		if len(row) != len(g.X) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(g.X))
		}
	}

	for i := 1; i < len(g.X); i++ {
		if g.X[i] <= g.X[i-1] {
			return fmt.Errorf("X coordinates must be strictly increasing")
		}
	}
	for i := 1; i < len(g.Y); i++ {
		if g.Y[i] <= g.Y[i-1] {
			return fmt.Errorf("Y coordinates must be strictly increasing")
		}
	}

	return nil
}

// InterpolateAt performs bilinear interpolation at a given point.
// x is wrapped to the longitude convention of the grid first.
func (g *Grid2D) InterpolateAt(x, y float64) (float64, error) {
	if err := g.Validate(); err != nil {
		return 0, fmt.Errorf("invalid grid: %w", err)
	}

	x = domain.NormalizeLonForAxis(g.X, x)
	xIdx, ok := bracket(g.X, x)
	if !ok {
		return 0, fmt.Errorf("x coordinate %.6f is outside grid range [%.6f, %.6f]", x, g.X[0], g.X[len(g.X)-1])
	}
	yIdx, ok := bracket(g.Y, y)
	if !ok {
		return 0, fmt.Errorf("y coordinate %.6f is outside grid range [%.6f, %.6f]", y, g.Y[0], g.Y[len(g.Y)-1])
	}

	cell := GridCell{
		X0:  g.X[xIdx],
		X1:  g.X[xIdx+1],
		Y0:  g.Y[yIdx],
		Y1:  g.Y[yIdx+1],
		V00: g.Values[yIdx][xIdx],
		V10: g.Values[yIdx][xIdx+1],
		V01: g.Values[yIdx+1][xIdx],
		V11: g.Values[yIdx+1][xIdx+1],
	}

	return BilinearInterpolate(cell, x, y)
}

// bracket returns i such that axis[i] <= v <= axis[i+1].
func bracket(axis []float64, v float64) (int, bool) {
	if v < axis[0] || v > axis[len(axis)-1] {
		return 0, false
	}
	i := sort.SearchFloat64s(axis, v)
	if i > 0 {
		i--
	}
	if i > len(axis)-2 {
		i = len(axis) - 2
	}
	return i, true
}
