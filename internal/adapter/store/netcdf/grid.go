// Package netcdf exports climatology grids to NetCDF and reads them back.
package netcdf

import (
	"fmt"
	"math"

	cdf "github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/woa-api/internal/domain"
)

// Attribute names written on the data variable.
const (
	attrFillValue = "_FillValue"
	attrUnits     = "units"
	attrField     = "field"
	attrVariable  = "variable"
)

// Metadata describes the data variable of an exported grid.
type Metadata struct {
	Variable string           // Archive variable code, e.g. "t".
	Field    domain.FieldCode // Statistical field, e.g. "an".
	Units    string           // Optional.
}

// VarName returns the data variable name, following the WOA "<v>_<field>" convention.
func (m Metadata) VarName() string {
	if m.Variable == "" {
		return string(m.Field)
	}
	return m.Variable + "_" + string(m.Field)
}

// WriteGrid writes g to path with dimensions (lat, lon, depth, time).
// Missing cells are stored as NaN, which is also the declared _FillValue.
func WriteGrid(path string, g *domain.Grid, meta Metadata) error {
	if meta.Field == "" {
		return fmt.Errorf("field code is required")
	}

	ds, err := cdf.CreateFile(path, cdf.CLOBBER|cdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create NetCDF file: %w", err)
	}
	defer func() { _ = ds.Close() }()

	shape := g.Shape()
	names := [4]string{domain.AxisLat, domain.AxisLon, domain.AxisDepth, domain.AxisTime}
	dims := make([]cdf.Dim, len(names))
	for i, name := range names {
		d, err := ds.AddDim(name, uint64(shape[i]))
		if err != nil {
			return fmt.Errorf("failed to add dimension %s: %w", name, err)
		}
		dims[i] = d
	}

	coordVars := make([]cdf.Var, len(names))
	for i, name := range names {
		t := cdf.DOUBLE
		if name == domain.AxisTime {
			t = cdf.INT
		}
		v, err := ds.AddVar(name, t, []cdf.Dim{dims[i]})
		if err != nil {
			return fmt.Errorf("failed to add variable %s: %w", name, err)
		}
		coordVars[i] = v
	}
	if err := coordVars[0].Attr(attrUnits).WriteBytes([]byte("degrees_north")); err != nil {
		return fmt.Errorf("failed to write lat units: %w", err)
	}
	if err := coordVars[1].Attr(attrUnits).WriteBytes([]byte("degrees_east")); err != nil {
		return fmt.Errorf("failed to write lon units: %w", err)
	}
	if err := coordVars[2].Attr(attrUnits).WriteBytes([]byte("meters")); err != nil {
		return fmt.Errorf("failed to write depth units: %w", err)
	}

	dataVar, err := ds.AddVar(meta.VarName(), cdf.DOUBLE, dims)
	if err != nil {
		return fmt.Errorf("failed to add data variable: %w", err)
	}
	if err := dataVar.Attr(attrFillValue).WriteFloat64s([]float64{math.NaN()}); err != nil {
		return fmt.Errorf("failed to write fill value: %w", err)
	}
	if err := dataVar.Attr(attrField).WriteBytes([]byte(meta.Field)); err != nil {
		return fmt.Errorf("failed to write field attribute: %w", err)
	}
	if meta.Variable != "" {
		if err := dataVar.Attr(attrVariable).WriteBytes([]byte(meta.Variable)); err != nil {
			return fmt.Errorf("failed to write variable attribute: %w", err)
		}
	}
	if meta.Units != "" {
		if err := dataVar.Attr(attrUnits).WriteBytes([]byte(meta.Units)); err != nil {
			return fmt.Errorf("failed to write units attribute: %w", err)
		}
	}

	if err := ds.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}

	if err := coordVars[0].WriteFloat64s(g.Coords.Lat); err != nil {
		return fmt.Errorf("failed to write lat: %w", err)
	}
	if err := coordVars[1].WriteFloat64s(g.Coords.Lon); err != nil {
		return fmt.Errorf("failed to write lon: %w", err)
	}
	if err := coordVars[2].WriteFloat64s(g.Coords.Depth); err != nil {
		return fmt.Errorf("failed to write depth: %w", err)
	}
	times := make([]int32, len(g.Coords.Time))
	for i, t := range g.Coords.Time {
		times[i] = int32(t) //nolint:gosec // Time slots are small.
	}
	if err := coordVars[3].WriteInt32s(times); err != nil {
		return fmt.Errorf("failed to write time: %w", err)
	}

	// Elements are row-major in (lat, lon, depth, time), the dimension order above.
	if err := dataVar.WriteFloat64s(g.Data.Elements); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// ReadGrid reads the grid stored under varName by WriteGrid.
func ReadGrid(path, varName string) (*domain.Grid, Metadata, error) {
	ds, err := cdf.OpenFile(path, cdf.NOWRITE)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to open NetCDF file: %w", err)
	}
	defer func() { _ = ds.Close() }()

	axes := make(map[string][]float64, 4)
	for _, name := range []string{domain.AxisLat, domain.AxisLon, domain.AxisDepth, domain.AxisTime} {
		v, err := ds.Var(name)
		if err != nil {
			return nil, Metadata{}, fmt.Errorf("failed to find %s variable: %w", name, err)
		}
		values, err := readFloat64Var(v)
		if err != nil {
			return nil, Metadata{}, fmt.Errorf("failed to read %s: %w", name, err)
		}
		axes[name] = values
	}

	times := make([]int, len(axes[domain.AxisTime]))
	for i, t := range axes[domain.AxisTime] {
		times[i] = int(t)
	}
	grid := domain.NewGrid(domain.Coords{
		Lat:   axes[domain.AxisLat],
		Lon:   axes[domain.AxisLon],
		Depth: axes[domain.AxisDepth],
		Time:  times,
	})

	dataVar, err := ds.Var(varName)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to find data variable %s: %w", varName, err)
	}
	n, err := dataVar.Len()
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to get data length: %w", err)
	}
	if int(n) != len(grid.Data.Elements) { //nolint:gosec // Bounded by the grid size.
		return nil, Metadata{}, fmt.Errorf("data variable has %d values, expected %d", n, len(grid.Data.Elements))
	}
	if err := dataVar.ReadFloat64s(grid.Data.Elements); err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to read data: %w", err)
	}

	// Files from other writers may use a finite fill value.
	if fill, ok := getFillValue(dataVar); ok && !math.IsNaN(fill) {
		for i, v := range grid.Data.Elements {
			if v == fill {
				grid.Data.Elements[i] = domain.Missing()
			}
		}
	}

	meta := Metadata{
		Variable: readTextAttr(dataVar, attrVariable),
		Field:    domain.FieldCode(readTextAttr(dataVar, attrField)),
		Units:    readTextAttr(dataVar, attrUnits),
	}
	return grid, meta, nil
}

// getFillValue returns the _FillValue or missing_value attribute if present.
func getFillValue(v cdf.Var) (float64, bool) {
	for _, name := range []string{attrFillValue, "missing_value"} {
		a := v.Attr(name)
		n, err := a.Len()
		if err != nil || n == 0 {
			continue
		}
		buf64 := make([]float64, n)
		if err := a.ReadFloat64s(buf64); err == nil {
			return buf64[0], true
		}
		buf32 := make([]float32, n)
		if err := a.ReadFloat32s(buf32); err == nil {
			return float64(buf32[0]), true
		}
	}
	return 0, false
}

func readTextAttr(v cdf.Var, name string) string {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return ""
	}
	return string(buf)
}

// readFloat64Var reads a 1D variable of any numeric type as float64.
func readFloat64Var(v cdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}
	length, err := dims[0].Len()
	if err != nil {
		return nil, err
	}

	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	switch t {
	case cdf.DOUBLE:
		data := make([]float64, length)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case cdf.FLOAT:
		tmp := make([]float32, length)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case cdf.INT:
		tmp := make([]int32, length)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	case cdf.SHORT:
		tmp := make([]int16, length)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		return widen(tmp), nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}

func widen[T float32 | int32 | int16](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
