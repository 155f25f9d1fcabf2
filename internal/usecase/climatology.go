// Package usecase orchestrates archive retrieval, grid loading and queries.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.ngs.io/woa-api/internal/adapter/interp"
	"go.ngs.io/woa-api/internal/adapter/store"
	"go.ngs.io/woa-api/internal/domain"
)

var (
	// ErrOutOfRange is returned when a query falls outside the grid.
	ErrOutOfRange = errors.New("query outside grid")

	// ErrNoData is returned when a query resolves to missing cells only.
	ErrNoData = errors.New("no data at location")
)

// AccessDates reports when a variable's archives were retrieved.
type AccessDates interface {
	LatestDate(variable string) (string, bool, error)
}

// GridRequest names one grid: an archive plus the field and time code inside it.
type GridRequest struct {
	Archive  domain.ArchiveSelector
	Selector domain.Selector
}

// Normalize validates the request and canonicalises the archive resolution.
func (r GridRequest) Normalize() (GridRequest, error) {
	archive, err := r.Archive.Normalize()
	if err != nil {
		return GridRequest{}, err
	}
	if !domain.ValidFieldCode(r.Selector.Field) {
		return GridRequest{}, fmt.Errorf("%w: unknown field code %q", domain.ErrInvalidSelector, r.Selector.Field)
	}
	if _, err := r.Selector.Time.Layout(); err != nil {
		return GridRequest{}, err
	}
	return GridRequest{Archive: archive, Selector: r.Selector}, nil
}

// Key identifies the request in the grid cache.
func (r GridRequest) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", r.Archive.Variable, r.Archive.Span, r.Archive.Resolution, r.Selector.Field, r.Selector.Time)
}

// LoadedGrid is a grid together with the diagnostics of the load that built it.
type LoadedGrid struct {
	Request GridRequest
	Grid    *domain.Grid
	Report  *domain.LoadReport
}

// ClimatologyUseCase serves grids from archives, caching each loaded grid.
type ClimatologyUseCase struct {
	files  store.FileSource
	loader store.GridLoader
	dates  AccessDates
	log    logrus.FieldLogger
	now    func() time.Time

	cache map[string]*LoadedGrid
	mu    sync.RWMutex
}

// NewClimatologyUseCase creates a use case. dates may be nil, in which case
// citations carry the current date.
func NewClimatologyUseCase(files store.FileSource, loader store.GridLoader, dates AccessDates, log logrus.FieldLogger) *ClimatologyUseCase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ClimatologyUseCase{
		files:  files,
		loader: loader,
		dates:  dates,
		log:    log,
		now:    time.Now,
		cache:  make(map[string]*LoadedGrid),
	}
}

// Load returns the grid for req, reading it on first use.
func (uc *ClimatologyUseCase) Load(ctx context.Context, req GridRequest) (*LoadedGrid, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	key := req.Key()

	uc.mu.RLock()
	if lg, ok := uc.cache[key]; ok {
		uc.mu.RUnlock()
		return lg, nil
	}
	uc.mu.RUnlock()

	files, err := uc.files.Files(ctx, req.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to get archive files: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grid, report, err := uc.loader.Load(files, req.Selector.Field, req.Selector.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to load grid %s: %w", key, err)
	}

	lg := &LoadedGrid{Request: req, Grid: grid, Report: report}

	uc.mu.Lock()
	if cached, ok := uc.cache[key]; ok {
		lg = cached
	} else {
		uc.cache[key] = lg
	}
	uc.mu.Unlock()

	uc.log.WithFields(logrus.Fields{
		"grid":     key,
		"coverage": grid.Coverage(),
	}).Info("Grid loaded")
	return lg, nil
}

// LoadMany loads several grids concurrently. Results are in request order;
// the first failure cancels the remaining loads.
func (uc *ClimatologyUseCase) LoadMany(ctx context.Context, reqs []GridRequest) ([]*LoadedGrid, error) {
	results := make([]*LoadedGrid, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			lg, err := uc.Load(ctx, req)
			if err != nil {
				return err
			}
			results[i] = lg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ProfileResponse is the column at the grid node nearest a point.
type ProfileResponse struct {
	Variable string       `json:"variable"`
	Field    string       `json:"field"`
	Lat      float64      `json:"lat"`
	Lon      float64      `json:"lon"`
	Depth    []float64    `json:"depth_m"`
	Time     []int        `json:"time"`
	Values   [][]*float64 `json:"values"` // Values[t][k]; null where missing.
	Meta     ResponseMeta `json:"meta"`
}

// ResponseMeta names the archive a response was computed from.
type ResponseMeta struct {
	Archive string `json:"archive"`
	Time    string `json:"time_code"`
}

// Profile returns the nearest-node depth profile for every time slot.
func (uc *ClimatologyUseCase) Profile(ctx context.Context, req GridRequest, lat, lon float64) (*ProfileResponse, error) {
	if err := validatePoint(lat, lon); err != nil {
		return nil, err
	}
	lg, err := uc.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(lg.Grid.Coords.Lat) == 0 || len(lg.Grid.Coords.Lon) == 0 {
		return nil, fmt.Errorf("%w: grid has no nodes", ErrNoData)
	}

	p := lg.Grid.Profile(lat, lon)
	values := make([][]*float64, len(p.Values))
	for t, col := range p.Values {
		values[t] = nullable(col)
	}
	return &ProfileResponse{
		Variable: lg.Request.Archive.Variable,
		Field:    string(lg.Request.Selector.Field),
		Lat:      p.Lat,
		Lon:      p.Lon,
		Depth:    p.Depth,
		Time:     p.Time,
		Values:   values,
		Meta:     meta(lg.Request),
	}, nil
}

// ValueResponse is a horizontally interpolated value.
type ValueResponse struct {
	Variable string       `json:"variable"`
	Field    string       `json:"field"`
	Lat      float64      `json:"lat"`
	Lon      float64      `json:"lon"`
	DepthM   float64      `json:"depth_m"`
	Time     int          `json:"time"`
	Value    float64      `json:"value"`
	Meta     ResponseMeta `json:"meta"`
}

// Value interpolates the field bilinearly at (lat, lon) on depth index k and time index t.
func (uc *ClimatologyUseCase) Value(ctx context.Context, req GridRequest, lat, lon float64, k, t int) (*ValueResponse, error) {
	if err := validatePoint(lat, lon); err != nil {
		return nil, err
	}
	lg, err := uc.Load(ctx, req)
	if err != nil {
		return nil, err
	}

	field, err := interp.FromSlice(lg.Grid, k, t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	v, err := field.InterpolateAt(lon, lat)
	if err != nil {
		if errors.Is(err, interp.ErrMissingCorner) {
			return nil, fmt.Errorf("%w: %v", ErrNoData, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}

	return &ValueResponse{
		Variable: lg.Request.Archive.Variable,
		Field:    string(lg.Request.Selector.Field),
		Lat:      lat,
		Lon:      lon,
		DepthM:   lg.Grid.Coords.Depth[k],
		Time:     lg.Grid.Coords.Time[t],
		Value:    v,
		Meta:     meta(lg.Request),
	}, nil
}

// AxisSummary describes one coordinate axis.
type AxisSummary struct {
	Size int     `json:"size"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// SummaryResponse describes a loaded grid.
type SummaryResponse struct {
	Variable      string                 `json:"variable"`
	VariableName  string                 `json:"variable_name"`
	Field         string                 `json:"field"`
	FieldName     string                 `json:"field_name"`
	Shape         [4]int                 `json:"shape"`
	Axes          map[string]AxisSummary `json:"axes"`
	Coverage      float64                `json:"coverage"`
	VolumeMeans   []*float64             `json:"volume_means"` // Per time slot; null when undefined.
	SkippedRows   int                    `json:"skipped_rows"`
	SkippedFields int                    `json:"skipped_fields"`
	Files         []domain.FileReport    `json:"files"`
	Meta          ResponseMeta           `json:"meta"`
}

// Summary reports the shape, coverage, volume means and load diagnostics of a grid.
func (uc *ClimatologyUseCase) Summary(ctx context.Context, req GridRequest) (*SummaryResponse, error) {
	lg, err := uc.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	g := lg.Grid

	means := make([]float64, len(g.Coords.Time))
	for t := range means {
		m, err := g.VolumeMean(t)
		if err != nil {
			uc.log.WithFields(logrus.Fields{"grid": lg.Request.Key(), "time_index": t}).
				WithError(err).Debug("Volume mean undefined")
			m = domain.Missing()
		}
		means[t] = m
	}

	axes := make(map[string]AxisSummary, 4)
	for name, values := range g.Coords.Map() {
		axes[name] = summarizeAxis(values)
	}

	return &SummaryResponse{
		Variable:      lg.Request.Archive.Variable,
		VariableName:  domain.Variables[lg.Request.Archive.Variable],
		Field:         string(lg.Request.Selector.Field),
		FieldName:     domain.FieldDescriptions[lg.Request.Selector.Field],
		Shape:         g.Shape(),
		Axes:          axes,
		Coverage:      g.Coverage(),
		VolumeMeans:   nullable(means),
		SkippedRows:   lg.Report.SkippedRows(),
		SkippedFields: lg.Report.SkippedFields(),
		Files:         lg.Report.Files,
		Meta:          meta(lg.Request),
	}, nil
}

// Citation returns the reference for variable, dated with its latest
// recorded download or today.
func (uc *ClimatologyUseCase) Citation(variable string) (string, error) {
	date := uc.now().Format("2006-01-02")
	if uc.dates != nil {
		recorded, ok, err := uc.dates.LatestDate(variable)
		if err != nil {
			uc.log.WithError(err).Warn("Failed to read download ledger")
		} else if ok {
			date = recorded
		}
	}
	return domain.Citation(variable, date)
}

// CodeInfo is a code with its description.
type CodeInfo struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Catalog lists the accepted selector codes.
type Catalog struct {
	Variables   []CodeInfo `json:"variables"`
	TimeSpans   []CodeInfo `json:"time_spans"`
	Resolutions []string   `json:"resolutions"`
	Fields      []CodeInfo `json:"fields"`
	TimeCodes   []CodeInfo `json:"time_codes"`
}

// Catalog returns the selector codes known to the service.
func (uc *ClimatologyUseCase) Catalog() Catalog {
	fields := make(map[string]string, len(domain.FieldDescriptions))
	for code, desc := range domain.FieldDescriptions {
		fields[string(code)] = desc
	}
	return Catalog{
		Variables:   codeList(domain.Variables),
		TimeSpans:   codeList(domain.TimeSpans),
		Resolutions: domain.Resolutions(),
		Fields:      codeList(fields),
		TimeCodes: []CodeInfo{
			{Code: string(domain.TimeAnnual), Description: "Annual"},
			{Code: string(domain.TimeMonthly), Description: "Monthly (January to December)"},
			{Code: string(domain.TimeSeasonal), Description: "Seasonal (winter, spring, summer, fall)"},
		},
	}
}

func codeList(m map[string]string) []CodeInfo {
	out := make([]CodeInfo, 0, len(m))
	for code, desc := range m {
		out = append(out, CodeInfo{Code: code, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func validatePoint(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrOutOfRange)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: longitude must be finite", ErrOutOfRange)
	}
	return nil
}

func summarizeAxis(values []float64) AxisSummary {
	s := AxisSummary{Size: len(values)}
	if len(values) > 0 {
		s.Min, s.Max = values[0], values[0]
		for _, v := range values[1:] {
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
		}
	}
	return s
}

// nullable maps NaN to nil so the values encode as JSON null.
func nullable(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if !math.IsNaN(values[i]) {
			v := values[i]
			out[i] = &v
		}
	}
	return out
}

func meta(req GridRequest) ResponseMeta {
	return ResponseMeta{Archive: req.Archive.ArchiveName(), Time: string(req.Selector.Time)}
}
