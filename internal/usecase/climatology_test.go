package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/woa-api/internal/adapter/store/csv"
	"go.ngs.io/woa-api/internal/domain"
)

const depthLine = "#COMMA SEPARATED LATITUDE, LONGITUDE, AND VALUES AT DEPTHS (M):0,100"

// countingSource serves a fixed file list and counts calls.
type countingSource struct {
	files []string
	err   error

	mu    sync.Mutex
	calls int
}

func (s *countingSource) Files(_ context.Context, _ domain.ArchiveSelector) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.files, s.err
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixedDates map[string]string

func (d fixedDates) LatestDate(variable string) (string, bool, error) {
	date, ok := d[variable]
	return date, ok, nil
}

func writeFixture(t *testing.T, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	content := "#WOA23\n" + depthLine + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// fixtureFiles holds a 2x2 annual "an" grid with one dry node and a matching "mn" file.
func fixtureFiles(t *testing.T) []string {
	an := writeFixture(t, "woa23_decav_t00an01.csv",
		"-0.5,0.5,10,10",
		"-0.5,1.5,20,20",
		"0.5,0.5,30,30",
		"0.5,1.5,,",
	)
	mn := writeFixture(t, "woa23_decav_t00mn01.csv", "-0.5,0.5,1,2")
	return []string{an, mn}
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestUseCase(t *testing.T, dates AccessDates) (*ClimatologyUseCase, *countingSource) {
	src := &countingSource{files: fixtureFiles(t)}
	uc := NewClimatologyUseCase(src, csv.NewGridLoader(quietLogger()), dates, quietLogger())
	uc.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	return uc, src
}

func annualRequest(field domain.FieldCode) GridRequest {
	return GridRequest{
		Archive:  domain.ArchiveSelector{Variable: "t", Span: "decav", Resolution: "1deg"},
		Selector: domain.Selector{Field: field, Time: domain.TimeAnnual},
	}
}

func TestGridRequest_NormalizeAndKey(t *testing.T) {
	req, err := annualRequest("an").Normalize()
	require.NoError(t, err)
	assert.Equal(t, "t/decav/1.00/an/00", req.Key())

	_, err = annualRequest("xx").Normalize()
	assert.ErrorIs(t, err, domain.ErrInvalidSelector)

	bad := annualRequest("an")
	bad.Selector.Time = "02"
	_, err = bad.Normalize()
	assert.ErrorIs(t, err, domain.ErrInvalidSelector)
}

func TestLoad_CachesByKey(t *testing.T) {
	uc, src := newTestUseCase(t, nil)
	ctx := context.Background()

	first, err := uc.Load(ctx, annualRequest("an"))
	require.NoError(t, err)
	assert.Equal(t, [4]int{2, 2, 2, 1}, first.Grid.Shape())

	// "1.00" and "1deg" name the same archive.
	req := annualRequest("an")
	req.Archive.Resolution = "1.00"
	second, err := uc.Load(ctx, req)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, src.Calls())
}

func TestLoad_Errors(t *testing.T) {
	uc, src := newTestUseCase(t, nil)
	ctx := context.Background()

	_, err := uc.Load(ctx, annualRequest("xx"))
	assert.ErrorIs(t, err, domain.ErrInvalidSelector)
	assert.Zero(t, src.Calls())

	monthly := annualRequest("an")
	monthly.Selector.Time = domain.TimeMonthly
	_, err = uc.Load(ctx, monthly)
	assert.ErrorIs(t, err, domain.ErrNoMatchingFiles)

	_, err = uc.Load(ctx, annualRequest("sd"))
	assert.ErrorIs(t, err, domain.ErrNoMatchingFiles)

	src.err = errors.New("network down")
	_, err = uc.Load(ctx, annualRequest("dd"))
	assert.ErrorContains(t, err, "network down")
}

func TestLoadMany_PreservesOrder(t *testing.T) {
	uc, _ := newTestUseCase(t, nil)

	grids, err := uc.LoadMany(context.Background(), []GridRequest{annualRequest("mn"), annualRequest("an")})
	require.NoError(t, err)
	require.Len(t, grids, 2)
	assert.Equal(t, domain.FieldCode("mn"), grids[0].Request.Selector.Field)
	assert.Equal(t, domain.FieldCode("an"), grids[1].Request.Selector.Field)
	assert.Equal(t, [4]int{1, 1, 2, 1}, grids[0].Grid.Shape())

	_, err = uc.LoadMany(context.Background(), []GridRequest{annualRequest("an"), annualRequest("xx")})
	assert.ErrorIs(t, err, domain.ErrInvalidSelector)
}

func TestProfile(t *testing.T) {
	uc, _ := newTestUseCase(t, nil)

	p, err := uc.Profile(context.Background(), annualRequest("an"), -0.4, 1.3)
	require.NoError(t, err)
	assert.Equal(t, -0.5, p.Lat)
	assert.Equal(t, 1.5, p.Lon)
	require.Len(t, p.Values, 1)
	require.NotNil(t, p.Values[0][0])
	assert.Equal(t, 20.0, *p.Values[0][0])
	assert.Equal(t, "woa23_t_decav_1.00_csv.tar.gz", p.Meta.Archive)

	dry, err := uc.Profile(context.Background(), annualRequest("an"), 0.5, 1.5)
	require.NoError(t, err)
	assert.Equal(t, []*float64{nil, nil}, dry.Values[0])

	_, err = uc.Profile(context.Background(), annualRequest("an"), 91, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestValue(t *testing.T) {
	uc, _ := newTestUseCase(t, nil)
	ctx := context.Background()

	v, err := uc.Value(ctx, annualRequest("an"), -0.5, 1.0, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, v.Value, 1e-9)
	assert.Equal(t, 0.0, v.DepthM)

	v, err = uc.Value(ctx, annualRequest("an"), 0.0, 0.5, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, v.Value, 1e-9)
	assert.Equal(t, 100.0, v.DepthM)

	_, err = uc.Value(ctx, annualRequest("an"), 0.0, 1.0, 0, 0)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = uc.Value(ctx, annualRequest("an"), 10.0, 1.0, 0, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = uc.Value(ctx, annualRequest("an"), 0.0, 1.0, 2, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// A single-node grid cannot be interpolated.
	_, err = uc.Value(ctx, annualRequest("mn"), -0.5, 0.5, 0, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSummary(t *testing.T) {
	uc, _ := newTestUseCase(t, nil)

	s, err := uc.Summary(context.Background(), annualRequest("an"))
	require.NoError(t, err)
	assert.Equal(t, "temperature", s.VariableName)
	assert.Equal(t, [4]int{2, 2, 2, 1}, s.Shape)
	assert.InDelta(t, 0.75, s.Coverage, 1e-12)
	require.Len(t, s.VolumeMeans, 1)
	require.NotNil(t, s.VolumeMeans[0])
	assert.InDelta(t, 20.0, *s.VolumeMeans[0], 1e-9)
	assert.Equal(t, AxisSummary{Size: 2, Min: 0, Max: 100}, s.Axes[domain.AxisDepth])
	require.Len(t, s.Files, 1)
	assert.Equal(t, 4, s.Files[0].Rows)

	// One lat row gives no cell area, so the mean is undefined.
	s, err = uc.Summary(context.Background(), annualRequest("mn"))
	require.NoError(t, err)
	assert.Equal(t, []*float64{nil}, s.VolumeMeans)
}

func TestCitation(t *testing.T) {
	uc, _ := newTestUseCase(t, fixedDates{"t": "2025-01-31"})

	c, err := uc.Citation("t")
	require.NoError(t, err)
	assert.Contains(t, c, "Volume 1: Temperature")
	assert.Contains(t, c, "Accessed 2025-01-31.")

	c, err = uc.Citation("s")
	require.NoError(t, err)
	assert.Contains(t, c, "Accessed 2026-02-01.")

	_, err = uc.Citation("q")
	assert.ErrorIs(t, err, domain.ErrInvalidSelector)
}

func TestCatalog(t *testing.T) {
	uc, _ := newTestUseCase(t, nil)
	c := uc.Catalog()

	assert.Len(t, c.Variables, 8)
	assert.Len(t, c.Fields, 10)
	assert.Len(t, c.TimeCodes, 3)
	assert.Equal(t, []string{"0.25", "1.00", "5.00"}, c.Resolutions)
	assert.Equal(t, "A", c.Variables[0].Code)
}
