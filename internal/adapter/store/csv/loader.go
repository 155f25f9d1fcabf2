// Package csv loads World Ocean Atlas climatology CSV file sets into dense grids.
package csv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"go.ngs.io/woa-api/internal/domain"
)

// depthLabel precedes the depth list on the second header line.
const depthLabel = "DEPTHS (M):"

// headerLines is the number of lines before the first data row.
const headerLines = 2

// maxLineBytes bounds a single data row.
const maxLineBytes = 4 << 20

// GridLoader parses WOA CSV file sets. It holds no per-call state and is safe
// for concurrent use.
type GridLoader struct {
	log logrus.FieldLogger
}

// NewGridLoader creates a loader that reports through log.
func NewGridLoader(log logrus.FieldLogger) *GridLoader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GridLoader{log: log}
}

// LoadGrid loads a file set with a loader using the standard logger.
func LoadGrid(files []string, field domain.FieldCode, timeCode domain.TimeCode) (*domain.Grid, *domain.LoadReport, error) {
	return NewGridLoader(nil).Load(files, field, timeCode)
}

// slotFile is a file matched to its two-digit time slot.
type slotFile struct {
	path string
	slot int
}

// Load selects the files of files matching field and timeCode, and returns a
// (lat, lon, depth, time) grid populated from them.
//
// Selection, naming and header problems are fatal and detected before the
// grid is allocated. Unparseable rows and values are skipped and counted in
// the report; cells without a value stay missing (NaN).
func (l *GridLoader) Load(files []string, field domain.FieldCode, timeCode domain.TimeCode) (*domain.Grid, *domain.LoadReport, error) {
	layout, err := timeCode.Layout()
	if err != nil {
		return nil, nil, err
	}
	timeAxis, err := timeCode.Axis()
	if err != nil {
		return nil, nil, err
	}

	matched, err := selectFiles(files, field, timeCode, layout)
	if err != nil {
		return nil, nil, err
	}

	depths, err := readDepthAxis(matched[0].path)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range matched[1:] {
		other, err := readDepthAxis(f.path)
		if err != nil {
			return nil, nil, err
		}
		if !slices.Equal(depths, other) {
			return nil, nil, fmt.Errorf("%w: %s has %d depth levels %v, expected %v from %s",
				domain.ErrDepthMismatch, f.path, len(other), other, depths, matched[0].path)
		}
	}

	log := l.log.WithFields(logrus.Fields{
		"field": string(field),
		"time":  string(timeCode),
		"files": len(matched),
	})
	log.Debug("Loading climatology grid")

	report := &domain.LoadReport{Files: make([]domain.FileReport, len(matched))}
	for t, f := range matched {
		report.Files[t] = domain.FileReport{Path: f.path, Slot: f.slot}
	}

	// Pass 1: discover every latitude and longitude across the file set.
	latSet := make(map[float64]struct{})
	lonSet := make(map[float64]struct{})
	for t, f := range matched {
		fr := &report.Files[t]
		err := scanRecords(f.path, func(record []string) {
			if blankRecord(record) {
				return
			}
			lat, lon, ok := parseLatLon(record)
			if !ok {
				fr.SkippedRows++
				return
			}
			latSet[lat] = struct{}{}
			lonSet[lon] = struct{}{}
		})
		if err != nil {
			return nil, nil, err
		}
	}

	lats := sortedValues(latSet)
	lons := sortedValues(lonSet)
	latIdx := indexOf(lats)
	lonIdx := indexOf(lons)

	grid := domain.NewGrid(domain.Coords{
		Lat:   lats,
		Lon:   lons,
		Depth: depths,
		Time:  timeAxis,
	})

	// Pass 2: populate the grid; time index is the position in slot order.
	nDepth := len(depths)
	for t, f := range matched {
		fr := &report.Files[t]
		err := scanRecords(f.path, func(record []string) {
			if blankRecord(record) {
				return
			}
			lat, lon, ok := parseLatLon(record)
			if !ok {
				return
			}
			i, iok := latIdx[lat]
			j, jok := lonIdx[lon]
			if !iok || !jok {
				return
			}
			fr.Rows++
			for k, raw := range record[2:] {
				raw = strings.TrimSpace(raw)
				if raw == "" {
					continue
				}
				if k >= nDepth {
					fr.SkippedFields++
					continue
				}
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					fr.SkippedFields++
					continue
				}
				grid.Set(v, i, j, k, t)
			}
		})
		if err != nil {
			return nil, nil, err
		}
		if fr.SkippedRows > 0 || fr.SkippedFields > 0 {
			log.WithFields(logrus.Fields{
				"path":           f.path,
				"skipped_rows":   fr.SkippedRows,
				"skipped_fields": fr.SkippedFields,
			}).Debug("Skipped unparseable data")
		}
	}

	shape := grid.Shape()
	log.WithFields(logrus.Fields{
		"shape":          shape,
		"skipped_rows":   report.SkippedRows(),
		"skipped_fields": report.SkippedFields(),
	}).Info("Loaded climatology grid")

	return grid, report, nil
}

// slotPattern builds the file name pattern for a field: a two-digit slot code
// immediately followed by the field code and then a non-letter, so that "se"
// does not select "sea" files.
func slotPattern(field domain.FieldCode) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^0-9])([0-9]{2})` + regexp.QuoteMeta(string(field)) + `(?:[^A-Za-z]|$)`)
}

// selectFiles keeps the files whose name carries field and a slot inside
// layout, ordered by slot.
func selectFiles(files []string, field domain.FieldCode, timeCode domain.TimeCode, layout domain.TimeLayout) ([]slotFile, error) {
	if field == "" {
		return nil, fmt.Errorf("%w: empty field code", domain.ErrInvalidSelector)
	}
	pattern := slotPattern(field)

	matched := make([]slotFile, 0, layout.Count())
	for _, path := range files {
		for _, m := range pattern.FindAllStringSubmatch(filepath.Base(path), -1) {
			slot, err := strconv.Atoi(m[1])
			if err != nil || !layout.Contains(slot) {
				continue
			}
			matched = append(matched, slotFile{path: path, slot: slot})
			break
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: field code %q and time code %q", domain.ErrNoMatchingFiles, field, timeCode)
	}
	if len(matched) != layout.Count() {
		return nil, fmt.Errorf("%w: found %d files, expected %d for time code %q",
			domain.ErrFileCountMismatch, len(matched), layout.Count(), timeCode)
	}

	sort.SliceStable(matched, func(a, b int) bool { return matched[a].slot < matched[b].slot })
	for n := 1; n < len(matched); n++ {
		if matched[n].slot == matched[n-1].slot {
			return nil, fmt.Errorf("%w: slot %02d appears in both %s and %s",
				domain.ErrFileCountMismatch, matched[n].slot, matched[n-1].path, matched[n].path)
		}
	}
	return matched, nil
}

// readDepthAxis parses the depth levels from the second line of a file.
func readDepthAxis(path string) ([]float64, error) {
	//nolint:gosec // G304: Paths come from the caller's file set.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	reader := bufio.NewReader(file)
	var line string
	for n := 0; n < headerLines; n++ {
		line, err = reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %s ends before the depth line", domain.ErrMalformedHeader, path)
			}
			return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
		}
	}

	_, depthList, found := strings.Cut(strings.TrimSpace(line), depthLabel)
	if !found {
		return nil, fmt.Errorf("%w: %s has no %q label on line 2", domain.ErrMalformedHeader, path, depthLabel)
	}

	tokens := strings.Split(depthList, ",")
	depths := make([]float64, len(tokens))
	for k, tok := range tokens {
		d, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s depth %d %q is not numeric", domain.ErrMalformedHeader, path, k, tok)
		}
		depths[k] = d
	}
	return depths, nil
}

// scanRecords streams the data rows of a file, calling visit with the
// comma-separated fields of each line. WOA files carry no quoting, so a
// malformed line never swallows the lines after it.
func scanRecords(path string, visit func(record []string)) error {
	//nolint:gosec // G304: Paths come from the caller's file set.
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	buf := bufio.NewReader(file)
	for n := 0; n < headerLines; n++ {
		if _, err := buf.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read header of %s: %w", path, err)
		}
	}

	scanner := bufio.NewScanner(buf)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		visit(strings.Split(scanner.Text(), ","))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read CSV record from %s: %w", path, err)
	}
	return nil
}

// parseLatLon parses the first two fields of a row.
func parseLatLon(record []string) (float64, float64, bool) {
	if len(record) < 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
	if err != nil || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, 0, false
	}
	return lat, lon, true
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func sortedValues(set map[float64]struct{}) []float64 {
	values := make([]float64, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Float64s(values)
	return values
}

func indexOf(values []float64) map[float64]int {
	idx := make(map[float64]int, len(values))
	for i, v := range values {
		idx[v] = i
	}
	return idx
}
