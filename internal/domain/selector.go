package domain

import (
	"fmt"
	"sort"
	"strings"
)

// FieldCode selects the statistical quantity stored in a climatology file family.
type FieldCode string

// FieldDescriptions lists the WOA23 field codes and what they hold.
var FieldDescriptions = map[FieldCode]string{
	"an":  "Objectively analyzed climatology",
	"mn":  "Statistical mean",
	"dd":  "Number of observations",
	"ma":  "Seasonal/monthly minus annual climatology",
	"sd":  "Standard deviation from statistical mean",
	"se":  "Standard error of statistical mean",
	"oa":  "Statistical mean minus objectively analyzed climatology",
	"gp":  "Number of means within radius of influence",
	"sdo": "Objectively analyzed standard deviation",
	"sea": "Standard error of the analysis",
}

// ValidFieldCode reports whether code is a known WOA field code.
func ValidFieldCode(code FieldCode) bool {
	_, ok := FieldDescriptions[code]
	return ok
}

// TimeCode selects annual, monthly or seasonal slices.
type TimeCode string

// Supported time codes.
const (
	TimeAnnual   TimeCode = "00"
	TimeMonthly  TimeCode = "01-12"
	TimeSeasonal TimeCode = "13-16"
)

// TimeLayout describes the slot range covered by a time code.
type TimeLayout struct {
	FirstSlot int
	LastSlot  int
}

// Count returns the number of files (time slots) the layout expects.
func (l TimeLayout) Count() int {
	return l.LastSlot - l.FirstSlot + 1
}

// Contains reports whether slot falls inside the layout.
func (l TimeLayout) Contains(slot int) bool {
	return slot >= l.FirstSlot && slot <= l.LastSlot
}

// Layout returns the slot range for the time code.
func (c TimeCode) Layout() (TimeLayout, error) {
	switch c {
	case TimeAnnual:
		return TimeLayout{FirstSlot: 0, LastSlot: 0}, nil
	case TimeMonthly:
		return TimeLayout{FirstSlot: 1, LastSlot: 12}, nil
	case TimeSeasonal:
		return TimeLayout{FirstSlot: 13, LastSlot: 16}, nil
	default:
		return TimeLayout{}, fmt.Errorf("%w: time code %q must be %q (annual), %q (monthly) or %q (seasonal)",
			ErrInvalidSelector, string(c), TimeAnnual, TimeMonthly, TimeSeasonal)
	}
}

// Axis returns the time coordinate vector: [0] for annual, 1..12 for monthly, 1..4 for seasonal.
func (c TimeCode) Axis() ([]int, error) {
	layout, err := c.Layout()
	if err != nil {
		return nil, err
	}
	if c == TimeAnnual {
		return []int{0}, nil
	}
	axis := make([]int, layout.Count())
	for i := range axis {
		axis[i] = i + 1
	}
	return axis, nil
}

// Selector identifies which field and which temporal slices to extract from a file set.
type Selector struct {
	Field FieldCode
	Time  TimeCode
}

// Variables maps one-letter WOA variable codes to the archive folder names.
var Variables = map[string]string{
	"t": "temperature",
	"s": "salinity",
	"i": "silicate",
	"n": "nitrate",
	"p": "phosphate",
	"o": "oxygen",
	"O": "o2sat",
	"A": "AOU",
}

// TimeSpans maps WOA time span codes to the period they average.
var TimeSpans = map[string]string{
	"5564":      "1955-1964",
	"6574":      "1965-1974",
	"7584":      "1975-1984",
	"8594":      "1985-1994",
	"95A4":      "1995-2004",
	"A5B4":      "2005-2014",
	"B5C2":      "2015-2022",
	"decav71A0": "1971-2000",
	"decav81B0": "1981-2010",
	"decav91C0": "1991-2020",
	"decav":     "1955-2022",
	"all":       "all available data",
}

// resolutions maps accepted resolution spellings to the WOA designator.
var resolutions = map[string]string{
	"1deg":    "1.00",
	"1.00":    "1.00",
	"0.25deg": "0.25",
	"0.25":    "0.25",
	"5deg":    "5.00",
	"5.00":    "5.00",
}

// Resolutions returns the canonical resolution designators.
func Resolutions() []string {
	return []string{"0.25", "1.00", "5.00"}
}

// ArchiveSelector identifies one downloadable WOA23 CSV archive.
type ArchiveSelector struct {
	Variable   string // One-letter code, e.g. "t".
	Span       string // Time span code, e.g. "decav".
	Resolution string // "1.00", "0.25" or "5.00" (aliases accepted by Normalize).
}

// Normalize validates the selector and maps resolution aliases to their canonical form.
func (a ArchiveSelector) Normalize() (ArchiveSelector, error) {
	if _, ok := Variables[a.Variable]; !ok {
		return a, fmt.Errorf("%w: variable code %q, valid codes are %s",
			ErrInvalidSelector, a.Variable, strings.Join(sortedKeys(Variables), ", "))
	}
	if _, ok := TimeSpans[a.Span]; !ok {
		return a, fmt.Errorf("%w: time span code %q, valid codes are %s",
			ErrInvalidSelector, a.Span, strings.Join(sortedKeys(TimeSpans), ", "))
	}
	res, ok := resolutions[a.Resolution]
	if !ok {
		return a, fmt.Errorf("%w: resolution %q, valid codes are %s",
			ErrInvalidSelector, a.Resolution, strings.Join(sortedKeys(resolutions), ", "))
	}
	a.Resolution = res
	return a, nil
}

// ArchiveName returns the archive file name, e.g. "woa23_t_decav_1.00_csv.tar.gz".
// The selector must already be normalized.
func (a ArchiveSelector) ArchiveName() string {
	return fmt.Sprintf("woa23_%s_%s_%s_csv.tar.gz", a.Variable, a.Span, a.Resolution)
}

// ArchivePath returns the archive location relative to the WOA23 data root.
func (a ArchiveSelector) ArchivePath() string {
	return fmt.Sprintf("%s/csv/%s/%s/%s", Variables[a.Variable], a.Span, a.Resolution, a.ArchiveName())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
