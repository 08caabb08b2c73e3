package series

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"cotas/internal/models"
)

// timestamp layouts seen in DataHora, most common first
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

var errEmpty = errors.New("empty value")

// Report describes what cleaning did to a response
type Report struct {
	Raw          int
	Kept         int
	BadTimestamp int // missing or unparseable DataHora
	BadLevel     int // missing or unparseable Nivel
}

func (r Report) Dropped() int {
	return r.Raw - r.Kept
}

// Clean turns raw measurement rows into a series: timestamps are parsed in loc,
// rows without a valid timestamp or level are dropped and the rest is sorted
// oldest first. Rows sharing a timestamp keep their response order.
func Clean(code string, rows []models.MeasurementRow, loc *time.Location) (models.Series, Report) {
	if loc == nil {
		loc = time.UTC
	}

	report := Report{Raw: len(rows)}
	readings := make([]models.Reading, 0, len(rows))

	for _, row := range rows {
		ts, err := ParseTimestamp(row.DateTime, loc)
		if err != nil {
			report.BadTimestamp++
			continue
		}
		level, err := ParseLevel(row.Level)
		if err != nil {
			report.BadLevel++
			continue
		}
		readings = append(readings, models.Reading{Time: ts, Level: level})
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Time.Before(readings[j].Time)
	})

	report.Kept = len(readings)
	return models.Series{StationCode: code, Readings: readings}, report
}

// ParseTimestamp parses a DataHora value in loc
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmpty
	}

	var firstErr error
	for _, layout := range timeLayouts {
		ts, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return ts, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// ParseLevel parses a Nivel value. NaN counts as missing.
func ParseLevel(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmpty
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, err
	}
	if v != v {
		return 0, errEmpty
	}
	return v, nil
}
