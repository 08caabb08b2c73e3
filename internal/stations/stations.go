// Package stations loads the static run inputs: the station list and the
// alert/flood reference table.
package stations

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"cotas/internal/models"
)

const commentMarker = "#"

var (
	ErrListNotFound       = errors.New("station list not found")
	ErrEmptyList          = errors.New("station list is empty")
	ErrReferencesNotFound = errors.New("reference table not found")
)

// LoadCodes reads one station code per line, skipping blank lines and
// comments. Duplicates are kept so each listed line gets its own attempt.
func LoadCodes(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrListNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open station list: %w", err)
	}
	defer f.Close()

	codes, err := ParseCodes(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read station list %s: %w", path, err)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyList)
	}
	return codes, nil
}

func ParseCodes(r io.Reader) ([]string, error) {
	var codes []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, commentMarker) {
			continue
		}
		codes = append(codes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

// Table maps station codes to their reference thresholds. It is never
// modified after loading.
type Table struct {
	byCode  map[string]models.Thresholds
	Skipped []SkippedRow
}

// SkippedRow is a reference line that could not be used
type SkippedRow struct {
	Line   int
	Code   string
	Reason string
}

func (t Table) Lookup(code string) (models.Thresholds, bool) {
	th, ok := t.byCode[code]
	return th, ok
}

func (t Table) Len() int {
	return len(t.byCode)
}

// LoadThresholds reads the reference table. A missing file returns an empty
// table and ErrReferencesNotFound; a malformed one an empty table and the
// parse error. Callers log either and carry on without reference lines.
func LoadThresholds(path string) (Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Table{}, fmt.Errorf("%s: %w", path, ErrReferencesNotFound)
	}
	if err != nil {
		return Table{}, fmt.Errorf("failed to open reference table: %w", err)
	}
	defer f.Close()

	table, err := ParseThresholds(f)
	if err != nil {
		return Table{}, fmt.Errorf("failed to parse reference table %s: %w", path, err)
	}
	return table, nil
}

// ParseThresholds reads a delimited table with Codigo, Alerta and Inundacao
// columns (any order, any case). The delimiter is ',' unless the header only
// uses ';'. When a code repeats, the last row wins and the earlier one is
// reported as skipped.
func ParseThresholds(r io.Reader) (Table, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Table{}, err
	}
	if strings.TrimSpace(header) == "" {
		return Table{}, errors.New("missing header")
	}

	reader := csv.NewReader(io.MultiReader(strings.NewReader(header), br))
	reader.Comma = detectDelimiter(header)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, err
	}

	cols, err := headerColumns(records[0])
	if err != nil {
		return Table{}, err
	}

	table := Table{byCode: make(map[string]models.Thresholds)}
	lineOf := make(map[string]int) // line each code was last read from
	for i, record := range records[1:] {
		line := i + 2
		if isBlank(record) {
			continue
		}
		if len(record) <= cols.max() {
			table.Skipped = append(table.Skipped, SkippedRow{Line: line, Reason: "missing columns"})
			continue
		}

		code := strings.TrimSpace(record[cols.code])
		if code == "" {
			table.Skipped = append(table.Skipped, SkippedRow{Line: line, Reason: "empty code"})
			continue
		}

		alert, err := parseLevel(record[cols.alert])
		if err != nil {
			table.Skipped = append(table.Skipped, SkippedRow{Line: line, Code: code, Reason: "invalid alert level: " + err.Error()})
			continue
		}
		flood, err := parseLevel(record[cols.flood])
		if err != nil {
			table.Skipped = append(table.Skipped, SkippedRow{Line: line, Code: code, Reason: "invalid flood level: " + err.Error()})
			continue
		}

		if _, dup := table.byCode[code]; dup {
			table.Skipped = append(table.Skipped, SkippedRow{Line: lineOf[code], Code: code, Reason: fmt.Sprintf("duplicate code, replaced by line %d", line)})
		}
		table.byCode[code] = models.Thresholds{Alert: alert, Flood: flood}
		lineOf[code] = line
	}

	return table, nil
}

type columns struct {
	code, alert, flood int
}

func (c columns) max() int {
	m := c.code
	if c.alert > m {
		m = c.alert
	}
	if c.flood > m {
		m = c.flood
	}
	return m
}

func headerColumns(header []string) (columns, error) {
	cols := columns{code: -1, alert: -1, flood: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "codigo", "código":
			cols.code = i
		case "alerta":
			cols.alert = i
		case "inundacao", "inundação":
			cols.flood = i
		}
	}

	var missing []string
	if cols.code < 0 {
		missing = append(missing, "Codigo")
	}
	if cols.alert < 0 {
		missing = append(missing, "Alerta")
	}
	if cols.flood < 0 {
		missing = append(missing, "Inundacao")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func detectDelimiter(header string) rune {
	if strings.Contains(header, ";") && !strings.Contains(header, ",") {
		return ';'
	}
	return ','
}

// parseLevel accepts "150", "150.5" and the decimal-comma form "150,5"
func parseLevel(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, errors.New("empty value")
	}
	return decimal.NewFromString(strings.Replace(s, ",", ".", 1))
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
