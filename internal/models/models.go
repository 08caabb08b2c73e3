package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryRow is one <Table> element returned by the HidroInventario call
type InventoryRow struct {
	Code      string `xml:"Codigo"`
	Name      string `xml:"Nome"`
	River     string `xml:"RioNome"`
	City      string `xml:"nmMunicipio"`
	State     string `xml:"nmEstado"`
	Latitude  string `xml:"Latitude"`
	Longitude string `xml:"Longitude"`
}

// MeasurementRow is one <DadosHidrometereologicos> element. Fields stay as text
// because the service sends empty elements for missing values.
type MeasurementRow struct {
	StationCode string `xml:"CodEstacao"`
	DateTime    string `xml:"DataHora"`
	Level       string `xml:"Nivel"`
	Flow        string `xml:"Vazao"`
	Rain        string `xml:"Chuva"`
}

// Thresholds are the reference levels (cm) configured for a station
type Thresholds struct {
	Alert decimal.Decimal
	Flood decimal.Decimal
}

// Reading is a single cleaned level sample
type Reading struct {
	Time  time.Time
	Level float64 // cm
}

// Series holds the cleaned readings of one station, oldest first
type Series struct {
	StationCode string
	Readings    []Reading
}

func (s Series) Len() int {
	return len(s.Readings)
}

// Latest returns the most recent reading. ok is false for an empty series.
func (s Series) Latest() (Reading, bool) {
	if len(s.Readings) == 0 {
		return Reading{}, false
	}
	return s.Readings[len(s.Readings)-1], true
}

// Window is the date range requested from the measurement endpoint
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFormat is the DD-MM-YYYY layout the ANA service expects
const WindowFormat = "02-01-2006"

// NewWindow builds the trailing window around today (in now's location):
// pastDays before today up to lookaheadDays after it, truncated to days.
func NewWindow(now time.Time, pastDays, lookaheadDays int) Window {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return Window{
		Start: today.AddDate(0, 0, -pastDays),
		End:   today.AddDate(0, 0, lookaheadDays),
	}
}

func (w Window) StartParam() string {
	return w.Start.Format(WindowFormat)
}

func (w Window) EndParam() string {
	return w.End.Format(WindowFormat)
}
