package detector

import "cotas/internal/models"

// Status is the situation of a station's latest reading against its thresholds
type Status string

const (
	StatusUnknown Status = "unknown" // no reference thresholds
	StatusNormal  Status = "normal"
	StatusAlert   Status = "alert"
	StatusFlood   Status = "flood"
)

// Label is the text shown on charts
func (s Status) Label() string {
	switch s {
	case StatusNormal:
		return "Normal"
	case StatusAlert:
		return "Alerta"
	case StatusFlood:
		return "Inundação"
	default:
		return "Sem referência"
	}
}

// Classify compares a level with the station thresholds. Reaching a threshold
// counts as crossing it.
func Classify(level float64, th *models.Thresholds) Status {
	if th == nil {
		return StatusUnknown
	}

	switch {
	case level >= th.Flood.InexactFloat64():
		return StatusFlood
	case level >= th.Alert.InexactFloat64():
		return StatusAlert
	default:
		return StatusNormal
	}
}
