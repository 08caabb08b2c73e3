package detector

import (
	"math"
	"time"

	"cotas/internal/models"
)

// SpikeDetector flags readings that sit far from the rest of the window,
// which on level gauges usually means a sensor glitch rather than the river
type SpikeDetector struct {
	zScoreThreshold float64 // standard deviations from mean to flag a reading
	minSamples      int
}

// Spike is a reading flagged by the detector
type Spike struct {
	Time     time.Time
	Level    float64
	ZScore   float64
	Severity string // "low", "medium", "high"
}

// Summary holds window statistics for one series
type Summary struct {
	Latest models.Reading
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Count  int
}

// NewSpikeDetector creates a detector with the default 3-sigma threshold
func NewSpikeDetector() *SpikeDetector {
	return &SpikeDetector{
		zScoreThreshold: 3.0,
		minSamples:      3,
	}
}

// Summarize computes the statistics of a series. ok is false when it is empty.
func Summarize(s models.Series) (Summary, bool) {
	latest, ok := s.Latest()
	if !ok {
		return Summary{}, false
	}

	values := levels(s)
	sum := Summary{
		Latest: latest,
		Min:    math.Inf(1),
		Max:    math.Inf(-1),
		Count:  len(values),
	}
	for _, v := range values {
		sum.Min = math.Min(sum.Min, v)
		sum.Max = math.Max(sum.Max, v)
	}
	sum.Mean = calculateMean(values)
	sum.StdDev = calculateStdDev(values, sum.Mean)
	return sum, true
}

// Detect returns the readings whose z-score exceeds the threshold
func (d *SpikeDetector) Detect(s models.Series) []Spike {
	if s.Len() < d.minSamples {
		return nil
	}

	values := levels(s)
	mean := calculateMean(values)
	stdDev := calculateStdDev(values, mean)
	if stdDev == 0 {
		return nil
	}

	var spikes []Spike
	for _, r := range s.Readings {
		zScore := CalculateZScore(r.Level, mean, stdDev)
		if IsOutlier(zScore, d.zScoreThreshold) {
			spikes = append(spikes, Spike{
				Time:     r.Time,
				Level:    r.Level,
				ZScore:   zScore,
				Severity: calculateSeverityFromZScore(zScore, d.zScoreThreshold),
			})
		}
	}
	return spikes
}

// calculateSeverityFromZScore grades a flagged reading relative to the threshold
func calculateSeverityFromZScore(zScore, threshold float64) string {
	absZScore := math.Abs(zScore)
	if absZScore > threshold*2 {
		return "high"
	} else if absZScore > threshold*1.5 {
		return "medium"
	}
	return "low"
}

// CalculateZScore calculates the Z-score for a value given mean and standard deviation
func CalculateZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// IsOutlier checks if a Z-score is beyond threshold standard deviations
func IsOutlier(zScore, threshold float64) bool {
	return math.Abs(zScore) > threshold
}

func levels(s models.Series) []float64 {
	values := make([]float64, len(s.Readings))
	for i, r := range s.Readings {
		values[i] = r.Level
	}
	return values
}

// calculateMean calculates the mean of values
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateStdDev calculates the sample standard deviation of values
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}
