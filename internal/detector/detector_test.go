package detector

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cotas/internal/models"
)

func seriesOf(levels ...float64) models.Series {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := models.Series{StationCode: "60474000"}
	for i, l := range levels {
		s.Readings = append(s.Readings, models.Reading{Time: start.Add(time.Duration(i) * 15 * time.Minute), Level: l})
	}
	return s
}

func TestNewSpikeDetector(t *testing.T) {
	d := NewSpikeDetector()

	if d.zScoreThreshold != 3.0 {
		t.Errorf("Expected zScoreThreshold to be 3.0, got %f", d.zScoreThreshold)
	}
	if d.minSamples != 3 {
		t.Errorf("Expected minSamples to be 3, got %d", d.minSamples)
	}
}

func TestCalculateZScore(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		mean   float64
		stdDev float64
		want   float64
	}{
		{name: "value above mean", value: 100.0, mean: 50.0, stdDev: 25.0, want: 2.0},
		{name: "value below mean", value: 25.0, mean: 50.0, stdDev: 25.0, want: -1.0},
		{name: "value equals mean", value: 50.0, mean: 50.0, stdDev: 25.0, want: 0.0},
		{name: "zero standard deviation", value: 50.0, mean: 50.0, stdDev: 0.0, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateZScore(tt.value, tt.mean, tt.stdDev)
			if got != tt.want {
				t.Errorf("CalculateZScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsOutlier(t *testing.T) {
	tests := []struct {
		name   string
		zScore float64
		want   bool
	}{
		{name: "well inside", zScore: 1.2, want: false},
		{name: "on the threshold", zScore: 3.0, want: false},
		{name: "above", zScore: 3.1, want: true},
		{name: "below", zScore: -4.0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOutlier(tt.zScore, 3.0); got != tt.want {
				t.Errorf("IsOutlier(%v) = %v, want %v", tt.zScore, got, tt.want)
			}
		})
	}
}

func TestCalculateSeverityFromZScore(t *testing.T) {
	tests := []struct {
		zScore float64
		want   string
	}{
		{3.5, "low"},
		{-4.0, "low"},
		{5.0, "medium"},
		{-6.5, "high"},
	}

	for _, tt := range tests {
		if got := calculateSeverityFromZScore(tt.zScore, 3.0); got != tt.want {
			t.Errorf("calculateSeverityFromZScore(%v) = %s, want %s", tt.zScore, got, tt.want)
		}
	}
}

func TestDetect_FlagsSingleSpike(t *testing.T) {
	levels := make([]float64, 20)
	for i := range levels {
		levels[i] = 100
	}
	levels[12] = 1000

	spikes := NewSpikeDetector().Detect(seriesOf(levels...))

	if len(spikes) != 1 {
		t.Fatalf("expected 1 spike, got %d: %+v", len(spikes), spikes)
	}
	if spikes[0].Level != 1000 {
		t.Errorf("spike level = %v, want 1000", spikes[0].Level)
	}
	if spikes[0].ZScore < 4 || spikes[0].ZScore > 4.5 {
		t.Errorf("spike z-score = %v, want about 4.25", spikes[0].ZScore)
	}
	if spikes[0].Severity != "low" {
		t.Errorf("spike severity = %s, want low", spikes[0].Severity)
	}
}

func TestDetect_NotEnoughOrFlatData(t *testing.T) {
	d := NewSpikeDetector()

	if spikes := d.Detect(seriesOf(100, 900)); spikes != nil {
		t.Errorf("expected no spikes below minSamples, got %+v", spikes)
	}
	if spikes := d.Detect(seriesOf(120, 120, 120, 120)); spikes != nil {
		t.Errorf("expected no spikes for flat data, got %+v", spikes)
	}
}

func TestSummarize(t *testing.T) {
	sum, ok := Summarize(seriesOf(2, 4, 4, 4, 5, 5, 7, 9))
	if !ok {
		t.Fatal("Summarize() reported empty series")
	}

	if sum.Count != 8 || sum.Min != 2 || sum.Max != 9 || sum.Mean != 5 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if math.Abs(sum.StdDev-2.138) > 0.001 {
		t.Errorf("StdDev = %v, want about 2.138", sum.StdDev)
	}
	if sum.Latest.Level != 9 {
		t.Errorf("Latest = %v, want 9", sum.Latest.Level)
	}

	if _, ok := Summarize(models.Series{}); ok {
		t.Error("Summarize() should report false for an empty series")
	}
}

func TestCalculateStdDev_SingleValue(t *testing.T) {
	if got := calculateStdDev([]float64{42}, 42); got != 0 {
		t.Errorf("calculateStdDev() = %v, want 0", got)
	}
	if got := calculateMean(nil); got != 0 {
		t.Errorf("calculateMean(nil) = %v, want 0", got)
	}
}

func TestClassify(t *testing.T) {
	th := &models.Thresholds{Alert: decimal.NewFromInt(150), Flood: decimal.NewFromInt(300)}

	tests := []struct {
		name  string
		level float64
		th    *models.Thresholds
		want  Status
	}{
		{name: "no thresholds", level: 500, th: nil, want: StatusUnknown},
		{name: "below alert", level: 149.9, th: th, want: StatusNormal},
		{name: "at alert", level: 150, th: th, want: StatusAlert},
		{name: "between", level: 299, th: th, want: StatusAlert},
		{name: "at flood", level: 300, th: th, want: StatusFlood},
		{name: "above flood", level: 412, th: th, want: StatusFlood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.level, tt.th); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.level, got, tt.want)
			}
		})
	}
}

func TestStatusLabel(t *testing.T) {
	if StatusFlood.Label() != "Inundação" || StatusAlert.Label() != "Alerta" || StatusUnknown.Label() != "Sem referência" {
		t.Error("unexpected status labels")
	}
}
