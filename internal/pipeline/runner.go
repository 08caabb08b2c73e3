// Package pipeline runs the per-station chain: inventory lookup, measurement
// fetch, cleaning, assessment and rendering. Every stage reports a typed
// outcome and one station's failure never stops the loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cotas/internal/api"
	"cotas/internal/chart"
	"cotas/internal/detector"
	"cotas/internal/events"
	"cotas/internal/metrics"
	"cotas/internal/models"
	"cotas/internal/series"
)

// Source is the remote data service
type Source interface {
	StationName(ctx context.Context, code string) (string, error)
	Measurements(ctx context.Context, code string, window models.Window) ([]models.MeasurementRow, error)
}

type Renderer interface {
	Render(in chart.Input) (string, error)
}

type References interface {
	Lookup(code string) (models.Thresholds, bool)
}

// Publisher receives the result of every station. Optional.
type Publisher interface {
	Publish(ctx context.Context, event events.StationEvent) error
}

// Outcome is the final state of one station in a run
type Outcome string

const (
	Rendered     Outcome = "rendered"
	NoData       Outcome = "no_data"
	NoValidData  Outcome = "no_valid_data"
	FetchFailed  Outcome = "fetch_failed"
	RenderFailed Outcome = "render_failed"
)

// StationResult is what happened to one station
type StationResult struct {
	Code     string
	Name     string
	NameErr  error
	Outcome  Outcome
	Err      error
	Report   series.Report
	Summary  *detector.Summary
	Status   detector.Status
	Spikes   []detector.Spike
	Artifact string
	Duration time.Duration
}

// Summary counts outcomes over a run
type Summary struct {
	Total     int
	ByOutcome map[Outcome]int
	Duration  time.Duration
}

type Options struct {
	Location      *time.Location
	PastDays      int
	LookaheadDays int
}

type Runner struct {
	source    Source
	renderer  Renderer
	refs      References
	publisher Publisher
	spikes    *detector.SpikeDetector
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
	clean     func(code string, rows []models.MeasurementRow, loc *time.Location) (models.Series, series.Report)
	summarize func(s models.Series) (detector.Summary, bool)
}

// NewRunner wires a runner. publisher may be nil.
func NewRunner(source Source, renderer Renderer, refs References, publisher Publisher, logger *slog.Logger, opts Options) *Runner {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Runner{
		source:    source,
		renderer:  renderer,
		refs:      refs,
		publisher: publisher,
		spikes:    detector.NewSpikeDetector(),
		logger:    logger,
		opts:      opts,
		now:       time.Now,
		clean:     series.Clean,
		summarize: detector.Summarize,
	}
}

// Run processes codes one at a time, in order
func (r *Runner) Run(ctx context.Context, codes []string) Summary {
	start := time.Now()
	window := models.NewWindow(r.now().In(r.opts.Location), r.opts.PastDays, r.opts.LookaheadDays)
	r.logger.Info("run started",
		"stations", len(codes),
		"start", window.StartParam(),
		"end", window.EndParam(),
	)

	summary := Summary{ByOutcome: make(map[Outcome]int)}
	for _, code := range codes {
		if ctx.Err() != nil {
			r.logger.Warn("run interrupted", "remaining", len(codes)-summary.Total)
			break
		}

		res := r.ProcessStation(ctx, code, window)
		r.publish(ctx, res)
		metrics.RecordStation(string(res.Outcome))

		summary.Total++
		summary.ByOutcome[res.Outcome]++
	}

	summary.Duration = time.Since(start)
	return summary
}

// ProcessStation runs every stage for one station and logs the result
func (r *Runner) ProcessStation(ctx context.Context, code string, window models.Window) (res StationResult) {
	start := time.Now()
	log := r.logger.With("station", code)
	res = StationResult{Code: code, Status: detector.StatusUnknown}
	defer func() { res.Duration = time.Since(start) }()

	res.Name, res.NameErr = r.lookupName(ctx, code)
	switch {
	case errors.Is(res.NameErr, api.ErrStationNotFound):
		log.Warn("station not found in the ANA inventory")
	case res.NameErr != nil:
		log.Error("inventory lookup failed", "err", res.NameErr)
	}

	rows, err := r.fetch(ctx, code, window)
	if err != nil {
		res.Outcome, res.Err = FetchFailed, err
		log.Error("failed to fetch level data", "err", err)
		return res
	}
	if len(rows) == 0 {
		res.Outcome = NoData
		log.Warn("no level data found in the query window")
		return res
	}

	s, report, err := r.cleanRows(code, rows)
	if err != nil {
		res.Outcome, res.Err = FetchFailed, err
		log.Error("failed to parse level data", "err", err)
		return res
	}
	res.Report = report
	metrics.RecordDropped(report.Dropped())
	if report.Dropped() > 0 {
		log.Debug("dropped invalid rows",
			"raw", report.Raw,
			"bad_timestamp", report.BadTimestamp,
			"bad_level", report.BadLevel,
		)
	}
	if s.Len() == 0 {
		res.Outcome = NoValidData
		log.Warn("no valid level data after cleaning", "raw", report.Raw)
		return res
	}

	var thresholds *models.Thresholds
	if th, ok := r.refs.Lookup(code); ok {
		thresholds = &th
	}
	if err := r.assess(&res, s, thresholds); err != nil {
		// render without a status
		res.Summary, res.Status, res.Spikes = nil, detector.StatusUnknown, nil
		log.Error("level assessment failed", "err", err)
	}
	for _, sp := range res.Spikes {
		log.Info("possible sensor spike",
			"time", sp.Time.Format(time.DateTime),
			"level", sp.Level,
			"z_score", fmt.Sprintf("%.2f", sp.ZScore),
			"severity", sp.Severity,
		)
	}

	res.Artifact, err = r.render(chart.Input{
		Code:       code,
		Name:       res.Name,
		Series:     s,
		Thresholds: thresholds,
		Status:     res.Status,
		Days:       r.opts.PastDays,
		Location:   r.opts.Location,
	})
	if err != nil {
		res.Outcome, res.Err = RenderFailed, err
		log.Error("failed to render chart", "err", err)
		return res
	}

	res.Outcome = Rendered
	metrics.ChartsWrittenTotal.Inc()
	log.Info("chart written",
		"path", res.Artifact,
		"readings", s.Len(),
		"status", string(res.Status),
	)
	return res
}

func (r *Runner) lookupName(ctx context.Context, code string) (name string, err error) {
	err = guard("inventory", func() error {
		name, err = r.source.StationName(ctx, code)
		return err
	})
	return name, err
}

func (r *Runner) fetch(ctx context.Context, code string, window models.Window) (rows []models.MeasurementRow, err error) {
	err = guard("measurements", func() error {
		rows, err = r.source.Measurements(ctx, code, window)
		return err
	})
	return rows, err
}

func (r *Runner) cleanRows(code string, rows []models.MeasurementRow) (s models.Series, report series.Report, err error) {
	err = guard("clean", func() error {
		s, report = r.clean(code, rows, r.opts.Location)
		return nil
	})
	return s, report, err
}

// assess fills the summary, status and spikes of res
func (r *Runner) assess(res *StationResult, s models.Series, thresholds *models.Thresholds) error {
	return guard("assess", func() error {
		if sum, ok := r.summarize(s); ok {
			res.Summary = &sum
			res.Status = detector.Classify(sum.Latest.Level, thresholds)
		}
		res.Spikes = r.spikes.Detect(s)
		return nil
	})
}

func (r *Runner) render(in chart.Input) (path string, err error) {
	err = guard("render", func() error {
		path, err = r.renderer.Render(in)
		return err
	})
	return path, err
}

func (r *Runner) publish(ctx context.Context, res StationResult) {
	if r.publisher == nil {
		return
	}

	event := events.StationEvent{
		Code:     res.Code,
		Name:     res.Name,
		Outcome:  string(res.Outcome),
		Status:   string(res.Status),
		Readings: res.Report.Kept,
		Spikes:   len(res.Spikes),
		Artifact: res.Artifact,
		RunAt:    r.now(),
	}
	if res.Summary != nil {
		level, ts := res.Summary.Latest.Level, res.Summary.Latest.Time
		event.LatestLevel, event.LatestTime = &level, &ts
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
	}

	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("failed to publish station event", "station", res.Code, "err", err)
	}
}

// guard turns a panic inside a stage into that stage's error
func guard(stage string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s: unexpected panic: %v", stage, p)
		}
	}()
	return fn()
}
