// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report defines the observer that pipeline stages notify about
// fetches, resolved dimensions, label misses, and per-series outcomes.
// Stages receive a Reporter instead of writing to a process-wide logger so
// each stage can be exercised in isolation.
package report

import (
	"log/slog"
	"time"
)

// Reporter receives pipeline events. Implementations must not fail.
type Reporter interface {
	// FetchFinished is called once per remote call. status is zero when no
	// response was received.
	FetchFinished(url string, status int, elapsed time.Duration, err error)

	// DimensionResolved is called when a dimension's code universe or
	// constraint set is known.
	DimensionResolved(dataset, dimension string, codes int)

	// DimensionSkipped is called when a dimension is left out of a document.
	DimensionSkipped(dataset, dimension, reason string)

	// ConstraintRegionMissing is called when the availability response has
	// no cube region; the constraints document is built empty.
	ConstraintRegionMissing(dataset string)

	// LabelMiss is called when a code has no label and its raw value is used.
	LabelMiss(dataset, dimension, code string)

	// SeriesWritten is called for every persisted Series Record.
	SeriesWritten(dataset, name string, observations int)

	// SeriesSkipped is called for every series dropped from a batch.
	SeriesSkipped(dataset string, index int, reason string)

	// StageFinished is called when a stage completes or aborts.
	StageFinished(stage, dataset string, elapsed time.Duration, err error)
}

// Nop discards every event.
type Nop struct{}

func (Nop) FetchFinished(string, int, time.Duration, error) {}
func (Nop) DimensionResolved(string, string, int) {}
func (Nop) DimensionSkipped(string, string, string) {}
func (Nop) ConstraintRegionMissing(string) {}
func (Nop) LabelMiss(string, string, string) {}
func (Nop) SeriesWritten(string, string, int) {}
func (Nop) SeriesSkipped(string, int, string) {}
func (Nop) StageFinished(string, string, time.Duration, error) {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop{}
	}
	return r
}

// Multi fans every event out to each reporter in order.
type Multi []Reporter

func (m Multi) FetchFinished(url string, status int, elapsed time.Duration, err error) {
	for _, r := range m {
		r.FetchFinished(url, status, elapsed, err)
	}
}

func (m Multi) DimensionResolved(dataset, dimension string, codes int) {
	for _, r := range m {
		r.DimensionResolved(dataset, dimension, codes)
	}
}

func (m Multi) DimensionSkipped(dataset, dimension, reason string) {
	for _, r := range m {
		r.DimensionSkipped(dataset, dimension, reason)
	}
}

func (m Multi) ConstraintRegionMissing(dataset string) {
	for _, r := range m {
		r.ConstraintRegionMissing(dataset)
	}
}

func (m Multi) LabelMiss(dataset, dimension, code string) {
	for _, r := range m {
		r.LabelMiss(dataset, dimension, code)
	}
}

func (m Multi) SeriesWritten(dataset, name string, observations int) {
	for _, r := range m {
		r.SeriesWritten(dataset, name, observations)
	}
}

func (m Multi) SeriesSkipped(dataset string, index int, reason string) {
	for _, r := range m {
		r.SeriesSkipped(dataset, index, reason)
	}
}

func (m Multi) StageFinished(stage, dataset string, elapsed time.Duration, err error) {
	for _, r := range m {
		r.StageFinished(stage, dataset, elapsed, err)
	}
}

// LogReporter writes events to a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

// NewLogReporter returns a LogReporter; a nil logger uses slog.Default().
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{Logger: logger}
}

func (l *LogReporter) FetchFinished(url string, status int, elapsed time.Duration, err error) {
	if err != nil {
		l.Logger.Error("fetch failed", slog.String("url", url), slog.Int("status", status),
			slog.Duration("elapsed", elapsed), slog.String("error", err.Error()))
		return
	}
	l.Logger.Info("fetched", slog.String("url", url), slog.Int("status", status),
		slog.Duration("elapsed", elapsed))
}

func (l *LogReporter) DimensionResolved(dataset, dimension string, codes int) {
	l.Logger.Debug("dimension resolved", slog.String("dataset", dataset),
		slog.String("dimension", dimension), slog.Int("codes", codes))
}

func (l *LogReporter) DimensionSkipped(dataset, dimension, reason string) {
	l.Logger.Debug("dimension skipped", slog.String("dataset", dataset),
		slog.String("dimension", dimension), slog.String("reason", reason))
}

func (l *LogReporter) ConstraintRegionMissing(dataset string) {
	l.Logger.Error("no CubeRegion found in constraints", slog.String("dataset", dataset))
}

func (l *LogReporter) LabelMiss(dataset, dimension, code string) {
	l.Logger.Warn("label not found, using code", slog.String("dataset", dataset),
		slog.String("dimension", dimension), slog.String("code", code))
}

func (l *LogReporter) SeriesWritten(dataset, name string, observations int) {
	l.Logger.Info("series saved", slog.String("dataset", dataset),
		slog.String("document", name), slog.Int("observations", observations))
}

func (l *LogReporter) SeriesSkipped(dataset string, index int, reason string) {
	l.Logger.Warn("series skipped", slog.String("dataset", dataset),
		slog.Int("index", index), slog.String("reason", reason))
}

func (l *LogReporter) StageFinished(stage, dataset string, elapsed time.Duration, err error) {
	if err != nil {
		l.Logger.Error("stage failed", slog.String("stage", stage), slog.String("dataset", dataset),
			slog.Duration("elapsed", elapsed), slog.String("error", err.Error()))
		return
	}
	l.Logger.Info("stage completed", slog.String("stage", stage), slog.String("dataset", dataset),
		slog.Duration("elapsed", elapsed))
}
