// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"strings"
	"time"
)

// Recorder keeps every event as a short string so tests can assert on skip
// and fallback decisions instead of scraping log output.
type Recorder struct {
	Events []string
}

func (r *Recorder) add(format string, args ...any) {
	r.Events = append(r.Events, fmt.Sprintf(format, args...))
}

// Count returns how many recorded events start with prefix.
func (r *Recorder) Count(prefix string) int {
	n := 0
	for _, e := range r.Events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

func (r *Recorder) FetchFinished(url string, status int, _ time.Duration, err error) {
	if err != nil {
		r.add("fetch-failed %s %d", url, status)
		return
	}
	r.add("fetch %s %d", url, status)
}

func (r *Recorder) DimensionResolved(_, dimension string, codes int) {
	r.add("dimension %s %d", dimension, codes)
}

func (r *Recorder) DimensionSkipped(_, dimension, reason string) {
	r.add("dimension-skipped %s: %s", dimension, reason)
}

func (r *Recorder) ConstraintRegionMissing(dataset string) {
	r.add("region-missing %s", dataset)
}

func (r *Recorder) LabelMiss(_, dimension, code string) {
	r.add("label-miss %s=%s", dimension, code)
}

func (r *Recorder) SeriesWritten(_, name string, observations int) {
	r.add("series-written %s %d", name, observations)
}

func (r *Recorder) SeriesSkipped(_ string, index int, reason string) {
	r.add("series-skipped %d: %s", index, reason)
}

func (r *Recorder) StageFinished(stage, _ string, _ time.Duration, err error) {
	if err != nil {
		r.add("stage-failed %s", stage)
		return
	}
	r.add("stage %s", stage)
}
