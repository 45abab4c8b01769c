// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the three stages for one dataset in order: codelist
// mapping, constraint resolution, and series extraction. Each stage reads
// its input back from the document store, so a run behaves exactly like
// three separate invocations of the stage commands.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/istat-engine/internal/constraints"
	"github.com/pdiddy/istat-engine/internal/docstore"
	"github.com/pdiddy/istat-engine/internal/mapping"
	"github.com/pdiddy/istat-engine/internal/report"
	"github.com/pdiddy/istat-engine/internal/sdmx"
	"github.com/pdiddy/istat-engine/internal/series"
	"github.com/pdiddy/istat-engine/pkg/types"
)

// Result holds the output of every stage of a run.
type Result struct {
	Mapping     *types.MappingDocument
	Constraints *types.ConstraintsDocument
	Series      series.Report
}

// Runner chains the stage builders.
type Runner struct {
	Mapping     *mapping.Resolver
	Constraints *constraints.Resolver
	Series      *series.Extractor
}

// NewRunner wires all stages to one client, store, and reporter. A non-nil
// now is shared by every stage.
func NewRunner(client *sdmx.Client, store docstore.Store, rep report.Reporter, now func() time.Time) *Runner {
	r := &Runner{
		Mapping:     mapping.NewResolver(client, store, rep),
		Constraints: constraints.NewResolver(client, store, rep),
		Series:      series.NewExtractor(client, store, rep),
	}
	r.Mapping.Now = now
	r.Constraints.Now = now
	r.Series.Now = now
	return r
}

// StageError names the stage a run stopped at.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Run executes mapping, constraints, and extraction for datasetID strictly
// in sequence. The first failing stage stops the run; the result holds
// the outputs of the stages that completed.
func (r *Runner) Run(ctx context.Context, datasetID string) (Result, error) {
	var res Result
	var err error

	if res.Mapping, err = r.Mapping.Build(ctx, datasetID); err != nil {
		return res, &StageError{Stage: mapping.StageName, Err: err}
	}
	if res.Constraints, err = r.Constraints.Build(ctx, datasetID); err != nil {
		return res, &StageError{Stage: constraints.StageName, Err: err}
	}
	if res.Series, err = r.Series.Build(ctx, datasetID); err != nil {
		return res, &StageError{Stage: series.StageName, Err: err}
	}
	return res, nil
}
