// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package series extracts labelled time series from a dataset's generic
// data message. Each series key is labelled through the dataset's
// Constraints Document, observations without a time period or value are
// dropped, and the rest are sorted by time period. A series left with no
// observations is skipped and the batch continues.
package series

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/istat-engine/internal/docstore"
	"github.com/pdiddy/istat-engine/internal/report"
	"github.com/pdiddy/istat-engine/internal/sdmx"
	"github.com/pdiddy/istat-engine/pkg/types"
)

// StageName identifies this stage in reports.
const StageName = "extract"

// ReasonNoObservations is the skip reason for a series whose observations
// all lacked a time period or a value.
const ReasonNoObservations = "no observations with both time period and value"

// Source is the subset of the SDMX client the extractor needs.
type Source interface {
	Series(ctx context.Context, datasetID string, fn func(sdmx.RawSeries) error) error
}

// Outcome describes what happened to one series of the data message.
type Outcome struct {
	// Index is the 1-based position of the series in the message.
	Index int

	// Name is the document name of a kept series; empty when skipped.
	Name string

	Key          types.SeriesKey
	Observations int
	Reason       string
}

// Report lists every series of one extraction, in message order.
type Report struct {
	Written []Outcome
	Skipped []Outcome
	Records []types.SeriesRecord
}

// Extractor produces Series Records.
type Extractor struct {
	Source   Source
	Store    docstore.Store
	Reporter report.Reporter

	// Now stamps dataset_info.generated_at; nil means time.Now.
	Now func() time.Time
}

// NewExtractor returns an Extractor reading from client and store.
func NewExtractor(client *sdmx.Client, store docstore.Store, rep report.Reporter) *Extractor {
	return &Extractor{Source: client, Store: store, Reporter: report.OrNop(rep)}
}

func (e *Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Extract fetches the data message of datasetID and converts every series.
// The constraints document must have been built for datasetID; otherwise
// an *sdmx.IntegrityError is returned before any remote call.
func (e *Extractor) Extract(ctx context.Context, datasetID string, constraints *types.ConstraintsDocument) (Report, error) {
	if constraints == nil {
		return Report{}, &sdmx.IntegrityError{Expected: datasetID, Detail: "no constraints document"}
	}
	if got := constraints.DatasetInfo.ID; got != datasetID {
		return Report{}, &sdmx.IntegrityError{Expected: datasetID, Actual: got, Detail: "constraints dataset_info.id"}
	}

	rep := report.OrNop(e.Reporter)
	info := types.SeriesDatasetInfo{
		DatasetIdentity: constraints.DatasetInfo,
		GeneratedAt:     e.now().UTC(),
	}

	var out Report
	index := 0
	err := e.Source.Series(ctx, datasetID, func(raw sdmx.RawSeries) error {
		index++
		key := e.labelKey(datasetID, raw.Key, constraints)
		obs := observations(raw.Observations)

		if len(obs) == 0 {
			out.Skipped = append(out.Skipped, Outcome{Index: index, Key: key, Reason: ReasonNoObservations})
			rep.SeriesSkipped(datasetID, index, ReasonNoObservations)
			return nil
		}

		out.Records = append(out.Records, types.SeriesRecord{
			DatasetInfo:  info,
			Metadata:     key,
			Observations: obs,
		})
		out.Written = append(out.Written, Outcome{
			Index:        index,
			Name:         FileName(datasetID, key),
			Key:          key,
			Observations: len(obs),
		})
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("reading series of %s: %w", datasetID, err)
	}
	return out, nil
}

// labelKey labels every (dimension, code) pair of a series key. Unknown
// pairs keep the code as their description. A repeated dimension keeps its
// first position and its last value.
func (e *Extractor) labelKey(datasetID string, raw []sdmx.SeriesKeyValue, constraints *types.ConstraintsDocument) types.SeriesKey {
	key := make(types.SeriesKey, 0, len(raw))
	pos := make(map[string]int, len(raw))
	for _, kv := range raw {
		label, found := constraints.Label(kv.ID, kv.Value)
		if !found {
			report.OrNop(e.Reporter).LabelMiss(datasetID, kv.ID, kv.Value)
		}
		entry := types.SeriesKeyEntry{
			Dimension:      kv.ID,
			SeriesKeyValue: types.SeriesKeyValue{Code: kv.Value, Description: label},
		}
		if i, ok := pos[kv.ID]; ok {
			key[i] = entry
			continue
		}
		pos[kv.ID] = len(key)
		key = append(key, entry)
	}
	return key
}

// observations keeps the observations that carry both a time period and a
// value, sorted ascending by time period. Equal periods keep message order.
func observations(raw []sdmx.RawObservation) []types.Observation {
	out := make([]types.Observation, 0, len(raw))
	for _, o := range raw {
		if o.TimePeriod == "" || strings.TrimSpace(o.Value) == "" {
			continue
		}
		out = append(out, types.Observation{TimePeriod: o.TimePeriod, Value: types.ParseObsValue(o.Value)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimePeriod < out[j].TimePeriod })
	return out
}

// FileName is the document name of a series:
// series_dataset_{id}_{DIM-code}_..._{DIM-code}.json with the pairs ordered
// by dimension id. Characters outside [A-Za-z0-9._-] become "_".
func FileName(datasetID string, key types.SeriesKey) string {
	pairs := make([]string, 0, len(key))
	for _, e := range key {
		pairs = append(pairs, safe(e.Dimension)+"-"+safe(e.Code))
	}
	sort.Strings(pairs)

	var b strings.Builder
	b.WriteString(docstore.SeriesPrefix(safe(datasetID)))
	b.WriteString(strings.Join(pairs, "_"))
	b.WriteString(".json")
	return b.String()
}

func safe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

// Build loads constraints/constraints_{id}.json, extracts, and persists
// every kept series under its FileName. A missing constraints document is
// reported with an error wrapping docstore.ErrNotFound. Series already
// written stay in place when a later write fails.
func (e *Extractor) Build(ctx context.Context, datasetID string) (rpt Report, err error) {
	start := time.Now()
	rep := report.OrNop(e.Reporter)
	defer func() {
		rep.StageFinished(StageName, datasetID, time.Since(start), err)
	}()

	var constraints types.ConstraintsDocument
	if err := e.Store.Get(ctx, docstore.StageConstraints, docstore.ConstraintsName(datasetID), &constraints); err != nil {
		return Report{}, fmt.Errorf("loading constraints for %s: %w", datasetID, err)
	}

	rpt, err = e.Extract(ctx, datasetID, &constraints)
	if err != nil {
		return Report{}, err
	}

	for i, rec := range rpt.Records {
		w := rpt.Written[i]
		if err := e.Store.Put(ctx, docstore.StageSeries, w.Name, rec); err != nil {
			return rpt, fmt.Errorf("saving series %d of %s: %w", w.Index, datasetID, err)
		}
		rep.SeriesWritten(datasetID, w.Name, w.Observations)
	}
	return rpt, nil
}
