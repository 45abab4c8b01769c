// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/istat-engine/internal/docstore"
	"github.com/pdiddy/istat-engine/internal/report"
	"github.com/pdiddy/istat-engine/internal/sdmx"
	"github.com/pdiddy/istat-engine/internal/sdmx/sdmxtest"
	"github.com/pdiddy/istat-engine/pkg/types"
)

const datasetID = "151_914"

var (
	dsd     = types.StructureRef{AgencyID: "IT1", ID: "DCCV_TAXDISOCCU1", Version: "1.2"}
	freqCL  = types.CodelistReference{AgencyID: "IT1", ID: "CL_FREQ", Version: "1.0"}
	itterCL = types.CodelistReference{AgencyID: "IT1", ID: "CL_ITTER107", Version: "1.0"}
)

// serveDataset registers every response the pipeline needs for a dataset
// with dimensions FREQ in {A, Q} and ITTER107 in {IT}.
func serveDataset(srv *sdmxtest.Server, series ...sdmxtest.Series) {
	srv.Handle("/data/"+datasetID, sdmxtest.Data(dsd, series...))
	srv.Handle("/datastructure/IT1/DCCV_TAXDISOCCU1", sdmxtest.DataStructure(dsd,
		sdmxtest.Dim{ID: "FREQ", Codelist: &freqCL},
		sdmxtest.Dim{ID: "ITTER107", Codelist: &itterCL},
	))
	srv.Handle("/codelist/IT1/CL_FREQ", sdmxtest.Codelist(freqCL, map[string]string{"en": "Frequency"},
		sdmxtest.Code{ID: "A", Names: map[string]string{"en": "annual", "it": "annuale"}},
		sdmxtest.Code{ID: "Q", Names: map[string]string{"en": "quarterly", "it": "trimestrale"}},
	))
	srv.Handle("/codelist/IT1/CL_ITTER107", sdmxtest.Codelist(itterCL, map[string]string{"en": "Territory"},
		sdmxtest.Code{ID: "IT", Names: map[string]string{"en": "Italy", "it": "Italia"}},
	))
	srv.Handle("/availableconstraint/"+datasetID, sdmxtest.Constraint(datasetID,
		sdmxtest.Region{ID: "FREQ", Values: []string{"A", "Q"}},
		sdmxtest.Region{ID: "ITTER107", Values: []string{"IT"}},
	))
	srv.Handle("/dataflow/IT1/"+datasetID, sdmxtest.Dataflow(datasetID,
		map[string]string{"en": "Unemployment rate", "it": "Tasso di disoccupazione"}, &dsd))
}

func newRunner(t *testing.T, srv *sdmxtest.Server, store docstore.Store, rec *report.Recorder) *Runner {
	t.Helper()
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return NewRunner(sdmx.NewClient(srv.SDMXConfig(), rec), store, rec, func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
}

func TestRunEndToEnd(t *testing.T) {
	srv := sdmxtest.NewServer(t)
	serveDataset(srv, sdmxtest.Series{
		Key: []sdmxtest.KeyValue{{ID: "FREQ", Value: "A"}, {ID: "ITTER107", Value: "IT"}},
		Obs: []sdmxtest.Obs{{Time: "2019", Value: "10.5"}, {Time: "2018", Value: "9.1"}},
	})
	store := docstore.NewMemStore()
	rec := &report.Recorder{}

	res, err := newRunner(t, srv, store, rec).Run(context.Background(), datasetID)
	require.NoError(t, err)

	require.Len(t, res.Series.Records, 1)
	got := res.Series.Records[0]
	assert.Equal(t, []types.Observation{
		{TimePeriod: "2018", Value: types.NumberValue(9.1)},
		{TimePeriod: "2019", Value: types.NumberValue(10.5)},
	}, got.Observations)

	freq, ok := got.Metadata.Get("FREQ")
	require.True(t, ok)
	assert.Equal(t, "annual", freq.Description)
	itter, _ := got.Metadata.Get("ITTER107")
	assert.Equal(t, "Italy", itter.Description)
	assert.Equal(t, "Tasso di disoccupazione", got.DatasetInfo.Names["it"])

	ctx := context.Background()
	for stage, want := range map[string][]string{
		docstore.StageMappings:    {"mapping_151_914.json"},
		docstore.StageConstraints: {"constraints_151_914.json"},
		docstore.StageSeries:      {"series_dataset_151_914_FREQ-A_ITTER107-IT.json"},
	} {
		names, err := store.List(ctx, stage, "")
		require.NoError(t, err)
		assert.Equal(t, want, names, stage)
	}

	assert.Equal(t, 3, rec.Count("stage "))
	assert.Zero(t, rec.Count("label-miss"))
}

func TestRunDropsSeriesWithoutValues(t *testing.T) {
	srv := sdmxtest.NewServer(t)
	serveDataset(srv,
		sdmxtest.Series{
			Key: []sdmxtest.KeyValue{{ID: "FREQ", Value: "Q"}, {ID: "ITTER107", Value: "IT"}},
			Obs: []sdmxtest.Obs{{Time: "2019-Q1"}},
		},
		sdmxtest.Series{
			Key: []sdmxtest.KeyValue{{ID: "FREQ", Value: "A"}, {ID: "ITTER107", Value: "IT"}},
			Obs: []sdmxtest.Obs{{Time: "2019", Value: "1"}},
		},
	)
	store := docstore.NewMemStore()
	rec := &report.Recorder{}

	res, err := newRunner(t, srv, store, rec).Run(context.Background(), datasetID)
	require.NoError(t, err)
	assert.Len(t, res.Series.Records, 1)
	require.Len(t, res.Series.Skipped, 1)
	assert.Equal(t, 1, res.Series.Skipped[0].Index)

	names, err := store.List(context.Background(), docstore.StageSeries, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"series_dataset_151_914_FREQ-A_ITTER107-IT.json"}, names)
	assert.Equal(t, 1, rec.Count("series-skipped 1"))
}

func TestRunIdempotent(t *testing.T) {
	srv := sdmxtest.NewServer(t)
	serveDataset(srv,
		sdmxtest.Series{
			Key: []sdmxtest.KeyValue{{ID: "FREQ", Value: "A"}, {ID: "ITTER107", Value: "IT"}},
			Obs: []sdmxtest.Obs{{Time: "2020", Value: "2"}, {Time: "2019", Value: "1"}},
		},
		sdmxtest.Series{
			Key: []sdmxtest.KeyValue{{ID: "FREQ", Value: "Q"}, {ID: "ITTER107", Value: "IT"}},
			Obs: []sdmxtest.Obs{{Time: "2020-Q1", Value: "0.5"}},
		},
	)
	store := docstore.NewMemStore()
	ctx := context.Background()

	runner := newRunner(t, srv, store, &report.Recorder{})
	first, err := runner.Run(ctx, datasetID)
	require.NoError(t, err)
	firstNames, err := store.List(ctx, docstore.StageSeries, "")
	require.NoError(t, err)

	second, err := runner.Run(ctx, datasetID)
	require.NoError(t, err)
	secondNames, err := store.List(ctx, docstore.StageSeries, "")
	require.NoError(t, err)

	assert.Equal(t, firstNames, secondNames)
	require.Len(t, second.Series.Records, len(first.Series.Records))
	for i := range first.Series.Records {
		a, b := first.Series.Records[i], second.Series.Records[i]
		assert.NotEqual(t, a.DatasetInfo.GeneratedAt, b.DatasetInfo.GeneratedAt)
		assert.Equal(t, a.DatasetInfo.ID, b.DatasetInfo.ID)
		assert.Equal(t, a.Metadata, b.Metadata)
		assert.Equal(t, a.Observations, b.Observations)
	}
}

func TestRunStopsAtFailingStage(t *testing.T) {
	srv := sdmxtest.NewServer(t)
	serveDataset(srv)
	srv.HandleStatus("/availableconstraint/"+datasetID, 500, "error")
	store := docstore.NewMemStore()
	rec := &report.Recorder{}

	res, err := newRunner(t, srv, store, rec).Run(context.Background(), datasetID)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "constraints", serr.Stage)
	var ferr *sdmx.RemoteFetchError
	assert.ErrorAs(t, err, &ferr)

	assert.NotNil(t, res.Mapping)
	assert.Nil(t, res.Constraints)
	assert.Equal(t, 1, srv.Hits("/data/"+datasetID), "only the mapping stage read the data envelope")
	assert.Equal(t, 1, rec.Count("stage-failed constraints"))
}
