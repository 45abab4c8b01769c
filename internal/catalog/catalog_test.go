// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/istat-engine/internal/docstore"
	"github.com/pdiddy/istat-engine/pkg/types"
)

var generated = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// --- test helpers ---

func testSetup(t *testing.T) (*Store, docstore.Store) {
	t.Helper()
	store, err := NewStore(types.CatalogConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, docstore.NewMemStore()
}

func entry(dim, code, desc string) types.SeriesKeyEntry {
	return types.SeriesKeyEntry{Dimension: dim, SeriesKeyValue: types.SeriesKeyValue{Code: code, Description: desc}}
}

func record(id string, at time.Time, key types.SeriesKey, obs ...types.Observation) types.SeriesRecord {
	return types.SeriesRecord{
		DatasetInfo: types.SeriesDatasetInfo{
			DatasetIdentity: types.DatasetIdentity{
				ID:                 id,
				Names:              types.Labels{"en": "Unemployment rate", "it": "Tasso di disoccupazione"},
				StructureReference: types.StructureRef{AgencyID: "IT1", ID: "DCCV_TAXDISOCCU1", Version: "1.2"},
			},
			GeneratedAt: at,
		},
		Metadata:     key,
		Observations: obs,
	}
}

func seed(t *testing.T, src docstore.Store) {
	t.Helper()
	ctx := context.Background()
	docs := map[string]types.SeriesRecord{
		"series_dataset_151_914_FREQ-A_ITTER107-IT.json": record("151_914", generated,
			types.SeriesKey{entry("FREQ", "A", "annual"), entry("ITTER107", "IT", "Italy")},
			types.Observation{TimePeriod: "2018", Value: types.NumberValue(9.1)},
			types.Observation{TimePeriod: "2019", Value: types.NumberValue(10.5)},
		),
		"series_dataset_151_914_FREQ-Q_ITTER107-IT.json": record("151_914", generated,
			types.SeriesKey{entry("FREQ", "Q", "quarterly"), entry("ITTER107", "IT", "Italy")},
			types.Observation{TimePeriod: "2019-Q1", Value: types.TextValue("n.d.")},
		),
		"series_dataset_22_289_FREQ-A_SEX-9.json": record("22_289", generated,
			types.SeriesKey{entry("FREQ", "A", "annual"), entry("SEX", "9", "total")},
			types.Observation{TimePeriod: "2020", Value: types.NumberValue(1)},
		),
	}
	for name, rec := range docs {
		require.NoError(t, src.Put(ctx, docstore.StageSeries, name, rec))
	}
}

// --- ingest ---

func TestIngest(t *testing.T) {
	store, src := testSetup(t)
	seed(t, src)

	var out bytes.Buffer
	summary, err := store.Ingest(context.Background(), src, &out)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Indexed)
	assert.Equal(t, 3, summary.Total())
	assert.NotEmpty(t, summary.RunID)
	assert.Contains(t, out.String(), "indexed series_dataset_151_914_FREQ-A_ITTER107-IT.json (2 observations)")
	assert.Contains(t, out.String(), "indexed: 3, updated: 0, skipped: 0, failed: 0")

	_, err = os.Stat(store.ExportPath("yaml"))
	assert.NoError(t, err, "export.yaml is written after changes")
}

func TestIngestSkipsUnchanged(t *testing.T) {
	store, src := testSetup(t)
	seed(t, src)
	ctx := context.Background()

	_, err := store.Ingest(ctx, src, &bytes.Buffer{})
	require.NoError(t, err)

	var out bytes.Buffer
	summary, err := store.Ingest(ctx, src, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)
	assert.Zero(t, summary.Indexed)
	assert.Contains(t, out.String(), "skipped series_dataset_22_289_FREQ-A_SEX-9.json")

	var runs int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM ingest_runs`).Scan(&runs))
	assert.Equal(t, 2, runs)
}

func TestIngestUpdatesChanged(t *testing.T) {
	store, src := testSetup(t)
	seed(t, src)
	ctx := context.Background()

	_, err := store.Ingest(ctx, src, &bytes.Buffer{})
	require.NoError(t, err)

	name := "series_dataset_22_289_FREQ-A_SEX-9.json"
	require.NoError(t, src.Put(ctx, docstore.StageSeries, name, record("22_289", generated.Add(time.Hour),
		types.SeriesKey{entry("FREQ", "A", "annual"), entry("SEX", "9", "total")},
		types.Observation{TimePeriod: "2020", Value: types.NumberValue(2)},
		types.Observation{TimePeriod: "2021", Value: types.NumberValue(3)},
	)))

	summary, err := store.Ingest(ctx, src, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 2, summary.Skipped)

	obs, err := store.Observations(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, []types.Observation{
		{TimePeriod: "2020", Value: types.NumberValue(2)},
		{TimePeriod: "2021", Value: types.NumberValue(3)},
	}, obs)
}

func TestIngestCountsFailures(t *testing.T) {
	store, src := testSetup(t)
	ctx := context.Background()

	require.NoError(t, src.Put(ctx, docstore.StageSeries, "series_dataset_1_bad.json",
		map[string]any{"metadata": []string{"not", "an", "object"}}))
	require.NoError(t, src.Put(ctx, docstore.StageSeries, "series_dataset_1_noid.json",
		record("", generated, nil)))

	var out bytes.Buffer
	summary, err := store.Ingest(ctx, src, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Failed)
	assert.Contains(t, out.String(), "failed  series_dataset_1_noid.json: no dataset id")

	_, err = os.Stat(store.ExportPath("yaml"))
	assert.True(t, os.IsNotExist(err), "nothing changed, no export")
}

func TestIngestCancelled(t *testing.T) {
	store, src := testSetup(t)
	seed(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Ingest(ctx, src, &bytes.Buffer{})
	assert.Error(t, err)
}

// --- query ---

func TestQuery(t *testing.T) {
	store, src := testSetup(t)
	seed(t, src)
	ctx := context.Background()
	_, err := store.Ingest(ctx, src, &bytes.Buffer{})
	require.NoError(t, err)

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{"all", QueryOptions{}, []string{
			"series_dataset_151_914_FREQ-A_ITTER107-IT.json",
			"series_dataset_151_914_FREQ-Q_ITTER107-IT.json",
			"series_dataset_22_289_FREQ-A_SEX-9.json",
		}},
		{"dataset", QueryOptions{DatasetID: "22_289"}, []string{
			"series_dataset_22_289_FREQ-A_SEX-9.json",
		}},
		{"dimension and code", QueryOptions{Dimension: "FREQ", Code: "Q"}, []string{
			"series_dataset_151_914_FREQ-Q_ITTER107-IT.json",
		}},
		{"dimension only", QueryOptions{Dimension: "SEX"}, []string{
			"series_dataset_22_289_FREQ-A_SEX-9.json",
		}},
		{"code only", QueryOptions{Code: "IT"}, []string{
			"series_dataset_151_914_FREQ-A_ITTER107-IT.json",
			"series_dataset_151_914_FREQ-Q_ITTER107-IT.json",
		}},
		{"code under another dimension", QueryOptions{Dimension: "SEX", Code: "A"}, nil},
		{"max results", QueryOptions{MaxResults: 1}, []string{
			"series_dataset_151_914_FREQ-A_ITTER107-IT.json",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Query(ctx, tt.opts)
			require.NoError(t, err)
			var names []string
			for _, r := range results {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestQuerySummary(t *testing.T) {
	store, src := testSetup(t)
	seed(t, src)
	ctx := context.Background()
	_, err := store.Ingest(ctx, src, &bytes.Buffer{})
	require.NoError(t, err)

	results, err := store.Query(ctx, QueryOptions{Dimension: "FREQ", Code: "A", DatasetID: "151_914"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, "Unemployment rate", got.DatasetName)
	assert.Equal(t, "2018", got.FirstPeriod)
	assert.Equal(t, "2019", got.LastPeriod)
	assert.Equal(t, 2, got.Observations)
	assert.True(t, generated.Equal(got.GeneratedAt))
	assert.Equal(t, "FREQ", got.Metadata[0].Dimension, "metadata keeps key order")
}

func TestObservations(t *testing.T) {
	store, src := testSetup(t)
	seed(t, src)
	ctx := context.Background()
	_, err := store.Ingest(ctx, src, &bytes.Buffer{})
	require.NoError(t, err)

	obs, err := store.Observations(ctx, "series_dataset_151_914_FREQ-Q_ITTER107-IT.json")
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.False(t, obs[0].Value.IsNumeric())
	assert.Equal(t, "n.d.", obs[0].Value.String())

	_, err = store.Observations(ctx, "series_dataset_0_missing.json")
	assert.True(t, errors.Is(err, ErrSeriesNotFound))
}

// --- export ---

func TestExport(t *testing.T) {
	store, src := testSetup(t)
	seed(t, src)
	ctx := context.Background()
	_, err := store.Ingest(ctx, src, &bytes.Buffer{})
	require.NoError(t, err)

	require.NoError(t, store.ExportJSON(ctx, QueryOptions{DatasetID: "22_289"}))
	data, err := os.ReadFile(store.ExportPath("json"))
	require.NoError(t, err)
	var entries []SeriesSummary
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "series_dataset_22_289_FREQ-A_SEX-9.json", entries[0].Name)

	require.NoError(t, store.ExportYAML(ctx, QueryOptions{}))
	data, err = os.ReadFile(store.ExportPath("yaml"))
	require.NoError(t, err)
	var raw []map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Len(t, raw, 3)
}

func TestExportEmpty(t *testing.T) {
	store, _ := testSetup(t)

	require.NoError(t, store.ExportJSON(context.Background(), QueryOptions{}))
	data, err := os.ReadFile(store.ExportPath("json"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}
