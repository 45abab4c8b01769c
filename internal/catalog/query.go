// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/istat-engine/pkg/types"
)

// ErrSeriesNotFound is returned by Observations for a name that was never
// indexed.
var ErrSeriesNotFound = errors.New("series not indexed")

// QueryOptions holds parameters for catalog queries.
type QueryOptions struct {
	// DatasetID filters by dataflow id.
	DatasetID string

	// Dimension and Code filter series whose key holds that pair. Code
	// without Dimension matches the code under any dimension.
	Dimension string
	Code      string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// SeriesSummary describes one indexed series without its observations.
type SeriesSummary struct {
	Name         string          `json:"name" yaml:"name"`
	DatasetID    string          `json:"dataset_id" yaml:"dataset_id"`
	DatasetName  string          `json:"dataset_name,omitempty" yaml:"dataset_name,omitempty"`
	Metadata     types.SeriesKey `json:"metadata" yaml:"metadata"`
	FirstPeriod  string          `json:"first_period" yaml:"first_period"`
	LastPeriod   string          `json:"last_period" yaml:"last_period"`
	Observations int             `json:"observations" yaml:"observations"`
	GeneratedAt  time.Time       `json:"generated_at" yaml:"generated_at"`
}

// Query lists indexed series matching opts, ordered by dataset and name.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]SeriesSummary, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(
		`SELECT s.name, s.dataset_id, d.names, s.metadata, s.generated_at,
			COALESCE(o.first_period, ''), COALESCE(o.last_period, ''), COALESCE(o.n, 0)
		FROM series s
		LEFT JOIN datasets d ON d.id = s.dataset_id
		LEFT JOIN (
			SELECT series_name, MIN(time_period) AS first_period,
				MAX(time_period) AS last_period, COUNT(*) AS n
			FROM observations GROUP BY series_name
		) o ON o.series_name = s.name
		WHERE 1=1`)

	if opts.DatasetID != "" {
		qb.WriteString(` AND s.dataset_id = ?`)
		args = append(args, opts.DatasetID)
	}

	switch {
	case opts.Dimension != "" && opts.Code != "":
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(s.metadata)
			WHERE key = ? AND json_extract(value, '$.code') = ?)`)
		args = append(args, opts.Dimension, opts.Code)
	case opts.Dimension != "":
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(s.metadata)
			WHERE key = ?)`)
		args = append(args, opts.Dimension)
	case opts.Code != "":
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(s.metadata)
			WHERE json_extract(value, '$.code') = ?)`)
		args = append(args, opts.Code)
	}

	qb.WriteString(` ORDER BY s.dataset_id, s.name LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var results []SeriesSummary
	for rows.Next() {
		var (
			ss           SeriesSummary
			namesJSON    sql.NullString
			metadataJSON string
			generatedAt  string
		)
		if err := rows.Scan(
			&ss.Name, &ss.DatasetID, &namesJSON, &metadataJSON, &generatedAt,
			&ss.FirstPeriod, &ss.LastPeriod, &ss.Observations,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		if namesJSON.Valid {
			var names types.Labels
			if json.Unmarshal([]byte(namesJSON.String), &names) == nil {
				ss.DatasetName, _ = names.Preferred()
			}
		}
		if err := json.Unmarshal([]byte(metadataJSON), &ss.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of %s: %w", ss.Name, err)
		}
		ss.GeneratedAt, _ = time.Parse(time.RFC3339Nano, generatedAt)

		results = append(results, ss)
	}
	return results, rows.Err()
}

// Observations returns the indexed observations of the named series in
// the order they were written.
func (s *Store) Observations(ctx context.Context, name string) ([]types.Observation, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM series WHERE name = ?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, ErrSeriesNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up series: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT time_period, value_num, value_text FROM observations
		 WHERE series_name = ? ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	defer rows.Close()

	var out []types.Observation
	for rows.Next() {
		var (
			period string
			num    sql.NullFloat64
			text   sql.NullString
		)
		if err := rows.Scan(&period, &num, &text); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		o := types.Observation{TimePeriod: period}
		if num.Valid {
			o.Value = types.NumberValue(num.Float64)
		} else {
			o.Value = types.TextValue(text.String)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
