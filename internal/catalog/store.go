// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog indexes Series Records into a SQLite database so written
// series can be listed and filtered by dataset and dimension code without
// re-reading every document.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/istat-engine/internal/docstore"
	"github.com/pdiddy/istat-engine/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "catalog.db"

	defaultMaxResults = 20
)

// Store manages the catalog SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// NewStore opens or creates the catalog at {cfg.Dir}/index/catalog.db and
// creates the schema if it does not exist.
func NewStore(cfg types.CatalogConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.Dir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dbDir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			id TEXT PRIMARY KEY,
			names TEXT,
			structure_agency TEXT,
			structure_id TEXT,
			structure_version TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS series (
			name TEXT PRIMARY KEY,
			dataset_id TEXT NOT NULL REFERENCES datasets(id),
			metadata TEXT NOT NULL,
			generated_at TEXT NOT NULL,
			run_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_series_dataset_id ON series(dataset_id)`,
		`CREATE TABLE IF NOT EXISTS observations (
			series_name TEXT NOT NULL REFERENCES series(name) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			time_period TEXT NOT NULL,
			value_num REAL,
			value_text TEXT,
			PRIMARY KEY (series_name, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			indexed INTEGER NOT NULL,
			updated INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			failed INTEGER NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IngestSummary holds counts from one catalog indexing run.
type IngestSummary struct {
	RunID   string
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of documents processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest reads every Series Record from the series stage of src and
// indexes it. A record whose generated_at matches the indexed copy is
// skipped; a changed record replaces its observations. Per-document
// failures are written to w and counted, never fatal. When anything was
// indexed or updated, index/export.yaml is rewritten.
func (s *Store) Ingest(ctx context.Context, src docstore.Store, w io.Writer) (IngestSummary, error) {
	summary := IngestSummary{RunID: uuid.NewString()}
	started := time.Now().UTC()

	names, err := src.List(ctx, docstore.StageSeries, "")
	if err != nil {
		return summary, fmt.Errorf("listing series documents: %w", err)
	}

	for _, name := range names {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		var rec types.SeriesRecord
		if err := src.Get(ctx, docstore.StageSeries, name, &rec); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		if rec.DatasetInfo.ID == "" {
			fmt.Fprintf(w, "failed  %s: no dataset id\n", name)
			summary.Failed++
			continue
		}
		generatedAt := rec.DatasetInfo.GeneratedAt.UTC().Format(time.RFC3339Nano)

		var stored string
		err := s.db.QueryRowContext(ctx,
			`SELECT generated_at FROM series WHERE name = ?`, name,
		).Scan(&stored)
		if err == nil && stored == generatedAt {
			fmt.Fprintf(w, "skipped %s\n", name)
			summary.Skipped++
			continue
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		isUpdate := err == nil

		if err := s.ingestSeries(ctx, name, &rec, generatedAt, summary.RunID); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d observations)\n", name, len(rec.Observations))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexed %s (%d observations)\n", name, len(rec.Observations))
			summary.Indexed++
		}
	}

	if err := s.recordRun(ctx, summary, started); err != nil {
		return summary, err
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d (run %s)\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed, summary.RunID)

	if summary.Indexed > 0 || summary.Updated > 0 {
		if err := s.ExportYAML(ctx, QueryOptions{}); err != nil {
			fmt.Fprintf(w, "warning: export.yaml write failed: %v\n", err)
		}
	}
	return summary, nil
}

func (s *Store) ingestSeries(ctx context.Context, name string, rec *types.SeriesRecord, generatedAt, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	info := rec.DatasetInfo
	namesJSON, _ := json.Marshal(info.Names)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO datasets (id, names, structure_agency, structure_id, structure_version)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			names=excluded.names, structure_agency=excluded.structure_agency,
			structure_id=excluded.structure_id, structure_version=excluded.structure_version`,
		info.ID, string(namesJSON),
		info.StructureReference.AgencyID, info.StructureReference.ID, info.StructureReference.Version,
	)
	if err != nil {
		return fmt.Errorf("upserting dataset: %w", err)
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO series (name, dataset_id, metadata, generated_at, run_id)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			dataset_id=excluded.dataset_id, metadata=excluded.metadata,
			generated_at=excluded.generated_at, run_id=excluded.run_id`,
		name, info.ID, string(metadataJSON), generatedAt, runID,
	)
	if err != nil {
		return fmt.Errorf("upserting series: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE series_name = ?`, name); err != nil {
		return fmt.Errorf("deleting old observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (series_name, seq, time_period, value_num, value_text)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range rec.Observations {
		var num sql.NullFloat64
		var text sql.NullString
		if f, ok := o.Value.Float(); ok {
			num = sql.NullFloat64{Float64: f, Valid: true}
		} else {
			text = sql.NullString{String: o.Value.String(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, name, i, o.TimePeriod, num, text); err != nil {
			return fmt.Errorf("inserting observation %s: %w", o.TimePeriod, err)
		}
	}

	return tx.Commit()
}

func (s *Store) recordRun(ctx context.Context, summary IngestSummary, started time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, started_at, finished_at, indexed, updated, skipped, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, started.Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339Nano),
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed,
	)
	if err != nil {
		return fmt.Errorf("recording ingest run: %w", err)
	}
	return nil
}
