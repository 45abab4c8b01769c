// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docstore persists pipeline documents as indented JSON. Documents
// are addressed by stage (mappings, constraints, series) and name; the
// pipeline stages depend only on the Store interface so the same code runs
// against a local directory, an in-memory filesystem, or an S3 bucket.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Stage names, used as directories or object key prefixes.
const (
	StageMappings    = "mappings"
	StageConstraints = "constraints"
	StageSeries      = "series"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Store reads and writes named JSON documents.
type Store interface {
	// Put replaces the document atomically: a reader never sees a partial
	// document.
	Put(ctx context.Context, stage, name string, doc any) error

	// Get decodes the document into doc. It wraps ErrNotFound when the
	// document does not exist.
	Get(ctx context.Context, stage, name string, doc any) error

	// List returns the sorted names in stage that start with prefix.
	List(ctx context.Context, stage, prefix string) ([]string, error)
}

// MappingName is the document name of a dataset's Mapping Document.
func MappingName(datasetID string) string { return "mapping_" + datasetID + ".json" }

// ConstraintsName is the document name of a dataset's Constraints Document.
func ConstraintsName(datasetID string) string { return "constraints_" + datasetID + ".json" }

// SeriesPrefix is the common prefix of every Series Record name of a dataset.
func SeriesPrefix(datasetID string) string { return "series_dataset_" + datasetID + "_" }

// encode renders doc as two-space indented JSON with a trailing newline.
// HTML escaping is off so labels such as "A&B" stay readable.
func encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, doc any, stage, name string) error {
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", stage, name, err)
	}
	return nil
}

func validName(stage, name string) error {
	for _, part := range []string{stage, name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("invalid document path %q/%q", stage, name)
		}
	}
	return nil
}
