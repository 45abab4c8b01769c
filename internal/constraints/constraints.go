// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package constraints narrows a dataset's Mapping Document to the codes the
// dataset actually populates, as reported by the service's availability
// endpoint, and attaches the dataset's identity from its dataflow.
package constraints

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/pdiddy/istat-engine/internal/docstore"
	"github.com/pdiddy/istat-engine/internal/report"
	"github.com/pdiddy/istat-engine/internal/sdmx"
	"github.com/pdiddy/istat-engine/pkg/types"
)

// StageName identifies this stage in reports.
const StageName = "constraints"

// Source is the subset of the SDMX client the resolver needs.
type Source interface {
	AvailableConstraint(ctx context.Context, datasetID string) (*sdmx.CubeRegion, error)
	Dataflow(ctx context.Context, datasetID string) (*sdmx.Dataflow, error)
}

// Resolver produces Constraints Documents.
type Resolver struct {
	Source   Source
	Store    docstore.Store
	Reporter report.Reporter

	// Now stamps GeneratedAt; nil means time.Now.
	Now func() time.Time
}

// NewResolver returns a Resolver reading from client and store.
func NewResolver(client *sdmx.Client, store docstore.Store, rep report.Reporter) *Resolver {
	return &Resolver{Source: client, Store: store, Reporter: report.OrNop(rep)}
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve fetches the populated region and dataflow of datasetID and labels
// every populated code from mapping. A nil mapping is treated as empty:
// every code then carries its own value as default label.
//
// A response without a cube region is not an error; the document is built
// with no dimensions and the condition is reported.
func (r *Resolver) Resolve(ctx context.Context, datasetID string, mapping *types.MappingDocument) (*types.ConstraintsDocument, error) {
	rep := report.OrNop(r.Reporter)

	region, err := r.Source.AvailableConstraint(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("reading available constraint of %s: %w", datasetID, err)
	}

	identity, err := r.identity(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	doc := &types.ConstraintsDocument{
		DatasetInfo: identity,
		GeneratedAt: r.now().UTC(),
		Dimensions:  map[string]types.ConstraintDimension{},
	}

	if region == nil {
		rep.ConstraintRegionMissing(datasetID)
		return doc, nil
	}

	for _, kv := range region.KeyValues {
		values := make(map[string]types.ConstraintValue, len(kv.Values))
		for _, code := range kv.Values {
			name := mapping.NameLabels(kv.ID, code)
			if name == nil {
				rep.LabelMiss(datasetID, kv.ID, code)
				name = types.Labels{types.DefaultLang: code}
			} else {
				name = maps.Clone(name)
			}
			values[code] = types.ConstraintValue{Name: name}
		}
		doc.Dimensions[kv.ID] = types.ConstraintDimension{ID: kv.ID, Values: values}
		rep.DimensionResolved(datasetID, kv.ID, len(values))
	}

	return doc, nil
}

// identity builds dataset_info from the dataflow. The id is always
// datasetID; the dataflow contributes only names and the structure
// reference. A response without a Dataflow yields an identity carrying
// only the id.
func (r *Resolver) identity(ctx context.Context, datasetID string) (types.DatasetIdentity, error) {
	id := types.DatasetIdentity{ID: datasetID, Names: types.Labels{}}

	df, err := r.Source.Dataflow(ctx, datasetID)
	if err != nil {
		return id, fmt.Errorf("reading dataflow of %s: %w", datasetID, err)
	}
	if df == nil {
		return id, nil
	}

	if df.Names != nil {
		id.Names = df.Names
	}
	if df.Structure != nil {
		id.StructureReference = *df.Structure
	}
	return id, nil
}

// Build loads mappings/mapping_{id}.json, resolves, and persists the result
// as constraints/constraints_{id}.json. A missing mapping is reported with
// an error wrapping docstore.ErrNotFound before any remote call.
func (r *Resolver) Build(ctx context.Context, datasetID string) (doc *types.ConstraintsDocument, err error) {
	start := time.Now()
	defer func() {
		report.OrNop(r.Reporter).StageFinished(StageName, datasetID, time.Since(start), err)
	}()

	var mapping types.MappingDocument
	if err := r.Store.Get(ctx, docstore.StageMappings, docstore.MappingName(datasetID), &mapping); err != nil {
		return nil, fmt.Errorf("loading mapping for %s: %w", datasetID, err)
	}

	doc, err = r.Resolve(ctx, datasetID, &mapping)
	if err != nil {
		return nil, err
	}
	if err := r.Store.Put(ctx, docstore.StageConstraints, docstore.ConstraintsName(datasetID), doc); err != nil {
		return nil, fmt.Errorf("saving constraints for %s: %w", datasetID, err)
	}
	return doc, nil
}
