// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mapping builds the Mapping Document of a dataset: for every
// dimension of its data structure definition, the full set of codes the
// dimension's codelist admits, with names and descriptions per language.
//
// Resolution takes three kinds of remote call: the data envelope (read only
// for its structure reference), the structure definition, and one codelist
// per enumerated dimension. Codelists are fetched once per dimension even
// when two dimensions share one.
package mapping

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/istat-engine/internal/docstore"
	"github.com/pdiddy/istat-engine/internal/report"
	"github.com/pdiddy/istat-engine/internal/sdmx"
	"github.com/pdiddy/istat-engine/pkg/types"
)

// StageName identifies this stage in reports.
const StageName = "mapping"

// Source is the subset of the SDMX client the resolver needs.
type Source interface {
	DataStructureRef(ctx context.Context, datasetID string) (types.StructureRef, error)
	Dimensions(ctx context.Context, ref types.StructureRef) ([]sdmx.Dimension, error)
	Codelist(ctx context.Context, ref types.CodelistReference) (*sdmx.Codelist, error)
}

// Resolver produces Mapping Documents.
type Resolver struct {
	Source   Source
	Store    docstore.Store
	Reporter report.Reporter

	// DefaultCodelistVersion is used when an Enumeration reference omits
	// its version.
	DefaultCodelistVersion string

	// Now stamps GeneratedAt; nil means time.Now.
	Now func() time.Time
}

// NewResolver returns a Resolver reading from client and writing to store.
func NewResolver(client *sdmx.Client, store docstore.Store, rep report.Reporter) *Resolver {
	return &Resolver{
		Source:                 client,
		Store:                  store,
		Reporter:               report.OrNop(rep),
		DefaultCodelistVersion: client.Config.DefaultCodelistVersion,
	}
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve fetches the structure and codelists of datasetID and returns its
// Mapping Document. Any remote or structural failure aborts the whole
// resolution; no partial document is returned.
func (r *Resolver) Resolve(ctx context.Context, datasetID string) (*types.MappingDocument, error) {
	rep := report.OrNop(r.Reporter)

	sref, err := r.Source.DataStructureRef(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("reading structure reference of %s: %w", datasetID, err)
	}

	dims, err := r.Source.Dimensions(ctx, sref)
	if err != nil {
		return nil, fmt.Errorf("reading structure %s: %w", sref.ID, err)
	}

	doc := &types.MappingDocument{
		DatasetID:   datasetID,
		GeneratedAt: r.now().UTC(),
		Structure:   sref,
		Dimensions:  make(map[string]types.MappingDimension, len(dims)),
	}

	for _, d := range dims {
		if d.ID == "" {
			rep.DimensionSkipped(datasetID, "", "dimension without id")
			continue
		}
		if d.Enumeration == nil {
			rep.DimensionSkipped(datasetID, d.ID, "no enumerated codelist")
			continue
		}

		cref, err := r.codelistRef(sref, d)
		if err != nil {
			return nil, err
		}

		dim, err := r.resolveDimension(ctx, cref)
		if err != nil {
			return nil, fmt.Errorf("dimension %s: %w", d.ID, err)
		}
		doc.Dimensions[d.ID] = dim
		rep.DimensionResolved(datasetID, d.ID, len(dim.Values))
	}

	return doc, nil
}

// codelistRef completes the dimension's Enumeration reference: a missing
// agency falls back to the structure's agency, a missing version to the
// configured default.
func (r *Resolver) codelistRef(sref types.StructureRef, d sdmx.Dimension) (types.CodelistReference, error) {
	cref := *d.Enumeration
	if cref.ID == "" {
		return cref, &sdmx.StructureParseError{Element: "Enumeration/Ref@id", Context: "dimension " + d.ID}
	}
	if cref.AgencyID == "" {
		cref.AgencyID = sref.AgencyID
	}
	if cref.Version == "" {
		cref.Version = r.DefaultCodelistVersion
	}
	if cref.Version == "" {
		cref.Version = sdmx.DefaultCodelistVersion
	}
	return cref, nil
}

func (r *Resolver) resolveDimension(ctx context.Context, cref types.CodelistReference) (types.MappingDimension, error) {
	cl, err := r.Source.Codelist(ctx, cref)
	if err != nil {
		return types.MappingDimension{}, err
	}

	values := make(map[string]types.CodeValue, len(cl.Codes))
	for _, c := range cl.Codes {
		if c.ID == "" {
			return types.MappingDimension{}, &sdmx.StructureParseError{Element: "structure:Code@id", Context: "codelist " + cref.ID}
		}
		values[c.ID] = types.CodeValue{Code: c.ID, Name: c.Name, Description: c.Description}
	}

	return types.MappingDimension{
		Codelist: types.CodelistInfo{
			CodelistReference: cref,
			Name:              cl.Name,
			Description:       cl.Description,
		},
		Values: values,
	}, nil
}

// Build resolves datasetID and persists the document as
// mappings/mapping_{id}.json, replacing any previous version.
func (r *Resolver) Build(ctx context.Context, datasetID string) (doc *types.MappingDocument, err error) {
	start := time.Now()
	defer func() {
		report.OrNop(r.Reporter).StageFinished(StageName, datasetID, time.Since(start), err)
	}()

	doc, err = r.Resolve(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if err := r.Store.Put(ctx, docstore.StageMappings, docstore.MappingName(datasetID), doc); err != nil {
		return nil, fmt.Errorf("saving mapping for %s: %w", datasetID, err)
	}
	return doc, nil
}
