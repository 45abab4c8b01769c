// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the istat-engine pipeline:
// the Mapping Document produced by the codelist stage, the Constraints
// Document produced by the constraint stage, and the Series Records emitted
// by the extraction stage.
package types

import "time"

// DefaultLang is the label key used when the service returns text without an
// xml:lang tag, and for labels synthesized from a raw code.
const DefaultLang = "default"

// Labels maps a language tag (e.g. "en", "it") to text.
type Labels map[string]string

// labelPreference is the order in which languages are tried by Preferred.
var labelPreference = []string{"en", "it", DefaultLang}

// Preferred returns the English text, falling back to Italian and then to
// the default entry. Empty texts are skipped.
func (l Labels) Preferred() (string, bool) {
	for _, lang := range labelPreference {
		if s := l[lang]; s != "" {
			return s, true
		}
	}
	return "", false
}

// StructureRef points to the data structure definition governing a dataset.
type StructureRef struct {
	AgencyID string `json:"agency_id" yaml:"agency_id"`
	ID       string `json:"id" yaml:"id"`
	Version  string `json:"version" yaml:"version"`
}

// IsZero reports whether no field of the reference is set.
func (r StructureRef) IsZero() bool {
	return r.AgencyID == "" && r.ID == "" && r.Version == ""
}

// DatasetIdentity identifies a dataset and the structure that governs it.
type DatasetIdentity struct {
	// ID is the dataflow identifier (e.g. "111_111").
	ID string `json:"id" yaml:"id"`

	// Names holds the dataflow name per language.
	Names Labels `json:"names" yaml:"names"`

	// StructureReference is empty when the dataflow response carried none.
	StructureReference StructureRef `json:"structure_reference" yaml:"structure_reference"`
}

// CodelistReference points to a remote enumerable code list for one dimension.
type CodelistReference struct {
	AgencyID string `json:"agency_id" yaml:"agency_id"`
	ID       string `json:"id" yaml:"id"`
	Version  string `json:"version" yaml:"version"`
}

// CodeValue is one admissible value of a dimension.
type CodeValue struct {
	Code        string `json:"code" yaml:"code"`
	Name        Labels `json:"name" yaml:"name"`
	Description Labels `json:"description" yaml:"description"`
}

// CodelistInfo is a codelist reference plus the codelist's own labels.
type CodelistInfo struct {
	CodelistReference `yaml:",inline"`

	Name        Labels `json:"name" yaml:"name"`
	Description Labels `json:"description" yaml:"description"`
}

// MappingDimension holds the full code universe of one dimension.
type MappingDimension struct {
	Codelist CodelistInfo         `json:"codelist" yaml:"codelist"`
	Values   map[string]CodeValue `json:"values" yaml:"values"`
}

// MappingDocument is the output of the codelist mapping stage. A dimension
// is present if and only if its codelist reference was resolvable.
type MappingDocument struct {
	DatasetID   string                      `json:"dataset_id" yaml:"dataset_id"`
	GeneratedAt time.Time                   `json:"generated_at" yaml:"generated_at"`
	Structure   StructureRef                `json:"structure" yaml:"structure"`
	Dimensions  map[string]MappingDimension `json:"dimensions" yaml:"dimensions"`
}

// NameLabels returns the name labels for code in dimension dim, or nil
// when the mapping does not know the pair.
func (m *MappingDocument) NameLabels(dim, code string) Labels {
	if m == nil {
		return nil
	}
	d, ok := m.Dimensions[dim]
	if !ok {
		return nil
	}
	v, ok := d.Values[code]
	if !ok || len(v.Name) == 0 {
		return nil
	}
	return v.Name
}

// ConstraintValue is the label set of one populated code.
type ConstraintValue struct {
	Name Labels `json:"name" yaml:"name"`
}

// ConstraintDimension lists the codes actually populated for a dimension.
type ConstraintDimension struct {
	ID     string                     `json:"id" yaml:"id"`
	Values map[string]ConstraintValue `json:"values" yaml:"values"`
}

// ConstraintsDocument narrows a MappingDocument to the codes observed for
// one dataset. DatasetInfo.ID must equal the dataset it was built for.
type ConstraintsDocument struct {
	DatasetInfo DatasetIdentity                `json:"dataset_info" yaml:"dataset_info"`
	GeneratedAt time.Time                      `json:"generated_at" yaml:"generated_at"`
	Dimensions  map[string]ConstraintDimension `json:"dimensions" yaml:"dimensions"`
}

// Label returns a human-readable label for code in dimension dim. It never
// fails: English is preferred, then Italian, then the default entry, and
// finally the code itself. The boolean reports whether a label was found
// in the document rather than synthesized from the code.
func (c *ConstraintsDocument) Label(dim, code string) (string, bool) {
	if c == nil {
		return code, false
	}
	d, ok := c.Dimensions[dim]
	if !ok {
		return code, false
	}
	v, ok := d.Values[code]
	if !ok {
		return code, false
	}
	if s, ok := v.Name.Preferred(); ok {
		return s, true
	}
	return code, false
}
