// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sdmx

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/language"

	"github.com/pdiddy/istat-engine/pkg/types"
)

// SDMX-ML 2.1 namespaces.
const (
	nsMessage   = "http://www.sdmx.org/resources/sdmxml/schemas/v2_1/message"
	nsStructure = "http://www.sdmx.org/resources/sdmxml/schemas/v2_1/structure"
	nsCommon    = "http://www.sdmx.org/resources/sdmxml/schemas/v2_1/common"
	nsGeneric   = "http://www.sdmx.org/resources/sdmxml/schemas/v2_1/data/generic"
)

// DefaultObsDimension is the observation-level dimension when the data
// header does not declare one.
const DefaultObsDimension = "TIME_PERIOD"

// errStopScan ends a scan early without reporting an error.
var errStopScan = errors.New("stop scan")

// malformedError marks a body that is not well-formed XML.
type malformedError struct{ err error }

func (e *malformedError) Error() string { return "malformed XML: " + e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

// elementHandler decodes one matched element from d.
type elementHandler func(d *xml.Decoder, start *xml.StartElement) error

// scan walks r and invokes the handler registered for every element whose
// (namespace, local name) matches, wherever it appears in the document.
// Matched elements are consumed by their handler; nested matches inside a
// consumed element are not visited.
func scan(r io.Reader, handlers map[xml.Name]elementHandler) error {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &malformedError{err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		h, ok := handlers[start.Name]
		if !ok {
			continue
		}
		if err := h(d, &start); err != nil {
			if errors.Is(err, errStopScan) {
				return nil
			}
			return err
		}
	}
}

// decodeInto returns a handler that decodes the element into a fresh T and
// passes it to fn.
func decodeInto[T any](fn func(*T) error) elementHandler {
	return func(d *xml.Decoder, start *xml.StartElement) error {
		var v T
		if err := d.DecodeElement(&v, start); err != nil {
			return &malformedError{err}
		}
		return fn(&v)
	}
}

// ref is an SDMX <Ref> to a maintainable artefact.
type ref struct {
	AgencyID string `xml:"agencyID,attr"`
	ID       string `xml:"id,attr"`
	Version  string `xml:"version,attr"`
}

// langText is a localized text element such as common:Name.
type langText struct {
	Lang string `xml:"lang,attr"`
	Text string `xml:",chardata"`
}

// labels converts localized text elements into a Labels map. Untagged text
// is stored under types.DefaultLang; empty text is dropped; language tags
// are canonicalized so "EN" and "en" share a key.
func labels(texts []langText) types.Labels {
	out := make(types.Labels, len(texts))
	for _, t := range texts {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		out[langKey(t.Lang)] = text
	}
	return out
}

func langKey(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return types.DefaultLang
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}
	return parsed.String()
}

// Data message header: message:Structure carries common:Structure/Ref.
type headerStructure struct {
	DimensionAtObservation string `xml:"dimensionAtObservation,attr"`
	Structure              *struct {
		Ref *ref `xml:"Ref"`
	} `xml:"Structure"`
}

// Structure message elements.
type dataStructureElem struct {
	ID         string          `xml:"id,attr"`
	AgencyID   string          `xml:"agencyID,attr"`
	Version    string          `xml:"version,attr"`
	Dimensions []dimensionElem `xml:"DataStructureComponents>DimensionList>Dimension"`
}

type dimensionElem struct {
	ID          string `xml:"id,attr"`
	Enumeration *struct {
		Ref *ref `xml:"Ref"`
	} `xml:"LocalRepresentation>Enumeration"`
}

type codelistElem struct {
	ID           string     `xml:"id,attr"`
	AgencyID     string     `xml:"agencyID,attr"`
	Version      string     `xml:"version,attr"`
	Names        []langText `xml:"Name"`
	Descriptions []langText `xml:"Description"`
	Codes        []codeElem `xml:"Code"`
}

type codeElem struct {
	ID           string     `xml:"id,attr"`
	Names        []langText `xml:"Name"`
	Descriptions []langText `xml:"Description"`
}

type dataflowElem struct {
	ID        string     `xml:"id,attr"`
	Names     []langText `xml:"Name"`
	Structure *struct {
		Ref *ref `xml:"Ref"`
	} `xml:"Structure"`
}

type cubeRegionElem struct {
	KeyValues []keyValueElem `xml:"KeyValue"`
}

type keyValueElem struct {
	ID     string   `xml:"id,attr"`
	Values []string `xml:"Value"`
}

// Generic data message elements.
type seriesElem struct {
	Key []componentValue `xml:"SeriesKey>Value"`
	Obs []obsElem        `xml:"Obs"`
}

type componentValue struct {
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
}

type obsElem struct {
	Dimension *componentValue `xml:"ObsDimension"`
	Value     *componentValue `xml:"ObsValue"`
}

// Dimension is one dimension of a data structure definition. Enumeration is
// nil when the dimension declares no codelist; otherwise it holds the
// reference exactly as written, possibly with empty fields.
type Dimension struct {
	ID          string
	Enumeration *types.CodelistReference
}

// Code is one codelist entry with its labels.
type Code struct {
	ID          string
	Name        types.Labels
	Description types.Labels
}

// Codelist is the content of one codelist.
type Codelist struct {
	Ref         types.CodelistReference
	Name        types.Labels
	Description types.Labels
	Codes       []Code
}

// Dataflow is the metadata of one dataflow.
type Dataflow struct {
	ID    string
	Names types.Labels

	// Structure is nil when the dataflow carries no structure reference.
	Structure *types.StructureRef
}

// KeyValue lists the populated codes of one dimension, in response order.
type KeyValue struct {
	ID     string
	Values []string
}

// CubeRegion is the populated region of a dataset.
type CubeRegion struct {
	KeyValues []KeyValue
}

// SeriesKeyValue is one raw (dimension, code) pair of a series key.
type SeriesKeyValue struct {
	ID    string
	Value string
}

// RawObservation is one observation as found on the wire. Empty fields
// mean the attribute was missing or empty.
type RawObservation struct {
	TimePeriod string
	Value      string
}

// RawSeries is one generic:Series element.
type RawSeries struct {
	Key          []SeriesKeyValue
	Observations []RawObservation
}

// toRawSeries converts a decoded series, taking the time period from the
// ObsDimension whose id is obsDim (or that carries no id).
func toRawSeries(s *seriesElem, obsDim string) RawSeries {
	out := RawSeries{
		Key:          make([]SeriesKeyValue, 0, len(s.Key)),
		Observations: make([]RawObservation, 0, len(s.Obs)),
	}
	for _, kv := range s.Key {
		out.Key = append(out.Key, SeriesKeyValue{ID: kv.ID, Value: kv.Value})
	}
	for _, o := range s.Obs {
		var obs RawObservation
		if o.Dimension != nil && (o.Dimension.ID == "" || o.Dimension.ID == obsDim) {
			obs.TimePeriod = strings.TrimSpace(o.Dimension.Value)
		}
		if o.Value != nil {
			obs.Value = o.Value.Value
		}
		out.Observations = append(out.Observations, obs)
	}
	return out
}
