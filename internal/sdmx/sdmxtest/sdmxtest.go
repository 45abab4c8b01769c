// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sdmxtest serves canned SDMX-ML 2.1 messages from an httptest
// server so stages can be tested without the live ISTAT service.
package sdmxtest

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/pdiddy/istat-engine/pkg/types"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

const namespaces = `xmlns:message="http://www.sdmx.org/resources/sdmxml/schemas/v2_1/message" ` +
	`xmlns:structure="http://www.sdmx.org/resources/sdmxml/schemas/v2_1/structure" ` +
	`xmlns:common="http://www.sdmx.org/resources/sdmxml/schemas/v2_1/common" ` +
	`xmlns:generic="http://www.sdmx.org/resources/sdmxml/schemas/v2_1/data/generic"`

type response struct {
	status int
	body   string
}

// Server is an httptest server answering GETs by exact path. Unknown paths
// get 404.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]response
	hits   map[string]int
}

// NewServer starts a Server closed by t.Cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{routes: map[string]response{}, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	resp, ok := s.routes[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(resp.status)
	fmt.Fprint(w, resp.body)
}

// Handle registers body for path with status 200.
func (s *Server) Handle(path, body string) {
	s.HandleStatus(path, http.StatusOK, body)
}

// HandleStatus registers body for path with the given status.
func (s *Server) HandleStatus(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = response{status: status, body: body}
}

// Hits returns how many requests path has received.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests received on any path.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

// SDMXConfig returns an SDMX configuration pointing at the server.
func (s *Server) SDMXConfig() types.SDMXConfig {
	return types.SDMXConfig{BaseURL: s.URL}
}

// KeyValue is one (dimension, code) pair of a series key.
type KeyValue struct {
	ID    string
	Value string
}

// Obs is one observation. Empty fields omit the corresponding element.
type Obs struct {
	Time  string
	Value string
}

// Series is one generic:Series.
type Series struct {
	Key []KeyValue
	Obs []Obs
}

// Data renders a generic data message whose header references ref.
func Data(ref types.StructureRef, series ...Series) string {
	var b strings.Builder
	b.WriteString(header)
	fmt.Fprintf(&b, "<message:GenericData %s>\n", namespaces)
	b.WriteString("<message:Header><message:ID>IREF000001</message:ID>")
	fmt.Fprintf(&b, `<message:Structure structureID="%s" dimensionAtObservation="TIME_PERIOD">`, esc(ref.ID))
	fmt.Fprintf(&b, `<common:Structure><Ref agencyID="%s" id="%s" version="%s"/></common:Structure>`,
		esc(ref.AgencyID), esc(ref.ID), esc(ref.Version))
	b.WriteString("</message:Structure></message:Header>\n<message:DataSet>\n")
	for _, s := range series {
		b.WriteString("<generic:Series><generic:SeriesKey>")
		for _, kv := range s.Key {
			fmt.Fprintf(&b, `<generic:Value id="%s" value="%s"/>`, esc(kv.ID), esc(kv.Value))
		}
		b.WriteString("</generic:SeriesKey>")
		for _, o := range s.Obs {
			b.WriteString("<generic:Obs>")
			if o.Time != "" {
				fmt.Fprintf(&b, `<generic:ObsDimension value="%s"/>`, esc(o.Time))
			}
			if o.Value != "" {
				fmt.Fprintf(&b, `<generic:ObsValue value="%s"/>`, esc(o.Value))
			}
			b.WriteString("</generic:Obs>")
		}
		b.WriteString("</generic:Series>\n")
	}
	b.WriteString("</message:DataSet>\n</message:GenericData>\n")
	return b.String()
}

// Dim is one dimension of a data structure. A nil Codelist renders a
// dimension without an Enumeration.
type Dim struct {
	ID       string
	Codelist *types.CodelistReference
}

// DataStructure renders a structure message holding one DataStructure.
func DataStructure(ref types.StructureRef, dims ...Dim) string {
	var b strings.Builder
	openStructure(&b)
	fmt.Fprintf(&b, `<structure:DataStructures><structure:DataStructure id="%s" agencyID="%s" version="%s">`,
		esc(ref.ID), esc(ref.AgencyID), esc(ref.Version))
	b.WriteString("<structure:DataStructureComponents><structure:DimensionList>")
	for _, d := range dims {
		fmt.Fprintf(&b, `<structure:Dimension id="%s">`, esc(d.ID))
		if d.Codelist != nil {
			fmt.Fprintf(&b, `<structure:LocalRepresentation><structure:Enumeration><Ref%s%s%s class="Codelist"/></structure:Enumeration></structure:LocalRepresentation>`,
				attr("agencyID", d.Codelist.AgencyID), attr("id", d.Codelist.ID), attr("version", d.Codelist.Version))
		}
		b.WriteString("</structure:Dimension>")
	}
	b.WriteString(`<structure:TimeDimension id="TIME_PERIOD"/>`)
	b.WriteString("</structure:DimensionList></structure:DataStructureComponents>")
	b.WriteString("</structure:DataStructure></structure:DataStructures>")
	closeStructure(&b)
	return b.String()
}

// Code is one codelist entry. Map keys are language tags; "" renders text
// without xml:lang.
type Code struct {
	ID           string
	Names        map[string]string
	Descriptions map[string]string
}

// Codelist renders a structure message holding one Codelist.
func Codelist(ref types.CodelistReference, names map[string]string, codes ...Code) string {
	var b strings.Builder
	openStructure(&b)
	fmt.Fprintf(&b, `<structure:Codelists><structure:Codelist id="%s" agencyID="%s" version="%s">`,
		esc(ref.ID), esc(ref.AgencyID), esc(ref.Version))
	writeText(&b, "common:Name", names)
	for _, c := range codes {
		fmt.Fprintf(&b, "<structure:Code%s>", attr("id", c.ID))
		writeText(&b, "common:Name", c.Names)
		writeText(&b, "common:Description", c.Descriptions)
		b.WriteString("</structure:Code>")
	}
	b.WriteString("</structure:Codelist></structure:Codelists>")
	closeStructure(&b)
	return b.String()
}

// Dataflow renders a structure message holding one Dataflow. A nil
// structure omits the structure reference.
func Dataflow(id string, names map[string]string, structure *types.StructureRef) string {
	return Dataflows(Flow{ID: id, Names: names, Structure: structure})
}

// Flow is one Dataflow element of a Dataflows response.
type Flow struct {
	ID        string
	Names     map[string]string
	Structure *types.StructureRef
}

// Dataflows renders a structure response carrying every flow in order.
func Dataflows(flows ...Flow) string {
	var b strings.Builder
	openStructure(&b)
	b.WriteString("<structure:Dataflows>")
	for _, f := range flows {
		fmt.Fprintf(&b, `<structure:Dataflow id="%s" agencyID="IT1" version="1.0">`, esc(f.ID))
		writeText(&b, "common:Name", f.Names)
		if f.Structure != nil {
			fmt.Fprintf(&b, `<structure:Structure><Ref agencyID="%s" id="%s" version="%s" class="DataStructure"/></structure:Structure>`,
				esc(f.Structure.AgencyID), esc(f.Structure.ID), esc(f.Structure.Version))
		}
		b.WriteString("</structure:Dataflow>")
	}
	b.WriteString("</structure:Dataflows>")
	closeStructure(&b)
	return b.String()
}

// Region is one KeyValue of a CubeRegion.
type Region struct {
	ID     string
	Values []string
}

// Constraint renders an availability response with one CubeRegion.
func Constraint(id string, regions ...Region) string {
	var b strings.Builder
	openStructure(&b)
	fmt.Fprintf(&b, `<structure:Constraints><structure:ContentConstraint id="CC_%s" agencyID="IT1" version="1.0" type="Actual">`, esc(id))
	b.WriteString(`<structure:CubeRegion include="true">`)
	for _, r := range regions {
		fmt.Fprintf(&b, `<common:KeyValue id="%s">`, esc(r.ID))
		for _, v := range r.Values {
			fmt.Fprintf(&b, "<common:Value>%s</common:Value>", esc(v))
		}
		b.WriteString("</common:KeyValue>")
	}
	b.WriteString("</structure:CubeRegion></structure:ContentConstraint></structure:Constraints>")
	closeStructure(&b)
	return b.String()
}

// EmptyStructure renders a well-formed structure message with no
// artefacts.
func EmptyStructure() string {
	var b strings.Builder
	openStructure(&b)
	closeStructure(&b)
	return b.String()
}

func openStructure(b *strings.Builder) {
	b.WriteString(header)
	fmt.Fprintf(b, "<message:Structure %s>\n", namespaces)
	b.WriteString("<message:Header><message:ID>IDREF0001</message:ID></message:Header>\n<message:Structures>")
}

func closeStructure(b *strings.Builder) {
	b.WriteString("</message:Structures>\n</message:Structure>\n")
}

func writeText(b *strings.Builder, elem string, texts map[string]string) {
	langs := make([]string, 0, len(texts))
	for lang := range texts {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		fmt.Fprintf(b, "<%s%s>%s</%s>", elem, attr("xml:lang", lang), esc(texts[lang]), elem)
	}
}

// attr renders name="value", or nothing when value is empty.
func attr(name, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf(` %s="%s"`, name, esc(value))
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
