// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sdmx reads the ISTAT SDMX REST service: dataflows, data structure
// definitions, codelists, available-constraint regions, and generic data
// messages. Every call is a single GET with a bounded timeout; failures are
// reported as *RemoteFetchError and missing structural elements as
// *StructureParseError.
package sdmx

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/istat-engine/internal/httputil"
	"github.com/pdiddy/istat-engine/internal/report"
	"github.com/pdiddy/istat-engine/pkg/types"
)

// Defaults for SDMXConfig fields left empty.
const (
	DefaultBaseURL         = "https://sdmx.istat.it/SDMXWS/rest"
	DefaultDataflowAgency  = "IT1"
	DefaultCodelistVersion = "1.0"
	DefaultTimeout         = 30 * time.Second
	DefaultUserAgent       = "istat-engine/0.1"
)

// WithDefaults fills empty fields of cfg with the package defaults.
func WithDefaults(cfg types.SDMXConfig) types.SDMXConfig {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DataflowAgency == "" {
		cfg.DataflowAgency = DefaultDataflowAgency
	}
	if cfg.DefaultCodelistVersion == "" {
		cfg.DefaultCodelistVersion = DefaultCodelistVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return cfg
}

// Client issues SDMX REST calls one at a time.
type Client struct {
	HTTP     *http.Client
	Config   types.SDMXConfig
	Reporter report.Reporter
}

// NewClient returns a Client whose HTTP client enforces cfg.Timeout.
func NewClient(cfg types.SDMXConfig, rep report.Reporter) *Client {
	cfg = WithDefaults(cfg)
	return &Client{
		HTTP:     &http.Client{Timeout: cfg.Timeout},
		Config:   cfg,
		Reporter: report.OrNop(rep),
	}
}

// endpoint builds {base}/{parts...} with each part path-escaped.
func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.TrimRight(c.Config.BaseURL, "/") + "/" + strings.Join(escaped, "/")
}

// get fetches u and hands the body to fn. Transport errors, non-200
// statuses, and malformed XML become *RemoteFetchError; errors returned by
// fn otherwise pass through unchanged.
func (c *Client) get(ctx context.Context, u string, fn func(io.Reader) error) error {
	start := time.Now()
	status, err := c.do(ctx, u, fn)
	report.OrNop(c.Reporter).FetchFinished(u, status, time.Since(start), err)
	return err
}

func (c *Client) do(ctx context.Context, u string, fn func(io.Reader) error) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, &RemoteFetchError{URL: u, Err: err}
	}
	req.Header.Set("User-Agent", c.Config.UserAgent)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, c.Config.RateLimitRetries)
	if err != nil {
		return 0, &RemoteFetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, &RemoteFetchError{URL: u, StatusCode: resp.StatusCode}
	}

	if err := fn(resp.Body); err != nil {
		var mal *malformedError
		if errors.As(err, &mal) {
			return resp.StatusCode, &RemoteFetchError{URL: u, Err: mal}
		}
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

type commonStructure struct {
	Ref *ref `xml:"Ref"`
}

// DataStructureRef fetches the dataset's data envelope only to read the
// structure reference embedded in its header; the service exposes no
// cheaper call that returns it. Reading stops at the reference.
func (c *Client) DataStructureRef(ctx context.Context, datasetID string) (types.StructureRef, error) {
	u := c.endpoint("data", datasetID)

	var found *ref
	err := c.get(ctx, u, func(body io.Reader) error {
		return scan(body, map[xml.Name]elementHandler{
			{Space: nsMessage, Local: "Structure"}: decodeInto(func(h *headerStructure) error {
				if h.Structure != nil && h.Structure.Ref != nil {
					found = h.Structure.Ref
					return errStopScan
				}
				return nil
			}),
			{Space: nsCommon, Local: "Structure"}: decodeInto(func(s *commonStructure) error {
				if s.Ref != nil {
					found = s.Ref
					return errStopScan
				}
				return nil
			}),
		})
	})
	if err != nil {
		return types.StructureRef{}, err
	}
	if found == nil {
		return types.StructureRef{}, &StructureParseError{Element: "common:Structure/Ref", Context: u}
	}
	return types.StructureRef{AgencyID: found.AgencyID, ID: found.ID, Version: found.Version}, nil
}

// Dimensions fetches the data structure definition for sref and returns its
// dimensions in declaration order. The time dimension is not included.
func (c *Client) Dimensions(ctx context.Context, sref types.StructureRef) ([]Dimension, error) {
	u := c.endpoint("datastructure", sref.AgencyID, sref.ID)

	var dsd *dataStructureElem
	err := c.get(ctx, u, func(body io.Reader) error {
		return scan(body, map[xml.Name]elementHandler{
			{Space: nsStructure, Local: "DataStructure"}: decodeInto(func(d *dataStructureElem) error {
				if dsd == nil || (dsd.ID != sref.ID && d.ID == sref.ID) {
					dsd = d
				}
				if d.ID == sref.ID {
					return errStopScan
				}
				return nil
			}),
		})
	})
	if err != nil {
		return nil, err
	}
	if dsd == nil {
		return nil, &StructureParseError{Element: "structure:DataStructure", Context: u}
	}

	dims := make([]Dimension, 0, len(dsd.Dimensions))
	for _, d := range dsd.Dimensions {
		dim := Dimension{ID: d.ID}
		if d.Enumeration != nil {
			dim.Enumeration = &types.CodelistReference{}
			if r := d.Enumeration.Ref; r != nil {
				*dim.Enumeration = types.CodelistReference{AgencyID: r.AgencyID, ID: r.ID, Version: r.Version}
			}
		}
		dims = append(dims, dim)
	}
	return dims, nil
}

// Codelist fetches the codelist cref points to. Codes keep response order;
// a code without an id is returned with an empty ID for the caller to judge.
func (c *Client) Codelist(ctx context.Context, cref types.CodelistReference) (*Codelist, error) {
	u := c.endpoint("codelist", cref.AgencyID, cref.ID)

	var cl *codelistElem
	err := c.get(ctx, u, func(body io.Reader) error {
		return scan(body, map[xml.Name]elementHandler{
			{Space: nsStructure, Local: "Codelist"}: decodeInto(func(e *codelistElem) error {
				if cl == nil || (cl.ID != cref.ID && e.ID == cref.ID) {
					cl = e
				}
				if e.ID == cref.ID {
					return errStopScan
				}
				return nil
			}),
		})
	})
	if err != nil {
		return nil, err
	}
	if cl == nil {
		return nil, &StructureParseError{Element: "structure:Codelist", Context: u}
	}

	out := &Codelist{
		Ref:         cref,
		Name:        labels(cl.Names),
		Description: labels(cl.Descriptions),
		Codes:       make([]Code, 0, len(cl.Codes)),
	}
	for _, code := range cl.Codes {
		out.Codes = append(out.Codes, Code{
			ID:          code.ID,
			Name:        labels(code.Names),
			Description: labels(code.Descriptions),
		})
	}
	return out, nil
}

// Dataflow fetches the dataflow metadata for datasetID, preferring the
// Dataflow whose id matches and falling back to the first. It returns nil
// and no error when the response carries no Dataflow element.
func (c *Client) Dataflow(ctx context.Context, datasetID string) (*Dataflow, error) {
	u := c.endpoint("dataflow", c.Config.DataflowAgency, datasetID)

	var df *dataflowElem
	err := c.get(ctx, u, func(body io.Reader) error {
		return scan(body, map[xml.Name]elementHandler{
			{Space: nsStructure, Local: "Dataflow"}: decodeInto(func(e *dataflowElem) error {
				if df == nil || (df.ID != datasetID && e.ID == datasetID) {
					df = e
				}
				if e.ID == datasetID {
					return errStopScan
				}
				return nil
			}),
		})
	})
	if err != nil || df == nil {
		return nil, err
	}

	out := &Dataflow{ID: df.ID, Names: labels(df.Names)}
	if df.Structure != nil && df.Structure.Ref != nil {
		r := df.Structure.Ref
		out.Structure = &types.StructureRef{AgencyID: r.AgencyID, ID: r.ID, Version: r.Version}
	}
	return out, nil
}

// AvailableConstraint fetches the populated region of datasetID. It returns
// nil and no error when the response carries no CubeRegion.
func (c *Client) AvailableConstraint(ctx context.Context, datasetID string) (*CubeRegion, error) {
	u := c.endpoint("availableconstraint", datasetID)

	var region *cubeRegionElem
	err := c.get(ctx, u, func(body io.Reader) error {
		return scan(body, map[xml.Name]elementHandler{
			{Space: nsStructure, Local: "CubeRegion"}: decodeInto(func(e *cubeRegionElem) error {
				region = e
				return errStopScan
			}),
		})
	})
	if err != nil || region == nil {
		return nil, err
	}

	out := &CubeRegion{KeyValues: make([]KeyValue, 0, len(region.KeyValues))}
	for _, kv := range region.KeyValues {
		if kv.ID == "" {
			continue
		}
		values := make([]string, 0, len(kv.Values))
		for _, v := range kv.Values {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		out.KeyValues = append(out.KeyValues, KeyValue{ID: kv.ID, Values: values})
	}
	return out, nil
}

// Series streams every generic:Series of datasetID to fn in document order.
// An error from fn aborts the stream and is returned as is.
func (c *Client) Series(ctx context.Context, datasetID string, fn func(RawSeries) error) error {
	u := c.endpoint("data", datasetID)

	obsDim := DefaultObsDimension
	return c.get(ctx, u, func(body io.Reader) error {
		return scan(body, map[xml.Name]elementHandler{
			{Space: nsMessage, Local: "Structure"}: decodeInto(func(h *headerStructure) error {
				if h.DimensionAtObservation != "" && h.DimensionAtObservation != "AllDimensions" {
					obsDim = h.DimensionAtObservation
				}
				return nil
			}),
			{Space: nsGeneric, Local: "Series"}: decodeInto(func(s *seriesElem) error {
				return fn(toRawSeries(s, obsDim))
			}),
		})
	})
}
