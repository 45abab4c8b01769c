// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SeriesKeyValue is a dimension code together with its resolved label.
type SeriesKeyValue struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

// SeriesKeyEntry is one dimension of a SeriesKey.
type SeriesKeyEntry struct {
	Dimension string
	SeriesKeyValue
}

// SeriesKey is the ordered set of dimension values identifying a series.
// It serializes as a JSON object whose member order follows the slice.
type SeriesKey []SeriesKeyEntry

// Get returns the value for dimension dim.
func (k SeriesKey) Get(dim string) (SeriesKeyValue, bool) {
	for _, e := range k {
		if e.Dimension == dim {
			return e.SeriesKeyValue, true
		}
	}
	return SeriesKeyValue{}, false
}

// MarshalJSON writes the key as an object in slice order.
func (k SeriesKey) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range k {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(e.Dimension)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.SeriesKeyValue)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the key as a mapping. YAML output sorts the members.
func (k SeriesKey) MarshalYAML() (any, error) {
	m := make(map[string]SeriesKeyValue, len(k))
	for _, e := range k {
		m[e.Dimension] = e.SeriesKeyValue
	}
	return m, nil
}

// UnmarshalJSON reads an object, keeping member order.
func (k *SeriesKey) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*k = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("series key: expected object, got %v", tok)
	}
	var out SeriesKey
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		dim, ok := tok.(string)
		if !ok {
			return fmt.Errorf("series key: expected member name, got %v", tok)
		}
		var v SeriesKeyValue
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("series key %s: %w", dim, err)
		}
		out = append(out, SeriesKeyEntry{Dimension: dim, SeriesKeyValue: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*k = out
	return nil
}

// ObsValue is an observation value: numeric whenever the raw text parses as
// a finite number, otherwise the raw text itself (e.g. a statistical flag).
type ObsValue struct {
	num     float64
	text    string
	numeric bool
}

// ParseObsValue converts raw observation text into an ObsValue.
func ParseObsValue(raw string) ObsValue {
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return ObsValue{num: f, numeric: true}
	}
	return ObsValue{text: raw}
}

// NumberValue returns a numeric ObsValue.
func NumberValue(f float64) ObsValue { return ObsValue{num: f, numeric: true} }

// TextValue returns a textual ObsValue.
func TextValue(s string) ObsValue { return ObsValue{text: s} }

// Float returns the numeric value and whether the value is numeric.
func (v ObsValue) Float() (float64, bool) { return v.num, v.numeric }

// IsNumeric reports whether the value parsed as a number.
func (v ObsValue) IsNumeric() bool { return v.numeric }

// String returns the textual form of the value.
func (v ObsValue) String() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.text
}

// MarshalJSON writes a JSON number for numeric values, a string otherwise.
func (v ObsValue) MarshalJSON() ([]byte, error) {
	if v.numeric {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.text)
}

// MarshalYAML writes a YAML number for numeric values, a string otherwise.
func (v ObsValue) MarshalYAML() (any, error) {
	if v.numeric {
		return v.num, nil
	}
	return v.text, nil
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (v *ObsValue) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = NumberValue(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("observation value: %w", err)
	}
	*v = TextValue(s)
	return nil
}

// Observation is a single (time period, value) data point.
type Observation struct {
	TimePeriod string   `json:"time_period" yaml:"time_period"`
	Value      ObsValue `json:"value" yaml:"value"`
}

// SeriesDatasetInfo is a DatasetIdentity stamped with the generation time.
// GeneratedAt is not reproducible across runs and takes no part in equality.
type SeriesDatasetInfo struct {
	DatasetIdentity `yaml:",inline"`

	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}

// SeriesRecord is one extracted, labelled, normalized time series.
// Observations are sorted ascending by TimePeriod and never empty.
type SeriesRecord struct {
	DatasetInfo  SeriesDatasetInfo `json:"dataset_info" yaml:"dataset_info"`
	Metadata     SeriesKey         `json:"metadata" yaml:"metadata"`
	Observations []Observation     `json:"observations" yaml:"observations"`
}
