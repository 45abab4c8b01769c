// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sdmx

import "fmt"

// RemoteFetchError reports a transport failure, a non-success status, or a
// body that could not be read as an SDMX envelope. It is fatal to the call
// and never retried by the stages.
type RemoteFetchError struct {
	URL string

	// StatusCode is zero when no response was received.
	StatusCode int

	Err error
}

func (e *RemoteFetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetching %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// StructureParseError reports an expected structural element missing from
// an otherwise well-formed response.
type StructureParseError struct {
	// Element names what was missing (e.g. "common:Structure/Ref").
	Element string

	// Context locates the element (e.g. "dimension FREQ", a URL).
	Context string
}

func (e *StructureParseError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("structure parse: %s not found", e.Element)
	}
	return fmt.Sprintf("structure parse: %s not found in %s", e.Element, e.Context)
}

// IntegrityError reports a cross-document consistency violation, such as a
// constraints document built for a different dataset than the one being
// processed. It is always fatal.
type IntegrityError struct {
	Expected string
	Actual   string
	Detail   string
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("integrity: expected dataset %q but document declares %q", e.Expected, e.Actual)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}
