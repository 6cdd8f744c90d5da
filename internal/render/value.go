// Package render resolves a template against a merged value set into a
// fully rendered document. Rendering is a pure function of its inputs.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ktimacloud/report-engine/internal/template"
)

// Source identifies where a bound value came from. Higher values take
// precedence when the same variable name is bound from several sources.
type Source int

const (
	SourceComputed Source = iota
	SourceGeo
	SourcePDF
	SourceUser
)

// String returns a string representation of the Source
func (s Source) String() string {
	switch s {
	case SourceComputed:
		return "computed"
	case SourceGeo:
		return "geo-extraction"
	case SourcePDF:
		return "pdf-extraction"
	case SourceUser:
		return "user"
	default:
		return "unknown"
	}
}

// Value is the closed set of typed values a variable can bind to.
type Value interface {
	isValue()
}

// StringValue is a verbatim text value.
type StringValue struct {
	Val string
}

// NumberValue is a numeric value. Raw, when non-empty, preserves the source's
// significant digits and is rendered in preference to a re-formatted float.
type NumberValue struct {
	Raw string
	Val float64
}

// DateValue is a calendar date.
type DateValue struct {
	Val time.Time
}

// CurrencyValue is a plain decimal monetary amount; the currency symbol is
// the surrounding literal text's responsibility.
type CurrencyValue struct {
	Raw string
	Val float64
}

// ImageAssetRef binds an image asset to an image-typed variable. Extent, when
// non-nil, overrides the extent recorded at import.
type ImageAssetRef struct {
	AssetPath string
	Extent    *template.Extent
}

func (StringValue) isValue()   {}
func (NumberValue) isValue()   {}
func (DateValue) isValue()     {}
func (CurrencyValue) isValue() {}
func (ImageAssetRef) isValue() {}

type taggedValue struct {
	value  Value
	source Source
}

// ValueSet is the ephemeral, fill-time mapping from variable name to typed
// value, tagged with provenance. It is consumed by one render and discarded.
type ValueSet struct {
	values    map[string]taggedValue
	phrasings map[string]int // group ID -> selected alternate phrasing
}

// NewValueSet returns an empty value set.
func NewValueSet() *ValueSet {
	return &ValueSet{
		values:    make(map[string]taggedValue),
		phrasings: make(map[string]int),
	}
}

// clone returns an independent copy of the value set.
func (vs *ValueSet) clone() *ValueSet {
	out := NewValueSet()
	for name, tv := range vs.values {
		out.values[name] = tv
	}
	for group, idx := range vs.phrasings {
		out.phrasings[group] = idx
	}
	return out
}

// Set binds a value for a variable name. A binding only replaces an existing
// one when its source has equal or higher precedence.
func (vs *ValueSet) Set(name string, v Value, src Source) {
	if existing, ok := vs.values[name]; ok && existing.source > src {
		return
	}
	vs.values[name] = taggedValue{value: v, source: src}
}

// Get returns the bound value for a name.
func (vs *ValueSet) Get(name string) (Value, bool) {
	tagged, ok := vs.values[name]
	if !ok {
		return nil, false
	}
	return tagged.value, true
}

// SourceOf returns the provenance of a bound value.
func (vs *ValueSet) SourceOf(name string) (Source, bool) {
	tagged, ok := vs.values[name]
	return tagged.source, ok
}

// SelectPhrasing chooses an alternate text template for a variable group.
func (vs *ValueSet) SelectPhrasing(groupID string, index int) {
	vs.phrasings[groupID] = index
}

// phrasing returns the selected alternate index for a group.
func (vs *ValueSet) phrasing(groupID string) (int, bool) {
	idx, ok := vs.phrasings[groupID]
	return idx, ok
}

// numeric coerces a value to float64 for expression evaluation.
func numeric(v Value) (float64, error) {
	switch val := v.(type) {
	case NumberValue:
		return val.Val, nil
	case CurrencyValue:
		return val.Val, nil
	case StringValue:
		f, err := strconv.ParseFloat(strings.TrimSpace(val.Val), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", val.Val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value is not numeric")
	}
}
