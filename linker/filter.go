package linker

import (
	"regexp"

	"github.com/wippyai/wasm-trampoline/errors"
)

// ImportRule is a filter decision.
type ImportRule uint8

const (
	// Include mediates the import through the linker.
	Include ImportRule = iota
	// Skip leaves the import slot unbound. Calling it traps.
	Skip
)

func (r ImportRule) String() string {
	if r == Skip {
		return "skip"
	}
	return "include"
}

// ImportFilter decides whether an import is mediated.
type ImportFilter interface {
	Rule(req ImportRequest) ImportRule
}

// FilterFunc adapts a function to ImportFilter.
type FilterFunc func(req ImportRequest) ImportRule

// Rule implements ImportFilter.
func (f FilterFunc) Rule(req ImportRequest) ImportRule {
	return f(req)
}

// RegexFilter applies Match to imports whose "namespace#name" matches the
// pattern and Include otherwise.
type RegexFilter struct {
	re    *regexp.Regexp
	Match ImportRule
}

// NewRegexFilter compiles pattern.
func NewRegexFilter(pattern string, match ImportRule) (*RegexFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(pattern).
			Detail("invalid import filter pattern").
			Cause(err).
			Build()
	}
	return &RegexFilter{re: re, Match: match}, nil
}

// Rule implements ImportFilter.
func (f *RegexFilter) Rule(req ImportRequest) ImportRule {
	if f.re.MatchString(req.Namespace + "#" + req.Name) {
		return f.Match
	}
	return Include
}

// Filters applies each filter in order; the first non-Include rule wins.
type Filters []ImportFilter

// Rule implements ImportFilter.
func (fs Filters) Rule(req ImportRequest) ImportRule {
	for _, f := range fs {
		if r := f.Rule(req); r != Include {
			return r
		}
	}
	return Include
}
