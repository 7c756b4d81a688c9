package auth

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/corvidae/gatehouse/pkg/logger"
)

// Filter is one configured authentication filter: a pattern-matching rule
// that derives a client DN from an arbitrary request parameter. Filters let
// deployments authenticate clients that present neither client_secret nor an
// assertion, trusting the parameter match itself.
type Filter struct {
	// Param is the request parameter the filter inspects.
	Param string

	// Pattern must match the whole parameter value. The first capture group,
	// if any, is substituted into DNTemplate; otherwise the full value is.
	Pattern *regexp.Regexp

	// DNTemplate is the client DN with a "{}" placeholder for the matched value.
	DNTemplate string
}

// Apply evaluates the filter against the request parameters and returns the
// derived client DN on a match.
func (f *Filter) Apply(params url.Values) (string, bool) {
	value := params.Get(f.Param)
	if value == "" {
		return "", false
	}
	m := f.Pattern.FindStringSubmatch(value)
	if m == nil || m[0] != value {
		return "", false
	}
	matched := m[0]
	if len(m) > 1 {
		matched = m[1]
	}
	return strings.ReplaceAll(f.DNTemplate, "{}", matched), true
}

// FilterChain runs configured filters in order; the first match wins.
type FilterChain struct {
	filters []Filter
}

// NewFilterChain creates a chain over the given filters. A nil or empty
// chain never matches.
func NewFilterChain(filters []Filter) *FilterChain {
	return &FilterChain{filters: filters}
}

// Enabled reports whether any filters are configured.
func (c *FilterChain) Enabled() bool {
	return c != nil && len(c.filters) > 0
}

// Derive runs the chain over all request parameters and returns the first
// derived client DN.
func (c *FilterChain) Derive(params url.Values) (string, bool) {
	if !c.Enabled() {
		return "", false
	}
	for i := range c.filters {
		if dn, ok := c.filters[i].Apply(params); ok {
			logger.Debugw("authentication filter matched",
				"param", c.filters[i].Param,
				"dn", dn,
			)
			return dn, true
		}
	}
	return "", false
}
