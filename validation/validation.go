// Package validation collects per-field violations for request input.
package validation

import (
	"strconv"
	"strings"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func RangeInt(field string, val, minVal, maxVal int, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "not_allowed"
}

// OptionalInt parses a query parameter. An empty raw value yields def.
// A value that is not an integer is recorded as a violation and def is returned.
func OptionalInt(field, raw string, def int, v Violations) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v[field] = "not_an_integer"
		return def
	}
	return n
}
