package core

import (
	"sort"
	"strings"
)

// ValidationErrors maps a field name to the message describing what is wrong
// with it. The zero value is ready to use once made with a literal.
type ValidationErrors map[string]string

// Add records msg for field. The first message for a field wins.
func (v ValidationErrors) Add(field, msg string) {
	if _, exists := v[field]; exists {
		return
	}
	v[field] = msg
}

func (v ValidationErrors) Has(field string) bool {
	_, ok := v[field]
	return ok
}

// Err returns v as an error, or nil when no field failed.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Fields returns the failing field names, sorted.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, f := range v.Fields() {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
