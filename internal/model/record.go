package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFieldMissing is returned when a record has no field with the requested name.
var ErrFieldMissing = errors.New("field missing")

// Record is one row returned by a rule query. Its schema is only known at run time.
type Record map[string]interface{}

// Lookup finds a field by exact name, then case-insensitively.
func (r Record) Lookup(name string) (interface{}, bool) {
	if v, ok := r[name]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// Field is Lookup with an explicit error for absent fields.
func (r Record) Field(name string) (interface{}, error) {
	v, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldMissing, name)
	}
	return v, nil
}
