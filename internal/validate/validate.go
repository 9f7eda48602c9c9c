// Package validate implements the typed per-field input validation §9
// calls for in place of a JSON-schema library: tool input descriptors are
// a small Go struct (kind/required/enum/min/max/regex) walked by a single
// Validate function, not generated from or checked against a schema
// document. The descriptor shape is modeled on the teacher's
// SQLValidationConfig (a declarative struct of rules, §4 validator
// compiled once at registration time), generalized from "rules about one
// SQL string" to "rules about one named parameter."
package validate

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/neverinfamous/mysql-mcp-go/internal/dberrors"
)

// Kind is the primitive shape a Field's value must take.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindStringSlice
)

// Field describes one named tool-input parameter and the constraints its
// value must satisfy.
type Field struct {
	Name     string
	Kind     Kind
	Required bool

	// Enum, if non-empty, restricts a string value to this closed set.
	Enum []string
	// Min/Max bound a numeric value (inclusive); zero values mean
	// "unbounded" unless HasMin/HasMax is set.
	Min, Max       float64
	HasMin, HasMax bool
	// Pattern, if set, is matched against a string value in full.
	Pattern *regexp.Regexp
}

// Descriptor is the full set of Fields for one tool's input (§5 Tool
// Registry "typed input-validation descriptor").
type Descriptor []Field

// Validate checks args against d, returning the first violation as a
// dberrors.KindValidation error, or nil if every field is satisfied.
// Unknown keys in args are ignored — a descriptor only constrains the
// fields it names.
func Validate(d Descriptor, args map[string]interface{}) error {
	for _, f := range d {
		v, present := args[f.Name]
		if !present || v == nil {
			if f.Required {
				return fieldErr(f.Name, "is required")
			}
			continue
		}
		if err := validateOne(f, v); err != nil {
			return err
		}
	}
	return nil
}

func validateOne(f Field, v interface{}) error {
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return fieldErr(f.Name, "must be a string")
		}
		return validateString(f, s)
	case KindInt:
		n, ok := asFloat(v)
		if !ok {
			return fieldErr(f.Name, "must be an integer")
		}
		return validateNumber(f, n)
	case KindFloat:
		n, ok := asFloat(v)
		if !ok {
			return fieldErr(f.Name, "must be a number")
		}
		return validateNumber(f, n)
	case KindBool:
		if _, ok := v.(bool); !ok {
			return fieldErr(f.Name, "must be a boolean")
		}
		return nil
	case KindStringSlice:
		items, ok := v.([]interface{})
		if !ok {
			if _, ok := v.([]string); ok {
				return nil
			}
			return fieldErr(f.Name, "must be an array of strings")
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return fieldErr(f.Name, "must be an array of strings")
			}
		}
		return nil
	default:
		return fieldErr(f.Name, "has an unknown validation kind")
	}
}

func validateString(f Field, s string) error {
	if len(f.Enum) > 0 && !contains(f.Enum, s) {
		return fieldErr(f.Name, fmt.Sprintf("must be one of %v", f.Enum))
	}
	if f.Pattern != nil && !f.Pattern.MatchString(s) {
		return fieldErr(f.Name, "does not match the required pattern")
	}
	if f.HasMin && float64(len(s)) < f.Min {
		return fieldErr(f.Name, fmt.Sprintf("must be at least %d characters", int(f.Min)))
	}
	if f.HasMax && float64(len(s)) > f.Max {
		return fieldErr(f.Name, fmt.Sprintf("must be at most %d characters", int(f.Max)))
	}
	return nil
}

func validateNumber(f Field, n float64) error {
	if f.HasMin && n < f.Min {
		return fieldErr(f.Name, fmt.Sprintf("must be >= %v", f.Min))
	}
	if f.HasMax && n > f.Max {
		return fieldErr(f.Name, fmt.Sprintf("must be <= %v", f.Max))
	}
	return nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func fieldErr(name, reason string) error {
	return dberrors.New(dberrors.KindValidation, fmt.Sprintf("field %q %s", name, reason))
}
