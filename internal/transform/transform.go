// Package transform defines the value-transform evaluator contract used by
// attribute mappings, plus the sandboxed default implementation: a registry
// of named transforms composed with "|". Only registered names can run, which
// keeps expression evaluation constrained by construction.
package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/piougy/CzechIdMng-sub011/internal/faults"
)

// Context carries the inputs available to a transform expression.
type Context struct {
	UID       string
	Value     any
	Entity    map[string]string
	Attribute string
}

// Evaluator executes one transform expression. Implementations must be
// stateless per call and safe for concurrent use.
type Evaluator interface {
	Evaluate(expression string, ctx Context) (any, error)
}

// Func is a single named transform step.
type Func func(value any, ctx Context) (any, error)

// Registry is the default evaluator. An expression is a pipeline of
// registered transform names separated by "|", applied left to right, e.g.
// "trim|lowercase". An empty expression returns the input value unchanged.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry creates a registry preloaded with the built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{funcs: map[string]Func{}}
	r.Register("uppercase", func(v any, _ Context) (any, error) {
		return strings.ToUpper(toString(v)), nil
	})
	r.Register("lowercase", func(v any, _ Context) (any, error) {
		return strings.ToLower(toString(v)), nil
	})
	r.Register("trim", func(v any, _ Context) (any, error) {
		return strings.TrimSpace(toString(v)), nil
	})
	r.Register("string", func(v any, _ Context) (any, error) {
		return toString(v), nil
	})
	r.Register("int", func(v any, _ Context) (any, error) {
		return toInt(v), nil
	})
	r.Register("bool", func(v any, _ Context) (any, error) {
		return toBool(v), nil
	})
	r.Register("date_iso", func(v any, _ Context) (any, error) {
		s := toString(v)
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return v, nil
		}
		return t.Format(time.RFC3339), nil
	})
	r.Register("uid", func(_ any, ctx Context) (any, error) {
		return ctx.UID, nil
	})
	return r
}

// Register adds or replaces a named transform.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Evaluate runs the pipeline. Unknown transform names fail with a
// configuration error so a typo never silently passes values through.
func (r *Registry) Evaluate(expression string, ctx Context) (any, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return ctx.Value, nil
	}

	value := ctx.Value
	for _, step := range strings.Split(expression, "|") {
		name := strings.TrimSpace(step)
		if name == "" {
			continue
		}
		fn, ok := r.funcs[name]
		if !ok {
			return nil, faults.Configuration("unknown_transform", map[string]any{
				"transform": name,
				"attribute": ctx.Attribute,
			})
		}
		var err error
		value, err = fn(value, ctx)
		if err != nil {
			return nil, fmt.Errorf("transform %q failed: %w", name, err)
		}
	}
	return value, nil
}

// Strings flattens a transformed value to the connector's multi-valued string
// form. Nil and empty strings yield no values.
func Strings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, Strings(item)...)
		}
		return out
	default:
		s := toString(val)
		if s == "" {
			return nil
		}
		return []string{s}
	}
}

// IsEmpty reports whether a transformed value is null or the empty string.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func toInt(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		i, _ := strconv.Atoi(val)
		return i
	default:
		return 0
	}
}

func toBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true" || val == "1" || val == "yes"
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return false
	}
}
