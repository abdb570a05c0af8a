// Package faults defines the error taxonomy shared by the provisioning and
// synchronization engines. Every fatal error carries a machine-readable code
// plus structured parameters so callers can localize or route on it without
// parsing message text.
package faults

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind separates the four error families the engine distinguishes.
type Kind string

const (
	// KindConfiguration marks invalid mapping configuration. Fatal: aborts
	// compilation or provisioning before any remote write.
	KindConfiguration Kind = "configuration"
	// KindConnector marks remote failures: unreachable, rejected
	// credentials, timeout.
	KindConnector Kind = "connector"
	// KindItem marks a single-record failure during a sync run. Recorded,
	// never aborts the run.
	KindItem Kind = "item"
	// KindIntegrity marks a mutation blocked by protection state or
	// existing dependents. Rejected atomically.
	KindIntegrity Kind = "integrity"
)

// Error is the common shape of all engine errors.
type Error struct {
	Kind   Kind
	Code   string
	Params map[string]any
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Code)
	if len(e.Params) > 0 {
		keys := make([]string, 0, len(e.Params))
		for k := range e.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Params[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, code string, params map[string]any) *Error {
	return &Error{Kind: kind, Code: code, Params: params}
}

// Configuration builds a configuration error.
func Configuration(code string, params map[string]any) *Error {
	return newError(KindConfiguration, code, params)
}

// Connector builds a connector error.
func Connector(code string, params map[string]any) *Error {
	return newError(KindConnector, code, params)
}

// ConnectorWrap builds a connector error around a transport cause.
func ConnectorWrap(code string, params map[string]any, cause error) *Error {
	err := newError(KindConnector, code, params)
	err.Cause = cause
	return err
}

// Item builds a per-record error.
func Item(code string, params map[string]any) *Error {
	return newError(KindItem, code, params)
}

// ItemWrap builds a per-record error around a cause.
func ItemWrap(code string, params map[string]any, cause error) *Error {
	err := newError(KindItem, code, params)
	err.Cause = cause
	return err
}

// Integrity builds an integrity error.
func Integrity(code string, params map[string]any) *Error {
	return newError(KindIntegrity, code, params)
}

// IsKind reports whether err is (or wraps) an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return IsKind(err, KindConfiguration) }

// IsConnector reports whether err is a connector error.
func IsConnector(err error) bool { return IsKind(err, KindConnector) }

// IsItem reports whether err is a per-record error.
func IsItem(err error) bool { return IsKind(err, KindItem) }

// IsIntegrity reports whether err is an integrity error.
func IsIntegrity(err error) bool { return IsKind(err, KindIntegrity) }

// CodeOf returns the machine code of an engine error, or "" for foreign errors.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
