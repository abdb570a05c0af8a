package connector

import (
	"strings"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// Filter restricts an enumeration to records whose attribute matches the
// value under the operator. Connectors that can push the filter to the remote
// system should do so; Match is the reference semantics for those that
// evaluate locally.
type Filter struct {
	Attribute string
	Operator  models.FilterOperator
	Value     string
}

// Match reports whether any value of the filtered attribute satisfies the
// operator. Comparisons are case-insensitive for equality and substring
// operators; ordering operators compare byte-wise.
func (f *Filter) Match(rec Record) bool {
	if f == nil {
		return true
	}
	vals := rec.Attributes[f.Attribute]
	if f.Attribute == "" {
		vals = []string{rec.UID}
	}
	// NE must hold for every value, including the no-value case.
	if f.Operator == models.OperatorNotEqual {
		for _, v := range vals {
			if strings.EqualFold(v, f.Value) {
				return false
			}
		}
		return true
	}
	for _, v := range vals {
		if f.matchValue(v) {
			return true
		}
	}
	return false
}

func (f *Filter) matchValue(v string) bool {
	switch f.Operator {
	case models.OperatorEqual:
		return strings.EqualFold(v, f.Value)
	case models.OperatorContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(f.Value))
	case models.OperatorStartsWith:
		return strings.HasPrefix(strings.ToLower(v), strings.ToLower(f.Value))
	case models.OperatorEndsWith:
		return strings.HasSuffix(strings.ToLower(v), strings.ToLower(f.Value))
	case models.OperatorGreaterThan:
		return v > f.Value
	case models.OperatorLessThan:
		return v < f.Value
	}
	return false
}
