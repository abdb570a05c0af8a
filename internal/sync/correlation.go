package sync

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// Normalize canonicalizes a correlation value: lowercase, trimmed, with
// diacritics stripped (NFD decompose, drop combining marks). Correlation is
// deliberately forgiving; the tie-break ordering in the compiler is not.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// correlationIndex maps normalized property values to identities for one
// correlation property. Built once per run from the identity list; first
// occurrence wins on duplicates.
type correlationIndex struct {
	property string
	extended bool
	byValue  map[string]*models.Identity
}

func buildCorrelationIndex(identities []models.Identity, property string, extended bool) *correlationIndex {
	idx := &correlationIndex{
		property: property,
		extended: extended,
		byValue:  make(map[string]*models.Identity, len(identities)),
	}
	for i := range identities {
		identity := &identities[i]
		var value string
		if extended {
			value = identity.ExtendedValue(property)
		} else {
			value, _ = identity.Property(property)
		}
		if value == "" {
			continue
		}
		key := Normalize(value)
		if _, exists := idx.byValue[key]; !exists {
			idx.byValue[key] = identity
		}
	}
	return idx
}

func (idx *correlationIndex) find(value string) *models.Identity {
	if value == "" {
		return nil
	}
	return idx.byValue[Normalize(value)]
}
