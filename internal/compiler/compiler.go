// Package compiler resolves default attribute mappings and role-contributed
// overloads into the effective attribute set for one provisioning operation.
// Compile is a pure function: no I/O, deterministic for identical inputs.
package compiler

import (
	"sort"
	"strings"

	"github.com/piougy/CzechIdMng-sub011/internal/faults"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
)

// EffectiveAttribute is one contribution to the compiled attribute set. For
// single-winner strategies there is exactly one entry per schema attribute;
// merge strategies keep every enabled contributor as its own entry.
type EffectiveAttribute struct {
	SchemaAttribute string
	Multivalued     bool
	Strategy        models.StrategyType

	// Default is the overloaded default mapping; nil when the attribute
	// was contributed by a standalone overload.
	Default *models.AttributeMapping
	// Overload is the contributing role mapping; nil when the default
	// itself contributes the value.
	Overload *models.RoleAttributeMapping
}

// UID reports whether this is the mapping's UID attribute.
func (e EffectiveAttribute) UID() bool {
	return e.Default != nil && e.Default.UID
}

// TransformToResource returns the effective outbound transform: the
// overload's when it declares one, otherwise the default's.
func (e EffectiveAttribute) TransformToResource() string {
	if e.Overload != nil && e.Overload.TransformToResource != "" {
		return e.Overload.TransformToResource
	}
	if e.Default != nil {
		return e.Default.TransformToResource
	}
	return ""
}

// Confidential reports whether the resolved value must follow the
// confidential path (never logged, never published).
func (e EffectiveAttribute) Confidential() bool {
	return e.Default != nil && (e.Default.Confidential || e.Default.PasswordAttribute)
}

// Password reports whether this is a password attribute.
func (e EffectiveAttribute) Password() bool {
	return e.Default != nil && e.Default.PasswordAttribute
}

// attributeGroup collects the default and every overload targeting one
// schema attribute.
type attributeGroup struct {
	schema    string
	def       *models.AttributeMapping
	overloads []*models.RoleAttributeMapping
}

// Compile resolves defaults plus overloads into the effective attribute set.
// Output ordering is deterministic but carries no meaning; equality is
// set-equality over (schema attribute, source mapping).
func Compile(defaults []models.AttributeMapping, overloads []models.RoleAttributeMapping) ([]EffectiveAttribute, error) {
	byID := make(map[string]*models.AttributeMapping, len(defaults))
	groups := make(map[string]*attributeGroup, len(defaults))
	order := make([]string, 0, len(defaults))

	uidCount := 0
	for i := range defaults {
		def := &defaults[i]
		if def.UID {
			uidCount++
		}
		byID[def.ID] = def
		if _, dup := groups[def.SchemaAttribute]; dup {
			return nil, faults.Configuration("duplicate_schema_attribute", map[string]any{
				"attribute": def.SchemaAttribute,
			})
		}
		groups[def.SchemaAttribute] = &attributeGroup{schema: def.SchemaAttribute, def: def}
		order = append(order, def.SchemaAttribute)
	}
	if uidCount != 1 {
		return nil, faults.Configuration("uid_attribute_count", map[string]any{
			"count": uidCount,
		})
	}

	standalone := make([]string, 0)
	for i := range overloads {
		ov := &overloads[i]
		schema := ov.SchemaAttribute
		if ov.AttributeMappingID != "" {
			def, ok := byID[ov.AttributeMappingID]
			if !ok {
				return nil, faults.Configuration("overload_target_missing", map[string]any{
					"overload": ov.ID,
					"role":     ov.RoleName,
				})
			}
			schema = def.SchemaAttribute
		}
		group, ok := groups[schema]
		if !ok {
			group = &attributeGroup{schema: schema}
			groups[schema] = group
			standalone = append(standalone, schema)
		}
		group.overloads = append(group.overloads, ov)
	}
	sort.Strings(standalone)
	order = append(order, standalone...)

	var out []EffectiveAttribute
	for _, schema := range order {
		resolved, err := resolveGroup(groups[schema])
		if err != nil {
			return nil, err
		}
		out = append(out, resolved...)
	}

	if err := checkUIDSurvives(out); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveGroup(g *attributeGroup) ([]EffectiveAttribute, error) {
	if len(g.overloads) == 0 {
		if g.def == nil || g.def.DisabledAttribute {
			return nil, nil
		}
		return []EffectiveAttribute{attrFromDefault(g.def)}, nil
	}

	merge, err := groupStrategy(g)
	if err != nil {
		return nil, err
	}
	if merge {
		return resolveMerge(g)
	}
	return resolveSingleWinner(g)
}

// groupStrategy classifies the group as merge or single-winner. Mixing a
// merge strategy with any other strategy on one attribute is a configuration
// conflict and aborts compilation before any resource write.
func groupStrategy(g *attributeGroup) (merge bool, err error) {
	seen := map[models.StrategyType]bool{}
	if g.def != nil && !g.def.DisabledAttribute {
		seen[normalizeStrategy(g.def.Strategy)] = true
	}
	for _, ov := range g.overloads {
		seen[normalizeStrategy(ov.Strategy)] = true
	}

	mergeKinds := 0
	otherKinds := 0
	for s := range seen {
		if s.IsMerge() {
			mergeKinds++
		} else {
			otherKinds++
		}
	}
	if mergeKinds > 0 && otherKinds > 0 {
		return false, faults.Configuration("mixed_strategies", map[string]any{
			"attribute": g.schema,
		})
	}
	if mergeKinds > 1 {
		return false, faults.Configuration("mixed_merge_strategies", map[string]any{
			"attribute": g.schema,
		})
	}
	return mergeKinds > 0, nil
}

// resolveMerge keeps every enabled contributor. Values are unioned at write
// time, which requires the schema attribute to be multivalued.
func resolveMerge(g *attributeGroup) ([]EffectiveAttribute, error) {
	if !groupMultivalued(g) {
		return nil, faults.Configuration("merge_on_single_valued", map[string]any{
			"attribute": g.schema,
		})
	}

	var out []EffectiveAttribute
	if g.def != nil && !g.def.DisabledAttribute {
		out = append(out, attrFromDefault(g.def))
	}
	for _, ov := range g.overloads {
		if ov.DisabledDefaultAttribute {
			continue
		}
		out = append(out, attrFromOverload(g, ov))
	}
	return out, nil
}

// resolveSingleWinner selects exactly one candidate: highest role priority
// wins, ties broken by role name descending (byte-wise lexicographic). The
// default participates, when not disabled, below every overload. A winning
// candidate that disables the attribute removes it entirely; there is no
// fallback to the next candidate.
func resolveSingleWinner(g *attributeGroup) ([]EffectiveAttribute, error) {
	candidates := make([]*models.RoleAttributeMapping, len(g.overloads))
	copy(candidates, g.overloads)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RolePriority != candidates[j].RolePriority {
			return candidates[i].RolePriority > candidates[j].RolePriority
		}
		return strings.Compare(candidates[i].RoleName, candidates[j].RoleName) > 0
	})

	if len(candidates) > 0 {
		winner := candidates[0]
		if winner.DisabledDefaultAttribute {
			return nil, nil
		}
		return []EffectiveAttribute{attrFromOverload(g, winner)}, nil
	}
	if g.def != nil && !g.def.DisabledAttribute {
		return []EffectiveAttribute{attrFromDefault(g.def)}, nil
	}
	return nil, nil
}

func attrFromDefault(def *models.AttributeMapping) EffectiveAttribute {
	return EffectiveAttribute{
		SchemaAttribute: def.SchemaAttribute,
		Multivalued:     def.Multivalued,
		Strategy:        normalizeStrategy(def.Strategy),
		Default:         def,
	}
}

func attrFromOverload(g *attributeGroup, ov *models.RoleAttributeMapping) EffectiveAttribute {
	attr := EffectiveAttribute{
		SchemaAttribute: g.schema,
		Multivalued:     groupMultivalued(g),
		Strategy:        normalizeStrategy(ov.Strategy),
		Default:         g.def,
		Overload:        ov,
	}
	return attr
}

func groupMultivalued(g *attributeGroup) bool {
	if g.def != nil {
		return g.def.Multivalued
	}
	for _, ov := range g.overloads {
		if ov.Multivalued {
			return true
		}
	}
	return false
}

func normalizeStrategy(s models.StrategyType) models.StrategyType {
	if s == "" {
		return models.StrategySet
	}
	return s
}

func checkUIDSurvives(out []EffectiveAttribute) error {
	for _, attr := range out {
		if attr.UID() {
			return nil
		}
	}
	return faults.Configuration("uid_attribute_removed", nil)
}
