// Package provision builds and dispatches write instructions against target
// systems: one instruction per account, value resolution through the
// transform evaluator, write policy per strategy, and the account protection
// state machine.
package provision

import (
	"github.com/piougy/CzechIdMng-sub011/internal/compiler"
	"github.com/piougy/CzechIdMng-sub011/internal/connector"
	"github.com/piougy/CzechIdMng-sub011/internal/faults"
	"github.com/piougy/CzechIdMng-sub011/internal/models"
	"github.com/piougy/CzechIdMng-sub011/internal/transform"
)

// OperationKind is the remote operation an instruction performs.
type OperationKind string

const (
	OperationCreate OperationKind = "CREATE"
	OperationUpdate OperationKind = "UPDATE"
	OperationDelete OperationKind = "DELETE"
)

// Instruction is a single create/update/delete instruction set for one
// account. Confidential attributes are carried separately so they never reach
// logs or published events; a non-empty NewUID on update is a rename of the
// external identifier, not a delete+recreate.
type Instruction struct {
	Kind     OperationKind
	SystemID string
	UID      string
	NewUID   string

	Attributes   map[string][]string
	Confidential map[string][]string

	// PasswordChange marks that a password attribute is being written; the
	// target system must declare the change-password capability.
	PasswordChange bool
}

// AttributeNames lists every written attribute, confidential ones included,
// without exposing values. Safe for logging.
func (in *Instruction) AttributeNames() []string {
	names := make([]string, 0, len(in.Attributes)+len(in.Confidential))
	for name := range in.Attributes {
		names = append(names, name)
	}
	for name := range in.Confidential {
		names = append(names, name)
	}
	return names
}

// Builder turns a compiled attribute set plus current entity state into
// write instructions.
type Builder struct {
	eval transform.Evaluator
}

// NewBuilder creates a builder using the given transform evaluator.
func NewBuilder(eval transform.Evaluator) *Builder {
	return &Builder{eval: eval}
}

// Build produces the full instruction for one account. current is the remote
// record as last read (nil on create); it feeds WRITE_IF_NULL decisions and
// rename detection.
func (b *Builder) Build(effective []compiler.EffectiveAttribute, identity *models.Identity, systemID string, current *connector.Record, isCreate bool) (*Instruction, error) {
	return b.build(effective, identity, systemID, current, isCreate, "")
}

// BuildAttribute produces an instruction writing a single schema attribute,
// used to push one changed attribute without rebuilding the whole set.
func (b *Builder) BuildAttribute(effective []compiler.EffectiveAttribute, identity *models.Identity, systemID string, current *connector.Record, schemaAttribute string) (*Instruction, error) {
	return b.build(effective, identity, systemID, current, false, schemaAttribute)
}

// BuildDelete produces a delete instruction for one account.
func (b *Builder) BuildDelete(systemID, uid string) *Instruction {
	return &Instruction{Kind: OperationDelete, SystemID: systemID, UID: uid}
}

func (b *Builder) build(effective []compiler.EffectiveAttribute, identity *models.Identity, systemID string, current *connector.Record, isCreate bool, only string) (*Instruction, error) {
	uid, err := b.resolveUID(effective, identity, current)
	if err != nil {
		return nil, err
	}

	inst := &Instruction{
		SystemID:     systemID,
		Attributes:   map[string][]string{},
		Confidential: map[string][]string{},
	}
	if isCreate {
		inst.Kind = OperationCreate
		inst.UID = uid
	} else {
		inst.Kind = OperationUpdate
		if current != nil {
			inst.UID = current.UID
			if uid != current.UID {
				inst.NewUID = uid
			}
		} else {
			inst.UID = uid
		}
	}

	for _, group := range groupBySchema(effective) {
		attr := group[0]
		if attr.UID() {
			continue
		}
		if only != "" && attr.SchemaAttribute != only {
			continue
		}
		if err := b.applyGroup(inst, group, identity, current, isCreate, uid); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// applyGroup resolves one schema attribute's value(s) and applies the write
// policy of its strategy.
func (b *Builder) applyGroup(inst *Instruction, group []compiler.EffectiveAttribute, identity *models.Identity, current *connector.Record, isCreate bool, uid string) error {
	attr := group[0]
	schema := attr.SchemaAttribute

	switch attr.Strategy {
	case models.StrategyCreate:
		if !isCreate {
			return nil
		}
	case models.StrategyWriteIfNull:
		if current != nil && len(current.Attributes[schema]) > 0 {
			return nil
		}
	}

	sendOnlyIfNotNull := attr.Default != nil && attr.Default.SendOnlyIfNotNull

	if attr.Strategy.IsMerge() {
		var union []string
		for _, contributor := range group {
			value, err := b.resolveValue(contributor, identity, uid)
			if err != nil {
				return err
			}
			union = unionValues(union, transform.Strings(value))
		}
		if sendOnlyIfNotNull && len(union) == 0 {
			return nil
		}
		b.write(inst, attr, schema, union)
		return nil
	}

	value, err := b.resolveValue(attr, identity, uid)
	if err != nil {
		return err
	}
	if sendOnlyIfNotNull && transform.IsEmpty(value) {
		return nil
	}
	values := transform.Strings(value)
	if !attr.Multivalued && len(values) > 1 {
		return faults.Configuration("multiple_values_for_single_valued", map[string]any{
			"attribute": schema,
		})
	}
	b.write(inst, attr, schema, values)
	return nil
}

func (b *Builder) write(inst *Instruction, attr compiler.EffectiveAttribute, schema string, values []string) {
	if values == nil {
		values = []string{}
	}
	if attr.Confidential() {
		inst.Confidential[schema] = values
		if attr.Password() && len(values) > 0 {
			inst.PasswordChange = true
		}
		return
	}
	inst.Attributes[schema] = values
}

// resolveValue reads the raw value from the entity and passes it through the
// effective transform.
func (b *Builder) resolveValue(attr compiler.EffectiveAttribute, identity *models.Identity, uid string) (any, error) {
	var raw any
	if def := attr.Default; def != nil && def.IdmPropertyName != "" {
		if def.Extended {
			raw = identity.ExtendedValue(def.IdmPropertyName)
		} else if def.EntityAttribute {
			val, ok := identity.Property(def.IdmPropertyName)
			if !ok {
				return nil, faults.Configuration("unknown_entity_property", map[string]any{
					"property":  def.IdmPropertyName,
					"attribute": attr.SchemaAttribute,
				})
			}
			raw = val
		}
	}

	ctx := transform.Context{
		UID:       uid,
		Value:     raw,
		Entity:    entitySnapshot(identity),
		Attribute: attr.SchemaAttribute,
	}
	return b.eval.Evaluate(attr.TransformToResource(), ctx)
}

// resolveUID resolves the external identifier from the UID attribute.
func (b *Builder) resolveUID(effective []compiler.EffectiveAttribute, identity *models.Identity, current *connector.Record) (string, error) {
	for _, attr := range effective {
		if !attr.UID() {
			continue
		}
		currentUID := ""
		if current != nil {
			currentUID = current.UID
		}
		value, err := b.resolveValue(attr, identity, currentUID)
		if err != nil {
			return "", err
		}
		values := transform.Strings(value)
		if len(values) == 0 {
			return "", faults.Item("uid_value_missing", map[string]any{
				"attribute": attr.SchemaAttribute,
			})
		}
		return values[0], nil
	}
	return "", faults.Configuration("uid_attribute_removed", nil)
}

func groupBySchema(effective []compiler.EffectiveAttribute) [][]compiler.EffectiveAttribute {
	index := map[string]int{}
	var groups [][]compiler.EffectiveAttribute
	for _, attr := range effective {
		if i, ok := index[attr.SchemaAttribute]; ok {
			groups[i] = append(groups[i], attr)
			continue
		}
		index[attr.SchemaAttribute] = len(groups)
		groups = append(groups, []compiler.EffectiveAttribute{attr})
	}
	return groups
}

func unionValues(dst, src []string) []string {
	for _, v := range src {
		dup := false
		for _, existing := range dst {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

func entitySnapshot(identity *models.Identity) map[string]string {
	snap := map[string]string{
		models.PropertyUsername:  identity.Username,
		models.PropertyFirstName: identity.FirstName,
		models.PropertyLastName:  identity.LastName,
		models.PropertyEmail:     identity.Email,
	}
	for k, v := range identity.Extended {
		snap[k] = v
	}
	return snap
}
