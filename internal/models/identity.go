package models

import "time"

// Identity is a local identity record. Plain entity fields are addressed by
// property name; everything else lives in the extended attribute store.
type Identity struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	Email     string
	Disabled  bool

	// Extended is the dynamic attribute store, keyed by attribute name.
	Extended map[string]string

	CreatedAt time.Time
}

// Identity property names addressable from attribute mappings.
const (
	PropertyUsername  = "username"
	PropertyFirstName = "firstName"
	PropertyLastName  = "lastName"
	PropertyEmail     = "email"
	PropertyDisabled  = "disabled"
)

// Property returns a plain entity property by name. The second result is
// false for unknown property names.
func (i *Identity) Property(name string) (string, bool) {
	switch name {
	case PropertyUsername:
		return i.Username, true
	case PropertyFirstName:
		return i.FirstName, true
	case PropertyLastName:
		return i.LastName, true
	case PropertyEmail:
		return i.Email, true
	case PropertyDisabled:
		if i.Disabled {
			return "true", true
		}
		return "false", true
	}
	return "", false
}

// SetProperty assigns a plain entity property by name. Unknown names report
// false and leave the identity untouched.
func (i *Identity) SetProperty(name, value string) bool {
	switch name {
	case PropertyUsername:
		i.Username = value
	case PropertyFirstName:
		i.FirstName = value
	case PropertyLastName:
		i.LastName = value
	case PropertyEmail:
		i.Email = value
	case PropertyDisabled:
		i.Disabled = value == "true"
	default:
		return false
	}
	return true
}

// ExtendedValue returns an extended attribute value, "" when absent.
func (i *Identity) ExtendedValue(name string) string {
	if i.Extended == nil {
		return ""
	}
	return i.Extended[name]
}

// SetExtended assigns an extended attribute value.
func (i *Identity) SetExtended(name, value string) {
	if i.Extended == nil {
		i.Extended = map[string]string{}
	}
	i.Extended[name] = value
}
