package core

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
)

// MarkedUnit records one discovery: a single declaration carrying a single marker.
// Exactly one of Field and Method is set when the location is not PlacementType.
type MarkedUnit struct {
	marker        TypeRef
	declaringType TypeRef
	location      Placement
	field         *FieldRef
	method        *MethodRef
	instance      Instance
}

// unitKey is the identity used to de-duplicate units.
type unitKey struct {
	marker   TypeRef
	location Placement
	decl     string
}

// NewMarkedUnit builds a unit for decl. The location is taken from decl itself, which
// keeps the field/method partition consistent by construction.
func NewMarkedUnit(marker TypeRef, decl Declaration, instance Instance) (MarkedUnit, error) {
	if marker.IsZero() {
		return MarkedUnit{}, fmt.Errorf("marked unit: empty marker")
	}
	if decl == nil {
		return MarkedUnit{}, fmt.Errorf("marked unit for %s: nil declaration", marker)
	}
	u := MarkedUnit{
		marker:        marker,
		declaringType: decl.DeclaringType(),
		location:      decl.Placement(),
		instance:      instance,
	}
	switch d := decl.(type) {
	case TypeRef, *TypeRef:
	case FieldRef:
		u.field = &d
	case *FieldRef:
		f := *d
		u.field = &f
	case MethodRef:
		u.method = &d
	case *MethodRef:
		m := *d
		u.method = &m
	default:
		return MarkedUnit{}, fmt.Errorf("marked unit for %s: unsupported declaration %T", marker, decl)
	}
	if u.declaringType.IsZero() {
		return MarkedUnit{}, fmt.Errorf("marked unit for %s: declaration %s has no declaring type", marker, decl)
	}
	return u, nil
}

func (u MarkedUnit) MarkerType() TypeRef    { return u.marker }
func (u MarkedUnit) DeclaringType() TypeRef { return u.declaringType }
func (u MarkedUnit) Location() Placement    { return u.location }
func (u MarkedUnit) Instance() Instance     { return u.instance }

// Field returns the marked field; ok is false unless the unit is field-marked.
func (u MarkedUnit) Field() (FieldRef, bool) {
	if u.field == nil {
		return FieldRef{}, false
	}
	return *u.field, true
}

// Method returns the marked method; ok is false unless the unit is method-marked.
func (u MarkedUnit) Method() (MethodRef, bool) {
	if u.method == nil {
		return MethodRef{}, false
	}
	return *u.method, true
}

func (u MarkedUnit) IsTypeMarked() bool   { return u.location == PlacementType }
func (u MarkedUnit) IsFieldMarked() bool  { return u.location == PlacementField }
func (u MarkedUnit) IsMethodMarked() bool { return u.location == PlacementMethod }

// Declaration returns the marked declaration itself.
func (u MarkedUnit) Declaration() Declaration {
	switch {
	case u.field != nil:
		return *u.field
	case u.method != nil:
		return *u.method
	default:
		return u.declaringType
	}
}

func (u MarkedUnit) key() unitKey {
	return unitKey{marker: u.marker, location: u.location, decl: u.Declaration().String()}
}

// Equal reports structural equality over every attribute of the unit.
func (u MarkedUnit) Equal(other MarkedUnit) bool {
	return u.key() == other.key() &&
		u.declaringType == other.declaringType &&
		u.instance.Equal(other.instance)
}

// Hash is consistent with Equal.
func (u MarkedUnit) Hash() uint64 {
	h := fnv.New64a()
	k := u.key()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s", k.marker, k.location, k.decl, u.declaringType, u.instance.Fingerprint())
	return h.Sum64()
}

func (u MarkedUnit) String() string {
	return fmt.Sprintf("MarkedUnit{marker=%s, location=%s, declaringType=%s, declaration=%s, instance=%s}",
		u.marker, u.location, u.declaringType, u.Declaration(), u.instance)
}

func (u MarkedUnit) MarshalJSON() ([]byte, error) {
	out := struct {
		Marker        string     `json:"marker"`
		Location      Placement  `json:"location"`
		DeclaringType string     `json:"declaring_type"`
		Field         *FieldRef  `json:"field,omitempty"`
		Method        *MethodRef `json:"method,omitempty"`
		Instance      Instance   `json:"instance"`
	}{
		Marker:        u.marker.String(),
		Location:      u.location,
		DeclaringType: u.declaringType.String(),
		Field:         u.field,
		Method:        u.method,
		Instance:      u.instance,
	}
	return json.Marshal(out)
}
