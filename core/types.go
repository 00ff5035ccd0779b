package core

import (
	"fmt"
	"sort"
	"strings"
)

// Placement describes which kind of Go declaration a marker is attached to.
type Placement int

const (
	// PlacementType indicates a named type declaration.
	PlacementType Placement = iota + 1
	// PlacementField indicates a struct field.
	PlacementField
	// PlacementMethod indicates a method with a receiver.
	PlacementMethod
)

// Placements lists every placement in unit order (types, then fields, then methods).
var Placements = []Placement{PlacementType, PlacementField, PlacementMethod}

func (p Placement) String() string {
	switch p {
	case PlacementType:
		return "type"
	case PlacementField:
		return "field"
	case PlacementMethod:
		return "method"
	default:
		return "unknown"
	}
}

// MarshalText renders the placement by name so JSON output stays readable.
func (p Placement) MarshalText() ([]byte, error) {
	if p < PlacementType || p > PlacementMethod {
		return nil, fmt.Errorf("invalid placement %d", int(p))
	}
	return []byte(p.String()), nil
}

// ParsePlacement converts "type", "field" or "method" (any case) into a Placement.
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "type":
		return PlacementType, nil
	case "field":
		return PlacementField, nil
	case "method":
		return PlacementMethod, nil
	default:
		return 0, fmt.Errorf("unknown placement %q (expected type, field or method)", s)
	}
}

// PlacementSet is a set of legal placements for a marker.
type PlacementSet uint8

// NewPlacementSet builds a set from the given placements.
func NewPlacementSet(placements ...Placement) PlacementSet {
	var s PlacementSet
	for _, p := range placements {
		s = s.With(p)
	}
	return s
}

func (s PlacementSet) With(p Placement) PlacementSet {
	if p < PlacementType || p > PlacementMethod {
		return s
	}
	return s | 1<<uint(p)
}

func (s PlacementSet) Has(p Placement) bool {
	if p < PlacementType || p > PlacementMethod {
		return false
	}
	return s&(1<<uint(p)) != 0
}

func (s PlacementSet) Empty() bool {
	return s == 0
}

// Slice returns the members in unit order.
func (s PlacementSet) Slice() []Placement {
	var out []Placement
	for _, p := range Placements {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s PlacementSet) String() string {
	parts := make([]string, 0, 3)
	for _, p := range s.Slice() {
		parts = append(parts, p.String())
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Declaration is a Go declaration that can carry a marker.
type Declaration interface {
	Placement() Placement
	// DeclaringType is the type itself for type declarations, or the owner for fields and methods.
	DeclaringType() TypeRef
	String() string
}

// TypeRef identifies a named type by import path and name.
// It is also the identity of a marker.
type TypeRef struct {
	PkgPath string `json:"pkg_path" msgpack:"pkg_path"`
	Name    string `json:"name" msgpack:"name"`
}

func (t TypeRef) Placement() Placement   { return PlacementType }
func (t TypeRef) DeclaringType() TypeRef { return t }

func (t TypeRef) IsZero() bool {
	return t.Name == ""
}

func (t TypeRef) String() string {
	if t.PkgPath == "" {
		return t.Name
	}
	return t.PkgPath + "." + t.Name
}

// FieldRef identifies a struct field. Embedded fields are named after their type.
type FieldRef struct {
	Owner TypeRef `json:"owner" msgpack:"owner"`
	Name  string  `json:"name" msgpack:"name"`
}

func (f FieldRef) Placement() Placement   { return PlacementField }
func (f FieldRef) DeclaringType() TypeRef { return f.Owner }

func (f FieldRef) String() string {
	return f.Owner.String() + "." + f.Name
}

// MethodRef identifies a method by its receiver base type.
type MethodRef struct {
	Receiver        TypeRef `json:"receiver" msgpack:"receiver"`
	Name            string  `json:"name" msgpack:"name"`
	PointerReceiver bool    `json:"pointer_receiver,omitempty" msgpack:"pointer_receiver"`
}

func (m MethodRef) Placement() Placement   { return PlacementMethod }
func (m MethodRef) DeclaringType() TypeRef { return m.Receiver }

func (m MethodRef) String() string {
	if m.PointerReceiver {
		return fmt.Sprintf("(*%s).%s", m.Receiver, m.Name)
	}
	return fmt.Sprintf("(%s).%s", m.Receiver, m.Name)
}

// SortTypeRefs orders refs by package path, then name.
func SortTypeRefs(refs []TypeRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].PkgPath != refs[j].PkgPath {
			return refs[i].PkgPath < refs[j].PkgPath
		}
		return refs[i].Name < refs[j].Name
	})
}
