package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Snapshot is one consistent view of a Registry. It is never modified after
// being published, so readers may keep and share it freely.
type Snapshot struct {
	state   *ScanState
	types   *TypeIndex
	fields  *FieldIndex
	methods *MethodIndex
	units   MarkedUnits
	keys    map[unitKey]struct{}
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		state:   NewScanState(),
		types:   newIndex[TypeRef](),
		fields:  newIndex[FieldRef](),
		methods: newIndex[MethodRef](),
		keys:    make(map[unitKey]struct{}),
	}
}

// ScanState returns the roots this view covers.
func (s *Snapshot) ScanState() *ScanState { return s.state }

// TypeIndex, FieldIndex and MethodIndex return the indexes of this view. They
// must not be modified.
func (s *Snapshot) TypeIndex() *TypeIndex     { return s.types }
func (s *Snapshot) FieldIndex() *FieldIndex   { return s.fields }
func (s *Snapshot) MethodIndex() *MethodIndex { return s.methods }

// MarkedUnits returns the units in discovery order.
func (s *Snapshot) MarkedUnits() MarkedUnits {
	out := make(MarkedUnits, len(s.units))
	copy(out, s.units)
	return out
}

// Len is the number of marked units.
func (s *Snapshot) Len() int {
	return len(s.units)
}

// PrettyTable renders roots, units and index sizes.
func (s *Snapshot) PrettyTable() string {
	var b strings.Builder
	fmt.Fprintf(&b, "roots: %s\n", strings.Join(s.state.Roots(), ", "))
	fmt.Fprintf(&b, "type index: %d markers / %d entries\n", s.types.Len(), s.types.Size())
	fmt.Fprintf(&b, "field index: %d markers / %d entries\n", s.fields.Len(), s.fields.Size())
	fmt.Fprintf(&b, "method index: %d markers / %d entries\n", s.methods.Len(), s.methods.Size())
	b.WriteString(s.units.PrettyTable())
	return b.String()
}

// PrettyJson renders the scanned roots and the units.
func (s *Snapshot) PrettyJson(indent ...string) string {
	out := struct {
		Roots []string    `json:"roots"`
		Units MarkedUnits `json:"units"`
	}{
		Roots: s.state.Roots(),
		Units: s.units,
	}
	return prettyJson(out, indent...)
}

// builder stages a copy-on-write successor of a snapshot.
type builder struct {
	base    *Snapshot
	state   *ScanState
	types   *TypeIndex
	fields  *FieldIndex
	methods *MethodIndex
	units   MarkedUnits
	keys    map[unitKey]struct{}
	added   int
}

func (s *Snapshot) builder() *builder {
	return &builder{
		base:    s,
		state:   s.state,
		types:   s.types.clone(),
		fields:  s.fields.clone(),
		methods: s.methods.clone(),
		units:   s.units[:len(s.units):len(s.units)],
		keys:    s.keys,
	}
}

// addUnit inserts u into the matching index and the unit list unless an equal-keyed
// unit already exists.
func (b *builder) addUnit(u MarkedUnit) bool {
	k := u.key()
	if _, ok := b.keys[k]; ok {
		return false
	}
	if b.added == 0 {
		keys := make(map[unitKey]struct{}, len(b.keys)+1)
		for kk := range b.keys {
			keys[kk] = struct{}{}
		}
		b.keys = keys
	}
	b.keys[k] = struct{}{}
	b.added++

	switch u.location {
	case PlacementType:
		b.types.add(u.marker, u.declaringType)
	case PlacementField:
		b.fields.add(u.marker, *u.field)
	case PlacementMethod:
		b.methods.add(u.marker, *u.method)
	}
	b.units = append(b.units, u)
	return true
}

func (b *builder) build() *Snapshot {
	return &Snapshot{
		state:   b.state,
		types:   b.types,
		fields:  b.fields,
		methods: b.methods,
		units:   b.units,
		keys:    b.keys,
	}
}

func prettyJson(v any, indent ...string) string {
	var data []byte
	var err error
	if len(indent) > 0 {
		data, err = json.MarshalIndent(v, "", indent[0])
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Sprintf("failed to marshal JSON: %v", err)
	}
	return string(data)
}
