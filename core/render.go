package core

import (
	"fmt"
	"strings"

	"github.com/bndr/gotabulate"
)

// Renderable is implemented by values the CLI can print.
type Renderable interface {
	PrettyTable() string
	PrettyJson(indent ...string) string
}

// MarkedUnits is an ordered list of units.
type MarkedUnits []MarkedUnit

// ByMarker keeps units carrying marker.
func (us MarkedUnits) ByMarker(marker TypeRef) MarkedUnits {
	return us.filter(func(u MarkedUnit) bool { return u.marker == marker })
}

// ByLocation keeps units found at placement p.
func (us MarkedUnits) ByLocation(p Placement) MarkedUnits {
	return us.filter(func(u MarkedUnit) bool { return u.location == p })
}

// ByDeclaringType keeps units whose declaring type is t.
func (us MarkedUnits) ByDeclaringType(t TypeRef) MarkedUnits {
	return us.filter(func(u MarkedUnit) bool { return u.declaringType == t })
}

func (us MarkedUnits) filter(keep func(MarkedUnit) bool) MarkedUnits {
	var out MarkedUnits
	for _, u := range us {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out
}

// Contains reports whether a unit equal to u is present.
func (us MarkedUnits) Contains(u MarkedUnit) bool {
	for _, other := range us {
		if other.Equal(u) {
			return true
		}
	}
	return false
}

func (us MarkedUnits) Empty() bool {
	return len(us) == 0
}

// PrettyTable renders one row per unit.
func (us MarkedUnits) PrettyTable() string {
	if len(us) == 0 {
		return "[]"
	}
	rows := make([][]any, 0, len(us))
	for _, u := range us {
		member := ""
		if f, ok := u.Field(); ok {
			member = f.Name
		} else if m, ok := u.Method(); ok {
			member = m.Name
		}
		rows = append(rows, []any{
			u.marker.String(),
			u.location.String(),
			u.declaringType.String(),
			member,
			instanceArgs(u.instance),
		})
	}
	t := gotabulate.Create(rows)
	t.SetHeaders([]string{"marker", "location", "declaring type", "member", "args"})
	t.SetAlign("left")
	t.SetWrapStrings(true)
	t.SetMaxCellSize(85)
	return t.Render("grid")
}

func (us MarkedUnits) PrettyJson(indent ...string) string {
	if us == nil {
		us = MarkedUnits{}
	}
	return prettyJson([]MarkedUnit(us), indent...)
}

func instanceArgs(inst Instance) string {
	names := inst.Names()
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, 0, len(names))
	for _, n := range names {
		v, _ := inst.Value(n)
		parts = append(parts, fmt.Sprintf("%s=%v", n, v))
	}
	return strings.Join(parts, ",")
}
