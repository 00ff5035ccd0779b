package markers

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"
	"unicode"

	"github.com/fmeng/anstore/core"
)

// ScalarArgument is the argument name used by markers declared on a non-struct type,
// e.g. `type Table string`.
const ScalarArgument = "value"

// Definition defines how to parse a specific marker and where it may be used.
type Definition struct {
	// Marker is the identity of the marker type.
	Marker core.TypeRef
	// Targets are the placements the marker may be used on.
	Targets core.PlacementSet
	// Requires is the raw version constraint of the marker, if any.
	Requires string
	// Fields maps argument names to their types.
	Fields map[string]Argument
	// FieldNames maps argument names to struct field names.
	FieldNames map[string]string
	// Order lists argument names in declaration order.
	Order []string
	// Scalar is set when the marker type is not a struct and takes one bare value.
	Scalar bool
	// Description provides help text for this marker.
	Description string
	Position    token.Position
	// Declared is set when the type carries the meta-marker itself.
	Declared bool
	// BaseName is the named type this type is defined from, as written ("anns.Store").
	BaseName string
	// Base is the marker this definition inherited from.
	Base *core.TypeRef

	targetsDeclared bool
}

// IsMarker reports whether the type takes part in discovery, either through its
// own meta-marker or by inheriting one.
func (d *Definition) IsMarker() bool {
	return d.Declared || d.Base != nil
}

// TargetsDeclared reports whether the type declares its own targets.
func (d *Definition) TargetsDeclared() bool {
	return d.targetsDeclared
}

// NewDefinition reads the meta-markers and argument layout of a type declaration.
// It does not resolve BaseName; see Inherit.
func NewDefinition(ref core.TypeRef, info *TypeInfo) (*Definition, error) {
	def := &Definition{
		Marker:      ref,
		Fields:      make(map[string]Argument),
		FieldNames:  make(map[string]string),
		Description: info.Doc,
		Position:    info.Position,
		Declared:    info.Markers.Has(MetaMarker),
	}

	if c, ok := info.Markers.Get(TargetMarker); ok {
		targets, err := parseTargets(c.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", TargetMarker, err)
		}
		def.Targets = targets
		def.targetsDeclared = true
	}
	if c, ok := info.Markers.Get(RequiresMarker); ok {
		def.Requires = unquoteIfQuoted(strings.TrimSpace(c.Args))
	}

	if err := def.analyzeType(info); err != nil {
		return nil, err
	}
	return def, nil
}

// Inherit fills everything the type does not declare itself from base.
func (d *Definition) Inherit(base *Definition) {
	ref := base.Marker
	d.Base = &ref
	if !d.targetsDeclared {
		d.Targets = base.Targets
	}
	if d.Requires == "" {
		d.Requires = base.Requires
	}
	if len(d.Fields) == 0 && !d.Scalar {
		for k, v := range base.Fields {
			d.Fields[k] = v
		}
		for k, v := range base.FieldNames {
			d.FieldNames[k] = v
		}
		d.Order = append([]string(nil), base.Order...)
		d.Scalar = base.Scalar
	}
	if d.Description == "" {
		d.Description = base.Description
	}
}

// analyzeType determines the arguments from the declared type.
func (d *Definition) analyzeType(info *TypeInfo) error {
	switch t := info.Type.(type) {
	case *ast.StructType:
		return d.analyzeStruct(info.Fields)
	case *ast.Ident:
		if !isBasicIdent(t.Name) {
			d.BaseName = t.Name
			return nil
		}
	case *ast.SelectorExpr:
		if x, ok := t.X.(*ast.Ident); ok {
			d.BaseName = x.Name + "." + t.Sel.Name
			return nil
		}
	}

	// For non-struct types, create a single anonymous argument
	arg, err := argumentFromExpr(info.Type)
	if err != nil {
		if d.Declared {
			return fmt.Errorf("marker type %s: %w", d.Marker, err)
		}
		// Not a marker; the layout does not matter.
		return nil
	}
	d.Scalar = true
	d.Fields[ScalarArgument] = arg
	d.FieldNames[ScalarArgument] = ""
	d.Order = []string{ScalarArgument}
	return nil
}

func (d *Definition) analyzeStruct(fields []*FieldInfo) error {
	for _, field := range fields {
		// Skip embedded and unexported fields
		if field.Embedded || !ast.IsExported(field.Name) {
			continue
		}

		argName := fieldToArgName(field.Name)
		optional := false

		// Check for marker tag overrides
		if markerTag := field.Tag.Get("marker"); markerTag != "" {
			parts := strings.Split(markerTag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				argName = parts[0]
			}
			for _, part := range parts[1:] {
				if strings.TrimSpace(part) == "optional" {
					optional = true
				}
			}
		}

		arg, err := argumentFromExpr(field.Type)
		if err != nil {
			if !d.Declared {
				return nil
			}
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		arg.Optional = arg.Optional || optional

		if _, dup := d.Fields[argName]; dup {
			return fmt.Errorf("duplicate argument %q", argName)
		}
		d.Fields[argName] = arg
		d.FieldNames[argName] = field.Name
		d.Order = append(d.Order, argName)
	}
	return nil
}

// argumentFromExpr creates an Argument from a type expression.
func argumentFromExpr(expr ast.Expr) (Argument, error) {
	switch t := expr.(type) {
	case *ast.StarExpr:
		arg, err := argumentFromExpr(t.X)
		if err != nil {
			return Argument{}, err
		}
		arg.Optional = true
		return arg, nil
	case *ast.Ident:
		switch t.Name {
		case "string":
			return Argument{Type: StringType}, nil
		case "int", "int8", "int16", "int32", "int64",
			"uint", "uint8", "uint16", "uint32", "uint64", "byte", "rune":
			return Argument{Type: IntType}, nil
		case "float32", "float64":
			return Argument{Type: FloatType}, nil
		case "bool":
			return Argument{Type: BoolType}, nil
		case "any":
			return Argument{Type: AnyType}, nil
		}
		return Argument{}, fmt.Errorf("unsupported type: %s", t.Name)
	case *ast.InterfaceType:
		if t.Methods == nil || len(t.Methods.List) == 0 {
			return Argument{Type: AnyType}, nil
		}
		return Argument{}, fmt.Errorf("unsupported interface type")
	case *ast.ArrayType:
		if t.Len != nil {
			return Argument{}, fmt.Errorf("unsupported array type")
		}
		item, err := argumentFromExpr(t.Elt)
		if err != nil {
			return Argument{}, fmt.Errorf("slice element type: %w", err)
		}
		return Argument{Type: SliceType, ItemType: &item}, nil
	case *ast.MapType:
		if key, ok := t.Key.(*ast.Ident); !ok || key.Name != "string" {
			return Argument{}, fmt.Errorf("map keys must be strings")
		}
		value, err := argumentFromExpr(t.Value)
		if err != nil {
			return Argument{}, fmt.Errorf("map value type: %w", err)
		}
		return Argument{Type: MapType, ItemType: &value}, nil
	default:
		return Argument{}, fmt.Errorf("unsupported type expression %T", expr)
	}
}

func isBasicIdent(name string) bool {
	switch name {
	case "string", "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "byte", "rune",
		"float32", "float64", "bool", "any":
		return true
	}
	return false
}

// fieldToArgName converts a struct field name to an argument name.
// Converts PascalCase to camelCase (e.g., "MaxLength" -> "maxLength").
func fieldToArgName(fieldName string) string {
	if fieldName == "" {
		return ""
	}

	runes := []rune(fieldName)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

func parseTargets(args string) (core.PlacementSet, error) {
	items, err := parseSlice(strings.TrimSpace(args), Argument{Type: SliceType, ItemType: &Argument{Type: StringType}})
	if err != nil {
		return 0, err
	}
	var set core.PlacementSet
	for _, item := range items.([]any) {
		p, err := core.ParsePlacement(item.(string))
		if err != nil {
			return 0, err
		}
		set = set.With(p)
	}
	return set, nil
}
