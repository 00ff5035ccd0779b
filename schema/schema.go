// Package schema describes marker arguments as OpenAPI 3 schemas.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/fmeng/anstore/core"
	"github.com/fmeng/anstore/markers"
)

// Extensions set on every marker schema.
const (
	ExtTargets  = "x-anstore-targets"
	ExtRequires = "x-anstore-requires"
	ExtInherits = "x-anstore-inherits"
)

// ForDefinition builds the schema of the argument object of a marker. Arguments
// not marked optional are listed as required.
func ForDefinition(def *markers.Definition) (*openapi3.Schema, error) {
	if def == nil {
		return nil, fmt.Errorf("nil marker definition")
	}
	closed := false
	s := openapi3.NewObjectSchema()
	s.Title = def.Marker.Name
	s.Description = def.Description
	s.AdditionalProperties = openapi3.AdditionalProperties{Has: &closed}
	s.Extensions = map[string]any{
		ExtTargets: placementNames(def.Targets),
	}
	if def.Requires != "" {
		s.Extensions[ExtRequires] = def.Requires
	}
	if def.Base != nil {
		s.Extensions[ExtInherits] = def.Base.String()
	}

	for _, name := range def.Order {
		arg := def.Fields[name]
		prop, err := forArgument(arg)
		if err != nil {
			return nil, fmt.Errorf("marker %s argument %s: %w", def.Marker, name, err)
		}
		s.WithProperty(name, prop)
		if !arg.Optional {
			s.Required = append(s.Required, name)
		}
	}
	return s, nil
}

func forArgument(arg markers.Argument) (*openapi3.Schema, error) {
	switch arg.Type {
	case markers.StringType:
		return openapi3.NewStringSchema(), nil
	case markers.IntType:
		return openapi3.NewInt64Schema(), nil
	case markers.FloatType:
		return openapi3.NewFloat64Schema(), nil
	case markers.BoolType:
		return openapi3.NewBoolSchema(), nil
	case markers.AnyType:
		return openapi3.NewSchema(), nil
	case markers.SliceType, markers.MapType:
		if arg.ItemType == nil {
			return nil, fmt.Errorf("%s argument without item type", arg.Type)
		}
		item, err := forArgument(*arg.ItemType)
		if err != nil {
			return nil, err
		}
		if arg.Type == markers.SliceType {
			return openapi3.NewArraySchema().WithItems(item), nil
		}
		return openapi3.NewObjectSchema().WithAdditionalProperties(item), nil
	default:
		return nil, fmt.Errorf("unsupported argument type %s", arg.Type)
	}
}

func placementNames(set core.PlacementSet) []string {
	var out []string
	for _, p := range set.Slice() {
		out = append(out, p.String())
	}
	return out
}

// ComponentName is the component key of a marker: "example.com/shop/anns.Store"
// becomes "example.com.shop.anns.Store".
func ComponentName(ref core.TypeRef) string {
	return strings.ReplaceAll(ref.String(), "/", ".")
}

// Document builds a validated OpenAPI document with one component schema per marker.
func Document(ctx context.Context, defs []*markers.Definition) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   "anstore markers",
			Version: core.Version(),
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas, len(defs)),
		},
	}
	for _, def := range defs {
		s, err := ForDefinition(def)
		if err != nil {
			return nil, err
		}
		doc.Components.Schemas[ComponentName(def.Marker)] = openapi3.NewSchemaRef("", s)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid marker document: %w", err)
	}
	return doc, nil
}

// IsObject returns true if the given schema represents an object type
func IsObject(prop *openapi3.Schema) bool {
	return TypeOf(prop) == openapi3.TypeObject
}

// IsPrimitive returns true for string, integer, number and boolean schemas.
func IsPrimitive(prop *openapi3.Schema) bool {
	switch TypeOf(prop) {
	case openapi3.TypeString,
		openapi3.TypeInteger,
		openapi3.TypeNumber,
		openapi3.TypeBoolean:
		return true
	default:
		return false
	}
}

// TypeOf returns the first type of the schema, or "" for untyped schemas.
func TypeOf(s *openapi3.Schema) string {
	if s == nil || s.Type == nil || len(*s.Type) == 0 {
		return ""
	}
	return (*s.Type)[0]
}
