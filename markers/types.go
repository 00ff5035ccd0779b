package markers

import (
	"go/ast"
	"go/token"
	"reflect"

	"github.com/fmeng/anstore/core"
)

// Markers of the anstore: namespace, used on marker type declarations.
const (
	MetaMarker     = "anstore:marker"
	TargetMarker   = "anstore:target"
	RequiresMarker = "anstore:requires"

	namespace = "anstore:"
)

// ArgumentType represents the type of marker arguments.
type ArgumentType int

const (
	// InvalidType represents a type that can't be parsed.
	InvalidType ArgumentType = iota
	// StringType is a string argument.
	StringType
	// IntType is an integer argument.
	IntType
	// FloatType is a floating point argument.
	FloatType
	// BoolType is a boolean argument.
	BoolType
	// SliceType is a slice argument.
	SliceType
	// MapType is a map argument with string keys.
	MapType
	// AnyType matches any type (any / interface{}).
	AnyType
)

func (t ArgumentType) String() string {
	switch t {
	case StringType:
		return "string"
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case BoolType:
		return "bool"
	case SliceType:
		return "slice"
	case MapType:
		return "map"
	case AnyType:
		return "any"
	default:
		return "invalid"
	}
}

// Argument describes the type and properties of a marker argument.
type Argument struct {
	// Type is the type of this argument.
	Type ArgumentType
	// Optional indicates if this argument is optional.
	Optional bool
	// ItemType is the type of slice items or map values.
	ItemType *Argument
}

// Comment is one marker comment attached to a declaration.
type Comment struct {
	// Name is the marker name as written, e.g. "Store", "anns.Store" or "anstore:target".
	Name string
	// Args is everything after the first '='.
	Args string
	// Text is the full marker text starting with '+'.
	Text     string
	Position token.Position
}

// Qualifier returns the package qualifier of the name ("anns" for "anns.Store").
func (c Comment) Qualifier() string {
	q, _ := splitQualified(c.Name)
	return q
}

// Local returns the unqualified marker name.
func (c Comment) Local() string {
	_, n := splitQualified(c.Name)
	return n
}

// Namespaced reports whether the comment belongs to the anstore: namespace.
func (c Comment) Namespaced() bool {
	return len(c.Name) > len(namespace) && c.Name[:len(namespace)] == namespace
}

// Comments is the ordered list of marker comments of one declaration.
type Comments []Comment

// Get returns the first comment named name.
func (cs Comments) Get(name string) (Comment, bool) {
	for _, c := range cs {
		if c.Name == name {
			return c, true
		}
	}
	return Comment{}, false
}

func (cs Comments) Has(name string) bool {
	_, ok := cs.Get(name)
	return ok
}

// Import is an import of a source file.
type Import struct {
	// Name is the explicit import name, empty when the package name is used.
	Name string
	Path string
}

// File holds every marked or markable declaration of one source file.
type File struct {
	Name    string
	Package string
	Imports []Import
	Types   []*TypeInfo
	Methods []*MethodInfo
}

// TypeInfo contains information about a parsed Go type and its markers.
type TypeInfo struct {
	// Name is the type name.
	Name string
	// Markers are the markers associated with this type.
	Markers Comments
	// Fields are the struct fields (if this is a struct type).
	Fields []*FieldInfo
	// Doc is the documentation comment without marker lines.
	Doc string
	// Type is the type expression of the declaration.
	Type ast.Expr
	// Alias is set for `type A = B`.
	Alias    bool
	Position token.Position
}

// IsStruct reports whether the type is declared as a struct.
func (t *TypeInfo) IsStruct() bool {
	_, ok := t.Type.(*ast.StructType)
	return ok
}

// FieldInfo contains information about a struct field and its markers.
type FieldInfo struct {
	// Name is the field name; embedded fields are named after their type.
	Name string
	// Markers are the markers associated with this field.
	Markers Comments
	// Tag is the struct tag.
	Tag reflect.StructTag
	// Doc is the documentation comment.
	Doc      string
	Type     ast.Expr
	Embedded bool
	Position token.Position
}

// MethodInfo contains information about a method and its markers.
type MethodInfo struct {
	Name string
	// Receiver is the receiver base type name, without pointer or type parameters.
	Receiver string
	Pointer  bool
	Markers  Comments
	Doc      string
	Position token.Position
}

// Ref returns the method reference for a receiver living in pkgPath.
func (m *MethodInfo) Ref(pkgPath string) core.MethodRef {
	return core.MethodRef{
		Receiver:        core.TypeRef{PkgPath: pkgPath, Name: m.Receiver},
		Name:            m.Name,
		PointerReceiver: m.Pointer,
	}
}
