package markers

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/inspector"
)

// Collector collects marker comments from parsed Go files.
// It keeps no state and may be shared between goroutines.
type Collector struct{}

// NewCollector creates a new marker collector.
func NewCollector() *Collector {
	return &Collector{}
}

// ParseSource parses markers from Go source code provided as a string.
func (c *Collector) ParseSource(filename string, src string) (*File, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	return c.Collect(fset, file), nil
}

// ParseFile parses all markers in a Go source file.
func (c *Collector) ParseFile(fset *token.FileSet, filename string) (*File, error) {
	file, err := parser.ParseFile(fset, filename, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filename, err)
	}
	return c.Collect(fset, file), nil
}

// Collect walks the top-level type and method declarations of file.
// Types declared inside function bodies are not addressable and are skipped.
func (c *Collector) Collect(fset *token.FileSet, file *ast.File) *File {
	out := &File{
		Name:    fset.Position(file.Package).Filename,
		Package: file.Name.Name,
		Imports: collectImports(file),
	}

	nodeFilter := []ast.Node{
		(*ast.GenDecl)(nil),
		(*ast.FuncDecl)(nil),
	}

	insp := inspector.New([]*ast.File{file})
	insp.WithStack(nodeFilter, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return false
		}
		// stack[0] is the file.
		if len(stack) != 2 {
			return false
		}
		switch node := n.(type) {
		case *ast.GenDecl:
			if node.Tok != token.TYPE {
				return false
			}
			for _, spec := range node.Specs {
				if typeSpec, ok := spec.(*ast.TypeSpec); ok {
					out.Types = append(out.Types, c.buildTypeInfo(fset, typeSpec, node))
				}
			}
		case *ast.FuncDecl:
			if m := c.buildMethodInfo(fset, node); m != nil {
				out.Methods = append(out.Methods, m)
			}
		}
		return false
	})

	return out
}

func collectImports(file *ast.File) []Import {
	imports := make([]Import, 0, len(file.Imports))
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		imp := Import{Path: path}
		if spec.Name != nil {
			imp.Name = spec.Name.Name
		}
		imports = append(imports, imp)
	}
	return imports
}

// buildTypeInfo creates a TypeInfo from an AST type spec.
func (c *Collector) buildTypeInfo(fset *token.FileSet, typeSpec *ast.TypeSpec, genDecl *ast.GenDecl) *TypeInfo {
	// Markers from the GenDecl apply if it's a single type declaration
	var markers Comments
	docGroup := typeSpec.Doc
	if len(genDecl.Specs) == 1 {
		markers = append(markers, c.commentMarkers(fset, genDecl.Doc)...)
		if docGroup == nil {
			docGroup = genDecl.Doc
		}
	}
	markers = append(markers, c.commentMarkers(fset, typeSpec.Doc)...)

	info := &TypeInfo{
		Name:     typeSpec.Name.Name,
		Markers:  markers,
		Doc:      c.extractDoc(docGroup),
		Type:     typeSpec.Type,
		Alias:    typeSpec.Assign.IsValid(),
		Position: fset.Position(typeSpec.Name.Pos()),
	}

	// Build field info if this is a struct
	if structType, ok := typeSpec.Type.(*ast.StructType); ok && structType.Fields != nil {
		for _, field := range structType.Fields.List {
			fieldMarkers := append(c.commentMarkers(fset, field.Doc), c.commentMarkers(fset, field.Comment)...)
			tag := reflect.StructTag(c.parseStructTag(field.Tag))
			doc := c.extractDoc(field.Doc)

			// Handle both named and anonymous fields
			if len(field.Names) > 0 {
				for _, name := range field.Names {
					info.Fields = append(info.Fields, &FieldInfo{
						Name:     name.Name,
						Markers:  fieldMarkers,
						Tag:      tag,
						Doc:      doc,
						Type:     field.Type,
						Position: fset.Position(name.Pos()),
					})
				}
				continue
			}
			name := embeddedName(field.Type)
			if name == "" {
				continue
			}
			info.Fields = append(info.Fields, &FieldInfo{
				Name:     name,
				Markers:  fieldMarkers,
				Tag:      tag,
				Doc:      doc,
				Type:     field.Type,
				Embedded: true,
				Position: fset.Position(field.Type.Pos()),
			})
		}
	}

	return info
}

// buildMethodInfo returns nil for plain functions.
func (c *Collector) buildMethodInfo(fset *token.FileSet, fn *ast.FuncDecl) *MethodInfo {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return nil
	}
	recv := fn.Recv.List[0].Type
	_, pointer := recv.(*ast.StarExpr)
	name := receiverTypeName(recv)
	if name == "" {
		return nil
	}
	return &MethodInfo{
		Name:     fn.Name.Name,
		Receiver: name,
		Pointer:  pointer,
		Markers:  c.commentMarkers(fset, fn.Doc),
		Doc:      c.extractDoc(fn.Doc),
		Position: fset.Position(fn.Name.Pos()),
	}
}

// commentMarkers returns the marker comments of a comment group.
func (c *Collector) commentMarkers(fset *token.FileSet, group *ast.CommentGroup) Comments {
	if group == nil {
		return nil
	}
	var out Comments
	for _, comment := range group.List {
		if m, ok := ParseComment(comment.Text, fset.Position(comment.Pos())); ok {
			out = append(out, m)
		}
	}
	return out
}

// receiverTypeName strips pointers and type parameters: *T[P] -> T.
func receiverTypeName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StarExpr:
		return receiverTypeName(e.X)
	case *ast.ParenExpr:
		return receiverTypeName(e.X)
	case *ast.IndexExpr:
		return receiverTypeName(e.X)
	case *ast.IndexListExpr:
		return receiverTypeName(e.X)
	}
	return ""
}

// embeddedName names an embedded field after its type: T, *T, pkg.T and T[P] all give T.
func embeddedName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.SelectorExpr:
		return e.Sel.Name
	case *ast.StarExpr:
		return embeddedName(e.X)
	case *ast.IndexExpr:
		return embeddedName(e.X)
	case *ast.IndexListExpr:
		return embeddedName(e.X)
	}
	return receiverTypeName(expr)
}

// parseStructTag parses a struct tag into a reflect.StructTag.
func (c *Collector) parseStructTag(tag *ast.BasicLit) string {
	if tag == nil {
		return ""
	}
	if s, err := strconv.Unquote(tag.Value); err == nil {
		return s
	}
	return ""
}

// extractDoc extracts documentation text from a comment group, leaving out marker lines.
func (c *Collector) extractDoc(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}

	var lines []string
	for _, comment := range doc.List {
		if isMarkerComment(comment.Text) {
			continue
		}
		line := comment.Text
		if strings.HasPrefix(line, "//") {
			line = strings.TrimSpace(line[2:])
		} else if strings.HasPrefix(line, "/*") && strings.HasSuffix(line, "*/") {
			line = strings.TrimSpace(line[2 : len(line)-2])
		}
		if line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}
