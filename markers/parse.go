package markers

import (
	"fmt"
	"go/token"
	"strconv"
	"strings"
)

// Parse parses marker text such as `+anns.Store=table="users",shard=2` into
// argument values keyed by argument name.
func (d *Definition) Parse(markerText string) (map[string]any, error) {
	// Remove leading "+" if present
	markerText = strings.TrimPrefix(strings.TrimSpace(markerText), "+")

	// Split marker into name and arguments
	name, args := splitMarker(markerText)
	if _, local := splitQualified(name); local != d.Marker.Name {
		return nil, fmt.Errorf("marker name mismatch: expected %s, got %s", d.Marker.Name, name)
	}

	out := make(map[string]any)

	// If no arguments, return empty values
	if args == "" {
		return out, nil
	}

	if err := d.parseArguments(args, out); err != nil {
		return nil, fmt.Errorf("failed to parse arguments of %s: %w", name, err)
	}
	return out, nil
}

// parseArguments parses the argument string into out.
func (d *Definition) parseArguments(args string, out map[string]any) error {
	if d.Scalar {
		v, err := parseValue(args, d.Fields[ScalarArgument])
		if err != nil {
			return err
		}
		out[ScalarArgument] = v
		return nil
	}

	if len(d.Fields) == 0 {
		return fmt.Errorf("marker takes no arguments")
	}

	if indexTopLevel(args, '=') < 0 {
		// If no "=" found, treat as anonymous argument for the only field
		if len(d.Fields) == 1 {
			name := d.Order[0]
			v, err := parseValue(args, d.Fields[name])
			if err != nil {
				return fmt.Errorf("argument %s: %w", name, err)
			}
			out[name] = v
			return nil
		}
		return fmt.Errorf("expected named arguments")
	}

	pairs, err := parseKeyValuePairs(args)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		key, value := pair[0], pair[1]
		argType, exists := d.Fields[key]
		if !exists {
			return fmt.Errorf("unknown argument: %s", key)
		}
		if _, dup := out[key]; dup {
			return fmt.Errorf("duplicate argument: %s", key)
		}
		v, err := parseValue(value, argType)
		if err != nil {
			return fmt.Errorf("argument %s: %w", key, err)
		}
		out[key] = v
	}
	return nil
}

// splitMarker splits a marker into name and arguments.
// Example: "anns.Store=table=users" -> ("anns.Store", "table=users")
func splitMarker(markerText string) (string, string) {
	parts := strings.SplitN(markerText, "=", 2)
	if len(parts) == 1 {
		return strings.TrimSpace(parts[0]), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// splitQualified splits "pkg.Name" into ("pkg", "Name").
func splitQualified(name string) (string, string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// parseKeyValuePairs parses a string like "key1=value1,key2=value2" into ordered pairs.
func parseKeyValuePairs(args string) ([][2]string, error) {
	var result [][2]string

	i := 0
	for i < len(args) {
		// Skip whitespace
		for i < len(args) && args[i] == ' ' {
			i++
		}
		if i >= len(args) {
			break
		}

		// Find key
		keyStart := i
		for i < len(args) && args[i] != '=' {
			if args[i] == ',' {
				return nil, fmt.Errorf("missing '=' after %q", strings.TrimSpace(args[keyStart:i]))
			}
			i++
		}
		if i >= len(args) {
			return nil, fmt.Errorf("missing '=' in key=value pair")
		}
		key := strings.TrimSpace(args[keyStart:i])
		if key == "" {
			return nil, fmt.Errorf("empty argument name")
		}
		i++ // skip '='

		// Find value, respecting quotes and braces
		valueStart := i
		end := indexTopLevel(args[i:], ',')
		if end < 0 {
			i = len(args)
		} else {
			i += end
		}
		result = append(result, [2]string{key, strings.TrimSpace(args[valueStart:i])})

		// Skip comma
		if i < len(args) && args[i] == ',' {
			i++
		}
	}

	return result, nil
}

// parseValue parses a string value according to the argument type.
func parseValue(value string, argType Argument) (any, error) {
	switch argType.Type {
	case StringType:
		return unquoteIfQuoted(value), nil

	case IntType:
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer: %s", value)
		}
		return intVal, nil

	case FloatType:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float: %s", value)
		}
		return floatVal, nil

	case BoolType:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean: %s", value)
		}
		return boolVal, nil

	case SliceType:
		return parseSlice(value, argType)

	case MapType:
		return parseMap(value, argType)

	case AnyType:
		// For AnyType, try to guess the type and parse accordingly
		return parseAnyType(value)

	default:
		return nil, fmt.Errorf("unsupported argument type: %v", argType.Type)
	}
}

// parseSlice parses a slice value like "{val1,val2,val3}" or "val1;val2;val3".
func parseSlice(value string, argType Argument) (any, error) {
	if argType.ItemType == nil {
		return nil, fmt.Errorf("slice type missing item type")
	}

	var items []string

	// Handle curly brace format: {val1,val2,val3}
	if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
		inner := strings.TrimSpace(value[1 : len(value)-1])
		if inner == "" {
			return []any{}, nil
		}
		items = splitTopLevel(inner, ',')
	} else {
		// Handle semicolon format: val1;val2;val3
		items = splitTopLevel(value, ';')
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		v, err := parseValue(item, *argType.ItemType)
		if err != nil {
			return nil, fmt.Errorf("slice item: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseMap parses a map value like "{key1:val1,key2:val2}".
func parseMap(value string, argType Argument) (any, error) {
	if argType.ItemType == nil {
		return nil, fmt.Errorf("map type missing value type")
	}

	// Must be in curly brace format
	if !strings.HasPrefix(value, "{") || !strings.HasSuffix(value, "}") {
		return nil, fmt.Errorf("map values must be in {key:value,key:value} format")
	}

	out := make(map[string]any)
	inner := strings.TrimSpace(value[1 : len(value)-1])
	if inner == "" {
		return out, nil
	}

	for _, pair := range splitTopLevel(inner, ',') {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		sep := indexTopLevel(pair, ':')
		if sep < 0 {
			return nil, fmt.Errorf("invalid map pair: %s (expected key:value)", pair)
		}
		key := unquoteIfQuoted(strings.TrimSpace(pair[:sep]))
		v, err := parseValue(strings.TrimSpace(pair[sep+1:]), *argType.ItemType)
		if err != nil {
			return nil, fmt.Errorf("map value for key %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

// parseAnyType tries to guess the type and parse accordingly.
func parseAnyType(value string) (any, error) {
	if isQuoted(value) {
		return unquoteIfQuoted(value), nil
	}

	anyArg := &Argument{Type: AnyType}
	if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
		inner := value[1 : len(value)-1]
		if inner != "" && indexTopLevel(splitTopLevel(inner, ',')[0], ':') >= 0 {
			return parseMap(value, Argument{Type: MapType, ItemType: anyArg})
		}
		return parseSlice(value, Argument{Type: SliceType, ItemType: anyArg})
	}

	// Try boolean
	if boolVal, err := strconv.ParseBool(value); err == nil {
		return boolVal, nil
	}

	// Try integer
	if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
		return intVal, nil
	}

	// Try float
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal, nil
	}

	// Default to string
	return value, nil
}

// indexTopLevel returns the index of the first ch outside quotes and braces, or -1.
func indexTopLevel(s string, ch byte) int {
	depth := 0
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuotes = !inQuotes
		case inQuotes:
		case c == '{':
			depth++
		case c == '}':
			depth--
		case c == ch && depth == 0:
			return i
		}
	}
	return -1
}

// splitTopLevel splits s on sep outside quotes and braces.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	for {
		i := indexTopLevel(s, sep)
		if i < 0 {
			return append(parts, s)
		}
		parts = append(parts, s[:i])
		s = s[i+1:]
	}
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

func unquoteIfQuoted(s string) string {
	if !isQuoted(s) {
		return s
	}
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s[1 : len(s)-1]
}

// isMarkerComment checks if a comment text is a marker (starts with +).
func isMarkerComment(comment string) bool {
	if len(comment) < 3 || !strings.HasPrefix(comment, "//") {
		return false
	}
	// Remove "//" prefix
	text := strings.TrimSpace(comment[2:])
	return len(text) > 0 && text[0] == '+'
}

// extractMarkerText extracts the marker text from a comment, removing "//" and whitespace.
func extractMarkerText(comment string) string {
	if len(comment) < 2 {
		return ""
	}
	return strings.TrimSpace(comment[2:])
}

// ParseComment turns a raw "// +Name=args" comment into a Comment. It reports
// false for ordinary comments and for markers owned by other tools.
func ParseComment(raw string, pos token.Position) (Comment, bool) {
	if !isMarkerComment(raw) {
		return Comment{}, false
	}
	text := extractMarkerText(raw)
	name, args := splitMarker(text[1:])
	if !validMarkerName(name) {
		return Comment{}, false
	}
	return Comment{Name: name, Args: args, Text: text, Position: pos}, true
}

// validMarkerName accepts Ident, pkg.Ident and the anstore: namespace.
func validMarkerName(name string) bool {
	if strings.HasPrefix(name, namespace) {
		return token.IsIdentifier(name[len(namespace):])
	}
	if strings.Contains(name, ":") {
		return false
	}
	q, local := splitQualified(name)
	if q != "" && !token.IsIdentifier(q) {
		return false
	}
	return token.IsIdentifier(local)
}
