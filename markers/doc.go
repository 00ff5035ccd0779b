/*
Package markers parses "marker comments" from Go source code, in the style of
controller-tools, and turns marker type declarations into parse definitions.

Marker comments start with `// +`. A Go type becomes a marker when its doc
comment carries the meta-marker:

	// Store marks a persisted entity.
	// +anstore:marker
	// +anstore:target=type;field
	// +anstore:requires=">= 0.1.0"
	type Store struct {
		Table string
		Shard int `marker:"shard,optional"`
	}

Declarations then use the marker by its type name, qualified with the package
name when the marker lives in another package:

	// +Store=table="users"
	type UserEntity struct {
		// +anns.Store
		Name string
	}

# Marker Syntax

	// +Name
	// +Name=value                 (markers with a single argument)
	// +pkg.Name=key=value,key2=value2

Names containing ':' belong to other tools and are ignored, except for the
anstore: namespace used on marker declarations.

# Supported Argument Types

- Strings: `name="value"` or `name=value`
- Integers: `count=42`
- Floats: `ratio=0.5`
- Booleans: `enabled=true`
- Slices: `items={val1,val2,val3}` or `items=val1;val2;val3`
- Maps: `config={key1:value1,key2:value2}`

# Targets

`+anstore:target` lists where a marker may be used: type, field and method.
A type declared as another marker (`type Audited anns.Store`) inherits the
meta-marker, targets, requirements and arguments of that marker unless it
declares its own.
*/
package markers
