/*
Package anstore indexes Go declarations by the markers written in their comments.

A marker is a Go type whose declaration carries the meta-marker:

	// Store marks a persisted entity.
	// +anstore:marker
	// +anstore:target=type;field
	type Store struct {
		Table string
	}

Declarations use it as a comment, "+anns.Store=table=users", on a type, a struct
field or a method. The Registry scans packages under a growing set of scan roots
and exposes what it found as MarkedUnits and as type, field and method indexes,
published as immutable snapshots.

Scan roots are import paths. A root covers its package and every subpackage.
Roots are added with AddScanRoots or read from configuration (see package config)
every time an accessor runs; each root is scanned once.

The main entry point is New, which wires a Registry to a Go source introspector
using a Config.
*/
package anstore
