// Package anns declares the markers used by the shop.
package anns

// Store marks a persisted entity or column.
// +anstore:marker
// +anstore:target=type;field
// +anstore:requires=">= 0.1.0"
type Store struct {
	Table string
	Shard int `marker:"shard,optional"`
}

// Audit marks anything whose changes are audited.
// +anstore:marker
// +anstore:target={type,field,method}
type Audit struct {
	Level string
}

// +anstore:marker
// +anstore:target=type
type ClassOnly struct{}

// +anstore:marker
// +anstore:target=field
type FieldOnly struct{}

// +anstore:marker
// +anstore:target=method
type MethodOnly struct{}

// Broken declares no target.
// +anstore:marker
type Broken struct{}

// Future needs a newer anstore.
// +anstore:marker
// +anstore:target=type
// +anstore:requires=">= 99.0"
type Future struct{}

// Audited inherits everything from Audit.
type Audited Audit

// Table is a scalar marker naming a table.
// +anstore:marker
// +anstore:target=type
type Table string

// Plain is not a marker.
type Plain struct{}
