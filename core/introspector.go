package core

import "context"

// Introspector answers questions about declarations under a set of scan roots.
// Every method is a pure read. The registry serializes calls made during a merge,
// and implementations must not call back into the registry that invokes them.
type Introspector interface {
	// MetaMarked returns markers visible within scope, in a stable discovery order.
	MetaMarked(ctx context.Context, scope []string) ([]TypeRef, error)
	// Placements returns the legal placements declared by marker. It returns a
	// *MalformedMarkerError when the marker cannot be used.
	Placements(ctx context.Context, marker TypeRef) (PlacementSet, error)
	TypesWith(ctx context.Context, marker TypeRef, scope []string) ([]TypeRef, error)
	FieldsWith(ctx context.Context, marker TypeRef, scope []string) ([]FieldRef, error)
	MethodsWith(ctx context.Context, marker TypeRef, scope []string) ([]MethodRef, error)
	// InstanceOf returns the marker value attached to decl.
	InstanceOf(ctx context.Context, marker TypeRef, decl Declaration) (Instance, error)
}
