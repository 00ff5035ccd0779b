package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoScanRootsConfigured is returned by accessors when no root was ever scanned
// and no root source yields one. It is distinct from an empty result.
var ErrNoScanRootsConfigured = errors.New("no scan roots configured")

// IntrospectionError wraps a failure of the introspector while merging roots.
// The roots stay recorded as scanned.
type IntrospectionError struct {
	Op     string
	Roots  []string
	Marker TypeRef
	Err    error
}

func (e *IntrospectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "introspection failed: %s", e.Op)
	if !e.Marker.IsZero() {
		fmt.Fprintf(&b, " for marker %s", e.Marker)
	}
	if len(e.Roots) > 0 {
		fmt.Fprintf(&b, " in roots [%s]", strings.Join(e.Roots, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

// MalformedMarkerError reports a meta-marked type that cannot be used as a marker,
// for example one that declares no legal placement. The marker is skipped.
type MalformedMarkerError struct {
	Marker TypeRef
	Reason string
}

func (e *MalformedMarkerError) Error() string {
	return fmt.Sprintf("malformed marker %s: %s", e.Marker, e.Reason)
}

func IsNoScanRootsErr(err error) bool {
	return errors.Is(err, ErrNoScanRootsConfigured)
}

func IsIntrospectionErr(err error) bool {
	var iErr *IntrospectionError
	return errors.As(err, &iErr)
}

func IsMalformedMarkerErr(err error) bool {
	var mErr *MalformedMarkerError
	return errors.As(err, &mErr)
}
