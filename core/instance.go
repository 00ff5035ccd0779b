package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"go/token"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Instance is the concrete marker value attached to one declaration: the parsed
// arguments, the raw comment text and where it was written.
// Values are plain Go data: string, int64, float64, bool, []any and map[string]any.
type Instance struct {
	marker      TypeRef
	values      map[string]any
	text        string
	position    token.Position
	fingerprint string
}

// NewInstance copies values so the returned Instance cannot be changed through the caller's map.
func NewInstance(marker TypeRef, values map[string]any, text string, position token.Position) Instance {
	inst := Instance{
		marker:   marker,
		values:   copyValues(values),
		text:     text,
		position: position,
	}
	inst.fingerprint = fingerprintOf(marker, inst.values)
	return inst
}

func (i Instance) Marker() TypeRef          { return i.marker }
func (i Instance) Text() string             { return i.text }
func (i Instance) Position() token.Position { return i.position }

// Fingerprint is a stable digest of the marker identity and its argument values.
// Two instances with equal fingerprints carry the same data.
func (i Instance) Fingerprint() string { return i.fingerprint }

// Value returns a single argument value.
func (i Instance) Value(name string) (any, bool) {
	v, ok := i.values[name]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// Values returns a copy of every argument value.
func (i Instance) Values() map[string]any {
	return copyValues(i.values)
}

// Names returns the argument names in sorted order.
func (i Instance) Names() []string {
	names := make([]string, 0, len(i.values))
	for k := range i.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Equal compares marker identity and argument values.
func (i Instance) Equal(other Instance) bool {
	return i.marker == other.marker && i.fingerprint == other.fingerprint
}

func (i Instance) String() string {
	if i.text != "" {
		return i.text
	}
	if len(i.values) == 0 {
		return "+" + i.marker.Name
	}
	b, _ := json.Marshal(i.values)
	return fmt.Sprintf("+%s%s", i.marker.Name, b)
}

func (i Instance) MarshalJSON() ([]byte, error) {
	out := struct {
		Marker   string         `json:"marker"`
		Values   map[string]any `json:"values,omitempty"`
		Text     string         `json:"text,omitempty"`
		Position string         `json:"position,omitempty"`
	}{
		Marker: i.marker.String(),
		Values: i.values,
		Text:   i.text,
	}
	if i.position.IsValid() {
		out.Position = i.position.String()
	}
	return json.Marshal(out)
}

func fingerprintOf(marker TypeRef, values map[string]any) string {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(marker); err == nil {
		err = enc.Encode(values)
		if err == nil {
			sum := sha256.Sum256(buf.Bytes())
			return hex.EncodeToString(sum[:])
		}
	}
	// Values that msgpack cannot encode still need a deterministic digest.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	fmt.Fprintf(h, "%s|", marker)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%#v|", k, values[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func copyValues(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case map[string]any:
		return copyValues(t)
	default:
		return v
	}
}
