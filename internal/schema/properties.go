package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Properties is the extension map carried by every schema entity: JSON
// fields not covered by the entity's declared attributes, preserved
// verbatim so that unknown channel data survives a parse/serialize
// round trip. An explicit JSON null is kept as the literal "null" and is
// distinct from an absent key.
type Properties map[string]json.RawMessage

// Has reports whether the key is present, including keys whose value is
// an explicit null.
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// IsNull reports whether the key is present with an explicit null value.
func (p Properties) IsNull(key string) bool {
	raw, ok := p[key]
	return ok && isJSONNull(raw)
}

// GetString returns the value at key if it is a JSON string.
func (p Properties) GetString(key string) (string, bool) {
	raw, ok := p[key]
	if !ok || isJSONNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// GetBool returns the value at key if it is a JSON boolean.
func (p Properties) GetBool(key string) (bool, bool) {
	raw, ok := p[key]
	if !ok || isJSONNull(raw) {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}

// GetNumber returns the value at key if it is a JSON number.
func (p Properties) GetNumber(key string) (float64, bool) {
	raw, ok := p[key]
	if !ok || isJSONNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// GetObject unmarshals the value at key into target. Returns false if
// the key is absent, null, or does not match the target's shape.
func (p Properties) GetObject(key string, target any) bool {
	raw, ok := p[key]
	if !ok || isJSONNull(raw) {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}

// GetRaw returns the raw JSON at key.
func (p Properties) GetRaw(key string) (json.RawMessage, bool) {
	raw, ok := p[key]
	return raw, ok
}

// Set marshals value and stores it at key.
func (p Properties) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding property %q: %w", key, err)
	}
	p[key] = raw
	return nil
}

// Clone returns a copy of the map sharing the underlying raw values.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// nullSet tracks declared fields that arrived as explicit JSON null, so
// serialization can reproduce the null instead of dropping the key.
type nullSet map[string]struct{}

func (n nullSet) add(key string) nullSet {
	if n == nil {
		n = make(nullSet)
	}
	n[key] = struct{}{}
	return n
}

func (n nullSet) has(key string) bool {
	_, ok := n[key]
	return ok
}

// splitObject decodes a JSON object, moves the declared keys into out
// (nil raw value recorded in the returned nullSet), and returns the
// remaining keys as a Properties map.
func splitObject(data []byte, declared []string, out map[string]json.RawMessage) (Properties, nullSet, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}
	var nulls nullSet
	for _, key := range declared {
		v, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)
		if isJSONNull(v) {
			nulls = nulls.add(key)
			continue
		}
		out[key] = v
	}
	props := make(Properties, len(raw))
	for k, v := range raw {
		props[k] = v
	}
	return props, nulls, nil
}

// mergeObject serializes declared key/value pairs, explicit nulls, and
// extension properties into one JSON object with deterministic key order.
// Declared keys win over extension keys of the same name.
func mergeObject(declared map[string]json.RawMessage, nulls nullSet, props Properties) ([]byte, error) {
	merged := make(map[string]json.RawMessage, len(declared)+len(nulls)+len(props))
	for k, v := range props {
		merged[k] = v
	}
	for k := range nulls {
		merged[k] = json.RawMessage("null")
	}
	for k, v := range declared {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(merged[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalField encodes a single declared field value into the target map,
// skipping nil pointers and empty optional values.
func marshalField(target map[string]json.RawMessage, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding field %q: %w", key, err)
	}
	target[key] = raw
	return nil
}
