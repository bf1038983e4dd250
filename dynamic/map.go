package dynamic

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/jhump/dynproto/desc"
)

// MapKey is a comparable representation of a map key. Only bool, integer,
// and string values can be map keys.
type MapKey struct {
	kind ValueKind
	num  uint64
	str  string
}

// Value returns the key as a Value.
func (k MapKey) Value() Value {
	if k.kind == StringValue {
		return ValueOfString(k.str)
	}
	return Value{kind: k.kind, num: k.num}
}

// MapKey returns v as a map key. It panics if v does not hold a bool,
// integer, or string.
func (v Value) MapKey() MapKey {
	switch v.kind {
	case BoolValue, Int32Value, Int64Value, Uint32Value, Uint64Value:
		return MapKey{kind: v.kind, num: v.num}
	case StringValue:
		return MapKey{kind: StringValue, str: v.ref.(string)}
	default:
		panic(fmt.Sprintf("dynamic: %v value is not a valid map key", v.kind))
	}
}

func (k MapKey) compare(other MapKey) int {
	if k.kind != other.kind {
		return int(k.kind) - int(other.kind)
	}
	switch k.kind {
	case StringValue:
		return strings.Compare(k.str, other.str)
	case Int32Value, Int64Value:
		a, b := int64(k.num), int64(other.num)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	default:
		switch {
		case k.num < other.num:
			return -1
		case k.num > other.num:
			return 1
		}
		return 0
	}
}

// Map is the value of a map field. Iteration is always in key order.
//
// As with List, a Map created with NewMap is unbound; the copy a message
// stores is bound to its field and rejects mismatched keys and values.
type Map struct {
	fd      *desc.FieldDescriptor
	owner   *Message
	entries map[MapKey]Value
}

func NewMap() *Map {
	return &Map{entries: map[MapKey]Value{}}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Get returns the value for the given key and whether it is present.
func (m *Map) Get(key Value) (Value, bool) {
	if m == nil || !isKeyKind(key.kind) {
		return Value{}, false
	}
	v, ok := m.entries[key.MapKey()]
	return v, ok
}

func (m *Map) Has(key Value) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores val under key.
func (m *Map) Set(key, val Value) error {
	key, val, err := m.check(key, val)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = map[MapKey]Value{}
	}
	m.entries[key.MapKey()] = val
	return nil
}

func (m *Map) Delete(key Value) {
	if m != nil && isKeyKind(key.kind) {
		delete(m.entries, key.MapKey())
	}
}

// Keys returns the keys of the map in sorted order.
func (m *Map) Keys() []MapKey {
	if m == nil {
		return nil
	}
	keys := make([]MapKey, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, MapKey.compare)
	return keys
}

// All returns an iterator over the entries of the map, in key order.
func (m *Map) All() iter.Seq2[Value, Value] {
	return func(yield func(Value, Value) bool) {
		for _, k := range m.Keys() {
			if !yield(k.Value(), m.entries[k]) {
				return
			}
		}
	}
}

func isKeyKind(k ValueKind) bool {
	switch k {
	case BoolValue, Int32Value, Int64Value, Uint32Value, Uint64Value, StringValue:
		return true
	default:
		return false
	}
}

func (m *Map) check(key, val Value) (Value, Value, error) {
	if m.fd == nil {
		if !isKeyKind(key.kind) {
			return Value{}, Value{}, &TypeMismatchError{Field: "map key", Expected: "bool, integer or string", Actual: key.kind.String()}
		}
		return key, val, nil
	}
	key, err := checkSingular(m.fd.MapKey(), key)
	if err != nil {
		return Value{}, Value{}, err
	}
	val, err = checkSingular(m.fd.MapValue(), val)
	if err != nil {
		return Value{}, Value{}, err
	}
	if m.owner != nil && val.contains(m.owner) {
		return Value{}, Value{}, cycleError(m.fd)
	}
	return key, val, nil
}

func (m *Map) bind(fd *desc.FieldDescriptor) (*Map, error) {
	ret := &Map{fd: fd, entries: make(map[MapKey]Value, m.Len())}
	if m == nil {
		return ret, nil
	}
	for k, v := range m.entries {
		key, val, err := ret.check(k.Value(), v)
		if err != nil {
			return nil, err
		}
		ret.entries[key.MapKey()] = val
	}
	return ret, nil
}

func (m *Map) equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	if m.Len() == 0 {
		return true
	}
	for k, v := range m.entries {
		ov, ok := other.entries[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (m *Map) clone() *Map {
	if m == nil {
		return nil
	}
	ret := &Map{fd: m.fd, entries: make(map[MapKey]Value, len(m.entries))}
	for k, v := range m.entries {
		ret.entries[k] = v.clone()
	}
	return ret
}

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for k, v := range m.All() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(k.String())
		sb.WriteString(": ")
		sb.WriteString(v.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
