package dynamic

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// ValueKind identifies which member of the Value union is populated.
type ValueKind int

const (
	InvalidValue ValueKind = iota
	BoolValue
	Int32Value
	Int64Value
	Uint32Value
	Uint64Value
	Float32Value
	Float64Value
	StringValue
	BytesValue
	// EnumValue holds an enum number. The name, if any, is resolved through
	// the field's enum descriptor.
	EnumValue
	MessageValue
	ListValue
	MapValue
)

var valueKindNames = [...]string{
	InvalidValue: "invalid",
	BoolValue:    "bool",
	Int32Value:   "int32",
	Int64Value:   "int64",
	Uint32Value:  "uint32",
	Uint64Value:  "uint64",
	Float32Value: "float32",
	Float64Value: "float64",
	StringValue:  "string",
	BytesValue:   "bytes",
	EnumValue:    "enum",
	MessageValue: "message",
	ListValue:    "list",
	MapValue:     "map",
}

func (k ValueKind) String() string {
	if k < 0 || int(k) >= len(valueKindNames) {
		return valueKindNames[InvalidValue]
	}
	return valueKindNames[k]
}

// Value is the contents of a single field: a scalar, an enum number, a
// message, a list, or a map. The zero Value is invalid.
//
// Accessor methods panic if called for a kind that the value does not hold,
// in the same way as protoreflect.Value.
type Value struct {
	kind ValueKind
	num  uint64
	ref  any // string, []byte, *Message, *List, or *Map
}

func ValueOfBool(v bool) Value {
	if v {
		return Value{kind: BoolValue, num: 1}
	}
	return Value{kind: BoolValue}
}

func ValueOfInt32(v int32) Value {
	return Value{kind: Int32Value, num: uint64(int64(v))}
}

func ValueOfInt64(v int64) Value {
	return Value{kind: Int64Value, num: uint64(v)}
}

func ValueOfUint32(v uint32) Value {
	return Value{kind: Uint32Value, num: uint64(v)}
}

func ValueOfUint64(v uint64) Value {
	return Value{kind: Uint64Value, num: v}
}

func ValueOfFloat32(v float32) Value {
	return Value{kind: Float32Value, num: uint64(math.Float32bits(v))}
}

func ValueOfFloat64(v float64) Value {
	return Value{kind: Float64Value, num: math.Float64bits(v)}
}

func ValueOfString(v string) Value {
	return Value{kind: StringValue, ref: v}
}

// ValueOfBytes returns a bytes value. The slice is not copied.
func ValueOfBytes(v []byte) Value {
	return Value{kind: BytesValue, ref: v}
}

func ValueOfEnum(number int32) Value {
	return Value{kind: EnumValue, num: uint64(int64(number))}
}

func ValueOfMessage(m *Message) Value {
	return Value{kind: MessageValue, ref: m}
}

func ValueOfList(l *List) Value {
	return Value{kind: ListValue, ref: l}
}

func ValueOfMap(m *Map) Value {
	return Value{kind: MapValue, ref: m}
}

// ValueOf returns a Value for the given Go value, which must be one of
// bool, int32, int64, uint32, uint64, float32, float64, string, []byte,
// *Message, *List, or *Map. It panics for any other type.
func ValueOf(v any) Value {
	switch v := v.(type) {
	case bool:
		return ValueOfBool(v)
	case int32:
		return ValueOfInt32(v)
	case int64:
		return ValueOfInt64(v)
	case uint32:
		return ValueOfUint32(v)
	case uint64:
		return ValueOfUint64(v)
	case float32:
		return ValueOfFloat32(v)
	case float64:
		return ValueOfFloat64(v)
	case string:
		return ValueOfString(v)
	case []byte:
		return ValueOfBytes(v)
	case *Message:
		return ValueOfMessage(v)
	case *List:
		return ValueOfList(v)
	case *Map:
		return ValueOfMap(v)
	default:
		panic(fmt.Sprintf("dynamic: invalid type %T for Value", v))
	}
}

// Kind returns which member of the union is populated.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsValid returns true if v is not the zero Value.
func (v Value) IsValid() bool {
	return v.kind != InvalidValue
}

func (v Value) mustBe(k ValueKind) {
	if v.kind != k {
		panic(fmt.Sprintf("dynamic: value is %v, not %v", v.kind, k))
	}
}

func (v Value) Bool() bool {
	v.mustBe(BoolValue)
	return v.num != 0
}

func (v Value) Int32() int32 {
	v.mustBe(Int32Value)
	return int32(v.num)
}

func (v Value) Int64() int64 {
	v.mustBe(Int64Value)
	return int64(v.num)
}

func (v Value) Uint32() uint32 {
	v.mustBe(Uint32Value)
	return uint32(v.num)
}

func (v Value) Uint64() uint64 {
	v.mustBe(Uint64Value)
	return v.num
}

func (v Value) Float32() float32 {
	v.mustBe(Float32Value)
	return math.Float32frombits(uint32(v.num))
}

func (v Value) Float64() float64 {
	v.mustBe(Float64Value)
	return math.Float64frombits(v.num)
}

// String returns the contents of a string value. For other kinds, it
// returns a printable representation of the value, as fmt would.
func (v Value) String() string {
	switch v.kind {
	case StringValue:
		return v.ref.(string)
	case InvalidValue:
		return "<invalid>"
	case BoolValue:
		return strconv.FormatBool(v.Bool())
	case Int32Value, Int64Value, EnumValue:
		return strconv.FormatInt(int64(v.num), 10)
	case Uint32Value, Uint64Value:
		return strconv.FormatUint(v.num, 10)
	case Float32Value:
		return strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32)
	case Float64Value:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case BytesValue:
		return fmt.Sprintf("%q", v.ref.([]byte))
	default:
		return fmt.Sprint(v.ref)
	}
}

func (v Value) Bytes() []byte {
	v.mustBe(BytesValue)
	return v.ref.([]byte)
}

// Enum returns the enum number of an enum value.
func (v Value) Enum() int32 {
	v.mustBe(EnumValue)
	return int32(v.num)
}

func (v Value) Message() *Message {
	v.mustBe(MessageValue)
	return v.ref.(*Message)
}

func (v Value) List() *List {
	v.mustBe(ListValue)
	return v.ref.(*List)
}

func (v Value) Map() *Map {
	v.mustBe(MapValue)
	return v.ref.(*Map)
}

// Interface returns the contents of v as a Go value of one of the types
// accepted by ValueOf. Enum values are returned as int32.
func (v Value) Interface() any {
	switch v.kind {
	case BoolValue:
		return v.Bool()
	case Int32Value:
		return v.Int32()
	case Int64Value:
		return v.Int64()
	case Uint32Value:
		return v.Uint32()
	case Uint64Value:
		return v.Uint64()
	case Float32Value:
		return v.Float32()
	case Float64Value:
		return v.Float64()
	case EnumValue:
		return v.Enum()
	case InvalidValue:
		return nil
	default:
		return v.ref
	}
}

// Equal reports whether v and other hold the same kind and equal contents.
// Floating point values are compared by their bit patterns, so NaN equals
// NaN and 0 does not equal -0. Messages, lists, and maps are compared
// deeply.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case InvalidValue:
		return true
	case StringValue:
		return v.ref.(string) == other.ref.(string)
	case BytesValue:
		return bytes.Equal(v.ref.([]byte), other.ref.([]byte))
	case MessageValue:
		return Equal(v.Message(), other.Message())
	case ListValue:
		return v.List().equal(other.List())
	case MapValue:
		return v.Map().equal(other.Map())
	default:
		return v.num == other.num
	}
}

// contains returns true if v is, or holds somewhere within it, the target
// message.
func (v Value) contains(target *Message) bool {
	switch v.kind {
	case MessageValue:
		return v.Message().contains(target)
	case ListValue:
		for _, e := range v.List().elems {
			if e.contains(target) {
				return true
			}
		}
	case MapValue:
		for _, e := range v.Map().entries {
			if e.contains(target) {
				return true
			}
		}
	}
	return false
}

// adopt records m as the owner of a list or map value about to be stored
// in one of m's fields.
func (v Value) adopt(m *Message) {
	switch v.kind {
	case ListValue:
		v.List().owner = m
	case MapValue:
		v.Map().owner = m
	}
}

// isZero returns true for the zero value of a scalar or enum kind, which is
// what a field without presence holds when it is not set.
func (v Value) isZero() bool {
	switch v.kind {
	case StringValue:
		return v.ref.(string) == ""
	case BytesValue:
		return len(v.ref.([]byte)) == 0
	case MessageValue, ListValue, MapValue, InvalidValue:
		return false
	default:
		return v.num == 0
	}
}

// clone returns a deep copy of v.
func (v Value) clone() Value {
	switch v.kind {
	case BytesValue:
		b := v.ref.([]byte)
		if b == nil {
			return v
		}
		return ValueOfBytes(append([]byte{}, b...))
	case MessageValue:
		return ValueOfMessage(v.Message().Clone())
	case ListValue:
		return ValueOfList(v.List().clone())
	case MapValue:
		return ValueOfMap(v.Map().clone())
	default:
		return v
	}
}
