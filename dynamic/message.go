// Package dynamic provides an implementation of protobuf messages whose
// types are only known at runtime, from a *desc.MessageDescriptor.
//
// A Message stores the values of the fields that have been set, keyed by
// field number, along with any unrecognized fields read from the wire.
// Every mutation is checked against the message's descriptor: names and
// numbers must be declared and values must match the declared field type.
// A failed mutation leaves the message unchanged.
//
// Messages can be converted to and from the protobuf binary format, the
// text format, and JSON. They can also be converted to and from generated
// message types and dynamicpb messages (see ConvertTo and ConvertFrom).
//
// A Message is not safe for concurrent mutation. Distinct messages, even
// of the same type, may be used from different goroutines; descriptors are
// immutable and freely shared.
package dynamic

import (
	"bytes"
	"fmt"
	"iter"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jhump/dynproto/desc"
)

// Message is a dynamic protobuf message.
type Message struct {
	md      *desc.MessageDescriptor
	values  map[int32]Value
	unknown []UnknownField
}

// UnknownField represents a field that was parsed from the binary wire
// format for a message, but was not a recognized field number.
type UnknownField struct {
	Number int32
	// Encoding indicates how the unknown field was encoded on the wire.
	Encoding protowire.Type
	// Value holds the value of a varint, fixed32, or fixed64 field. Signed
	// and floating point values are stored in their raw wire form.
	Value uint64
	// Contents holds the payload of a length-delimited field, or the
	// encoded fields between the start and end tags of a group.
	Contents []byte
}

func (uf UnknownField) equal(other UnknownField) bool {
	return uf.Number == other.Number &&
		uf.Encoding == other.Encoding &&
		uf.Value == other.Value &&
		bytes.Equal(uf.Contents, other.Contents)
}

// NewMessage creates a new, empty message of the given type.
func NewMessage(md *desc.MessageDescriptor) *Message {
	return &Message{md: md}
}

// Assignment is a field name and the value to store in it.
type Assignment struct {
	Name  string
	Value Value
}

// Assign is shorthand for constructing an Assignment.
func Assign(name string, v Value) Assignment {
	return Assignment{Name: name, Value: v}
}

// NewMessageWithValues creates a message of the given type and sets the
// given fields, in order. If any assignment fails, its error is returned
// and no message is produced.
func NewMessageWithValues(md *desc.MessageDescriptor, assignments ...Assignment) (*Message, error) {
	m := NewMessage(md)
	for _, a := range assignments {
		if err := m.SetFieldByName(a.Name, a.Value); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Descriptor returns the type of the message.
func (m *Message) Descriptor() *desc.MessageDescriptor {
	return m.md
}

func (m *Message) checkField(fd *desc.FieldDescriptor) error {
	if fd == nil {
		return &FieldNotFoundError{Message: m.md.FullName(), Field: "<nil>"}
	}
	if fd.ContainingMessage() != m.md {
		return &FieldNotFoundError{Message: m.md.FullName(), Field: fd.FullName()}
	}
	return nil
}

func (m *Message) fieldByName(name string) (*desc.FieldDescriptor, error) {
	fd := m.md.FindFieldByName(name)
	if fd == nil {
		return nil, &FieldNotFoundError{Message: m.md.FullName(), Field: name}
	}
	return fd, nil
}

func (m *Message) fieldByNumber(number int32) (*desc.FieldDescriptor, error) {
	fd := m.md.FindFieldByNumber(number)
	if fd == nil {
		return nil, &FieldNotFoundError{Message: m.md.FullName(), Field: strconv.Itoa(int(number))}
	}
	return fd, nil
}

// present returns the value of the given field if it is set. Empty lists
// and maps are never considered set.
func (m *Message) present(fd *desc.FieldDescriptor) (Value, bool) {
	v, ok := m.values[fd.Number()]
	if !ok {
		return Value{}, false
	}
	switch v.kind {
	case ListValue:
		return v, v.List().Len() > 0
	case MapValue:
		return v, v.Map().Len() > 0
	}
	return v, true
}

// GetField returns the value of the given field. If the field is not set,
// its default value is returned: the declared default or zero value for
// scalars, an empty message for message fields, and an empty list or map
// for repeated fields. Mutating a returned default has no effect on m; use
// MutableField for that.
func (m *Message) GetField(fd *desc.FieldDescriptor) (Value, error) {
	if err := m.checkField(fd); err != nil {
		return Value{}, err
	}
	return m.getField(fd), nil
}

// GetFieldByName returns the value of the field with the given name.
func (m *Message) GetFieldByName(name string) (Value, error) {
	fd, err := m.fieldByName(name)
	if err != nil {
		return Value{}, err
	}
	return m.getField(fd), nil
}

// GetFieldByNumber returns the value of the field with the given number.
func (m *Message) GetFieldByNumber(number int32) (Value, error) {
	fd, err := m.fieldByNumber(number)
	if err != nil {
		return Value{}, err
	}
	return m.getField(fd), nil
}

func (m *Message) getField(fd *desc.FieldDescriptor) Value {
	if v, ok := m.values[fd.Number()]; ok {
		return v
	}
	return zeroValue(fd)
}

func zeroValue(fd *desc.FieldDescriptor) Value {
	switch {
	case fd.IsMap():
		return ValueOfMap(&Map{fd: fd, entries: map[MapKey]Value{}})
	case fd.IsList():
		return ValueOfList(&List{fd: fd})
	case fd.Kind().IsMessage():
		return ValueOfMessage(NewMessage(fd.Message()))
	default:
		return scalarFromProto(fd.Kind(), fd.Default())
	}
}

// SetField stores v in the given field. The value's kind must match the
// field's type exactly. Setting a member of a oneof clears the others.
// Setting a field without presence to its zero value clears it.
func (m *Message) SetField(fd *desc.FieldDescriptor, v Value) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	return m.setField(fd, v)
}

// SetFieldByName stores v in the field with the given name.
func (m *Message) SetFieldByName(name string, v Value) error {
	fd, err := m.fieldByName(name)
	if err != nil {
		return err
	}
	return m.setField(fd, v)
}

// SetFieldByNumber stores v in the field with the given number.
func (m *Message) SetFieldByNumber(number int32, v Value) error {
	fd, err := m.fieldByNumber(number)
	if err != nil {
		return err
	}
	return m.setField(fd, v)
}

func (m *Message) setField(fd *desc.FieldDescriptor, v Value) error {
	v, err := checkFieldValue(fd, v)
	if err != nil {
		return err
	}
	if v.contains(m) {
		return cycleError(fd)
	}
	m.internalSetField(fd, v)
	return nil
}

func cycleError(fd *desc.FieldDescriptor) error {
	return fmt.Errorf("field %s: %w", fd.FullName(), ErrCycle)
}

// contains returns true if target is m or is nested anywhere within m.
func (m *Message) contains(target *Message) bool {
	if m == target {
		return true
	}
	for _, v := range m.values {
		if v.contains(target) {
			return true
		}
	}
	return false
}

// replace moves the contents of tmp, a freshly decoded message of the same
// type, into m.
func (m *Message) replace(tmp *Message) {
	m.values, m.unknown = tmp.values, tmp.unknown
	for _, v := range m.values {
		v.adopt(m)
	}
}

// internalSetField stores a value that has already been checked.
func (m *Message) internalSetField(fd *desc.FieldDescriptor, v Value) {
	switch {
	case v.kind == ListValue && v.List().Len() == 0,
		v.kind == MapValue && v.Map().Len() == 0,
		!fd.HasPresence() && v.isZero():
		delete(m.values, fd.Number())
		return
	}
	if od := fd.ContainingOneof(); od != nil {
		for _, other := range od.Fields() {
			if other != fd {
				delete(m.values, other.Number())
			}
		}
	}
	if m.values == nil {
		m.values = map[int32]Value{}
	}
	v.adopt(m)
	m.values[fd.Number()] = v
}

// HasField returns true if the given field is set. It returns false for
// fields that belong to a different message.
func (m *Message) HasField(fd *desc.FieldDescriptor) bool {
	if m.checkField(fd) != nil {
		return false
	}
	_, ok := m.present(fd)
	return ok
}

func (m *Message) HasFieldByName(name string) bool {
	fd := m.md.FindFieldByName(name)
	return fd != nil && m.HasField(fd)
}

func (m *Message) HasFieldByNumber(number int32) bool {
	fd := m.md.FindFieldByNumber(number)
	return fd != nil && m.HasField(fd)
}

// ClearField removes any value stored in the given field.
func (m *Message) ClearField(fd *desc.FieldDescriptor) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	delete(m.values, fd.Number())
	return nil
}

func (m *Message) ClearFieldByName(name string) error {
	fd, err := m.fieldByName(name)
	if err != nil {
		return err
	}
	delete(m.values, fd.Number())
	return nil
}

func (m *Message) ClearFieldByNumber(number int32) error {
	fd, err := m.fieldByNumber(number)
	if err != nil {
		return err
	}
	delete(m.values, fd.Number())
	return nil
}

// MutableField returns the message, list, or map stored in the given field,
// first storing an empty one if the field is not set. Changes made through
// the returned value are visible in m. It returns a *TypeMismatchError for
// scalar fields.
func (m *Message) MutableField(fd *desc.FieldDescriptor) (Value, error) {
	if err := m.checkField(fd); err != nil {
		return Value{}, err
	}
	return m.mutableField(fd)
}

func (m *Message) MutableFieldByName(name string) (Value, error) {
	fd, err := m.fieldByName(name)
	if err != nil {
		return Value{}, err
	}
	return m.mutableField(fd)
}

func (m *Message) MutableFieldByNumber(number int32) (Value, error) {
	fd, err := m.fieldByNumber(number)
	if err != nil {
		return Value{}, err
	}
	return m.mutableField(fd)
}

func (m *Message) mutableField(fd *desc.FieldDescriptor) (Value, error) {
	if v, ok := m.values[fd.Number()]; ok && (v.kind == MessageValue || v.kind == ListValue || v.kind == MapValue) {
		return v, nil
	}
	var v Value
	switch {
	case fd.IsMap():
		v = ValueOfMap(&Map{fd: fd, entries: map[MapKey]Value{}})
	case fd.IsList():
		v = ValueOfList(&List{fd: fd})
	case fd.Kind().IsMessage():
		v = ValueOfMessage(NewMessage(fd.Message()))
		m.internalSetField(fd, v)
		return v, nil
	default:
		return Value{}, &TypeMismatchError{Field: fd.FullName(), Expected: "message, list or map field", Actual: describeField(fd)}
	}
	// empty lists and maps are stored directly so that later appends are
	// visible; they still read as unset until they have contents
	if m.values == nil {
		m.values = map[int32]Value{}
	}
	v.adopt(m)
	m.values[fd.Number()] = v
	return v, nil
}

// Fields returns an iterator over the fields that are set, in declaration
// order, along with their values. The iterator may be used any number of
// times.
func (m *Message) Fields() iter.Seq2[*desc.FieldDescriptor, Value] {
	return func(yield func(*desc.FieldDescriptor, Value) bool) {
		for _, fd := range m.md.Fields() {
			if v, ok := m.present(fd); ok {
				if !yield(fd, v) {
					return
				}
			}
		}
	}
}

// Range calls fn for each set field, in declaration order, until fn
// returns false.
func (m *Message) Range(fn func(*desc.FieldDescriptor, Value) bool) {
	for fd, v := range m.Fields() {
		if !fn(fd, v) {
			return
		}
	}
}

// UnknownFields returns the unrecognized fields read from the wire, in the
// order they were read.
func (m *Message) UnknownFields() []UnknownField {
	if len(m.unknown) == 0 {
		return nil
	}
	ret := make([]UnknownField, len(m.unknown))
	copy(ret, m.unknown)
	return ret
}

// ClearUnknownFields discards all unrecognized fields.
func (m *Message) ClearUnknownFields() {
	m.unknown = nil
}

// Reset clears every field of the message.
func (m *Message) Reset() {
	m.values = nil
	m.unknown = nil
}

// Clone returns a deep copy of the message. Nested messages, lists, maps,
// and byte slices are all copied.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	ret := NewMessage(m.md)
	if len(m.values) > 0 {
		ret.values = make(map[int32]Value, len(m.values))
		for num, v := range m.values {
			cv := v.clone()
			cv.adopt(ret)
			ret.values[num] = cv
		}
	}
	for _, uf := range m.unknown {
		if uf.Contents != nil {
			uf.Contents = append([]byte{}, uf.Contents...)
		}
		ret.unknown = append(ret.unknown, uf)
	}
	return ret
}

// Merge merges src into m. Set scalar fields in src overwrite those in m,
// lists are appended, map entries are added or replaced, and nested
// messages are merged recursively. src must have the same type as m.
func (m *Message) Merge(src *Message) error {
	if src.md != m.md {
		return &TypeMismatchError{Field: m.md.FullName(), Expected: "message " + m.md.FullName(), Actual: "message " + src.md.FullName()}
	}
	if src == m {
		src = m.Clone()
	}
	for fd, v := range src.Fields() {
		switch {
		case fd.IsMap():
			dst, _ := m.mutableField(fd)
			for k, val := range v.Map().All() {
				dst.Map().entries[k.MapKey()] = val.clone()
			}
		case fd.IsList():
			dst, _ := m.mutableField(fd)
			for _, e := range v.List().All() {
				dst.List().elems = append(dst.List().elems, e.clone())
			}
		case fd.Kind().IsMessage():
			if cur, ok := m.values[fd.Number()]; ok {
				if err := cur.Message().Merge(v.Message()); err != nil {
					return err
				}
				continue
			}
			m.internalSetField(fd, v.clone())
		default:
			m.internalSetField(fd, v.clone())
		}
	}
	for _, uf := range src.unknown {
		if uf.Contents != nil {
			uf.Contents = append([]byte{}, uf.Contents...)
		}
		m.unknown = append(m.unknown, uf)
	}
	return nil
}

// Validate returns an error if any required field of m, or of any message
// nested within m, is not set.
func (m *Message) Validate() error {
	for _, fd := range m.md.Fields() {
		v, ok := m.present(fd)
		if !ok {
			if fd.Cardinality() == desc.Required {
				return fmt.Errorf("required field %s is not set", fd.FullName())
			}
			continue
		}
		switch {
		case fd.IsMap():
			if !fd.MapValue().Kind().IsMessage() {
				continue
			}
			for _, val := range v.Map().All() {
				if err := val.Message().Validate(); err != nil {
					return err
				}
			}
		case fd.IsList():
			if !fd.Kind().IsMessage() {
				continue
			}
			for _, e := range v.List().All() {
				if err := e.Message().Validate(); err != nil {
					return err
				}
			}
		case fd.Kind().IsMessage():
			if err := v.Message().Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Equal returns true if m and other have the same type, the same set
// fields with equal values, and the same unknown fields.
func (m *Message) Equal(other *Message) bool {
	return Equal(m, other)
}

// String returns the message in compact text format.
func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	b, err := m.MarshalText()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", m.md.FullName(), err)
	}
	return string(b)
}

// checkFieldValue verifies that v can be stored in fd. Lists and maps are
// copied and bound to fd.
func checkFieldValue(fd *desc.FieldDescriptor, v Value) (Value, error) {
	switch {
	case fd.IsMap():
		if v.kind != MapValue {
			return Value{}, mismatch(fd, v)
		}
		mp, err := v.Map().bind(fd)
		if err != nil {
			return Value{}, err
		}
		return ValueOfMap(mp), nil
	case fd.IsList():
		if v.kind != ListValue {
			return Value{}, mismatch(fd, v)
		}
		l, err := v.List().bind(fd)
		if err != nil {
			return Value{}, err
		}
		return ValueOfList(l), nil
	default:
		return checkSingular(fd, v)
	}
}

// checkSingular verifies that v is a single value of fd's kind. For
// repeated fields, this checks elements.
func checkSingular(fd *desc.FieldDescriptor, v Value) (Value, error) {
	if v.kind != valueKindOf(fd.Kind()) {
		return Value{}, &TypeMismatchError{Field: fd.FullName(), Expected: describeKind(fd), Actual: describeValue(v)}
	}
	switch fd.Kind() {
	case desc.EnumKind:
		if ed := fd.Enum(); ed.IsClosed() && ed.FindValueByNumber(v.Enum()) == nil {
			return Value{}, &TypeMismatchError{
				Field:    fd.FullName(),
				Expected: "a value of closed enum " + ed.FullName(),
				Actual:   fmt.Sprintf("number %d", v.Enum()),
			}
		}
	case desc.MessageKind, desc.GroupKind:
		if v.Message() == nil || v.Message().md != fd.Message() {
			return Value{}, &TypeMismatchError{Field: fd.FullName(), Expected: describeKind(fd), Actual: describeValue(v)}
		}
	}
	return v, nil
}

func mismatch(fd *desc.FieldDescriptor, v Value) error {
	return &TypeMismatchError{Field: fd.FullName(), Expected: describeField(fd), Actual: describeValue(v)}
}

// valueKindOf returns the kind of Value that holds a single value of a
// field of kind k.
func valueKindOf(k desc.Kind) ValueKind {
	switch k {
	case desc.BoolKind:
		return BoolValue
	case desc.Int32Kind, desc.Sint32Kind, desc.Sfixed32Kind:
		return Int32Value
	case desc.Int64Kind, desc.Sint64Kind, desc.Sfixed64Kind:
		return Int64Value
	case desc.Uint32Kind, desc.Fixed32Kind:
		return Uint32Value
	case desc.Uint64Kind, desc.Fixed64Kind:
		return Uint64Value
	case desc.FloatKind:
		return Float32Value
	case desc.DoubleKind:
		return Float64Value
	case desc.StringKind:
		return StringValue
	case desc.BytesKind:
		return BytesValue
	case desc.EnumKind:
		return EnumValue
	case desc.MessageKind, desc.GroupKind:
		return MessageValue
	default:
		return InvalidValue
	}
}

func describeKind(fd *desc.FieldDescriptor) string {
	switch {
	case fd.Kind().IsMessage():
		return "message " + fd.Message().FullName()
	case fd.Kind() == desc.EnumKind:
		return "enum " + fd.Enum().FullName()
	default:
		return valueKindOf(fd.Kind()).String()
	}
}

func describeField(fd *desc.FieldDescriptor) string {
	switch {
	case fd.IsMap():
		return fmt.Sprintf("map<%s, %s>", describeKind(fd.MapKey()), describeKind(fd.MapValue()))
	case fd.IsList():
		return "list of " + describeKind(fd)
	default:
		return describeKind(fd)
	}
}

func describeValue(v Value) string {
	switch v.kind {
	case MessageValue:
		if v.Message() == nil {
			return "nil message"
		}
		return "message " + v.Message().md.FullName()
	default:
		return v.kind.String()
	}
}
