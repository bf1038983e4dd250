package dynamic

// Binary serialization and de-serialization for dynamic messages

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jhump/dynproto/codec"
	"github.com/jhump/dynproto/desc"
)

var (
	errInvalidUTF8    = errors.New("string field contains invalid UTF-8")
	errRecursionLimit = errors.New("exceeded maximum recursion depth")
)

// recursionLimit is the deepest level of message nesting that Unmarshal
// accepts.
const recursionLimit = 10000

// Marshal serializes this message to bytes in the protobuf binary format.
// The output is deterministic: known fields are written in field number
// order, map entries in key order, and unknown fields last, ordered by
// field number. It returns an error if a string field that requires UTF-8
// holds invalid UTF-8.
func (m *Message) Marshal() ([]byte, error) {
	var b codec.Buffer
	if err := m.marshal(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Marshal serializes the given message to bytes in the protobuf binary
// format.
func Marshal(m *Message) ([]byte, error) {
	return m.Marshal()
}

func (m *Message) marshal(b *codec.Buffer) error {
	for _, fd := range m.md.FieldsInNumberOrder() {
		v, ok := m.present(fd)
		if !ok {
			continue
		}
		if err := marshalField(b, fd, v); err != nil {
			return err
		}
	}
	unknown := slices.Clone(m.unknown)
	slices.SortStableFunc(unknown, func(a, b UnknownField) int {
		return int(a.Number) - int(b.Number)
	})
	for _, uf := range unknown {
		marshalUnknownField(b, uf)
	}
	return nil
}

func marshalField(b *codec.Buffer, fd *desc.FieldDescriptor, v Value) error {
	num := protowire.Number(fd.Number())
	switch {
	case fd.IsMap():
		kfd, vfd := fd.MapKey(), fd.MapValue()
		mp := v.Map()
		for _, k := range mp.Keys() {
			var entry codec.Buffer
			if err := marshalValue(&entry, kfd, 1, k.Value()); err != nil {
				return err
			}
			if err := marshalValue(&entry, vfd, 2, mp.entries[k]); err != nil {
				return err
			}
			b.EncodeTagAndWireType(num, protowire.BytesType)
			b.EncodeRawBytes(entry.Bytes())
		}
		return nil

	case fd.IsList():
		l := v.List()
		if fd.IsPacked() && codec.IsPackable(fd.Kind()) {
			var packed codec.Buffer
			for _, e := range l.elems {
				if err := marshalScalar(&packed, fd, e); err != nil {
					return err
				}
			}
			b.EncodeTagAndWireType(num, protowire.BytesType)
			b.EncodeRawBytes(packed.Bytes())
			return nil
		}
		for _, e := range l.elems {
			if err := marshalValue(b, fd, num, e); err != nil {
				return err
			}
		}
		return nil

	default:
		return marshalValue(b, fd, num, v)
	}
}

// marshalValue writes a single tagged value of fd's kind.
func marshalValue(b *codec.Buffer, fd *desc.FieldDescriptor, num protowire.Number, v Value) error {
	switch fd.Kind() {
	case desc.GroupKind:
		b.EncodeTagAndWireType(num, protowire.StartGroupType)
		if err := v.Message().marshal(b); err != nil {
			return err
		}
		b.EncodeTagAndWireType(num, protowire.EndGroupType)
		return nil
	case desc.MessageKind:
		var nested codec.Buffer
		if err := v.Message().marshal(&nested); err != nil {
			return err
		}
		b.EncodeTagAndWireType(num, protowire.BytesType)
		b.EncodeRawBytes(nested.Bytes())
		return nil
	default:
		b.EncodeTagAndWireType(num, codec.WireType(fd.Kind()))
		return marshalScalar(b, fd, v)
	}
}

// marshalScalar writes a scalar or enum value without a tag.
func marshalScalar(b *codec.Buffer, fd *desc.FieldDescriptor, v Value) error {
	switch fd.Kind() {
	case desc.Int32Kind:
		b.EncodeVarint(uint64(int64(v.Int32())))
	case desc.Sint32Kind:
		b.EncodeVarint(codec.EncodeZigZag32(v.Int32()))
	case desc.Sfixed32Kind:
		b.EncodeFixed32(uint32(v.Int32()))
	case desc.Int64Kind:
		b.EncodeVarint(uint64(v.Int64()))
	case desc.Sint64Kind:
		b.EncodeVarint(codec.EncodeZigZag64(v.Int64()))
	case desc.Sfixed64Kind:
		b.EncodeFixed64(uint64(v.Int64()))
	case desc.Uint32Kind:
		b.EncodeVarint(uint64(v.Uint32()))
	case desc.Fixed32Kind:
		b.EncodeFixed32(v.Uint32())
	case desc.Uint64Kind:
		b.EncodeVarint(v.Uint64())
	case desc.Fixed64Kind:
		b.EncodeFixed64(v.Uint64())
	case desc.FloatKind:
		b.EncodeFixed32(math.Float32bits(v.Float32()))
	case desc.DoubleKind:
		b.EncodeFixed64(math.Float64bits(v.Float64()))
	case desc.BoolKind:
		if v.Bool() {
			b.EncodeVarint(1)
		} else {
			b.EncodeVarint(0)
		}
	case desc.EnumKind:
		b.EncodeVarint(uint64(int64(v.Enum())))
	case desc.StringKind:
		s := v.String()
		if fd.RequiresUTF8() && !utf8.ValidString(s) {
			return fmt.Errorf("field %s: %w", fd.FullName(), errInvalidUTF8)
		}
		b.EncodeRawBytes([]byte(s))
	case desc.BytesKind:
		b.EncodeRawBytes(v.Bytes())
	default:
		return fmt.Errorf("field %s: unexpected kind %v", fd.FullName(), fd.Kind())
	}
	return nil
}

func marshalUnknownField(b *codec.Buffer, uf UnknownField) {
	num := protowire.Number(uf.Number)
	b.EncodeTagAndWireType(num, uf.Encoding)
	switch uf.Encoding {
	case protowire.VarintType:
		b.EncodeVarint(uf.Value)
	case protowire.Fixed32Type:
		b.EncodeFixed32(uint32(uf.Value))
	case protowire.Fixed64Type:
		b.EncodeFixed64(uf.Value)
	case protowire.BytesType:
		b.EncodeRawBytes(uf.Contents)
	case protowire.StartGroupType:
		_, _ = b.Write(uf.Contents)
		b.EncodeTagAndWireType(num, protowire.EndGroupType)
	}
}

// Unmarshal parses the given bytes in the protobuf binary format into a new
// message of the given type. On failure, it returns a *WireDecodeError and
// no message.
func Unmarshal(md *desc.MessageDescriptor, data []byte) (*Message, error) {
	m := NewMessage(md)
	if err := m.unmarshal(codec.NewBuffer(data), 0, 0); err != nil {
		return nil, err
	}
	return m, nil
}

// Unmarshal replaces the contents of this message with the given bytes in
// the protobuf binary format. If the bytes cannot be parsed, a
// *WireDecodeError is returned and m is unchanged.
func (m *Message) Unmarshal(data []byte) error {
	tmp, err := Unmarshal(m.md, data)
	if err != nil {
		return err
	}
	m.replace(tmp)
	return nil
}

// UnmarshalMerge parses the given bytes and merges the result into this
// message, as if the bytes were appended to m's own encoding. On error, m
// is unchanged.
func (m *Message) UnmarshalMerge(data []byte) error {
	tmp := m.Clone()
	if err := tmp.unmarshal(codec.NewBuffer(data), 0, 0); err != nil {
		return err
	}
	m.replace(tmp)
	return nil
}

// unmarshal reads fields from b until it is exhausted. base is the offset
// of b's contents within the outermost input, for error reporting. depth
// is the nesting level of m within the outermost message.
func (m *Message) unmarshal(b *codec.Buffer, base, depth int) error {
	if depth > recursionLimit {
		return &WireDecodeError{Offset: base, Err: errRecursionLimit}
	}
	for !b.EOF() {
		start := b.Offset()
		num, wt, err := b.DecodeTagAndWireType()
		if err != nil {
			return &WireDecodeError{Offset: base + start, Err: err}
		}
		if wt == protowire.EndGroupType {
			return &WireDecodeError{Offset: base + start, Err: fmt.Errorf("unexpected end group for field %d", num)}
		}
		fd := m.md.FindFieldByNumber(int32(num))
		if fd == nil {
			err = m.unmarshalUnknownField(b, num, wt)
		} else {
			err = m.unmarshalKnownField(b, base, depth, fd, wt)
		}
		if err != nil {
			var wde *WireDecodeError
			if errors.As(err, &wde) {
				return err
			}
			return &WireDecodeError{Offset: base + start, Err: err}
		}
	}
	return nil
}

func (m *Message) unmarshalUnknownField(b *codec.Buffer, num protowire.Number, wt protowire.Type) error {
	uf := UnknownField{Number: int32(num), Encoding: wt}
	var err error
	switch wt {
	case protowire.VarintType:
		uf.Value, err = b.DecodeVarint()
	case protowire.Fixed32Type:
		var v uint32
		v, err = b.DecodeFixed32()
		uf.Value = uint64(v)
	case protowire.Fixed64Type:
		uf.Value, err = b.DecodeFixed64()
	case protowire.BytesType:
		uf.Contents, err = b.DecodeRawBytes(true)
	case protowire.StartGroupType:
		uf.Contents, err = b.ReadGroup(num, true)
	}
	if err != nil {
		return err
	}
	m.unknown = append(m.unknown, uf)
	return nil
}

func (m *Message) unmarshalKnownField(b *codec.Buffer, base, depth int, fd *desc.FieldDescriptor, wt protowire.Type) error {
	switch {
	case fd.IsMap():
		if wt != protowire.BytesType {
			return wireTypeMismatch(fd, wt)
		}
		contents, err := b.DecodeRawBytes(false)
		if err != nil {
			return err
		}
		entry := NewMessage(fd.Message())
		if err := entry.unmarshal(codec.NewBuffer(contents), base+b.Offset()-len(contents), depth+1); err != nil {
			return err
		}
		if droppedEnumValue(entry, fd.MapValue()) {
			// the whole entry is kept, so that re-encoding preserves it
			m.unknown = append(m.unknown, UnknownField{
				Number:   fd.Number(),
				Encoding: protowire.BytesType,
				Contents: append([]byte{}, contents...),
			})
			return nil
		}
		mv, err := m.mutableField(fd)
		if err != nil {
			return err
		}
		mv.Map().entries[entry.getField(fd.MapKey()).MapKey()] = entry.getField(fd.MapValue())
		return nil

	case fd.IsList():
		lv, err := m.mutableField(fd)
		if err != nil {
			return err
		}
		l := lv.List()
		if wt == protowire.BytesType && codec.IsPackable(fd.Kind()) {
			contents, err := b.DecodeRawBytes(false)
			if err != nil {
				return err
			}
			packed := codec.NewBuffer(contents)
			for !packed.EOF() {
				v, err := unmarshalScalar(packed, fd)
				if err != nil {
					return &WireDecodeError{Offset: base + b.Offset() - len(contents) + packed.Offset(), Err: err}
				}
				m.appendElement(l, fd, v)
			}
			return nil
		}
		if wt != codec.WireType(fd.Kind()) {
			return wireTypeMismatch(fd, wt)
		}
		v, err := m.unmarshalValue(b, base, depth, fd, Value{})
		if err != nil {
			return err
		}
		m.appendElement(l, fd, v)
		return nil

	default:
		if wt != codec.WireType(fd.Kind()) {
			return wireTypeMismatch(fd, wt)
		}
		v, err := m.unmarshalValue(b, base, depth, fd, m.values[fd.Number()])
		if err != nil {
			return err
		}
		if !m.closedEnumValue(fd, v) {
			return nil
		}
		m.internalSetField(fd, v)
		return nil
	}
}

// appendElement adds a decoded element to a list, unless it is an
// undeclared value of a closed enum.
func (m *Message) appendElement(l *List, fd *desc.FieldDescriptor, v Value) {
	if m.closedEnumValue(fd, v) {
		l.elems = append(l.elems, v)
	}
}

// closedEnumValue returns false, and records v as an unknown field, if v
// is a number that a closed enum does not declare.
func (m *Message) closedEnumValue(fd *desc.FieldDescriptor, v Value) bool {
	if fd.Kind() != desc.EnumKind || !fd.Enum().IsClosed() || fd.Enum().FindValueByNumber(v.Enum()) != nil {
		return true
	}
	m.unknown = append(m.unknown, UnknownField{
		Number:   fd.Number(),
		Encoding: protowire.VarintType,
		Value:    uint64(int64(v.Enum())),
	})
	return false
}

// droppedEnumValue reports whether decoding a map entry set aside a value
// field holding an undeclared number of a closed enum.
func droppedEnumValue(entry *Message, vfd *desc.FieldDescriptor) bool {
	if vfd.Kind() != desc.EnumKind || !vfd.Enum().IsClosed() {
		return false
	}
	for _, uf := range entry.unknown {
		if uf.Number == vfd.Number() {
			return true
		}
	}
	return false
}

// unmarshalValue reads a single value of fd's kind. For message kinds, the
// data is merged into cur when cur holds a message. depth is the nesting
// level of m.
func (m *Message) unmarshalValue(b *codec.Buffer, base, depth int, fd *desc.FieldDescriptor, cur Value) (Value, error) {
	var nested *Message
	if fd.Kind().IsMessage() {
		if cur.kind == MessageValue {
			nested = cur.Message()
		} else {
			nested = NewMessage(fd.Message())
		}
	}
	switch fd.Kind() {
	case desc.MessageKind:
		contents, err := b.DecodeRawBytes(false)
		if err != nil {
			return Value{}, err
		}
		if err := nested.unmarshal(codec.NewBuffer(contents), base+b.Offset()-len(contents), depth+1); err != nil {
			return Value{}, err
		}
		return ValueOfMessage(nested), nil
	case desc.GroupKind:
		start := b.Offset()
		contents, err := b.ReadGroup(protowire.Number(fd.Number()), false)
		if err != nil {
			return Value{}, err
		}
		if err := nested.unmarshal(codec.NewBuffer(contents), base+start, depth+1); err != nil {
			return Value{}, err
		}
		return ValueOfMessage(nested), nil
	default:
		return unmarshalScalar(b, fd)
	}
}

// unmarshalScalar reads a scalar or enum value without a tag.
func unmarshalScalar(b *codec.Buffer, fd *desc.FieldDescriptor) (Value, error) {
	switch codec.WireType(fd.Kind()) {
	case protowire.VarintType:
		x, err := b.DecodeVarint()
		if err != nil {
			return Value{}, err
		}
		switch fd.Kind() {
		case desc.Int32Kind:
			return ValueOfInt32(int32(x)), nil
		case desc.Sint32Kind:
			return ValueOfInt32(codec.DecodeZigZag32(x)), nil
		case desc.Int64Kind:
			return ValueOfInt64(int64(x)), nil
		case desc.Sint64Kind:
			return ValueOfInt64(codec.DecodeZigZag64(x)), nil
		case desc.Uint32Kind:
			return ValueOfUint32(uint32(x)), nil
		case desc.Uint64Kind:
			return ValueOfUint64(x), nil
		case desc.BoolKind:
			return ValueOfBool(x != 0), nil
		default:
			return ValueOfEnum(int32(x)), nil
		}
	case protowire.Fixed32Type:
		x, err := b.DecodeFixed32()
		if err != nil {
			return Value{}, err
		}
		switch fd.Kind() {
		case desc.Sfixed32Kind:
			return ValueOfInt32(int32(x)), nil
		case desc.FloatKind:
			return ValueOfFloat32(math.Float32frombits(x)), nil
		default:
			return ValueOfUint32(x), nil
		}
	case protowire.Fixed64Type:
		x, err := b.DecodeFixed64()
		if err != nil {
			return Value{}, err
		}
		switch fd.Kind() {
		case desc.Sfixed64Kind:
			return ValueOfInt64(int64(x)), nil
		case desc.DoubleKind:
			return ValueOfFloat64(math.Float64frombits(x)), nil
		default:
			return ValueOfUint64(x), nil
		}
	default:
		contents, err := b.DecodeRawBytes(true)
		if err != nil {
			return Value{}, err
		}
		if fd.Kind() == desc.BytesKind {
			return ValueOfBytes(contents), nil
		}
		if fd.RequiresUTF8() && !utf8.Valid(contents) {
			return Value{}, fmt.Errorf("field %s: %w", fd.FullName(), errInvalidUTF8)
		}
		return ValueOfString(string(contents)), nil
	}
}

func wireTypeMismatch(fd *desc.FieldDescriptor, wt protowire.Type) error {
	return fmt.Errorf("field %s: wire type %d does not match %v field", fd.FullName(), wt, fd.Kind())
}
