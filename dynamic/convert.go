package dynamic

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/jhump/dynproto/desc"
)

// ConvertTo converts this dynamic message into the given message. This is
// shorthand for resetting then merging:
//
//	proto.Reset(target)
//	m.MergeInto(target)
//
// The target's type must have the same fully-qualified name as m's type.
func (m *Message) ConvertTo(target proto.Message) error {
	if err := m.checkType(target); err != nil {
		return err
	}
	proto.Reset(target)
	return m.mergeInto(target)
}

// MergeInto merges this dynamic message into the given message. Fields set
// in m overwrite or are appended to those in target, as with proto.Merge.
func (m *Message) MergeInto(target proto.Message) error {
	if err := m.checkType(target); err != nil {
		return err
	}
	return m.mergeInto(target)
}

func (m *Message) mergeInto(target proto.Message) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}
	opts := proto.UnmarshalOptions{Merge: true, AllowPartial: true}
	if pool := m.md.Pool(); pool != nil {
		opts.Resolver = pool.Types()
	}
	return opts.Unmarshal(b, target)
}

// ConvertFrom replaces the contents of this dynamic message with those of
// the given message. The source's type must have the same fully-qualified
// name as m's type. On error, m is unchanged.
func (m *Message) ConvertFrom(src proto.Message) error {
	if err := m.checkType(src); err != nil {
		return err
	}
	b, err := proto.MarshalOptions{Deterministic: true, AllowPartial: true}.Marshal(src)
	if err != nil {
		return err
	}
	return m.Unmarshal(b)
}

// ToDynamicpb returns a copy of this message as a *dynamicpb.Message, which
// can be used with APIs that accept a proto.Message.
func (m *Message) ToDynamicpb() (*dynamicpb.Message, error) {
	dm := dynamicpb.NewMessage(m.md.Unwrap())
	if err := m.mergeInto(dm); err != nil {
		return nil, err
	}
	return dm, nil
}

func (m *Message) checkType(msg proto.Message) error {
	name := string(msg.ProtoReflect().Descriptor().FullName())
	if name != m.md.FullName() {
		return fmt.Errorf("given message has wrong type: %q; expecting %q", name, m.md.FullName())
	}
	return nil
}

// scalarFromProto converts a singular protoreflect value of the given kind.
func scalarFromProto(k desc.Kind, pv protoreflect.Value) Value {
	if !pv.IsValid() {
		return Value{}
	}
	switch valueKindOf(k) {
	case BoolValue:
		return ValueOfBool(pv.Bool())
	case Int32Value:
		return ValueOfInt32(int32(pv.Int()))
	case Int64Value:
		return ValueOfInt64(pv.Int())
	case Uint32Value:
		return ValueOfUint32(uint32(pv.Uint()))
	case Uint64Value:
		return ValueOfUint64(pv.Uint())
	case Float32Value:
		return ValueOfFloat32(float32(pv.Float()))
	case Float64Value:
		return ValueOfFloat64(pv.Float())
	case StringValue:
		return ValueOfString(pv.String())
	case BytesValue:
		return ValueOfBytes(append([]byte{}, pv.Bytes()...))
	case EnumValue:
		return ValueOfEnum(int32(pv.Enum()))
	default:
		return Value{}
	}
}

// wellKnownTypes are the message types that have a special JSON form.
var wellKnownTypes = map[string]bool{
	"google.protobuf.Any":         true,
	"google.protobuf.Timestamp":   true,
	"google.protobuf.Duration":    true,
	"google.protobuf.FieldMask":   true,
	"google.protobuf.Struct":      true,
	"google.protobuf.Value":       true,
	"google.protobuf.ListValue":   true,
	"google.protobuf.Empty":       true,
	"google.protobuf.DoubleValue": true,
	"google.protobuf.FloatValue":  true,
	"google.protobuf.Int64Value":  true,
	"google.protobuf.UInt64Value": true,
	"google.protobuf.Int32Value":  true,
	"google.protobuf.UInt32Value": true,
	"google.protobuf.BoolValue":   true,
	"google.protobuf.StringValue": true,
	"google.protobuf.BytesValue":  true,
}

func isWellKnownType(md *desc.MessageDescriptor) bool {
	return wellKnownTypes[md.FullName()]
}
