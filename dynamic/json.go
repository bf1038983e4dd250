package dynamic

// JSON marshalling and unmarshalling for dynamic messages

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/jhump/dynproto/desc"
)

// MarshalJSONOptions controls how a message is written as JSON. The zero
// value gives the default behavior.
type MarshalJSONOptions struct {
	// StringifyInt64s writes 64-bit integer fields as quoted decimal
	// strings instead of JSON numbers, for consumers that cannot represent
	// them exactly.
	StringifyInt64s bool
	// UseEnumNumbers writes enum values as numbers instead of names.
	UseEnumNumbers bool
	// UseProtoNames uses the field names declared in the schema as keys,
	// instead of their lower-camel-case JSON names.
	UseProtoNames bool
	// SkipDefaultFields omits fields that are not set. Otherwise, fields
	// that do not track presence are written with their zero values.
	SkipDefaultFields bool
	// Indent, if not empty, causes the output to be spread over multiple
	// lines, with each nesting level indented by this string.
	Indent string
}

// MarshalJSON serializes this message to bytes in JSON format, returning an
// error if the operation fails for any reason. The output is compact.
//
// This method implements the json.Marshaler interface.
func (m *Message) MarshalJSON() ([]byte, error) {
	return m.MarshalJSONWithOptions(MarshalJSONOptions{})
}

// MarshalJSONIndent serializes this message to bytes in JSON format,
// indented by two spaces per level.
func (m *Message) MarshalJSONIndent() ([]byte, error) {
	return m.MarshalJSONWithOptions(MarshalJSONOptions{Indent: "  "})
}

// MarshalJSONWithOptions serializes this message to bytes in JSON format,
// using the given options.
func (m *Message) MarshalJSONWithOptions(opts MarshalJSONOptions) ([]byte, error) {
	b := newIndentBuffer(opts.Indent, true)
	if err := m.marshalJSON(b, opts); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (m *Message) marshalJSON(b *indentBuffer, opts MarshalJSONOptions) error {
	if isWellKnownType(m.md) {
		return m.marshalWellKnownJSON(b, opts)
	}

	b.WriteByte('{')
	mark := b.start()
	first := true
	for _, fd := range m.md.Fields() {
		v, ok := m.present(fd)
		if !ok {
			if opts.SkipDefaultFields || fd.HasPresence() {
				continue
			}
			v = zeroValue(fd)
		}
		b.maybeNext(&first)
		name := fd.JSONName()
		if opts.UseProtoNames {
			name = fd.Name()
		}
		if err := writeJSONString(b, name); err != nil {
			return err
		}
		b.sep()
		if err := marshalKnownFieldJSON(b, fd, v, opts); err != nil {
			return err
		}
	}
	b.end(mark, first)
	b.WriteByte('}')
	return nil
}

func marshalKnownFieldJSON(b *indentBuffer, fd *desc.FieldDescriptor, v Value, opts MarshalJSONOptions) error {
	switch {
	case fd.IsMap():
		vfd := fd.MapValue()
		b.WriteByte('{')
		mark := b.start()
		first := true
		for k, val := range v.Map().All() {
			b.maybeNext(&first)
			if err := writeJSONString(b, k.String()); err != nil {
				return fmt.Errorf("field %s: %w", fd.FullName(), err)
			}
			b.sep()
			if err := marshalJSONValue(b, vfd, val, opts); err != nil {
				return err
			}
		}
		b.end(mark, first)
		b.WriteByte('}')
		return nil

	case fd.IsList():
		b.WriteByte('[')
		mark := b.start()
		first := true
		for _, e := range v.List().All() {
			b.maybeNext(&first)
			if err := marshalJSONValue(b, fd, e, opts); err != nil {
				return err
			}
		}
		b.end(mark, first)
		b.WriteByte(']')
		return nil

	default:
		return marshalJSONValue(b, fd, v, opts)
	}
}

func marshalJSONValue(b *indentBuffer, fd *desc.FieldDescriptor, v Value, opts MarshalJSONOptions) error {
	switch v.kind {
	case BoolValue, Int32Value, Uint32Value:
		b.WriteString(v.String())
	case Int64Value, Uint64Value:
		if opts.StringifyInt64s {
			b.WriteByte('"')
			b.WriteString(v.String())
			b.WriteByte('"')
		} else {
			b.WriteString(v.String())
		}
	case Float32Value:
		writeJSONFloat(b, float64(v.Float32()), 32)
	case Float64Value:
		writeJSONFloat(b, v.Float64(), 64)
	case StringValue:
		if err := writeJSONString(b, v.String()); err != nil {
			return fmt.Errorf("field %s: %w", fd.FullName(), err)
		}
	case BytesValue:
		b.WriteByte('"')
		b.WriteString(base64.StdEncoding.EncodeToString(v.Bytes()))
		b.WriteByte('"')
	case EnumValue:
		ed := fd.Enum()
		if ed.FullName() == "google.protobuf.NullValue" {
			b.WriteString("null")
			return nil
		}
		if vd := ed.FindValueByNumber(v.Enum()); vd != nil && !opts.UseEnumNumbers {
			return writeJSONString(b, vd.Name())
		}
		b.WriteString(strconv.FormatInt(int64(v.Enum()), 10))
	case MessageValue:
		return v.Message().marshalJSON(b, opts)
	default:
		return fmt.Errorf("field %s: cannot write %v value as JSON", fd.FullName(), v.kind)
	}
	return nil
}

func writeJSONFloat(b *indentBuffer, f float64, bitSize int) {
	switch {
	case math.IsNaN(f):
		b.WriteString(`"NaN"`)
	case math.IsInf(f, 1):
		b.WriteString(`"Infinity"`)
	case math.IsInf(f, -1):
		b.WriteString(`"-Infinity"`)
	default:
		b.WriteString(strconv.FormatFloat(f, 'g', -1, bitSize))
	}
}

// writeJSONString writes s as a JSON string. Only the characters JSON
// requires are escaped.
func writeJSONString(b *indentBuffer, s string) error {
	if !utf8.ValidString(s) {
		return errInvalidUTF8
	}
	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates the value with a newline
	b.Truncate(b.Len() - 1)
	return nil
}

// marshalWellKnownJSON writes one of the well-known types, which have
// special JSON forms, using the protobuf runtime's JSON codec.
func (m *Message) marshalWellKnownJSON(b *indentBuffer, opts MarshalJSONOptions) error {
	dm, err := m.ToDynamicpb()
	if err != nil {
		return err
	}
	raw, err := protojson.MarshalOptions{
		UseProtoNames:   opts.UseProtoNames,
		UseEnumNumbers:  opts.UseEnumNumbers,
		EmitUnpopulated: !opts.SkipDefaultFields,
		AllowPartial:    true,
		Resolver:        m.md.Pool().Types(),
	}.Marshal(dm)
	if err != nil {
		return err
	}
	// protojson does not promise stable whitespace
	var out bytes.Buffer
	if b.pretty() {
		err = json.Indent(&out, raw, b.prefix(), b.unit)
	} else {
		err = json.Compact(&out, raw)
	}
	if err != nil {
		return err
	}
	_, err = b.Write(out.Bytes())
	return err
}

// UnmarshalJSONOptions controls how JSON input is parsed.
type UnmarshalJSONOptions struct {
	// DisallowUnknownFields rejects keys that do not name a field of the
	// message type. Otherwise they are skipped.
	DisallowUnknownFields bool
}

// UnmarshalJSON parses the given JSON into a new message of the given type.
// Both JSON names and declared field names are accepted as keys; integers
// may be numbers or strings; enums may be names or numbers; null means the
// field is not set.
func UnmarshalJSON(md *desc.MessageDescriptor, js []byte) (*Message, error) {
	return UnmarshalJSONWithOptions(md, js, UnmarshalJSONOptions{})
}

// UnmarshalJSONWithOptions parses the given JSON into a new message of the
// given type. On failure, it returns a *JSONParseError and no message.
func UnmarshalJSONWithOptions(md *desc.MessageDescriptor, js []byte, opts UnmarshalJSONOptions) (*Message, error) {
	dm := dynamicpb.NewMessage(md.Unwrap())
	uopts := protojson.UnmarshalOptions{
		AllowPartial:   true,
		DiscardUnknown: !opts.DisallowUnknownFields,
		Resolver:       md.Pool().Types(),
	}
	if err := uopts.Unmarshal(js, dm); err != nil {
		return nil, &JSONParseError{Err: err}
	}
	m, err := fromProtoMessage(md, dm)
	if err != nil {
		return nil, &JSONParseError{Err: err}
	}
	return m, nil
}

// UnmarshalJSON replaces the contents of this message with the given JSON.
// On error, m is unchanged.
//
// This method implements the json.Unmarshaler interface.
func (m *Message) UnmarshalJSON(js []byte) error {
	return m.UnmarshalJSONWithOptions(js, UnmarshalJSONOptions{})
}

func (m *Message) UnmarshalJSONWithOptions(js []byte, opts UnmarshalJSONOptions) error {
	tmp, err := UnmarshalJSONWithOptions(m.md, js, opts)
	if err != nil {
		return err
	}
	m.replace(tmp)
	return nil
}
