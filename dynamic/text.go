package dynamic

// Marshalling and unmarshalling of dynamic messages to/from proto's standard text format

import (
	"fmt"
	"math"
	"strconv"
	"unicode"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/jhump/dynproto/codec"
	"github.com/jhump/dynproto/desc"
)

// MarshalTextOptions controls how a message is written in the text format.
type MarshalTextOptions struct {
	// Pretty writes one field per line, with nested messages indented by
	// two spaces. Otherwise all fields are written on one line, separated
	// by commas.
	Pretty bool
	// SkipUnknownFields omits fields that were read from the wire but are
	// not declared by the message type. When false, they are written using
	// their field numbers in place of names.
	SkipUnknownFields bool
	// ExpandAny writes google.protobuf.Any messages whose type can be
	// resolved in the pool as "[type_url] { ... }", showing the contents
	// of the packed message, instead of as raw bytes.
	ExpandAny bool
}

// DefaultMarshalTextOptions are the options used by MarshalText and String.
var DefaultMarshalTextOptions = MarshalTextOptions{SkipUnknownFields: true, ExpandAny: true}

// MarshalText serializes this message to bytes in the standard text format,
// returning an error if the operation fails for any reason. The output is
// compact, with all fields on one line.
//
// This method implements the encoding.TextMarshaler interface.
func (m *Message) MarshalText() ([]byte, error) {
	return m.MarshalTextWithOptions(DefaultMarshalTextOptions)
}

// MarshalTextIndent serializes this message to bytes in the standard text
// format, one field per line. There is no trailing newline.
func (m *Message) MarshalTextIndent() ([]byte, error) {
	opts := DefaultMarshalTextOptions
	opts.Pretty = true
	return m.MarshalTextWithOptions(opts)
}

// MarshalTextWithOptions serializes this message to bytes in the standard
// text format, using the given options.
func (m *Message) MarshalTextWithOptions(opts MarshalTextOptions) ([]byte, error) {
	unit := ""
	if opts.Pretty {
		unit = "  "
	}
	b := newIndentBuffer(unit, !opts.Pretty)
	if _, err := m.marshalText(b, opts); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// marshalText writes the fields of m and reports whether anything was
// written.
func (m *Message) marshalText(b *indentBuffer, opts MarshalTextOptions) (bool, error) {
	first := true
	if opts.ExpandAny && m.md.FullName() == "google.protobuf.Any" {
		if url, inner := m.resolveAny(); inner != nil {
			b.maybeNext(&first)
			b.WriteByte('[')
			b.WriteString(url)
			b.WriteByte(']')
			if err := marshalTextBlock(b, inner, opts); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	for fd, v := range m.Fields() {
		name := textName(fd)
		switch {
		case fd.IsMap():
			kfd, vfd := fd.MapKey(), fd.MapValue()
			for k, val := range v.Map().All() {
				b.maybeNext(&first)
				b.WriteString(name)
				if b.pretty() {
					b.WriteByte(' ')
				}
				b.WriteByte('{')
				mark := b.start()
				entryFirst := true
				b.maybeNext(&entryFirst)
				if err := marshalTextField(b, kfd, "key", k, opts); err != nil {
					return false, err
				}
				b.maybeNext(&entryFirst)
				if err := marshalTextField(b, vfd, "value", val, opts); err != nil {
					return false, err
				}
				b.end(mark, false)
				b.WriteByte('}')
			}

		case fd.IsList() && fd.Kind().IsMessage():
			for _, e := range v.List().All() {
				b.maybeNext(&first)
				if err := marshalTextField(b, fd, name, e, opts); err != nil {
					return false, err
				}
			}

		case fd.IsList():
			b.maybeNext(&first)
			b.WriteString(name)
			b.sep()
			b.WriteByte('[')
			for i, e := range v.List().All() {
				if i > 0 {
					b.WriteByte(',')
					if b.pretty() {
						b.WriteByte(' ')
					}
				}
				if err := marshalTextScalar(b, fd, e); err != nil {
					return false, err
				}
			}
			b.WriteByte(']')

		default:
			b.maybeNext(&first)
			if err := marshalTextField(b, fd, name, v, opts); err != nil {
				return false, err
			}
		}
	}

	if !opts.SkipUnknownFields {
		for _, uf := range m.unknown {
			b.maybeNext(&first)
			marshalTextUnknownField(b, uf)
		}
	}
	return !first, nil
}

// textName returns the name used for a field in the text format. Group
// fields use the name of the group's message type.
func textName(fd *desc.FieldDescriptor) string {
	if fd.Kind() == desc.GroupKind {
		return fd.Message().Name()
	}
	return fd.Name()
}

func marshalTextField(b *indentBuffer, fd *desc.FieldDescriptor, name string, v Value, opts MarshalTextOptions) error {
	b.WriteString(name)
	if fd.Kind().IsMessage() {
		return marshalTextBlock(b, v.Message(), opts)
	}
	b.sep()
	return marshalTextScalar(b, fd, v)
}

func marshalTextBlock(b *indentBuffer, m *Message, opts MarshalTextOptions) error {
	if b.pretty() {
		b.WriteByte(' ')
	}
	b.WriteByte('{')
	mark := b.start()
	wrote, err := m.marshalText(b, opts)
	if err != nil {
		return err
	}
	b.end(mark, !wrote)
	b.WriteByte('}')
	return nil
}

func marshalTextScalar(b *indentBuffer, fd *desc.FieldDescriptor, v Value) error {
	switch v.kind {
	case BoolValue, Int32Value, Int64Value, Uint32Value, Uint64Value:
		b.WriteString(v.String())
	case Float32Value:
		b.WriteString(formatTextFloat(float64(v.Float32()), 32))
	case Float64Value:
		b.WriteString(formatTextFloat(v.Float64(), 64))
	case StringValue:
		writeTextString(b, []byte(v.String()), true)
	case BytesValue:
		writeTextString(b, v.Bytes(), false)
	case EnumValue:
		if vd := fd.Enum().FindValueByNumber(v.Enum()); vd != nil {
			b.WriteString(vd.Name())
		} else {
			b.WriteString(strconv.FormatInt(int64(v.Enum()), 10))
		}
	default:
		return fmt.Errorf("field %s: cannot write %v value in text format", fd.FullName(), v.kind)
	}
	return nil
}

func formatTextFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(f, 'g', -1, bitSize)
	}
}

// writeTextString writes a quoted string literal. Bytes that are not
// printable are written as octal escapes. When text is true, printable
// non-ASCII characters are written as-is.
func writeTextString(b *indentBuffer, s []byte, text bool) {
	b.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c >= utf8.RuneSelf && text {
				r, sz := utf8.DecodeRune(s[i:])
				if r != utf8.RuneError && unicode.IsPrint(r) {
					b.Write(s[i : i+sz])
					i += sz
					continue
				}
			}
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(b, `\%03o`, c)
			} else {
				b.WriteByte(c)
			}
		}
		i++
	}
	b.WriteByte('"')
}

func marshalTextUnknownField(b *indentBuffer, uf UnknownField) {
	b.WriteString(strconv.Itoa(int(uf.Number)))
	switch uf.Encoding {
	case protowire.VarintType:
		b.sep()
		b.WriteString(strconv.FormatUint(uf.Value, 10))
	case protowire.Fixed32Type:
		b.sep()
		fmt.Fprintf(b, "0x%08x", uf.Value)
	case protowire.Fixed64Type:
		b.sep()
		fmt.Fprintf(b, "0x%016x", uf.Value)
	case protowire.BytesType:
		b.sep()
		writeTextString(b, uf.Contents, false)
	case protowire.StartGroupType:
		if b.pretty() {
			b.WriteByte(' ')
		}
		b.WriteByte('{')
		mark := b.start()
		first := true
		group := NewMessage(nil)
		in := codec.NewBuffer(uf.Contents)
		for !in.EOF() {
			num, wt, err := in.DecodeTagAndWireType()
			if err != nil || group.unmarshalUnknownField(in, num, wt) != nil {
				break
			}
		}
		for _, nested := range group.unknown {
			b.maybeNext(&first)
			marshalTextUnknownField(b, nested)
		}
		b.end(mark, first)
		b.WriteByte('}')
	}
}

// resolveAny returns the type URL and the unpacked contents of an Any
// message, or a nil message if the type is not in the pool or the contents
// cannot be decoded.
func (m *Message) resolveAny() (string, *Message) {
	urlField, valueField := m.md.FindFieldByNumber(1), m.md.FindFieldByNumber(2)
	if urlField == nil || valueField == nil || urlField.Kind() != desc.StringKind || valueField.Kind() != desc.BytesKind {
		return "", nil
	}
	url := m.getField(urlField).String()
	if url == "" {
		return "", nil
	}
	md, err := m.md.Pool().FindMessageByURL(url)
	if err != nil {
		return "", nil
	}
	inner, err := Unmarshal(md, m.getField(valueField).Bytes())
	if err != nil {
		return "", nil
	}
	return url, inner
}

// UnmarshalTextOptions controls how text format input is parsed.
type UnmarshalTextOptions struct {
	// Strict rejects field names that the message type does not declare.
	// Otherwise they are skipped.
	Strict bool
}

// UnmarshalText parses the given bytes in the standard text format into a
// new message of the given type. Unknown field names are skipped.
func UnmarshalText(md *desc.MessageDescriptor, text []byte) (*Message, error) {
	return UnmarshalTextWithOptions(md, text, UnmarshalTextOptions{})
}

// UnmarshalTextWithOptions parses the given bytes in the standard text
// format into a new message of the given type. On failure, it returns a
// *TextParseError and no message.
func UnmarshalTextWithOptions(md *desc.MessageDescriptor, text []byte, opts UnmarshalTextOptions) (*Message, error) {
	dm := dynamicpb.NewMessage(md.Unwrap())
	uopts := prototext.UnmarshalOptions{
		AllowPartial:   true,
		DiscardUnknown: !opts.Strict,
		Resolver:       md.Pool().Types(),
	}
	if err := uopts.Unmarshal(text, dm); err != nil {
		return nil, &TextParseError{Err: err}
	}
	m, err := fromProtoMessage(md, dm)
	if err != nil {
		return nil, &TextParseError{Err: err}
	}
	return m, nil
}

// UnmarshalText replaces the contents of this message with the given bytes
// in the standard text format. On error, m is unchanged.
//
// This method implements the encoding.TextUnmarshaler interface.
func (m *Message) UnmarshalText(text []byte) error {
	return m.UnmarshalTextWithOptions(text, UnmarshalTextOptions{})
}

func (m *Message) UnmarshalTextWithOptions(text []byte, opts UnmarshalTextOptions) error {
	tmp, err := UnmarshalTextWithOptions(m.md, text, opts)
	if err != nil {
		return err
	}
	m.replace(tmp)
	return nil
}

// fromProtoMessage converts a message of the same type, parsed by one of
// the protobuf runtime's codecs, by way of the binary format.
func fromProtoMessage(md *desc.MessageDescriptor, msg proto.Message) (*Message, error) {
	data, err := proto.MarshalOptions{AllowPartial: true, Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return Unmarshal(md, data)
}
