// Package codec contains a reader/writer type that assists with encoding
// and decoding protobuf's binary representation.
//
// The Buffer type provides the primitives (varints, zig-zag integers,
// fixed-width little-endian values, length-delimited bytes, and groups)
// needed by code that produces or consumes the wire format dynamically, from
// descriptors, instead of from generated code.
package codec

import (
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jhump/dynproto/desc"
)

// ErrBadWireType is returned when a tag carries a wire type that does not
// exist.
var ErrBadWireType = errors.New("proto: bad wire type")

// Buffer is a reader and a writer that wraps a slice of bytes and also
// provides API for decoding and encoding the protobuf binary format.
type Buffer struct {
	buf   []byte
	index int
}

// NewBuffer creates a new buffer with the given slice of bytes as the
// buffer's initial contents.
func NewBuffer(buf []byte) *Buffer {
	return &Buffer{buf: buf}
}

// Reset resets this buffer back to empty. Any subsequent writes/encodes
// to the buffer will allocate a new backing slice of bytes.
func (cb *Buffer) Reset() {
	cb.buf = []byte(nil)
	cb.index = 0
}

// Bytes returns the slice of bytes remaining in the buffer. Note that
// this does not perform a copy: if the contents of the returned slice
// are modified, the modifications will be visible to subsequent reads
// via the buffer.
func (cb *Buffer) Bytes() []byte {
	return cb.buf[cb.index:]
}

// EOF returns true if there are no more bytes remaining to read.
func (cb *Buffer) EOF() bool {
	return cb.index >= len(cb.buf)
}

// Len returns the remaining number of bytes in the buffer.
func (cb *Buffer) Len() int {
	return len(cb.buf) - cb.index
}

// Offset returns the number of bytes consumed so far.
func (cb *Buffer) Offset() int {
	return cb.index
}

// Skip advances past the given number of bytes. If the input has fewer
// bytes than the given count, io.ErrUnexpectedEOF is returned and the
// buffer is unchanged.
func (cb *Buffer) Skip(count int) error {
	if count < 0 {
		return fmt.Errorf("proto: bad byte length %d", count)
	}
	newIndex := cb.index + count
	if newIndex < cb.index || newIndex > len(cb.buf) {
		return io.ErrUnexpectedEOF
	}
	cb.index = newIndex
	return nil
}

// consumed advances past n bytes, as reported by one of the protowire
// Consume functions. A negative n is converted to the corresponding error.
func (cb *Buffer) consumed(n int) error {
	if n < 0 {
		return protowire.ParseError(n)
	}
	cb.index += n
	return nil
}

// DecodeVarint reads a varint-encoded integer from the Buffer.
// This is the format for the
// int32, int64, uint32, uint64, bool, and enum
// protocol buffer types.
func (cb *Buffer) DecodeVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(cb.buf[cb.index:])
	if err := cb.consumed(n); err != nil {
		return 0, err
	}
	return v, nil
}

// DecodeTagAndWireType decodes a field tag and wire type from input.
// The field number must be in the valid range and the wire type must be
// one of the six defined types.
func (cb *Buffer) DecodeTagAndWireType() (protowire.Number, protowire.Type, error) {
	v, err := cb.DecodeVarint()
	if err != nil {
		return 0, 0, err
	}
	num, wt := protowire.DecodeTag(v)
	if v>>3 > math.MaxInt32 || !num.IsValid() {
		return 0, 0, fmt.Errorf("proto: invalid field number %d", v>>3)
	}
	switch wt {
	case protowire.VarintType, protowire.Fixed32Type, protowire.Fixed64Type,
		protowire.BytesType, protowire.StartGroupType, protowire.EndGroupType:
		return num, wt, nil
	default:
		return 0, 0, fmt.Errorf("%w %d for field %d", ErrBadWireType, wt, num)
	}
}

// DecodeFixed64 reads a 64-bit integer from the Buffer.
// This is the format for the
// fixed64, sfixed64, and double protocol buffer types.
func (cb *Buffer) DecodeFixed64() (uint64, error) {
	v, n := protowire.ConsumeFixed64(cb.buf[cb.index:])
	if err := cb.consumed(n); err != nil {
		return 0, err
	}
	return v, nil
}

// DecodeFixed32 reads a 32-bit integer from the Buffer.
// This is the format for the
// fixed32, sfixed32, and float protocol buffer types.
func (cb *Buffer) DecodeFixed32() (uint32, error) {
	v, n := protowire.ConsumeFixed32(cb.buf[cb.index:])
	if err := cb.consumed(n); err != nil {
		return 0, err
	}
	return v, nil
}

// DecodeZigZag32 decodes a signed 32-bit integer from the given
// zig-zag encoded value.
func DecodeZigZag32(v uint64) int32 {
	return int32((uint32(v) >> 1) ^ uint32((int32(v&1)<<31)>>31))
}

// DecodeZigZag64 decodes a signed 64-bit integer from the given
// zig-zag encoded value.
func DecodeZigZag64(v uint64) int64 {
	return protowire.DecodeZigZag(v)
}

// DecodeRawBytes reads a count-delimited byte buffer from the Buffer.
// This is the format used for the bytes protocol buffer
// type and for embedded messages. If alloc is false, the returned slice
// is a view into the buffer's underlying byte slice.
func (cb *Buffer) DecodeRawBytes(alloc bool) ([]byte, error) {
	v, n := protowire.ConsumeBytes(cb.buf[cb.index:])
	if err := cb.consumed(n); err != nil {
		return nil, err
	}
	if !alloc {
		return v, nil
	}
	buf := make([]byte, len(v))
	copy(buf, v)
	return buf, nil
}

// ReadGroup reads the input until the "group end" tag that matches the
// given field number and returns the data up to that point. Subsequent
// reads from the buffer will read data after the group end tag. If alloc
// is false, the returned slice is a view into the buffer's underlying
// byte slice.
//
// Nested groups are handled correctly: their end tags are included in the
// returned data.
func (cb *Buffer) ReadGroup(num protowire.Number, alloc bool) ([]byte, error) {
	v, n := protowire.ConsumeGroup(num, cb.buf[cb.index:])
	if err := cb.consumed(n); err != nil {
		return nil, err
	}
	if !alloc {
		return v, nil
	}
	buf := make([]byte, len(v))
	copy(buf, v)
	return buf, nil
}

// SkipField skips over the value of a field whose tag was just read.
func (cb *Buffer) SkipField(num protowire.Number, wt protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, wt, cb.buf[cb.index:])
	return cb.consumed(n)
}

// Write implements the io.Writer interface. It always returns
// len(data), nil.
func (cb *Buffer) Write(data []byte) (int, error) {
	cb.buf = append(cb.buf, data...)
	return len(data), nil
}

var _ io.Writer = (*Buffer)(nil)

// EncodeVarint writes a varint-encoded integer to the Buffer.
// This is the format for the
// int32, int64, uint32, uint64, bool, and enum
// protocol buffer types.
func (cb *Buffer) EncodeVarint(x uint64) {
	cb.buf = protowire.AppendVarint(cb.buf, x)
}

// EncodeTagAndWireType encodes the given field tag and wire type to the
// buffer. This combines the two values and then writes them as a varint.
func (cb *Buffer) EncodeTagAndWireType(num protowire.Number, wt protowire.Type) {
	cb.buf = protowire.AppendTag(cb.buf, num, wt)
}

// EncodeFixed64 writes a 64-bit integer to the Buffer.
// This is the format for the
// fixed64, sfixed64, and double protocol buffer types.
func (cb *Buffer) EncodeFixed64(x uint64) {
	cb.buf = protowire.AppendFixed64(cb.buf, x)
}

// EncodeFixed32 writes a 32-bit integer to the Buffer.
// This is the format for the
// fixed32, sfixed32, and float protocol buffer types.
func (cb *Buffer) EncodeFixed32(x uint32) {
	cb.buf = protowire.AppendFixed32(cb.buf, x)
}

// EncodeZigZag64 does zig-zag encoding to convert the given
// signed 64-bit integer into a form that can be expressed
// efficiently as a varint, even for negative values.
func EncodeZigZag64(v int64) uint64 {
	return protowire.EncodeZigZag(v)
}

// EncodeZigZag32 does zig-zag encoding to convert the given
// signed 32-bit integer into a form that can be expressed
// efficiently as a varint, even for negative values.
func EncodeZigZag32(v int32) uint64 {
	return uint64((uint32(v) << 1) ^ uint32((v >> 31)))
}

// EncodeRawBytes writes a count-delimited byte buffer to the Buffer.
// This is the format used for the bytes protocol buffer
// type and for embedded messages.
func (cb *Buffer) EncodeRawBytes(b []byte) {
	cb.buf = protowire.AppendBytes(cb.buf, b)
}

// WireType returns the wire type used to encode a single value of the
// given kind.
func WireType(k desc.Kind) protowire.Type {
	switch k {
	case desc.BoolKind, desc.EnumKind,
		desc.Int32Kind, desc.Sint32Kind, desc.Uint32Kind,
		desc.Int64Kind, desc.Sint64Kind, desc.Uint64Kind:
		return protowire.VarintType

	case desc.Fixed32Kind, desc.Sfixed32Kind, desc.FloatKind:
		return protowire.Fixed32Type

	case desc.Fixed64Kind, desc.Sfixed64Kind, desc.DoubleKind:
		return protowire.Fixed64Type

	case desc.StringKind, desc.BytesKind, desc.MessageKind:
		return protowire.BytesType

	case desc.GroupKind:
		return protowire.StartGroupType

	default:
		panic(fmt.Sprintf("codec: no wire type for kind %v", k))
	}
}

// IsPackable returns true if repeated values of the given kind can use
// the packed encoding.
func IsPackable(k desc.Kind) bool {
	switch WireType(k) {
	case protowire.VarintType, protowire.Fixed32Type, protowire.Fixed64Type:
		return true
	default:
		return false
	}
}
