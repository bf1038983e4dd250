// Package grpcdynamic lets gRPC carry dynamic messages. Codec serializes
// *dynamic.Message values with their own wire codec, so requests and
// responses can be built from descriptors alone, and MethodPath and
// StreamDesc derive the remaining call metadata from a method descriptor.
package grpcdynamic

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"

	"github.com/jhump/dynproto/desc"
	"github.com/jhump/dynproto/dynamic"
)

// Name is the content subtype used by Codec. It is the same as that of the
// default protobuf codec, since the bytes on the wire are the same.
const Name = "proto"

// Codec is a gRPC codec for dynamic messages. It also accepts any
// proto.Message, so one codec can serve calls that mix dynamic and
// generated types. It is not registered globally; pass it to
// grpc.ForceCodec or grpc.ForceServerCodec.
type Codec struct{}

var _ encoding.Codec = Codec{}

// Marshal returns the wire format of v.
func (Codec) Marshal(v any) ([]byte, error) {
	switch v := v.(type) {
	case *dynamic.Message:
		return v.Marshal()
	case proto.Message:
		return proto.Marshal(v)
	default:
		return nil, fmt.Errorf("grpcdynamic: cannot marshal %T: not a message", v)
	}
}

// Unmarshal parses data into v. A *dynamic.Message keeps its type and has
// its previous contents replaced.
func (Codec) Unmarshal(data []byte, v any) error {
	switch v := v.(type) {
	case *dynamic.Message:
		return v.Unmarshal(data)
	case proto.Message:
		return proto.Unmarshal(data, v)
	default:
		return fmt.Errorf("grpcdynamic: cannot unmarshal into %T: not a message", v)
	}
}

func (Codec) Name() string {
	return Name
}

// MethodPath returns the HTTP/2 path that gRPC uses for the given method,
// in the form "/package.Service/Method".
func MethodPath(mtd *desc.MethodDescriptor) string {
	return fmt.Sprintf("/%s/%s", mtd.Service().FullName(), mtd.Name())
}

// StreamDesc returns the stream description to use when opening a stream
// for the given method.
func StreamDesc(mtd *desc.MethodDescriptor) *grpc.StreamDesc {
	return &grpc.StreamDesc{
		StreamName:    mtd.Name(),
		ServerStreams: mtd.IsServerStreaming(),
		ClientStreams: mtd.IsClientStreaming(),
	}
}

// MethodType describes the streaming shape of a method: "unary",
// "client-streaming", "server-streaming", or "bidi-streaming".
func MethodType(mtd *desc.MethodDescriptor) string {
	switch {
	case mtd.IsClientStreaming() && mtd.IsServerStreaming():
		return "bidi-streaming"
	case mtd.IsClientStreaming():
		return "client-streaming"
	case mtd.IsServerStreaming():
		return "server-streaming"
	default:
		return "unary"
	}
}
