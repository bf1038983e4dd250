package grpcreflect

import (
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	refv1alpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/protobuf/proto"
)

// reflectionStream is the client side of a reflection stream, in terms of
// the v1 messages.
type reflectionStream interface {
	Send(*refv1.ServerReflectionRequest) error
	Recv() (*refv1.ServerReflectionResponse, error)
	CloseSend() error
}

// v1AlphaStream speaks v1alpha on the wire. The two versions have
// identical messages, so requests and responses are converted by way of
// the binary format.
type v1AlphaStream struct {
	refv1alpha.ServerReflection_ServerReflectionInfoClient
}

func (s v1AlphaStream) Send(req *refv1.ServerReflectionRequest) error {
	var alpha refv1alpha.ServerReflectionRequest
	if err := convert(req, &alpha); err != nil {
		return err
	}
	return s.ServerReflection_ServerReflectionInfoClient.Send(&alpha)
}

func (s v1AlphaStream) Recv() (*refv1.ServerReflectionResponse, error) {
	alpha, err := s.ServerReflection_ServerReflectionInfoClient.Recv()
	if err != nil {
		return nil, err
	}
	var resp refv1.ServerReflectionResponse
	if err := convert(alpha, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func convert(src, dst proto.Message) error {
	data, err := proto.Marshal(src)
	if err != nil {
		return err
	}
	return proto.Unmarshal(data, dst)
}
