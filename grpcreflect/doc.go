// Package grpcreflect provides a client for the [gRPC reflection service].
// The client downloads the descriptors of the services a server exposes, and
// everything they import, and links them into a desc.Pool. Messages for those
// services can then be built and encoded with the dynamic package and sent
// with the codec in the grpcdynamic package, without any generated code.
//
// [gRPC reflection service]: https://github.com/grpc/grpc/blob/master/src/proto/grpc/reflection/v1/reflection.proto
package grpcreflect
