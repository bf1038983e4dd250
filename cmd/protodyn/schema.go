package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bufbuild/protocompile"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/jhump/dynproto/desc"
	"github.com/jhump/dynproto/grpcreflect"
)

type schemaFlags struct {
	descriptorSet string
	protoFiles    []string
	importPaths   []string
	reflectAddr   string
}

// load builds a pool from whichever schema source was given.
func (s *schemaFlags) load(ctx context.Context, logger logrus.FieldLogger) (*desc.Pool, error) {
	sources := 0
	for _, given := range []bool{s.descriptorSet != "", len(s.protoFiles) > 0, s.reflectAddr != ""} {
		if given {
			sources++
		}
	}
	switch {
	case sources > 1:
		return nil, errors.New("only one of --schema, --proto, and --reflect can be used")
	case s.descriptorSet != "":
		logger.WithField("schema", s.descriptorSet).Debug("loading descriptor set")
		data, err := os.ReadFile(s.descriptorSet)
		if err != nil {
			return nil, err
		}
		return desc.NewPool(data)
	case len(s.protoFiles) > 0:
		logger.WithFields(logrus.Fields{
			"files":        s.protoFiles,
			"import_paths": s.importPaths,
		}).Debug("compiling proto sources")
		return s.compile(ctx)
	case s.reflectAddr != "":
		logger.WithField("address", s.reflectAddr).Debug("downloading schema with server reflection")
		return s.download(ctx)
	default:
		return nil, errors.New("no schema: use --schema, --proto, or --reflect")
	}
}

// download fetches the schema of every service the server exposes.
func (s *schemaFlags) download(ctx context.Context) (*desc.Pool, error) {
	conn, err := grpc.NewClient(s.reflectAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = conn.Close()
	}()
	client := grpcreflect.NewClient(ctx, conn)
	defer client.Reset()
	pool, err := client.Pool()
	if err != nil {
		return nil, fmt.Errorf("server reflection on %s: %w", s.reflectAddr, err)
	}
	return pool, nil
}

func (s *schemaFlags) compile(ctx context.Context) (*desc.Pool, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: s.importPaths,
		}),
	}
	results, err := compiler.Compile(ctx, s.protoFiles...)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	files := make([]protoreflect.FileDescriptor, len(results))
	for i, res := range results {
		files[i] = res
	}
	return desc.NewPoolFromSet(fileSet(files))
}

// fileSet returns a set holding the given files and everything they import,
// with each file after its imports.
func fileSet(files []protoreflect.FileDescriptor) *descriptorpb.FileDescriptorSet {
	fds := &descriptorpb.FileDescriptorSet{}
	seen := map[string]bool{}
	var add func(fd protoreflect.FileDescriptor)
	add = func(fd protoreflect.FileDescriptor) {
		if seen[fd.Path()] {
			return
		}
		seen[fd.Path()] = true
		imps := fd.Imports()
		for i := range imps.Len() {
			add(imps.Get(i).FileDescriptor)
		}
		fds.File = append(fds.File, protodesc.ToFileDescriptorProto(fd))
	}
	for _, fd := range files {
		add(fd)
	}
	return fds
}
